package sbm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildBlock(t *testing.T, entries []Entry) *Block {
	t.Helper()
	b := NewBuilder()
	for _, e := range entries {
		require.NoError(t, b.Add(e.Key, e.Value))
	}
	blk, err := b.Build()
	require.NoError(t, err)
	return blk
}

func TestSingleEntryBlockBytes(t *testing.T) {
	blk := buildBlock(t, []Entry{
		{Key: Key{Bytes: []byte("abc"), SnapshotID: 5}, Value: Value("X")},
	})

	buf, err := blk.region.Bytes()
	require.NoError(t, err)
	want := []byte{
		0x03, 0x00, 0x00, 0x00, 0x61, 0x62, 0x63,
		0x01, 0x00, 0x00, 0x00,
		0x0f, 0x00, 0x00, 0x00,
		0x00, 0x05, 0x01, 0x58,
	}
	require.Equal(t, want, buf)

	e, err := blk.Get(0)
	require.NoError(t, err)
	require.Equal(t, Key{Bytes: []byte("abc"), SnapshotID: 5}, e.Key)
	require.Equal(t, Value("X"), e.Value)

	fi, err := blk.FloorIndex(Key{Bytes: []byte("abd")})
	require.NoError(t, err)
	require.Equal(t, 0, fi)

	ci, err := blk.CeilingIndex(Key{Bytes: []byte("abd")})
	require.NoError(t, err)
	require.Equal(t, 1, ci)
}

// TestPrefixCompressedBlockBytes asserts the exact on-disk layout for
// entries with a non-empty suffix: suffixSize varint, suffix bytes,
// snapshotId varint, valueSize varint, value bytes, in that order.
// TestSingleEntryBlockBytes alone can't catch a suffix/varint reordering
// bug since its one entry has an empty suffix.
func TestPrefixCompressedBlockBytes(t *testing.T) {
	blk := buildBlock(t, []Entry{
		{Key: Key{Bytes: []byte("user/01")}, Value: Value("A")},
		{Key: Key{Bytes: []byte("user/02")}, Value: Value("B")},
		{Key: Key{Bytes: []byte("user/10")}, Value: Value("C")},
	})

	buf, err := blk.region.Bytes()
	require.NoError(t, err)
	want := []byte{
		0x05, 0x00, 0x00, 0x00, 0x75, 0x73, 0x65, 0x72, 0x2f, // prefixLen=5, "user/"
		0x03, 0x00, 0x00, 0x00, // entryCount=3
		0x19, 0x00, 0x00, 0x00, // offset[0]=25
		0x1f, 0x00, 0x00, 0x00, // offset[1]=31
		0x25, 0x00, 0x00, 0x00, // offset[2]=37
		0x02, 0x30, 0x31, 0x00, 0x01, 0x41, // suffixLen=2,"01",snapshotId=0,valueLen=1,"A"
		0x02, 0x30, 0x32, 0x00, 0x01, 0x42, // "02","B"
		0x02, 0x31, 0x30, 0x00, 0x01, 0x43, // "10","C"
	}
	require.Equal(t, want, buf)

	e, err := blk.Get(0)
	require.NoError(t, err)
	require.Equal(t, "user/01", string(e.Key.Bytes))
	require.Equal(t, Value("A"), e.Value)
}

func TestPrefixCompressedBlock(t *testing.T) {
	entries := []Entry{
		{Key: Key{Bytes: []byte("user/1")}, Value: Value("A")},
		{Key: Key{Bytes: []byte("user/10")}, Value: Value("C")},
		{Key: Key{Bytes: []byte("user/2")}, Value: Value("B")},
	}
	blk := buildBlock(t, entries)
	require.Equal(t, []byte("user/"), blk.prefix)

	for i, want := range entries {
		got, err := blk.Get(i)
		require.NoError(t, err)
		require.Equal(t, want.Key, got.Key)
		require.Equal(t, want.Value, got.Value)
	}
	got, err := blk.Get(1)
	require.NoError(t, err)
	require.Equal(t, "user/10", string(got.Key.Bytes))
}

func TestBinarySearchSnapshotTieBreak(t *testing.T) {
	blk := buildBlock(t, []Entry{
		{Key: Key{Bytes: []byte("k"), SnapshotID: 1}, Value: Value("v1")},
		{Key: Key{Bytes: []byte("k"), SnapshotID: 3}, Value: Value("v3")},
		{Key: Key{Bytes: []byte("k"), SnapshotID: 7}, Value: Value("v7")},
	})

	fi, err := blk.FloorIndex(Key{Bytes: []byte("k"), SnapshotID: 5})
	require.NoError(t, err)
	require.Equal(t, 1, fi)

	ci, err := blk.CeilingIndex(Key{Bytes: []byte("k"), SnapshotID: 5})
	require.NoError(t, err)
	require.Equal(t, 2, ci)

	fi, err = blk.FloorIndex(Key{Bytes: []byte("k"), SnapshotID: 7})
	require.NoError(t, err)
	require.Equal(t, 2, fi)

	fi, err = blk.FloorIndex(Key{Bytes: []byte("k"), SnapshotID: 0})
	require.NoError(t, err)
	require.Equal(t, -1, fi)
}

func TestRoundTripAscendingIteration(t *testing.T) {
	entries := []Entry{
		{Key: Key{Bytes: []byte("a"), SnapshotID: 1}, Value: Value("1")},
		{Key: Key{Bytes: []byte("b"), SnapshotID: 1}, Value: Value("2")},
		{Key: Key{Bytes: []byte("c"), SnapshotID: 1}, Value: Value("3")},
		{Key: Key{Bytes: []byte("d"), SnapshotID: 1}, Value: Value("4")},
	}
	blk := buildBlock(t, entries)

	it, err := blk.Ascending(0)
	require.NoError(t, err)
	var got []Entry
	for it.Next() {
		e, err := it.Entry()
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Equal(t, entries, got)
}

func TestDescendingIteration(t *testing.T) {
	entries := []Entry{
		{Key: Key{Bytes: []byte("a")}, Value: Value("1")},
		{Key: Key{Bytes: []byte("b")}, Value: Value("2")},
		{Key: Key{Bytes: []byte("c")}, Value: Value("3")},
	}
	blk := buildBlock(t, entries)

	it, err := blk.Descending(blk.EntryCount() - 1)
	require.NoError(t, err)
	var got []Entry
	for it.Next() {
		e, err := it.Entry()
		require.NoError(t, err)
		got = append(got, e)
	}
	require.Len(t, got, 3)
	require.Equal(t, "c", string(got[0].Key.Bytes))
	require.Equal(t, "b", string(got[1].Key.Bytes))
	require.Equal(t, "a", string(got[2].Key.Bytes))
}

func TestPrefixCompressionNeutrality(t *testing.T) {
	shared := []Entry{
		{Key: Key{Bytes: []byte("pfx/alpha")}, Value: Value("1")},
		{Key: Key{Bytes: []byte("pfx/beta")}, Value: Value("2")},
		{Key: Key{Bytes: []byte("pfx/gamma")}, Value: Value("3")},
	}
	disjoint := []Entry{
		{Key: Key{Bytes: []byte("pfx/alpha")}, Value: Value("1")},
		{Key: Key{Bytes: []byte("qzz/beta")}, Value: Value("2")},
		{Key: Key{Bytes: []byte("zzz/gamma")}, Value: Value("3")},
	}

	withPrefix := buildBlock(t, shared)
	require.NotEmpty(t, withPrefix.prefix)

	withoutPrefix := buildBlock(t, disjoint)
	require.Empty(t, withoutPrefix.prefix)

	for i := range shared {
		a, err := withPrefix.Get(i)
		require.NoError(t, err)
		require.Equal(t, shared[i].Key, a.Key)
		require.Equal(t, shared[i].Value, a.Value)
	}
}

func naiveFloor(entries []Entry, q Key) int {
	ans := -1
	for i, e := range entries {
		if e.Key.Compare(q) <= 0 {
			ans = i
		}
	}
	return ans
}

func naiveCeiling(entries []Entry, q Key) int {
	for i, e := range entries {
		if e.Key.Compare(q) >= 0 {
			return i
		}
	}
	return len(entries)
}

func TestBinarySearchMatchesNaiveScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := []byte("row-")
	var entries []Entry
	for i := 0; i < 40; i++ {
		entries = append(entries, Entry{
			Key:   Key{Bytes: append(append([]byte{}, base...), byte('a'+i)), SnapshotID: uint64(i % 3)},
			Value: Value{byte(i)},
		})
	}
	// entries must be strictly ascending; sort by Key.Compare first.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j-1].Key.Compare(entries[j].Key) > 0; j-- {
			entries[j-1], entries[j] = entries[j], entries[j-1]
		}
	}
	blk := buildBlock(t, entries)

	for i := 0; i < 200; i++ {
		q := Key{
			Bytes:      append(append([]byte{}, base...), byte('a'+rng.Intn(42))),
			SnapshotID: uint64(rng.Intn(4)),
		}
		wantFloor := naiveFloor(entries, q)
		wantCeiling := naiveCeiling(entries, q)

		gotFloor, err := blk.FloorIndex(q)
		require.NoError(t, err)
		require.Equal(t, wantFloor, gotFloor, "floor mismatch for query %+v", q)

		gotCeiling, err := blk.CeilingIndex(q)
		require.NoError(t, err)
		require.Equal(t, wantCeiling, gotCeiling, "ceiling mismatch for query %+v", q)
	}
}

func TestEmptyBlock(t *testing.T) {
	blk := buildBlock(t, nil)
	require.Equal(t, 0, blk.EntryCount())

	fi, err := blk.FloorIndex(Key{Bytes: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, -1, fi)

	ci, err := blk.CeilingIndex(Key{Bytes: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, 0, ci)
}

func TestGetOutOfBounds(t *testing.T) {
	blk := buildBlock(t, []Entry{{Key: Key{Bytes: []byte("a")}, Value: Value("1")}})
	_, err := blk.Get(5)
	require.Error(t, err)
}

func TestReleaseThenGetFails(t *testing.T) {
	blk := buildBlock(t, []Entry{{Key: Key{Bytes: []byte("a")}, Value: Value("1")}})
	require.NoError(t, blk.Release())
	_, err := blk.Get(0)
	require.Error(t, err)
}
