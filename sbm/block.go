package sbm

import (
	"encoding/binary"

	"lsmtable/memregion"
	"lsmtable/tableerrors"
	"lsmtable/varint"
)

// Block is an immutable sorted block of versioned entries backed by a
// single MemoryRegion. Once built, it may be shared freely across
// goroutines for reads; there is no interior mutability.
type Block struct {
	region     *memregion.Region
	prefix     []byte
	entryCount int
	offsetsOff int
}

func newBlockFromRegion(region *memregion.Region) (*Block, error) {
	buf, err := region.Bytes()
	if err != nil {
		return nil, err
	}
	if len(buf) < 8 {
		return nil, tableerrors.New(tableerrors.MalformedVarint, "block too short for header")
	}
	prefixLen := int(binary.LittleEndian.Uint32(buf[0:4]))
	prefix := make([]byte, prefixLen)
	copy(prefix, buf[4:4+prefixLen])
	entryCount := int(binary.LittleEndian.Uint32(buf[4+prefixLen : 8+prefixLen]))

	return &Block{
		region:     region,
		prefix:     prefix,
		entryCount: entryCount,
		offsetsOff: 8 + prefixLen,
	}, nil
}

// NewBlock reconstructs a Block from an already-populated Region, e.g.
// one read back from a table file. This is the read-side counterpart to
// Builder.Build.
func NewBlock(region *memregion.Region) (*Block, error) {
	return newBlockFromRegion(region)
}

// EntryCount returns the number of entries in the block.
func (b *Block) EntryCount() int {
	return b.entryCount
}

// Bytes returns the block's serialized backing bytes, for callers that
// need to append the whole block verbatim (e.g. the index writer
// flushing a block to a table file). Fails with UseAfterFree once the
// block has been released.
func (b *Block) Bytes() ([]byte, error) {
	return b.region.Bytes()
}

// Release releases the block's backing Region. Any later operation on
// this Block fails with UseAfterFree.
func (b *Block) Release() error {
	return b.region.Release()
}

func (b *Block) entryOffset(i int) (int, error) {
	buf, err := b.region.Bytes()
	if err != nil {
		return 0, err
	}
	off := b.offsetsOff + i*4
	return int(binary.LittleEndian.Uint32(buf[off : off+4])), nil
}

// decodedEntry holds the pieces of an on-disk entry after varint
// decoding, before the suffix is joined to the cached prefix.
type decodedEntry struct {
	suffix     []byte
	snapshotID uint64
	value      []byte
}

func (b *Block) decodeAt(i int) (decodedEntry, error) {
	buf, err := b.region.Bytes()
	if err != nil {
		return decodedEntry{}, err
	}
	off, err := b.entryOffset(i)
	if err != nil {
		return decodedEntry{}, err
	}

	suffixLen, n, err := varint.Uint32(buf[off:])
	if err != nil {
		return decodedEntry{}, err
	}
	off += n

	suffix := buf[off : off+int(suffixLen)]
	off += int(suffixLen)

	snap, n, err := varint.Uint64(buf[off:])
	if err != nil {
		return decodedEntry{}, err
	}
	off += n

	valueLen, n, err := varint.Uint32(buf[off:])
	if err != nil {
		return decodedEntry{}, err
	}
	off += n

	value := buf[off : off+int(valueLen)]

	return decodedEntry{suffix: suffix, snapshotID: snap, value: value}, nil
}

// Get reconstructs entry i, returning owned copies of its key and value
// bytes so callers may hold them past the block's lifetime.
func (b *Block) Get(i int) (Entry, error) {
	if i < 0 || i >= b.entryCount {
		return Entry{}, tableerrors.New(tableerrors.IndexOutOfBounds, "sbm: index out of range")
	}
	d, err := b.decodeAt(i)
	if err != nil {
		return Entry{}, err
	}

	full := make([]byte, len(b.prefix)+len(d.suffix))
	copy(full, b.prefix)
	copy(full[len(b.prefix):], d.suffix)

	value := make([]byte, len(d.value))
	copy(value, d.value)

	return Entry{
		Key:   Key{Bytes: full, SnapshotID: d.snapshotID},
		Value: value,
	}, nil
}

// compareEntry returns entry[i].Key.Compare(query) without materializing
// entry i's full key. Callers must have already confirmed via
// prefixCompare that query's leading bytes match the block's prefix; this
// only compares the parts that can differ per entry: suffix bytes, then
// length, then snapshot id.
func (b *Block) compareEntry(i int, query Key) (int, error) {
	d, err := b.decodeAt(i)
	if err != nil {
		return 0, err
	}

	n := len(b.prefix)
	if len(query.Bytes) < n {
		// query is a proper prefix of the block prefix, so every stored
		// key is longer and sorts after it.
		return 1, nil
	}
	remaining := query.Bytes[n:]

	cmpLen := len(d.suffix)
	if len(remaining) < cmpLen {
		cmpLen = len(remaining)
	}
	for j := 0; j < cmpLen; j++ {
		if d.suffix[j] != remaining[j] {
			if d.suffix[j] < remaining[j] {
				return -1, nil
			}
			return 1, nil
		}
	}
	if diff := len(d.suffix) - len(remaining); diff != 0 {
		if diff < 0 {
			return -1, nil
		}
		return 1, nil
	}

	switch {
	case d.snapshotID < query.SnapshotID:
		return -1, nil
	case d.snapshotID > query.SnapshotID:
		return 1, nil
	default:
		return 0, nil
	}
}

// prefixCompare compares the block's cached prefix against query's
// leading bytes, per step 1 of the comparator contract. It is the same
// for every index in the block, so callers compute it once per search.
func (b *Block) prefixCompare(query Key) int {
	n := len(b.prefix)
	if len(query.Bytes) < n {
		n = len(query.Bytes)
	}
	for i := 0; i < n; i++ {
		if b.prefix[i] != query.Bytes[i] {
			if b.prefix[i] < query.Bytes[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// FloorIndex returns the largest index i with entry[i].Key <= k, or -1
// if none.
func (b *Block) FloorIndex(k Key) (int, error) {
	pc := b.prefixCompare(k)
	if pc > 0 {
		// the shared prefix alone exceeds k: every key in the block is
		// greater than k.
		return -1, nil
	}
	if pc < 0 {
		// the shared prefix alone is less than k: every key is smaller.
		return b.entryCount - 1, nil
	}

	low, high, ans := 0, b.entryCount-1, -1
	for low <= high {
		mid := low + (high-low)/2
		c, err := b.compareEntry(mid, k)
		if err != nil {
			return 0, err
		}
		if c <= 0 {
			ans = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	return ans, nil
}

// CeilingIndex returns the smallest index i with entry[i].Key >= k, or
// EntryCount() if none.
func (b *Block) CeilingIndex(k Key) (int, error) {
	pc := b.prefixCompare(k)
	if pc > 0 {
		return 0, nil
	}
	if pc < 0 {
		return b.entryCount, nil
	}

	low, high, ans := 0, b.entryCount-1, b.entryCount
	for low <= high {
		mid := low + (high-low)/2
		c, err := b.compareEntry(mid, k)
		if err != nil {
			return 0, err
		}
		if c >= 0 {
			ans = mid
			high = mid - 1
		} else {
			low = mid + 1
		}
	}
	return ans, nil
}
