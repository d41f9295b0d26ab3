package tablewriter

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lsmtable/sbm"
	"lsmtable/tableoptions"
)

func openSink(t *testing.T) (AppendSink, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "table.sst")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	return sink, path
}

func TestWriterProducesRootOffsetFooter(t *testing.T) {
	sink, path := openSink(t)
	opts := tableoptions.Apply(tableoptions.WithChunkSize(2), tableoptions.WithMaxIndexBlockSize(4096))
	w := NewWriter(sink, opts)

	for i := 0; i < 10; i++ {
		key := sbm.Key{Bytes: []byte(fmt.Sprintf("key-%03d", i)), SnapshotID: 1}
		require.NoError(t, w.Add(key, sbm.Value(fmt.Sprintf("val-%d", i))))
	}

	root, err := w.Finish()
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(8))
	require.Less(t, int64(root), info.Size())
}

func TestWriterRejectsAddAfterFinish(t *testing.T) {
	sink, _ := openSink(t)
	w := NewWriter(sink, tableoptions.NewDefaultOptions())
	require.NoError(t, w.Add(sbm.Key{Bytes: []byte("a")}, sbm.Value("1")))
	_, err := w.Finish()
	require.NoError(t, err)

	err = w.Add(sbm.Key{Bytes: []byte("b")}, sbm.Value("2"))
	require.Error(t, err)
}

func TestWriterFinishTwiceFails(t *testing.T) {
	sink, _ := openSink(t)
	w := NewWriter(sink, tableoptions.NewDefaultOptions())
	require.NoError(t, w.Add(sbm.Key{Bytes: []byte("a")}, sbm.Value("1")))
	_, err := w.Finish()
	require.NoError(t, err)

	_, err = w.Finish()
	require.Error(t, err)
}

func TestIndexWriterGrowsLevelsWithManyLeaves(t *testing.T) {
	sink, _ := openSink(t)
	opts := tableoptions.Apply(tableoptions.WithChunkSize(1), tableoptions.WithMaxIndexBlockSize(64))
	w := NewWriter(sink, opts)

	for i := 0; i < 40; i++ {
		key := sbm.Key{Bytes: []byte(fmt.Sprintf("k%04d", i)), SnapshotID: 1}
		require.NoError(t, w.Add(key, sbm.Value("v")))
	}

	root, err := w.Finish()
	require.NoError(t, err)
	require.Positive(t, root)
	require.Greater(t, len(w.idx.levels), 1)
}
