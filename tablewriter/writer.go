package tablewriter

import (
	"go.uber.org/zap"

	"github.com/golang/snappy"

	"lsmtable/bloomfilter"
	"lsmtable/indexblock"
	"lsmtable/memregion"
	"lsmtable/sbm"
	"lsmtable/tableerrors"
	"lsmtable/tableoptions"
)

// Writer is the top-level streaming entry point: callers submit sorted
// (key, value) entries via Add, and the Writer buffers them into leaf
// data blocks, flushes each full block to the sink, and feeds the
// resulting Index Record into the IndexWriter cascade. Finish drains
// any partial leaf and writes the root-offset footer.
type Writer struct {
	sink   AppendSink
	opts   tableoptions.Options
	log    *zap.SugaredLogger
	bloom  *bloomfilter.Writer
	idx    *IndexWriter
	leaf   *sbm.Builder
	alloc  memregion.Allocator
	closed bool
}

// WriterOption configures a Writer at construction time.
type WriterOption func(*Writer)

// WithLogger attaches a structured logger for diagnostic output.
func WithLogger(log *zap.SugaredLogger) WriterOption {
	return func(w *Writer) { w.log = log }
}

// WithBloomFilter attaches a bloom filter collaborator; every key
// passed to Add is forwarded to it via Put.
func WithBloomFilter(b *bloomfilter.Writer) WriterOption {
	return func(w *Writer) { w.bloom = b }
}

// WithAllocator overrides the default heap allocator used for leaf and
// index blocks.
func WithAllocator(a memregion.Allocator) WriterOption {
	return func(w *Writer) { w.alloc = a }
}

// NewWriter creates a Writer appending to sink under opts.
func NewWriter(sink AppendSink, opts tableoptions.Options, options ...WriterOption) *Writer {
	w := &Writer{
		sink:  sink,
		opts:  opts,
		alloc: memregion.HeapAllocator{},
	}
	for _, opt := range options {
		opt(w)
	}
	w.idx = NewIndexWriter(sink, opts.MaxIndexBlockSize, w.log)
	w.idx.SetAllocator(w.alloc, w.opts.AllocAlignment)
	w.leaf = w.newLeafBuilder()
	return w
}

func (w *Writer) newLeafBuilder() *sbm.Builder {
	return sbm.NewBuilder(
		sbm.WithAllocator(w.alloc),
		sbm.WithAlignment(w.opts.AllocAlignment),
	)
}

func (w *Writer) logw(msg string, kv ...interface{}) {
	if w.log != nil {
		w.log.Infow(msg, kv...)
	}
}

// Add submits the next entry. Entries must arrive in strictly ascending
// Key order across the whole table, matching the per-block ordering
// contract of sbm.Builder.
func (w *Writer) Add(key sbm.Key, value sbm.Value) error {
	if w.closed {
		return tableerrors.New(tableerrors.WriterClosed, "table writer: add after finish")
	}

	if w.bloom != nil {
		w.bloom.Put(key.Bytes)
	}

	if err := w.leaf.Add(key, value); err != nil {
		return err
	}
	if w.leaf.Len() >= w.opts.ChunkSize {
		return w.flushLeaf()
	}
	return nil
}

func (w *Writer) flushLeaf() error {
	if w.leaf.Len() == 0 {
		return nil
	}
	startKey := w.leaf.FirstKey()

	built, err := w.leaf.Build()
	if err != nil {
		return err
	}
	buf, err := built.Bytes()
	if err != nil {
		return err
	}
	if w.opts.UseSnappy {
		buf = snappy.Encode(nil, buf)
	}

	off := w.sink.Offset()
	if err := w.sink.AppendU32(uint32(len(buf))); err != nil {
		return err
	}
	if err := w.sink.Append(buf); err != nil {
		return err
	}
	if err := built.Release(); err != nil {
		return err
	}

	w.logw("table writer: flushed leaf", "offset", off, "size", len(buf))
	w.leaf = w.newLeafBuilder()

	return w.idx.Write(indexblock.Record{StartKey: startKey, Offset: off, IsLeaf: true})
}

// Finish flushes any partial leaf block, finalizes the index tree, and
// closes the underlying sink. It must be called exactly once.
func (w *Writer) Finish() (uint64, error) {
	if w.closed {
		return 0, tableerrors.New(tableerrors.WriterClosed, "table writer: finish called twice")
	}
	if err := w.flushLeaf(); err != nil {
		return 0, err
	}
	w.closed = true
	root, err := w.idx.Finish()
	if err != nil {
		return 0, err
	}
	w.logw("table writer: finished", "rootOffset", root)
	return root, nil
}
