// Package tablewriter builds a table file: a sequence of leaf data
// blocks followed by a hierarchical index tree over them, terminated by
// an 8-byte root-offset footer. It is the streaming counterpart to
// tablereader, which descends the same structure for point lookups.
package tablewriter

import (
	"go.uber.org/zap"

	"lsmtable/indexblock"
	"lsmtable/memregion"
	"lsmtable/tableerrors"
)

// IndexWriter builds the hierarchical index tree incrementally as leaf
// records arrive, cascading a pending promotion upward whenever a level
// fills past maxBlockSize.
type IndexWriter struct {
	sink         AppendSink
	log          *zap.SugaredLogger
	maxBlockSize int
	alloc        memregion.Allocator
	alignment    int
	levels       []*indexblock.Builder
	closed       bool
}

// NewIndexWriter creates an IndexWriter over sink. log may be nil; when
// present it receives Debugw calls on level fill/flush and a single
// Infow call on finish.
func NewIndexWriter(sink AppendSink, maxBlockSize int, log *zap.SugaredLogger) *IndexWriter {
	return &IndexWriter{
		sink:         sink,
		log:          log,
		maxBlockSize: maxBlockSize,
		alloc:        memregion.HeapAllocator{},
		alignment:    memregion.DefaultAlignment,
	}
}

// SetAllocator overrides the allocator and alignment used for new index
// block builders created after this call.
func (w *IndexWriter) SetAllocator(alloc memregion.Allocator, alignment int) {
	w.alloc = alloc
	w.alignment = alignment
}

func (w *IndexWriter) newLevelBuilder() *indexblock.Builder {
	return indexblock.NewBuilder(
		indexblock.WithAllocator(w.alloc),
		indexblock.WithAlignment(w.alignment),
	)
}

func (w *IndexWriter) logw(msg string, kv ...interface{}) {
	if w.log != nil {
		w.log.Infow(msg, kv...)
	}
}

// logDebugw logs a level fill/flush decision at Debug, per-level traffic
// that would otherwise drown out the one-line Info summary on Finish.
func (w *IndexWriter) logDebugw(msg string, kv ...interface{}) {
	if w.log != nil {
		w.log.Debugw(msg, kv...)
	}
}

// Write pushes a new leaf Index Record into the tree, cascading
// promotions up through already-full levels per the level-0-to-h walk.
func (w *IndexWriter) Write(record indexblock.Record) error {
	if w.closed {
		return tableerrors.New(tableerrors.WriterClosed, "index writer: write after finish")
	}

	pending := &record
	for i := 0; pending != nil && i < len(w.levels); i++ {
		if w.levels[i].SizeBytes() >= w.maxBlockSize {
			meta, err := w.flushLevel(i)
			if err != nil {
				return err
			}
			w.levels[i] = w.newLevelBuilder()
			if err := w.levels[i].AddRecord(*pending); err != nil {
				return err
			}
			pending = &meta
		} else {
			if err := w.levels[i].AddRecord(*pending); err != nil {
				return err
			}
			pending = nil
		}
	}

	if pending != nil {
		newTop := w.newLevelBuilder()
		if err := newTop.AddRecord(*pending); err != nil {
			return err
		}
		w.levels = append(w.levels, newTop)
		w.logDebugw("index writer: grew a new level", "level", len(w.levels)-1)
	}
	return nil
}

// flushLevel builds level i's current builder and appends it to the
// file, returning the meta record that promotes to the next level.
func (w *IndexWriter) flushLevel(i int) (indexblock.Record, error) {
	built, err := w.levels[i].Build()
	if err != nil {
		return indexblock.Record{}, err
	}
	meta, err := w.writeIndexBlock(built)
	if err != nil {
		return indexblock.Record{}, err
	}
	w.logDebugw("index writer: flushed level", "level", i, "offset", meta.Offset)
	return meta, nil
}

// writeIndexBlock appends block to the file behind a 4-byte length
// prefix, releases its memory region, and returns the meta record that
// points at it.
func (w *IndexWriter) writeIndexBlock(block *indexblock.Block) (indexblock.Record, error) {
	start, ok := blockStartRecord(block)
	if !ok {
		return indexblock.Record{}, tableerrors.New(tableerrors.IndexOutOfBounds, "index writer: empty block cannot be flushed")
	}

	buf, err := blockBytes(block)
	if err != nil {
		return indexblock.Record{}, err
	}

	off := w.sink.Offset()
	if err := w.sink.AppendU32(uint32(len(buf))); err != nil {
		return indexblock.Record{}, err
	}
	if err := w.sink.Append(buf); err != nil {
		return indexblock.Record{}, err
	}
	if err := block.Release(); err != nil {
		return indexblock.Record{}, err
	}

	return indexblock.Record{StartKey: start.StartKey, Offset: off, IsLeaf: false}, nil
}

// Finish closes out every open level from bottom to top, carrying a
// single pending record upward, writes the root offset footer, and
// closes the underlying sink. It must be called exactly once.
func (w *IndexWriter) Finish() (uint64, error) {
	if w.closed {
		return 0, tableerrors.New(tableerrors.WriterClosed, "index writer: finish called twice")
	}
	w.closed = true

	if len(w.levels) == 0 {
		return 0, tableerrors.New(tableerrors.IndexOutOfBounds, "index writer: finish called with no records written")
	}

	var pending *indexblock.Record
	for i := 0; i < len(w.levels); i++ {
		if pending != nil {
			if err := w.levels[i].AddRecord(*pending); err != nil {
				return 0, err
			}
		}
		built, err := w.levels[i].Build()
		if err != nil {
			return 0, err
		}
		meta, err := w.writeIndexBlock(built)
		if err != nil {
			return 0, err
		}
		pending = &meta
	}

	root := *pending
	if err := w.sink.AppendU64(root.Offset); err != nil {
		return 0, err
	}
	w.logw("index writer: finished", "rootOffset", root.Offset, "levels", len(w.levels))

	if err := w.sink.Close(); err != nil {
		return 0, err
	}
	return root.Offset, nil
}

func blockStartRecord(block *indexblock.Block) (indexblock.Record, bool) {
	if block.RecordCount() == 0 {
		return indexblock.Record{}, false
	}
	r, err := block.Record(0)
	if err != nil {
		return indexblock.Record{}, false
	}
	return r, true
}

// blockBytes pulls the serialized bytes back out of a just-built Block
// so writeIndexBlock can append them. The block owns its region until
// writeIndexBlock releases it after the append.
func blockBytes(block *indexblock.Block) ([]byte, error) {
	return indexblock.RawBytes(block)
}
