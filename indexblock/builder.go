package indexblock

import (
	"lsmtable/memregion"
	"lsmtable/sbm"
)

// Builder accumulates Index Records in ascending StartKey order and
// freezes them into a Block, the same way sbm.Builder freezes entries
// into an SBM.
type Builder struct {
	sbmOpts     []sbm.BuilderOption
	inner       *sbm.Builder
	count       int
	startRecord Record
	hasStart    bool
	approxBytes int
}

// BuilderOption configures a Builder at construction time.
type BuilderOption func(*Builder)

// WithAllocator overrides the default heap allocator used by build().
func WithAllocator(a memregion.Allocator) BuilderOption {
	return func(b *Builder) { b.sbmOpts = append(b.sbmOpts, sbm.WithAllocator(a)) }
}

func WithAlignment(n int) BuilderOption {
	return func(b *Builder) { b.sbmOpts = append(b.sbmOpts, sbm.WithAlignment(n)) }
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{}
	for _, opt := range opts {
		opt(b)
	}
	b.inner = sbm.NewBuilder(b.sbmOpts...)
	return b
}

// AddRecord appends r. Records must be added in strictly ascending
// StartKey order.
func (b *Builder) AddRecord(r Record) error {
	if !b.hasStart {
		b.hasStart = true
		b.startRecord = r
	}
	b.count++
	b.approxBytes += len(r.StartKey.Bytes) + 9 + 24
	return b.inner.Add(r.StartKey, encodeRecordValue(r.Offset, r.IsLeaf))
}

// SizeBytes returns a conservative upper bound on the block's
// serialized size, used by the Index Writer to decide when a level is
// full.
func (b *Builder) SizeBytes() int {
	return b.approxBytes
}

// Count reports the number of records added so far.
func (b *Builder) Count() int {
	return b.count
}

// StartRecord returns the first record added to this builder. Used to
// propagate the start key of a flushed block up to its parent level.
func (b *Builder) StartRecord() (Record, bool) {
	return b.startRecord, b.hasStart
}

// Build consumes the Builder and freezes it into a Block.
func (b *Builder) Build() (*Block, error) {
	inner, err := b.inner.Build()
	if err != nil {
		return nil, err
	}
	return &Block{inner: inner}, nil
}
