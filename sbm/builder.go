package sbm

import (
	"encoding/binary"

	"lsmtable/memregion"
	"lsmtable/tableerrors"
	"lsmtable/varint"
)

type pendingEntry struct {
	key   Key
	value Value
}

// Builder accumulates entries in strictly ascending Key order and
// serializes them into a single Block on Build. Keys and values are
// borrowed: the Builder holds the caller's slices until Build runs, so
// callers must not mutate them in between.
type Builder struct {
	alloc     memregion.Allocator
	alignment int

	entries   []pendingEntry
	hasFirst  bool
	firstKey  []byte
	prefixLen int
	strict    bool
}

// BuilderOption configures a Builder at construction time.
type BuilderOption func(*Builder)

// WithAllocator overrides the default heap allocator.
func WithAllocator(a memregion.Allocator) BuilderOption {
	return func(b *Builder) { b.alloc = a }
}

// WithAlignment overrides the default page alignment request.
func WithAlignment(n int) BuilderOption {
	return func(b *Builder) { b.alignment = n }
}

// WithStrictOrdering enables fail-fast OrderingViolation checks on Add.
// Callers that have already validated ordering upstream may disable it
// for a small speedup.
func WithStrictOrdering(strict bool) BuilderOption {
	return func(b *Builder) { b.strict = strict }
}

// NewBuilder creates an empty Builder with strict ordering enabled and
// the default heap allocator / page alignment.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		alloc:     memregion.HeapAllocator{},
		alignment: memregion.DefaultAlignment,
		strict:    true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Add appends an entry. Callers must add entries in strictly ascending
// Key order; with strict ordering enabled (the default), a violation
// fails fast with OrderingViolation.
func (b *Builder) Add(key Key, value Value) error {
	if b.strict && len(b.entries) > 0 {
		last := b.entries[len(b.entries)-1].key
		if last.Compare(key) >= 0 {
			return tableerrors.New(tableerrors.OrderingViolation, "keys must be added in strictly ascending order")
		}
	}

	if !b.hasFirst {
		b.hasFirst = true
		b.firstKey = key.Bytes
		b.prefixLen = len(key.Bytes)
	} else {
		n := b.prefixLen
		if len(key.Bytes) < n {
			n = len(key.Bytes)
		}
		shared := 0
		for shared < n && b.firstKey[shared] == key.Bytes[shared] {
			shared++
		}
		b.prefixLen = shared
	}

	b.entries = append(b.entries, pendingEntry{key: key, value: value})
	return nil
}

// Len reports the number of entries added so far.
func (b *Builder) Len() int {
	return len(b.entries)
}

// FirstKey returns the key of the first entry added. Panics if no
// entries have been added yet; callers must check Len() first.
func (b *Builder) FirstKey() Key {
	return b.entries[0].key
}

// Build consumes the Builder, allocates one Region of exactly the
// computed size, serializes the block, and returns a Block owning that
// Region.
func (b *Builder) Build() (*Block, error) {
	n := len(b.entries)
	prefixLen := 0
	if n > 0 {
		prefixLen = b.prefixLen
	}

	total := 4 + prefixLen + 4 + 4*n
	for _, e := range b.entries {
		suffix := e.key.Bytes[prefixLen:]
		total += varint.Size32(uint32(len(suffix))) + len(suffix) +
			varint.Size64(e.key.SnapshotID) +
			varint.Size32(uint32(len(e.value))) + len(e.value)
	}

	region, err := b.alloc.Allocate(total, b.alignment)
	if err != nil {
		return nil, err
	}
	buf, err := region.Bytes()
	if err != nil {
		return nil, err
	}

	pos := 0
	binary.LittleEndian.PutUint32(buf[pos:], uint32(prefixLen))
	pos += 4
	if prefixLen > 0 {
		copy(buf[pos:], b.firstKey[:prefixLen])
	}
	pos += prefixLen
	binary.LittleEndian.PutUint32(buf[pos:], uint32(n))
	pos += 4

	offsetsPos := pos
	pos += 4 * n

	offsets := make([]uint32, n)
	for i, e := range b.entries {
		offsets[i] = uint32(pos)
		suffix := e.key.Bytes[prefixLen:]

		w := varint.PutUint32(buf[pos:], uint32(len(suffix)))
		pos += w
		copy(buf[pos:], suffix)
		pos += len(suffix)

		w = varint.PutUint64(buf[pos:], e.key.SnapshotID)
		pos += w

		w = varint.PutUint32(buf[pos:], uint32(len(e.value)))
		pos += w
		copy(buf[pos:], e.value)
		pos += len(e.value)
	}
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(buf[offsetsPos+i*4:], off)
	}

	return newBlockFromRegion(region)
}
