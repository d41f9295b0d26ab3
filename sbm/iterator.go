package sbm

import (
	"math"

	"lsmtable/tableerrors"
)

// Iterator walks a Block's entries in one direction. It is
// non-restartable: once exhausted, a new Iterator must be created.
type Iterator struct {
	block     *Block
	pos       int
	step      int
	remaining int
}

// Ascending returns an Iterator over entries [start, EntryCount()) in
// increasing order.
func (b *Block) Ascending(start int) (*Iterator, error) {
	if start < 0 || start > b.entryCount {
		return nil, tableerrors.New(tableerrors.IndexOutOfBounds, "sbm: iterator start out of range")
	}
	return &Iterator{block: b, pos: start, step: 1, remaining: b.entryCount - start}, nil
}

// Descending returns an Iterator over entries [0, start] in decreasing
// order.
func (b *Block) Descending(start int) (*Iterator, error) {
	if start < -1 || start >= b.entryCount {
		return nil, tableerrors.New(tableerrors.IndexOutOfBounds, "sbm: iterator start out of range")
	}
	return &Iterator{block: b, pos: start, step: -1, remaining: start + 1}, nil
}

// AscendingFrom returns an ascending Iterator starting at the lowest
// version of fromKey's byte sequence, or from the beginning of the
// block if fromKey is nil.
func (b *Block) AscendingFrom(fromKey *Key) (*Iterator, error) {
	if fromKey == nil {
		return b.Ascending(0)
	}
	start, err := b.CeilingIndex(Key{Bytes: fromKey.Bytes, SnapshotID: 0})
	if err != nil {
		return nil, err
	}
	return b.Ascending(start)
}

// DescendingFrom returns a descending Iterator starting at the highest
// version of fromKey's byte sequence, or from the end of the block if
// fromKey is nil.
func (b *Block) DescendingFrom(fromKey *Key) (*Iterator, error) {
	if fromKey == nil {
		return b.Descending(b.entryCount - 1)
	}
	start, err := b.FloorIndex(Key{Bytes: fromKey.Bytes, SnapshotID: math.MaxUint64})
	if err != nil {
		return nil, err
	}
	return b.Descending(start)
}

// Next reports whether another entry is available and, if so, advances
// to it.
func (it *Iterator) Next() bool {
	if it.remaining <= 0 {
		return false
	}
	it.remaining--
	return true
}

// Entry returns the entry at the iterator's current position. Valid
// only after a Next call that returned true.
func (it *Iterator) Entry() (Entry, error) {
	e, err := it.block.Get(it.pos)
	it.pos += it.step
	return e, err
}
