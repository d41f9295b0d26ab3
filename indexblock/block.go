package indexblock

import (
	"lsmtable/memregion"
	"lsmtable/sbm"
	"lsmtable/tableerrors"
)

// Block is a sorted block of Index Records. It wraps an sbm.Block and
// decodes each entry's value into a Record on the way out.
type Block struct {
	inner *sbm.Block
}

// NewBlock reconstructs a Block from a region read back from a table
// file.
func NewBlock(region *memregion.Region) (*Block, error) {
	inner, err := sbm.NewBlock(region)
	if err != nil {
		return nil, err
	}
	return &Block{inner: inner}, nil
}

// RecordCount reports the number of records in the block.
func (b *Block) RecordCount() int {
	return b.inner.EntryCount()
}

// Record returns the record at index i.
func (b *Block) Record(i int) (Record, error) {
	e, err := b.inner.Get(i)
	if err != nil {
		return Record{}, err
	}
	return entryToRecord(e), nil
}

// Descend returns the index of the child record to follow for key: the
// largest record whose StartKey is <= key, since every key in that
// child's subtree sorts at or after its StartKey.
func (b *Block) Descend(key sbm.Key) (int, error) {
	i, err := b.inner.FloorIndex(key)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, tableerrors.New(tableerrors.IndexOutOfBounds, "indexblock: key precedes every record")
	}
	return i, nil
}

// Release releases the block's backing region.
func (b *Block) Release() error {
	return b.inner.Release()
}

// RawBytes returns the block's serialized backing bytes, for a writer
// appending the whole block verbatim to a table file.
func RawBytes(b *Block) ([]byte, error) {
	return b.inner.Bytes()
}
