// Package tablereader descends a table file produced by tablewriter:
// read the root-offset footer, descend the index tree by binary search
// on startKey, then binary-search the leaf data block for the target
// entry. It exercises the read paths of sbm and indexblock end to end.
package tablereader

import (
	"encoding/binary"
	"fmt"
	"io"
	"io/fs"

	"github.com/golang/snappy"

	"lsmtable/indexblock"
	"lsmtable/memregion"
	"lsmtable/sbm"
	"lsmtable/tableerrors"
)

// ErrKeyNotFound is returned by Get when no entry matches the query.
var ErrKeyNotFound = fmt.Errorf("tablereader: key not found")

const footerSize = 8

// statReaderAtCloser is the file handle contract a Reader needs:
// random-access reads plus file size.
type statReaderAtCloser interface {
	Stat() (fs.FileInfo, error)
	io.ReaderAt
	io.Closer
}

// Reader opens a completed table file for point lookups.
type Reader struct {
	file      statReaderAtCloser
	fileSize  int64
	useSnappy bool
}

// Open opens a table file for reading. useSnappy must match the value
// the writer used, since compression is not recorded in the file.
func Open(file statReaderAtCloser, useSnappy bool) (*Reader, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, tableerrors.Wrap(tableerrors.IoError, err, "stat table file")
	}
	return &Reader{file: file, fileSize: info.Size(), useSnappy: useSnappy}, nil
}

func (r *Reader) readAt(off int64, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.file.ReadAt(buf, off); err != nil {
		return nil, tableerrors.Wrap(tableerrors.IoError, err, "read table file")
	}
	return buf, nil
}

// readLengthPrefixedBlock reads a 4-byte length prefix at off followed
// by that many bytes, and wraps them in a Region for block parsing.
func (r *Reader) readLengthPrefixedBlock(off int64) (*memregion.Region, error) {
	lenBuf, err := r.readAt(off, 4)
	if err != nil {
		return nil, err
	}
	n := int(binary.LittleEndian.Uint32(lenBuf))
	buf, err := r.readAt(off+4, n)
	if err != nil {
		return nil, err
	}
	return memregion.NewRegion(buf), nil
}

func (r *Reader) readFooter() (uint64, error) {
	buf, err := r.readAt(r.fileSize-footerSize, footerSize)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf), nil
}

// Get looks up key, descending from the root index block to the leaf
// data block that would contain it, then binary-searching that leaf.
func (r *Reader) Get(key sbm.Key) (sbm.Value, error) {
	rootOffset, err := r.readFooter()
	if err != nil {
		return nil, err
	}

	offset := int64(rootOffset)
	isLeaf := false
	for !isLeaf {
		region, err := r.readLengthPrefixedBlock(offset)
		if err != nil {
			return nil, err
		}
		blk, err := indexblock.NewBlock(region)
		if err != nil {
			return nil, err
		}
		i, err := blk.Descend(key)
		if err != nil {
			_ = blk.Release()
			if tableerrors.Of(err, tableerrors.IndexOutOfBounds) {
				return nil, ErrKeyNotFound
			}
			return nil, err
		}
		rec, err := blk.Record(i)
		if err != nil {
			_ = blk.Release()
			return nil, err
		}
		if err := blk.Release(); err != nil {
			return nil, err
		}
		offset = int64(rec.Offset)
		isLeaf = rec.IsLeaf
	}

	return r.getFromLeaf(offset, key)
}

func (r *Reader) getFromLeaf(offset int64, key sbm.Key) (sbm.Value, error) {
	region, err := r.readLengthPrefixedBlock(offset)
	if err != nil {
		return nil, err
	}
	buf, err := region.Bytes()
	if err != nil {
		return nil, err
	}
	if r.useSnappy {
		decoded, err := snappy.Decode(nil, buf)
		if err != nil {
			return nil, tableerrors.Wrap(tableerrors.IoError, err, "decompress leaf block")
		}
		region = memregion.NewRegion(decoded)
	}

	leaf, err := sbm.NewBlock(region)
	if err != nil {
		return nil, err
	}
	defer leaf.Release()

	i, err := leaf.CeilingIndex(key)
	if err != nil {
		return nil, err
	}
	if i >= leaf.EntryCount() {
		return nil, ErrKeyNotFound
	}
	entry, err := leaf.Get(i)
	if err != nil {
		return nil, err
	}
	if !entry.Key.Equal(key) {
		return nil, ErrKeyNotFound
	}
	return entry.Value, nil
}

// Close closes the underlying file handle.
func (r *Reader) Close() error {
	return tableerrors.WrapOrNil(tableerrors.IoError, r.file.Close(), "close table file")
}
