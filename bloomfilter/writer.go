// Package bloomfilter adapts github.com/bits-and-blooms/bloom/v3 behind
// the Put/Finish collaborator contract the table writer depends on. The
// table writer never inspects or constructs the filter itself, only
// feeds it keys as they are written and asks for the finished blob.
package bloomfilter

import (
	"bytes"

	"github.com/bits-and-blooms/bloom/v3"
)

// Writer receives keys during a table-build session and produces an
// opaque serialized filter blob on Finish.
type Writer struct {
	filter *bloom.BloomFilter
}

// NewWriter creates a Writer sized for expectedEntries keys at the
// given target false-positive rate.
func NewWriter(expectedEntries uint, falsePositiveRate float64) *Writer {
	return &Writer{filter: bloom.NewWithEstimates(expectedEntries, falsePositiveRate)}
}

// Put registers key with the filter.
func (w *Writer) Put(key []byte) {
	w.filter.Add(key)
}

// Finish serializes the filter to an opaque blob suitable for appending
// to a filter file.
func (w *Writer) Finish() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.filter.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Reader wraps a deserialized filter for membership testing.
type Reader struct {
	filter *bloom.BloomFilter
}

// NewReaderFromBytes reconstructs a Reader from a blob produced by
// Writer.Finish.
func NewReaderFromBytes(blob []byte) (*Reader, error) {
	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(blob)); err != nil {
		return nil, err
	}
	return &Reader{filter: f}, nil
}

// MayContain reports whether key might be present. A false result is
// certain; a true result may be a false positive.
func (r *Reader) MayContain(key []byte) bool {
	return r.filter.Test(key)
}
