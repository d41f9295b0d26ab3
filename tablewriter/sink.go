package tablewriter

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"lsmtable/tableerrors"
)

// syncCloser is the file handle contract an AppendSink needs beyond
// plain io.Writer: the ability to flush to stable storage and close.
type syncCloser interface {
	io.Writer
	io.Closer
	Sync() error
}

// AppendSink is an append-only byte sink: every write goes to the
// current end of the underlying file, and the sink tracks the absolute
// offset at which each write began.
type AppendSink interface {
	// Offset returns the current end-of-file offset: where the next
	// Append/AppendU32/AppendU64 call will write.
	Offset() uint64
	AppendU32(v uint32) error
	AppendU64(v uint64) error
	Append(p []byte) error
	Close() error
}

// fileSink is the disk-backed AppendSink, buffered the way the
// teacher's sstable.Writer buffers writes before flushing to the
// underlying file.
type fileSink struct {
	file   syncCloser
	bw     *bufio.Writer
	offset uint64
	closed bool
}

// NewFileSink opens path for writing, creating it or truncating an
// existing file, and wraps it as an AppendSink.
func NewFileSink(path string) (AppendSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, tableerrors.Wrap(tableerrors.IoError, err, "open table file")
	}
	return WrapFileSink(f), nil
}

// WrapFileSink wraps an already-open file as an AppendSink.
func WrapFileSink(f syncCloser) AppendSink {
	return &fileSink{file: f, bw: bufio.NewWriterSize(f, 64*1024)}
}

func (s *fileSink) Offset() uint64 {
	return s.offset
}

func (s *fileSink) AppendU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return s.Append(buf[:])
}

func (s *fileSink) AppendU64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return s.Append(buf[:])
}

func (s *fileSink) Append(p []byte) error {
	if s.closed {
		return tableerrors.New(tableerrors.WriterClosed, "sink: append after close")
	}
	n, err := s.bw.Write(p)
	s.offset += uint64(n)
	if err != nil {
		return tableerrors.Wrap(tableerrors.IoError, err, "append to table file")
	}
	return nil
}

func (s *fileSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.bw.Flush(); err != nil {
		return tableerrors.Wrap(tableerrors.IoError, err, "flush table file")
	}
	if err := s.file.Sync(); err != nil {
		return tableerrors.Wrap(tableerrors.IoError, err, "sync table file")
	}
	return tableerrors.WrapOrNil(tableerrors.IoError, s.file.Close(), "close table file")
}
