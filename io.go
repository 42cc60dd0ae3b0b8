// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// Reader reads a segment's payload bytes. It holds a reference to the
// segment, so the latter can't be gc'ed while the reader is in use.
type Reader struct {
	segment any
	*bytes.Reader
}

// NewReader creates a reader over the segment's payload.
func NewReader[T any](segment *Segment[T]) *Reader {
	return &Reader{
		segment: segment,
		Reader:  bytes.NewReader(segment.Bytes()),
	}
}

// Writer writes into a segment's payload bytes. It holds a reference to
// the segment, so the latter can't be gc'ed while the writer is in use.
type Writer struct {
	segment any
	data    []byte
	pos     int64
}

// NewWriter creates a writer over the segment's payload.
func NewWriter[T any](segment *Segment[T]) *Writer {
	return &Writer{segment: segment, data: segment.Bytes()}
}

// WriteAt is to implement io.WriterAt.
func (w *Writer) WriteAt(p []byte, off int64) (n int, err error) {
	if off < 0 {
		return 0, errors.Errorf("negative position %d", off)
	}
	if off >= int64(len(w.data)) {
		return 0, io.EOF
	}
	n = len(w.data) - int(off)
	if n > len(p) {
		n = len(p)
	}
	copy(w.data[off:], p[:n])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// Write is to implement io.Writer.
func (w *Writer) Write(p []byte) (n int, err error) {
	n, err = w.WriteAt(p, w.pos)
	w.pos += int64(n)
	return n, err
}
