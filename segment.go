// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import (
	"math"
	"runtime"

	"github.com/pkg/errors"

	"github.com/nxgtw/go-shm/internal/view"
)

// Segment is a typed view over a shared memory segment. The payload
// starts right past the header, and Data aliases the mapped memory, so
// a store through one instance's slice is immediately visible to every
// process mapping the segment.
//
// The library never locks the payload. Concurrent readers and writers
// in different processes see each other's bytes with no ordering
// guarantees beyond what the hardware gives; coordination, when needed,
// belongs to the callers.
type Segment[T any] struct {
	raw    *rawSegment
	data   []T
	name   string
	size   int
	closed bool
}

// Create makes a segment sized for count elements of T plus the header,
// stamps the header, and returns a fully mapped instance. Creation is
// exclusive: it never opens an existing segment, and a live object with
// the same name fails it with AlreadyExists.
func Create[T any](name string, count int) (*Segment[T], error) {
	elem := view.SizeOf[T]()
	if elem == 0 {
		return nil, errors.Errorf("zero-sized element type %T", *new(T))
	}
	if count < 0 {
		return nil, errors.Errorf("negative element count %d", count)
	}
	if count > (math.MaxInt-headerLen)/elem {
		return nil, errors.Errorf("segment size for %d elements overflows", count)
	}
	size := headerLen + count*elem
	raw, err := createSegment(name, size)
	if err != nil {
		return nil, err
	}
	putHeader(raw.bytes(), size, count)
	data, err := view.Slice[T](raw.bytes()[headerLen:], count)
	if err != nil {
		raw.close()
		return nil, errors.Wrapf(err, "unable to overlay segment %q", name)
	}
	return newSegment(raw, data, name, size), nil
}

// Open maps an existing segment and recovers the element count its
// creator stored, whatever length the opener may have expected. The
// element type must match the creator's: the header does not record it,
// so a segment opened with the wrong type of the same size reads as
// garbage. A type whose payload cannot fit the mapped length is
// refused.
func Open[T any](name string) (*Segment[T], error) {
	raw, err := openSegment(name)
	if err != nil {
		return nil, err
	}
	b := raw.bytes()
	if len(b) < headerLen {
		raw.release()
		return nil, errors.Errorf("segment %q is too short to carry a header", name)
	}
	_, count := getHeader(b)
	data, err := view.Slice[T](b[headerLen:], count)
	if err != nil {
		raw.release()
		return nil, errors.Wrapf(err, "unable to overlay segment %q with %d elements", name, count)
	}
	return newSegment(raw, data, name, len(b)), nil
}

// Exists reports whether name refers to a live segment this process
// could open. It never returns an error: every failure, a malformed
// name included, reads as absence.
func Exists(name string) bool {
	return segmentExists(name)
}

// Destroy removes a segment's name without an instance at hand.
// Instances which still hold mappings keep working; backends whose
// objects have no removable name return an error.
func Destroy(name string) error {
	return destroySegment(name)
}

func newSegment[T any](raw *rawSegment, data []T, name string, size int) *Segment[T] {
	s := &Segment[T]{raw: raw, data: data, name: name, size: size}
	runtime.SetFinalizer(s.raw, (*rawSegment).release)
	return s
}

// Data returns the typed payload. The slice aliases shared memory and
// must not be used after Close.
func (s *Segment[T]) Data() []T {
	return s.data
}

// Len returns the element count the segment was created with.
func (s *Segment[T]) Len() int {
	return len(s.data)
}

// Size returns the segment's byte length, header included.
func (s *Segment[T]) Size() int {
	return s.size
}

// Name returns the name or path this instance was created or opened
// with.
func (s *Segment[T]) Name() string {
	return s.name
}

// Path returns the key another process passes to Open to reach this
// segment. On named backends it is the name itself; the anonymous
// backend hands out a /proc/<pid>/fd/<fd> entry which stays valid while
// this instance is open.
func (s *Segment[T]) Path() string {
	return s.raw.path()
}

// Fd returns the descriptor or handle backing the mapping, valid until
// Close.
func (s *Segment[T]) Fd() uintptr {
	return s.raw.fd()
}

// Bytes returns the payload as raw bytes, aliasing the same memory as
// Data. It must not be used after Close.
func (s *Segment[T]) Bytes() []byte {
	if s.closed {
		return nil
	}
	return s.raw.bytes()[headerLen:]
}

// Flush schedules dirty pages for writeback to the backing object,
// waiting for completion unless async is set.
func (s *Segment[T]) Flush(async bool) error {
	if s.closed {
		return errors.New("flush of a closed segment")
	}
	return s.raw.flush(async)
}

// Close releases the mapping and the descriptor and, on backends where
// names outlive instances, removes the name. Slices handed out by Data
// and Bytes die with it. Close is idempotent: the second and later
// calls do nothing and return nil.
func (s *Segment[T]) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.data = nil
	runtime.SetFinalizer(s.raw, nil)
	return s.raw.close()
}
