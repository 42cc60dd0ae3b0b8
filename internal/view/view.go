// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package view reinterprets mapped memory as byte slices and typed slices.
package view

import (
	"unsafe"

	"github.com/pkg/errors"
)

// SizeOf returns the byte size of T's memory representation.
func SizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// AlignOf returns the alignment requirement of T.
func AlignOf[T any]() int {
	var zero T
	return int(unsafe.Alignof(zero))
}

// Bytes returns a byte slice of the given length over the memory at p.
// The caller guarantees that p points to at least n valid bytes.
func Bytes(p unsafe.Pointer, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Slice overlays a []T of the given element count onto b.
// The buffer must be large enough for count elements and its first byte
// must satisfy T's alignment. The result aliases b.
func Slice[T any](b []byte, count int) ([]T, error) {
	if count < 0 {
		return nil, errors.Errorf("negative element count %d", count)
	}
	var zero T
	size, align := int(unsafe.Sizeof(zero)), uintptr(unsafe.Alignof(zero))
	if size == 0 {
		return nil, errors.Errorf("zero-sized element type %T", zero)
	}
	if count > (int(^uint(0)>>1))/size {
		return nil, errors.Errorf("element count %d overflows the address space", count)
	}
	if need := count * size; need > len(b) {
		return nil, errors.Errorf("need %d bytes for %d elements, buffer holds %d", need, count, len(b))
	}
	if count == 0 {
		return nil, nil
	}
	p := unsafe.Pointer(&b[0])
	if uintptr(p)%align != 0 {
		return nil, errors.Errorf("buffer address %#x is not aligned to %d", uintptr(p), align)
	}
	return unsafe.Slice((*T)(p), count), nil
}
