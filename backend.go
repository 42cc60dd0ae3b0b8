// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

// Each build target compiles exactly one backend, which supplies
// rawSegment along with createSegment, openSegment, segmentExists and
// destroySegment:
//
//	POSIX shared memory   shm_posix.go    darwin, freebsd, or linux with
//	                                      the shm_posix build tag
//	anonymous memory file shm_memfd.go    linux default
//	file-mapping objects  shm_windows.go  windows
//
// backendSegment pins down the method set segment.go relies on.
type backendSegment interface {
	bytes() []byte
	fd() uintptr
	path() string
	flush(async bool) error
	release() error
	close() error
}

var _ backendSegment = (*rawSegment)(nil)

// segmentPerm is the mode new objects are created with on backends
// where the object has file permissions.
const segmentPerm = 0600
