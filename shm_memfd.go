// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build linux && !shm_posix

package shm

import (
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const namedBackend = false

// progTags is empty: a default build already selects this backend, so
// test child processes need no extra tags.
const progTags = ""

// memfdNameMax is the kernel limit on a memfd label, the 255 bytes of a
// filename less the "memfd:" prefix.
const memfdNameMax = 249

// rawSegment is an anonymous memory file. The label is not a name in
// any namespace, it only shows up in /proc listings; other processes
// reach a live segment through a /proc/<pid>/fd/<fd> entry published by
// an instance that holds a descriptor.
type rawSegment struct {
	name string
	file *os.File
	m    mmap.MMap
}

// createSegment makes an anonymous memory file of the given byte length
// and maps it. Labels never collide, so creation cannot fail with
// AlreadyExists on this backend.
func createSegment(name string, size int) (*rawSegment, error) {
	if len(name) > memfdNameMax {
		return nil, newError(NameTooLong, "memfd_create", name, nil)
	}
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, wrapOSError("memfd_create", name, err)
	}
	file := os.NewFile(uintptr(fd), name)
	if err = file.Truncate(int64(size)); err != nil {
		file.Close()
		return nil, wrapOSError("ftruncate", name, err)
	}
	m, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		return nil, mappingError("mmap", name, err)
	}
	return &rawSegment{name: name, file: file, m: m}, nil
}

// openSegment maps a live segment through a path to one of its
// descriptors, usually a /proc/<pid>/fd/<fd> entry from path().
func openSegment(path string) (*rawSegment, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, wrapOSError("open", path, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, wrapOSError("fstat", path, err)
	}
	m, err := mmap.MapRegion(file, int(fi.Size()), mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		return nil, mappingError("mmap", path, err)
	}
	return &rawSegment{name: path, file: file, m: m}, nil
}

// segmentExists probes the path. It turns false once the descriptor
// behind that particular path closes, even while other descriptors keep
// the object itself alive.
func segmentExists(path string) bool {
	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// destroySegment is unsupported here: an anonymous object has no name
// to remove, its storage goes away with the last descriptor and mapping.
func destroySegment(string) error {
	return errors.New("anonymous segments cannot be destroyed by name")
}

func (s *rawSegment) bytes() []byte {
	return s.m
}

func (s *rawSegment) fd() uintptr {
	if s.file == nil {
		return ^uintptr(0)
	}
	return s.file.Fd()
}

// path returns the key another process can pass to Open for as long as
// this instance keeps its descriptor. It needs procfs, so it is of
// practical use on linux only.
func (s *rawSegment) path() string {
	if s.file == nil {
		return ""
	}
	return fmt.Sprintf("/proc/%d/fd/%d", os.Getpid(), s.file.Fd())
}

func (s *rawSegment) flush(async bool) error {
	if async {
		return unix.Msync(s.m, unix.MS_ASYNC)
	}
	return s.m.Flush()
}

// release drops the mapping and the descriptor. Safe to call more than
// once.
func (s *rawSegment) release() error {
	if s.m != nil {
		if err := s.m.Unmap(); err != nil {
			return errors.Wrap(err, "unable to unmap the segment")
		}
		s.m = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			return errors.Wrap(err, "unable to close the descriptor")
		}
		s.file = nil
	}
	return nil
}

// close is the same as release: there is no name to unlink, the kernel
// reclaims the object once the last descriptor anywhere goes away.
func (s *rawSegment) close() error {
	return s.release()
}
