// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build darwin || freebsd || (linux && shm_posix)

package shm

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const namedBackend = true

// progTags pins this backend in child processes the tests compile with
// go run, which does not inherit the parent's build tags.
const progTags = "shm_posix"

// rawSegment is a POSIX shared memory object with a whole-object
// read-write mapping. The platform files supply shmName, shmOpen and
// shmUnlink: linux goes through the shm filesystem, darwin and freebsd
// make the shm_open and shm_unlink syscalls directly.
type rawSegment struct {
	name string
	file *os.File
	m    mmap.MMap
}

// createSegment makes a shared memory object of the given byte length
// and maps it. Creation is exclusive: a live object under the same name
// fails it, and nothing is probed beforehand.
func createSegment(name string, size int) (*rawSegment, error) {
	path, err := shmName(name)
	if err != nil {
		return nil, err
	}
	file, err := shmOpen(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, segmentPerm)
	if err != nil {
		return nil, wrapOSError("shm_open", name, err)
	}
	if err = file.Truncate(int64(size)); err != nil {
		file.Close()
		shmUnlink(path)
		return nil, wrapOSError("ftruncate", name, err)
	}
	m, err := mmap.MapRegion(file, size, mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		shmUnlink(path)
		return nil, mappingError("mmap", name, err)
	}
	return &rawSegment{name: name, file: file, m: m}, nil
}

// openSegment maps an existing object at its current length, which is
// taken from the descriptor, not from the caller.
func openSegment(name string) (*rawSegment, error) {
	path, err := shmName(name)
	if err != nil {
		return nil, err
	}
	file, err := shmOpen(path, os.O_RDWR, 0)
	if err != nil {
		return nil, wrapOSError("shm_open", name, err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, wrapOSError("fstat", name, err)
	}
	m, err := mmap.MapRegion(file, int(fi.Size()), mmap.RDWR, 0, 0)
	if err != nil {
		file.Close()
		return nil, mappingError("mmap", name, err)
	}
	return &rawSegment{name: name, file: file, m: m}, nil
}

// segmentExists probes the name read-only. Every failure, a malformed
// name included, reports absence.
func segmentExists(name string) bool {
	path, err := shmName(name)
	if err != nil {
		return false
	}
	file, err := shmOpen(path, os.O_RDONLY, 0)
	if err != nil {
		return false
	}
	file.Close()
	return true
}

// destroySegment unlinks the name. Instances which still hold mappings
// or descriptors keep working until they close; a name that is already
// gone is not an error.
func destroySegment(name string) error {
	path, err := shmName(name)
	if err != nil {
		return err
	}
	if err := shmUnlink(path); err != nil && !os.IsNotExist(err) {
		return wrapOSError("shm_unlink", name, err)
	}
	return nil
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

// path returns the key another process passes to Open, which for this
// backend is the object's name unchanged.
func (s *rawSegment) path() string {
	return s.name
}

// flush schedules dirty pages for writeback, waiting for completion
// unless async is set.
func (s *rawSegment) flush(async bool) error {
	if async {
		return unix.Msync(s.m, unix.MS_ASYNC)
	}
	return s.m.Flush()
}

// release drops the mapping and the descriptor, leaving the name alone.
// It is safe to call more than once.
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

// close releases the instance and unlinks the name, so the object's
// storage goes away once the last instance anywhere lets go of it.
func (s *rawSegment) close() error {
	if err := s.release(); err != nil {
		return err
	}
	return destroySegment(s.name)
}
