// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"

	"github.com/nxgtw/go-shm/internal/sys/windows"
	"github.com/nxgtw/go-shm/internal/view"
)

const namedBackend = true

// progTags is empty: windows compiles no other backend, so test child
// processes need no extra tags.
const progTags = ""

// Kernel object names may carry a session prefix such as Global\; the
// practical bound is MAX_PATH.
const maxNameLen = 260

// rawSegment is a pagefile-backed file-mapping object with a whole-
// object view. The kernel rounds the object up to page granularity and
// keeps no byte-exact size, so opening reads the true length back from
// the segment header.
type rawSegment struct {
	name   string
	handle windows.Handle
	data   []byte
}

func checkName(name string) error {
	if len(name) == 0 {
		return errors.New("empty segment name")
	}
	if len(name) >= maxNameLen {
		return newError(NameTooLong, "CreateFileMapping", name, nil)
	}
	return nil
}

// createSegment makes a file-mapping object of the given byte length
// backed by the system paging file and maps a view of it. Creation is
// exclusive: a live object under the same name fails it.
func createSegment(name string, size int) (*rawSegment, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	high, low := uint32(uint64(size)>>32), uint32(uint64(size))
	handle, err := sys.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_EXECUTE_READWRITE, high, low, name)
	if err != nil {
		return nil, wrapOSError("CreateFileMapping", name, err)
	}
	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, mappingError("MapViewOfFile", name, err)
	}
	return &rawSegment{name: name, handle: handle, data: view.Bytes(unsafe.Pointer(addr), size)}, nil
}

// openSegment opens a live object by name and maps the whole of it.
// The view only reports page-rounded sizes, so the byte length comes
// from the segment header.
func openSegment(name string) (*rawSegment, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	handle, err := sys.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, name)
	if err != nil {
		return nil, wrapOSError("OpenFileMapping", name, err)
	}
	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(handle)
		return nil, mappingError("MapViewOfFile", name, err)
	}
	size, _ := getHeader(view.Bytes(unsafe.Pointer(addr), headerLen))
	if !headerSizeSane(addr, size) {
		windows.UnmapViewOfFile(addr)
		windows.CloseHandle(handle)
		return nil, errors.Errorf("segment %q does not carry a valid header", name)
	}
	return &rawSegment{name: name, handle: handle, data: view.Bytes(unsafe.Pointer(addr), size)}, nil
}

// headerSizeSane rejects header lengths which cannot fit the view the
// kernel gave out, so a foreign object without a proper header cannot
// hand out a slice past the mapping.
func headerSizeSane(addr uintptr, size int) bool {
	if size < headerLen {
		return false
	}
	var mbi windows.MemoryBasicInformation
	if err := windows.VirtualQuery(addr, &mbi, unsafe.Sizeof(mbi)); err != nil {
		return true
	}
	return uintptr(size) <= mbi.RegionSize
}

// segmentExists probes the name with a read-write open, the access
// every segment is created with.
func segmentExists(name string) bool {
	if err := checkName(name); err != nil {
		return false
	}
	handle, err := sys.OpenFileMapping(windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, name)
	if err != nil {
		return false
	}
	windows.CloseHandle(handle)
	return true
}

// destroySegment is unsupported here: mapping objects have no unlink,
// the kernel drops the name together with the last handle.
func destroySegment(string) error {
	return errors.New("file-mapping objects cannot be destroyed by name")
}

func (s *rawSegment) bytes() []byte {
	return s.data
}

func (s *rawSegment) fd() uintptr {
	if s.handle == 0 {
		return ^uintptr(0)
	}
	return uintptr(s.handle)
}

// path returns the key another process passes to Open, which for this
// backend is the object's name unchanged.
func (s *rawSegment) path() string {
	return s.name
}

// flush writes dirty view pages back to their backing store.
// FlushViewOfFile does not wait, so async makes no difference here.
func (s *rawSegment) flush(async bool) error {
	if len(s.data) == 0 {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&s.data[0])), uintptr(len(s.data)))
}

// release unmaps the view and drops the handle. Safe to call more than
// once.
func (s *rawSegment) release() error {
	if s.data != nil {
		addr := uintptr(unsafe.Pointer(&s.data[0]))
		if err := windows.UnmapViewOfFile(addr); err != nil {
			return errors.Wrap(err, "unable to unmap the segment")
		}
		s.data = nil
	}
	if s.handle != 0 {
		if err := windows.CloseHandle(s.handle); err != nil {
			return errors.Wrap(err, "unable to close the mapping handle")
		}
		s.handle = 0
	}
	return nil
}

// close releases the instance. The kernel drops the name with the last
// handle and reclaims the storage with the last view.
func (s *rawSegment) close() error {
	return s.release()
}
