// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package sys wraps the file-mapping syscalls the shm package needs.
package sys

import (
	"os"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modkernel32           = windows.NewLazyDLL("kernel32.dll")
	procOpenFileMapping   = modkernel32.NewProc("OpenFileMappingW")
	procCreateFileMapping = modkernel32.NewProc("CreateFileMappingW")
)

// OpenFileMapping opens an existing file-mapping object by name.
func OpenFileMapping(access uint32, inheritHandle uint32, name string) (windows.Handle, error) {
	namep, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return 0, err
	}
	r1, _, err := procOpenFileMapping.Call(uintptr(access), uintptr(inheritHandle), uintptr(unsafe.Pointer(namep)))
	runtime.KeepAlive(namep)
	if r1 == 0 {
		return 0, &os.PathError{Op: "OpenFileMapping", Path: name, Err: err}
	}
	return windows.Handle(r1), nil
}

// CreateFileMapping creates a file-mapping object with exclusive-create
// semantics. The raw call hands back a valid handle together with
// ERROR_ALREADY_EXISTS when the name is live, and the x/sys/windows
// wrapper drops that error, so the call goes through the proc directly
// and an existing name is turned into a failure with the handle closed.
func CreateFileMapping(fhandle windows.Handle, sa *windows.SecurityAttributes, prot uint32, maxSizeHigh, maxSizeLow uint32, name string) (windows.Handle, error) {
	var namep *uint16
	if len(name) > 0 {
		var err error
		if namep, err = windows.UTF16PtrFromString(name); err != nil {
			return 0, err
		}
	}
	r1, _, err := procCreateFileMapping.Call(
		uintptr(fhandle),
		uintptr(unsafe.Pointer(sa)),
		uintptr(prot),
		uintptr(maxSizeHigh),
		uintptr(maxSizeLow),
		uintptr(unsafe.Pointer(namep)))
	runtime.KeepAlive(sa)
	runtime.KeepAlive(namep)
	if r1 == 0 {
		return 0, os.NewSyscallError("CreateFileMapping", err)
	}
	if err == windows.ERROR_ALREADY_EXISTS {
		windows.CloseHandle(windows.Handle(r1))
		return 0, &os.PathError{Op: "CreateFileMapping", Path: name, Err: err}
	}
	return windows.Handle(r1), nil
}
