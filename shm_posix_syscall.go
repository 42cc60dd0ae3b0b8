// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build darwin || freebsd

package shm

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// darwin limits POSIX shm names to PSHMNAMLEN bytes, slash included.
const maxNameLen = 30

// shmName validates a segment name and prefixes the slash shm_open
// expects. On darwin the effective uid is folded into the name so that
// distinct users get distinct objects; see Libc-320/sys/shm_open.c in
// the Apple open source tree.
func shmName(name string) (string, error) {
	name = strings.TrimLeft(name, "/")
	if len(name) == 0 || strings.Contains(name, "/") {
		return "", errors.Errorf("invalid segment name %q", name)
	}
	if runtime.GOOS == "darwin" {
		if len(name) > maxNameLen {
			return "", newError(NameTooLong, "shm_open", name, nil)
		}
		withUID := fmt.Sprintf("%s\t%d", name, unix.Geteuid())
		if len(withUID) < maxNameLen {
			name = withUID
		}
	}
	return "/" + name, nil
}

func shmOpen(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := shm_open(path, flag|unix.O_CLOEXEC, int(perm))
	if err != nil {
		return nil, err
	}
	return os.NewFile(fd, path), nil
}

func shmUnlink(path string) error {
	return shm_unlink(path)
}

// syscalls

func shm_open(name string, flags, mode int) (uintptr, error) {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return 0, err
	}
	fd, _, errno := unix.Syscall(unix.SYS_SHM_OPEN, uintptr(unsafe.Pointer(nameBytes)), uintptr(flags), uintptr(mode))
	runtime.KeepAlive(nameBytes)
	if errno != 0 {
		return 0, &os.PathError{Op: "shm_open", Path: name, Err: errno}
	}
	return fd, nil
}

func shm_unlink(name string) error {
	nameBytes, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	_, _, errno := unix.Syscall(unix.SYS_SHM_UNLINK, uintptr(unsafe.Pointer(nameBytes)), 0, 0)
	runtime.KeepAlive(nameBytes)
	if errno != 0 {
		return &os.PathError{Op: "shm_unlink", Path: name, Err: errno}
	}
	return nil
}
