// Copyright 2016 Aleksandr Demakin. All rights reserved.

//go:build unix

package shm

import "syscall"

// kindFromOS maps an errno onto the portable failure taxonomy.
func kindFromOS(err error) Kind {
	errno, ok := errnoOf(err)
	if !ok {
		return Unexpected
	}
	switch errno {
	case syscall.EACCES, syscall.EPERM:
		return AccessDenied
	case syscall.EEXIST:
		return AlreadyExists
	case syscall.ENOENT:
		return NotFound
	case syscall.ENAMETOOLONG:
		return NameTooLong
	case syscall.EMFILE:
		return ProcessFileLimit
	case syscall.ENFILE:
		return SystemFileLimit
	}
	return Unexpected
}
