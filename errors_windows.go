// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import "golang.org/x/sys/windows"

// kindFromOS maps a system error code onto the portable failure taxonomy.
func kindFromOS(err error) Kind {
	errno, ok := errnoOf(err)
	if !ok {
		return Unexpected
	}
	switch errno {
	case windows.ERROR_ACCESS_DENIED:
		return AccessDenied
	case windows.ERROR_ALREADY_EXISTS, windows.ERROR_FILE_EXISTS:
		return AlreadyExists
	case windows.ERROR_FILE_NOT_FOUND, windows.ERROR_NOT_FOUND:
		return NotFound
	case windows.ERROR_FILENAME_EXCED_RANGE:
		return NameTooLong
	case windows.ERROR_TOO_MANY_OPEN_FILES:
		return ProcessFileLimit
	case windows.ERROR_NO_SYSTEM_RESOURCES:
		return SystemFileLimit
	}
	return Unexpected
}
