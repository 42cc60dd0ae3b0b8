// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Kind classifies the failures a segment operation can report.
// Every error returned by Create, Open, Destroy and the Segment methods
// carries exactly one Kind; errors the OS reports outside this set are
// preserved under Unexpected.
type Kind uint8

const (
	// Unexpected covers OS failures outside the recognized set.
	// The raw system error remains available via Unwrap.
	Unexpected Kind = iota
	// AccessDenied reports insufficient permissions for the object.
	AccessDenied
	// AlreadyExists reports a create collision with a live name.
	AlreadyExists
	// NotFound reports an open or destroy of a name with no object.
	NotFound
	// NameTooLong reports a name over the backend's limit.
	NameTooLong
	// ProcessFileLimit reports exhaustion of the per-process
	// descriptor table.
	ProcessFileLimit
	// SystemFileLimit reports exhaustion of the system file table.
	SystemFileLimit
	// MappingFailed reports a failure to map the object into the
	// address space after it was created or opened.
	MappingFailed
)

func (k Kind) String() string {
	switch k {
	case AccessDenied:
		return "access denied"
	case AlreadyExists:
		return "already exists"
	case NotFound:
		return "not found"
	case NameTooLong:
		return "name too long"
	case ProcessFileLimit:
		return "process file limit reached"
	case SystemFileLimit:
		return "system file limit reached"
	case MappingFailed:
		return "mapping failed"
	}
	return "unexpected error"
}

// Error is the error type for failed segment operations. Op names the
// OS facility that failed, Name is the object's name or path, and Err,
// when non-nil, is the underlying system error.
type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("shm: %s %q: %v", e.Op, e.Name, e.Kind)
	}
	return fmt.Sprintf("shm: %s %q: %v: %v", e.Op, e.Name, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the Kind from err, unwrapping as needed.
// It returns Unexpected for errors which did not originate here.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// IsNotFound reports whether err denotes an absent object.
func IsNotFound(err error) bool {
	return KindOf(err) == NotFound
}

// IsAlreadyExists reports whether err denotes a create collision.
func IsAlreadyExists(err error) bool {
	return KindOf(err) == AlreadyExists
}

func newError(kind Kind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// wrapOSError classifies a system error by its errno and retains the
// original error for callers which need the exact code.
func wrapOSError(op, name string, err error) *Error {
	return newError(kindFromOS(err), op, name, err)
}

// mappingError marks failures of the address-space mapping step, which
// are reported as MappingFailed regardless of the underlying errno.
func mappingError(op, name string, err error) *Error {
	return newError(MappingFailed, op, name, err)
}

// errnoOf digs the errno out of the layers os and syscall wrap around it.
func errnoOf(err error) (syscall.Errno, bool) {
	for err != nil {
		switch e := err.(type) {
		case syscall.Errno:
			return e, true
		case *os.PathError:
			err = e.Err
		case *os.SyscallError:
			err = e.Err
		case *os.LinkError:
			err = e.Err
		default:
			u, ok := err.(interface{ Unwrap() error })
			if !ok {
				return 0, false
			}
			err = u.Unwrap()
		}
	}
	return 0, false
}
