// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package shm provides typed shared memory segments for inter-process
// communication. A segment is a named block of OS shared memory carrying
// a small header with its byte length and element count, so every
// process mapping it recovers the same typed slice:
//
//	seg, err := shm.Create[int32]("counters", 20)
//	...
//	same, err := shm.Open[int32]("counters")
//
// One of the following backends is compiled in per target:
//
//	POSIX shared memory objects (darwin, freebsd, and linux with the
//	shm_posix build tag)
//	anonymous memory files (linux, the default)
//	paging-file backed file-mapping objects (windows)
//
// Apart from naming and lifetime, which the backends document, the
// behavior is the same everywhere. The payload is never locked and
// never retried; processes coordinate on their own terms.
package shm
