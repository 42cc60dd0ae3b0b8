// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import "unsafe"

// header sits at offset 0 of every segment. It records the segment's
// total byte length, header included, and the number of payload elements
// which follow it. Both fields are machine words in native byte order,
// so a segment is only meaningful to processes of the same width and
// endianness.
type header struct {
	size  uint
	count uint
}

// headerLen is the payload offset. It is two machine words, which keeps
// the payload aligned for any primitive type on both 32- and 64-bit
// targets.
const headerLen = int(unsafe.Sizeof(header{}))

// putHeader stamps the header fields onto the start of b.
// b must hold at least headerLen bytes of writable, word-aligned memory.
func putHeader(b []byte, size, count int) {
	h := (*header)(unsafe.Pointer(&b[0]))
	h.size, h.count = uint(size), uint(count)
}

// getHeader reads the header fields back from the start of b.
// b must hold at least headerLen bytes of word-aligned memory.
func getHeader(b []byte) (size, count int) {
	h := (*header)(unsafe.Pointer(&b[0]))
	return int(h.size), int(h.count)
}
