// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Command segment drives shared memory segments from a child process in
// cross-process tests. Payloads are int32 arrays filled with the
// arithmetic pattern data[i] = base + 2*i.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/nxgtw/go-shm"
)

var objName = flag.String("object", "", "segment name or path")

const usage = `  test program for shared memory segments.
available commands:
  write {base}  open the segment, store data[i] = base + 2*i
  test {base}   open the segment, verify data[i] == base + 2*i
  len           open the segment, print its element count
  exists        print true or false
`

// The commands never call Close: on backends where closing removes the
// name, that would tear the segment down under the parent. The process
// exit releases the mapping and the descriptor without unlinking.

func write() error {
	if flag.NArg() != 2 {
		return fmt.Errorf("write: must provide exactly one argument")
	}
	base, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return err
	}
	seg, err := shm.Open[int32](*objName)
	if err != nil {
		return err
	}
	for i := range seg.Data() {
		seg.Data()[i] = int32(base) + 2*int32(i)
	}
	return seg.Flush(true)
}

func test() error {
	if flag.NArg() != 2 {
		return fmt.Errorf("test: must provide exactly one argument")
	}
	base, err := strconv.Atoi(flag.Arg(1))
	if err != nil {
		return err
	}
	seg, err := shm.Open[int32](*objName)
	if err != nil {
		return err
	}
	for i, value := range seg.Data() {
		if expected := int32(base) + 2*int32(i); value != expected {
			return fmt.Errorf("invalid value at %d. expected '%d', got '%d'", i, expected, value)
		}
	}
	return nil
}

func length() error {
	if flag.NArg() != 1 {
		return fmt.Errorf("len: must not provide any arguments")
	}
	seg, err := shm.Open[int32](*objName)
	if err != nil {
		return err
	}
	fmt.Println(seg.Len())
	return nil
}

func exists() error {
	if flag.NArg() != 1 {
		return fmt.Errorf("exists: must not provide any arguments")
	}
	fmt.Println(shm.Exists(*objName))
	return nil
}

func runCommand() error {
	switch flag.Arg(0) {
	case "write":
		return write()
	case "test":
		return test()
	case "len":
		return length()
	case "exists":
		return exists()
	default:
		return fmt.Errorf("unknown command")
	}
}

func main() {
	flag.Parse()
	if len(*objName) == 0 || flag.NArg() == 0 {
		fmt.Print(usage)
		flag.Usage()
		os.Exit(1)
	}
	if err := runCommand(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
