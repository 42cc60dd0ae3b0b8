// Copyright 2016 Aleksandr Demakin. All rights reserved.

package shm

import (
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultSegmentName = "go-shm.test"

type point struct {
	X, Y int32
	Tag  uint8
}

// removeLeftovers drops a name a crashed earlier run may have left
// behind. Backends without named objects have nothing to remove.
func removeLeftovers(name string) {
	if namedBackend {
		_ = Destroy(name)
	}
}

func TestCreateAndReopen(t *testing.T) {
	a := assert.New(t)
	removeLeftovers(defaultSegmentName)
	seg, err := Create[int32](defaultSegmentName, 20)
	require.NoError(t, err)
	defer seg.Close()
	a.Equal(20, seg.Len())
	a.Equal(headerLen+20*4, seg.Size())
	a.Equal(defaultSegmentName, seg.Name())
	for i := range seg.Data() {
		seg.Data()[i] = int32(i) * 2
	}
	other, err := Open[int32](seg.Path())
	require.NoError(t, err)
	defer other.Close()
	a.Equal(20, other.Len())
	a.Equal(seg.Size(), other.Size())
	for i, v := range other.Data() {
		a.Equal(int32(i)*2, v)
	}
	// stores through one mapping surface in the other with no copy in
	// between.
	seg.Data()[3] = 1000
	a.Equal(int32(1000), other.Data()[3])
}

func TestStructElements(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.struct"
	removeLeftovers(name)
	seg, err := Create[point](name, 8)
	require.NoError(t, err)
	defer seg.Close()
	for i := range seg.Data() {
		seg.Data()[i] = point{X: int32(i), Y: -int32(i), Tag: uint8(i)}
	}
	other, err := Open[point](seg.Path())
	require.NoError(t, err)
	defer other.Close()
	for i, p := range other.Data() {
		a.Equal(point{X: int32(i), Y: -int32(i), Tag: uint8(i)}, p)
	}
}

func TestEmptySegment(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.empty"
	removeLeftovers(name)
	seg, err := Create[int64](name, 0)
	require.NoError(t, err)
	defer seg.Close()
	a.Equal(0, seg.Len())
	a.Equal(headerLen, seg.Size())
	a.Empty(seg.Bytes())
	other, err := Open[int64](seg.Path())
	require.NoError(t, err)
	defer other.Close()
	a.Equal(0, other.Len())
}

func TestExistence(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.exists"
	removeLeftovers(name)
	a.False(Exists(name))
	seg, err := Create[byte](name, 16)
	require.NoError(t, err)
	key := seg.Path()
	a.True(Exists(key))
	opener, err := Open[byte](key)
	require.NoError(t, err)
	a.True(Exists(key))
	require.NoError(t, opener.Close())
	require.NoError(t, seg.Close())
	a.False(Exists(key))
}

func TestOpenAbsent(t *testing.T) {
	a := assert.New(t)
	removeLeftovers("go-shm.absent")
	seg, err := Open[int32]("go-shm.absent")
	require.Error(t, err)
	a.Nil(seg)
	a.True(IsNotFound(err))
	a.Equal(NotFound, KindOf(err))
}

func TestCreateCollision(t *testing.T) {
	if !namedBackend {
		t.Skip("anonymous segments have no names to collide")
	}
	a := assert.New(t)
	const name = "go-shm.collision"
	removeLeftovers(name)
	seg, err := Create[int32](name, 4)
	require.NoError(t, err)
	defer seg.Close()
	// the element type plays no part in naming
	dup, err := Create[byte](name, 4)
	require.Error(t, err)
	a.Nil(dup)
	a.True(IsAlreadyExists(err))
}

func TestExclusiveCreateRace(t *testing.T) {
	if !namedBackend {
		t.Skip("anonymous segments have no names to collide")
	}
	const name = "go-shm.exclusive"
	removeLeftovers(name)
	const racers = 8
	segs := make([]*Segment[int32], racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			segs[i], errs[i] = Create[int32](name, 8)
		}(i)
	}
	wg.Wait()
	winners := 0
	for i := range segs {
		if errs[i] == nil {
			winners++
			defer segs[i].Close()
		} else {
			assert.True(t, IsAlreadyExists(errs[i]), "racer %d: %v", i, errs[i])
		}
	}
	assert.Equal(t, 1, winners)
}

func TestCloseIdempotent(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.close"
	removeLeftovers(name)
	seg, err := Create[uint16](name, 10)
	require.NoError(t, err)
	require.NoError(t, seg.Close())
	require.NoError(t, seg.Close())
	a.Nil(seg.Data())
	a.Nil(seg.Bytes())
	a.Error(seg.Flush(false))
	// every backend reports the same invalid descriptor once closed
	a.Equal(^uintptr(0), seg.Fd())
}

func TestCountValidation(t *testing.T) {
	a := assert.New(t)
	_, err := Create[int32]("go-shm.badcount", -1)
	a.Error(err)
	_, err = Create[int64]("go-shm.hugecount", int(^uint(0)>>3))
	a.Error(err)
	_, err = Create[struct{}]("go-shm.zerosized", 1)
	a.Error(err)
}

func TestFlush(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.flush"
	removeLeftovers(name)
	seg, err := Create[int32](name, 32)
	require.NoError(t, err)
	defer seg.Close()
	for i := range seg.Data() {
		seg.Data()[i] = int32(i)
	}
	a.NoError(seg.Flush(false))
	a.NoError(seg.Flush(true))
}

func TestOpenWithOversizedType(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.mismatch"
	removeLeftovers(name)
	seg, err := Create[int32](name, 5)
	require.NoError(t, err)
	defer seg.Close()
	// 5 int64s cannot fit a payload sized for 5 int32s
	wrong, err := Open[int64](seg.Path())
	require.Error(t, err)
	a.Nil(wrong)
}

func TestPayloadBytes(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.bytes"
	removeLeftovers(name)
	seg, err := Create[uint32](name, 3)
	require.NoError(t, err)
	defer seg.Close()
	a.Equal(seg.Size()-headerLen, len(seg.Bytes()))
	// Data and Bytes alias the same memory in native byte order.
	seg.Data()[0] = 0x01020304
	a.Equal(uint32(0x01020304), binary.NativeEndian.Uint32(seg.Bytes()))
	binary.NativeEndian.PutUint32(seg.Bytes()[4:], 99)
	a.Equal(uint32(99), seg.Data()[1])
}

func TestReaderWriter(t *testing.T) {
	a := assert.New(t)
	const name = "go-shm.io"
	removeLeftovers(name)
	seg, err := Create[byte](name, 64)
	require.NoError(t, err)
	defer seg.Close()
	w := NewWriter(seg)
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	n, err := w.WriteAt(data, 16)
	a.NoError(err)
	a.Equal(len(data), n)
	r := NewReader(seg)
	got := make([]byte, len(data))
	n, err = r.ReadAt(got, 16)
	a.NoError(err)
	a.Equal(len(data), n)
	a.Equal(data, got)
	// writes past the payload are clipped and reported short
	n, err = w.WriteAt(data, int64(seg.Len())-4)
	a.Equal(4, n)
	a.Equal(io.EOF, err)
	n, err = w.WriteAt(data, int64(seg.Len())+10)
	a.Zero(n)
	a.Equal(io.EOF, err)
	// negative positions error on both halves instead of panicking
	n, err = w.WriteAt(data, -1)
	a.Zero(n)
	a.Error(err)
	_, err = r.ReadAt(got, -1)
	a.Error(err)
}

func TestCountersScenario(t *testing.T) {
	a := assert.New(t)
	const name = "counters"
	removeLeftovers(name)
	creator, err := Create[int32](name, 20)
	require.NoError(t, err)
	key := creator.Path()
	a.True(Exists(key))
	for i := range creator.Data() {
		creator.Data()[i] = int32(i) * 2
	}
	opener, err := Open[int32](key)
	require.NoError(t, err)
	a.Equal(20, opener.Len())
	for i, v := range opener.Data() {
		a.Equal(int32(i)*2, v)
	}
	// the opener's mapping outlives the creator's close
	require.NoError(t, creator.Close())
	a.Equal(int32(6), opener.Data()[3])
	require.NoError(t, opener.Close())
	a.False(Exists(key))
}
