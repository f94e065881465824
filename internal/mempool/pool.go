// Package mempool recycles the large scratch buffers the detection cascade
// allocates per frame. Frames arrive continuously, so reusing buffers keeps
// the garbage collector out of the per-frame latency budget.
package mempool

import (
	"sync"
)

// sizeClass rounds n up to the next multiple of 1024 to reduce churn.
func sizeClass(n int) int {
	if n <= 1024 {
		return 1024
	}
	const step = 1024
	r := (n + step - 1) / step
	return r * step
}

type slicePool[T any] struct {
	pools sync.Map // key: size class (int), value: *sync.Pool
}

func (sp *slicePool[T]) pool(cls int) *sync.Pool {
	pAny, _ := sp.pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]T, cls) }})
	return pAny.(*sync.Pool) //nolint:forcetypeassert // only *sync.Pool is ever stored
}

// get returns a zeroed slice of length n.
func (sp *slicePool[T]) get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	buf, ok := sp.pool(cls).Get().([]T)
	if !ok || cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

func (sp *slicePool[T]) put(buf []T) {
	if buf == nil {
		return
	}
	cls := sizeClass(cap(buf))
	if cls != cap(buf) {
		// foreign slice, not from this pool
		return
	}
	sp.pool(cls).Put(buf[:cap(buf)]) //nolint:staticcheck
}

var (
	float32Pool slicePool[float32]
	uint8Pool   slicePool[uint8]
	int32Pool   slicePool[int32]
)

// GetFloat32 retrieves a zeroed []float32 of length n.
// The caller must return it via PutFloat32 when done.
func GetFloat32(n int) []float32 { return float32Pool.get(n) }

// PutFloat32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutFloat32(buf []float32) { float32Pool.put(buf) }

// GetUint8 retrieves a zeroed []uint8 of length n.
func GetUint8(n int) []uint8 { return uint8Pool.get(n) }

// PutUint8 returns a buffer to the pool. It is safe to pass a nil slice.
func PutUint8(buf []uint8) { uint8Pool.put(buf) }

// GetInt32 retrieves a zeroed []int32 of length n.
func GetInt32(n int) []int32 { return int32Pool.get(n) }

// PutInt32 returns a buffer to the pool. It is safe to pass a nil slice.
func PutInt32(buf []int32) { int32Pool.put(buf) }
