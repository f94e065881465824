package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
	}{
		{"small size gets minimum", 1, 1024},
		{"exactly 1024", 1024, 1024},
		{"just over 1024", 1025, 2048},
		{"large size", 10000, 10240},
		{"zero size", 0, 1024},
		{"negative size", -1, 1024},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sizeClass(tt.input))
		})
	}
}

func TestGetReturnsZeroedBuffers(t *testing.T) {
	buf := GetUint8(3000)
	assert.Len(t, buf, 3000)
	for i := range buf {
		buf[i] = 0xff
	}
	PutUint8(buf)

	again := GetUint8(2500)
	assert.Len(t, again, 2500)
	for _, v := range again {
		if v != 0 {
			t.Fatalf("expected zeroed buffer, found %d", v)
		}
	}
	PutUint8(again)
}

func TestGetFloat32AndInt32(t *testing.T) {
	f := GetFloat32(10)
	assert.Len(t, f, 10)
	assert.GreaterOrEqual(t, cap(f), 1024)
	PutFloat32(f)

	i := GetInt32(5000)
	assert.Len(t, i, 5000)
	PutInt32(i)
}

func TestPutIgnoresForeignAndNil(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutUint8(make([]uint8, 10))
		PutInt32(make([]int32, 1500))
	})
	assert.Empty(t, GetUint8(-4))
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for range 100 {
				b := GetFloat32(n)
				b[0] = 1
				PutFloat32(b)
			}
		}(1000 + g*700)
	}
	wg.Wait()
}
