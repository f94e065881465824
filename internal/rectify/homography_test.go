package rectify

import (
	"testing"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHomography_Identity(t *testing.T) {
	p := [4]utils.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}, {X: 0, Y: 100}}
	h, ok := computeHomography(p, p)
	require.True(t, ok)
	want := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}
	for i := range h {
		assert.InDelta(t, want[i], h[i], 1e-9)
	}
}

func TestComputeHomography_MapsCorners(t *testing.T) {
	dst := [4]utils.Point{{X: 0, Y: 0}, {X: 340, Y: 0}, {X: 340, Y: 250}, {X: 0, Y: 250}}
	src := [4]utils.Point{{X: 140, Y: 60}, {X: 480, Y: 90}, {X: 450, Y: 340}, {X: 110, Y: 310}}
	h, ok := computeHomography(dst, src)
	require.True(t, ok)
	for i := range dst {
		x, y, ok := applyHomography(h, dst[i].X, dst[i].Y)
		require.True(t, ok)
		assert.InDelta(t, src[i].X, x, 1e-6)
		assert.InDelta(t, src[i].Y, y, 1e-6)
	}
}

func TestComputeHomography_Singular(t *testing.T) {
	p := [4]utils.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}, {X: 3, Y: 0}}
	q := [4]utils.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	_, ok := computeHomography(p, q)
	assert.False(t, ok)
}

func TestSolve8x8(t *testing.T) {
	var a [8][8]float64
	var b [8]float64
	for i := range 8 {
		a[i][(i+3)%8] = 2
		b[i] = float64(i + 1)
	}
	x, ok := solve8x8(a, b)
	require.True(t, ok)
	for i := range 8 {
		assert.InDelta(t, float64(i+1)/2, x[(i+3)%8], 1e-12)
	}

	_, ok = solve8x8([8][8]float64{}, b)
	assert.False(t, ok)
}

func TestApplyHomography_PointAtInfinity(t *testing.T) {
	h := [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 0}
	_, _, ok := applyHomography(h, 0, 0)
	assert.False(t, ok)
}
