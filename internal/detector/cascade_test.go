package detector

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEllipseElement_TwoByTwo(t *testing.T) {
	el := ellipseElement(2, 2)
	assert.Equal(t, []bool{false, true, true, true}, el.mask)
	assert.Equal(t, 1, el.ax)
	assert.Equal(t, 1, el.ay)
	assert.False(t, el.rect)
}

func TestRectElement(t *testing.T) {
	el := rectElement(10, 10)
	assert.Equal(t, 5, el.ax)
	assert.Equal(t, 5, el.ay)
	assert.Len(t, el.mask, 100)
	assert.True(t, el.rect)
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(11, 0)
	require.Len(t, k, 11)
	var sum float64
	for i, v := range k {
		sum += float64(v)
		assert.InDelta(t, v, k[10-i], 1e-7, "symmetric")
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
	// Sigma derived from size 11 is 2.0.
	assert.InDelta(t, math.Exp(-1.0/8.0), float64(k[4]/k[5]), 1e-5)
}

func TestReflect101(t *testing.T) {
	assert.Equal(t, 1, reflect101(-1, 5))
	assert.Equal(t, 2, reflect101(-2, 5))
	assert.Equal(t, 3, reflect101(5, 5))
	assert.Equal(t, 2, reflect101(6, 5))
	assert.Equal(t, 0, reflect101(-3, 1))
}

func TestMorphology_DilateSinglePixel(t *testing.T) {
	src := grayFromRows(
		"......",
		"......",
		"...#..",
		"......",
		"......",
	)
	out := morphology(src, rectElement(2, 2), opDilate, 1)
	// Anchor (1,1): a pixel turns on if it or its left/upper neighbours were on.
	want := grayFromRows(
		"......",
		"......",
		"...##.",
		"...##.",
		"......",
	)
	assert.Equal(t, want.pix, out.pix)

	gen := morphology(src, ellipseElement(2, 2), opDilate, 1)
	want = grayFromRows(
		"......",
		"......",
		"...##.",
		"...#..",
		"......",
	)
	// The 2x2 ellipse covers the pixel itself, the one above and the one to the left;
	// mirrored, an isolated pixel spreads right and down.
	assert.Equal(t, want.pix, gen.pix)
}

func TestClosing_RemovesDarkText(t *testing.T) {
	p := newPlane(60, 40)
	for i := range p.pix {
		p.pix[i] = 255
	}
	// A thin dark stroke, like a line of print.
	for x := 20; x < 40; x++ {
		p.pix[20*p.w+x] = 0
		p.pix[21*p.w+x] = 0
	}
	out := closing(p, rectElement(10, 10), 3)
	for _, v := range out.pix {
		require.Equal(t, uint8(255), v)
	}
}

func TestMorphology_ZeroIterationsCopies(t *testing.T) {
	src := grayFromRows("#.", ".#")
	out := morphology(src, rectElement(3, 3), opErode, 0)
	assert.Equal(t, src.pix, out.pix)
	out.pix[0] = 1
	assert.Equal(t, uint8(255), src.pix[0])
}

func TestGaussianBlur_PreservesFlat(t *testing.T) {
	p := newPlane(20, 20)
	for i := range p.pix {
		p.pix[i] = 77
	}
	out := gaussianBlur(p, gaussianKernel(11, 0))
	for _, v := range out.pix {
		require.Equal(t, uint8(77), v)
	}
}

func TestCanny_StepEdge(t *testing.T) {
	p := newPlane(100, 40)
	for y := range p.h {
		for x := 50; x < p.w; x++ {
			p.pix[y*p.w+x] = 255
		}
	}
	edges := canny(gaussianBlur(p, gaussianKernel(11, 0)), 30, 150)
	for y := range p.h {
		for x := range p.w {
			v := edges.pix[y*p.w+x]
			if x == 49 {
				assert.Equal(t, uint8(255), v, "edge expected at (%d,%d)", x, y)
			} else {
				assert.Equal(t, uint8(0), v, "no edge expected at (%d,%d)", x, y)
			}
		}
	}
}

func TestCanny_FlatHasNoEdges(t *testing.T) {
	p := newPlane(30, 30)
	edges := canny(p, 30, 150)
	for _, v := range edges.pix {
		require.Equal(t, uint8(0), v)
	}
}

func TestFindContours_FilledSquare(t *testing.T) {
	p := grayFromRows(
		".....",
		".###.",
		".###.",
		".###.",
		".....",
	)
	cs := findContours(p)
	require.Len(t, cs, 1)
	assert.Len(t, cs[0], 8)
	assert.Equal(t, utils.Point{X: 1, Y: 1}, cs[0][0])
	assert.InDelta(t, 4.0, utils.ContourArea(cs[0]), 1e-9)
}

func TestFindContours_Ring(t *testing.T) {
	p := newPlane(40, 40)
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			if x < 15 || x >= 25 || y < 15 || y >= 25 {
				p.pix[y*p.w+x] = 255
			}
		}
	}
	cs := findContours(p)
	require.Len(t, cs, 2, "outer border and hole border")

	areas := []float64{utils.ContourArea(cs[0]), utils.ContourArea(cs[1])}
	assert.InDelta(t, 361.0, areas[0], 1e-9)
	assert.Greater(t, areas[1], 100.0)
	assert.Less(t, areas[1], 122.0)
}

func TestFindContours_SinglePixelAndTouchingBorder(t *testing.T) {
	p := grayFromRows(
		"#...",
		"....",
		"..##",
	)
	cs := findContours(p)
	require.Len(t, cs, 2)
	assert.Equal(t, []utils.Point{{X: 0, Y: 0}}, cs[0])
	assert.Len(t, cs[1], 2)
}

func TestFindContours_Empty(t *testing.T) {
	assert.Empty(t, findContours(newPlane(10, 10)))
}
