package rectify

import (
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func absCorners(pts ...utils.Point) geometry.Corners {
	c, err := geometry.FromPoints(pts, geometry.Absolute)
	if err != nil {
		panic(err)
	}
	return c
}

func ptr(v float64) *float64 { return &v }

func TestOutputSize_NoAspect(t *testing.T) {
	c := absCorners(utils.Point{X: 100, Y: 50}, utils.Point{X: 500, Y: 50}, utils.Point{X: 500, Y: 300}, utils.Point{X: 100, Y: 300})
	w, h := OutputSize(c, nil)
	assert.InDelta(t, 400.0, w, 1e-9)
	assert.InDelta(t, 250.0, h, 1e-9)
}

func TestOutputSize_UsesLongerOppositeEdges(t *testing.T) {
	// Trapezoid: top edge 200, bottom edge 300; left and right edges differ too.
	c := absCorners(utils.Point{X: 50, Y: 0}, utils.Point{X: 250, Y: 0}, utils.Point{X: 300, Y: 120}, utils.Point{X: 0, Y: 100})
	w, h := OutputSize(c, nil)
	assert.InDelta(t, utils.Distance(utils.Point{X: 300, Y: 120}, utils.Point{X: 0, Y: 100}), w, 1e-9)
	assert.InDelta(t, utils.Distance(utils.Point{X: 250, Y: 0}, utils.Point{X: 300, Y: 120}), h, 1e-9)
}

func TestOutputSize_AspectPicksCloserOrientation(t *testing.T) {
	// 100/95 = 1.0526 is closer to 1/1.4142 than to 1.4142, so the width shrinks.
	c := absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 100, Y: 0}, utils.Point{X: 100, Y: 95}, utils.Point{X: 0, Y: 95})
	w, h := OutputSize(c, ptr(AspectDIN476))
	assert.InDelta(t, 95/AspectDIN476, w, 1e-9)
	assert.InDelta(t, 67.18, w, 0.01)
	assert.InDelta(t, 95.0, h, 1e-9)
}

func TestOutputSize_AspectLandscape(t *testing.T) {
	// 400/250 = 1.6 is closer to 1.4142; width is too large and shrinks to 353.55.
	c := absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 400, Y: 0}, utils.Point{X: 400, Y: 250}, utils.Point{X: 0, Y: 250})
	w, h := OutputSize(c, ptr(AspectDIN476))
	assert.InDelta(t, 250*AspectDIN476, w, 1e-9)
	assert.InDelta(t, 250.0, h, 1e-9)

	// 200/250 = 0.8 is closer to 1/1.4142 = 0.7071 and above it, so the width shrinks.
	c = absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 200, Y: 0}, utils.Point{X: 200, Y: 250}, utils.Point{X: 0, Y: 250})
	w, h = OutputSize(c, ptr(AspectDIN476))
	assert.InDelta(t, 250/AspectDIN476, w, 1e-9)
	assert.InDelta(t, 250.0, h, 1e-9)

	// 150/250 = 0.6 is below 0.7071, so height shrinks instead.
	c = absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 150, Y: 0}, utils.Point{X: 150, Y: 250}, utils.Point{X: 0, Y: 250})
	w, h = OutputSize(c, ptr(AspectDIN476))
	assert.InDelta(t, 150.0, w, 1e-9)
	assert.InDelta(t, 150*AspectDIN476, h, 1e-9)
}

func TestOutputSize_TieFavoursRatio(t *testing.T) {
	// 125/100 = 1.25 is exactly 0.75 away from both 2 and 0.5.
	c := absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 125, Y: 0}, utils.Point{X: 125, Y: 100}, utils.Point{X: 0, Y: 100})
	w, h := OutputSize(c, ptr(2))
	assert.InDelta(t, 125.0, w, 1e-9)
	assert.InDelta(t, 62.5, h, 1e-9)
}

func TestTransform_WhiteRectangle(t *testing.T) {
	img := testutil.WhiteRectangle(600, 400, image.Rect(100, 50, 500, 300))
	c := absCorners(utils.Point{X: 100, Y: 50}, utils.Point{X: 500, Y: 50}, utils.Point{X: 500, Y: 300}, utils.Point{X: 100, Y: 300})

	out, err := Transform(img, c, nil)
	require.NoError(t, err)
	g, ok := out.(*image.Gray)
	require.True(t, ok, "gray input must give gray output")
	assert.Equal(t, image.Rect(0, 0, 400, 250), g.Bounds())
	for i, v := range g.Pix {
		require.GreaterOrEqual(t, v, uint8(250), "pixel %d", i)
	}
}

func TestTransform_DetectedDocument(t *testing.T) {
	img := testutil.WhiteRectangle(600, 400, image.Rect(100, 50, 500, 300))
	res, err := detector.Detect(img, detector.StageNone)
	require.NoError(t, err)
	require.True(t, res.Found())
	c, err := res.Corners.Denormalize(600, 400)
	require.NoError(t, err)

	out, err := Transform(img, c, nil)
	require.NoError(t, err)
	assert.InDelta(t, 400, out.Bounds().Dx(), 10)
	assert.InDelta(t, 250, out.Bounds().Dy(), 10)
}

func TestTransform_PerspectiveMapsCorners(t *testing.T) {
	// Paint distinct colours into the four corners of a tilted sheet and check
	// they land in the corresponding corners of the output.
	cfg := testutil.DefaultDocumentConfig()
	cfg.Lines = nil
	cfg.Corners = [4]image.Point{{140, 60}, {480, 90}, {450, 340}, {110, 310}}
	src := testutil.GenerateDocument(cfg)
	marks := []color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}, {255, 255, 0, 255}}
	pts := make([]utils.Point, 4)
	for i, p := range cfg.Corners {
		pts[i] = utils.Point{X: float64(p.X), Y: float64(p.Y)}
		// Blob halfway between the corner and the centre of the sheet.
		cx, cy := (p.X+295)/2, (p.Y+200)/2
		for y := cy - 12; y <= cy+12; y++ {
			for x := cx - 12; x <= cx+12; x++ {
				src.Set(x, y, marks[i])
			}
		}
	}
	out, err := Transform(src, absCorners(pts...), nil)
	require.NoError(t, err)
	rgba, ok := out.(*image.RGBA)
	require.True(t, ok)

	b := rgba.Bounds()
	samples := []image.Point{
		{b.Dx() / 4, b.Dy() / 4},
		{b.Dx() * 3 / 4, b.Dy() / 4},
		{b.Dx() * 3 / 4, b.Dy() * 3 / 4},
		{b.Dx() / 4, b.Dy() * 3 / 4},
	}
	for i, p := range samples {
		got := rgba.RGBAAt(p.X, p.Y)
		assert.InDelta(t, marks[i].R, got.R, 40, "corner %d", i)
		assert.InDelta(t, marks[i].G, got.G, 40, "corner %d", i)
		assert.InDelta(t, marks[i].B, got.B, 40, "corner %d", i)
	}
}

func TestTransform_DoesNotMutateInput(t *testing.T) {
	img := testutil.WhiteRectangle(60, 40, image.Rect(10, 10, 50, 30))
	orig := utils.CloneGray(img)
	c := absCorners(utils.Point{X: 10, Y: 10}, utils.Point{X: 50, Y: 10}, utils.Point{X: 50, Y: 30}, utils.Point{X: 10, Y: 30})
	_, err := Transform(img, c, ptr(AspectANSILetter))
	require.NoError(t, err)
	assert.Equal(t, orig.Pix, img.Pix)
}

func TestTransform_Failures(t *testing.T) {
	img := testutil.WhiteRectangle(60, 40, image.Rect(10, 10, 50, 30))

	norm := geometry.Corners{Space: geometry.Normalized, Points: [4]utils.Point{{0.1, 0.1}, {0.9, 0.1}, {0.9, 0.9}, {0.1, 0.9}}}
	_, err := Transform(img, norm, nil)
	require.ErrorIs(t, err, ErrRectificationFailed)
	require.ErrorIs(t, err, geometry.ErrCoordinateSpace)

	collinear := geometry.Corners{Space: geometry.Absolute, Points: [4]utils.Point{{0, 0}, {10, 0}, {20, 0}, {30, 0}}}
	_, err = Transform(img, collinear, nil)
	require.ErrorIs(t, err, ErrRectificationFailed)

	tiny := absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 20, Y: 0}, utils.Point{X: 20, Y: 0.5}, utils.Point{X: 0, Y: 0.5})
	_, err = Transform(img, tiny, nil)
	require.ErrorIs(t, err, ErrRectificationFailed)

	_, err = Transform(nil, norm, nil)
	require.ErrorIs(t, err, ErrRectificationFailed)

	huge := absCorners(utils.Point{X: 0, Y: 0}, utils.Point{X: 1e5, Y: 0}, utils.Point{X: 1e5, Y: 1e5}, utils.Point{X: 0, Y: 1e5})
	_, err = Transform(img, huge, nil)
	require.ErrorIs(t, err, ErrRectificationFailed)
	assert.Contains(t, err.Error(), "outside")

	_, err = Transform(img, norm, ptr(-1))
	require.ErrorIs(t, err, ErrRectificationFailed)
	require.ErrorIs(t, err, ErrInvalidAspect)
}

func TestTransform_CornersSlightlyOutsideSource(t *testing.T) {
	img := testutil.WhiteRectangle(60, 40, image.Rect(10, 10, 50, 30))
	c := absCorners(utils.Point{X: -5, Y: -5}, utils.Point{X: 65, Y: -5}, utils.Point{X: 65, Y: 45}, utils.Point{X: -5, Y: 45})

	out, err := Transform(img, c, nil)
	require.NoError(t, err)
	assert.Equal(t, 70, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())
}

func TestTransform_WritesDebugImages(t *testing.T) {
	dir := t.TempDir()
	r, err := New(Options{DebugDir: dir})
	require.NoError(t, err)
	img := testutil.WhiteRectangle(60, 40, image.Rect(10, 10, 50, 30))
	c := absCorners(utils.Point{X: 10, Y: 10}, utils.Point{X: 50, Y: 10}, utils.Point{X: 50, Y: 30}, utils.Point{X: 10, Y: 30})
	_, err = r.Transform(img, c)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestDrawOverlay(t *testing.T) {
	img := testutil.WhiteRectangle(200, 100, image.Rect(0, 0, 0, 0))
	c := geometry.Corners{Space: geometry.Normalized, Points: [4]utils.Point{{0.1, 0.1}, {0.9, 0.1}, {0.9, 0.9}, {0.1, 0.9}}}
	out, err := DrawOverlay(img, c)
	require.NoError(t, err)
	assert.Equal(t, overlayColor, out.RGBAAt(100, 10))
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, out.RGBAAt(100, 50))
	assert.Equal(t, markerColor, out.RGBAAt(20, 10))
}
