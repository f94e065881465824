package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test frame sizes.
	SmallSize  = ImageSize{320, 240}
	MediumSize = ImageSize{600, 400}
	LargeSize  = ImageSize{1600, 1200}
)

// DocumentConfig describes a synthetic photograph of a sheet of paper lying on a table.
type DocumentConfig struct {
	Size ImageSize
	// Corners of the sheet in TL, TR, BR, BL order (clockwise on screen).
	Corners    [4]image.Point
	Background color.Color
	Paper      color.Color
	Ink        color.Color
	FontFace   font.Face
	// Lines of text printed on the sheet. Empty means a blank sheet. Zero
	// corners render an empty table.
	Lines []string
	// Rotation turns the whole frame counter-clockwise by this many degrees.
	Rotation float64
}

// DefaultDocumentConfig returns a white sheet with a few lines of text on a dark table.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		Size:       MediumSize,
		Corners:    RectCorners(image.Rect(100, 50, 500, 300)),
		Background: color.Gray{Y: 20},
		Paper:      color.White,
		Ink:        color.Black,
		FontFace:   basicfont.Face7x13,
		Lines: []string{
			"INVOICE 2024-0117",
			"Payment due within 14 days",
			"Thank you for your business",
		},
	}
}

// RectCorners returns the corners of r in TL, TR, BR, BL order.
func RectCorners(r image.Rectangle) [4]image.Point {
	return [4]image.Point{
		r.Min,
		{r.Max.X, r.Min.Y},
		r.Max,
		{r.Min.X, r.Max.Y},
	}
}

// GenerateDocument renders the frame described by cfg.
func GenerateDocument(cfg DocumentConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)
	if cfg.Corners != ([4]image.Point{}) {
		fillQuad(img, cfg.Corners, cfg.Paper)
	}

	if len(cfg.Lines) > 0 && cfg.FontFace != nil {
		drawer := &font.Drawer{Dst: img, Src: &image.Uniform{cfg.Ink}, Face: cfg.FontFace}
		inner := innerRect(cfg.Corners)
		lineHeight := cfg.FontFace.Metrics().Height.Ceil()
		y := inner.Min.Y + inner.Dy()/4
		for _, line := range cfg.Lines {
			y += lineHeight * 2
			if y > inner.Max.Y-lineHeight {
				break
			}
			drawer.Dot = fixed.P(inner.Min.X+inner.Dx()/10, y)
			drawer.DrawString(line)
		}
	}

	if cfg.Rotation != 0 {
		rotated := imaging.Rotate(img, cfg.Rotation, cfg.Background)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba
	}
	return img
}

// GenerateGrayDocument renders cfg and converts it to 8-bit grayscale.
func GenerateGrayDocument(cfg DocumentConfig) *image.Gray {
	src := GenerateDocument(cfg)
	g := image.NewGray(src.Bounds())
	draw.Draw(g, g.Bounds(), src, src.Bounds().Min, draw.Src)
	return g
}

// WhiteRectangle returns a black w x h raster with r filled white.
func WhiteRectangle(w, h int, r image.Rectangle) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(g, r, image.White, image.Point{}, draw.Src)
	return g
}

// fillQuad paints every pixel centre inside the convex quadrilateral q.
func fillQuad(dst *image.RGBA, q [4]image.Point, col color.Color) {
	b := image.Rectangle{Min: q[0], Max: q[0].Add(image.Pt(1, 1))}
	for _, p := range q[1:] {
		b = b.Union(image.Rectangle{Min: p, Max: p.Add(image.Pt(1, 1))})
	}
	b = b.Intersect(dst.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if insideQuad(q, float64(x)+0.5, float64(y)+0.5) {
				dst.Set(x, y, col)
			}
		}
	}
}

func insideQuad(q [4]image.Point, px, py float64) bool {
	for i := range 4 {
		a, b := q[i], q[(i+1)%4]
		c := float64(b.X-a.X)*(py-float64(a.Y)) - float64(b.Y-a.Y)*(px-float64(a.X))
		if c < 0 {
			return false
		}
	}
	return true
}

// innerRect approximates the largest axis-aligned rectangle inside q.
func innerRect(q [4]image.Point) image.Rectangle {
	return image.Rect(
		max(q[0].X, q[3].X), max(q[0].Y, q[1].Y),
		min(q[1].X, q[2].X), min(q[2].Y, q[3].Y),
	)
}

// SaveImage saves an image to the specified path as PNG.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))

	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage loads an image from the specified path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	img, err := LoadImageFile(path)
	require.NoError(t, err)
	return img
}

// LoadImageFile loads an image from the specified path (non-testing version).
func LoadImageFile(path string) (image.Image, error) {
	file, err := os.Open(path) //nolint:gosec // G304: Opening user-provided image file is expected
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// MeanAbsDiff returns the mean absolute per-pixel luminance difference of
// two equally sized images, in the range [0, 255]. Differently sized images
// compare as maximally different.
func MeanAbsDiff(a, b image.Image) float64 {
	ba, bb := a.Bounds(), b.Bounds()
	if ba.Dx() != bb.Dx() || ba.Dy() != bb.Dy() {
		return 255
	}
	var total float64
	for y := range ba.Dy() {
		for x := range ba.Dx() {
			ga := color.GrayModel.Convert(a.At(ba.Min.X+x, ba.Min.Y+y)).(color.Gray) //nolint:forcetypeassert // GrayModel always yields Gray
			gb := color.GrayModel.Convert(b.At(bb.Min.X+x, bb.Min.Y+y)).(color.Gray) //nolint:forcetypeassert // GrayModel always yields Gray
			total += math.Abs(float64(ga.Y) - float64(gb.Y))
		}
	}
	return total / float64(ba.Dx()*ba.Dy())
}
