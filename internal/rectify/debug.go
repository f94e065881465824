package rectify

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

var (
	overlayColor = color.RGBA{255, 0, 0, 255}
	markerColor  = color.RGBA{0, 200, 255, 255}
	frameColor   = color.RGBA{0, 255, 0, 255}
)

// DrawOverlay returns a copy of img with the quadrilateral c outlined and its
// top-left corner marked. Normalized corners are scaled to the image size.
func DrawOverlay(img image.Image, c geometry.Corners) (*image.RGBA, error) {
	b := img.Bounds()
	if c.Space == geometry.Normalized {
		var err error
		if c, err = c.Denormalize(b.Dx(), b.Dy()); err != nil {
			return nil, err
		}
	}
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), img, b.Min, draw.Src)

	thickness := max(2, min(b.Dx(), b.Dy())/200)
	utils.DrawPolygon(canvas, c.Slice(), overlayColor, thickness)
	utils.DrawMarker(canvas, c.Points[geometry.TopLeft], markerColor, thickness*3)
	return canvas, nil
}

func dumpOverlayPNG(dir string, src image.Image, quad []utils.Point) error {
	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)
	utils.DrawPolygon(canvas, quad, overlayColor, 2)
	return utils.SaveImage(canvas, debugPath(dir, "rect_overlay"), 0)
}

// dumpComparePNG writes the source with its quad next to the flattened result.
func dumpComparePNG(dir string, src image.Image, srcQuad []utils.Point, dst image.Image) error {
	sb := src.Bounds()
	db := dst.Bounds()
	gap := 10
	canvas := image.NewRGBA(image.Rect(0, 0, sb.Dx()+gap+db.Dx(), max(sb.Dy(), db.Dy())))
	draw.Draw(canvas, image.Rect(0, 0, sb.Dx(), sb.Dy()), src, sb.Min, draw.Src)

	xoff := sb.Dx() + gap
	draw.Draw(canvas, image.Rect(xoff, 0, xoff+db.Dx(), db.Dy()), dst, db.Min, draw.Src)

	utils.DrawPolygon(canvas, srcQuad, overlayColor, 2)
	utils.DrawPolygon(canvas, []utils.Point{
		{X: float64(xoff), Y: 0},
		{X: float64(xoff + db.Dx() - 1), Y: 0},
		{X: float64(xoff + db.Dx() - 1), Y: float64(db.Dy() - 1)},
		{X: float64(xoff), Y: float64(db.Dy() - 1)},
	}, frameColor, 2)
	return utils.SaveImage(canvas, debugPath(dir, "rect_compare"), 0)
}

func debugPath(dir, prefix string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_%d.png", prefix, time.Now().UnixNano()))
}
