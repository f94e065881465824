// Package rectify flattens a photographed document into an upright rectangle
// using the projective transform defined by its four corners.
package rectify

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrRectificationFailed is returned when no output can be produced for the
// given image and corners. It wraps the underlying cause.
var ErrRectificationFailed = errors.New("rectification failed")

// minQuadArea is the smallest source quadrilateral, in square pixels, that is
// still considered a document rather than a degenerate shape.
const minQuadArea = 1.0

// Options controls how a document is flattened.
type Options struct {
	// Aspect, when non-nil, forces the output to this width/height ratio or
	// its reciprocal, whichever is closer to the measured shape.
	Aspect *float64
	// DebugDir, if non-empty, receives overlay and side-by-side PNGs of every rectification.
	DebugDir string
}

// Rectifier applies a fixed set of Options. It is safe for concurrent use.
type Rectifier struct {
	opts Options
}

// New validates opts and returns a Rectifier.
func New(opts Options) (*Rectifier, error) {
	if opts.Aspect != nil {
		if err := ValidateAspect(*opts.Aspect); err != nil {
			return nil, err
		}
	}
	return &Rectifier{opts: opts}, nil
}

// Options returns the options the rectifier was built with.
func (r *Rectifier) Options() Options { return r.opts }

// OutputSize returns the floating point width and height of the flattened
// document. Without an aspect ratio the longer of each pair of opposite edges
// is used. With one, the longer dimension is shrunk until the result matches
// the closer of aspect and 1/aspect.
func OutputSize(c geometry.Corners, aspect *float64) (float64, float64) {
	p := c.Points
	w := math.Max(utils.Distance(p[geometry.TopLeft], p[geometry.TopRight]),
		utils.Distance(p[geometry.BottomRight], p[geometry.BottomLeft]))
	h := math.Max(utils.Distance(p[geometry.TopLeft], p[geometry.BottomLeft]),
		utils.Distance(p[geometry.TopRight], p[geometry.BottomRight]))
	if aspect == nil || h == 0 {
		return w, h
	}

	r := *aspect
	current := w / h
	target := 1 / r
	if math.Abs(current-r) <= math.Abs(current-1/r) {
		target = r
	}
	if current > target {
		w = h * target
	} else {
		h = w / target
	}
	return w, h
}

// Transform flattens the region of img enclosed by the absolute corners c.
// A *image.Gray input produces a *image.Gray; anything else produces an
// *image.RGBA. The input is never modified.
func (r *Rectifier) Transform(img image.Image, c geometry.Corners) (image.Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrRectificationFailed)
	}
	if c.Space != geometry.Absolute {
		return nil, fmt.Errorf("%w: %w: corners are %s", ErrRectificationFailed, geometry.ErrCoordinateSpace, c.Space)
	}
	if err := checkBounds(img.Bounds(), c); err != nil {
		return nil, err
	}
	if area := c.Area(); area < minQuadArea || math.IsNaN(area) {
		return nil, fmt.Errorf("%w: degenerate quadrilateral (area %.2f)", ErrRectificationFailed, area)
	}

	w, h := OutputSize(c, r.opts.Aspect)
	dw, dh := int(w), int(h)
	if dw < 1 || dh < 1 {
		return nil, fmt.Errorf("%w: output size %dx%d", ErrRectificationFailed, dw, dh)
	}

	dst := [4]utils.Point{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
	// Solve for the destination -> source mapping directly so every output
	// pixel can be inverse-sampled without inverting a matrix.
	H, ok := computeHomography(dst, c.Points)
	if !ok {
		return nil, fmt.Errorf("%w: singular perspective transform", ErrRectificationFailed)
	}

	out := warpPerspective(img, H, dw, dh)

	if r.opts.DebugDir != "" {
		if err := dumpOverlayPNG(r.opts.DebugDir, img, c.Slice()); err != nil {
			slog.Warn("rectify: writing overlay failed", "dir", r.opts.DebugDir, "error", err)
		}
		if err := dumpComparePNG(r.opts.DebugDir, img, c.Slice(), out); err != nil {
			slog.Warn("rectify: writing comparison failed", "dir", r.opts.DebugDir, "error", err)
		}
	}
	return out, nil
}

// checkBounds rejects corners more than one image size beyond the source
// raster. Such quads cannot come from the image and would size the output
// far past the source.
func checkBounds(b image.Rectangle, c geometry.Corners) error {
	w, h := float64(b.Dx()), float64(b.Dy())
	minX, maxX := float64(b.Min.X)-w, float64(b.Max.X)+w
	minY, maxY := float64(b.Min.Y)-h, float64(b.Max.Y)+h
	for _, p := range c.Points {
		if !(p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY) {
			return fmt.Errorf("%w: corner (%v, %v) lies outside the %dx%d source", ErrRectificationFailed, p.X, p.Y, b.Dx(), b.Dy())
		}
	}
	return nil
}

// Transform flattens img with default options and the given aspect ratio.
func Transform(img image.Image, c geometry.Corners, aspect *float64) (image.Image, error) {
	r, err := New(Options{Aspect: aspect})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRectificationFailed, err)
	}
	return r.Transform(img, c)
}
