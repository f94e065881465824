package geometry

import (
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ScaleMode selects how a camera frame is laid out inside a preview view.
type ScaleMode int

const (
	// ScaleFill covers the whole view and crops the overflowing axis.
	ScaleFill ScaleMode = iota
	// ScaleFit shows the whole frame and letterboxes the remaining axis.
	ScaleFit
)

// ParseScaleMode accepts "fill" (or empty) and "fit".
func ParseScaleMode(s string) (ScaleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fill":
		return ScaleFill, nil
	case "fit":
		return ScaleFit, nil
	default:
		return 0, fmt.Errorf("unknown scale mode %q (must be fill or fit)", s)
	}
}

// ViewTransform maps frame pixels onto preview view pixels.
type ViewTransform struct {
	Scale  float64
	ShiftX float64
	ShiftY float64
}

// NewViewTransform computes the centred scale and shift for showing a
// frameW x frameH frame in a viewW x viewH view.
func NewViewTransform(frameW, frameH, viewW, viewH int, mode ScaleMode) (ViewTransform, error) {
	if frameW <= 0 || frameH <= 0 || viewW <= 0 || viewH <= 0 {
		return ViewTransform{}, fmt.Errorf("%w: frame %dx%d view %dx%d", ErrInvalidSize, frameW, frameH, viewW, viewH)
	}
	sx := float64(viewW) / float64(frameW)
	sy := float64(viewH) / float64(frameH)
	scale := math.Max(sx, sy)
	if mode == ScaleFit {
		scale = math.Min(sx, sy)
	}
	return ViewTransform{
		Scale:  scale,
		ShiftX: (float64(frameW)*scale - float64(viewW)) / 2,
		ShiftY: (float64(frameH)*scale - float64(viewH)) / 2,
	}, nil
}

// Apply maps one absolute frame point into view coordinates.
func (t ViewTransform) Apply(p utils.Point) utils.Point {
	return utils.Point{X: p.X*t.Scale - t.ShiftX, Y: p.Y*t.Scale - t.ShiftY}
}

// MapToView places normalized corners detected on a frameW x frameH frame
// onto a viewW x viewH preview. The result is in absolute view pixels.
func MapToView(c Corners, frameW, frameH, viewW, viewH int, mode ScaleMode) (Corners, error) {
	abs, err := c.Denormalize(frameW, frameH)
	if err != nil {
		return Corners{}, err
	}
	t, err := NewViewTransform(frameW, frameH, viewW, viewH, mode)
	if err != nil {
		return Corners{}, err
	}
	for i, p := range abs.Points {
		abs.Points[i] = t.Apply(p)
	}
	return abs, nil
}
