// Package orientation reconciles sensor-native frame orientation with the
// orientation the user sees. Camera stacks report that discrepancy as a
// clockwise multiple of 90 degrees; corner sets and rasters are remapped
// with the same convention so they stay consistent with each other.
package orientation

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/disintegration/imaging"
)

// Rotation is a clockwise rotation in degrees.
type Rotation int

// Supported rotations.
const (
	Rotation0   Rotation = 0
	Rotation90  Rotation = 90
	Rotation180 Rotation = 180
	Rotation270 Rotation = 270
)

// ErrUnsupportedRotation is returned for rotations other than 0, 90, 180 and 270.
var ErrUnsupportedRotation = errors.New("unsupported rotation value")

// ParseRotation converts a degree value reported by a camera stack.
func ParseRotation(degrees int) (Rotation, error) {
	r := Rotation(degrees)
	if err := r.Validate(); err != nil {
		return 0, err
	}
	return r, nil
}

// Validate reports whether r is one of the four supported values.
func (r Rotation) Validate() error {
	switch r {
	case Rotation0, Rotation90, Rotation180, Rotation270:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedRotation, int(r))
	}
}

// SwapsAxes reports whether the rotation exchanges width and height.
func (r Rotation) SwapsAxes() bool {
	return r == Rotation90 || r == Rotation270
}

// RotateCorners remaps normalized corners into the frame rotated clockwise
// by r and relabels them so the result is again TL, TR, BR, BL.
func RotateCorners(c geometry.Corners, r Rotation) (geometry.Corners, error) {
	if err := r.Validate(); err != nil {
		return geometry.Corners{}, err
	}
	if c.Space != geometry.Normalized {
		return geometry.Corners{}, fmt.Errorf("%w: rotation expects normalized corners", geometry.ErrCoordinateSpace)
	}

	tl, tr, br, bl := c.Points[0], c.Points[1], c.Points[2], c.Points[3]
	out := geometry.Corners{Space: geometry.Normalized}
	switch r {
	case Rotation0:
		out.Points = c.Points
	case Rotation90:
		out.Points = [4]utils.Point{
			{X: 1 - bl.Y, Y: bl.X},
			{X: 1 - tl.Y, Y: tl.X},
			{X: 1 - tr.Y, Y: tr.X},
			{X: 1 - br.Y, Y: br.X},
		}
	case Rotation180:
		out.Points = [4]utils.Point{
			{X: 1 - br.X, Y: 1 - br.Y},
			{X: 1 - bl.X, Y: 1 - bl.Y},
			{X: 1 - tl.X, Y: 1 - tl.Y},
			{X: 1 - tr.X, Y: 1 - tr.Y},
		}
	case Rotation270:
		out.Points = [4]utils.Point{
			{X: tr.Y, Y: 1 - tr.X},
			{X: br.Y, Y: 1 - br.X},
			{X: bl.Y, Y: 1 - bl.X},
			{X: tl.Y, Y: 1 - tl.X},
		}
	}
	return out, nil
}

// RotateImage turns img clockwise by r.
func RotateImage(img image.Image, r Rotation) (image.Image, error) {
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "rotate", Err: errors.New("input image is nil")}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch r {
	case Rotation90:
		return imaging.Rotate270(img), nil
	case Rotation180:
		return imaging.Rotate180(img), nil
	case Rotation270:
		return imaging.Rotate90(img), nil
	default:
		return img, nil
	}
}
