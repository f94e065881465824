package geometry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Space identifies the coordinate frame a corner set is expressed in.
type Space int

const (
	// Absolute coordinates are pixels of one specific raster.
	Absolute Space = iota
	// Normalized coordinates lie in [0,1] x [0,1] independent of resolution.
	Normalized
)

func (s Space) String() string {
	switch s {
	case Absolute:
		return "absolute"
	case Normalized:
		return "normalized"
	default:
		return fmt.Sprintf("space(%d)", int(s))
	}
}

var (
	// ErrCornerCount is returned when a corner set does not have exactly four points.
	ErrCornerCount = errors.New("corner set requires exactly 4 points")
	// ErrCoordinateSpace is returned when corners are used in the wrong coordinate space.
	ErrCoordinateSpace = errors.New("corner set is in the wrong coordinate space")
	// ErrInvalidSize is returned for non-positive raster dimensions.
	ErrInvalidSize = errors.New("dimensions must be positive")
)

// Corners is a document quadrilateral in canonical order:
// top-left, top-right, bottom-right, bottom-left.
type Corners struct {
	Points [4]utils.Point
	Space  Space
}

// Index names for Corners.Points.
const (
	TopLeft = iota
	TopRight
	BottomRight
	BottomLeft
)

// FromPoints orders four raw polygon vertices into a canonical corner set.
func FromPoints(pts []utils.Point, space Space) (Corners, error) {
	if len(pts) != 4 {
		return Corners{}, fmt.Errorf("%w: got %d", ErrCornerCount, len(pts))
	}
	return Corners{Points: OrderPoints([4]utils.Point(pts)), Space: space}, nil
}

// OrderPoints labels four points as TL, TR, BR, BL. The two points with the
// smallest y form the top edge, the remaining two the bottom edge; each edge
// is then split by x. This assumes less than ~45 degrees of in-plane rotation.
func OrderPoints(pts [4]utils.Point) [4]utils.Point {
	s := pts
	sort.SliceStable(s[:], func(i, j int) bool {
		if s[i].Y != s[j].Y {
			return s[i].Y < s[j].Y
		}
		return s[i].X < s[j].X
	})
	top := [2]utils.Point{s[0], s[1]}
	bottom := [2]utils.Point{s[2], s[3]}
	if top[0].X > top[1].X {
		top[0], top[1] = top[1], top[0]
	}
	if bottom[0].X > bottom[1].X {
		bottom[0], bottom[1] = bottom[1], bottom[0]
	}
	return [4]utils.Point{top[0], top[1], bottom[1], bottom[0]}
}

// Slice returns the corners as a slice in canonical order.
func (c Corners) Slice() []utils.Point {
	return append([]utils.Point(nil), c.Points[:]...)
}

// Normalize divides absolute corners by the raster size.
func (c Corners) Normalize(width, height int) (Corners, error) {
	if c.Space != Absolute {
		return Corners{}, fmt.Errorf("%w: normalize expects absolute corners, got %s", ErrCoordinateSpace, c.Space)
	}
	if width <= 0 || height <= 0 {
		return Corners{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	out := Corners{Space: Normalized}
	for i, p := range c.Points {
		out.Points[i] = utils.ScalePoint(p, 1/float64(width), 1/float64(height))
	}
	return out, nil
}

// Denormalize multiplies normalized corners by the raster size.
func (c Corners) Denormalize(width, height int) (Corners, error) {
	if c.Space != Normalized {
		return Corners{}, fmt.Errorf("%w: denormalize expects normalized corners, got %s", ErrCoordinateSpace, c.Space)
	}
	if width <= 0 || height <= 0 {
		return Corners{}, fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}
	out := Corners{Space: Absolute}
	for i, p := range c.Points {
		out.Points[i] = utils.ScalePoint(p, float64(width), float64(height))
	}
	return out, nil
}

// Area returns the enclosed area in the corners' own units.
func (c Corners) Area() float64 {
	return utils.ContourArea(c.Points[:])
}
