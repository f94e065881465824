package geometry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrCornerSyntax is returned for corner lists that cannot be parsed.
var ErrCornerSyntax = errors.New("invalid corner list")

// ParsePoints reads a JSON array of {"x","y"} objects or the compact form
// "x,y;x,y;x,y;x,y". It does not check the number of points.
func ParsePoints(s string) ([]utils.Point, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrCornerSyntax)
	}
	if strings.HasPrefix(s, "[") {
		var pts []utils.Point
		if err := json.Unmarshal([]byte(s), &pts); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCornerSyntax, err)
		}
		return pts, nil
	}

	parts := strings.Split(s, ";")
	pts := make([]utils.Point, 0, len(parts))
	for _, part := range parts {
		xy := strings.Split(strings.TrimSpace(part), ",")
		if len(xy) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrCornerSyntax, part)
		}
		x, errX := strconv.ParseFloat(strings.TrimSpace(xy[0]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(xy[1]), 64)
		if errX != nil || errY != nil {
			return nil, fmt.Errorf("%w: %q", ErrCornerSyntax, part)
		}
		pts = append(pts, utils.Point{X: x, Y: y})
	}
	return pts, nil
}

// Parse reads four points with ParsePoints, checks their range and orders
// them. Absolute values must be finite and non-negative, normalized values
// must lie in [0,1].
func Parse(s string, space Space) (Corners, error) {
	pts, err := ParsePoints(s)
	if err != nil {
		return Corners{}, err
	}
	for _, p := range pts {
		if err := checkRange(p, space); err != nil {
			return Corners{}, err
		}
	}
	return FromPoints(pts, space)
}

func checkRange(p utils.Point, space Space) error {
	for _, v := range [2]float64{p.X, p.Y} {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0):
			return fmt.Errorf("%w: non-finite coordinate in (%v, %v)", ErrCornerSyntax, p.X, p.Y)
		case v < 0:
			return fmt.Errorf("%w: negative coordinate in (%v, %v)", ErrCornerSyntax, p.X, p.Y)
		case space == Normalized && v > 1:
			return fmt.Errorf("%w: normalized coordinate outside [0,1] in (%v, %v)", ErrCornerSyntax, p.X, p.Y)
		}
	}
	return nil
}

// String renders c in the compact form accepted by ParsePoints.
func (c Corners) String() string {
	parts := make([]string, len(c.Points))
	for i, p := range c.Points {
		parts[i] = strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)
	}
	return strings.Join(parts, ";")
}
