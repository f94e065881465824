// Package filter applies the output color profiles offered after a document
// has been flattened.
package filter

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// Profile selects how a rectified document is rendered. The numeric values
// are stable and used in stored preferences.
type Profile int

const (
	Color         Profile = 1
	Grayscale     Profile = 2
	BlackAndWhite Profile = 3
)

// BlackAndWhiteThreshold is the gray level at and above which a pixel turns white.
const BlackAndWhiteThreshold = 128

// ErrUnknownProfile is returned for unrecognised profile names or ids.
var ErrUnknownProfile = errors.New("unknown color profile")

func (p Profile) String() string {
	switch p {
	case Color:
		return "color"
	case Grayscale:
		return "grayscale"
	case BlackAndWhite:
		return "bw"
	default:
		return "profile(" + strconv.Itoa(int(p)) + ")"
	}
}

// Validate reports whether p is a known profile.
func (p Profile) Validate() error {
	switch p {
	case Color, Grayscale, BlackAndWhite:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownProfile, int(p))
	}
}

// ParseProfile accepts a profile name or its numeric id.
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "color", "colour", "1":
		return Color, nil
	case "grayscale", "greyscale", "gray", "grey", "2":
		return Grayscale, nil
	case "bw", "black_and_white", "black-and-white", "blackandwhite", "3":
		return BlackAndWhite, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
}

// Apply renders img with profile p. Color returns img itself; the other
// profiles return a new *image.Gray.
func Apply(img image.Image, p Profile) (image.Image, error) {
	switch p {
	case Color:
		return img, nil
	case Grayscale:
		return toGray(img), nil
	case BlackAndWhite:
		return Threshold(toGray(img), BlackAndWhiteThreshold), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownProfile, int(p))
	}
}

// toGray desaturates img with Rec. 601 luma weights.
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, g.Bounds().Dx(), g.Bounds().Dy()))
		for y := range out.Rect.Dy() {
			copy(out.Pix[y*out.Stride:y*out.Stride+out.Rect.Dx()], g.Pix[g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y):])
		}
		return out
	}
	desat := imaging.Grayscale(img)
	out := image.NewGray(desat.Rect)
	for i := range out.Pix {
		out.Pix[i] = desat.Pix[i*4]
	}
	return out
}

// Threshold maps every pixel of g to black or white around t.
func Threshold(g *image.Gray, t uint8) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
	for y := range out.Rect.Dy() {
		src := g.Pix[g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y):]
		dst := out.Pix[y*out.Stride : y*out.Stride+out.Rect.Dx()]
		for x := range dst {
			if src[x] >= t {
				dst[x] = 255
			}
		}
	}
	return out
}
