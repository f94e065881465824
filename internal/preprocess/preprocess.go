// Package preprocess bounds the working resolution of grayscale frames before
// detection so later stages run at a predictable cost.
package preprocess

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/disintegration/imaging"
)

// DefaultMaxDimension is the longest side, in pixels, a frame may have before it is scaled down.
const DefaultMaxDimension = 1080

// ErrInvalidRaster is returned for nil or empty rasters.
var ErrInvalidRaster = errors.New("raster must be non-nil with positive dimensions")

// TargetSize returns the dimensions a w x h raster is scaled to. The long side
// becomes maxDim exactly and the short side is scaled by the same factor and
// truncated. Rasters already within bounds keep their size.
func TargetSize(w, h, maxDim int) (int, int) {
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return w, h
	}
	if w >= h {
		scale := float64(maxDim) / float64(w)
		return maxDim, max(1, int(float64(h)*scale))
	}
	scale := float64(maxDim) / float64(h)
	return max(1, int(float64(w)*scale)), maxDim
}

// Resize returns img unchanged when both sides are within maxDim; otherwise
// it returns a new raster shrunk with area averaging. The input is never modified.
func Resize(img *image.Gray, maxDim int) (*image.Gray, error) {
	if err := Validate(img); err != nil {
		return nil, err
	}
	b := img.Bounds()
	tw, th := TargetSize(b.Dx(), b.Dy(), maxDim)
	if tw == b.Dx() && th == b.Dy() {
		return img, nil
	}
	// imaging.Box averages every source pixel covered by a destination pixel.
	return utils.ToGray(imaging.Resize(img, tw, th, imaging.Box)), nil
}

// Validate checks the preconditions shared by every pipeline stage.
func Validate(img *image.Gray) error {
	if img == nil {
		return fmt.Errorf("%w: nil", ErrInvalidRaster)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidRaster, b.Dx(), b.Dy())
	}
	return nil
}
