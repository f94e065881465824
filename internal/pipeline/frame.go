package pipeline

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// ErrUnsupportedFormat is returned for camera frames that are not planar YUV 4:2:0.
var ErrUnsupportedFormat = errors.New("unsupported frame format")

// PixelFormat identifies the memory layout of a camera frame.
type PixelFormat int

const (
	FormatUnknown PixelFormat = iota
	// FormatYUV420 is planar or semi-planar YUV 4:2:0 with the luma plane first.
	FormatYUV420
)

func (f PixelFormat) String() string {
	switch f {
	case FormatYUV420:
		return "yuv420"
	default:
		return "unknown"
	}
}

// Plane is one channel of a camera frame as delivered by the capture stack.
type Plane struct {
	Data []byte
	// RowStride is the distance in bytes between the starts of two rows.
	RowStride int
	// PixelStride is the distance in bytes between two horizontally adjacent samples.
	PixelStride int
}

// Frame is a raw camera frame.
type Frame struct {
	Format PixelFormat
	Width  int
	Height int
	// Planes holds Y, U and V in that order for FormatYUV420.
	Planes []Plane
}

// FrameFromYCbCr wraps a decoded YCbCr image. Only 4:2:0 subsampling maps to
// FormatYUV420; any other ratio yields FormatUnknown.
func FrameFromYCbCr(img *image.YCbCr) Frame {
	b := img.Bounds()
	f := Frame{Format: FormatUnknown, Width: b.Dx(), Height: b.Dy()}
	if img.SubsampleRatio != image.YCbCrSubsampleRatio420 {
		return f
	}
	f.Format = FormatYUV420
	yOff := img.YOffset(b.Min.X, b.Min.Y)
	cOff := img.COffset(b.Min.X, b.Min.Y)
	f.Planes = []Plane{
		{Data: img.Y[yOff:], RowStride: img.YStride, PixelStride: 1},
		{Data: img.Cb[cOff:], RowStride: img.CStride, PixelStride: 1},
		{Data: img.Cr[cOff:], RowStride: img.CStride, PixelStride: 1},
	}
	return f
}

// ToGrayscale copies the luma plane of f into a new grayscale raster. The
// frame's buffers are not retained.
func ToGrayscale(f Frame) (*image.Gray, error) {
	if f.Format != FormatYUV420 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 || len(f.Planes) == 0 {
		return nil, &utils.ImageProcessingError{
			Operation: "to_grayscale",
			Err:       fmt.Errorf("empty frame %dx%d with %d planes", f.Width, f.Height, len(f.Planes)),
		}
	}
	y := f.Planes[0]
	ps := max(y.PixelStride, 1)
	if y.RowStride < (f.Width-1)*ps+1 {
		return nil, &utils.ImageProcessingError{
			Operation: "to_grayscale",
			Err:       fmt.Errorf("row stride %d too small for width %d", y.RowStride, f.Width),
		}
	}
	if need := (f.Height-1)*y.RowStride + (f.Width-1)*ps + 1; len(y.Data) < need {
		return nil, &utils.ImageProcessingError{
			Operation: "to_grayscale",
			Err:       fmt.Errorf("luma plane holds %d bytes, need %d", len(y.Data), need),
		}
	}

	out := image.NewGray(image.Rect(0, 0, f.Width, f.Height))
	for row := range f.Height {
		src := y.Data[row*y.RowStride:]
		dst := out.Pix[row*out.Stride : row*out.Stride+f.Width]
		if ps == 1 {
			copy(dst, src[:f.Width])
			continue
		}
		for x := range dst {
			dst[x] = src[x*ps]
		}
	}
	return out, nil
}
