package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/filter"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/orientation"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

var errNotInitialized = errors.New("pipeline not initialized")

// DetectDocument finds the document quadrilateral in img. Color input is
// reduced to luma first. A frame without a document yields a Result with nil
// Corners and a nil error.
func (p *Pipeline) DetectDocument(img image.Image, stage detector.DebugStage) (detector.Result, error) {
	if p == nil || p.Detector == nil {
		return detector.Result{}, errNotInitialized
	}
	if img == nil {
		return detector.Result{}, &utils.ImageProcessingError{Operation: "detect", Err: errors.New("nil image")}
	}
	return p.Detector.Detect(utils.ToGray(img), stage)
}

// TransformDocument rectifies the region of img bounded by absolute corners c.
// A nil aspect leaves the output proportions to the quadrilateral.
func (p *Pipeline) TransformDocument(img image.Image, c geometry.Corners, aspect *float64) (image.Image, error) {
	if p == nil || p.Rectifier == nil {
		return nil, errNotInitialized
	}
	opts := p.Rectifier.Options()
	opts.Aspect = aspect
	r, err := rectify.New(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rectify.ErrRectificationFailed, err)
	}
	return r.Transform(img, c)
}

// RotateCorners maps normalized corners through a clockwise device rotation.
func RotateCorners(c geometry.Corners, r orientation.Rotation) (geometry.Corners, error) {
	return orientation.RotateCorners(c, r)
}

// RotateBitmap turns img clockwise by r.
func RotateBitmap(img image.Image, r orientation.Rotation) (image.Image, error) {
	return orientation.RotateImage(img, r)
}

// Capture rectifies a full-resolution still using corners detected on a
// preview frame. When the device reports 90 or 270 degrees both the still
// and the corners are turned so they share the sensor's orientation; 180
// leaves them as delivered.
func (p *Pipeline) Capture(
	img image.Image,
	c geometry.Corners,
	rotation orientation.Rotation,
	aspect *float64,
) (image.Image, error) {
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "capture", Err: errors.New("nil image")}
	}
	if err := rotation.Validate(); err != nil {
		return nil, err
	}
	if c.Space != geometry.Normalized {
		return nil, fmt.Errorf("capture: %w: expected normalized corners", geometry.ErrCoordinateSpace)
	}

	if rotation.SwapsAxes() {
		rotated, err := RotateBitmap(img, rotation)
		if err != nil {
			return nil, err
		}
		if c, err = RotateCorners(c, rotation); err != nil {
			return nil, err
		}
		img = rotated
	}

	b := img.Bounds()
	abs, err := c.Denormalize(b.Dx(), b.Dy())
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	out, err := p.TransformDocument(img, abs, aspect)
	if err != nil {
		return nil, err
	}
	slog.Debug("Captured document",
		"rotation", int(rotation),
		"width", out.Bounds().Dx(),
		"height", out.Bounds().Dy())
	return out, nil
}

// ScanResult is the outcome of a full scan of one image.
type ScanResult struct {
	Source string `json:"source,omitempty"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Found  bool   `json:"found"`
	// Normalized and Absolute list TL, TR, BR, BL; Absolute is in source pixels.
	Normalized []utils.Point `json:"normalized,omitempty"`
	Absolute   []utils.Point `json:"absolute,omitempty"`
	OutputW    int           `json:"output_width,omitempty"`
	OutputH    int           `json:"output_height,omitempty"`
	Profile    string        `json:"color_profile,omitempty"`
	Duration   time.Duration `json:"duration_ns"`

	// Image is the rectified and filtered document, nil when nothing was found.
	Image image.Image `json:"-"`
	// Debug is the intermediate raster requested through the configured debug stage.
	Debug *image.Gray `json:"-"`
}

// Scan detects, rectifies and filters the document in img. A missing
// document is reported through Found, not as an error.
func (p *Pipeline) Scan(ctx context.Context, img image.Image) (*ScanResult, error) {
	if p == nil || p.Detector == nil || p.Rectifier == nil {
		return nil, errNotInitialized
	}
	if img == nil {
		return nil, &utils.ImageProcessingError{Operation: "scan", Err: errors.New("nil image")}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	b := img.Bounds()
	res := &ScanResult{Width: b.Dx(), Height: b.Dy()}

	det, err := p.DetectDocument(img, p.cfg.DebugStage)
	if err != nil {
		return nil, err
	}
	res.Debug = det.Debug
	if !det.Found() {
		res.Duration = time.Since(start)
		return res, nil
	}

	abs, err := det.Corners.Denormalize(res.Width, res.Height)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	flat, err := p.Rectifier.Transform(img, abs)
	if err != nil {
		return nil, err
	}
	out, err := filter.Apply(flat, p.cfg.Color)
	if err != nil {
		return nil, err
	}

	res.Found = true
	res.Normalized = det.Corners.Slice()
	res.Absolute = abs.Slice()
	res.Image = out
	res.OutputW, res.OutputH = out.Bounds().Dx(), out.Bounds().Dy()
	res.Profile = p.cfg.Color.String()
	res.Duration = time.Since(start)
	return res, nil
}

// ScanImages scans images sequentially. Results keep the input order.
func (p *Pipeline) ScanImages(ctx context.Context, images []image.Image) ([]*ScanResult, error) {
	out := make([]*ScanResult, len(images))
	for i, img := range images {
		r, err := p.Scan(ctx, img)
		if err != nil {
			return out, fmt.Errorf("image %d: %w", i, err)
		}
		out[i] = r
	}
	return out, nil
}
