// Package detector finds the four corners of a document in a grayscale frame.
//
// The cascade erases the document's content with a morphological closing,
// extracts its outline with Canny, and keeps the largest contour that
// simplifies to a quadrilateral.
package detector

import (
	"cmp"
	"fmt"
	"image"
	"log/slog"
	"slices"
	"time"

	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/preprocess"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// Result is the outcome of one detection. Corners is nil when no document was found.
type Result struct {
	Corners *geometry.Corners
	// Debug holds the requested intermediate raster, nil for StageNone.
	Debug *image.Gray
	// Width and Height are the dimensions of the working raster the corners were normalized by.
	Width, Height int
	Duration      time.Duration
}

// Found reports whether a document was detected.
func (r Result) Found() bool { return r.Corners != nil }

// Detector runs the cascade with a fixed configuration. It holds no per-frame
// state and is safe for concurrent use.
type Detector struct {
	cfg     Config
	k       kernels
	backend backend
}

// New validates cfg and returns a Detector for it.
func New(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid detector config: %w", err)
	}
	k := defaultKernels
	if cfg != DefaultConfig() {
		k = newKernels(cfg)
	}
	return &Detector{cfg: cfg, k: k, backend: newBackend()}, nil
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() Config { return d.cfg }

// Detect locates a document in img. Finding nothing is not an error. A fault
// inside the cascade is logged and reported as an empty result.
func (d *Detector) Detect(img *image.Gray, stage DebugStage) (res Result, err error) {
	if err := preprocess.Validate(img); err != nil {
		return Result{}, &utils.ImageProcessingError{Operation: "detect", Err: err}
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("document detection failed", "panic", r, "backend", d.backend.name())
			res, err = Result{}, nil
		}
	}()

	work, err := preprocess.Resize(img, d.cfg.MaxDimension)
	if err != nil {
		return Result{}, &utils.ImageProcessingError{Operation: "preprocess", Err: err}
	}
	b := work.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()
	if stage == StagePreprocessed {
		res.Debug = utils.CloneGray(work)
	}

	src := planeFromGray(work)
	defer src.release()

	cleaned := d.backend.removeContent(src, d.k, d.cfg)
	defer cleaned.release()
	if stage == StageContentRemoved {
		res.Debug = cleaned.toGray()
	}

	edges := d.backend.edges(cleaned, d.k, d.cfg)
	defer edges.release()
	if stage == StageEdgesDetected {
		res.Debug = edges.toGray()
	}

	if quad, ok := d.selectQuad(d.backend.contours(edges)); ok {
		c, err := geometry.FromPoints(quad, geometry.Absolute)
		if err != nil {
			return Result{}, err
		}
		n, err := c.Normalize(res.Width, res.Height)
		if err != nil {
			return Result{}, err
		}
		res.Corners = &n
	}
	res.Duration = time.Since(start)
	slog.Debug("document detection finished",
		"found", res.Found(), "width", res.Width, "height", res.Height, "duration", res.Duration)
	return res, nil
}

// selectQuad tries the largest contours in order and returns the first that
// simplifies to exactly four vertices.
func (d *Detector) selectQuad(contours [][]utils.Point) ([]utils.Point, bool) {
	type candidate struct {
		pts  []utils.Point
		area float64
	}
	cands := make([]candidate, len(contours))
	for i, c := range contours {
		cands[i] = candidate{pts: c, area: utils.ContourArea(c)}
	}
	slices.SortStableFunc(cands, func(a, b candidate) int { return cmp.Compare(b.area, a.area) })

	for _, c := range cands[:min(len(cands), d.cfg.MaxCandidates)] {
		eps := d.cfg.EpsilonFraction * utils.ArcLength(c.pts, true)
		approx := utils.ApproxPolyDP(c.pts, eps, true)
		if len(approx) == 4 {
			return approx, true
		}
	}
	return nil, false
}

func planeFromGray(g *image.Gray) plane {
	b := g.Bounds()
	p := newPlane(b.Dx(), b.Dy())
	for y := range p.h {
		off := g.PixOffset(b.Min.X, b.Min.Y+y)
		copy(p.pix[y*p.w:(y+1)*p.w], g.Pix[off:off+p.w])
	}
	return p
}

// toGray copies p into a standalone raster that outlives the pooled buffer.
func (p plane) toGray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, p.w, p.h))
	copy(g.Pix, p.pix)
	return g
}

var defaultDetector, _ = New(DefaultConfig())

// Detect runs the default detector.
func Detect(img *image.Gray, stage DebugStage) (Result, error) {
	return defaultDetector.Detect(img, stage)
}
