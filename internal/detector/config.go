package detector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/preprocess"
)

// DebugStage selects which intermediate raster, if any, is returned alongside a detection.
type DebugStage int

// The numeric values of the stages are stable and used by configuration files.
const (
	StageNone           DebugStage = -1
	StagePreprocessed   DebugStage = 0
	StageContentRemoved DebugStage = 1
	StageEdgesDetected  DebugStage = 2
)

func (s DebugStage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StagePreprocessed:
		return "preprocessed"
	case StageContentRemoved:
		return "content_removed"
	case StageEdgesDetected:
		return "edges_detected"
	default:
		return "stage(" + strconv.Itoa(int(s)) + ")"
	}
}

// ParseDebugStage accepts a stage name or its numeric id.
func ParseDebugStage(s string) (DebugStage, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "off":
		return StageNone, nil
	case "preprocessed", "0":
		return StagePreprocessed, nil
	case "content_removed", "content-removed", "1":
		return StageContentRemoved, nil
	case "edges_detected", "edges-detected", "edges", "2":
		return StageEdgesDetected, nil
	default:
		return StageNone, fmt.Errorf("unknown debug stage %q", s)
	}
}

// Config holds the tuning constants of the detection cascade.
type Config struct {
	// MaxDimension bounds the longest side of the working raster.
	MaxDimension int
	// CloseKernel is the side of the square element used to erase document content.
	CloseKernel int
	// CloseIterations is how often dilation and then erosion are repeated.
	CloseIterations int
	// BlurKernel is the odd side of the Gaussian kernel; sigma is derived from it.
	BlurKernel int
	// CannyLow and CannyHigh are the hysteresis thresholds on the L1 gradient magnitude.
	CannyLow  float64
	CannyHigh float64
	// EdgeDilate is the size of the elliptical element closing gaps in the edge map.
	EdgeDilate int
	// MaxCandidates limits how many of the largest contours are tried.
	MaxCandidates int
	// EpsilonFraction scales the perimeter into the polygon approximation tolerance.
	EpsilonFraction float64
}

// DefaultConfig returns the tuned defaults for live camera frames.
func DefaultConfig() Config {
	return Config{
		MaxDimension:    preprocess.DefaultMaxDimension,
		CloseKernel:     10,
		CloseIterations: 3,
		BlurKernel:      11,
		CannyLow:        30,
		CannyHigh:       150,
		EdgeDilate:      2,
		MaxCandidates:   5,
		EpsilonFraction: 0.02,
	}
}

// Validate checks that every constant is usable.
func (c Config) Validate() error {
	var errs []error
	if c.MaxDimension <= 0 {
		errs = append(errs, fmt.Errorf("max dimension must be positive, got %d", c.MaxDimension))
	}
	if c.CloseKernel < 1 {
		errs = append(errs, fmt.Errorf("close kernel must be at least 1, got %d", c.CloseKernel))
	}
	if c.CloseIterations < 0 {
		errs = append(errs, fmt.Errorf("close iterations must not be negative, got %d", c.CloseIterations))
	}
	if c.BlurKernel < 1 || c.BlurKernel%2 == 0 {
		errs = append(errs, fmt.Errorf("blur kernel must be a positive odd number, got %d", c.BlurKernel))
	}
	if c.CannyLow < 0 || c.CannyHigh < c.CannyLow {
		errs = append(errs, fmt.Errorf("canny thresholds must satisfy 0 <= low <= high, got %.1f/%.1f", c.CannyLow, c.CannyHigh))
	}
	if c.EdgeDilate < 1 {
		errs = append(errs, fmt.Errorf("edge dilate must be at least 1, got %d", c.EdgeDilate))
	}
	if c.MaxCandidates < 1 {
		errs = append(errs, fmt.Errorf("max candidates must be at least 1, got %d", c.MaxCandidates))
	}
	if c.EpsilonFraction <= 0 || c.EpsilonFraction >= 1 {
		errs = append(errs, fmt.Errorf("epsilon fraction must be in (0,1), got %g", c.EpsilonFraction))
	}
	return errors.Join(errs...)
}
