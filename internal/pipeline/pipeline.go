// Package pipeline ties frame conversion, detection, rotation and
// rectification together into the operations a scanner front end calls.
package pipeline

import (
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/filter"
	"github.com/MeKo-Tech/docscan/internal/rectify"
)

// Config holds configuration for the scan pipeline and its components.
type Config struct {
	Detector   detector.Config
	DebugStage detector.DebugStage
	Rectify    rectify.Options
	Color      filter.Profile
	Parallel   ParallelConfig
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Detector:   detector.DefaultConfig(),
		DebugStage: detector.StageNone,
		Color:      filter.Color,
		Parallel:   DefaultParallelConfig(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithDetectorConfig overrides the detection cascade constants.
func (b *Builder) WithDetectorConfig(cfg detector.Config) *Builder {
	b.cfg.Detector = cfg
	return b
}

// WithMaxDimension bounds the working resolution of detection.
func (b *Builder) WithMaxDimension(n int) *Builder {
	if n > 0 {
		b.cfg.Detector.MaxDimension = n
	}
	return b
}

// WithDebugStage selects the intermediate raster returned by DetectDocument.
func (b *Builder) WithDebugStage(s detector.DebugStage) *Builder {
	b.cfg.DebugStage = s
	return b
}

// WithAspect constrains rectified output to r or 1/r. Nil removes the constraint.
func (b *Builder) WithAspect(r *float64) *Builder {
	b.cfg.Rectify.Aspect = r
	return b
}

// WithRectifyDebugDir enables debug dumps for the rectification stage into dir.
func (b *Builder) WithRectifyDebugDir(dir string) *Builder {
	b.cfg.Rectify.DebugDir = dir
	return b
}

// WithColorProfile sets the profile applied to scanned documents.
func (b *Builder) WithColorProfile(p filter.Profile) *Builder {
	b.cfg.Color = p
	return b
}

// WithParallelWorkers sets the number of parallel workers for batch scanning.
func (b *Builder) WithParallelWorkers(workers int) *Builder {
	if workers > 0 {
		b.cfg.Parallel.MaxWorkers = workers
	}
	return b
}

// WithProgressCallback reports batch progress to cb.
func (b *Builder) WithProgressCallback(cb ProgressCallback) *Builder {
	b.cfg.Parallel.ProgressCallback = cb
	return b
}

// Config returns a copy of the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and initializes all components.
func (b *Builder) Build() (*Pipeline, error) {
	det, err := detector.New(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}
	rect, err := rectify.New(b.cfg.Rectify)
	if err != nil {
		return nil, fmt.Errorf("create rectifier: %w", err)
	}
	if err := b.cfg.Color.Validate(); err != nil {
		return nil, err
	}
	if b.cfg.Parallel.MaxWorkers <= 0 {
		b.cfg.Parallel.MaxWorkers = runtime.NumCPU()
	}
	return &Pipeline{Detector: det, Rectifier: rect, cfg: b.cfg}, nil
}

// Pipeline holds initialized components. It is safe for concurrent use.
type Pipeline struct {
	Detector  *detector.Detector
	Rectifier *rectify.Rectifier
	cfg       Config
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }
