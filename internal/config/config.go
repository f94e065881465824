package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/analyzer"
	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/filter"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/rectify"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Scanner: ScannerConfig{
			MaxDimension:    det.MaxDimension,
			CloseKernel:     det.CloseKernel,
			CloseIterations: det.CloseIterations,
			BlurKernel:      det.BlurKernel,
			CannyLow:        det.CannyLow,
			CannyHigh:       det.CannyHigh,
			EdgeDilate:      det.EdgeDilate,
			MaxCandidates:   det.MaxCandidates,
			EpsilonFraction: det.EpsilonFraction,
			DebugStage:      detector.StageNone.String(),
		},
		Rectify: RectifyConfig{
			Aspect:       "none",
			ColorProfile: filter.Color.String(),
			OutputFormat: "png",
			JPEGQuality:  90,
		},
		Analyzer: AnalyzerConfig{
			ResultBuffer: analyzer.DefaultConfig().ResultBuffer,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerMinute: 120,
			},
		},
		Batch: BatchConfig{
			Workers:         runtime.NumCPU(),
			ContinueOnError: true,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.ToDetectorConfig().Validate(); err != nil {
		return fmt.Errorf("invalid scanner settings: %w", err)
	}
	if _, err := detector.ParseDebugStage(c.Scanner.DebugStage); err != nil {
		return fmt.Errorf("invalid scanner.debug_stage: %w", err)
	}

	if _, err := rectify.ParseAspect(c.Rectify.Aspect); err != nil {
		return fmt.Errorf("invalid rectify.aspect: %w", err)
	}
	if _, err := filter.ParseProfile(c.Rectify.ColorProfile); err != nil {
		return fmt.Errorf("invalid rectify.color_profile: %w", err)
	}
	validFormats := []string{"png", "jpeg", "jpg", "pdf"}
	if !slices.Contains(validFormats, strings.ToLower(c.Rectify.OutputFormat)) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Rectify.OutputFormat, strings.Join(validFormats, ", "))
	}
	if c.Rectify.JPEGQuality < 1 || c.Rectify.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d (must be between 1 and 100)", c.Rectify.JPEGQuality)
	}

	if c.Analyzer.ResultBuffer < 1 {
		return fmt.Errorf("invalid analyzer result buffer: %d (must be positive)", c.Analyzer.ResultBuffer)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute (must be positive)", c.Server.RateLimit.RequestsPerMinute)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ToDetectorConfig converts the scanner section to detector.Config.
func (c *Config) ToDetectorConfig() detector.Config {
	return detector.Config{
		MaxDimension:    c.Scanner.MaxDimension,
		CloseKernel:     c.Scanner.CloseKernel,
		CloseIterations: c.Scanner.CloseIterations,
		BlurKernel:      c.Scanner.BlurKernel,
		CannyLow:        c.Scanner.CannyLow,
		CannyHigh:       c.Scanner.CannyHigh,
		EdgeDilate:      c.Scanner.EdgeDilate,
		MaxCandidates:   c.Scanner.MaxCandidates,
		EpsilonFraction: c.Scanner.EpsilonFraction,
	}
}

// ToRectifyOptions converts the rectify section to rectify.Options.
func (c *Config) ToRectifyOptions() (rectify.Options, error) {
	aspect, err := rectify.ParseAspect(c.Rectify.Aspect)
	if err != nil {
		return rectify.Options{}, err
	}
	return rectify.Options{Aspect: aspect, DebugDir: c.Rectify.DebugDir}, nil
}

// ToAnalyzerConfig converts the analyzer section to analyzer.Config.
func (c *Config) ToAnalyzerConfig() analyzer.Config {
	return analyzer.Config{ResultBuffer: c.Analyzer.ResultBuffer}
}

// ToPipelineConfig converts the config to the pipeline configuration.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	stage, err := detector.ParseDebugStage(c.Scanner.DebugStage)
	if err != nil {
		return pipeline.Config{}, err
	}
	rect, err := c.ToRectifyOptions()
	if err != nil {
		return pipeline.Config{}, err
	}
	profile, err := filter.ParseProfile(c.Rectify.ColorProfile)
	if err != nil {
		return pipeline.Config{}, err
	}
	par := pipeline.DefaultParallelConfig()
	if c.Batch.Workers > 0 {
		par.MaxWorkers = c.Batch.Workers
	}
	return pipeline.Config{
		Detector:   c.ToDetectorConfig(),
		DebugStage: stage,
		Rectify:    rect,
		Color:      profile,
		Parallel:   par,
	}, nil
}
