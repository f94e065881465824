//nolint:lll
package config

// Config represents the complete configuration for docscan. It covers every
// command (detect, rectify, scan, serve) and is loaded from configuration
// files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Detection cascade
	Scanner ScannerConfig `mapstructure:"scanner" yaml:"scanner" json:"scanner"`

	// Rectification and output
	Rectify RectifyConfig `mapstructure:"rectify" yaml:"rectify" json:"rectify"`

	// Live frame analysis
	Analyzer AnalyzerConfig `mapstructure:"analyzer" yaml:"analyzer" json:"analyzer"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`

	// Batch scanning
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`
}

// ScannerConfig contains the tuning constants of the detection cascade.
type ScannerConfig struct {
	MaxDimension    int     `mapstructure:"max_dimension" yaml:"max_dimension" json:"max_dimension"`
	CloseKernel     int     `mapstructure:"close_kernel" yaml:"close_kernel" json:"close_kernel"`
	CloseIterations int     `mapstructure:"close_iterations" yaml:"close_iterations" json:"close_iterations"`
	BlurKernel      int     `mapstructure:"blur_kernel" yaml:"blur_kernel" json:"blur_kernel"`
	CannyLow        float64 `mapstructure:"canny_low" yaml:"canny_low" json:"canny_low"`
	CannyHigh       float64 `mapstructure:"canny_high" yaml:"canny_high" json:"canny_high"`
	EdgeDilate      int     `mapstructure:"edge_dilate" yaml:"edge_dilate" json:"edge_dilate"`
	MaxCandidates   int     `mapstructure:"max_candidates" yaml:"max_candidates" json:"max_candidates"`
	EpsilonFraction float64 `mapstructure:"epsilon_fraction" yaml:"epsilon_fraction" json:"epsilon_fraction"`
	DebugStage      string  `mapstructure:"debug_stage" yaml:"debug_stage" json:"debug_stage"`
}

// RectifyConfig contains rectification and output settings.
type RectifyConfig struct {
	// Aspect is a preset name (din476, ansi_letter), "none" or a positive ratio.
	Aspect       string `mapstructure:"aspect" yaml:"aspect" json:"aspect"`
	ColorProfile string `mapstructure:"color_profile" yaml:"color_profile" json:"color_profile"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	JPEGQuality  int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality" json:"jpeg_quality"`
	DebugDir     string `mapstructure:"debug_dir" yaml:"debug_dir" json:"debug_dir"`
}

// AnalyzerConfig contains live analyzer settings.
type AnalyzerConfig struct {
	ResultBuffer int `mapstructure:"result_buffer" yaml:"result_buffer" json:"result_buffer"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string          `mapstructure:"host" yaml:"host" json:"host"`
	Port            int             `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string          `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int             `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int             `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int             `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// BatchConfig contains batch scanning settings.
type BatchConfig struct {
	Workers         int  `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
