package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/MeKo-Tech/docscan/internal/analyzer"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	analyzerCfg analyzer.Config
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeoutSec  int
	jpegQuality int
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	JPEGQuality int
	// RequestsPerMinute limits each client on the processing endpoints; 0 disables the limit.
	RequestsPerMinute int
	PipelineConfig    pipeline.Config
	AnalyzerConfig    analyzer.Config
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// DetectResponse is returned by /detect.
type DetectResponse struct {
	Found      bool          `json:"found"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Normalized []utils.Point `json:"normalized,omitempty"`
	Absolute   []utils.Point `json:"absolute,omitempty"`
	DurationMs float64       `json:"duration_ms"`
	DebugStage string        `json:"debug_stage,omitempty"`
	// DebugPNG is the base64 encoded intermediate raster.
	DebugPNG string `json:"debug_png,omitempty"`
}

// ScanResponse is returned by /scan when format=json.
type ScanResponse struct {
	*pipeline.ScanResult
	// ImagePNG is the base64 encoded rectified document.
	ImagePNG string `json:"image_png,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer creates a new server instance with a ready scan pipeline.
func NewServer(config Config) (*Server, error) {
	pl, err := pipeline.NewBuilder().WithConfig(config.PipelineConfig).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	var rl *RateLimiter
	if config.RequestsPerMinute > 0 {
		rl = NewRateLimiter(config.RequestsPerMinute)
	}

	return &Server{
		pipeline:    pl,
		analyzerCfg: config.AnalyzerConfig,
		rateLimiter: rl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeoutSec:  config.TimeoutSec,
		jpegQuality: config.JPEGQuality,
	}, nil
}

// Run drives background maintenance until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	if s.rateLimiter != nil {
		s.rateLimiter.RunJanitor(ctx)
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/detect", s.corsMiddleware(s.rateLimitMiddleware(s.detectHandler)))
	mux.HandleFunc("/rectify", s.corsMiddleware(s.rateLimitMiddleware(s.rectifyHandler)))
	mux.HandleFunc("/scan", s.corsMiddleware(s.rateLimitMiddleware(s.scanHandler)))
	mux.HandleFunc("/ws/frames", s.framesWebSocketHandler)
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
