package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/filter"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/orientation"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/rectify"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/MeKo-Tech/docscan/internal/version"
)

var errBadRequest = errors.New("bad request")

// healthHandler returns the health status of the server.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	s.writeJSON(w, http.StatusOK, response)
}

// detectHandler locates the document in an uploaded image.
func (s *Server) detectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, err := s.parseImageUpload(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("detect", "error").Inc()
		return // error already written
	}

	stage, err := detector.ParseDebugStage(r.FormValue("debug_stage"))
	if err != nil {
		scanRequestsTotal.WithLabelValues("detect", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	res, err := s.pipeline.DetectDocument(img, stage)
	duration := time.Since(start)
	if err != nil {
		scanRequestsTotal.WithLabelValues("detect", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Detection failed: %v", err), statusForError(err))
		return
	}
	scanProcessingDuration.WithLabelValues("detect").Observe(duration.Seconds())

	b := img.Bounds()
	resp := DetectResponse{
		Found:      res.Found(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		DurationMs: float64(duration.Microseconds()) / 1000,
	}
	if res.Found() {
		resp.Normalized = res.Corners.Slice()
		if abs, err := res.Corners.Denormalize(b.Dx(), b.Dy()); err == nil {
			resp.Absolute = abs.Slice()
		}
		scanRequestsTotal.WithLabelValues("detect", "found").Inc()
	} else {
		scanRequestsTotal.WithLabelValues("detect", "empty").Inc()
	}
	if res.Debug != nil {
		var buf bytes.Buffer
		if err := utils.EncodeImage(&buf, res.Debug, "png", 0); err != nil {
			slog.Warn("Failed to encode debug raster", "stage", stage.String(), "error", err)
		} else {
			resp.DebugStage = stage.String()
			resp.DebugPNG = base64.StdEncoding.EncodeToString(buf.Bytes())
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// rectifyRequest holds the parsed form fields of a /rectify call.
type rectifyRequest struct {
	corners  geometry.Corners
	aspect   *float64
	profile  filter.Profile
	rotation orientation.Rotation
	format   string
}

func parseRectifyRequest(r *http.Request) (rectifyRequest, error) {
	var req rectifyRequest

	normalized := false
	if v := r.FormValue("normalized"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return req, fmt.Errorf("%w: normalized must be a boolean", errBadRequest)
		}
		normalized = b
	}
	space := geometry.Absolute
	if normalized {
		space = geometry.Normalized
	}

	var err error
	if req.corners, err = geometry.Parse(r.FormValue("corners"), space); err != nil {
		return req, err
	}
	if req.aspect, err = rectify.ParseAspect(r.FormValue("aspect")); err != nil {
		return req, err
	}
	if req.profile, err = filter.ParseProfile(r.FormValue("color")); err != nil {
		return req, err
	}
	if v := r.FormValue("rotation"); v != "" {
		deg, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("%w: rotation must be an integer", errBadRequest)
		}
		if req.rotation, err = orientation.ParseRotation(deg); err != nil {
			return req, err
		}
		if req.rotation != orientation.Rotation0 && !normalized {
			return req, fmt.Errorf("%w: rotation requires normalized corners", errBadRequest)
		}
	}
	if req.format, err = parseOutputFormat(r.FormValue("format"), "png"); err != nil {
		return req, err
	}
	return req, nil
}

// rectifyHandler flattens an uploaded image with caller supplied corners.
func (s *Server) rectifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, err := s.parseImageUpload(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("rectify", "error").Inc()
		return
	}
	req, err := parseRectifyRequest(r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("rectify", "error").Inc()
		s.writeErrorResponse(w, err.Error(), statusForError(err))
		return
	}

	start := time.Now()
	var out image.Image
	if req.corners.Space == geometry.Normalized {
		out, err = s.pipeline.Capture(img, req.corners, req.rotation, req.aspect)
	} else {
		out, err = s.pipeline.TransformDocument(img, req.corners, req.aspect)
	}
	if err == nil {
		out, err = filter.Apply(out, req.profile)
	}
	if err != nil {
		scanRequestsTotal.WithLabelValues("rectify", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Rectification failed: %v", err), statusForError(err))
		return
	}
	scanRequestsTotal.WithLabelValues("rectify", "found").Inc()
	scanProcessingDuration.WithLabelValues("rectify").Observe(time.Since(start).Seconds())

	s.writeImage(w, out, req.format)
}

// scanHandler runs detection, rectification and filtering on an upload.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	img, err := s.parseImageUpload(w, r)
	if err != nil {
		scanRequestsTotal.WithLabelValues("scan", "error").Inc()
		return
	}
	format, err := parseOutputFormat(r.FormValue("format"), "json")
	if err != nil {
		scanRequestsTotal.WithLabelValues("scan", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	res, err := s.pipeline.Scan(ctx, img)
	if err != nil {
		scanRequestsTotal.WithLabelValues("scan", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("Scan failed: %v", err), statusForError(err))
		return
	}
	scanProcessingDuration.WithLabelValues("scan").Observe(res.Duration.Seconds())

	if !res.Found {
		scanRequestsTotal.WithLabelValues("scan", "empty").Inc()
		s.writeJSON(w, http.StatusNotFound, ScanResponse{ScanResult: res})
		return
	}
	scanRequestsTotal.WithLabelValues("scan", "found").Inc()

	if format != "json" {
		s.writeImage(w, res.Image, format)
		return
	}
	resp := ScanResponse{ScanResult: res}
	var buf bytes.Buffer
	if err := utils.EncodeImage(&buf, res.Image, "png", 0); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to encode result: %v", err), http.StatusInternalServerError)
		return
	}
	resp.ImagePNG = base64.StdEncoding.EncodeToString(buf.Bytes())
	s.writeJSON(w, http.StatusOK, resp)
}

// parseImageUpload reads and decodes the multipart "image" field. On failure
// the error response has already been written.
func (s *Server) parseImageUpload(w http.ResponseWriter, r *http.Request) (image.Image, error) {
	limit := s.maxUploadMB * 1024 * 1024
	if limit <= 0 {
		limit = 50 * 1024 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to parse form: %v", err), http.StatusBadRequest)
		return nil, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, "No image file provided", http.StatusBadRequest)
		return nil, err
	}
	defer func() { _ = file.Close() }()
	uploadSizeBytes.Observe(float64(header.Size))

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to decode image: %v", err), http.StatusBadRequest)
		return nil, err
	}
	return img, nil
}

// parseOutputFormat normalizes a format field; json is only accepted when it is the default.
func parseOutputFormat(v, def string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(v))
	switch f {
	case "":
		return def, nil
	case "jpg", "jpeg":
		return "jpeg", nil
	case "png", "pdf":
		return f, nil
	case "json":
		if def == "json" {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported format %q", errBadRequest, v)
}

// writeImage encodes img as png, jpeg or a single page PDF.
func (s *Server) writeImage(w http.ResponseWriter, img image.Image, format string) {
	var (
		buf         bytes.Buffer
		err         error
		contentType string
	)
	switch format {
	case "pdf":
		contentType = "application/pdf"
		opts := pdf.DefaultExportOptions()
		if s.jpegQuality > 0 {
			opts.JPEGQuality = s.jpegQuality
		}
		err = pdf.Export(&buf, []image.Image{img}, opts)
	case "jpeg":
		contentType = "image/jpeg"
		err = utils.EncodeImage(&buf, img, "jpeg", s.jpegQuality)
	default:
		contentType = "image/png"
		err = utils.EncodeImage(&buf, img, "png", 0)
	}
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("Failed to encode result: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("Failed to write image response", "error", err)
	}
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.timeoutSec <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), time.Duration(s.timeoutSec)*time.Second)
}

// statusForError maps processing errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, rectify.ErrRectificationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest),
		errors.Is(err, geometry.ErrCornerCount),
		errors.Is(err, geometry.ErrCornerSyntax),
		errors.Is(err, geometry.ErrCoordinateSpace),
		errors.Is(err, geometry.ErrInvalidSize),
		errors.Is(err, orientation.ErrUnsupportedRotation),
		errors.Is(err, rectify.ErrInvalidAspect),
		errors.Is(err, filter.ErrUnknownProfile):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a JSON error body with the given status.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: message})
}
