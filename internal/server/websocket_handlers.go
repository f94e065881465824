package server

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/MeKo-Tech/docscan/internal/analyzer"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/orientation"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout   = 60 * time.Second
	wsPingInterval  = 30 * time.Second
	wsWriteTimeout  = 10 * time.Second
	wsMaxFrameBytes = 32 << 20
	// maxRawDimension bounds each side of a raw frame.
	maxRawDimension = 1 << 14
)

// rawFrameMagic prefixes binary messages carrying an uncompressed I420 frame:
// "I420", big-endian uint32 width and height, then the Y, U and V planes.
var rawFrameMagic = []byte("I420")

const rawHeaderLen = 12

var errBadFrame = errors.New("malformed frame")

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketMessage is the envelope of every message sent to the client.
type WebSocketMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// FrameAck confirms that a frame was queued for analysis.
type FrameAck struct {
	Seq uint64 `json:"seq"`
}

// FrameResult is the analysis outcome pushed for a frame.
type FrameResult struct {
	Seq     uint64        `json:"seq"`
	Found   bool          `json:"found"`
	Corners []utils.Point `json:"corners,omitempty"`
	// ViewCorners are the corners in preview pixels when the stream was
	// opened with view_w and view_h.
	ViewCorners []utils.Point `json:"view_corners,omitempty"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	DurationMs  float64       `json:"duration_ms"`
	Error       string        `json:"error,omitempty"`
}

// previewView is the client's preview surface, read from the view_w, view_h,
// view_mode and rotation query parameters of /ws/frames.
type previewView struct {
	width, height int
	mode          geometry.ScaleMode
	rotation      orientation.Rotation
}

// parsePreviewView returns nil when the client asked for no view mapping.
func parsePreviewView(q url.Values) (*previewView, error) {
	if q.Get("view_w") == "" && q.Get("view_h") == "" {
		return nil, nil //nolint:nilnil // no preview requested
	}
	v := &previewView{}
	var err error
	if v.width, err = strconv.Atoi(q.Get("view_w")); err != nil || v.width <= 0 {
		return nil, fmt.Errorf("%w: view_w must be a positive integer", errBadRequest)
	}
	if v.height, err = strconv.Atoi(q.Get("view_h")); err != nil || v.height <= 0 {
		return nil, fmt.Errorf("%w: view_h must be a positive integer", errBadRequest)
	}
	if v.mode, err = geometry.ParseScaleMode(q.Get("view_mode")); err != nil {
		return nil, fmt.Errorf("%w: %w", errBadRequest, err)
	}
	if deg := q.Get("rotation"); deg != "" {
		n, err := strconv.Atoi(deg)
		if err != nil {
			return nil, fmt.Errorf("%w: rotation must be an integer", errBadRequest)
		}
		if v.rotation, err = orientation.ParseRotation(n); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// mapCorners turns normalized corners found on a frameW x frameH sensor frame
// into preview pixels. The preview shows the frame turned by the rotation.
func (v *previewView) mapCorners(c geometry.Corners, frameW, frameH int) ([]utils.Point, error) {
	turned, err := orientation.RotateCorners(c, v.rotation)
	if err != nil {
		return nil, err
	}
	if v.rotation.SwapsAxes() {
		frameW, frameH = frameH, frameW
	}
	mapped, err := geometry.MapToView(turned, frameW, frameH, v.width, v.height, v.mode)
	if err != nil {
		return nil, err
	}
	return mapped.Slice(), nil
}

type controlRequest struct {
	Type string `json:"type"` // "stats" or "latest"
}

// framesWebSocketHandler streams camera frames into a keep-latest analyzer
// and pushes each published result back to the client.
func (s *Server) framesWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	view, err := parsePreviewView(r.URL.Query())
	if err != nil {
		s.writeErrorResponse(w, err.Error(), statusForError(err))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleFrameStream(r.Context(), conn, view)
	slog.Info("WebSocket connection closed", "remote_addr", r.RemoteAddr)
}

// handleFrameStream runs one analyzer per connection. Reads happen on the
// calling goroutine; all writes go through writeFrameStream.
func (s *Server) handleFrameStream(ctx context.Context, conn *websocket.Conn, view *previewView) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	an := analyzer.New(s.pipeline.Detector, s.analyzerCfg)
	results, unsubscribe := an.Subscribe()
	defer unsubscribe()

	out := make(chan WebSocketMessage, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeFrameStream(ctx, conn, results, out, view)
		cancel()
	}()
	go func() {
		_ = an.Run(ctx)
	}()

	send := func(msg WebSocketMessage) {
		select {
		case out <- msg:
		case <-ctx.Done():
		}
	}

	conn.SetReadLimit(wsMaxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	for ctx.Err() == nil {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("WebSocket error", "error", err)
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch messageType {
		case websocket.BinaryMessage:
			seq, err := submitFrame(an, data)
			if err != nil {
				send(WebSocketMessage{Type: "error", Payload: ErrorResponse{Error: err.Error()}})
				continue
			}
			send(WebSocketMessage{Type: "ack", Payload: FrameAck{Seq: seq}})
		case websocket.TextMessage:
			send(handleControlMessage(an, data, view))
		}
	}

	cancel()
	<-done
}

// writeFrameStream is the only writer on conn.
func (s *Server) writeFrameStream(
	ctx context.Context,
	conn *websocket.Conn,
	results <-chan analyzer.Result,
	out <-chan WebSocketMessage,
	view *previewView,
) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		var msg WebSocketMessage
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
			continue
		case r, ok := <-results:
			if !ok {
				return
			}
			msg = WebSocketMessage{Type: "result", Payload: toFrameResult(r, view)}
		case msg = <-out:
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Debug("WebSocket write failed", "error", err)
			return
		}
		websocketMessagesTotal.WithLabelValues("sent").Inc()
	}
}

func handleControlMessage(an *analyzer.Analyzer, data []byte, view *previewView) WebSocketMessage {
	var req controlRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return WebSocketMessage{Type: "error", Payload: ErrorResponse{Error: fmt.Sprintf("failed to parse request: %v", err)}}
	}
	switch req.Type {
	case "stats":
		return WebSocketMessage{Type: "stats", Payload: an.Stats()}
	case "latest":
		r, ok := an.Latest()
		if !ok {
			return WebSocketMessage{Type: "latest"}
		}
		return WebSocketMessage{Type: "latest", Payload: toFrameResult(r, view)}
	default:
		return WebSocketMessage{Type: "error", Payload: ErrorResponse{Error: "unsupported request type: " + req.Type}}
	}
}

// submitFrame hands a binary message to the analyzer. JPEG input decodes to
// YCbCr and takes the camera frame path; other encodings are reduced to gray.
func submitFrame(an *analyzer.Analyzer, data []byte) (uint64, error) {
	if bytes.HasPrefix(data, rawFrameMagic) {
		f, err := parseRawFrame(data)
		if err != nil {
			return 0, err
		}
		return an.Submit(f), nil
	}

	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	if ycc, ok := img.(*image.YCbCr); ok && ycc.SubsampleRatio == image.YCbCrSubsampleRatio420 {
		return an.Submit(pipeline.FrameFromYCbCr(ycc)), nil
	}
	return an.SubmitImage(utils.ToGray(img)), nil
}

// parseRawFrame wraps an I420 message without copying its planes.
func parseRawFrame(data []byte) (pipeline.Frame, error) {
	if len(data) < rawHeaderLen {
		return pipeline.Frame{}, fmt.Errorf("%w: short header", errBadFrame)
	}
	w := int(binary.BigEndian.Uint32(data[4:8]))
	h := int(binary.BigEndian.Uint32(data[8:12]))
	if w <= 0 || h <= 0 || w > maxRawDimension || h > maxRawDimension {
		return pipeline.Frame{}, fmt.Errorf("%w: invalid size %dx%d", errBadFrame, w, h)
	}
	cw, ch := (w+1)/2, (h+1)/2
	body := data[rawHeaderLen:]
	if need := w*h + 2*cw*ch; len(body) < need {
		return pipeline.Frame{}, fmt.Errorf("%w: %d bytes for %dx%d, need %d", errBadFrame, len(body), w, h, need)
	}

	ySize, cSize := w*h, cw*ch
	return pipeline.Frame{
		Format: pipeline.FormatYUV420,
		Width:  w,
		Height: h,
		Planes: []pipeline.Plane{
			{Data: body[:ySize], RowStride: w, PixelStride: 1},
			{Data: body[ySize : ySize+cSize], RowStride: cw, PixelStride: 1},
			{Data: body[ySize+cSize : ySize+2*cSize], RowStride: cw, PixelStride: 1},
		},
	}, nil
}

func toFrameResult(r analyzer.Result, view *previewView) FrameResult {
	fr := FrameResult{
		Seq:        r.Seq,
		Found:      r.Found(),
		Width:      r.Width,
		Height:     r.Height,
		DurationMs: float64(r.Duration.Microseconds()) / 1000,
	}
	if r.Corners != nil {
		fr.Corners = r.Corners.Slice()
		if view != nil {
			pts, err := view.mapCorners(*r.Corners, r.Width, r.Height)
			if err != nil {
				slog.Debug("Preview mapping failed", "seq", r.Seq, "error", err)
			} else {
				fr.ViewCorners = pts
			}
		}
	}
	if r.Err != nil {
		fr.Error = r.Err.Error()
	}
	return fr
}
