package server

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MeKo-Tech/docscan/internal/analyzer"
	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/orientation"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func dialFrames(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/frames"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// readUntil returns the first message of the given type.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) wsEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for {
		var msg wsEnvelope
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == msgType {
			return msg
		}
	}
}

// i420Message encodes a gray raster as a raw frame with neutral chroma.
func i420Message(w, h int, luma []byte) []byte {
	cw, ch := (w+1)/2, (h+1)/2
	msg := make([]byte, rawHeaderLen, rawHeaderLen+w*h+2*cw*ch)
	copy(msg, rawFrameMagic)
	binary.BigEndian.PutUint32(msg[4:8], uint32(w))
	binary.BigEndian.PutUint32(msg[8:12], uint32(h))
	msg = append(msg, luma...)
	for range 2 * cw * ch {
		msg = append(msg, 128)
	}
	return msg
}

func TestFramesWebSocket_EncodedFrame(t *testing.T) {
	conn := dialFrames(t, newTestServer(t, nil))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, documentPNG(t)))

	// The ack and the result travel independently and may arrive in either order.
	got := map[string]wsEnvelope{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(10*time.Second)))
	for len(got) < 2 {
		var m wsEnvelope
		require.NoError(t, conn.ReadJSON(&m))
		got[m.Type] = m
	}
	require.Contains(t, got, "ack")
	require.Contains(t, got, "result")

	var a FrameAck
	require.NoError(t, json.Unmarshal(got["ack"].Payload, &a))
	assert.Equal(t, uint64(1), a.Seq)

	msg := got["result"]
	var res FrameResult
	require.NoError(t, json.Unmarshal(msg.Payload, &res))
	assert.Equal(t, uint64(1), res.Seq)
	assert.True(t, res.Found)
	require.Len(t, res.Corners, 4)
	assert.InDelta(t, 100.0/600, res.Corners[0].X, 0.02)
	assert.InDelta(t, 50.0/400, res.Corners[0].Y, 0.02)
	assert.Empty(t, res.Error)
}

func TestFramesWebSocket_RawFrame(t *testing.T) {
	conn := dialFrames(t, newTestServer(t, nil))

	g := testutil.WhiteRectangle(600, 400, sheet)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, i420Message(600, 400, g.Pix)))

	msg := readUntil(t, conn, "result")
	var res FrameResult
	require.NoError(t, json.Unmarshal(msg.Payload, &res))
	assert.True(t, res.Found)
	assert.InDelta(t, 500.0/600, res.Corners[2].X, 0.02)
	assert.InDelta(t, 300.0/400, res.Corners[2].Y, 0.02)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"stats"}`)))
	statsMsg := readUntil(t, conn, "stats")
	var stats analyzer.Stats
	require.NoError(t, json.Unmarshal(statsMsg.Payload, &stats))
	assert.Equal(t, uint64(1), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Processed)
	assert.Equal(t, uint64(1), stats.Found)
}

func TestFramesWebSocket_Errors(t *testing.T) {
	conn := dialFrames(t, newTestServer(t, nil))

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("I420\x00\x00")))
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error").Payload, &e))
	assert.Contains(t, e.Error, "malformed frame")

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte("garbage")))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error").Payload, &e))
	assert.NotEmpty(t, e.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"reboot"}`)))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "error").Payload, &e))
	assert.Contains(t, e.Error, "unsupported request type")
}

func TestParseRawFrame(t *testing.T) {
	luma := make([]byte, 5*3)
	for i := range luma {
		luma[i] = byte(i)
	}
	f, err := parseRawFrame(i420Message(5, 3, luma))
	require.NoError(t, err)
	assert.Equal(t, pipeline.FormatYUV420, f.Format)
	require.Len(t, f.Planes, 3)
	assert.Len(t, f.Planes[1].Data, 3*2)
	assert.Equal(t, 3, f.Planes[2].RowStride)

	g, err := pipeline.ToGrayscale(f)
	require.NoError(t, err)
	assert.Equal(t, luma, g.Pix)

	tests := map[string][]byte{
		"short header": []byte("I420\x00"),
		"zero width":   i420Message(0, 3, nil),
		"truncated":    i420Message(5, 3, luma)[:rawHeaderLen+10],
	}
	for name, data := range tests {
		_, err := parseRawFrame(data)
		require.ErrorIs(t, err, errBadFrame, name)
	}
}

func TestHandleControlMessage(t *testing.T) {
	det, err := detector.New(detector.DefaultConfig())
	require.NoError(t, err)
	an := analyzer.New(det, analyzer.DefaultConfig())

	msg := handleControlMessage(an, []byte(`{"type":"latest"}`), nil)
	assert.Equal(t, "latest", msg.Type)
	assert.Nil(t, msg.Payload)

	msg = handleControlMessage(an, []byte(`{"type":"stats"}`), nil)
	assert.Equal(t, "stats", msg.Type)
	assert.IsType(t, analyzer.Stats{}, msg.Payload)

	msg = handleControlMessage(an, []byte(`not json`), nil)
	assert.Equal(t, "error", msg.Type)
}

func TestToFrameResult(t *testing.T) {
	fr := toFrameResult(analyzer.Result{Seq: 7, Width: 10, Height: 20, Duration: 1500 * time.Microsecond}, nil)
	assert.Equal(t, uint64(7), fr.Seq)
	assert.False(t, fr.Found)
	assert.Nil(t, fr.Corners)
	assert.Nil(t, fr.ViewCorners)
	assert.InDelta(t, 1.5, fr.DurationMs, 1e-9)
	assert.Empty(t, fr.Error)
}

// sheetResult is a 600x400 frame with the sheet spanning (100,50)-(500,300).
func sheetResult() analyzer.Result {
	c := geometry.Corners{Space: geometry.Normalized, Points: [4]utils.Point{
		{X: 100.0 / 600, Y: 50.0 / 400},
		{X: 500.0 / 600, Y: 50.0 / 400},
		{X: 500.0 / 600, Y: 300.0 / 400},
		{X: 100.0 / 600, Y: 300.0 / 400},
	}}
	return analyzer.Result{Seq: 1, Corners: &c, Width: 600, Height: 400}
}

func TestToFrameResult_ViewCorners(t *testing.T) {
	tests := []struct {
		name   string
		view   previewView
		tl, br utils.Point
	}{
		{
			name: "fill crops the wide frame",
			view: previewView{width: 300, height: 300, mode: geometry.ScaleFill},
			tl:   utils.Point{X: 0, Y: 37.5},
			br:   utils.Point{X: 300, Y: 225},
		},
		{
			name: "fit letterboxes the wide frame",
			view: previewView{width: 300, height: 300, mode: geometry.ScaleFit},
			tl:   utils.Point{X: 50, Y: 75},
			br:   utils.Point{X: 250, Y: 200},
		},
		{
			name: "portrait device",
			view: previewView{width: 300, height: 300, mode: geometry.ScaleFill, rotation: orientation.Rotation90},
			tl:   utils.Point{X: 75, Y: 0},
			br:   utils.Point{X: 262.5, Y: 300},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := toFrameResult(sheetResult(), &tt.view)
			require.Len(t, fr.ViewCorners, 4)
			assert.InDelta(t, tt.tl.X, fr.ViewCorners[0].X, 1e-3)
			assert.InDelta(t, tt.tl.Y, fr.ViewCorners[0].Y, 1e-3)
			assert.InDelta(t, tt.br.X, fr.ViewCorners[2].X, 1e-3)
			assert.InDelta(t, tt.br.Y, fr.ViewCorners[2].Y, 1e-3)
			assert.Len(t, fr.Corners, 4)
		})
	}
}

func TestParsePreviewView(t *testing.T) {
	v, err := parsePreviewView(url.Values{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = parsePreviewView(url.Values{"view_w": {"1080"}, "view_h": {"1920"}, "view_mode": {"fit"}, "rotation": {"270"}})
	require.NoError(t, err)
	assert.Equal(t, &previewView{width: 1080, height: 1920, mode: geometry.ScaleFit, rotation: orientation.Rotation270}, v)

	for _, q := range []url.Values{
		{"view_w": {"1080"}},
		{"view_w": {"0"}, "view_h": {"10"}},
		{"view_w": {"10"}, "view_h": {"x"}},
		{"view_w": {"10"}, "view_h": {"10"}, "view_mode": {"stretch"}},
		{"view_w": {"10"}, "view_h": {"10"}, "rotation": {"45"}},
	} {
		_, err := parsePreviewView(q)
		require.Error(t, err, q.Encode())
		assert.Equal(t, http.StatusBadRequest, statusForError(err), q.Encode())
	}
}

func TestFramesWebSocket_ViewCorners(t *testing.T) {
	srv := httptest.NewServer(newTestServer(t, nil).Handler())
	t.Cleanup(srv.Close)

	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/frames"
	conn, resp, err := websocket.DefaultDialer.Dial(base+"?view_w=300&view_h=300", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, documentPNG(t)))
	var res FrameResult
	require.NoError(t, json.Unmarshal(readUntil(t, conn, "result").Payload, &res))
	require.True(t, res.Found)
	require.Len(t, res.ViewCorners, 4)
	assert.InDelta(t, 0, res.ViewCorners[0].X, 3)
	assert.InDelta(t, 37.5, res.ViewCorners[0].Y, 3)

	_, resp, err = websocket.DefaultDialer.Dial(base+"?view_w=300", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}
