package server

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/analyzer"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/stretchr/testify/require"
)

// sheet is where testutil.DefaultDocumentConfig places the paper on a 600x400 frame.
var sheet = image.Rect(100, 50, 500, 300)

func newTestServer(t *testing.T, mutate func(*Config)) *Server {
	t.Helper()
	cfg := Config{
		CORSOrigin:     "*",
		MaxUploadMB:    10,
		TimeoutSec:     30,
		JPEGQuality:    90,
		PipelineConfig: pipeline.DefaultConfig(),
		AnalyzerConfig: analyzer.DefaultConfig(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := NewServer(cfg)
	require.NoError(t, err)
	return s
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func documentPNG(t *testing.T) []byte {
	t.Helper()
	return encodePNG(t, testutil.GenerateDocument(testutil.DefaultDocumentConfig()))
}

func sheetPNG(t *testing.T) []byte {
	t.Helper()
	return encodePNG(t, testutil.WhiteRectangle(600, 400, sheet))
}

// newUploadRequest builds a multipart POST with an optional "image" part.
func newUploadRequest(t *testing.T, path string, imageData []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if imageData != nil {
		part, err := writer.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(imageData)
		require.NoError(t, err)
	}
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, body []byte) image.Image {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	return img
}
