package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectCommand_JSON(t *testing.T) {
	photo := writeDocumentPhoto(t, t.TempDir())

	output, err := executeCommand(t, "detect", photo)
	require.NoError(t, err)

	var out detectOutput
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, photo, out.File)
	assert.True(t, out.Found)
	assert.Equal(t, 600, out.Width)
	assert.Equal(t, 400, out.Height)
	require.Len(t, out.Normalized, 4)
	require.Len(t, out.Absolute, 4)
	assert.InDelta(t, 100.0/600, out.Normalized[0].X, 0.02)
	assert.InDelta(t, 50.0/400, out.Normalized[0].Y, 0.02)
	assert.InDelta(t, 500, out.Absolute[2].X, 10)
	assert.InDelta(t, 300, out.Absolute[2].Y, 10)
}

func TestDetectCommand_MultipleFilesText(t *testing.T) {
	dir := t.TempDir()
	photo := writeDocumentPhoto(t, dir)
	table := writeEmptyTable(t, dir)

	output, err := executeCommand(t, "detect", photo, table, "--format", "text")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(output), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], photo+": "))
	assert.Equal(t, 4, strings.Count(lines[0], ";")+1)
	assert.Equal(t, table+": no document found", lines[1])
}

func TestDetectCommand_MultipleFilesJSON(t *testing.T) {
	dir := t.TempDir()
	output, err := executeCommand(t, "detect", writeDocumentPhoto(t, dir), writeEmptyTable(t, dir))
	require.NoError(t, err)

	var outs []detectOutput
	require.NoError(t, json.Unmarshal([]byte(output), &outs))
	require.Len(t, outs, 2)
	assert.True(t, outs[0].Found)
	assert.False(t, outs[1].Found)
	assert.Empty(t, outs[1].Normalized)
}

func TestDetectCommand_DebugAndOverlay(t *testing.T) {
	dir := t.TempDir()
	photo := writeDocumentPhoto(t, dir)
	debugDir := filepath.Join(dir, "debug")
	overlayDir := filepath.Join(dir, "overlay")

	output, err := executeCommand(t, "detect", photo,
		"--debug-stage", "edges_detected", "--debug-dir", debugDir, "--overlay-dir", overlayDir)
	require.NoError(t, err)

	var out detectOutput
	require.NoError(t, json.Unmarshal([]byte(output), &out))
	assert.Equal(t, filepath.Join(debugDir, "document_edges_detected.png"), out.Debug)
	assert.FileExists(t, out.Debug)
	assert.Equal(t, filepath.Join(overlayDir, "document_overlay.png"), out.Overlay)

	w, h := imageSize(t, out.Overlay)
	assert.Equal(t, 600, w)
	assert.Equal(t, 400, h)
}

func TestDetectCommand_Errors(t *testing.T) {
	photo := writeDocumentPhoto(t, t.TempDir())

	tests := []struct {
		name   string
		args   []string
		errMsg string
	}{
		{"no args", []string{"detect"}, "requires at least 1 arg"},
		{"missing file", []string{"detect", filepath.Join(t.TempDir(), "missing.png")}, "failed to load"},
		{"bad format", []string{"detect", photo, "--format", "xml"}, "invalid format"},
		{"debug without dir", []string{"detect", photo, "--debug-stage", "preprocessed"}, "--debug-dir"},
		{"unknown stage", []string{"detect", photo, "--debug-stage", "sharpened"}, "debug stage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
