package batch

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipeline(t *testing.T) *pipeline.Pipeline {
	t.Helper()
	pl, err := pipeline.NewBuilder().Build()
	require.NoError(t, err)
	return pl
}

// writeInputs creates a document photo, an empty table and a corrupt file.
func writeInputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteDocument(t, dir, "a_document.png", testutil.DefaultDocumentConfig())

	empty := testutil.DefaultDocumentConfig()
	empty.Corners = [4]image.Point{}
	testutil.WriteDocument(t, dir, "b_empty.png", empty)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_broken.png"), []byte("garbage"), 0o600))
	return dir
}

func TestProcess_WritesOutputs(t *testing.T) {
	in := writeInputs(t)
	out := t.TempDir()

	cfg := DefaultConfig()
	cfg.Workers = 2
	cfg.OutputDir = out
	cfg.PDFOutput = filepath.Join(out, "all.pdf")

	res, err := Process(context.Background(), newPipeline(t), []string{in}, &cfg, nil)
	require.NoError(t, err)
	require.Len(t, res.Items, 3)
	assert.Equal(t, 1, res.Failed())

	doc := res.Items[0]
	require.NotNil(t, doc.Result)
	assert.True(t, doc.Result.Found)
	assert.Equal(t, doc.Source, doc.Result.Source)
	assert.Equal(t, filepath.Join(out, "a_document_scan.png"), doc.Output)
	assert.FileExists(t, doc.Output)

	require.NotNil(t, res.Items[1].Result)
	assert.False(t, res.Items[1].Result.Found)
	assert.Empty(t, res.Items[1].Output)

	assert.Contains(t, res.Items[2].Source, "c_broken.png")
	assert.Error(t, res.Items[2].Err)

	f, err := os.Open(cfg.PDFOutput)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	n, err := pdf.PageCount(f)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcess_StopOnError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ContinueOnError = false

	_, err := Process(context.Background(), newPipeline(t), []string{writeInputs(t)}, &cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c_broken.png")
}

func TestProcess_PDFInput(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "scan.pdf")
	sheet := testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	require.NoError(t, pdf.ExportFile(doc, []image.Image{sheet}, pdf.DefaultExportOptions()))

	cfg := DefaultConfig()
	cfg.ShowProgress = true
	var progress bytes.Buffer

	res, err := Process(context.Background(), newPipeline(t), []string{doc}, &cfg, &progress)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, doc+"#page=1", res.Items[0].Source)
	assert.True(t, res.Items[0].Result.Found)
	assert.Contains(t, progress.String(), "Scanning: [")
	assert.Contains(t, progress.String(), "1/1 (100%)")
}

func TestProgressReporter(t *testing.T) {
	cfg := DefaultConfig()
	assert.Nil(t, progressReporter(&cfg, os.Stderr))

	cfg.ShowProgress = true
	multi, ok := progressReporter(&cfg, &bytes.Buffer{}).(pipeline.MultiProgressCallback)
	require.True(t, ok)
	require.Len(t, multi, 2)
	assert.IsType(t, &pipeline.ConsoleProgressCallback{}, multi[0])
	assert.IsType(t, &pipeline.LogProgressCallback{}, multi[1])

	assert.IsType(t, &pipeline.LogProgressCallback{}, progressReporter(&cfg, nil))

	cfg.Quiet = true
	assert.IsType(t, &pipeline.LogProgressCallback{}, progressReporter(&cfg, os.Stderr))
}

func TestProcess_QuietProgressIsLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	in := writeInputs(t)
	cfg := DefaultConfig()
	cfg.ShowProgress = true
	cfg.Quiet = true
	var progress bytes.Buffer

	_, err := Process(context.Background(), newPipeline(t), []string{in}, &cfg, &progress)
	require.NoError(t, err)
	assert.Empty(t, progress.String())

	var finished map[string]any
	for line := range bytes.SplitSeq(bytes.TrimSpace(logs.Bytes()), []byte("\n")) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		if entry["msg"] == "Batch scan finished" {
			finished = entry
		}
	}
	require.NotNil(t, finished, logs.String())
	assert.InDelta(t, 2, finished["done"], 0)
}

func TestProcess_NoInputs(t *testing.T) {
	cfg := DefaultConfig()
	_, err := Process(context.Background(), newPipeline(t), []string{t.TempDir()}, &cfg, nil)
	require.ErrorIs(t, err, ErrNoInputs)
}

func TestProcess_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "yaml"
	_, err := Process(context.Background(), newPipeline(t), nil, &cfg, nil)
	require.Error(t, err)
}

func TestProcess_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := DefaultConfig()
	dir := t.TempDir()
	testutil.WriteDocument(t, dir, "a.png", testutil.DefaultDocumentConfig())

	_, err := Process(ctx, newPipeline(t), []string{dir}, &cfg, nil)
	require.ErrorIs(t, err, context.Canceled)
}
