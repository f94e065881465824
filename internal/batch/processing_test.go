package batch

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSources_ImagesAndPDF(t *testing.T) {
	dir := t.TempDir()
	png := testutil.WriteDocument(t, dir, "page.png", testutil.DefaultDocumentConfig())
	doc := filepath.Join(dir, "book.pdf")
	sheet := testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	require.NoError(t, pdf.ExportFile(doc, []image.Image{sheet, sheet}, pdf.DefaultExportOptions()))

	sources, failures, err := loadSources([]string{png, doc}, "", false)
	require.NoError(t, err)
	assert.Empty(t, failures)
	require.Len(t, sources, 3)
	assert.Equal(t, png, sources[0].Name)
	assert.Equal(t, doc+"#page=1", sources[1].Name)
	assert.Equal(t, doc+"#page=2", sources[2].Name)

	sources, _, err = loadSources([]string{doc}, "2", false)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, doc+"#page=2", sources[0].Name)
}

func TestLoadSources_Failures(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o600))

	_, _, err := loadSources([]string{bad}, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.png")

	sources, failures, err := loadSources([]string{bad}, "", true)
	require.NoError(t, err)
	assert.Empty(t, sources)
	require.Len(t, failures, 1)
	assert.Equal(t, bad, failures[0].Source)
	assert.Error(t, failures[0].Err)
}

func TestOutputName(t *testing.T) {
	used := map[string]int{}
	assert.Equal(t, "receipt_scan.png", outputName("in/receipt.jpg", "png", used))
	assert.Equal(t, "receipt_scan_1.png", outputName("other/receipt.png", "png", used))
	assert.Equal(t, "book_p3_scan.jpg", outputName("in/book.pdf#page=3", "jpeg", used))
}
