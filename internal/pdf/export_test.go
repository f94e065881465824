package pdf

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grayPage(w, h int, v uint8) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestExport_OnePagePerImage(t *testing.T) {
	var buf bytes.Buffer
	pages := []image.Image{grayPage(40, 60, 255), grayPage(60, 40, 128), testutil.GenerateDocument(testutil.DefaultDocumentConfig())}
	require.NoError(t, Export(&buf, pages, DefaultExportOptions()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	n, err := PageCount(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestExport_JPEG(t *testing.T) {
	var buf bytes.Buffer
	rgba := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for i := 0; i < len(rgba.Pix); i += 4 {
		rgba.Pix[i], rgba.Pix[i+3] = 200, 255
	}
	require.NoError(t, Export(&buf, []image.Image{rgba}, ExportOptions{Format: "jpeg", JPEGQuality: 80}))
	n, err := PageCount(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExport_Errors(t *testing.T) {
	var buf bytes.Buffer
	require.ErrorIs(t, Export(&buf, nil, DefaultExportOptions()), ErrNoPages)
	require.Error(t, Export(&buf, []image.Image{nil}, DefaultExportOptions()))
	require.Error(t, Export(&buf, []image.Image{grayPage(4, 4, 0)}, ExportOptions{Format: "gif"}))
	require.ErrorIs(t, ExportFile(filepath.Join(t.TempDir(), "x.pdf"), nil, DefaultExportOptions()), ErrNoPages)
}

func TestExportFile_AndExtractPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "scan.pdf")
	pages := []image.Image{grayPage(40, 60, 255), grayPage(70, 30, 0)}
	require.NoError(t, ExportFile(path, pages, DefaultExportOptions()))
	assert.True(t, testutil.FileExists(path))

	got, err := ExtractPagesFile(path, "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, image.Rect(0, 0, 40, 60), got[0].Image.Bounds())
	assert.Equal(t, image.Rect(0, 0, 70, 30), got[1].Image.Bounds())
	y := color.GrayModel.Convert(got[1].Image.At(5, 5)).(color.Gray) //nolint:forcetypeassert // GrayModel yields color.Gray
	assert.Equal(t, uint8(0), y.Y)

	second, err := ExtractPagesFile(path, "2")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 2, second[0].Number)
}

func TestExtractPages_Errors(t *testing.T) {
	_, err := ExtractPagesFile(filepath.Join(t.TempDir(), "missing.pdf"), "")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = ExtractPages(bytes.NewReader([]byte("not a pdf")), "")
	require.Error(t, err)

	_, err = ExtractPages(bytes.NewReader(nil), "3-1")
	require.Error(t, err)
}

func TestParsePageRange(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{"", nil, false},
		{"  ", nil, false},
		{"3", []int{3}, false},
		{"1-3", []int{1, 2, 3}, false},
		{"1-2, 5", []int{1, 2, 5}, false},
		{"5-3", nil, true},
		{"0", nil, true},
		{"a", nil, true},
		{"1-2-3", nil, true},
		{"1,,2", nil, true},
	}
	for _, tt := range tests {
		got, err := parsePageRange(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
