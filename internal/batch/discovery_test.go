package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	return path
}

func TestDiscoverInputs_EmptyArgs(t *testing.T) {
	files, err := discoverInputs(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverInputs_ExplicitFilesAreKept(t *testing.T) {
	dir := t.TempDir()
	png := touch(t, filepath.Join(dir, "a.png"))
	txt := touch(t, filepath.Join(dir, "notes.txt"))

	files, err := discoverInputs([]string{png, txt}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{png, txt}, files)
}

func TestDiscoverInputs_Directory(t *testing.T) {
	dir := t.TempDir()
	png := touch(t, filepath.Join(dir, "b.png"))
	jpg := touch(t, filepath.Join(dir, "a.JPG"))
	doc := touch(t, filepath.Join(dir, "c.pdf"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "sub", "nested.png"))

	files, err := discoverInputs([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{jpg, png, doc}, files)
}

func TestDiscoverInputs_Recursive(t *testing.T) {
	dir := t.TempDir()
	top := touch(t, filepath.Join(dir, "top.png"))
	nested := touch(t, filepath.Join(dir, "sub", "deep", "nested.tiff"))

	files, err := discoverInputs([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{top, nested}, files)
}

func TestDiscoverInputs_Patterns(t *testing.T) {
	dir := t.TempDir()
	keep := touch(t, filepath.Join(dir, "receipt_01.png"))
	touch(t, filepath.Join(dir, "receipt_02_scan.png"))
	touch(t, filepath.Join(dir, "photo.jpg"))

	files, err := discoverInputs([]string{dir}, false, []string{"receipt_*"}, []string{"*_scan.*"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestDiscoverInputs_MissingPath(t *testing.T) {
	_, err := discoverInputs([]string{filepath.Join(t.TempDir(), "missing")}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestShouldIncludeFile(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		include  []string
		exclude  []string
		expected bool
	}{
		{"no patterns", "/x/a.png", nil, nil, true},
		{"include match", "/x/a.png", []string{"*.png"}, nil, true},
		{"include miss", "/x/a.png", []string{"*.jpg"}, nil, false},
		{"exclude wins", "/x/a.png", []string{"*.png"}, []string{"a.*"}, false},
		{"exclude miss", "/x/b.png", nil, []string{"a.*"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shouldIncludeFile(tt.path, tt.include, tt.exclude))
		})
	}
}
