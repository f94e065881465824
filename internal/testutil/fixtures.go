package testutil

import (
	"encoding/json"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// DocumentFixture pairs a synthetic frame with the corners a detector should report.
type DocumentFixture struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputFile   string `json:"input_file"`
	// Corners are absolute pixel positions in TL, TR, BR, BL order.
	Corners   [4]image.Point `json:"corners"`
	Tolerance float64        `json:"tolerance"`
	// Found is false for frames without a document.
	Found bool `json:"found"`
}

// StandardFixtures describes the frames produced by GenerateFixtures.
func StandardFixtures() []struct {
	Fixture DocumentFixture
	Config  DocumentConfig
} {
	upright := DefaultDocumentConfig()

	tilted := DefaultDocumentConfig()
	tilted.Corners = [4]image.Point{{140, 60}, {480, 90}, {450, 340}, {110, 310}}

	blank := DefaultDocumentConfig()
	blank.Corners = [4]image.Point{}
	blank.Lines = nil

	return []struct {
		Fixture DocumentFixture
		Config  DocumentConfig
	}{
		{DocumentFixture{Name: "upright", Description: "Axis-aligned sheet with printed text", InputFile: "upright.png", Corners: upright.Corners, Tolerance: 8, Found: true}, upright},
		{DocumentFixture{Name: "tilted", Description: "Sheet photographed at an angle", InputFile: "tilted.png", Corners: tilted.Corners, Tolerance: 8, Found: true}, tilted},
		{DocumentFixture{Name: "empty_table", Description: "No document in view", InputFile: "empty_table.png", Found: false}, blank},
	}
}

// GenerateFixtures writes every standard frame and its JSON description into dir.
func GenerateFixtures(t *testing.T, dir string) []DocumentFixture {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	var out []DocumentFixture
	for _, f := range StandardFixtures() {
		SaveImage(t, GenerateDocument(f.Config), filepath.Join(dir, f.Fixture.InputFile))
		SaveFixture(t, dir, f.Fixture)
		out = append(out, f.Fixture)
	}
	return out
}

// LoadFixture loads a fixture description from dir/name.json.
func LoadFixture(t *testing.T, dir, name string) DocumentFixture {
	t.Helper()

	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path) //nolint:gosec // G304: Reading test fixture files with controlled paths
	require.NoError(t, err, "Failed to read fixture file: %s", path)

	var fixture DocumentFixture
	require.NoError(t, json.Unmarshal(data, &fixture), "Failed to unmarshal fixture JSON")
	return fixture
}

// SaveFixture writes a fixture description to dir/<name>.json.
func SaveFixture(t *testing.T, dir string, fixture DocumentFixture) {
	t.Helper()

	data, err := json.MarshalIndent(fixture, "", "  ")
	require.NoError(t, err, "Failed to marshal fixture to JSON")

	path := filepath.Join(dir, fixture.Name+".json")
	require.NoError(t, os.WriteFile(path, data, 0o600), "Failed to write fixture file: %s", path)
}
