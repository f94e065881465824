package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		generateImages   = flag.Bool("images", true, "Generate synthetic document photos")
		generateFixtures = flag.Bool("fixtures", true, "Generate fixture frames with expected corners")
		generatePDF      = flag.Bool("pdf", true, "Generate a scanned PDF with embedded page photos")
		verbose          = flag.Bool("v", false, "Verbose output")
		help             = flag.Bool("h", false, "Show help")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate synthetic test data for docscan.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEXAMPLES:\n")
		fmt.Fprintf(os.Stderr, "  %s                       # Generate all test data\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -fixtures=false -pdf=false # Generate only photos\n", os.Args[0])
	}

	flag.Parse()

	if *help {
		flag.Usage()
		return
	}

	slog.Info("Starting test data generation...")
	if *verbose {
		slog.Info("Options", "images", *generateImages, "fixtures", *generateFixtures, "pdf", *generatePDF)
	}

	root, err := testutil.GetProjectRoot()
	if err != nil {
		slog.Error("Failed to find project root", "error", err)
		os.Exit(1)
	}
	if *verbose {
		slog.Info("Project root", "path", root)
	}
	if err := os.Chdir(root); err != nil {
		slog.Error("Failed to change to project root", "error", err)
		os.Exit(1)
	}

	steps := []struct {
		enabled bool
		name    string
		run     func() error
	}{
		{*generateImages, "synthetic document photos", generateTestImages},
		{*generateFixtures, "fixtures", generateTestFixtures},
		{*generatePDF, "scanned PDF", generateScannedPDF},
	}
	for _, s := range steps {
		if !s.enabled {
			continue
		}
		slog.Info("Generating " + s.name + "...")
		if err := s.run(); err != nil {
			slog.Error("Failed to generate "+s.name, "error", err)
			os.Exit(1)
		}
		slog.Info("Generated " + s.name)
	}

	slog.Info("Test data generation completed successfully!")
}

// generateTestImages writes photos of a sheet in several poses and device rotations.
func generateTestImages() error {
	dir := "testdata/images"
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}

	cfg := testutil.DefaultDocumentConfig()
	if err := utils.SaveImage(testutil.GenerateDocument(cfg), filepath.Join(dir, "upright.png"), 0); err != nil {
		return err
	}

	large := testutil.DefaultDocumentConfig()
	large.Size = testutil.LargeSize
	large.Corners = [4]image.Point{{260, 140}, {1340, 210}, {1290, 1080}, {220, 1010}}
	if err := utils.SaveImage(testutil.GenerateDocument(large), filepath.Join(dir, "large_tilted.jpg"), 92); err != nil {
		return err
	}

	for _, rotation := range []float64{0, 90, 180, 270, 15, -15} {
		r := testutil.DefaultDocumentConfig()
		r.Rotation = rotation
		path := filepath.Join(dir, fmt.Sprintf("rotated_%.0f.png", rotation))
		if err := utils.SaveImage(testutil.GenerateDocument(r), path, 0); err != nil {
			return fmt.Errorf("failed to save rotated image for angle %.1f: %w", rotation, err)
		}
	}
	return nil
}

// generateTestFixtures writes the standard fixture frames with their expected corners.
func generateTestFixtures() error {
	dir := "testdata/fixtures"
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create fixtures directory: %w", err)
	}

	for _, f := range testutil.StandardFixtures() {
		if err := utils.SaveImage(testutil.GenerateDocument(f.Config), filepath.Join(dir, f.Fixture.InputFile), 0); err != nil {
			return err
		}
		if err := saveFixture(f.Fixture, dir); err != nil {
			return fmt.Errorf("failed to save fixture '%s': %w", f.Fixture.Name, err)
		}
	}
	return nil
}

// generateScannedPDF embeds one photo per page, like a phone scanner export.
func generateScannedPDF() error {
	dir := "testdata/pdf"
	if err := testutil.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create pdf directory: %w", err)
	}

	var pages []image.Image
	for _, f := range testutil.StandardFixtures() {
		pages = append(pages, testutil.GenerateDocument(f.Config))
	}
	opts := pdf.DefaultExportOptions()
	opts.Format = "jpeg"
	return pdf.ExportFile(filepath.Join(dir, "scanned.pdf"), pages, opts)
}

func saveFixture(fixture testutil.DocumentFixture, dir string) error {
	data, err := json.MarshalIndent(fixture, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, fixture.Name+".json"), data, 0o600)
}
