// Package pdf assembles rectified pages into PDF documents and reads page
// images back out of scanned PDFs.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNoPages is returned when an export is requested without any page.
var ErrNoPages = errors.New("no pages to export")

// ExportOptions controls how pages are embedded.
type ExportOptions struct {
	// Format is the encoding of embedded page images: "png" or "jpeg".
	Format      string
	JPEGQuality int
}

// DefaultExportOptions embeds lossless PNG pages.
func DefaultExportOptions() ExportOptions {
	return ExportOptions{Format: "png", JPEGQuality: 90}
}

// Export writes a PDF with one page per image to w.
func Export(w io.Writer, pages []image.Image, opts ExportOptions) error {
	if len(pages) == 0 {
		return ErrNoPages
	}
	if opts.Format == "" {
		opts.Format = "png"
	}

	readers := make([]io.Reader, 0, len(pages))
	for i, img := range pages {
		if img == nil {
			return fmt.Errorf("page %d: nil image", i+1)
		}
		var buf bytes.Buffer
		if err := utils.EncodeImage(&buf, img, opts.Format, opts.JPEGQuality); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		readers = append(readers, &buf)
	}

	imp := pdfcpu.DefaultImportConfig()
	if err := api.ImportImages(nil, w, readers, imp, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("failed to assemble PDF: %w", err)
	}
	return nil
}

// ExportFile writes the PDF to path, creating parent directories as needed.
func ExportFile(path string, pages []image.Image, opts ExportOptions) (err error) {
	if len(pages) == 0 {
		return ErrNoPages
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: output path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create PDF: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Export(f, pages, opts)
}

// PageCount returns the number of pages in the PDF read from rs.
func PageCount(rs io.ReadSeeker) (int, error) {
	return api.PageCount(rs, model.NewDefaultConfiguration())
}
