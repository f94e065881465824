package batch

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// source is one raster to scan: an image file or a single PDF page.
type source struct {
	Name  string
	Image image.Image
}

// loadSources decodes every file. PDFs contribute one source per embedded
// page image. With continueOnError a file that cannot be read becomes a
// failed Item instead of aborting the run.
func loadSources(files []string, pageRange string, continueOnError bool) ([]source, []Item, error) {
	var (
		sources  []source
		failures []Item
	)
	for _, path := range files {
		loaded, err := loadFile(path, pageRange)
		if err != nil {
			if !continueOnError {
				return nil, nil, err
			}
			failures = append(failures, Item{Source: path, Err: err})
			continue
		}
		sources = append(sources, loaded...)
	}
	return sources, failures, nil
}

func loadFile(path, pageRange string) ([]source, error) {
	if isPDF(path) {
		pages, err := pdf.ExtractPagesFile(path, pageRange)
		if err != nil {
			return nil, fmt.Errorf("failed to read PDF %s: %w", path, err)
		}
		if len(pages) == 0 {
			return nil, fmt.Errorf("no page images in %s", path)
		}
		out := make([]source, len(pages))
		for i, p := range pages {
			out[i] = source{
				Name:  fmt.Sprintf("%s#page=%d", path, p.Number),
				Image: p.Image,
			}
		}
		return out, nil
	}

	img, _, err := utils.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return []source{{Name: path, Image: img}}, nil
}

// writeOutputs stores the rectified documents of the run.
func writeOutputs(items []Item, config *Config) error {
	if config.OutputDir == "" && config.PDFOutput == "" {
		return nil
	}

	var pages []image.Image
	used := make(map[string]int)
	for i := range items {
		it := &items[i]
		if it.Result == nil || !it.Result.Found || it.Result.Image == nil {
			continue
		}
		pages = append(pages, it.Result.Image)
		if config.OutputDir == "" {
			continue
		}

		path := filepath.Join(config.OutputDir, outputName(it.Source, config.OutputFormat, used))
		if err := utils.SaveImage(it.Result.Image, path, config.JPEGQuality); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		it.Output = path
	}

	if config.PDFOutput != "" && len(pages) > 0 {
		opts := pdf.DefaultExportOptions()
		if f := strings.ToLower(config.OutputFormat); f == "jpeg" || f == "jpg" {
			opts.Format = "jpeg"
			opts.JPEGQuality = config.JPEGQuality
		}
		if err := pdf.ExportFile(config.PDFOutput, pages, opts); err != nil {
			return fmt.Errorf("failed to write %s: %w", config.PDFOutput, err)
		}
	}
	return nil
}

// outputName derives a unique file name for the document scanned from src.
func outputName(src, format string, used map[string]int) string {
	ext := "png"
	if f := strings.ToLower(format); f == "jpeg" || f == "jpg" {
		ext = "jpg"
	}

	stem := src
	page := ""
	if i := strings.LastIndex(src, "#page="); i >= 0 {
		stem, page = src[:i], "_p"+src[i+len("#page="):]
	}
	stem = strings.TrimSuffix(filepath.Base(stem), filepath.Ext(stem)) + page + "_scan"

	n := used[stem]
	used[stem] = n + 1
	if n > 0 {
		stem += "_" + strconv.Itoa(n)
	}
	return stem + "." + ext
}
