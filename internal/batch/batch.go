// Package batch scans many inputs in one run: image files, directories of
// images and scanned PDFs, whose embedded page images are scanned one by one.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/mattn/go-isatty"
)

// ErrNoInputs is returned when discovery finds nothing to scan.
var ErrNoInputs = errors.New("no image or PDF files found")

// Process discovers the inputs named by args, scans them with pl and writes
// the requested outputs. Progress is drawn on progressOut when enabled.
func Process(ctx context.Context, pl *pipeline.Pipeline, args []string, config *Config, progressOut io.Writer) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	files, err := discoverInputs(args, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover inputs: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoInputs
	}

	sources, loadFailures, err := loadSources(files, config.PageRange, config.ContinueOnError)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded scan inputs", "files", len(files), "pages", len(sources), "failed", len(loadFailures))

	result := &Result{WorkerCount: config.Workers}
	start := time.Now()

	if len(sources) > 0 {
		items, err := scanSources(ctx, pl, sources, config, progressOut)
		if err != nil {
			return nil, err
		}
		result.Items = items
	}
	result.Items = append(result.Items, loadFailures...)
	result.Duration = time.Since(start)

	if err := writeOutputs(result.Items, config); err != nil {
		return result, err
	}
	return result, nil
}

// progressReporter picks how --progress is reported. Quiet runs, or runs
// without a progress writer, report through the logger only. Otherwise a bar
// is drawn on out and the same progress is logged at debug level.
func progressReporter(config *Config, out io.Writer) pipeline.ProgressCallback {
	if !config.ShowProgress {
		return nil
	}
	if config.Quiet || out == nil {
		return pipeline.NewLogProgressCallback(nil, slog.LevelInfo)
	}
	bar := pipeline.NewConsoleProgressCallback(out, "Scanning: ", isTerminal(out)).
		WithUpdateInterval(config.ProgressInterval)
	return pipeline.MultiProgressCallback{bar, pipeline.NewLogProgressCallback(nil, slog.LevelDebug)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// scanSources runs the parallel scan and pairs every outcome with its source.
func scanSources(
	ctx context.Context,
	pl *pipeline.Pipeline,
	sources []source,
	config *Config,
	progressOut io.Writer,
) ([]Item, error) {
	images := make([]image.Image, len(sources))
	for i, s := range sources {
		images[i] = s.Image
	}

	errs := make([]error, len(sources))
	par := pipeline.ParallelConfig{
		MaxWorkers: config.Workers,
		ErrorHandler: func(i int, _ image.Image, err error) {
			errs[i] = err
		},
	}
	par.ProgressCallback = progressReporter(config, progressOut)

	results, err := pl.ScanImagesParallel(ctx, images, par)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil && !config.ContinueOnError {
		return nil, fmt.Errorf("batch scan failed: %w", err)
	}

	items := make([]Item, len(sources))
	for i, s := range sources {
		items[i] = Item{Source: s.Name, Result: results[i], Err: errs[i]}
		if results[i] != nil {
			results[i].Source = s.Name
		}
		if errs[i] != nil {
			slog.Warn("Scan failed", "source", s.Name, "error", errs[i])
		}
	}
	return items, nil
}
