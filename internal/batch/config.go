package batch

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/docscan/internal/pipeline"
)

// Config holds all configuration for batch scanning.
type Config struct {
	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// Input discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string
	// PageRange selects pages of PDF inputs, e.g. "1-3,5". Empty means all.
	PageRange string

	// Output settings
	OutputDir    string // rectified documents are written here when set
	OutputFormat string // png or jpeg
	JPEGQuality  int
	PDFOutput    string // all found documents are combined into this PDF when set
	Format       string // report format: json, text or csv
	OutputFile   string

	// Progress settings
	ShowProgress     bool
	Quiet            bool
	ShowStats        bool
	ProgressInterval time.Duration
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() Config {
	return Config{
		Workers:          runtime.NumCPU(),
		ContinueOnError:  true,
		OutputFormat:     "png",
		JPEGQuality:      90,
		Format:           "json",
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the settings that discovery and output depend on.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("invalid worker count: %d (must be positive)", c.Workers)
	}
	if !slices.Contains([]string{"json", "text", "csv"}, c.Format) {
		return fmt.Errorf("invalid report format: %s (must be one of: json, text, csv)", c.Format)
	}
	switch strings.ToLower(c.OutputFormat) {
	case "", "png", "jpeg", "jpg":
	default:
		return fmt.Errorf("invalid output format: %s (must be png or jpeg)", c.OutputFormat)
	}
	if c.JPEGQuality < 0 || c.JPEGQuality > 100 {
		return fmt.Errorf("invalid jpeg quality: %d", c.JPEGQuality)
	}
	return nil
}

// Item is the outcome for one scanned image or PDF page.
type Item struct {
	Source string
	Result *pipeline.ScanResult
	Err    error
	// Output is the path the rectified document was written to, if any.
	Output string
}

// Result holds the result of batch scanning.
type Result struct {
	Items       []Item
	Duration    time.Duration
	WorkerCount int
}

// ScanResults returns the per-item scan results; failed items are nil.
func (r *Result) ScanResults() []*pipeline.ScanResult {
	out := make([]*pipeline.ScanResult, len(r.Items))
	for i, it := range r.Items {
		out[i] = it.Result
	}
	return out
}

// Failed counts the items that could not be loaded or scanned.
func (r *Result) Failed() int {
	n := 0
	for _, it := range r.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}

// FormatResults formats the batch results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return formatBatchResults(r.Items, format)
}

// SaveResults writes the formatted results to outputFile, or to w when no
// file is given.
func (r *Result) SaveResults(w io.Writer, format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(w, "Results written to %s\n", outputFile)
		}
		return nil
	}

	_, _ = fmt.Fprintln(w, output)
	return nil
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	stats := pipeline.CalculateParallelStats(r.ScanResults(), r.Duration, r.WorkerCount)
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total inputs: %d\n", stats.TotalImages)
	_, _ = fmt.Fprintf(w, "  Documents: %d\n", stats.Documents)
	_, _ = fmt.Fprintf(w, "  No document: %d\n", stats.Empty)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", stats.FailedImages)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", stats.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", stats.TotalDuration.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Avg per image: %v\n", stats.AveragePerImage.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", stats.ThroughputPerSec)
}
