package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/MeKo-Tech/docscan/internal/batch"
	"github.com/MeKo-Tech/docscan/internal/config"
	"github.com/spf13/cobra"
)

var errAllInputsFailed = errors.New("no input could be scanned")

// scanCmd represents the scan command for batch detection and rectification.
var scanCmd = &cobra.Command{
	Use:   "scan [files or directories...]",
	Short: "Detect, rectify and filter documents in many images and PDFs",
	Long: `Scan image files, directories of images and scanned PDFs in parallel. Every
input is searched for a document which is then rectified and filtered with
the configured color profile. Each page image embedded in a PDF is scanned
on its own.

Results are reported as json, text or csv. Rectified documents are written
to --output-dir and can be combined into a single PDF with --pdf.

Examples:
  docscan scan receipts/*.jpg
  docscan scan photos/ --recursive --workers 8 --output-dir scans
  docscan scan book.pdf --pages 1-3 --pdf book_clean.pdf --color bw
  docscan scan photos/ --format csv --output corners.csv`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runScanCommand,
}

// configToBatchConfig maps centralized configuration to batch.Config.
// Flags override the configured values only when set.
func configToBatchConfig(cfg *config.Config, cmd *cobra.Command) *batch.Config {
	bc := batch.DefaultConfig()
	bc.Workers = cfg.Batch.Workers
	bc.ContinueOnError = cfg.Batch.ContinueOnError
	bc.JPEGQuality = cfg.Rectify.JPEGQuality
	if f := cfg.Rectify.OutputFormat; f == "jpeg" || f == "jpg" {
		bc.OutputFormat = "jpeg"
	}

	if cmd.Flags().Changed("continue-on-error") {
		bc.ContinueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	}
	if cmd.Flags().Changed("image-format") {
		bc.OutputFormat, _ = cmd.Flags().GetString("image-format")
	}

	bc.Format, _ = cmd.Flags().GetString("format")
	bc.OutputFile, _ = cmd.Flags().GetString("output")
	bc.OutputDir, _ = cmd.Flags().GetString("output-dir")
	bc.PDFOutput, _ = cmd.Flags().GetString("pdf")
	bc.PageRange, _ = cmd.Flags().GetString("pages")

	bc.Recursive, _ = cmd.Flags().GetBool("recursive")
	bc.IncludePatterns, _ = cmd.Flags().GetStringSlice("include")
	bc.ExcludePatterns, _ = cmd.Flags().GetStringSlice("exclude")

	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")
	bc.ShowStats, _ = cmd.Flags().GetBool("stats")
	bc.ProgressInterval, _ = cmd.Flags().GetDuration("progress-interval")
	return &bc
}

func runScanCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	pl, err := buildPipeline(cmd, cfg)
	if err != nil {
		return err
	}
	bc := configToBatchConfig(cfg, cmd)

	result, err := batch.Process(cmd.Context(), pl, args, bc, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := result.SaveResults(cmd.OutOrStdout(), bc.Format, bc.OutputFile, bc.Quiet); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}
	if bc.ShowStats && !bc.Quiet {
		result.PrintStats(cmd.ErrOrStderr())
	}

	if len(result.Items) > 0 && result.Failed() == len(result.Items) {
		return errAllInputsFailed
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// Detection and rectification flags
	scanCmd.Flags().String("aspect", "", "output aspect: din476, ansi_letter, none or a ratio (default from config)")
	scanCmd.Flags().String("color", "", "color profile: color, grayscale, bw (default from config)")
	scanCmd.Flags().Int("max-dimension", 0, "longest side of the detection raster (default from config)")
	scanCmd.Flags().Int("jpeg-quality", 90, "JPEG quality for written documents (1-100)")

	// Output flags
	scanCmd.Flags().StringP("format", "f", outputFormatJSON, "report format: json, text, csv")
	scanCmd.Flags().StringP("output", "o", "", "report file (default: stdout)")
	scanCmd.Flags().String("output-dir", "", "directory to write rectified documents")
	scanCmd.Flags().String("image-format", "png", "encoding of rectified documents: png, jpeg")
	scanCmd.Flags().String("pdf", "", "combine all rectified documents into this PDF")
	scanCmd.Flags().String("pages", "", "pages of PDF inputs to scan, e.g. 1-3,5 (default: all)")

	// Parallel processing flags
	scanCmd.Flags().IntP("workers", "w", 0, fmt.Sprintf("number of parallel workers (default: %d)", runtime.NumCPU()))
	scanCmd.Flags().Bool("continue-on-error", true, "keep scanning when an input fails")

	// File discovery flags
	scanCmd.Flags().BoolP("recursive", "r", false, "recursively scan directories")
	scanCmd.Flags().StringSlice("include", []string{}, "file patterns to include")
	scanCmd.Flags().StringSlice("exclude", []string{}, "file patterns to exclude")

	// Progress and monitoring flags
	scanCmd.Flags().Bool("progress", false, "show progress bar on stderr; with --quiet, log progress instead")
	scanCmd.Flags().Bool("quiet", false, "suppress progress and status output")
	scanCmd.Flags().Bool("stats", false, "print processing statistics on stderr")
	scanCmd.Flags().Duration("progress-interval", batch.DefaultConfig().ProgressInterval, "progress update interval")
}
