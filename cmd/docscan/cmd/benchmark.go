package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/docscan/internal/benchmark"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/spf13/cobra"
)

// benchmarkReport is the JSON output for one image.
type benchmarkReport struct {
	File    string             `json:"file"`
	Width   int                `json:"width"`
	Height  int                `json:"height"`
	Found   bool               `json:"found"`
	Results []benchmark.Result `json:"results"`
}

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark [images...]",
	Short: "Time each scan stage on sample images",
	Long: `Run grayscale conversion, preprocessing, detection, rectification,
filtering and the full scan repeatedly on each image and report timings.

Examples:
  docscan benchmark photo.jpg
  docscan benchmark photo.jpg --iterations 50 --stage detect --format json`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBenchmarkCommand,
}

func runBenchmarkCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations <= 0 {
		return fmt.Errorf("invalid iteration count: %d", iterations)
	}
	stages, _ := cmd.Flags().GetStringSlice("stage")
	format, _ := cmd.Flags().GetString("format")
	if format != outputFormatJSON && format != outputFormatText {
		return fmt.Errorf("invalid format: %s (must be json or text)", format)
	}

	pl, err := buildPipeline(cmd, cfg)
	if err != nil {
		return err
	}

	reports := make([]benchmarkReport, 0, len(args))
	for _, path := range args {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		sb, err := benchmark.NewScanBenchmark(pl, img)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		b := img.Bounds()
		rep := benchmarkReport{File: path, Width: b.Dx(), Height: b.Dy(), Found: sb.Found()}
		if len(stages) == 0 {
			rep.Results = sb.RunAll(cmd.Context(), iterations)
		} else {
			for _, s := range stages {
				rep.Results = append(rep.Results, sb.Run(cmd.Context(), s, iterations))
			}
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		slog.Debug("Benchmarked image", "file", path, "stages", len(rep.Results))
		reports = append(reports, rep)
	}

	out := cmd.OutOrStdout()
	if format == outputFormatJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	for _, rep := range reports {
		_, _ = fmt.Fprintf(out, "%s (%dx%d, document found: %t)\n", rep.File, rep.Width, rep.Height, rep.Found)
		for _, r := range rep.Results {
			_, _ = fmt.Fprintf(out, "  %s\n", r.String())
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(benchmarkCmd)

	benchmarkCmd.Flags().IntP("iterations", "n", 10, "Iterations per stage")
	benchmarkCmd.Flags().StringSlice("stage", nil,
		"Stages to run (grayscale, preprocess, detect, rectify, filter, scan); default all")
	benchmarkCmd.Flags().StringP("format", "f", outputFormatText, "Output format: text or json")
	benchmarkCmd.Flags().Int("max-dimension", 0, "Longest side of the detection raster")
	benchmarkCmd.Flags().String("aspect", "", "Output aspect ratio: din476, ansi_letter, none or a number")
	benchmarkCmd.Flags().String("color", "", "Color profile: color, grayscale or bw")
}
