package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/detector"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/spf13/cobra"
)

// detectOutput is the report printed for one image.
type detectOutput struct {
	File       string        `json:"file"`
	Found      bool          `json:"found"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	Normalized []utils.Point `json:"normalized,omitempty"`
	Absolute   []utils.Point `json:"absolute,omitempty"`
	DurationMs float64       `json:"duration_ms"`
	Debug      string        `json:"debug,omitempty"`
	Overlay    string        `json:"overlay,omitempty"`
}

// detectCmd represents the detect command.
var detectCmd = &cobra.Command{
	Use:   "detect [images...]",
	Short: "Find the corners of the document in images",
	Long: `Detect the four corners of a sheet of paper in each image and print them
clockwise from the top-left, both normalized to [0,1] and in pixels.

Supported formats: JPEG, PNG, BMP, TIFF, WebP

Examples:
  docscan detect photo.jpg
  docscan detect *.png --format text
  docscan detect photo.jpg --debug-stage edges_detected --debug-dir debug/
  docscan detect photo.jpg --overlay-dir overlays/`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runDetectCommand,
}

func runDetectCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	format, _ := cmd.Flags().GetString("format")
	if format != outputFormatJSON && format != outputFormatText {
		return fmt.Errorf("invalid format: %s (must be json or text)", format)
	}
	debugDir, _ := cmd.Flags().GetString("debug-dir")
	overlayDir, _ := cmd.Flags().GetString("overlay-dir")

	pl, err := buildPipeline(cmd, cfg)
	if err != nil {
		return err
	}
	stage := pl.Config().DebugStage
	if stage != detector.StageNone && debugDir == "" {
		return errors.New("--debug-dir is required when a debug stage is selected")
	}

	outputs := make([]detectOutput, 0, len(args))
	for _, path := range args {
		out, err := detectFile(pl, path, stage, debugDir, overlayDir)
		if err != nil {
			return err
		}
		outputs = append(outputs, out)
	}

	return printDetectOutputs(cmd.OutOrStdout(), outputs, format)
}

func detectFile(pl *pipeline.Pipeline, path string, stage detector.DebugStage, debugDir, overlayDir string) (detectOutput, error) {
	img, _, err := utils.LoadImage(path)
	if err != nil {
		return detectOutput{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	res, err := pl.DetectDocument(img, stage)
	if err != nil {
		return detectOutput{}, fmt.Errorf("detection failed for %s: %w", path, err)
	}

	b := img.Bounds()
	out := detectOutput{
		File:       path,
		Found:      res.Found(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		DurationMs: float64(res.Duration.Microseconds()) / 1000,
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var abs geometry.Corners
	if out.Found {
		if abs, err = res.Corners.Denormalize(out.Width, out.Height); err != nil {
			return detectOutput{}, err
		}
		out.Normalized = res.Corners.Slice()
		out.Absolute = abs.Slice()
	}

	if res.Debug != nil {
		out.Debug = filepath.Join(debugDir, stem+"_"+stage.String()+".png")
		if err := utils.SaveImage(res.Debug, out.Debug, 0); err != nil {
			return detectOutput{}, err
		}
	}

	if overlayDir != "" && out.Found {
		out.Overlay = filepath.Join(overlayDir, stem+"_overlay.png")
		if err := utils.SaveImage(renderOverlay(img, abs), out.Overlay, 0); err != nil {
			return detectOutput{}, err
		}
	}

	slog.Debug("Detected document", "file", path, "found", out.Found, "duration_ms", out.DurationMs)
	return out, nil
}

// renderOverlay draws the detected quadrilateral and its corners onto a copy of img.
func renderOverlay(img image.Image, abs geometry.Corners) *image.RGBA {
	ov := utils.ToRGBA(img)
	pts := abs.Slice()
	utils.DrawPolygon(ov, pts, color.RGBA{0, 255, 0, 255}, 3)
	for _, p := range pts {
		utils.DrawMarker(ov, p, color.RGBA{255, 0, 0, 255}, 6)
	}
	return ov
}

func printDetectOutputs(w io.Writer, outputs []detectOutput, format string) error {
	if format == outputFormatText {
		for _, o := range outputs {
			if !o.Found {
				_, _ = fmt.Fprintf(w, "%s: no document found\n", o.File)
				continue
			}
			c, err := geometry.FromPoints(o.Normalized, geometry.Normalized)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "%s: %s\n", o.File, c.String())
		}
		return nil
	}

	var v any = outputs
	if len(outputs) == 1 {
		v = outputs[0]
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, string(b))
	return nil
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringP("format", "f", outputFormatJSON, "output format: json, text")
	detectCmd.Flags().Int("max-dimension", 0, "longest side of the working raster (default from config)")
	detectCmd.Flags().String("debug-stage", "",
		"write an intermediate raster: preprocessed, content_removed, edges_detected")
	detectCmd.Flags().String("debug-dir", "", "directory for debug rasters")
	detectCmd.Flags().String("overlay-dir", "", "directory to save images with the detected outline drawn")
}
