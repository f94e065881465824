package cmd

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/filter"
	"github.com/MeKo-Tech/docscan/internal/geometry"
	"github.com/MeKo-Tech/docscan/internal/orientation"
	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/pipeline"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/spf13/cobra"
)

// rectifyCmd represents the rectify command.
var rectifyCmd = &cobra.Command{
	Use:   "rectify [image]",
	Short: "Warp a document quadrilateral into a flat image",
	Long: `Rectify the region of an image bounded by four corners. Corners are given
as "x,y;x,y;x,y;x,y" or as a JSON array of {"x":..,"y":..} objects, in any
order. Without --corners the document is detected first.

Normalized corners may come from a preview frame of a rotated camera; pass
the device rotation with --rotation so image and corners are aligned before
warping.

The output format follows the extension of --output: .png, .jpg or .pdf.

Examples:
  docscan rectify photo.jpg -o page.png
  docscan rectify photo.jpg --corners "120,40;980,60;1010,1400;90,1380" -o page.jpg
  docscan rectify still.jpg --corners "0.1,0.2;0.9,0.2;0.9,0.8;0.1,0.8" --normalized --rotation 90 -o page.pdf
  docscan rectify photo.jpg --aspect din476 --color bw -o page.png`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runRectifyCommand,
}

func runRectifyCommand(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	output, _ := cmd.Flags().GetString("output")
	if output == "" {
		return errors.New("--output is required")
	}
	cornerList, _ := cmd.Flags().GetString("corners")
	normalized, _ := cmd.Flags().GetBool("normalized")
	degrees, _ := cmd.Flags().GetInt("rotation")

	rotation, err := orientation.ParseRotation(degrees)
	if err != nil {
		return err
	}
	if rotation != orientation.Rotation0 && (cornerList == "" || !normalized) {
		return errors.New("--rotation requires --corners with --normalized")
	}

	pl, err := buildPipeline(cmd, cfg)
	if err != nil {
		return err
	}

	img, _, err := utils.LoadImage(args[0])
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", args[0], err)
	}

	flat, err := rectifyImage(pl, img, cornerList, normalized, rotation)
	if err != nil {
		return err
	}

	out, err := filter.Apply(flat, pl.Config().Color)
	if err != nil {
		return err
	}

	if err := writeDocument(out, output, cfg.Rectify.JPEGQuality); err != nil {
		return err
	}
	b := out.Bounds()
	slog.Info("Rectified document", "input", args[0], "output", output, "width", b.Dx(), "height", b.Dy())
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Rectified %s -> %s (%dx%d)\n", args[0], output, b.Dx(), b.Dy())
	return nil
}

// rectifyImage warps img using the given corners, or the detected ones when
// cornerList is empty.
func rectifyImage(
	pl *pipeline.Pipeline,
	img image.Image,
	cornerList string,
	normalized bool,
	rotation orientation.Rotation,
) (image.Image, error) {
	aspect := pl.Config().Rectify.Aspect

	if cornerList == "" {
		res, err := pl.DetectDocument(img, pl.Config().DebugStage)
		if err != nil {
			return nil, err
		}
		if !res.Found() {
			return nil, errors.New("no document found; pass --corners explicitly")
		}
		return pl.Capture(img, *res.Corners, orientation.Rotation0, aspect)
	}

	space := geometry.Absolute
	if normalized {
		space = geometry.Normalized
	}
	c, err := geometry.Parse(cornerList, space)
	if err != nil {
		return nil, err
	}
	if normalized {
		return pl.Capture(img, c, rotation, aspect)
	}
	return pl.TransformDocument(img, c, aspect)
}

// writeDocument saves img as PNG, JPEG or a one-page PDF depending on the
// extension of path.
func writeDocument(img image.Image, path string, jpegQuality int) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		opts := pdf.DefaultExportOptions()
		opts.JPEGQuality = jpegQuality
		return pdf.ExportFile(path, []image.Image{img}, opts)
	case ".png", ".jpg", ".jpeg":
		return utils.SaveImage(img, path, jpegQuality)
	default:
		return fmt.Errorf("unsupported output extension: %q (use .png, .jpg or .pdf)", filepath.Ext(path))
	}
}

func init() {
	rootCmd.AddCommand(rectifyCmd)

	rectifyCmd.Flags().StringP("output", "o", "", "output file (.png, .jpg or .pdf)")
	rectifyCmd.Flags().String("corners", "", "four corners as \"x,y;x,y;x,y;x,y\" or a JSON point array")
	rectifyCmd.Flags().Bool("normalized", false, "corners are normalized to [0,1]")
	rectifyCmd.Flags().Int("rotation", 0, "clockwise device rotation of the corners' frame: 0, 90, 180, 270")
	rectifyCmd.Flags().String("aspect", "", "output aspect: din476, ansi_letter, none or a ratio (default from config)")
	rectifyCmd.Flags().String("color", "", "color profile: color, grayscale, bw (default from config)")
	rectifyCmd.Flags().Int("jpeg-quality", 90, "JPEG quality (1-100)")
	rectifyCmd.Flags().Int("max-dimension", 0, "longest side of the detection raster (default from config)")
	rectifyCmd.Flags().String("rectify-debug-dir", "", "directory to write rectification debug images")
}
