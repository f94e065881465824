package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/cucumber/godog"
)

// sizeTolerance absorbs the few pixels a detected outline may differ from the drawn sheet.
const sizeTolerance = 6

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// detection mirrors one entry of "docscan detect --format json".
type detection struct {
	File     string  `json:"file"`
	Found    bool    `json:"found"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Absolute []point `json:"absolute"`
}

// scanReport mirrors "docscan scan --format json".
type scanReport struct {
	Images []struct {
		File string `json:"file"`
		Scan *struct {
			Found bool `json:"found"`
		} `json:"scan"`
		Output string `json:"output"`
		Error  string `json:"error"`
	} `json:"images"`
}

func (testCtx *TestContext) writeImage(name string, img image.Image) error {
	path := testCtx.resolvePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	if err := utils.SaveImage(img, path, 95); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// aDocumentPhoto writes a white sheet spanning (100,50)-(500,300) on a 600x400 table.
func (testCtx *TestContext) aDocumentPhoto(name string) error {
	return testCtx.writeImage(name, testutil.GenerateDocument(testutil.DefaultDocumentConfig()))
}

func (testCtx *TestContext) aLargeDocumentPhoto(name string) error {
	cfg := testutil.DefaultDocumentConfig()
	cfg.Size = testutil.LargeSize
	cfg.Corners = testutil.RectCorners(image.Rect(300, 200, 1300, 1000))
	return testCtx.writeImage(name, testutil.GenerateDocument(cfg))
}

func (testCtx *TestContext) anEmptyTablePhoto(name string) error {
	cfg := testutil.DefaultDocumentConfig()
	cfg.Corners = [4]image.Point{}
	return testCtx.writeImage(name, testutil.GenerateDocument(cfg))
}

func (testCtx *TestContext) aCorruptImage(name string) error {
	path := testCtx.resolvePath(name)
	return os.WriteFile(path, []byte("definitely not an image"), 0o600)
}

func (testCtx *TestContext) detections() ([]detection, error) {
	out := bytes.TrimSpace([]byte(testCtx.LastStdout))
	if len(out) == 0 {
		return nil, fmt.Errorf("no output:\n%s", testCtx.LastOutput)
	}
	if out[0] == '[' {
		var ds []detection
		if err := json.Unmarshal(out, &ds); err != nil {
			return nil, fmt.Errorf("failed to parse detections: %w", err)
		}
		return ds, nil
	}
	var d detection
	if err := json.Unmarshal(out, &d); err != nil {
		return nil, fmt.Errorf("failed to parse detection: %w", err)
	}
	return []detection{d}, nil
}

func (testCtx *TestContext) theDetectionShouldFindADocument() error {
	ds, err := testCtx.detections()
	if err != nil {
		return err
	}
	if len(ds) != 1 || !ds[0].Found || len(ds[0].Absolute) != 4 {
		return fmt.Errorf("expected one detected document, got %s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theDetectionShouldFindNoDocument() error {
	ds, err := testCtx.detections()
	if err != nil {
		return err
	}
	if len(ds) != 1 || ds[0].Found {
		return fmt.Errorf("expected no document, got %s", testCtx.LastStdout)
	}
	return nil
}

func (testCtx *TestContext) theDetectionShouldReportImages(n int) error {
	ds, err := testCtx.detections()
	if err != nil {
		return err
	}
	if len(ds) != n {
		return fmt.Errorf("expected %d detections, got %d", n, len(ds))
	}
	return nil
}

func (testCtx *TestContext) detectedCornerShouldBeNear(idx, x, y int) error {
	ds, err := testCtx.detections()
	if err != nil {
		return err
	}
	if len(ds) == 0 || len(ds[0].Absolute) != 4 {
		return fmt.Errorf("no corners in %s", testCtx.LastStdout)
	}
	if idx < 0 || idx > 3 {
		return fmt.Errorf("corner index %d out of range", idx)
	}
	c := ds[0].Absolute[idx]
	if math.Abs(c.X-float64(x)) > sizeTolerance || math.Abs(c.Y-float64(y)) > sizeTolerance {
		return fmt.Errorf("corner %d is (%.1f, %.1f), expected near (%d, %d)", idx, c.X, c.Y, x, y)
	}
	return nil
}

func (testCtx *TestContext) imageSize(name string) (image.Point, error) {
	img, _, err := utils.LoadImage(testCtx.resolvePath(name))
	if err != nil {
		return image.Point{}, err
	}
	return img.Bounds().Size(), nil
}

func (testCtx *TestContext) theImageShouldMeasure(name string, w, h int) error {
	size, err := testCtx.imageSize(name)
	if err != nil {
		return err
	}
	if size.X != w || size.Y != h {
		return fmt.Errorf("image %s is %dx%d, expected %dx%d", name, size.X, size.Y, w, h)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldMeasureAbout(name string, w, h int) error {
	size, err := testCtx.imageSize(name)
	if err != nil {
		return err
	}
	if abs(size.X-w) > sizeTolerance || abs(size.Y-h) > sizeTolerance {
		return fmt.Errorf("image %s is %dx%d, expected about %dx%d", name, size.X, size.Y, w, h)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldBeGrayscale(name string) error {
	img, _, err := utils.LoadImage(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y += 7 {
		for x := b.Min.X; x < b.Max.X; x += 7 {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r != g || g != bl {
				return fmt.Errorf("pixel (%d,%d) of %s is not gray", x, y, name)
			}
		}
	}
	return nil
}

func (testCtx *TestContext) scanReport() (scanReport, error) {
	var rep scanReport
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &rep); err != nil {
		return rep, fmt.Errorf("failed to parse scan report: %w\n%s", err, testCtx.LastStdout)
	}
	return rep, nil
}

func (testCtx *TestContext) theScanReportShouldListDocuments(n int) error {
	rep, err := testCtx.scanReport()
	if err != nil {
		return err
	}
	found := 0
	for _, item := range rep.Images {
		if item.Scan != nil && item.Scan.Found {
			found++
		}
	}
	if found != n {
		return fmt.Errorf("scan report lists %d documents, expected %d", found, n)
	}
	return nil
}

func (testCtx *TestContext) theScanReportShouldListFailures(n int) error {
	rep, err := testCtx.scanReport()
	if err != nil {
		return err
	}
	failed := 0
	for _, item := range rep.Images {
		if item.Error != "" {
			failed++
		}
	}
	if failed != n {
		return fmt.Errorf("scan report lists %d failures, expected %d", failed, n)
	}
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// RegisterImageSteps registers fixture generation and detection assertions.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a document photo "([^"]*)"$`, testCtx.aDocumentPhoto)
	sc.Step(`^a large document photo "([^"]*)"$`, testCtx.aLargeDocumentPhoto)
	sc.Step(`^an empty table photo "([^"]*)"$`, testCtx.anEmptyTablePhoto)
	sc.Step(`^a corrupt image "([^"]*)"$`, testCtx.aCorruptImage)
	sc.Step(`^the detection should find a document$`, testCtx.theDetectionShouldFindADocument)
	sc.Step(`^the detection should find no document$`, testCtx.theDetectionShouldFindNoDocument)
	sc.Step(`^the detection should report (\d+) images?$`, testCtx.theDetectionShouldReportImages)
	sc.Step(`^detected corner (\d) should be near \((\d+), (\d+)\)$`, testCtx.detectedCornerShouldBeNear)
	sc.Step(`^the image "([^"]*)" should measure (\d+)x(\d+) pixels$`, testCtx.theImageShouldMeasure)
	sc.Step(`^the image "([^"]*)" should measure about (\d+)x(\d+) pixels$`, testCtx.theImageShouldMeasureAbout)
	sc.Step(`^the image "([^"]*)" should be grayscale$`, testCtx.theImageShouldBeGrayscale)
	sc.Step(`^the scan report should list (\d+) documents?$`, testCtx.theScanReportShouldListDocuments)
	sc.Step(`^the scan report should list (\d+) failures?$`, testCtx.theScanReportShouldListFailures)
}
