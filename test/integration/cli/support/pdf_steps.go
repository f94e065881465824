package support

import (
	"fmt"
	"image"
	"os"

	"github.com/MeKo-Tech/docscan/internal/pdf"
	"github.com/MeKo-Tech/docscan/internal/testutil"
	"github.com/cucumber/godog"
)

// aScannedPDFWithPages writes a PDF whose pages are JPEG photos of a document,
// the way a phone scanner app would produce them.
func (testCtx *TestContext) aScannedPDFWithPages(name string, pages int) error {
	imgs := make([]image.Image, pages)
	for i := range imgs {
		imgs[i] = testutil.GenerateDocument(testutil.DefaultDocumentConfig())
	}
	opts := pdf.ExportOptions{Format: "jpeg", JPEGQuality: 92}
	if err := pdf.ExportFile(testCtx.resolvePath(name), imgs, opts); err != nil {
		return fmt.Errorf("failed to write PDF %s: %w", name, err)
	}
	return nil
}

func (testCtx *TestContext) aFileThatIsNotAPDF(name string) error {
	return os.WriteFile(testCtx.resolvePath(name), []byte("%PDF-broken"), 0o600)
}

func (testCtx *TestContext) thePDFShouldHavePages(name string, expected int) error {
	f, err := os.Open(testCtx.resolvePath(name))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	n, err := pdf.PageCount(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if n != expected {
		return fmt.Errorf("PDF %s has %d pages, expected %d", name, n, expected)
	}
	return nil
}

// RegisterPDFSteps registers PDF fixture and assertion steps.
func (testCtx *TestContext) RegisterPDFSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a scanned PDF "([^"]*)" with (\d+) pages?$`, testCtx.aScannedPDFWithPages)
	sc.Step(`^a broken PDF "([^"]*)"$`, testCtx.aFileThatIsNotAPDF)
	sc.Step(`^the PDF "([^"]*)" should have (\d+) pages?$`, testCtx.thePDFShouldHavePages)
}
