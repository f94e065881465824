package pdf

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/docscan/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Page is one image found on a PDF page.
type Page struct {
	Number int
	Image  image.Image
}

// ExtractPagesFile reads the embedded images of a scanned PDF. pageRange
// selects pages like "1-3,5"; empty means all pages. Pages are returned in
// page order; images pdfcpu cannot decode are skipped.
func ExtractPagesFile(filename, pageRange string) ([]Page, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: reading a user-provided PDF is expected
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ExtractPages(f, pageRange)
}

// ExtractPages is ExtractPagesFile for an already opened PDF.
func ExtractPages(rs io.ReadSeeker, pageRange string) ([]Page, error) {
	pageNumbers, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}
	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}

	raw, err := api.ExtractImagesRaw(rs, selected, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	var pages []Page
	for _, byObj := range raw {
		objs := make([]int, 0, len(byObj))
		for nr := range byObj {
			objs = append(objs, nr)
		}
		sort.Ints(objs)
		for _, nr := range objs {
			img := byObj[nr]
			decoded, _, err := utils.DecodeImage(img)
			if err != nil {
				continue
			}
			pages = append(pages, Page{Number: img.PageNr, Image: decoded})
		}
	}
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either a single page token (e.g., "3") or a range token (e.g., "1-5").
func parseRangeToken(part string) ([]int, error) {
	if part == "" {
		return nil, errors.New("empty page token")
	}
	if strings.Contains(part, "-") {
		rangeParts := strings.Split(part, "-")
		if len(rangeParts) != 2 {
			return nil, fmt.Errorf("invalid range format: %s", part)
		}
		start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
		}
		end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
		}
		if start > end {
			return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
