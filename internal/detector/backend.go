package detector

import "github.com/MeKo-Tech/docscan/internal/utils"

// backend runs the raster-heavy stages of the cascade. The pure Go backend is
// linked by default; building with -tags=gocv swaps in OpenCV.
type backend interface {
	name() string
	// removeContent erases text and fine detail while keeping the document outline.
	removeContent(src plane, k kernels, cfg Config) plane
	// edges returns a 0/255 edge map with small gaps closed.
	edges(src plane, k kernels, cfg Config) plane
	// contours lists every border of the edge map.
	contours(edges plane) [][]utils.Point
}

// BackendName reports which cascade implementation is linked into the binary.
func BackendName() string { return newBackend().name() }

type pureBackend struct{}

func (pureBackend) name() string { return "go" }

func (pureBackend) removeContent(src plane, k kernels, cfg Config) plane {
	return closing(src, k.close, cfg.CloseIterations)
}

func (pureBackend) edges(src plane, k kernels, cfg Config) plane {
	blurred := gaussianBlur(src, k.gauss)
	defer blurred.release()
	e := canny(blurred, cfg.CannyLow, cfg.CannyHigh)
	defer e.release()
	return morphology(e, k.dilate, opDilate, 1)
}

func (pureBackend) contours(edges plane) [][]utils.Point {
	return findContours(edges)
}
