//go:build gocv

package detector

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// newBackend returns the OpenCV-backed implementation when the build tag is enabled.
func newBackend() backend { return gocvBackend{} }

type gocvBackend struct{}

func (gocvBackend) name() string { return "gocv" }

// toMat copies p into a fresh single-channel Mat. On failure the pure Go
// stage result is used instead, so callers always get a plane back.
func toMat(p plane) (gocv.Mat, bool) {
	m, err := gocv.NewMatFromBytes(p.h, p.w, gocv.MatTypeCV8UC1, p.pix)
	if err != nil {
		slog.Warn("gocv: cannot wrap plane", "error", err)
		return gocv.Mat{}, false
	}
	defer m.Close()
	return m.Clone(), true
}

func fromMat(m gocv.Mat, w, h int) plane {
	out := newPlane(w, h)
	copy(out.pix, m.ToBytes())
	return out
}

func (gocvBackend) removeContent(src plane, k kernels, cfg Config) plane {
	m, ok := toMat(src)
	if !ok {
		return pureBackend{}.removeContent(src, k, cfg)
	}
	defer m.Close()

	el := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(k.close.w, k.close.h))
	defer el.Close()

	for range cfg.CloseIterations {
		gocv.Dilate(m, &m, el)
	}
	for range cfg.CloseIterations {
		gocv.Erode(m, &m, el)
	}
	return fromMat(m, src.w, src.h)
}

func (gocvBackend) edges(src plane, k kernels, cfg Config) plane {
	m, ok := toMat(src)
	if !ok {
		return pureBackend{}.edges(src, k, cfg)
	}
	defer m.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(m, &blurred, image.Pt(cfg.BlurKernel, cfg.BlurKernel), 0, 0, gocv.BorderDefault)

	e := gocv.NewMat()
	defer e.Close()
	gocv.Canny(blurred, &e, float32(cfg.CannyLow), float32(cfg.CannyHigh))

	el := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(k.dilate.w, k.dilate.h))
	defer el.Close()
	gocv.Dilate(e, &e, el)

	return fromMat(e, src.w, src.h)
}

func (gocvBackend) contours(edges plane) [][]utils.Point {
	m, ok := toMat(edges)
	if !ok {
		return findContours(edges)
	}
	defer m.Close()

	pv := gocv.FindContours(m, gocv.RetrievalList, gocv.ChainApproxNone)
	defer pv.Close()

	out := make([][]utils.Point, 0, pv.Size())
	for i := range pv.Size() {
		pts := pv.At(i).ToPoints()
		c := make([]utils.Point, len(pts))
		for j, p := range pts {
			c[j] = utils.Point{X: float64(p.X), Y: float64(p.Y)}
		}
		out = append(out, c)
	}
	return out
}
