package detector

import "math"

// structuringElement is a binary morphology kernel with an anchor.
// Values are built once and never mutated afterwards.
type structuringElement struct {
	w, h   int
	ax, ay int
	mask   []bool
	rect   bool
}

// rectElement returns a filled w x h element anchored at its centre.
func rectElement(w, h int) structuringElement {
	mask := make([]bool, w*h)
	for i := range mask {
		mask[i] = true
	}
	return structuringElement{w: w, h: h, ax: w / 2, ay: h / 2, mask: mask, rect: true}
}

// ellipseElement returns the ellipse inscribed in a w x h box. Small sizes
// degrade the same way camera-pipeline libraries do: a 2x2 ellipse covers
// three pixels.
func ellipseElement(w, h int) structuringElement {
	r, c := h/2, w/2
	invR2 := 0.0
	if r > 0 {
		invR2 = 1 / float64(r*r)
	}
	mask := make([]bool, w*h)
	for i := range h {
		dy := i - r
		if abs(dy) > r {
			continue
		}
		dx := int(math.Round(float64(c) * math.Sqrt(float64(r*r-dy*dy)*invR2)))
		j1 := max(c-dx, 0)
		j2 := min(c+dx+1, w)
		for j := j1; j < j2; j++ {
			mask[i*w+j] = true
		}
	}
	return structuringElement{w: w, h: h, ax: c, ay: r, mask: mask}
}

// gaussianKernel returns normalized 1-D weights for an odd size. Sigma is
// derived from the size when not positive.
func gaussianKernel(size int, sigma float64) []float32 {
	if sigma <= 0 {
		sigma = 0.3*((float64(size)-1)*0.5-1) + 0.8
	}
	half := size / 2
	weights := make([]float64, size)
	sum := 0.0
	for i := range size {
		x := float64(i - half)
		weights[i] = math.Exp(-(x * x) / (2 * sigma * sigma))
		sum += weights[i]
	}
	out := make([]float32, size)
	for i, w := range weights {
		out[i] = float32(w / sum)
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// kernels bundles the immutable elements derived from a Config.
type kernels struct {
	close  structuringElement
	dilate structuringElement
	gauss  []float32
}

func newKernels(cfg Config) kernels {
	return kernels{
		close:  rectElement(cfg.CloseKernel, cfg.CloseKernel),
		dilate: ellipseElement(cfg.EdgeDilate, cfg.EdgeDilate),
		gauss:  gaussianKernel(cfg.BlurKernel, 0),
	}
}

// defaultKernels is built once for the default configuration and shared by
// every detector using it.
var defaultKernels = newKernels(DefaultConfig())
