package rectify

import (
	"image"
	"math"

	"github.com/MeKo-Tech/docscan/internal/utils"
)

// warpPerspective fills a dstW x dstH raster by mapping every destination
// pixel through h (destination -> source) and sampling src bilinearly.
// Source pixels outside the raster read as black.
func warpPerspective(src image.Image, h [9]float64, dstW, dstH int) image.Image {
	if g, ok := src.(*image.Gray); ok {
		return warpGray(g, h, dstW, dstH)
	}
	return warpRGBA(utils.ToRGBA(src), h, dstW, dstH)
}

// sampleWeights returns the integer top-left neighbour and fractional offsets
// of a bilinear sample at (x, y).
func sampleWeights(x, y float64) (int, int, float64, float64) {
	fx, fy := math.Floor(x), math.Floor(y)
	return int(fx), int(fy), x - fx, y - fy
}

func warpGray(src *image.Gray, h [9]float64, dstW, dstH int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, dstW, dstH))
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= ht {
			return 0
		}
		return float64(src.Pix[src.PixOffset(b.Min.X+x, b.Min.Y+y)])
	}
	for y := range dstH {
		row := out.Pix[y*out.Stride:]
		for x := range dstW {
			sx, sy, ok := applyHomography(h, float64(x), float64(y))
			if !ok {
				continue
			}
			x0, y0, fx, fy := sampleWeights(sx, sy)
			if x0 < -1 || y0 < -1 || x0 >= w || y0 >= ht {
				continue
			}
			v := lerp(lerp(at(x0, y0), at(x0+1, y0), fx), lerp(at(x0, y0+1), at(x0+1, y0+1), fx), fy)
			row[x] = clampByte(v)
		}
	}
	return out
}

func warpRGBA(src *image.RGBA, h [9]float64, dstW, dstH int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	b := src.Bounds()
	w, ht := b.Dx(), b.Dy()
	var black [4]float64
	black[3] = 255
	px := func(x, y int) [4]float64 {
		if x < 0 || y < 0 || x >= w || y >= ht {
			return black
		}
		i := src.PixOffset(b.Min.X+x, b.Min.Y+y)
		s := src.Pix[i : i+4 : i+4]
		return [4]float64{float64(s[0]), float64(s[1]), float64(s[2]), float64(s[3])}
	}
	for y := range dstH {
		for x := range dstW {
			o := out.PixOffset(x, y)
			d := out.Pix[o : o+4 : o+4]
			d[3] = 255
			sx, sy, ok := applyHomography(h, float64(x), float64(y))
			if !ok {
				continue
			}
			x0, y0, fx, fy := sampleWeights(sx, sy)
			if x0 < -1 || y0 < -1 || x0 >= w || y0 >= ht {
				continue
			}
			c00, c10 := px(x0, y0), px(x0+1, y0)
			c01, c11 := px(x0, y0+1), px(x0+1, y0+1)
			for c := range 4 {
				d[c] = clampByte(lerp(lerp(c00[c], c10[c], fx), lerp(c01[c], c11[c], fx), fy))
			}
		}
	}
	return out
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
