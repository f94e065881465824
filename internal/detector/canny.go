package detector

import (
	"math"

	"github.com/MeKo-Tech/docscan/internal/mempool"
)

// tan(22.5) and tan(67.5) split gradient directions into four sectors.
var (
	tan22 = float32(math.Tan(math.Pi / 8))
	tan67 = float32(math.Tan(3 * math.Pi / 8))
)

// canny returns a binary edge map (0 or 255) of src using 3x3 Sobel
// gradients, the L1 magnitude, non-maximum suppression and hysteresis.
func canny(src plane, low, high float64) plane {
	w, h := src.w, src.h
	n := w * h
	gx := mempool.GetInt32(n)
	gy := mempool.GetInt32(n)
	mag := mempool.GetInt32(n)
	defer mempool.PutInt32(gx)
	defer mempool.PutInt32(gy)
	defer mempool.PutInt32(mag)

	sobel(src, gx, gy)
	for i := range n {
		mag[i] = abs32(gx[i]) + abs32(gy[i])
	}

	// state: 0 = not an edge, 1 = weak candidate, 2 = confirmed edge
	state := mempool.GetUint8(n)
	defer mempool.PutUint8(state)
	stack := make([]int, 0, 1024)

	magAt := func(x, y int) int32 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	for y := range h {
		for x := range w {
			i := y*w + x
			m := mag[i]
			if float64(m) <= low {
				continue
			}
			ax := float32(abs32(gx[i]))
			ay := float32(abs32(gy[i]))
			var isMax bool
			switch {
			case ay < ax*tan22:
				isMax = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ay > ax*tan67:
				isMax = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				s := 1
				if (gx[i] < 0) != (gy[i] < 0) {
					s = -1
				}
				isMax = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
			}
			if !isMax {
				continue
			}
			if float64(m) > high {
				state[i] = 2
				stack = append(stack, i)
			} else {
				state[i] = 1
			}
		}
	}

	// Hysteresis: grow confirmed edges through 8-connected weak candidates.
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if state[j] == 1 {
					state[j] = 2
					stack = append(stack, j)
				}
			}
		}
	}

	out := newPlane(w, h)
	for i, s := range state {
		if s == 2 {
			out.pix[i] = 255
		}
	}
	return out
}

// sobel computes 3x3 Sobel derivatives with replicated borders.
func sobel(src plane, gx, gy []int32) {
	w, h := src.w, src.h
	at := func(x, y int) int32 {
		x = min(max(x, 0), w-1)
		y = min(max(y, 0), h-1)
		return int32(src.pix[y*w+x])
	}
	for y := range h {
		for x := range w {
			tl, t, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			l, r := at(x-1, y), at(x+1, y)
			bl, b, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)
			gx[y*w+x] = (tr + 2*r + br) - (tl + 2*l + bl)
			gy[y*w+x] = (bl + 2*b + br) - (tl + 2*t + tr)
		}
	}
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
