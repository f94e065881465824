package detector

import "github.com/MeKo-Tech/docscan/internal/mempool"

// plane is a tightly packed 8-bit raster used inside the cascade.
type plane struct {
	pix  []uint8
	w, h int
}

func newPlane(w, h int) plane {
	return plane{pix: mempool.GetUint8(w * h), w: w, h: h}
}

func (p plane) release() {
	mempool.PutUint8(p.pix)
}

type morphOp int

const (
	opDilate morphOp = iota
	opErode
)

// morphology applies op to src the given number of times and returns a new plane.
// Pixels outside the raster never contribute, matching a border that is
// neutral for the operation.
func morphology(src plane, el structuringElement, op morphOp, iterations int) plane {
	cur := newPlane(src.w, src.h)
	copy(cur.pix, src.pix)
	if iterations <= 0 {
		return cur
	}
	next := newPlane(src.w, src.h)
	for range iterations {
		if el.rect {
			morphRect(cur, next, el, op)
		} else {
			morphGeneric(cur, next, el, op)
		}
		cur, next = next, cur
	}
	next.release()
	return cur
}

// closing dilates then erodes, iterations times each.
func closing(src plane, el structuringElement, iterations int) plane {
	d := morphology(src, el, opDilate, iterations)
	out := morphology(d, el, opErode, iterations)
	d.release()
	return out
}

func pick(op morphOp, a, b uint8) uint8 {
	if op == opDilate {
		return max(a, b)
	}
	return min(a, b)
}

// morphRect exploits separability of rectangular elements: a row pass
// followed by a column pass.
func morphRect(src, dst plane, el structuringElement, op morphOp) {
	w, h := src.w, src.h
	tmp := newPlane(w, h)
	defer tmp.release()

	for y := range h {
		row := src.pix[y*w : (y+1)*w]
		out := tmp.pix[y*w : (y+1)*w]
		for x := range w {
			x0 := max(x-el.ax, 0)
			x1 := min(x-el.ax+el.w, w)
			v := row[x0]
			for i := x0 + 1; i < x1; i++ {
				v = pick(op, v, row[i])
			}
			out[x] = v
		}
	}
	for y := range h {
		y0 := max(y-el.ay, 0)
		y1 := min(y-el.ay+el.h, h)
		for x := range w {
			v := tmp.pix[y0*w+x]
			for j := y0 + 1; j < y1; j++ {
				v = pick(op, v, tmp.pix[j*w+x])
			}
			dst.pix[y*w+x] = v
		}
	}
}

func morphGeneric(src, dst plane, el structuringElement, op morphOp) {
	w, h := src.w, src.h
	for y := range h {
		for x := range w {
			var v uint8
			if op == opErode {
				v = 255
			}
			for ky := range el.h {
				sy := y + ky - el.ay
				if sy < 0 || sy >= h {
					continue
				}
				for kx := range el.w {
					if !el.mask[ky*el.w+kx] {
						continue
					}
					sx := x + kx - el.ax
					if sx < 0 || sx >= w {
						continue
					}
					v = pick(op, v, src.pix[sy*w+sx])
				}
			}
			dst.pix[y*w+x] = v
		}
	}
}
