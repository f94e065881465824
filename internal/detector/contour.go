package detector

import (
	"github.com/MeKo-Tech/docscan/internal/mempool"
	"github.com/MeKo-Tech/docscan/internal/utils"
)

// 8-neighbourhood in clockwise order (image coordinates, y down):
// E, SE, S, SW, W, NW, N, NE.
var (
	ndx = [8]int{1, 1, 0, -1, -1, -1, 0, 1}
	ndy = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
)

const (
	dirEast = 0
	dirWest = 4
)

// findContours traces every border of the non-zero regions of src, outer
// borders and hole borders alike, using Suzuki–Abe border following. Each
// contour is the ordered list of its border pixel centres.
func findContours(src plane) [][]utils.Point {
	// Pad by one pixel so every border is surrounded by background.
	pw, ph := src.w+2, src.h+2
	f := mempool.GetInt32(pw * ph)
	defer mempool.PutInt32(f)
	for y := range src.h {
		for x := range src.w {
			if src.pix[y*src.w+x] != 0 {
				f[(y+1)*pw+x+1] = 1
			}
		}
	}

	var contours [][]utils.Point
	nbd := int32(1)
	for y := 1; y < ph-1; y++ {
		for x := 1; x < pw-1; x++ {
			i := y*pw + x
			fv := f[i]
			if fv == 0 {
				continue
			}
			var from int
			switch {
			case fv == 1 && f[i-1] == 0:
				from = dirWest
			case fv >= 1 && f[i+1] == 0:
				from = dirEast
			default:
				continue
			}
			nbd++
			contours = append(contours, followBorder(f, pw, x, y, from, nbd))
		}
	}
	return contours
}

// followBorder walks one border starting at (x, y), whose background
// neighbour lies in direction from, marking visited pixels with nbd.
// Returned points are shifted back out of the padded frame.
func followBorder(f []int32, pw, x, y, from int, nbd int32) []utils.Point {
	at := func(x, y int) int32 { return f[y*pw+x] }
	pt := func(x, y int) utils.Point { return utils.Point{X: float64(x - 1), Y: float64(y - 1)} }

	// Clockwise search from the background neighbour for the first non-zero pixel.
	first := -1
	for k := range 8 {
		d := (from + k) % 8
		if at(x+ndx[d], y+ndy[d]) != 0 {
			first = d
			break
		}
	}
	if first < 0 {
		f[y*pw+x] = -nbd
		return []utils.Point{pt(x, y)}
	}

	x1, y1 := x+ndx[first], y+ndy[first]
	x2, y2 := x1, y1
	x3, y3 := x, y
	pts := []utils.Point{pt(x, y)}

	for {
		// Counter-clockwise search around (x3, y3) starting just after (x2, y2).
		back := direction(x2-x3, y2-y3)
		eastZero := false
		var x4, y4 int
		for k := 1; k <= 8; k++ {
			d := (back - k + 16) % 8
			nx, ny := x3+ndx[d], y3+ndy[d]
			if at(nx, ny) != 0 {
				x4, y4 = nx, ny
				break
			}
			if d == dirEast {
				eastZero = true
			}
		}

		switch idx := y3*pw + x3; {
		case eastZero:
			f[idx] = -nbd
		case f[idx] == 1:
			f[idx] = nbd
		}

		if x4 == x && y4 == y && x3 == x1 && y3 == y1 {
			return pts
		}
		pts = append(pts, pt(x4, y4))
		x2, y2 = x3, y3
		x3, y3 = x4, y4
	}
}

func direction(dx, dy int) int {
	for i := range 8 {
		if ndx[i] == dx && ndy[i] == dy {
			return i
		}
	}
	return 0
}
