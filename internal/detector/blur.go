package detector

import "github.com/MeKo-Tech/docscan/internal/mempool"

// reflect101 mirrors an out-of-range index without repeating the edge pixel
// (dcb|abcd|cba).
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// gaussianBlur convolves src with the separable kernel k.
func gaussianBlur(src plane, k []float32) plane {
	w, h := src.w, src.h
	half := len(k) / 2
	tmp := mempool.GetFloat32(w * h)
	defer mempool.PutFloat32(tmp)

	// Precompute mirrored column indices once per row pass.
	xIdx := make([]int, w+2*half)
	for i := range xIdx {
		xIdx[i] = reflect101(i-half, w)
	}
	for y := range h {
		row := src.pix[y*w : (y+1)*w]
		out := tmp[y*w : (y+1)*w]
		for x := range w {
			var acc float32
			for i, kv := range k {
				acc += kv * float32(row[xIdx[x+i]])
			}
			out[x] = acc
		}
	}

	dst := newPlane(w, h)
	yIdx := make([]int, h+2*half)
	for i := range yIdx {
		yIdx[i] = reflect101(i-half, h)
	}
	for y := range h {
		for x := range w {
			var acc float32
			for i, kv := range k {
				acc += kv * tmp[yIdx[y+i]*w+x]
			}
			dst.pix[y*w+x] = saturate(acc)
		}
	}
	return dst
}

func saturate(v float32) uint8 {
	v += 0.5
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
