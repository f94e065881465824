package utils

import "math"

// ContourArea returns the absolute area enclosed by the closed polygon pts
// using the shoelace formula.
func ContourArea(pts []Point) float64 {
	if len(pts) < 3 {
		return 0
	}
	sum := 0.0
	prev := pts[len(pts)-1]
	for _, p := range pts {
		sum += prev.X*p.Y - p.X*prev.Y
		prev = p
	}
	return math.Abs(sum) / 2
}

// ArcLength returns the perimeter of pts. When closed is true the segment
// from the last point back to the first is included.
func ArcLength(pts []Point, closed bool) float64 {
	if len(pts) < 2 {
		return 0
	}
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += Distance(pts[i-1], pts[i])
	}
	if closed {
		total += Distance(pts[len(pts)-1], pts[0])
	}
	return total
}

// SimplifyPolygon reduces the number of points in an open polyline using the
// Douglas–Peucker algorithm with the given tolerance epsilon. Both endpoints are kept.
func SimplifyPolygon(pts []Point, epsilon float64) []Point {
	if len(pts) <= 2 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}
	keep := make([]bool, len(pts))
	dpSimplify(pts, 0, len(pts)-1, epsilon, keep)
	keep[0] = true
	keep[len(pts)-1] = true
	return collectKept(pts, keep)
}

// ApproxPolyDP approximates a contour with fewer vertices so that no dropped
// point lies farther than epsilon from the result. Closed contours are split
// at two mutually distant anchor points so the outcome does not depend on
// where tracing started.
func ApproxPolyDP(pts []Point, epsilon float64, closed bool) []Point {
	if !closed {
		return SimplifyPolygon(pts, epsilon)
	}
	n := len(pts)
	if n <= 3 || epsilon <= 0 {
		return append([]Point(nil), pts...)
	}

	a := farthestFrom(pts, 0)
	b := farthestFrom(pts, a)
	a = farthestFrom(pts, b)

	ring := make([]Point, 0, n+1)
	ring = append(ring, pts[a:]...)
	ring = append(ring, pts[:a]...)
	ring = append(ring, pts[a])
	split := (b - a + n) % n
	if split == 0 {
		return []Point{pts[a]}
	}

	keep := make([]bool, n+1)
	dpSimplify(ring, 0, split, epsilon, keep)
	dpSimplify(ring, split, n, epsilon, keep)
	keep[0] = true
	keep[split] = true
	return collectKept(ring[:n], keep[:n])
}

func farthestFrom(pts []Point, idx int) int {
	best, bestDist := idx, -1.0
	for i, p := range pts {
		dx, dy := p.X-pts[idx].X, p.Y-pts[idx].Y
		if d := dx*dx + dy*dy; d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func collectKept(pts []Point, keep []bool) []Point {
	out := make([]Point, 0, len(pts))
	for i, k := range keep {
		if k {
			out = append(out, pts[i])
		}
	}
	return out
}

func dpSimplify(pts []Point, start, end int, eps float64, keep []bool) {
	if end <= start+1 {
		return
	}
	maxDist := -1.0
	index := -1
	a := pts[start]
	b := pts[end]
	for i := start + 1; i < end; i++ {
		d := perpendicularDistance(pts[i], a, b)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}
	if maxDist > eps {
		dpSimplify(pts, start, index, eps, keep)
		keep[index] = true
		dpSimplify(pts, index, end, eps, keep)
	}
}

func perpendicularDistance(p, a, b Point) float64 {
	vx, vy := b.X-a.X, b.Y-a.Y
	if vx == 0 && vy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	// Area of parallelogram / base length
	num := math.Abs((p.X-a.X)*vy - (p.Y-a.Y)*vx)
	den := math.Hypot(vx, vy)
	return num / den
}
