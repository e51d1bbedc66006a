package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// intersectEps is the tolerance for degenerate cross products in degree space
const intersectEps = 1e-12

// SegmentIntersection computes the intersection of segments p1-p2 and q1-q2
// in planar lng/lat space. For a proper or touching crossing it returns one
// point. For collinear overlapping segments it returns the two endpoints of
// the overlap and overlap=true; the overlap itself is not collapsed.
// Disjoint segments return nil, false.
func SegmentIntersection(p1, p2, q1, q2 orb.Point) (pts []orb.Point, overlap bool) {
	r := orb.Point{p2[0] - p1[0], p2[1] - p1[1]}
	s := orb.Point{q2[0] - q1[0], q2[1] - q1[1]}

	denom := cross(r, s)
	qp := orb.Point{q1[0] - p1[0], q1[1] - p1[1]}

	if math.Abs(denom) < intersectEps {
		if math.Abs(cross(qp, r)) > intersectEps {
			return nil, false // parallel, not collinear
		}
		return collinearOverlap(p1, p2, q1, q2, r)
	}

	t := cross(qp, s) / denom
	u := cross(qp, r) / denom

	if t < -intersectEps || t > 1+intersectEps || u < -intersectEps || u > 1+intersectEps {
		return nil, false
	}

	return []orb.Point{{p1[0] + t*r[0], p1[1] + t*r[1]}}, false
}

// collinearOverlap handles the collinear case: project q1/q2 onto p1-p2 and
// clip the parameter range to [0,1]
func collinearOverlap(p1, p2, q1, q2, r orb.Point) ([]orb.Point, bool) {
	rr := r[0]*r[0] + r[1]*r[1]
	if rr < intersectEps {
		// p1-p2 is a degenerate point; report it if it lies on q1-q2
		if onSegment(p1, q1, q2) {
			return []orb.Point{p1}, false
		}
		return nil, false
	}

	t0 := ((q1[0]-p1[0])*r[0] + (q1[1]-p1[1])*r[1]) / rr
	t1 := ((q2[0]-p1[0])*r[0] + (q2[1]-p1[1])*r[1]) / rr
	if t0 > t1 {
		t0, t1 = t1, t0
	}

	lo := math.Max(t0, 0)
	hi := math.Min(t1, 1)
	if lo > hi+intersectEps {
		return nil, false
	}

	a := orb.Point{p1[0] + lo*r[0], p1[1] + lo*r[1]}
	b := orb.Point{p1[0] + hi*r[0], p1[1] + hi*r[1]}

	if samePoint(a, b) {
		// overlap degenerated to a single touching point
		return []orb.Point{a}, false
	}
	return []orb.Point{a, b}, true
}

// onSegment reports whether point p lies on segment ab (within tolerance)
func onSegment(p, a, b orb.Point) bool {
	ab := orb.Point{b[0] - a[0], b[1] - a[1]}
	ap := orb.Point{p[0] - a[0], p[1] - a[1]}
	if math.Abs(cross(ab, ap)) > intersectEps {
		return false
	}
	dot := ap[0]*ab[0] + ap[1]*ab[1]
	lenSq := ab[0]*ab[0] + ab[1]*ab[1]
	return dot >= -intersectEps && dot <= lenSq+intersectEps
}

// LineIntersections collects every intersection point between two
// linestrings, including the endpoints of any collinear overlap. Pairs of
// segments with disjoint bounding boxes are skipped.
func LineIntersections(a, b orb.LineString) []orb.Point {
	var out []orb.Point

	for i := 0; i < len(a)-1; i++ {
		segBound := segmentBound(a[i], a[i+1])
		for j := 0; j < len(b)-1; j++ {
			if !segBound.Intersects(segmentBound(b[j], b[j+1])) {
				continue
			}
			pts, _ := SegmentIntersection(a[i], a[i+1], b[j], b[j+1])
			out = append(out, pts...)
		}
	}

	return dedupePoints(out)
}

func segmentBound(a, b orb.Point) orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(a[0], b[0]), math.Min(a[1], b[1])},
		Max: orb.Point{math.Max(a[0], b[0]), math.Max(a[1], b[1])},
	}
}

func cross(a, b orb.Point) float64 {
	return a[0]*b[1] - a[1]*b[0]
}

func dedupePoints(pts []orb.Point) []orb.Point {
	var out []orb.Point
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if samePoint(p, q) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, p)
		}
	}
	return out
}

// ClusterPoints merges points lying within toleranceM of each other into
// their cluster centroid. Clustering is transitive (single-link) and the
// output order follows the first occurrence of each cluster.
func ClusterPoints(pts []orb.Point, toleranceM float64) []orb.Point {
	if toleranceM <= 0 || len(pts) < 2 {
		return pts
	}

	parent := make([]int, len(pts))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			if EquirectM(pts[i], pts[j]) <= toleranceM {
				parent[find(i)] = find(j)
			}
		}
	}

	sums := make(map[int]*struct {
		x, y  float64
		n     int
		first int
	})
	order := []int{}
	for i, p := range pts {
		root := find(i)
		agg, ok := sums[root]
		if !ok {
			agg = &struct {
				x, y  float64
				n     int
				first int
			}{first: i}
			sums[root] = agg
			order = append(order, root)
		}
		agg.x += p[0]
		agg.y += p[1]
		agg.n++
	}

	out := make([]orb.Point, 0, len(order))
	for _, root := range order {
		agg := sums[root]
		out = append(out, orb.Point{agg.x / float64(agg.n), agg.y / float64(agg.n)})
	}
	return out
}
