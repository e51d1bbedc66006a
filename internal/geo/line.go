package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Chainage returns the cumulative distance in meters from the start of the
// linestring to each vertex. Result has the same length as ls; index 0 is 0.
func Chainage(ls orb.LineString) []float64 {
	out := make([]float64, len(ls))
	for i := 1; i < len(ls); i++ {
		out[i] = out[i-1] + EquirectM(ls[i-1], ls[i])
	}
	return out
}

// PointAtChainage returns the interpolated point and elevation at distance d
// meters along the line. d is clamped to [0, length].
func PointAtChainage(ls orb.LineString, elevs []float64, d float64) (orb.Point, float64) {
	chain := Chainage(ls)
	total := chain[len(chain)-1]

	if d <= 0 {
		return ls[0], elevAt(elevs, 0)
	}
	if d >= total {
		return ls[len(ls)-1], elevAt(elevs, len(ls)-1)
	}

	for i := 1; i < len(chain); i++ {
		if chain[i] >= d {
			segLen := chain[i] - chain[i-1]
			t := 0.0
			if segLen > 0 {
				t = (d - chain[i-1]) / segLen
			}
			p := lerpPoint(ls[i-1], ls[i], t)
			z := elevAt(elevs, i-1) + t*(elevAt(elevs, i)-elevAt(elevs, i-1))
			return p, z
		}
	}

	return ls[len(ls)-1], elevAt(elevs, len(ls)-1)
}

// SubLine extracts the sub-linestring between chainages fromM and toM.
// Existing vertices inside the window keep their elevation; the cut endpoints
// are interpolated. The result always has at least 2 points when toM > fromM.
func SubLine(ls orb.LineString, elevs []float64, fromM, toM float64) (orb.LineString, []float64) {
	chain := Chainage(ls)
	total := chain[len(chain)-1]

	if fromM < 0 {
		fromM = 0
	}
	if toM > total {
		toM = total
	}
	if toM <= fromM {
		return nil, nil
	}

	var out orb.LineString
	var outZ []float64

	startP, startZ := PointAtChainage(ls, elevs, fromM)
	out = append(out, startP)
	outZ = append(outZ, startZ)

	for i := 0; i < len(ls); i++ {
		if chain[i] > fromM+1e-9 && chain[i] < toM-1e-9 {
			out = append(out, ls[i])
			outZ = append(outZ, elevAt(elevs, i))
		}
	}

	endP, endZ := PointAtChainage(ls, elevs, toM)
	out = append(out, endP)
	outZ = append(outZ, endZ)

	return out, outZ
}

// ProjectChainage returns the chainage (meters from the start) of the closest
// point on the line to p, plus the distance from p to that closest point in
// meters.
func ProjectChainage(ls orb.LineString, p orb.Point) (chainM, distM float64) {
	bestDist := math.Inf(1)
	bestChain := 0.0
	acc := 0.0

	for i := 0; i < len(ls)-1; i++ {
		segLen := EquirectM(ls[i], ls[i+1])
		t, d := projectOntoSegment(p, ls[i], ls[i+1])
		if d < bestDist {
			bestDist = d
			bestChain = acc + t*segLen
		}
		acc += segLen
	}

	return bestChain, bestDist
}

// projectOntoSegment projects p onto segment ab in a locally-scaled planar
// frame. Returns the parameter t in [0,1] along ab and the distance in
// meters from p to the projection.
func projectOntoSegment(p, a, b orb.Point) (t, distM float64) {
	scale := math.Cos(((a[1] + b[1]) / 2) * deg2rad)

	ax, ay := a[0]*scale, a[1]
	bx, by := b[0]*scale, b[1]
	px, py := p[0]*scale, p[1]

	dx, dy := bx-ax, by-ay
	lenSq := dx*dx + dy*dy
	if lenSq == 0 {
		return 0, EquirectM(p, a)
	}

	t = ((px-ax)*dx + (py-ay)*dy) / lenSq
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	proj := orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
	return t, EquirectM(p, proj)
}

// ElevStats aggregates per-vertex elevations into the trail-level stats
type ElevStats struct {
	GainM float64
	LossM float64
	MinM  float64
	MaxM  float64
	AvgM  float64
}

// ComputeElevStats computes gain/loss/min/max/avg over a vertex elevation
// sequence. An empty sequence yields all zeros.
func ComputeElevStats(elevs []float64) ElevStats {
	if len(elevs) == 0 {
		return ElevStats{}
	}

	stats := ElevStats{MinM: elevs[0], MaxM: elevs[0]}
	sum := 0.0

	for i, z := range elevs {
		sum += z
		if z < stats.MinM {
			stats.MinM = z
		}
		if z > stats.MaxM {
			stats.MaxM = z
		}
		if i > 0 {
			diff := z - elevs[i-1]
			if diff > 0 {
				stats.GainM += diff
			} else {
				stats.LossM += -diff
			}
		}
	}

	stats.AvgM = sum / float64(len(elevs))
	return stats
}

// IsSimple reports whether the linestring has no self-intersections other
// than a shared start/end point (a closed ring is simple).
func IsSimple(ls orb.LineString) bool {
	n := len(ls) - 1
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pts, overlap := SegmentIntersection(ls[i], ls[i+1], ls[j], ls[j+1])
			if overlap {
				return false
			}
			for _, p := range pts {
				if j == i+1 {
					// adjacent segments legitimately share one vertex
					if samePoint(p, ls[j]) {
						continue
					}
					return false
				}
				// closing segment may touch the first vertex
				if i == 0 && j == n-1 && samePoint(p, ls[0]) {
					continue
				}
				return false
			}
		}
	}
	return true
}

// Reverse returns a reversed copy of the line and its elevations
func Reverse(ls orb.LineString, elevs []float64) (orb.LineString, []float64) {
	n := len(ls)
	out := make(orb.LineString, n)
	outZ := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = ls[n-1-i]
		if i < len(elevs) {
			outZ[i] = elevs[n-1-i]
		}
	}
	return out, outZ
}

func lerpPoint(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
}

func elevAt(elevs []float64, i int) float64 {
	if i < 0 || i >= len(elevs) {
		return 0
	}
	return elevs[i]
}

func samePoint(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < 1e-12 && math.Abs(a[1]-b[1]) < 1e-12
}
