package geometry

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Splitter splits cleaned trails at their pairwise true spatial
// intersections to produce segments
type Splitter struct {
	IntersectionToleranceM float64
	Region                 string
}

// NewSplitter creates a splitter with the given intersection tolerance
func NewSplitter(toleranceM float64, region string) *Splitter {
	return &Splitter{IntersectionToleranceM: toleranceM, Region: region}
}

// Split computes the split points of every trail against every bbox-adjacent
// other trail and emits the resulting sub-linestrings as segments. A trail
// with no intersections is still emitted as a single segment.
func (s *Splitter) Split(ctx context.Context, trails []models.Trail, summary *models.RunSummary) ([]models.Segment, error) {
	index := newBoundIndex(trails, s.IntersectionToleranceM)

	// split points per trail index
	splitPoints := make([][]orb.Point, len(trails))
	pairsChecked := 0

	for i := range trails {
		select {
		case <-ctx.Done():
			summary.Cancelled = true
			summary.Record(models.ErrCancelled, "")
			return nil, ctx.Err()
		default:
		}

		for _, j := range index.candidates(i) {
			if j <= i {
				continue
			}
			pairsChecked++

			pts := intersectPair(trails[i].Geometry, trails[j].Geometry)
			if pts == nil {
				continue
			}
			splitPoints[i] = append(splitPoints[i], pts...)
			splitPoints[j] = append(splitPoints[j], pts...)
		}
	}

	log.Printf("Splitter: checked %d candidate pairs", pairsChecked)

	var segments []models.Segment
	for i, t := range trails {
		pts := geo.ClusterPoints(dedupeNear(splitPoints[i], s.IntersectionToleranceM), s.IntersectionToleranceM)
		segs := s.splitTrail(t, pts)
		segments = append(segments, segs...)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("splitting produced no segments from %d trails", len(trails))
	}

	summary.Segments = len(segments)
	return segments, nil
}

// intersectPair returns the intersection points of two trail geometries,
// including the endpoints of any collinear overlap. Panics from degenerate
// geometry are converted to a nil result; the caller emits both trails
// unsplit at the problematic location.
func intersectPair(a, b orb.LineString) (pts []orb.Point) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: intersection computation failed: %v", r)
			pts = nil
		}
	}()
	return geo.LineIntersections(a, b)
}

// splitTrail cuts one trail at the given points and emits ordered segments.
// Split points are mapped to chainages by projection; points that project
// onto (or within tolerance of) an existing vertex reuse that vertex.
func (s *Splitter) splitTrail(t models.Trail, pts []orb.Point) []models.Segment {
	total := geo.LineLengthM(t.Geometry)
	minCut := math.Max(s.IntersectionToleranceM, minPieceM)

	var cuts []float64
	for _, pt := range pts {
		chainM, distM := geo.ProjectChainage(t.Geometry, pt)
		if distM > s.IntersectionToleranceM+minPieceM {
			continue // point does not actually lie on this trail
		}
		if chainM < minCut || chainM > total-minCut {
			continue // endpoint touch, nothing to cut
		}
		cuts = append(cuts, chainM)
	}
	sort.Float64s(cuts)

	var merged []float64
	for _, d := range cuts {
		if len(merged) == 0 || d-merged[len(merged)-1] > minCut {
			merged = append(merged, d)
		}
	}

	bounds := append([]float64{0}, merged...)
	bounds = append(bounds, total)

	var out []models.Segment
	for i := 0; i < len(bounds)-1; i++ {
		line, elevs := geo.SubLine(t.Geometry, t.Elevations, bounds[i], bounds[i+1])
		if len(line) < 2 {
			continue
		}
		out = append(out, s.newSegment(t, line, elevs, len(out)))
	}

	if len(out) == 0 {
		out = append(out, s.newSegment(t, t.Geometry, t.Elevations, 0))
	}

	return out
}

// newSegment builds a segment from a sub-linestring with recomputed length
// and elevation stats
func (s *Splitter) newSegment(t models.Trail, line orb.LineString, elevs []float64, index int) models.Segment {
	stats := geo.ComputeElevStats(elevs)

	seg := models.Segment{
		Trail:         t,
		ParentTrailID: t.ID,
		SegmentIndex:  index,
	}
	seg.ID = fmt.Sprintf("%s_%d", t.ID, index)
	seg.Region = s.Region
	seg.Geometry = line
	seg.Elevations = elevs
	seg.LengthKm = geo.LineLengthKm(line)
	seg.MultiParts = nil
	seg.MultiElevs = nil

	gain, loss := stats.GainM, stats.LossM
	minE, maxE, avgE := stats.MinM, stats.MaxM, stats.AvgM
	seg.ElevationGainM = &gain
	seg.ElevationLossM = &loss
	seg.MinElevationM = &minE
	seg.MaxElevationM = &maxE
	seg.AvgElevationM = &avgE

	return seg
}

// dedupeNear removes points within toleranceM of an earlier point
func dedupeNear(pts []orb.Point, toleranceM float64) []orb.Point {
	if toleranceM <= 0 {
		toleranceM = 1e-6
	}
	var out []orb.Point
	for _, p := range pts {
		dup := false
		for _, q := range out {
			if geo.EquirectM(p, q) <= toleranceM {
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

// boundIndex is a uniform grid over padded trail bounding boxes, used to
// find candidate intersection pairs without the quadratic scan
type boundIndex struct {
	cellDeg float64
	cells   map[[2]int][]int
	bounds  []orb.Bound
}

func newBoundIndex(trails []models.Trail, padM float64) *boundIndex {
	idx := &boundIndex{
		cells:  make(map[[2]int][]int),
		bounds: make([]orb.Bound, len(trails)),
	}

	// cell size: the largest padded bbox edge, floored at ~100 m
	maxEdge := 0.001
	for i, t := range trails {
		b := geo.PadBound(t.BBox(), padM)
		idx.bounds[i] = b
		if w := b.Max[0] - b.Min[0]; w > maxEdge {
			maxEdge = w
		}
		if h := b.Max[1] - b.Min[1]; h > maxEdge {
			maxEdge = h
		}
	}
	idx.cellDeg = maxEdge

	for i, b := range idx.bounds {
		for _, cell := range idx.cellRange(b) {
			idx.cells[cell] = append(idx.cells[cell], i)
		}
	}

	return idx
}

func (idx *boundIndex) cellRange(b orb.Bound) [][2]int {
	x0 := int(math.Floor(b.Min[0] / idx.cellDeg))
	x1 := int(math.Floor(b.Max[0] / idx.cellDeg))
	y0 := int(math.Floor(b.Min[1] / idx.cellDeg))
	y1 := int(math.Floor(b.Max[1] / idx.cellDeg))

	var out [][2]int
	for x := x0; x <= x1; x++ {
		for y := y0; y <= y1; y++ {
			out = append(out, [2]int{x, y})
		}
	}
	return out
}

// candidates returns indices of trails whose padded bbox overlaps trail i's
func (idx *boundIndex) candidates(i int) []int {
	seen := make(map[int]bool)
	var out []int

	for _, cell := range idx.cellRange(idx.bounds[i]) {
		for _, j := range idx.cells[cell] {
			if j == i || seen[j] {
				continue
			}
			seen[j] = true
			if idx.bounds[i].Intersects(idx.bounds[j]) {
				out = append(out, j)
			}
		}
	}

	sort.Ints(out)
	return out
}
