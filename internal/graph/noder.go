package graph

import (
	"context"
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Noder planarizes a segment set into vertex/edge topology. Segment
// endpoints within TopologyToleranceM collapse to a single vertex; vertex
// ids are dense 1..N in (x, y) order, edge ids dense 1..M in
// (min endpoint, max endpoint, segment index) order.
type Noder struct {
	TopologyToleranceM float64
	MaxEdgeLengthKm    float64
}

// NewNoder creates a noder with the given snapping tolerance and edge
// length guard
func NewNoder(toleranceM, maxEdgeLengthKm float64) *Noder {
	if maxEdgeLengthKm <= 0 {
		maxEdgeLengthKm = 50.0
	}
	return &Noder{TopologyToleranceM: toleranceM, MaxEdgeLengthKm: maxEdgeLengthKm}
}

// Build produces the routing graph from the segment set
func (n *Noder) Build(ctx context.Context, segments []models.Segment, summary *models.RunSummary) (*Graph, error) {
	select {
	case <-ctx.Done():
		summary.Cancelled = true
		summary.Record(models.ErrCancelled, "")
		return nil, ctx.Err()
	default:
	}

	// A segment whose endpoints would snap together is a closed loop; split
	// it at its half chainage so it yields two proper edges instead of a
	// degenerate self-loop.
	segments = n.splitClosedLoops(segments)

	// 1. Candidate vertex points: every segment start and end
	candidates := make([]vertexCandidate, 0, len(segments)*2)
	for _, s := range segments {
		candidates = append(candidates,
			vertexCandidate{point: s.Geometry[0], elev: elevOf(s.Elevations, 0)},
			vertexCandidate{point: s.Geometry[len(s.Geometry)-1], elev: elevOf(s.Elevations, len(s.Geometry)-1)},
		)
	}

	// 2. Cluster candidates within tolerance: union-find over a grid index
	clusters := n.cluster(candidates)

	// 3. Dense vertex ids in (x, y) order
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].point[0] != clusters[j].point[0] {
			return clusters[i].point[0] < clusters[j].point[0]
		}
		return clusters[i].point[1] < clusters[j].point[1]
	})

	g := New()
	for i, c := range clusters {
		g.AddVertex(&models.Vertex{
			ID:         int64(i + 1),
			Point:      c.point,
			ElevationM: c.elev,
		})
	}

	// 4. Resolve each segment's endpoints to vertex ids
	locator := newClusterLocator(clusters, n.TopologyToleranceM)

	type pendingEdge struct {
		source, target int64
		seg            models.Segment
	}
	var pending []pendingEdge
	dropped := 0

	for _, s := range segments {
		src := locator.vertexFor(s.Geometry[0])
		dst := locator.vertexFor(s.Geometry[len(s.Geometry)-1])

		if src == dst {
			// degenerate after snapping: loop pre-split should have caught
			// real loops, so what remains is sub-tolerance linework
			dropped++
			summary.Record(models.ErrInvalidInput, s.ID)
			continue
		}

		lengthKm := geo.LineLengthKm(s.Geometry)
		if lengthKm <= 0 || math.IsNaN(lengthKm) || math.IsInf(lengthKm, 0) {
			dropped++
			summary.Record(models.ErrInvalidInput, s.ID)
			log.Printf("Warning: dropping edge with non-positive length (segment %s)", s.ID)
			continue
		}
		if lengthKm > n.MaxEdgeLengthKm {
			dropped++
			summary.Record(models.ErrInvalidInput, s.ID)
			log.Printf("Warning: dropping edge longer than %.1f km (segment %s, %.1f km)",
				n.MaxEdgeLengthKm, s.ID, lengthKm)
			continue
		}

		pending = append(pending, pendingEdge{source: src, target: dst, seg: s})
	}

	// 6. Dense edge ids in deterministic order
	sort.Slice(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		aMin, aMax := minMax(a.source, a.target)
		bMin, bMax := minMax(b.source, b.target)
		if aMin != bMin {
			return aMin < bMin
		}
		if aMax != bMax {
			return aMax < bMax
		}
		if a.seg.SegmentIndex != b.seg.SegmentIndex {
			return a.seg.SegmentIndex < b.seg.SegmentIndex
		}
		return a.seg.ID < b.seg.ID
	})

	for i, pe := range pending {
		s := pe.seg
		stats := geo.ComputeElevStats(s.Elevations)

		g.AddEdge(&models.Edge{
			ID:             int64(i + 1),
			Source:         pe.source,
			Target:         pe.target,
			Geometry:       s.Geometry,
			Elevations:     s.Elevations,
			LengthKm:       geo.LineLengthKm(s.Geometry),
			ElevationGainM: stats.GainM,
			ElevationLossM: stats.LossM,
			Cost:           geo.LineLengthKm(s.Geometry),
			ReverseCost:    geo.LineLengthKm(s.Geometry),
			SegmentID:      s.ID,
			ParentTrailID:  s.ParentTrailID,
			TrailName:      s.Name,
		})
	}

	// 7. cnt(v) = incident edge count
	g.recountDegrees()
	g.buildTree()

	summary.Vertices = len(g.Vertices)
	summary.Edges = len(g.Edges)
	summary.DroppedEdges = dropped

	log.Printf("Noder: %d vertices, %d edges (%d dropped)", len(g.Vertices), len(g.Edges), dropped)
	return g, nil
}

// splitClosedLoops splits any segment whose endpoints lie within the
// topology tolerance of each other (and whose length is meaningful) at its
// half chainage, producing two open sub-segments with a shared midpoint.
func (n *Noder) splitClosedLoops(segments []models.Segment) []models.Segment {
	var out []models.Segment

	for _, s := range segments {
		start := s.Geometry[0]
		end := s.Geometry[len(s.Geometry)-1]
		lengthM := geo.LineLengthM(s.Geometry)

		if geo.EquirectM(start, end) > n.TopologyToleranceM || lengthM < 4*math.Max(n.TopologyToleranceM, 1) {
			out = append(out, s)
			continue
		}

		half := lengthM / 2
		firstLine, firstZ := geo.SubLine(s.Geometry, s.Elevations, 0, half)
		secondLine, secondZ := geo.SubLine(s.Geometry, s.Elevations, half, lengthM)

		first := s
		first.ID = s.ID + "a"
		first.Geometry = firstLine
		first.Elevations = firstZ
		first.LengthKm = geo.LineLengthKm(firstLine)

		second := s
		second.ID = s.ID + "b"
		second.SegmentIndex = s.SegmentIndex + 1
		second.Geometry = secondLine
		second.Elevations = secondZ
		second.LengthKm = geo.LineLengthKm(secondLine)

		out = append(out, first, second)
	}

	return out
}

// vertexCandidate is a raw segment endpoint prior to snapping
type vertexCandidate struct {
	point orb.Point
	elev  float64
}

// clusterRep is a snapped vertex candidate cluster
type clusterRep struct {
	point orb.Point
	elev  float64
}

// cluster groups candidate points within the tolerance using union-find over
// a uniform grid; the representative is the centroid, elevation the mean
func (n *Noder) cluster(candidates []vertexCandidate) []clusterRep {
	if len(candidates) == 0 {
		return nil
	}

	parent := make([]int, len(candidates))
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

	tol := n.TopologyToleranceM
	if tol <= 0 {
		tol = 1e-6
	}

	midLat := candidates[0].point[1]
	cellDeg := geo.MetersToDegrees(tol, midLat)
	if cellDeg <= 0 {
		cellDeg = 1e-9
	}

	grid := make(map[[2]int][]int)
	cellOf := func(p orb.Point) [2]int {
		return [2]int{int(math.Floor(p[0] / cellDeg)), int(math.Floor(p[1] / cellDeg))}
	}

	for i, c := range candidates {
		grid[cellOf(c.point)] = append(grid[cellOf(c.point)], i)
	}

	for i, c := range candidates {
		cell := cellOf(c.point)
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, j := range grid[[2]int{cell[0] + dx, cell[1] + dy}] {
					if j <= i {
						continue
					}
					if geo.EquirectM(c.point, candidates[j].point) <= tol {
						parent[find(i)] = find(j)
					}
				}
			}
		}
	}

	type agg struct {
		x, y, z float64
		n       int
	}
	sums := make(map[int]*agg)
	for i, c := range candidates {
		root := find(i)
		a, ok := sums[root]
		if !ok {
			a = &agg{}
			sums[root] = a
		}
		a.x += c.point[0]
		a.y += c.point[1]
		a.z += c.elev
		a.n++
	}

	out := make([]clusterRep, 0, len(sums))
	for _, a := range sums {
		out = append(out, clusterRep{
			point: orb.Point{a.x / float64(a.n), a.y / float64(a.n)},
			elev:  a.z / float64(a.n),
		})
	}
	return out
}

// clusterLocator resolves a point to the id of its containing cluster via
// the same grid geometry the clustering used
type clusterLocator struct {
	cellDeg float64
	tol     float64
	grid    map[[2]int][]int64
	points  map[int64]orb.Point
}

func newClusterLocator(clusters []clusterRep, toleranceM float64) *clusterLocator {
	tol := toleranceM
	if tol <= 0 {
		tol = 1e-6
	}

	midLat := 0.0
	if len(clusters) > 0 {
		midLat = clusters[0].point[1]
	}
	cellDeg := geo.MetersToDegrees(tol*2+1e-9, midLat)

	loc := &clusterLocator{
		cellDeg: cellDeg,
		tol:     tol,
		grid:    make(map[[2]int][]int64),
		points:  make(map[int64]orb.Point),
	}

	for i, c := range clusters {
		id := int64(i + 1)
		loc.points[id] = c.point
		cell := loc.cellOf(c.point)
		loc.grid[cell] = append(loc.grid[cell], id)
	}

	return loc
}

func (l *clusterLocator) cellOf(p orb.Point) [2]int {
	return [2]int{int(math.Floor(p[0] / l.cellDeg)), int(math.Floor(p[1] / l.cellDeg))}
}

// vertexFor returns the nearest cluster vertex id to p. Cluster centroids
// can drift up to the tolerance away from their members, so the search
// covers the 3x3 cell neighborhood and picks the closest.
func (l *clusterLocator) vertexFor(p orb.Point) int64 {
	cell := l.cellOf(p)
	best := int64(0)
	bestDist := math.Inf(1)

	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, id := range l.grid[[2]int{cell[0] + dx, cell[1] + dy}] {
				d := geo.EquirectM(p, l.points[id])
				if d < bestDist {
					bestDist = d
					best = id
				}
			}
		}
	}

	return best
}

func minMax(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

func elevOf(elevs []float64, i int) float64 {
	if i < 0 || i >= len(elevs) {
		return 0
	}
	return elevs[i]
}
