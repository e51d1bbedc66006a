package routing

import (
	"log"
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// SelectEndpoints picks the candidate start/end vertices for one component,
// either from user-supplied trailheads or automatically from degree-1
// boundary vertices. Selection is deterministic.
func SelectEndpoints(g *graph.Graph, comp models.Component, cfg *config.Config, summary *models.RunSummary) []int64 {
	if cfg.EndpointSelection == config.EndpointManual {
		return selectManual(g, comp, cfg.Trailheads, summary)
	}
	return selectAutomatic(g, comp, cfg.MaxEndpointsPerComponent)
}

// selectManual snaps each trailhead to the nearest vertex within its
// tolerance. Entries with no match in this component are reported but do
// not abort.
func selectManual(g *graph.Graph, comp models.Component, trailheads []models.Trailhead, summary *models.RunSummary) []int64 {
	inComp := make(map[int64]bool, len(comp.VertexIDs))
	for _, id := range comp.VertexIDs {
		inComp[id] = true
	}

	var out []int64
	seen := make(map[int64]bool)

	for _, th := range trailheads {
		tol := th.ToleranceM
		if tol <= 0 {
			tol = 50
		}

		v := g.NearestVertex(orb.Point{th.Lng, th.Lat}, tol)
		if v == nil || !inComp[v.ID] {
			log.Printf("Warning: trailhead %q (%.5f, %.5f) matched no vertex within %.0f m",
				th.Name, th.Lat, th.Lng, tol)
			summary.Record(models.ErrInvalidInput, th.Name)
			continue
		}
		if !seen[v.ID] {
			seen[v.ID] = true
			out = append(out, v.ID)
		}
	}

	return out
}

// selectAutomatic takes the component's degree-1 vertices ordered by
// ascending distance to the component envelope boundary, capped at
// maxEndpoints
func selectAutomatic(g *graph.Graph, comp models.Component, maxEndpoints int) []int64 {
	if maxEndpoints <= 0 {
		maxEndpoints = 50
	}

	type scored struct {
		id   int64
		dist float64
	}
	var boundary []scored

	for _, id := range comp.VertexIDs {
		v := g.Vertices[id]
		if v.Cnt != 1 {
			continue
		}
		boundary = append(boundary, scored{id: id, dist: distToEnvelope(v.Point, comp.BBox)})
	}

	sort.Slice(boundary, func(i, j int) bool {
		if boundary[i].dist != boundary[j].dist {
			return boundary[i].dist < boundary[j].dist
		}
		return boundary[i].id < boundary[j].id
	})

	if len(boundary) > maxEndpoints {
		boundary = boundary[:maxEndpoints]
	}

	out := make([]int64, len(boundary))
	for i, s := range boundary {
		out[i] = s.id
	}
	return out
}

// distToEnvelope returns the distance in meters from p to the nearest side
// of the bounding box
func distToEnvelope(p orb.Point, b orb.Bound) float64 {
	left := geo.EquirectM(p, orb.Point{b.Min[0], p[1]})
	right := geo.EquirectM(p, orb.Point{b.Max[0], p[1]})
	bottom := geo.EquirectM(p, orb.Point{p[0], b.Min[1]})
	top := geo.EquirectM(p, orb.Point{p[0], b.Max[1]})

	return math.Min(math.Min(left, right), math.Min(bottom, top))
}
