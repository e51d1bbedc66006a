package routing

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// starGraph is a center vertex with four leaves
func starGraph() (*graph.Graph, models.Component) {
	g := graph.New()
	g.AddVertex(&models.Vertex{ID: 1, Point: orb.Point{-105.26, 40.00}})
	g.AddVertex(&models.Vertex{ID: 2, Point: orb.Point{-105.25, 39.99}})
	g.AddVertex(&models.Vertex{ID: 3, Point: orb.Point{-105.25, 40.00}}) // center
	g.AddVertex(&models.Vertex{ID: 4, Point: orb.Point{-105.25, 40.01}})
	g.AddVertex(&models.Vertex{ID: 5, Point: orb.Point{-105.24, 40.00}})
	testEdge(g, 1, 3, 1, 1, 0, 0)
	testEdge(g, 2, 3, 2, 1, 0, 0)
	testEdge(g, 3, 3, 4, 1, 0, 0)
	testEdge(g, 4, 3, 5, 1, 0, 0)
	g.Finalize()

	var pts orb.MultiPoint
	var ids []int64
	for _, id := range g.VertexIDs() {
		ids = append(ids, id)
		pts = append(pts, g.Vertices[id].Point)
	}
	comp := models.Component{ID: 1, VertexIDs: ids, EdgeCount: 4, BBox: pts.Bound()}
	for _, id := range ids {
		g.Vertices[id].ComponentID = 1
	}
	return g, comp
}

func TestSelectEndpointsAutomatic(t *testing.T) {
	g, comp := starGraph()
	cfg := config.Default()
	summary := models.NewRunSummary("test")

	t.Run("Degree-1 vertices only", func(t *testing.T) {
		endpoints := SelectEndpoints(g, comp, cfg, summary)

		assert.Len(t, endpoints, 4)
		assert.NotContains(t, endpoints, int64(3))
		for _, id := range endpoints {
			assert.Equal(t, 1, g.Vertices[id].Cnt)
		}
	})

	t.Run("Cap limits the selection", func(t *testing.T) {
		capped := config.Default()
		capped.MaxEndpointsPerComponent = 2

		endpoints := SelectEndpoints(g, comp, capped, summary)
		assert.Len(t, endpoints, 2)
	})

	t.Run("Selection is deterministic", func(t *testing.T) {
		a := SelectEndpoints(g, comp, cfg, summary)
		b := SelectEndpoints(g, comp, cfg, summary)
		assert.Equal(t, a, b)
	})
}

func TestSelectEndpointsManual(t *testing.T) {
	g, comp := starGraph()
	summary := models.NewRunSummary("test")

	t.Run("Trailhead snaps to the nearest vertex within tolerance", func(t *testing.T) {
		cfg := config.Default()
		cfg.EndpointSelection = config.EndpointManual
		cfg.Trailheads = []models.Trailhead{
			{Name: "West lot", Lat: 40.0, Lng: -105.26001, ToleranceM: 50},
		}

		endpoints := SelectEndpoints(g, comp, cfg, summary)
		require.Len(t, endpoints, 1)
		assert.Equal(t, int64(1), endpoints[0])
	})

	t.Run("Unmatched trailhead is reported, not fatal", func(t *testing.T) {
		cfg := config.Default()
		cfg.EndpointSelection = config.EndpointManual
		cfg.Trailheads = []models.Trailhead{
			{Name: "Far away", Lat: 41.0, Lng: -106.0, ToleranceM: 50},
			{Name: "East lot", Lat: 40.0, Lng: -105.24, ToleranceM: 50},
		}

		endpoints := SelectEndpoints(g, comp, cfg, summary)
		require.Len(t, endpoints, 1)
		assert.Equal(t, int64(5), endpoints[0])
		assert.Contains(t, summary.SampleIDs[models.ErrInvalidInput], "Far away")
	})

	t.Run("Duplicate matches collapse", func(t *testing.T) {
		cfg := config.Default()
		cfg.EndpointSelection = config.EndpointManual
		cfg.Trailheads = []models.Trailhead{
			{Name: "A", Lat: 40.0, Lng: -105.26, ToleranceM: 50},
			{Name: "B", Lat: 40.0001, Lng: -105.26, ToleranceM: 50},
		}

		endpoints := SelectEndpoints(g, comp, cfg, summary)
		assert.Len(t, endpoints, 1)
	})
}
