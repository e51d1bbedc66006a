package graph

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

func TestNearestVertexMetricNotDegreeSpace(t *testing.T) {
	// at latitude 70 a degree of longitude is ~3x shorter in meters than a
	// degree of latitude, so degree-space ranking and metric ranking
	// disagree: the true nearest sits further away in degrees than six
	// decoys stacked on the latitude axis
	g := New()
	query := orb.Point{10.0, 70.0}

	// decoys: 33-56 m away, each only 0.0003-0.0005 degrees from the query
	offsets := []float64{0.0003, -0.0003, 0.0004, -0.0004, 0.0005, -0.0005}
	for i, off := range offsets {
		g.AddVertex(&models.Vertex{ID: int64(i + 1), Point: orb.Point{query[0], query[1] + off}})
	}
	// true nearest: ~30 m away but 0.0008 degrees out on the longitude axis
	nearest := &models.Vertex{ID: 7, Point: orb.Point{query[0] + 0.0008, query[1]}}
	g.AddVertex(nearest)
	g.Finalize()

	got := g.NearestVertex(query, 100)
	require.NotNil(t, got)
	assert.Equal(t, int64(7), got.ID)

	// sanity: it really is the metric winner
	for _, id := range g.VertexIDs() {
		if id == got.ID {
			continue
		}
		assert.Less(t,
			geo.EquirectM(query, got.Point),
			geo.EquirectM(query, g.Vertices[id].Point))
	}
}

func TestNearestVertexTolerance(t *testing.T) {
	g := New()
	g.AddVertex(&models.Vertex{ID: 1, Point: orb.Point{-105.25, 40.0}})
	g.Finalize()

	// ~111 m north of the only vertex
	probe := orb.Point{-105.25, 40.001}

	assert.Nil(t, g.NearestVertex(probe, 50))
	require.NotNil(t, g.NearestVertex(probe, 150))
	assert.Nil(t, g.NearestVertex(probe, 0))
}
