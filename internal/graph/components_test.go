package graph

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/models"
)

func TestFindComponentsSingle(t *testing.T) {
	summary := models.NewRunSummary("test")
	g, err := NewNoder(0.1, 50).Build(context.Background(), crossSegments(), summary)
	require.NoError(t, err)

	comps := FindComponents(g)

	require.Len(t, comps, 1)
	assert.Equal(t, int64(1), comps[0].ID)
	assert.Len(t, comps[0].VertexIDs, 5)
	assert.Equal(t, 4, comps[0].EdgeCount)

	for _, id := range g.VertexIDs() {
		assert.Equal(t, int64(1), g.Vertices[id].ComponentID)
	}
}

func TestFindComponentsDisjoint(t *testing.T) {
	segments := []models.Segment{
		segment("t1_0", "One", 0, orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}, {-105.10, 40.00}}),
		segment("t3_0", "Three", 0, orb.LineString{{-105.10, 40.05}, {-105.05, 40.05}}),
	}

	summary := models.NewRunSummary("test")
	g, err := NewNoder(0.1, 50).Build(context.Background(), segments, summary)
	require.NoError(t, err)

	comps := FindComponents(g)

	require.Len(t, comps, 2)
	assert.Len(t, comps[0].VertexIDs, 2)
	assert.Len(t, comps[1].VertexIDs, 2)
	assert.Equal(t, 1, comps[0].EdgeCount)
	assert.Equal(t, 1, comps[1].EdgeCount)

	// labels are dense from 1 and ordered by smallest owned vertex id
	assert.Equal(t, int64(1), comps[0].ID)
	assert.Equal(t, int64(2), comps[1].ID)
	assert.Less(t, comps[0].VertexIDs[0], comps[1].VertexIDs[0])
}

func TestFindComponentsIsolatedVertex(t *testing.T) {
	g := New()
	g.AddVertex(&models.Vertex{ID: 1, Point: orb.Point{-105.3, 40.0}})
	g.AddVertex(&models.Vertex{ID: 2, Point: orb.Point{-105.2, 40.0}})
	g.AddVertex(&models.Vertex{ID: 3, Point: orb.Point{-105.1, 40.0}})
	g.AddEdge(&models.Edge{ID: 1, Source: 1, Target: 2, LengthKm: 1, Cost: 1, ReverseCost: 1})
	g.Finalize()

	comps := FindComponents(g)

	require.Len(t, comps, 2)
	assert.Equal(t, []int64{1, 2}, comps[0].VertexIDs)
	assert.Equal(t, []int64{3}, comps[1].VertexIDs)
	assert.Equal(t, 0, comps[1].EdgeCount)
}

func TestSubgraph(t *testing.T) {
	segments := []models.Segment{
		segment("t1_0", "One", 0, orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
		segment("t3_0", "Three", 0, orb.LineString{{-105.10, 40.05}, {-105.05, 40.05}}),
	}

	summary := models.NewRunSummary("test")
	g, err := NewNoder(0.1, 50).Build(context.Background(), segments, summary)
	require.NoError(t, err)

	comps := FindComponents(g)
	require.Len(t, comps, 2)

	sub := Subgraph(g, comps[0])
	assert.Len(t, sub.Vertices, 2)
	assert.Len(t, sub.Edges, 1)

	for _, id := range sub.VertexIDs() {
		assert.Equal(t, len(sub.Adjacency[id]), sub.Vertices[id].Cnt)
	}
}

func TestComponentStableUnderEdgeOrder(t *testing.T) {
	build := func(reversed bool) []models.Component {
		g := New()
		for i := int64(1); i <= 4; i++ {
			g.AddVertex(&models.Vertex{ID: i, Point: orb.Point{float64(i), 0}})
		}
		edges := []*models.Edge{
			{ID: 1, Source: 1, Target: 2, LengthKm: 1, Cost: 1, ReverseCost: 1},
			{ID: 2, Source: 3, Target: 4, LengthKm: 1, Cost: 1, ReverseCost: 1},
		}
		if reversed {
			edges[0], edges[1] = edges[1], edges[0]
		}
		for _, e := range edges {
			g.AddEdge(e)
		}
		g.Finalize()
		return FindComponents(g)
	}

	a := build(false)
	b := build(true)

	require.Len(t, a, 2)
	require.Len(t, b, 2)
	assert.Equal(t, a[0].VertexIDs, b[0].VertexIDs)
	assert.Equal(t, a[1].VertexIDs, b[1].VertexIDs)
}
