package pipeline

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/models"
)

func trail(id, name string, line orb.LineString) models.Trail {
	elevs := make([]float64, len(line))
	for i := range elevs {
		elevs[i] = 1000
	}
	return models.Trail{ID: id, Name: name, Region: "test", Geometry: line, Elevations: elevs}
}

// crossInput is the canonical two-trail cross: a horizontal trail crossed by
// a vertical one at (-105.25, 40.00)
func crossInput() []models.Trail {
	return []models.Trail{
		trail("t1", "Horizontal", orb.LineString{
			{-105.30, 40.00}, {-105.20, 40.00}, {-105.10, 40.00},
		}),
		trail("t2", "Vertical", orb.LineString{
			{-105.25, 39.95}, {-105.25, 40.00}, {-105.25, 40.05},
		}),
	}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Region = "test"
	cfg.MaxSingleEdgeKm = 20.0
	return cfg
}

func TestPipelineCross(t *testing.T) {
	result, err := New(testConfig()).Run(context.Background(), crossInput(), nil)
	require.NoError(t, err)

	t.Run("Counts match the cross topology", func(t *testing.T) {
		assert.Len(t, result.CleanTrails, 2)
		assert.Len(t, result.Segments, 4)
		assert.Len(t, result.Graph.Vertices, 5)
		assert.Len(t, result.Graph.Edges, 4)
		assert.Len(t, result.Components, 1)
	})

	t.Run("Intersection vertex has cnt=4", func(t *testing.T) {
		center := result.Graph.NearestVertex(orb.Point{-105.25, 40.00}, 1)
		require.NotNil(t, center)
		assert.Equal(t, 4, center.Cnt)
	})

	t.Run("Vertical halves are ~5.56 km", func(t *testing.T) {
		count := 0
		for _, id := range result.Graph.EdgeIDs() {
			e := result.Graph.Edges[id]
			if e.TrailName == "Vertical" {
				assert.InDelta(t, 5.56, e.LengthKm, 0.01)
				count++
			}
		}
		assert.Equal(t, 2, count)
	})

	t.Run("Summary tracks every stage", func(t *testing.T) {
		s := result.Summary
		assert.Equal(t, 2, s.TrailsIn)
		assert.Equal(t, 2, s.TrailsClean)
		assert.Equal(t, 4, s.Segments)
		assert.Equal(t, 5, s.Vertices)
		assert.Equal(t, 4, s.Edges)
		assert.Equal(t, 1, s.Components)
		assert.Len(t, s.StageTimings, 5)
	})
}

func TestPipelineDisjoint(t *testing.T) {
	input := []models.Trail{
		trail("t1", "Horizontal", orb.LineString{
			{-105.30, 40.00}, {-105.20, 40.00}, {-105.10, 40.00},
		}),
		trail("t3", "Detached", orb.LineString{
			{-105.10, 40.05}, {-105.05, 40.05},
		}),
	}

	result, err := New(testConfig()).Run(context.Background(), input, nil)
	require.NoError(t, err)

	assert.Len(t, result.Components, 2)
	assert.Len(t, result.Graph.Vertices, 4)
	assert.Len(t, result.Graph.Edges, 2)
}

func TestPipelinePointToPointRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.IncludeP2PInOutput = true

	patterns := []models.RoutePattern{{
		PatternName:          "p2p-10k",
		TargetDistanceKm:     10.0,
		TargetElevationGainM: 0,
		Shape:                models.ShapePointToPoint,
		TolerancePercent:     []float64{20},
	}}

	result, err := New(cfg).Run(context.Background(), crossInput(), patterns)
	require.NoError(t, err)
	require.NotEmpty(t, result.Routes)

	for _, r := range result.Routes {
		assert.Equal(t, models.ShapePointToPoint, r.Shape)
		assert.InDelta(t, 10.0, r.LengthKm, 2.0) // within the 20% window
		assert.GreaterOrEqual(t, r.RouteScore, 0.0)
		assert.LessOrEqual(t, r.RouteScore, 1.0)

		// realized length is the sum of edge lengths along the path
		var sum float64
		for _, eid := range r.EdgeIDs {
			sum += result.Graph.Edges[eid].LengthKm
		}
		assert.InDelta(t, sum, r.LengthKm, 1e-9)
	}
}

func TestPipelineDeterminism(t *testing.T) {
	cfg := testConfig()
	cfg.IncludeP2PInOutput = true

	patterns := []models.RoutePattern{{
		PatternName:      "p2p-10k",
		TargetDistanceKm: 10.0,
		Shape:            models.ShapePointToPoint,
		TolerancePercent: []float64{20},
	}}

	run := func() *Result {
		r, err := New(cfg).Run(context.Background(), crossInput(), patterns)
		require.NoError(t, err)
		return r
	}

	a := run()
	b := run()

	require.Equal(t, a.Graph.VertexIDs(), b.Graph.VertexIDs())
	require.Equal(t, a.Graph.EdgeIDs(), b.Graph.EdgeIDs())
	for _, id := range a.Graph.VertexIDs() {
		assert.Equal(t, a.Graph.Vertices[id].Point, b.Graph.Vertices[id].Point)
	}

	require.Equal(t, len(a.Routes), len(b.Routes))
	for i := range a.Routes {
		assert.Equal(t, a.Routes[i].UUID, b.Routes[i].UUID)
		assert.Equal(t, a.Routes[i].EdgeIDs, b.Routes[i].EdgeIDs)
	}
}

func TestPipelineMultiLineStringInput(t *testing.T) {
	input := []models.Trail{
		{
			ID:     "m1",
			Name:   "X",
			Region: "test",
			MultiParts: []orb.LineString{
				{{-105.30, 40.00}, {-105.29, 40.00}},
				{{-105.20, 40.05}, {-105.19, 40.05}},
			},
			MultiElevs: [][]float64{{1000, 1000}, {1000, 1000}},
		},
	}

	result, err := New(testConfig()).Run(context.Background(), input, nil)
	require.NoError(t, err)

	require.Len(t, result.CleanTrails, 2)
	names := []string{result.CleanTrails[0].Name, result.CleanTrails[1].Name}
	assert.Contains(t, names, "X")
	assert.Contains(t, names, "X (Segment 2)")

	require.NotEmpty(t, result.Summary.Passes)
	assert.Equal(t, 1, result.Summary.Passes[0].Flattened)
}

func TestPipelineBadInputResilience(t *testing.T) {
	input := append(crossInput(),
		trail("bad1", "Lonely point", orb.LineString{{-105.00, 40.00}}),
	)

	result, err := New(testConfig()).Run(context.Background(), input, nil)
	require.NoError(t, err)

	assert.Len(t, result.CleanTrails, 2)
	assert.Positive(t, result.Summary.ErrorCounts[models.ErrInvalidInput])
	assert.Contains(t, result.Summary.SampleIDs[models.ErrInvalidInput], "bad1")
}

func TestPipelineEmptyInput(t *testing.T) {
	_, err := New(testConfig()).Run(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestPipelineInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.ToleranceLadderPercent = []float64{50, 20} // must be increasing

	_, err := New(cfg).Run(context.Background(), crossInput(), nil)
	assert.Error(t, err)
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := New(testConfig()).Run(ctx, crossInput(), nil)
	assert.Error(t, err)
	if result != nil && result.Summary != nil {
		assert.True(t, result.Summary.Cancelled)
	}
}

func TestDefaultPatterns(t *testing.T) {
	patterns := DefaultPatterns()
	require.NotEmpty(t, patterns)

	shapes := map[models.RouteShape]bool{}
	for _, p := range patterns {
		assert.NotEmpty(t, p.PatternName)
		assert.Positive(t, p.TargetDistanceKm)
		assert.NotEmpty(t, p.TolerancePercent)
		shapes[p.Shape] = true
	}

	assert.True(t, shapes[models.ShapeLoop])
	assert.True(t, shapes[models.ShapeOutAndBack])
	assert.True(t, shapes[models.ShapePointToPoint])
	assert.True(t, shapes[models.ShapeLollipop])
}
