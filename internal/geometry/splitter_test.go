package geometry

import (
	"context"
	"sort"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

func crossTrails() []models.Trail {
	horizontal := simpleTrail("t1", "Horizontal", orb.LineString{
		{-105.30, 40.00}, {-105.20, 40.00}, {-105.10, 40.00},
	})
	vertical := simpleTrail("t2", "Vertical", orb.LineString{
		{-105.25, 39.95}, {-105.25, 40.00}, {-105.25, 40.05},
	})
	return []models.Trail{horizontal, vertical}
}

func TestSplitterCross(t *testing.T) {
	summary := models.NewRunSummary("test")
	segments, err := NewSplitter(2.0, "test").Split(context.Background(), crossTrails(), summary)
	require.NoError(t, err)

	// each trail splits in two at (-105.25, 40.00)
	assert.Len(t, segments, 4)

	byParent := map[string][]models.Segment{}
	for _, s := range segments {
		byParent[s.ParentTrailID] = append(byParent[s.ParentTrailID], s)
	}
	require.Len(t, byParent["t1"], 2)
	require.Len(t, byParent["t2"], 2)

	t.Run("Split point is inserted into both trails", func(t *testing.T) {
		for _, segs := range byParent {
			sort.Slice(segs, func(i, j int) bool { return segs[i].SegmentIndex < segs[j].SegmentIndex })
			first, second := segs[0], segs[1]

			end := first.Geometry[len(first.Geometry)-1]
			assert.InDelta(t, -105.25, end[0], 1e-6)
			assert.InDelta(t, 40.00, end[1], 1e-6)
			assert.Equal(t, end, second.Geometry[0])
		}
	})

	t.Run("Segment ids are unique and indexed", func(t *testing.T) {
		seen := map[string]bool{}
		for _, s := range segments {
			assert.False(t, seen[s.ID])
			seen[s.ID] = true
		}
	})

	t.Run("Elevation is interpolated at the split point", func(t *testing.T) {
		for _, segs := range byParent {
			for _, s := range segs {
				for _, z := range s.Elevations {
					assert.InDelta(t, 1000, z, 0.001)
				}
			}
		}
	})

	t.Run("Lengths are recomputed per segment", func(t *testing.T) {
		var total float64
		for _, s := range segments {
			assert.Greater(t, s.LengthKm, 0.0)
			total += s.LengthKm
		}
		// sum of pieces equals sum of inputs
		inputs := crossTrails()
		expected := geo.LineLengthKm(inputs[0].Geometry) + geo.LineLengthKm(inputs[1].Geometry)
		assert.InDelta(t, expected, total, 0.01)
	})
}

func TestSplitterNoIntersection(t *testing.T) {
	trails := []models.Trail{
		simpleTrail("t1", "Horizontal", orb.LineString{
			{-105.30, 40.00}, {-105.20, 40.00}, {-105.10, 40.00},
		}),
		simpleTrail("t3", "Detached", orb.LineString{
			{-105.10, 40.05}, {-105.05, 40.05},
		}),
	}

	summary := models.NewRunSummary("test")
	segments, err := NewSplitter(2.0, "test").Split(context.Background(), trails, summary)
	require.NoError(t, err)

	require.Len(t, segments, 2)
	for _, s := range segments {
		assert.Equal(t, 0, s.SegmentIndex)
	}
}

func TestSplitterSharedEndpoint(t *testing.T) {
	// T-intersection by endpoint: no interior split point exists
	trails := []models.Trail{
		simpleTrail("t1", "Main", orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
		simpleTrail("t2", "Branch", orb.LineString{{-105.20, 40.00}, {-105.20, 40.05}}),
	}

	summary := models.NewRunSummary("test")
	segments, err := NewSplitter(2.0, "test").Split(context.Background(), trails, summary)
	require.NoError(t, err)

	assert.Len(t, segments, 2)
}

func TestSplitterIntersectionAtSharedVertex(t *testing.T) {
	// both trails carry a vertex exactly at the crossing: the split reuses it
	trails := []models.Trail{
		simpleTrail("t1", "Horizontal", orb.LineString{
			{-105.30, 40.00}, {-105.25, 40.00}, {-105.20, 40.00},
		}),
		simpleTrail("t2", "Vertical", orb.LineString{
			{-105.25, 39.95}, {-105.25, 40.00}, {-105.25, 40.05},
		}),
	}

	summary := models.NewRunSummary("test")
	segments, err := NewSplitter(2.0, "test").Split(context.Background(), trails, summary)
	require.NoError(t, err)

	require.Len(t, segments, 4)
	for _, s := range segments {
		// no sliver vertices: each piece is exactly the half-trail
		assert.Len(t, s.Geometry, 2)
	}
}

func TestSplitterOverlap(t *testing.T) {
	// collinear overlap: split points at the overlap endpoints, the shared
	// stretch survives on both trails
	trails := []models.Trail{
		simpleTrail("t1", "West", orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
		simpleTrail("t2", "East", orb.LineString{{-105.25, 40.00}, {-105.15, 40.00}}),
	}

	summary := models.NewRunSummary("test")
	segments, err := NewSplitter(2.0, "test").Split(context.Background(), trails, summary)
	require.NoError(t, err)

	// each trail splits once at the other's interior endpoint
	assert.Len(t, segments, 4)
}

func TestSplitterSummaryCount(t *testing.T) {
	summary := models.NewRunSummary("test")
	_, err := NewSplitter(2.0, "test").Split(context.Background(), crossTrails(), summary)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Segments)
}
