package geometry

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/models"
)

func simpleTrail(id, name string, line orb.LineString) models.Trail {
	elevs := make([]float64, len(line))
	for i := range elevs {
		elevs[i] = 1000
	}
	return models.Trail{ID: id, Name: name, Geometry: line, Elevations: elevs}
}

func TestPreprocessorClean(t *testing.T) {
	ctx := context.Background()

	t.Run("Well-formed trails pass through unchanged", func(t *testing.T) {
		trails := []models.Trail{
			simpleTrail("t1", "One", orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
			simpleTrail("t2", "Two", orb.LineString{{-105.25, 39.95}, {-105.25, 40.05}}),
		}
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(0, 5).Clean(ctx, trails, summary)
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("MultiLineString flattens into suffixed trails", func(t *testing.T) {
		trails := []models.Trail{{
			ID:   "m1",
			Name: "X",
			MultiParts: []orb.LineString{
				{{-105.30, 40.00}, {-105.29, 40.00}},
				{{-105.20, 40.05}, {-105.19, 40.05}},
			},
			MultiElevs: [][]float64{{1000, 1000}, {1100, 1100}},
		}}
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(0, 5).Clean(ctx, trails, summary)
		require.NoError(t, err)
		require.Len(t, out, 2)

		names := []string{out[0].Name, out[1].Name}
		assert.Contains(t, names, "X")
		assert.Contains(t, names, "X (Segment 2)")

		// the first piece keeps the parent id, the second gets a minted one
		ids := []string{out[0].ID, out[1].ID}
		assert.Contains(t, ids, "m1")
		assert.NotEqual(t, ids[0], ids[1])

		// flattening is counted in the pass summary
		require.NotEmpty(t, summary.Passes)
		assert.Equal(t, 1, summary.Passes[0].Flattened)
		assert.Equal(t, 1, summary.Passes[0].Introduced)
	})

	t.Run("Connectable multi parts merge into one line", func(t *testing.T) {
		trails := []models.Trail{{
			ID:   "m2",
			Name: "Chained",
			MultiParts: []orb.LineString{
				{{-105.30, 40.00}, {-105.25, 40.00}},
				{{-105.25, 40.00}, {-105.20, 40.00}},
			},
			MultiElevs: [][]float64{{1000, 1010}, {1010, 1020}},
		}}
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(0, 5).Clean(ctx, trails, summary)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "Chained", out[0].Name)
		assert.Len(t, out[0].Geometry, 3)
		assert.Equal(t, []float64{1000, 1010, 1020}, out[0].Elevations)
	})

	t.Run("Invalid geometry is dropped and counted", func(t *testing.T) {
		trails := []models.Trail{
			simpleTrail("good", "Good", orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
			simpleTrail("bad", "Bad", orb.LineString{{-105.30, 40.00}}),
		}
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(0, 5).Clean(ctx, trails, summary)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Equal(t, "good", out[0].ID)
		assert.Equal(t, 1, summary.ErrorCounts[models.ErrInvalidInput])
		assert.Contains(t, summary.SampleIDs[models.ErrInvalidInput], "bad")
	})

	t.Run("Minimum length filter drops short trails", func(t *testing.T) {
		trails := []models.Trail{
			simpleTrail("long", "Long", orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
			// ~11 m
			simpleTrail("short", "Short", orb.LineString{{-105.30, 40.0}, {-105.30, 40.0001}}),
		}
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(100, 5).Clean(ctx, trails, summary)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Equal(t, "long", out[0].ID)
	})

	t.Run("Exact duplicates keep the lowest id", func(t *testing.T) {
		line := orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}
		rev := orb.LineString{{-105.20, 40.00}, {-105.30, 40.00}}
		trails := []models.Trail{
			simpleTrail("b", "Copy", line),
			simpleTrail("a", "Original", line),
			simpleTrail("c", "Reversed", rev),
		}
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(0, 5).Clean(ctx, trails, summary)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, "a", out[0].ID)
	})

	t.Run("Self-intersecting trail is node-split", func(t *testing.T) {
		// bowtie: segment 1 crosses segment 3
		bowtie := simpleTrail("bow", "Bowtie", orb.LineString{
			{-105.300, 40.000},
			{-105.280, 40.020},
			{-105.280, 40.000},
			{-105.300, 40.020},
		})
		summary := models.NewRunSummary("test")

		out, err := NewPreprocessor(0, 5).Clean(ctx, trails(bowtie), summary)
		require.NoError(t, err)
		assert.Greater(t, len(out), 1)
		for _, tr := range out {
			assert.True(t, isValid(tr.Geometry))
		}
	})

	t.Run("Emptying the population is fatal", func(t *testing.T) {
		bad := []models.Trail{simpleTrail("only", "Only", orb.LineString{{-105.30, 40.00}})}
		summary := models.NewRunSummary("test")

		_, err := NewPreprocessor(0, 5).Clean(ctx, bad, summary)
		assert.Error(t, err)
	})

	t.Run("Idempotent on its own output", func(t *testing.T) {
		input := []models.Trail{
			simpleTrail("t1", "One", orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}),
			{
				ID:   "m1",
				Name: "Multi",
				MultiParts: []orb.LineString{
					{{-105.30, 40.02}, {-105.29, 40.02}},
					{{-105.20, 40.07}, {-105.19, 40.07}},
				},
				MultiElevs: [][]float64{{1000, 1000}, {1100, 1100}},
			},
		}

		first, err := NewPreprocessor(0, 5).Clean(ctx, input, models.NewRunSummary("test"))
		require.NoError(t, err)

		second, err := NewPreprocessor(0, 5).Clean(ctx, first, models.NewRunSummary("test"))
		require.NoError(t, err)

		require.Equal(t, len(first), len(second))
		for i := range first {
			assert.Equal(t, first[i].ID, second[i].ID)
			assert.Equal(t, first[i].Geometry, second[i].Geometry)
		}
	})
}

func trails(ts ...models.Trail) []models.Trail {
	return ts
}

func TestSelfIntersectionCuts(t *testing.T) {
	bowtie := orb.LineString{
		{0, 0},
		{2, 2},
		{2, 0},
		{0, 2},
	}
	cuts := selfIntersectionCuts(bowtie)
	assert.Len(t, cuts, 2) // one crossing, a cut on each involved segment
}
