package routing

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// squareGraph is a 4-cycle 1-2-3-4-1 with a dangling spur 4-5
func squareGraph() *graph.Graph {
	g := graph.New()
	g.AddVertex(&models.Vertex{ID: 1, Point: orb.Point{0.00, 40.00}})
	g.AddVertex(&models.Vertex{ID: 2, Point: orb.Point{0.01, 40.00}})
	g.AddVertex(&models.Vertex{ID: 3, Point: orb.Point{0.01, 40.01}})
	g.AddVertex(&models.Vertex{ID: 4, Point: orb.Point{0.00, 40.01}})
	g.AddVertex(&models.Vertex{ID: 5, Point: orb.Point{-0.01, 40.01}})
	testEdge(g, 1, 1, 2, 5.0, 100, 0)
	testEdge(g, 2, 2, 3, 5.0, 0, 50)
	testEdge(g, 3, 3, 4, 5.0, 30, 0)
	testEdge(g, 4, 4, 1, 5.0, 0, 80)
	testEdge(g, 5, 4, 5, 2.0, 0, 0)
	g.Finalize()
	return g
}

func collectCycles(t *testing.T, g *graph.Graph, enum *CycleEnumerator) []*Path {
	t.Helper()
	var out []*Path
	_, err := enum.Enumerate(context.Background(), g, func(p *Path) bool {
		out = append(out, p)
		return true
	})
	require.NoError(t, err)
	return out
}

func TestCycleEnumeration(t *testing.T) {
	g := squareGraph()

	t.Run("The square is found exactly once", func(t *testing.T) {
		cycles := collectCycles(t, g, &CycleEnumerator{MaxRows: 10000, MaxLengthKm: 100})

		require.Len(t, cycles, 1)
		cycle := cycles[0]
		assert.Equal(t, cycle.Start(), cycle.End())
		assert.Len(t, cycle.EdgeIDs, 4)
		assert.InDelta(t, 20.0, cycle.LengthKm, 1e-9)
	})

	t.Run("Cycle gain accumulates direction-aware", func(t *testing.T) {
		cycles := collectCycles(t, g, &CycleEnumerator{MaxRows: 10000, MaxLengthKm: 100})

		require.Len(t, cycles, 1)
		// a closed circuit climbs exactly what it descends
		assert.InDelta(t, cycles[0].GainM, cycles[0].LossM, 1e-9)
	})

	t.Run("Length bound prunes the cycle", func(t *testing.T) {
		cycles := collectCycles(t, g, &CycleEnumerator{MaxRows: 10000, MaxLengthKm: 10})
		assert.Empty(t, cycles)
	})

	t.Run("Emit can stop enumeration early", func(t *testing.T) {
		count := 0
		_, err := (&CycleEnumerator{MaxRows: 10000, MaxLengthKm: 100}).Enumerate(
			context.Background(), g, func(p *Path) bool {
				count++
				return false
			})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("Row cap truncates", func(t *testing.T) {
		truncated, err := (&CycleEnumerator{MaxRows: 2, MaxLengthKm: 100}).Enumerate(
			context.Background(), g, func(p *Path) bool { return true })
		require.NoError(t, err)
		assert.True(t, truncated)
	})
}

func TestCycleParallelEdges(t *testing.T) {
	// two trails between the same vertices form a legitimate 2-edge circuit
	g := graph.New()
	g.AddVertex(&models.Vertex{ID: 1, Point: orb.Point{0.00, 40.0}})
	g.AddVertex(&models.Vertex{ID: 2, Point: orb.Point{0.01, 40.0}})
	testEdge(g, 1, 1, 2, 3.0, 0, 0)
	testEdge(g, 2, 1, 2, 4.0, 0, 0)
	g.Finalize()

	cycles := collectCycles(t, g, &CycleEnumerator{MaxRows: 10000, MaxLengthKm: 100})

	require.Len(t, cycles, 1)
	assert.Len(t, cycles[0].EdgeIDs, 2)
	assert.InDelta(t, 7.0, cycles[0].LengthKm, 1e-9)
}

func TestCycleTwoSquares(t *testing.T) {
	// two squares sharing an edge: three simple cycles total
	g := graph.New()
	for i := int64(1); i <= 6; i++ {
		g.AddVertex(&models.Vertex{ID: i, Point: orb.Point{float64(i) * 0.01, 40.0}})
	}
	// square A: 1-2-3-4, square B: 3-4-5-6 sharing edge 3-4
	testEdge(g, 1, 1, 2, 1, 0, 0)
	testEdge(g, 2, 2, 3, 1, 0, 0)
	testEdge(g, 3, 3, 4, 1, 0, 0)
	testEdge(g, 4, 4, 1, 1, 0, 0)
	testEdge(g, 5, 3, 5, 1, 0, 0)
	testEdge(g, 6, 5, 6, 1, 0, 0)
	testEdge(g, 7, 6, 4, 1, 0, 0)
	g.Finalize()

	cycles := collectCycles(t, g, &CycleEnumerator{MaxRows: 100000, MaxLengthKm: 100})
	assert.Len(t, cycles, 3)
}
