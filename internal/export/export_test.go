package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/pipeline"
)

func TestEncodeLineStringZ(t *testing.T) {
	t.Run("Renders 3D WKT", func(t *testing.T) {
		wkt := EncodeLineStringZ(
			orb.LineString{{-105.3, 40}, {-105.2, 40.5}},
			[]float64{1000, 1200},
		)
		assert.Equal(t, "LINESTRING Z(-105.3 40 1000, -105.2 40.5 1200)", wkt)
	})

	t.Run("Missing elevations encode as 0", func(t *testing.T) {
		wkt := EncodeLineStringZ(orb.LineString{{-105.3, 40}, {-105.2, 40}}, nil)
		assert.Equal(t, "LINESTRING Z(-105.3 40 0, -105.2 40 0)", wkt)
	})

	t.Run("Empty geometry", func(t *testing.T) {
		assert.Equal(t, "LINESTRING Z EMPTY", EncodeLineStringZ(nil, nil))
	})
}

func TestEncodeMultiLineStringZ(t *testing.T) {
	wkt := EncodeMultiLineStringZ(
		[]orb.LineString{
			{{-105.3, 40}, {-105.2, 40}},
			{{-105.2, 40}, {-105.3, 40}},
		},
		[][]float64{{1000, 1100}, {1100, 1000}},
	)
	assert.Equal(t,
		"MULTILINESTRING Z((-105.3 40 1000, -105.2 40 1100), (-105.2 40 1100, -105.3 40 1000))",
		wkt)
}

func TestEncodePointZ(t *testing.T) {
	assert.Equal(t, "POINT Z(-105.25 40 1000)", EncodePointZ(orb.Point{-105.25, 40}, 1000))
}

// smallResult builds a minimal pipeline result by hand
func smallResult() *pipeline.Result {
	g := graph.New()
	g.AddVertex(&models.Vertex{ID: 1, Point: orb.Point{-105.30, 40.00}, ElevationM: 1000, ComponentID: 1})
	g.AddVertex(&models.Vertex{ID: 2, Point: orb.Point{-105.20, 40.00}, ElevationM: 1100, ComponentID: 1})
	g.AddEdge(&models.Edge{
		ID: 1, Source: 1, Target: 2,
		Geometry:   orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}},
		Elevations: []float64{1000, 1100},
		LengthKm:   8.5, ElevationGainM: 100, Cost: 8.5, ReverseCost: 8.5,
		SegmentID: "t1_0", ParentTrailID: "t1", TrailName: "Ridge",
	})
	g.Finalize()

	seg := models.Segment{ParentTrailID: "t1", SegmentIndex: 0}
	seg.ID = "t1_0"
	seg.Name = "Ridge"
	seg.Region = "test"
	seg.Geometry = orb.LineString{{-105.30, 40.00}, {-105.20, 40.00}}
	seg.Elevations = []float64{1000, 1100}
	seg.LengthKm = 8.5

	route := models.RouteRecommendation{
		UUID:        "11111111-2222-3333-4444-555555555555",
		Region:      "test",
		PatternName: "oab-17k",
		Shape:       models.ShapeOutAndBack,
		LengthKm:    17.0,
		EdgeIDs:     []int64{1},
		VertexIDs:   []int64{1, 2},
		TrailNames:  []string{"Ridge"},
		RouteScore:  1.0,
		Geometry: []orb.LineString{
			{{-105.30, 40.00}, {-105.20, 40.00}},
			{{-105.20, 40.00}, {-105.30, 40.00}},
		},
		Elevations: [][]float64{{1000, 1100}, {1100, 1000}},
	}

	return &pipeline.Result{
		Segments: []models.Segment{seg},
		Graph:    g,
		Routes:   []models.RouteRecommendation{route},
		Summary:  models.NewRunSummary("test"),
	}
}

func TestWriteGeoJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.geojson")
	require.NoError(t, WriteGeoJSON(path, smallResult()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]interface{} `json:"properties"`
			Geometry   struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(data, &fc))

	assert.Equal(t, "FeatureCollection", fc.Type)
	// 1 segment + 2 vertices + 1 edge + 1 route
	require.Len(t, fc.Features, 5)

	layers := map[string]int{}
	for _, f := range fc.Features {
		layers[f.Properties["layer"].(string)]++
	}
	assert.Equal(t, 1, layers["segment"])
	assert.Equal(t, 2, layers["vertex"])
	assert.Equal(t, 1, layers["edge"])
	assert.Equal(t, 1, layers["route"])

	t.Run("Segment coordinates are 3D", func(t *testing.T) {
		for _, f := range fc.Features {
			if f.Properties["layer"] != "segment" {
				continue
			}
			var coords [][]float64
			require.NoError(t, json.Unmarshal(f.Geometry.Coordinates, &coords))
			require.Len(t, coords, 2)
			assert.Len(t, coords[0], 3)
			assert.Equal(t, 1000.0, coords[0][2])
		}
	})

	t.Run("Out-and-back route is a MultiLineString", func(t *testing.T) {
		for _, f := range fc.Features {
			if f.Properties["layer"] != "route" {
				continue
			}
			assert.Equal(t, "MultiLineString", f.Geometry.Type)
		}
	})
}

func TestWriteSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.db")
	require.NoError(t, WriteSQLite(path, smallResult()))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	t.Run("Rewriting the same artifact succeeds", func(t *testing.T) {
		require.NoError(t, WriteSQLite(path, smallResult()))
	})
}
