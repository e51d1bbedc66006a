package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/pipeline"
)

// feature is a GeoJSON feature with raw coordinates so the elevation
// ordinate is preserved on output
type feature struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   geometryJSON           `json:"geometry"`
}

type geometryJSON struct {
	Type        string      `json:"type"`
	Coordinates interface{} `json:"coordinates"`
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

// WriteGeoJSON writes the run's segments, vertices, edges and route
// recommendations as one GeoJSON FeatureCollection with 3D coordinates
func WriteGeoJSON(path string, result *pipeline.Result) error {
	fc := featureCollection{Type: "FeatureCollection"}

	for _, s := range result.Segments {
		fc.Features = append(fc.Features, feature{
			Type: "Feature",
			Properties: map[string]interface{}{
				"layer":           "segment",
				"id":              s.ID,
				"name":            s.Name,
				"region":          s.Region,
				"parent_trail_id": s.ParentTrailID,
				"segment_index":   s.SegmentIndex,
				"length_km":       s.LengthKm,
			},
			Geometry: lineGeometry(s.Geometry, s.Elevations),
		})
	}

	if result.Graph != nil {
		for _, id := range result.Graph.VertexIDs() {
			v := result.Graph.Vertices[id]
			fc.Features = append(fc.Features, feature{
				Type: "Feature",
				Properties: map[string]interface{}{
					"layer":        "vertex",
					"id":           v.ID,
					"cnt":          v.Cnt,
					"class":        string(v.Class()),
					"component_id": v.ComponentID,
				},
				Geometry: geometryJSON{
					Type:        "Point",
					Coordinates: []float64{v.Point[0], v.Point[1], v.ElevationM},
				},
			})
		}

		for _, id := range result.Graph.EdgeIDs() {
			e := result.Graph.Edges[id]
			fc.Features = append(fc.Features, feature{
				Type: "Feature",
				Properties: map[string]interface{}{
					"layer":            "edge",
					"id":               e.ID,
					"source":           e.Source,
					"target":           e.Target,
					"length_km":        e.LengthKm,
					"elevation_gain_m": e.ElevationGainM,
					"elevation_loss_m": e.ElevationLossM,
					"cost":             e.Cost,
					"reverse_cost":     e.ReverseCost,
					"parent_trail_id":  e.ParentTrailID,
				},
				Geometry: lineGeometry(e.Geometry, e.Elevations),
			})
		}
	}

	for _, r := range result.Routes {
		fc.Features = append(fc.Features, routeFeature(r))
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal geojson: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write geojson file: %w", err)
	}

	return nil
}

// routeFeature renders one recommendation; out-and-back routes become a
// MultiLineString of forward and reverse legs
func routeFeature(r models.RouteRecommendation) feature {
	props := map[string]interface{}{
		"layer":                  "route",
		"uuid":                   r.UUID,
		"region":                 r.Region,
		"pattern":                r.PatternName,
		"shape":                  string(r.Shape),
		"length_km":              r.LengthKm,
		"elevation_gain_m":       r.ElevationGainM,
		"target_distance_km":     r.TargetDistanceKm,
		"target_elevation_gain":  r.TargetElevationGainM,
		"route_score":            r.RouteScore,
		"similarity_score":       r.SimilarityScore,
		"trail_names":            r.TrailNames,
		"edge_ids":               r.EdgeIDs,
		"vertex_ids":             r.VertexIDs,
	}

	if len(r.Geometry) > 1 {
		coords := make([][][]float64, len(r.Geometry))
		for i, line := range r.Geometry {
			coords[i] = lineCoords(line, r.Elevations[i])
		}
		return feature{
			Type:       "Feature",
			Properties: props,
			Geometry:   geometryJSON{Type: "MultiLineString", Coordinates: coords},
		}
	}

	var line orb.LineString
	var elevs []float64
	if len(r.Geometry) == 1 {
		line = r.Geometry[0]
		elevs = r.Elevations[0]
	}
	return feature{
		Type:       "Feature",
		Properties: props,
		Geometry:   lineGeometry(line, elevs),
	}
}

func lineGeometry(line orb.LineString, elevs []float64) geometryJSON {
	return geometryJSON{Type: "LineString", Coordinates: lineCoords(line, elevs)}
}

func lineCoords(line orb.LineString, elevs []float64) [][]float64 {
	coords := make([][]float64, len(line))
	for i, p := range line {
		z := 0.0
		if i < len(elevs) {
			z = elevs[i]
		}
		coords[i] = []float64{p[0], p[1], z}
	}
	return coords
}
