package ingest

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// rawFeature mirrors one GeoJSON feature with coordinates kept raw so the
// third (elevation) ordinate survives decoding
type rawFeature struct {
	Type       string                 `json:"type"`
	ID         json.RawMessage        `json:"id,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}

type rawCollection struct {
	Type     string       `json:"type"`
	Features []rawFeature `json:"features"`
}

// ReadGeoJSON parses a GeoJSON FeatureCollection of LineString /
// MultiLineString features into trails. Elevation is taken from the third
// coordinate when present, 0 otherwise. Malformed features are skipped with
// a warning; they never abort the file.
func ReadGeoJSON(path, region string) ([]models.Trail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson file: %w", err)
	}
	return ParseGeoJSON(data, region)
}

// ParseGeoJSON parses GeoJSON bytes into trails
func ParseGeoJSON(data []byte, region string) ([]models.Trail, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	var trails []models.Trail
	for i, f := range fc.Features {
		trail, err := featureToTrail(f, region, i)
		if err != nil {
			log.Printf("Warning: skipping feature %d: %v", i, err)
			continue
		}
		trails = append(trails, trail)
	}

	log.Printf("Parsed %d trails from %d features", len(trails), len(fc.Features))
	return trails, nil
}

func featureToTrail(f rawFeature, region string, index int) (models.Trail, error) {
	var t models.Trail

	t.ID = stringProp(f.Properties, "id")
	if t.ID == "" && len(f.ID) > 0 {
		var s string
		if json.Unmarshal(f.ID, &s) == nil {
			t.ID = s
		} else {
			var n float64
			if json.Unmarshal(f.ID, &n) == nil {
				t.ID = fmt.Sprintf("%.0f", n)
			}
		}
	}
	if t.ID == "" {
		t.ID = fmt.Sprintf("feature-%d", index)
	}

	t.Name = stringProp(f.Properties, "name")
	if t.Name == "" {
		t.Name = t.ID
	}
	t.Region = region
	if t.Region == "" {
		t.Region = stringProp(f.Properties, "region")
	}
	t.OSMID = stringProp(f.Properties, "osm_id")
	t.TrailType = stringProp(f.Properties, "type")
	t.Surface = stringProp(f.Properties, "surface")
	t.Difficulty = stringProp(f.Properties, "difficulty")
	t.Source = sourceTags(f.Properties)

	t.ElevationGainM = floatProp(f.Properties, "elevation_gain")
	t.ElevationLossM = floatProp(f.Properties, "elevation_loss")
	t.MinElevationM = floatProp(f.Properties, "min_elevation")
	t.MaxElevationM = floatProp(f.Properties, "max_elevation")
	t.AvgElevationM = floatProp(f.Properties, "avg_elevation")

	switch f.Geometry.Type {
	case "LineString":
		var coords [][]float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &coords); err != nil {
			return t, fmt.Errorf("bad LineString coordinates: %w", err)
		}
		line, elevs, err := coordsToLine(coords)
		if err != nil {
			return t, err
		}
		t.Geometry = line
		t.Elevations = elevs
		t.LengthKm = geo.LineLengthKm(line)

	case "MultiLineString":
		var multi [][][]float64
		if err := json.Unmarshal(f.Geometry.Coordinates, &multi); err != nil {
			return t, fmt.Errorf("bad MultiLineString coordinates: %w", err)
		}
		for _, coords := range multi {
			line, elevs, err := coordsToLine(coords)
			if err != nil {
				return t, err
			}
			t.MultiParts = append(t.MultiParts, line)
			t.MultiElevs = append(t.MultiElevs, elevs)
		}
		if len(t.MultiParts) == 0 {
			return t, fmt.Errorf("empty MultiLineString")
		}

	default:
		return t, fmt.Errorf("unsupported geometry type %q", f.Geometry.Type)
	}

	return t, nil
}

func coordsToLine(coords [][]float64) (orb.LineString, []float64, error) {
	if len(coords) < 2 {
		return nil, nil, fmt.Errorf("linestring needs at least 2 coordinates, got %d", len(coords))
	}

	line := make(orb.LineString, 0, len(coords))
	elevs := make([]float64, 0, len(coords))

	for _, c := range coords {
		if len(c) < 2 {
			return nil, nil, fmt.Errorf("coordinate with fewer than 2 ordinates")
		}
		line = append(line, orb.Point{c[0], c[1]})
		if len(c) >= 3 {
			elevs = append(elevs, c[2])
		} else {
			elevs = append(elevs, 0)
		}
	}

	return line, elevs, nil
}

func stringProp(props map[string]interface{}, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatProp(props map[string]interface{}, key string) *float64 {
	if v, ok := props[key]; ok {
		if f, ok := v.(float64); ok {
			return &f
		}
	}
	return nil
}

func sourceTags(props map[string]interface{}) map[string]string {
	raw, ok := props["source"].(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
