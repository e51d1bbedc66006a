package export

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/paulmach/orb"
	"github.com/pocketbase/dbx"
	_ "modernc.org/sqlite"

	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/pipeline"
)

// schema creates the self-contained artifact layout. Geometry is stored as
// 3D WKT text; id lists as JSON arrays.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trails (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		region TEXT,
		osm_id TEXT,
		trail_type TEXT,
		surface TEXT,
		difficulty TEXT,
		length_km REAL,
		elevation_gain_m REAL,
		elevation_loss_m REAL,
		min_elevation_m REAL,
		max_elevation_m REAL,
		avg_elevation_m REAL,
		geometry TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS segments (
		id TEXT PRIMARY KEY,
		parent_trail_id TEXT NOT NULL,
		segment_index INTEGER NOT NULL,
		name TEXT,
		region TEXT,
		length_km REAL,
		elevation_gain_m REAL,
		elevation_loss_m REAL,
		geometry TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS vertices (
		id INTEGER PRIMARY KEY,
		lng REAL NOT NULL,
		lat REAL NOT NULL,
		elevation_m REAL,
		cnt INTEGER NOT NULL,
		component_id INTEGER,
		geometry TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS edges (
		id INTEGER PRIMARY KEY,
		source INTEGER NOT NULL,
		target INTEGER NOT NULL,
		length_km REAL NOT NULL,
		elevation_gain_m REAL,
		elevation_loss_m REAL,
		cost REAL NOT NULL,
		reverse_cost REAL NOT NULL,
		parent_trail_id TEXT,
		trail_name TEXT,
		geometry TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS route_recommendations (
		uuid TEXT PRIMARY KEY,
		region TEXT,
		pattern_name TEXT,
		shape TEXT NOT NULL,
		target_distance_km REAL,
		target_elevation_gain_m REAL,
		length_km REAL NOT NULL,
		elevation_gain_m REAL,
		route_score REAL,
		similarity_score REAL,
		trail_names TEXT,
		edge_ids TEXT NOT NULL,
		vertex_ids TEXT NOT NULL,
		geometry TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_segments_parent ON segments (parent_trail_id)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges (source)`,
	`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges (target)`,
	`CREATE INDEX IF NOT EXISTS idx_routes_pattern ON route_recommendations (pattern_name)`,
}

// WriteSQLite writes the complete run artifact to a SQLite database at the
// given path, replacing any existing content
func WriteSQLite(path string, result *pipeline.Result) error {
	db, err := dbx.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite artifact: %w", err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.NewQuery(stmt).Execute(); err != nil {
			return fmt.Errorf("failed to create artifact schema: %w", err)
		}
	}

	return db.Transactional(func(tx *dbx.Tx) error {
		for _, table := range []string{"trails", "segments", "vertices", "edges", "route_recommendations"} {
			if _, err := tx.NewQuery("DELETE FROM " + table).Execute(); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		for _, t := range result.CleanTrails {
			params := dbx.Params{
				"id":         t.ID,
				"name":       t.Name,
				"region":     t.Region,
				"osm_id":     t.OSMID,
				"trail_type": t.TrailType,
				"surface":    t.Surface,
				"difficulty": t.Difficulty,
				"length_km":  t.LengthKm,
				"geometry":   EncodeLineStringZ(t.Geometry, t.Elevations),
			}
			if t.ElevationGainM != nil {
				params["elevation_gain_m"] = *t.ElevationGainM
			}
			if t.ElevationLossM != nil {
				params["elevation_loss_m"] = *t.ElevationLossM
			}
			if t.MinElevationM != nil {
				params["min_elevation_m"] = *t.MinElevationM
			}
			if t.MaxElevationM != nil {
				params["max_elevation_m"] = *t.MaxElevationM
			}
			if t.AvgElevationM != nil {
				params["avg_elevation_m"] = *t.AvgElevationM
			}
			if _, err := tx.Insert("trails", params).Execute(); err != nil {
				return fmt.Errorf("failed to insert trail %s: %w", t.ID, err)
			}
		}

		for _, s := range result.Segments {
			params := dbx.Params{
				"id":              s.ID,
				"parent_trail_id": s.ParentTrailID,
				"segment_index":   s.SegmentIndex,
				"name":            s.Name,
				"region":          s.Region,
				"length_km":       s.LengthKm,
				"geometry":        EncodeLineStringZ(s.Geometry, s.Elevations),
			}
			if s.ElevationGainM != nil {
				params["elevation_gain_m"] = *s.ElevationGainM
			}
			if s.ElevationLossM != nil {
				params["elevation_loss_m"] = *s.ElevationLossM
			}
			if _, err := tx.Insert("segments", params).Execute(); err != nil {
				return fmt.Errorf("failed to insert segment %s: %w", s.ID, err)
			}
		}

		if result.Graph != nil {
			for _, id := range result.Graph.VertexIDs() {
				v := result.Graph.Vertices[id]
				if _, err := tx.Insert("vertices", dbx.Params{
					"id":           v.ID,
					"lng":          v.Point[0],
					"lat":          v.Point[1],
					"elevation_m":  v.ElevationM,
					"cnt":          v.Cnt,
					"component_id": v.ComponentID,
					"geometry":     EncodePointZ(v.Point, v.ElevationM),
				}).Execute(); err != nil {
					return fmt.Errorf("failed to insert vertex %d: %w", v.ID, err)
				}
			}

			for _, id := range result.Graph.EdgeIDs() {
				e := result.Graph.Edges[id]
				if _, err := tx.Insert("edges", dbx.Params{
					"id":               e.ID,
					"source":           e.Source,
					"target":           e.Target,
					"length_km":        e.LengthKm,
					"elevation_gain_m": e.ElevationGainM,
					"elevation_loss_m": e.ElevationLossM,
					"cost":             e.Cost,
					"reverse_cost":     e.ReverseCost,
					"parent_trail_id":  e.ParentTrailID,
					"trail_name":       e.TrailName,
					"geometry":         EncodeLineStringZ(e.Geometry, e.Elevations),
				}).Execute(); err != nil {
					return fmt.Errorf("failed to insert edge %d: %w", e.ID, err)
				}
			}
		}

		for _, r := range result.Routes {
			trailNames, err := json.Marshal(r.TrailNames)
			if err != nil {
				return fmt.Errorf("failed to marshal trail names: %w", err)
			}
			edgeIDs, err := json.Marshal(r.EdgeIDs)
			if err != nil {
				return fmt.Errorf("failed to marshal edge ids: %w", err)
			}
			vertexIDs, err := json.Marshal(r.VertexIDs)
			if err != nil {
				return fmt.Errorf("failed to marshal vertex ids: %w", err)
			}

			geometry := EncodeLineStringZ(firstLine(r), firstElevs(r))
			if len(r.Geometry) > 1 {
				geometry = EncodeMultiLineStringZ(r.Geometry, r.Elevations)
			}

			if _, err := tx.Insert("route_recommendations", dbx.Params{
				"uuid":                    r.UUID,
				"region":                  r.Region,
				"pattern_name":            r.PatternName,
				"shape":                   string(r.Shape),
				"target_distance_km":      r.TargetDistanceKm,
				"target_elevation_gain_m": r.TargetElevationGainM,
				"length_km":               r.LengthKm,
				"elevation_gain_m":        r.ElevationGainM,
				"route_score":             r.RouteScore,
				"similarity_score":        r.SimilarityScore,
				"trail_names":             string(trailNames),
				"edge_ids":                string(edgeIDs),
				"vertex_ids":              string(vertexIDs),
				"geometry":                geometry,
			}).Execute(); err != nil {
				return fmt.Errorf("failed to insert route %s: %w", r.UUID, err)
			}
		}

		log.Printf("Wrote artifact: %d trails, %d segments, %d routes -> %s",
			len(result.CleanTrails), len(result.Segments), len(result.Routes), path)
		return nil
	})
}

func firstLine(r models.RouteRecommendation) orb.LineString {
	if len(r.Geometry) > 0 {
		return r.Geometry[0]
	}
	return nil
}

func firstElevs(r models.RouteRecommendation) []float64 {
	if len(r.Elevations) > 0 {
		return r.Elevations[0]
	}
	return nil
}
