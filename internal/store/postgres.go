package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// batchSize bounds how many inserts are queued per pgx batch
const batchSize = 1000

// TrailStore persists trails and route recommendations in Postgres.
// Geometry columns hold JSON coordinate arrays ([lng, lat, elev] triples) so
// the store works without the PostGIS extension.
type TrailStore struct {
	db *pgxpool.Pool
}

// NewTrailStore creates a store over the given pool
func NewTrailStore(db *pgxpool.Pool) *TrailStore {
	return &TrailStore{db: db}
}

// Migrate creates the store tables if they do not exist
func (s *TrailStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS trail (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			region TEXT NOT NULL DEFAULT '',
			osm_id TEXT NOT NULL DEFAULT '',
			trail_type TEXT NOT NULL DEFAULT '',
			surface TEXT NOT NULL DEFAULT '',
			difficulty TEXT NOT NULL DEFAULT '',
			source JSONB,
			length_km DOUBLE PRECISION,
			elevation_gain_m DOUBLE PRECISION,
			elevation_loss_m DOUBLE PRECISION,
			min_elevation_m DOUBLE PRECISION,
			max_elevation_m DOUBLE PRECISION,
			avg_elevation_m DOUBLE PRECISION,
			coords JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trail_region ON trail (region)`,
		`CREATE TABLE IF NOT EXISTS route_recommendation (
			uuid TEXT PRIMARY KEY,
			region TEXT NOT NULL DEFAULT '',
			pattern_name TEXT NOT NULL,
			shape TEXT NOT NULL,
			target_distance_km DOUBLE PRECISION,
			target_elevation_gain_m DOUBLE PRECISION,
			length_km DOUBLE PRECISION NOT NULL,
			elevation_gain_m DOUBLE PRECISION,
			route_score DOUBLE PRECISION,
			similarity_score DOUBLE PRECISION,
			trail_names JSONB,
			edge_ids JSONB NOT NULL,
			vertex_ids JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_route_region ON route_recommendation (region)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// SaveTrails upserts trails in batches
func (s *TrailStore) SaveTrails(ctx context.Context, trails []models.Trail) (int, error) {
	batch := &pgx.Batch{}
	count := 0

	for _, t := range trails {
		coords, err := json.Marshal(coordTriples(t.Geometry, t.Elevations))
		if err != nil {
			return count, fmt.Errorf("failed to marshal coords for trail %s: %w", t.ID, err)
		}
		source, err := json.Marshal(t.Source)
		if err != nil {
			return count, fmt.Errorf("failed to marshal source tags for trail %s: %w", t.ID, err)
		}

		batch.Queue(`
			INSERT INTO trail (id, name, region, osm_id, trail_type, surface, difficulty,
				source, length_km, elevation_gain_m, elevation_loss_m,
				min_elevation_m, max_elevation_m, avg_elevation_m, coords)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				region = EXCLUDED.region,
				length_km = EXCLUDED.length_km,
				coords = EXCLUDED.coords
		`, t.ID, t.Name, t.Region, t.OSMID, t.TrailType, t.Surface, t.Difficulty,
			source, t.LengthKm, t.ElevationGainM, t.ElevationLossM,
			t.MinElevationM, t.MaxElevationM, t.AvgElevationM, coords)

		count++
		if batch.Len() >= batchSize {
			if err := s.executeBatch(ctx, batch); err != nil {
				return count, err
			}
			batch = &pgx.Batch{}
		}
	}

	if batch.Len() > 0 {
		if err := s.executeBatch(ctx, batch); err != nil {
			return count, err
		}
	}

	log.Printf("Saved %d trails", count)
	return count, nil
}

// LoadTrails reads every trail for a region (all regions when region is
// empty), ordered by id
func (s *TrailStore) LoadTrails(ctx context.Context, region string) ([]models.Trail, error) {
	query := `
		SELECT id, name, region, osm_id, trail_type, surface, difficulty,
			source, elevation_gain_m, elevation_loss_m,
			min_elevation_m, max_elevation_m, avg_elevation_m, coords
		FROM trail
	`
	args := []interface{}{}
	if region != "" {
		query += ` WHERE region = $1`
		args = append(args, region)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load trails: %w", err)
	}
	defer rows.Close()

	var trails []models.Trail
	for rows.Next() {
		var t models.Trail
		var source, coords []byte

		if err := rows.Scan(&t.ID, &t.Name, &t.Region, &t.OSMID, &t.TrailType,
			&t.Surface, &t.Difficulty, &source,
			&t.ElevationGainM, &t.ElevationLossM,
			&t.MinElevationM, &t.MaxElevationM, &t.AvgElevationM, &coords); err != nil {
			log.Printf("Warning: failed to scan trail row: %v", err)
			continue
		}

		if len(source) > 0 {
			if err := json.Unmarshal(source, &t.Source); err != nil {
				log.Printf("Warning: bad source tags on trail %s: %v", t.ID, err)
			}
		}

		var triples [][]float64
		if err := json.Unmarshal(coords, &triples); err != nil {
			log.Printf("Warning: bad coords on trail %s, skipping: %v", t.ID, err)
			continue
		}
		for _, c := range triples {
			if len(c) < 2 {
				continue
			}
			t.Geometry = append(t.Geometry, orb.Point{c[0], c[1]})
			if len(c) >= 3 {
				t.Elevations = append(t.Elevations, c[2])
			} else {
				t.Elevations = append(t.Elevations, 0)
			}
		}
		t.LengthKm = geo.LineLengthKm(t.Geometry)

		trails = append(trails, t)
	}

	log.Printf("Loaded %d trails", len(trails))
	return trails, nil
}

// SaveRoutes upserts route recommendations
func (s *TrailStore) SaveRoutes(ctx context.Context, routes []models.RouteRecommendation) (int, error) {
	batch := &pgx.Batch{}
	count := 0

	for _, r := range routes {
		trailNames, _ := json.Marshal(r.TrailNames)
		edgeIDs, _ := json.Marshal(r.EdgeIDs)
		vertexIDs, _ := json.Marshal(r.VertexIDs)

		batch.Queue(`
			INSERT INTO route_recommendation (uuid, region, pattern_name, shape,
				target_distance_km, target_elevation_gain_m, length_km,
				elevation_gain_m, route_score, similarity_score,
				trail_names, edge_ids, vertex_ids)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (uuid) DO UPDATE SET
				route_score = EXCLUDED.route_score,
				similarity_score = EXCLUDED.similarity_score
		`, r.UUID, r.Region, r.PatternName, string(r.Shape),
			r.TargetDistanceKm, r.TargetElevationGainM, r.LengthKm,
			r.ElevationGainM, r.RouteScore, r.SimilarityScore,
			trailNames, edgeIDs, vertexIDs)

		count++
		if batch.Len() >= batchSize {
			if err := s.executeBatch(ctx, batch); err != nil {
				return count, err
			}
			batch = &pgx.Batch{}
		}
	}

	if batch.Len() > 0 {
		if err := s.executeBatch(ctx, batch); err != nil {
			return count, err
		}
	}

	log.Printf("Saved %d route recommendations", count)
	return count, nil
}

// LoadRoutes reads route recommendations, optionally filtered by region and
// shape, ordered by pattern then score descending
func (s *TrailStore) LoadRoutes(ctx context.Context, region, shape string) ([]models.RouteRecommendation, error) {
	query := `
		SELECT uuid, region, pattern_name, shape, target_distance_km,
			target_elevation_gain_m, length_km, elevation_gain_m,
			route_score, similarity_score, trail_names, edge_ids, vertex_ids
		FROM route_recommendation
		WHERE ($1 = '' OR region = $1)
		  AND ($2 = '' OR shape = $2)
		ORDER BY pattern_name, route_score DESC, uuid
	`

	rows, err := s.db.Query(ctx, query, region, shape)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	defer rows.Close()

	var routes []models.RouteRecommendation
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil {
			log.Printf("Warning: failed to scan route row: %v", err)
			continue
		}
		routes = append(routes, r)
	}

	return routes, nil
}

// LoadRoute reads a single recommendation by uuid; pgx.ErrNoRows when absent
func (s *TrailStore) LoadRoute(ctx context.Context, id string) (models.RouteRecommendation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT uuid, region, pattern_name, shape, target_distance_km,
			target_elevation_gain_m, length_km, elevation_gain_m,
			route_score, similarity_score, trail_names, edge_ids, vertex_ids
		FROM route_recommendation
		WHERE uuid = $1
	`, id)

	return scanRoute(row)
}

func scanRoute(row pgx.Row) (models.RouteRecommendation, error) {
	var r models.RouteRecommendation
	var shape string
	var trailNames, edgeIDs, vertexIDs []byte

	if err := row.Scan(&r.UUID, &r.Region, &r.PatternName, &shape,
		&r.TargetDistanceKm, &r.TargetElevationGainM, &r.LengthKm,
		&r.ElevationGainM, &r.RouteScore, &r.SimilarityScore,
		&trailNames, &edgeIDs, &vertexIDs); err != nil {
		return r, err
	}

	r.Shape = models.RouteShape(shape)
	if len(trailNames) > 0 {
		if err := json.Unmarshal(trailNames, &r.TrailNames); err != nil {
			return r, fmt.Errorf("failed to unmarshal trail_names for route %s: %w", r.UUID, err)
		}
	}
	if len(edgeIDs) > 0 {
		if err := json.Unmarshal(edgeIDs, &r.EdgeIDs); err != nil {
			return r, fmt.Errorf("failed to unmarshal edge_ids for route %s: %w", r.UUID, err)
		}
	}
	if len(vertexIDs) > 0 {
		if err := json.Unmarshal(vertexIDs, &r.VertexIDs); err != nil {
			return r, fmt.Errorf("failed to unmarshal vertex_ids for route %s: %w", r.UUID, err)
		}
	}

	return r, nil
}

func (s *TrailStore) executeBatch(ctx context.Context, batch *pgx.Batch) error {
	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch execution failed at query %d: %w", i, err)
		}
	}

	return nil
}

func coordTriples(line orb.LineString, elevs []float64) [][]float64 {
	out := make([][]float64, len(line))
	for i, p := range line {
		z := 0.0
		if i < len(elevs) {
			z = elevs[i]
		}
		out[i] = []float64{p[0], p[1], z}
	}
	return out
}
