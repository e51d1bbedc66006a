package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/trailforge/trailforge_core/internal/cache"
	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/export"
	"github.com/trailforge/trailforge_core/internal/ingest"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/pipeline"
	"github.com/trailforge/trailforge_core/internal/store"
)

// buildLockTTL bounds how long a crashed run can hold the mutex
const buildLockTTL = 30 * time.Minute

func main() {
	geojsonPath := flag.String("geojson", "", "Read trails from a GeoJSON file instead of the database")
	region := flag.String("region", "", "Region filter")
	configPath := flag.String("config", "", "JSON config file overriding defaults")
	sqliteOut := flag.String("sqlite", "", "Write the graph artifact to this SQLite path")
	geojsonOut := flag.String("geojson-out", "", "Write the graph artifact to this GeoJSON path")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}
	if *region != "" {
		cfg.Region = *region
	}

	trails, err := loadTrails(*geojsonPath, cfg.Region)
	if err != nil {
		log.Fatalf("Failed to load trails: %v", err)
	}
	if len(trails) == 0 {
		log.Println("No input trails")
		os.Exit(2)
	}

	ctx := context.Background()

	// mutex over (region, task) so two concurrent builds do not race on the
	// same artifact; without Redis the run proceeds unlocked
	lockKey := cache.LockKey(cache.RoutesKey(cfg.Region, "build-graph", ""))
	if ok, err := cache.AcquireLock(ctx, lockKey, buildLockTTL); err != nil {
		log.Printf("Warning: Redis unavailable, running without the build lock: %v", err)
	} else if !ok {
		log.Fatalf("Another graph build for region %q holds the lock", cfg.Region)
	} else {
		defer cache.ReleaseLock(ctx, lockKey)
	}

	// patterns omitted: layers 1 and 2 only
	result, err := pipeline.New(cfg).Run(ctx, trails, nil)
	if err != nil {
		log.Fatalf("Graph build failed: %v", err)
	}
	if len(result.Graph.Edges) == 0 {
		log.Println("Graph build produced no edges")
		os.Exit(2)
	}

	if *sqliteOut != "" {
		if err := export.WriteSQLite(*sqliteOut, result); err != nil {
			log.Fatalf("SQLite export failed: %v", err)
		}
	}
	if *geojsonOut != "" {
		if err := export.WriteGeoJSON(*geojsonOut, result); err != nil {
			log.Fatalf("GeoJSON export failed: %v", err)
		}
	}

	log.Printf("Graph built: %d vertices, %d edges, %d components",
		result.Summary.Vertices, result.Summary.Edges, result.Summary.Components)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func loadTrails(geojsonPath, region string) ([]models.Trail, error) {
	if geojsonPath != "" {
		return ingest.ReadGeoJSON(geojsonPath, region)
	}

	pool, err := db.GetDB()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store.NewTrailStore(pool).LoadTrails(context.Background(), region)
}
