package main

import (
	"context"
	"encoding/json"
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

// generationLockTTL bounds how long a crashed run can hold the mutex
const generationLockTTL = 30 * time.Minute

func main() {
	geojsonPath := flag.String("geojson", "", "Read trails from a GeoJSON file instead of the database")
	region := flag.String("region", "", "Region filter")
	configPath := flag.String("config", "", "JSON config file overriding defaults")
	patternsPath := flag.String("patterns", "", "JSON file of route patterns (default: built-in set)")
	save := flag.Bool("save", false, "Save generated routes to the database")
	sqliteOut := flag.String("sqlite", "", "Write the full artifact to this SQLite path")
	geojsonOut := flag.String("geojson-out", "", "Write the full artifact to this GeoJSON path")

	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Bad configuration: %v", err)
	}
	if *region != "" {
		cfg.Region = *region
	}

	patterns, err := loadPatterns(*patternsPath)
	if err != nil {
		log.Fatalf("Bad patterns file: %v", err)
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

	// mutex over (region, task) so two concurrent runs do not generate the
	// same routes twice; without Redis the run proceeds unlocked
	lockKey := cache.LockKey(cache.RoutesKey(cfg.Region, "generate-routes", ""))
	if ok, err := cache.AcquireLock(ctx, lockKey, generationLockTTL); err != nil {
		log.Printf("Warning: Redis unavailable, running without the generation lock: %v", err)
	} else if !ok {
		log.Fatalf("Another route generation run for region %q holds the lock", cfg.Region)
	} else {
		defer cache.ReleaseLock(ctx, lockKey)
	}

	result, err := pipeline.New(cfg).Run(ctx, trails, patterns)
	if err != nil {
		log.Fatalf("Route generation failed: %v", err)
	}

	summary, _ := json.MarshalIndent(result.Summary, "", "  ")
	log.Printf("Run summary:\n%s", summary)

	if *save {
		pool, err := db.GetDB()
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		trailStore := store.NewTrailStore(pool)
		if err := trailStore.Migrate(ctx); err != nil {
			log.Fatalf("Failed to migrate schema: %v", err)
		}
		if _, err := trailStore.SaveRoutes(ctx, result.Routes); err != nil {
			log.Fatalf("Failed to save routes: %v", err)
		}
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

	if len(result.Routes) == 0 {
		log.Println("No routes matched any pattern")
		os.Exit(2)
	}
	log.Printf("Generated %d routes", len(result.Routes))
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func loadPatterns(path string) ([]models.RoutePattern, error) {
	if path == "" {
		return pipeline.DefaultPatterns(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read patterns file: %w", err)
	}

	var patterns []models.RoutePattern
	if err := json.Unmarshal(data, &patterns); err != nil {
		return nil, fmt.Errorf("failed to parse patterns file: %w", err)
	}
	if len(patterns) == 0 {
		return nil, fmt.Errorf("patterns file is empty")
	}

	return patterns, nil
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
