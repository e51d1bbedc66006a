package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/export"
	"github.com/trailforge/trailforge_core/internal/ingest"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/pipeline"
	"github.com/trailforge/trailforge_core/internal/store"
)

func main() {
	geojsonPath := flag.String("geojson", "", "Read trails from a GeoJSON file instead of the database")
	region := flag.String("region", "", "Region filter")
	configPath := flag.String("config", "", "JSON config file overriding defaults")
	skipRoutes := flag.Bool("skip-routes", false, "Export graph only, without route generation")
	sqliteOut := flag.String("sqlite", "", "SQLite artifact output path")
	geojsonOut := flag.String("geojson-out", "", "GeoJSON artifact output path")

	flag.Parse()

	if *sqliteOut == "" && *geojsonOut == "" {
		fmt.Println("Usage: trailforge-export [--geojson=<in>] [--region=<tag>] (--sqlite=<out> | --geojson-out=<out>)")
		flag.PrintDefaults()
		os.Exit(1)
	}

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

	patterns := pipeline.DefaultPatterns()
	if *skipRoutes {
		patterns = nil
	}

	result, err := pipeline.New(cfg).Run(context.Background(), trails, patterns)
	if err != nil {
		log.Fatalf("Pipeline failed: %v", err)
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

	if len(result.Segments) == 0 {
		os.Exit(2)
	}
	log.Println("Export completed successfully")
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
