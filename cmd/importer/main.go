package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/trailforge/trailforge_core/internal/db"
	"github.com/trailforge/trailforge_core/internal/ingest"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/store"
)

func main() {
	geojsonPath := flag.String("geojson", "", "Path to a GeoJSON FeatureCollection of trails")
	gpxDir := flag.String("gpx-dir", "", "Directory of GPX files to import")
	region := flag.String("region", "", "Region tag for the imported trails (required)")

	flag.Parse()

	if *region == "" || (*geojsonPath == "" && *gpxDir == "") {
		fmt.Println("Usage: trailforge-import --region=<tag> (--geojson=<path> | --gpx-dir=<dir>)")
		flag.PrintDefaults()
		os.Exit(1)
	}

	log.Println("Starting trail import...")
	log.Printf("Region: %s", *region)

	var trails []models.Trail
	var err error

	switch {
	case *geojsonPath != "":
		log.Println("Step 1/3: Parsing GeoJSON...")
		trails, err = ingest.ReadGeoJSON(*geojsonPath, *region)
	default:
		log.Println("Step 1/3: Parsing GPX directory...")
		trails, err = ingest.ReadGPXDir(*gpxDir, *region)
	}
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}
	if len(trails) == 0 {
		log.Println("No trails parsed from input")
		os.Exit(2)
	}

	log.Println("Step 2/3: Connecting to database...")
	pool, err := db.GetDB()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	trailStore := store.NewTrailStore(pool)
	if err := trailStore.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	log.Println("Step 3/3: Saving trails...")
	count, err := trailStore.SaveTrails(ctx, trails)
	if err != nil {
		log.Fatalf("Failed to save trails: %v", err)
	}

	log.Printf("Import completed successfully: %d trails", count)
}
