package ingest

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	gpxgo "github.com/tkrajina/gpxgo/gpx"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// ReadGPXFile parses one GPX file into trails: one trail per track, joining
// the track's segments in order. Elevation comes from the track points
// (0 where absent).
func ReadGPXFile(path, region string) ([]models.Trail, error) {
	parsed, err := gpxgo.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gpx file %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	var trails []models.Trail

	for ti, track := range parsed.Tracks {
		var line orb.LineString
		var elevs []float64

		for _, seg := range track.Segments {
			for _, pt := range seg.Points {
				line = append(line, orb.Point{pt.Longitude, pt.Latitude})
				if pt.Elevation.NotNull() {
					elevs = append(elevs, pt.Elevation.Value())
				} else {
					elevs = append(elevs, 0)
				}
			}
		}

		if len(line) < 2 {
			log.Printf("Warning: track %d of %s has fewer than 2 points, skipping", ti, path)
			continue
		}

		name := track.Name
		if name == "" {
			name = base
		}

		trail := models.Trail{
			ID:         fmt.Sprintf("%s-%d", base, ti),
			Name:       name,
			Region:     region,
			TrailType:  parsed.Description,
			Source:     map[string]string{"format": "gpx", "file": filepath.Base(path)},
			Geometry:   line,
			Elevations: elevs,
			LengthKm:   geo.LineLengthKm(line),
		}
		trails = append(trails, trail)
	}

	return trails, nil
}

// ReadGPXDir parses every .gpx file in a directory (sorted by name for
// reproducibility). Files that fail to parse are skipped with a warning.
func ReadGPXDir(dir, region string) ([]models.Trail, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gpx directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".gpx") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var trails []models.Trail
	for _, name := range names {
		parsed, err := ReadGPXFile(filepath.Join(dir, name), region)
		if err != nil {
			log.Printf("Warning: %v", err)
			continue
		}
		trails = append(trails, parsed...)
	}

	if len(trails) == 0 {
		return nil, fmt.Errorf("no usable gpx tracks found in %s", dir)
	}

	log.Printf("Parsed %d trails from %d gpx files", len(trails), len(names))
	return trails, nil
}
