package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/trailforge/trailforge_core/internal/models"
)

// EndpointSelection chooses how route start/end candidates are picked
type EndpointSelection string

const (
	EndpointManual    EndpointSelection = "manual"
	EndpointAutomatic EndpointSelection = "automatic"
)

// LollipopConfig bounds the lollipop (stem + loop) composition search
type LollipopConfig struct {
	MaxAnchorNodes          int     `json:"max_anchor_nodes"`
	MaxReachableNodes       int     `json:"max_reachable_nodes"`
	MaxDestinationExplore   int     `json:"max_destination_exploration"`
	EdgeOverlapThreshold    float64 `json:"edge_overlap_threshold"`
	KSPPaths                int     `json:"ksp_paths"`
	MinOutboundKm           float64 `json:"min_outbound_km"`
	DistanceRangeKm         [2]float64 `json:"distance_range_km"`
	MaxRoutesToKeep         int     `json:"max_routes_to_keep"`
}

// Config holds every tunable of the processing pipeline.
// Zero values are replaced by Default(); Load() applies env overrides on top.
type Config struct {
	Region string `json:"region"`

	MinSegmentLengthM      float64 `json:"min_segment_length_m"`
	TopologyToleranceM     float64 `json:"topology_tolerance_m"`
	IntersectionToleranceM float64 `json:"intersection_tolerance_m"`
	MaxPasses              int     `json:"max_passes"`

	MaxEdgeLengthKm float64 `json:"max_edge_length_km"`
	MaxSingleEdgeKm float64 `json:"max_single_edge_km"`

	EndpointSelection        EndpointSelection  `json:"endpoint_selection"`
	Trailheads               []models.Trailhead `json:"trailheads"`
	MaxEndpointsPerComponent int                `json:"max_endpoints_per_component"`

	TargetRoutesPerPattern int       `json:"target_routes_per_pattern"`
	ToleranceLadderPercent []float64 `json:"tolerance_ladder_percent"`

	KSPK          int `json:"ksp_k"`
	HawickMaxRows int `json:"hawick_max_rows"`

	Lollipop LollipopConfig `json:"lollipop"`

	DedupThresholdJaccard float64 `json:"dedup_threshold_jaccard"`
	ComponentMinNodes     int     `json:"component_min_nodes"`
	IncludeP2PInOutput    bool    `json:"include_p2p_in_output"`
	LoopIgnoreElevation   bool    `json:"loop_ignore_elevation"`

	GenerateLoop         bool `json:"generate_loop"`
	GenerateOutAndBack   bool `json:"generate_out_and_back"`
	GeneratePointToPoint bool `json:"generate_point_to_point"`
	GenerateLollipop     bool `json:"generate_lollipop"`
}

// Default returns the configuration with all documented defaults applied
func Default() *Config {
	return &Config{
		MinSegmentLengthM:      0,
		TopologyToleranceM:     0.1,
		IntersectionToleranceM: 2.0,
		MaxPasses:              5,

		MaxEdgeLengthKm: 50.0,
		MaxSingleEdgeKm: 2.0,

		EndpointSelection:        EndpointAutomatic,
		MaxEndpointsPerComponent: 50,

		TargetRoutesPerPattern: 10,
		ToleranceLadderPercent: []float64{10, 20, 35, 50},

		KSPK:          10,
		HawickMaxRows: 100000,

		Lollipop: LollipopConfig{
			MaxAnchorNodes:        50,
			MaxReachableNodes:     500,
			MaxDestinationExplore: 50,
			EdgeOverlapThreshold:  0.25,
			KSPPaths:              8,
			MinOutboundKm:         1.0,
			MaxRoutesToKeep:       100,
		},

		DedupThresholdJaccard: 0.5,
		ComponentMinNodes:     2,

		GenerateLoop:         true,
		GenerateOutAndBack:   true,
		GeneratePointToPoint: true,
		GenerateLollipop:     true,
	}
}

// Load returns the default configuration with TRAILFORGE_* environment
// variable overrides applied
func Load() *Config {
	cfg := Default()

	cfg.Region = getEnv("TRAILFORGE_REGION", cfg.Region)
	cfg.MinSegmentLengthM = getEnvFloat("TRAILFORGE_MIN_SEGMENT_LENGTH_M", cfg.MinSegmentLengthM)
	cfg.TopologyToleranceM = getEnvFloat("TRAILFORGE_TOPOLOGY_TOLERANCE_M", cfg.TopologyToleranceM)
	cfg.IntersectionToleranceM = getEnvFloat("TRAILFORGE_INTERSECTION_TOLERANCE_M", cfg.IntersectionToleranceM)
	cfg.MaxPasses = getEnvInt("TRAILFORGE_MAX_PASSES", cfg.MaxPasses)
	cfg.MaxEdgeLengthKm = getEnvFloat("TRAILFORGE_MAX_EDGE_LENGTH_KM", cfg.MaxEdgeLengthKm)
	cfg.MaxSingleEdgeKm = getEnvFloat("TRAILFORGE_MAX_SINGLE_EDGE_KM", cfg.MaxSingleEdgeKm)
	cfg.MaxEndpointsPerComponent = getEnvInt("TRAILFORGE_MAX_ENDPOINTS", cfg.MaxEndpointsPerComponent)
	cfg.TargetRoutesPerPattern = getEnvInt("TRAILFORGE_TARGET_ROUTES", cfg.TargetRoutesPerPattern)
	cfg.KSPK = getEnvInt("TRAILFORGE_KSP_K", cfg.KSPK)
	cfg.HawickMaxRows = getEnvInt("TRAILFORGE_HAWICK_MAX_ROWS", cfg.HawickMaxRows)
	cfg.DedupThresholdJaccard = getEnvFloat("TRAILFORGE_DEDUP_THRESHOLD", cfg.DedupThresholdJaccard)
	cfg.ComponentMinNodes = getEnvInt("TRAILFORGE_COMPONENT_MIN_NODES", cfg.ComponentMinNodes)

	if sel := os.Getenv("TRAILFORGE_ENDPOINT_SELECTION"); sel != "" {
		cfg.EndpointSelection = EndpointSelection(sel)
	}
	if ladder := os.Getenv("TRAILFORGE_TOLERANCE_LADDER"); ladder != "" {
		if parsed, err := parseFloatList(ladder); err == nil && len(parsed) > 0 {
			cfg.ToleranceLadderPercent = parsed
		}
	}

	return cfg
}

// LoadFile reads a JSON config file over the defaults
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate rejects self-contradictory configurations. These are fatal: a bad
// configuration aborts the run before any stage executes.
func (c *Config) Validate() error {
	if c.MinSegmentLengthM < 0 {
		return fmt.Errorf("min_segment_length_m must be >= 0, got %v", c.MinSegmentLengthM)
	}
	if c.TopologyToleranceM < 0 {
		return fmt.Errorf("topology_tolerance_m must be >= 0, got %v", c.TopologyToleranceM)
	}
	if c.MaxEdgeLengthKm <= 0 {
		return fmt.Errorf("max_edge_length_km must be > 0, got %v", c.MaxEdgeLengthKm)
	}
	if c.MaxPasses < 1 {
		return fmt.Errorf("max_passes must be >= 1, got %d", c.MaxPasses)
	}
	if len(c.ToleranceLadderPercent) == 0 {
		return fmt.Errorf("tolerance_ladder_percent must not be empty")
	}
	for i := 1; i < len(c.ToleranceLadderPercent); i++ {
		if c.ToleranceLadderPercent[i] <= c.ToleranceLadderPercent[i-1] {
			return fmt.Errorf("tolerance_ladder_percent must be strictly increasing")
		}
	}
	if c.EndpointSelection != EndpointManual && c.EndpointSelection != EndpointAutomatic {
		return fmt.Errorf("endpoint_selection must be manual or automatic, got %q", c.EndpointSelection)
	}
	if c.EndpointSelection == EndpointManual && len(c.Trailheads) == 0 {
		return fmt.Errorf("endpoint_selection=manual requires at least one trailhead")
	}
	if c.Lollipop.EdgeOverlapThreshold < 0 || c.Lollipop.EdgeOverlapThreshold > 1 {
		return fmt.Errorf("lollipop edge_overlap_threshold must be in [0,1], got %v", c.Lollipop.EdgeOverlapThreshold)
	}
	return nil
}

func parseFloatList(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
