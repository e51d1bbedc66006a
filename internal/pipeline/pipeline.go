package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/geometry"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
	"github.com/trailforge/trailforge_core/internal/routing"
)

// Result is the complete output of a pipeline run: every intermediate
// artifact plus the run summary
type Result struct {
	CleanTrails []models.Trail
	Segments    []models.Segment
	Graph       *graph.Graph
	Components  []models.Component
	Routes      []models.RouteRecommendation
	Summary     *models.RunSummary
}

// Pipeline runs the three processing layers in sequence: geometry cleanup
// and splitting, graph construction, route generation. Stages communicate
// by value; each stage commits before the next reads.
type Pipeline struct {
	cfg *config.Config
}

// New creates a pipeline for the given configuration
func New(cfg *config.Config) *Pipeline {
	return &Pipeline{cfg: cfg}
}

// Run executes the full pipeline over the input trails. Data-level errors
// accumulate in the summary; only invariant violations, cancellation or an
// empty population abort the run.
func (p *Pipeline) Run(ctx context.Context, trails []models.Trail, patterns []models.RoutePattern) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(trails) == 0 {
		return nil, fmt.Errorf("no input trails")
	}

	summary := models.NewRunSummary(p.cfg.Region)
	summary.TrailsIn = len(trails)
	result := &Result{Summary: summary}

	// Layer 1a: geometry preprocessing
	log.Printf("Step 1/5: Preprocessing %d trails...", len(trails))
	start := time.Now()
	clean, err := geometry.NewPreprocessor(p.cfg.MinSegmentLengthM, p.cfg.MaxPasses).Clean(ctx, trails, summary)
	summary.Timing("preprocess", time.Since(start))
	if err != nil {
		return result, fmt.Errorf("preprocessing failed: %w", err)
	}
	result.CleanTrails = clean
	summary.TrailsClean = len(clean)

	// Layer 1b: splitting at intersections
	log.Printf("Step 2/5: Splitting %d trails at intersections...", len(clean))
	start = time.Now()
	segments, err := geometry.NewSplitter(p.cfg.IntersectionToleranceM, p.cfg.Region).Split(ctx, clean, summary)
	summary.Timing("split", time.Since(start))
	if err != nil {
		return result, fmt.Errorf("splitting failed: %w", err)
	}
	result.Segments = segments

	// Layer 2a/2b: noding and annotation
	log.Printf("Step 3/5: Building topology from %d segments...", len(segments))
	start = time.Now()
	g, err := graph.NewNoder(p.cfg.TopologyToleranceM, p.cfg.MaxEdgeLengthKm).Build(ctx, segments, summary)
	summary.Timing("node", time.Since(start))
	if err != nil {
		return result, fmt.Errorf("noding failed: %w", err)
	}
	if err := verifyGraph(g); err != nil {
		return result, fmt.Errorf("graph invariant violated: %w", err)
	}
	result.Graph = g

	// Layer 2c: connected components
	log.Printf("Step 4/5: Labelling connected components...")
	start = time.Now()
	components := graph.FindComponents(g)
	summary.Timing("components", time.Since(start))
	summary.Components = len(components)
	result.Components = components
	log.Printf("Found %d components", len(components))

	// Layer 3: route generation
	log.Printf("Step 5/5: Generating routes for %d patterns...", len(patterns))
	start = time.Now()
	routes, err := routing.NewSearcher(p.cfg, p.cfg.Region).Generate(ctx, g, components, patterns, summary)
	summary.Timing("routes", time.Since(start))
	result.Routes = routes
	if err != nil {
		return result, fmt.Errorf("route generation failed: %w", err)
	}

	log.Printf("Pipeline complete: %d trails -> %d segments -> %d vertices / %d edges -> %d routes",
		summary.TrailsIn, len(segments), summary.Vertices, summary.Edges, len(routes))

	return result, nil
}

// verifyGraph fail-fasts on impossible topology: these indicate a noder bug,
// not bad data
func verifyGraph(g *graph.Graph) error {
	for _, id := range g.EdgeIDs() {
		e := g.Edges[id]
		if e.Source == e.Target {
			return fmt.Errorf("edge %d is a self-loop at vertex %d", e.ID, e.Source)
		}
		if _, ok := g.Vertices[e.Source]; !ok {
			return fmt.Errorf("edge %d references missing source vertex %d", e.ID, e.Source)
		}
		if _, ok := g.Vertices[e.Target]; !ok {
			return fmt.Errorf("edge %d references missing target vertex %d", e.ID, e.Target)
		}
	}

	counts := make(map[int64]int)
	for _, id := range g.EdgeIDs() {
		counts[g.Edges[id].Source]++
		counts[g.Edges[id].Target]++
	}
	for _, id := range g.VertexIDs() {
		if g.Vertices[id].Cnt != counts[id] {
			return fmt.Errorf("vertex %d has cnt=%d but %d incident edges", id, g.Vertices[id].Cnt, counts[id])
		}
	}

	return nil
}

// DefaultPatterns is the built-in pattern set used when no pattern source is
// supplied
func DefaultPatterns() []models.RoutePattern {
	ladder := []float64{10, 20, 35, 50}
	return []models.RoutePattern{
		{PatternName: "loop-5k", TargetDistanceKm: 5, TargetElevationGainM: 150, Shape: models.ShapeLoop, TolerancePercent: ladder},
		{PatternName: "loop-10k", TargetDistanceKm: 10, TargetElevationGainM: 300, Shape: models.ShapeLoop, TolerancePercent: ladder},
		{PatternName: "loop-20k", TargetDistanceKm: 20, TargetElevationGainM: 600, Shape: models.ShapeLoop, TolerancePercent: ladder},
		{PatternName: "out-and-back-10k", TargetDistanceKm: 10, TargetElevationGainM: 300, Shape: models.ShapeOutAndBack, TolerancePercent: ladder},
		{PatternName: "point-to-point-8k", TargetDistanceKm: 8, TargetElevationGainM: 250, Shape: models.ShapePointToPoint, TolerancePercent: ladder},
		{PatternName: "lollipop-15k", TargetDistanceKm: 15, TargetElevationGainM: 450, Shape: models.ShapeLollipop, TolerancePercent: ladder},
	}
}
