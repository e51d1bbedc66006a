package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/config"
	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// minEdgesByShape is the minimum path edge count accepted per route shape
var minEdgesByShape = map[models.RouteShape]int{
	models.ShapeLoop:         3,
	models.ShapeOutAndBack:   2,
	models.ShapePointToPoint: 1,
	models.ShapeLollipop:     3,
}

// routeNamespace seeds the deterministic route uuid derivation
var routeNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("trailforge.route"))

// outAndBackPrune is the straight-line distance heuristic: endpoint pairs
// further apart than this fraction of the target are not worth a KSP run
const outAndBackPrune = 0.7

// Searcher generates route recommendations for patterns over a graph
type Searcher struct {
	cfg    *config.Config
	region string
}

// NewSearcher creates a searcher bound to a configuration and region tag
func NewSearcher(cfg *config.Config, region string) *Searcher {
	return &Searcher{cfg: cfg, region: region}
}

// ladderLevel is one tolerance step of a pattern's ladder
type ladderLevel struct {
	percent     float64
	minKm       float64
	maxKm       float64
	minGainM    float64
	maxGainM    float64
	targetKm    float64
	targetGainM float64
}

func newLadderLevel(p models.RoutePattern, percent float64) ladderLevel {
	frac := percent / 100
	return ladderLevel{
		percent:     percent,
		targetKm:    p.TargetDistanceKm,
		targetGainM: p.TargetElevationGainM,
		minKm:       p.TargetDistanceKm * (1 - frac),
		maxKm:       p.TargetDistanceKm * (1 + frac),
		minGainM:    p.TargetElevationGainM * (1 - frac),
		maxGainM:    p.TargetElevationGainM * (1 + frac),
	}
}

// Generate runs every enabled pattern over every component and returns the
// accepted recommendations in deterministic order
func (s *Searcher) Generate(ctx context.Context, g *graph.Graph, components []models.Component, patterns []models.RoutePattern, summary *models.RunSummary) ([]models.RouteRecommendation, error) {
	var out []models.RouteRecommendation

	for _, pattern := range patterns {
		if !s.enabled(pattern.Shape) {
			continue
		}

		routes, err := s.generatePattern(ctx, g, components, pattern, summary)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				summary.Cancelled = true
				summary.Record(models.ErrCancelled, pattern.PatternName)
				return out, err
			}
			return out, err
		}

		summary.RoutesPerPattern[pattern.PatternName] = len(routes)
		if len(routes) == 0 {
			summary.Record(models.ErrToleranceExhausted, pattern.PatternName)
			log.Printf("Warning: pattern %q produced no routes at any tolerance level", pattern.PatternName)
		}

		if pattern.Shape == models.ShapePointToPoint && !s.cfg.IncludeP2PInOutput {
			continue
		}
		out = append(out, routes...)
	}

	return out, nil
}

func (s *Searcher) enabled(shape models.RouteShape) bool {
	switch shape {
	case models.ShapeLoop:
		return s.cfg.GenerateLoop
	case models.ShapeOutAndBack:
		return s.cfg.GenerateOutAndBack
	case models.ShapePointToPoint:
		return s.cfg.GeneratePointToPoint
	case models.ShapeLollipop:
		return s.cfg.GenerateLollipop
	}
	return false
}

// generatePattern walks the tolerance ladder, loosest last, accumulating
// accepted routes until the per-pattern target is reached
func (s *Searcher) generatePattern(ctx context.Context, g *graph.Graph, components []models.Component, pattern models.RoutePattern, summary *models.RunSummary) ([]models.RouteRecommendation, error) {
	ladder := pattern.TolerancePercent
	if len(ladder) == 0 {
		ladder = s.cfg.ToleranceLadderPercent
	}

	deduper := NewDeduper(s.cfg.DedupThresholdJaccard)
	var accepted []models.RouteRecommendation

	for _, percent := range ladder {
		if len(accepted) >= s.cfg.TargetRoutesPerPattern {
			break
		}
		level := newLadderLevel(pattern, percent)

		for _, comp := range components {
			if len(accepted) >= s.cfg.TargetRoutesPerPattern {
				break
			}
			if len(comp.VertexIDs) < s.cfg.ComponentMinNodes {
				summary.Record(models.ErrGraphIsolated, fmt.Sprintf("component-%d", comp.ID))
				continue
			}

			sub := graph.Subgraph(g, comp)
			endpoints := SelectEndpoints(sub, comp, s.cfg, summary)

			candidates, err := s.candidatesFor(ctx, sub, endpoints, pattern, level, summary)
			if err != nil {
				return accepted, err
			}

			for _, cand := range candidates {
				if len(accepted) >= s.cfg.TargetRoutesPerPattern {
					break
				}
				rec, ok := s.evaluate(sub, cand, pattern, level, deduper)
				if ok {
					accepted = append(accepted, rec)
				}
			}
		}
	}

	return accepted, nil
}

// candidate is a path plus its realized metrics (which differ from the raw
// path metrics for out-and-back)
type candidate struct {
	path       *Path
	realizedKm float64
	realizedGn float64
}

func (s *Searcher) candidatesFor(ctx context.Context, sub *graph.Graph, endpoints []int64, pattern models.RoutePattern, level ladderLevel, summary *models.RunSummary) ([]candidate, error) {
	opts := SearchOptions{MaxSingleEdgeKm: s.cfg.MaxSingleEdgeKm}

	switch pattern.Shape {
	case models.ShapePointToPoint:
		return s.pointToPointCandidates(ctx, sub, endpoints, opts)
	case models.ShapeOutAndBack:
		return s.outAndBackCandidates(ctx, sub, endpoints, pattern, opts)
	case models.ShapeLoop:
		return s.loopCandidates(ctx, sub, level, opts, summary)
	case models.ShapeLollipop:
		return s.lollipopCandidates(ctx, sub, endpoints, pattern, level, opts, summary)
	}
	return nil, fmt.Errorf("unknown route shape %q", pattern.Shape)
}

// pointToPointCandidates computes the shortest path between every endpoint
// pair. A failing pair is skipped; it does not abort the pattern.
func (s *Searcher) pointToPointCandidates(ctx context.Context, sub *graph.Graph, endpoints []int64, opts SearchOptions) ([]candidate, error) {
	var out []candidate

	for i := 0; i < len(endpoints); i++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		for j := i + 1; j < len(endpoints); j++ {
			path, err := ShortestPath(ctx, sub, endpoints[i], endpoints[j], opts)
			if err != nil {
				if errors.Is(err, ErrNoPath) {
					continue
				}
				return out, err
			}
			out = append(out, candidate{path: path, realizedKm: path.LengthKm, realizedGn: path.GainM})
		}
	}

	return out, nil
}

// outAndBackCandidates runs KSP between endpoint pairs whose straight-line
// distance fits the target, doubling the forward metrics
func (s *Searcher) outAndBackCandidates(ctx context.Context, sub *graph.Graph, endpoints []int64, pattern models.RoutePattern, opts SearchOptions) ([]candidate, error) {
	var out []candidate
	pruneKm := outAndBackPrune * pattern.TargetDistanceKm

	for i := 0; i < len(endpoints); i++ {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}
		for j := i + 1; j < len(endpoints); j++ {
			a := sub.Vertices[endpoints[i]]
			b := sub.Vertices[endpoints[j]]
			if geo.EquirectKm(a.Point, b.Point) > pruneKm {
				continue
			}

			paths, err := KShortestPaths(ctx, sub, endpoints[i], endpoints[j], s.cfg.KSPK, opts)
			if err != nil {
				if errors.Is(err, ErrNoPath) {
					continue
				}
				return out, err
			}

			for _, p := range paths {
				out = append(out, candidate{
					path:       p,
					realizedKm: 2 * p.LengthKm,
					realizedGn: p.GainM + p.LossM,
				})
			}
		}
	}

	return out, nil
}

// loopCandidates enumerates simple cycles within the level's length window
func (s *Searcher) loopCandidates(ctx context.Context, sub *graph.Graph, level ladderLevel, opts SearchOptions, summary *models.RunSummary) ([]candidate, error) {
	enum := &CycleEnumerator{
		MaxRows:     s.cfg.HawickMaxRows,
		MaxLengthKm: level.maxKm,
		Opts:        opts,
	}

	var out []candidate
	truncated, err := enum.Enumerate(ctx, sub, func(cycle *Path) bool {
		if cycle.LengthKm >= level.minKm {
			out = append(out, candidate{path: cycle, realizedKm: cycle.LengthKm, realizedGn: cycle.GainM})
		}
		return true
	})
	if err != nil {
		return out, err
	}
	if truncated {
		summary.Record(models.ErrCapacity, "hawick_max_rows")
		log.Printf("Warning: cycle enumeration hit the row cap (%d); using partial results", s.cfg.HawickMaxRows)
	}

	return out, nil
}

// evaluate applies the common acceptance filter and builds a recommendation
func (s *Searcher) evaluate(sub *graph.Graph, cand candidate, pattern models.RoutePattern, level ladderLevel, deduper *Deduper) (models.RouteRecommendation, bool) {
	var empty models.RouteRecommendation

	edgeCount := len(cand.path.EdgeIDs)
	if pattern.Shape == models.ShapeOutAndBack {
		edgeCount *= 2 // the return leg walks the same edges again
	}
	if edgeCount < minEdgesByShape[pattern.Shape] {
		return empty, false
	}
	if cand.realizedKm < level.minKm || cand.realizedKm > level.maxKm {
		return empty, false
	}

	checkElevation := !(pattern.Shape == models.ShapeLoop && s.cfg.LoopIgnoreElevation)
	if checkElevation {
		if pattern.TargetElevationGainM > 0 {
			if cand.realizedGn < level.minGainM || cand.realizedGn > level.maxGainM {
				return empty, false
			}
		} else if cand.realizedGn > 1e-6 {
			return empty, false
		}
	}

	if pattern.Shape == models.ShapeLoop && cand.path.Start() != cand.path.End() {
		return empty, false
	}

	trailNames := collectTrailNames(sub, cand.path)
	ok, similarity := deduper.Accept(trailNames)
	if !ok {
		return empty, false
	}

	rec := s.buildRecommendation(sub, cand, pattern, level)
	rec.TrailNames = trailNames
	rec.SimilarityScore = similarity
	return rec, true
}

// buildRecommendation assembles the full recommendation record, including
// the aggregated geometry and the deterministic uuid
func (s *Searcher) buildRecommendation(sub *graph.Graph, cand candidate, pattern models.RoutePattern, level ladderLevel) models.RouteRecommendation {
	forwardLine, forwardZ := assembleGeometry(sub, cand.path)

	rec := models.RouteRecommendation{
		UUID:                 routeUUID(pattern.Shape, cand.path.EdgeIDs),
		Region:               s.region,
		PatternName:          pattern.PatternName,
		TargetDistanceKm:     pattern.TargetDistanceKm,
		TargetElevationGainM: pattern.TargetElevationGainM,
		LengthKm:             cand.realizedKm,
		ElevationGainM:       cand.realizedGn,
		Shape:                pattern.Shape,
		EdgeIDs:              append([]int64(nil), cand.path.EdgeIDs...),
		VertexIDs:            append([]int64(nil), cand.path.VertexIDs...),
		RouteScore:           routeScore(cand.realizedKm, cand.realizedGn, level),
		Geometry:             []orb.LineString{forwardLine},
		Elevations:           [][]float64{forwardZ},
		CreatedAt:            time.Now().UTC(),
	}

	if pattern.Shape == models.ShapeOutAndBack {
		revLine, revZ := geo.Reverse(forwardLine, forwardZ)
		rec.Geometry = append(rec.Geometry, revLine)
		rec.Elevations = append(rec.Elevations, revZ)
	}

	return rec
}

// routeScore averages the distance and elevation sub-scores at the accepted
// tolerance level. Each sub-score is 1 at an exact match and decays linearly
// to 0 at the level boundary.
func routeScore(realizedKm, realizedGainM float64, level ladderLevel) float64 {
	frac := level.percent / 100

	distScore := subScore(realizedKm, level.targetKm, frac)
	elevScore := subScore(realizedGainM, level.targetGainM, frac)

	return (distScore + elevScore) / 2
}

func subScore(actual, target, frac float64) float64 {
	if target <= 0 {
		if actual <= 1e-6 {
			return 1
		}
		return 0
	}
	return math.Max(0, 1-math.Abs(actual-target)/(target*frac))
}

// routeUUID derives a stable uuid from the route shape and edge sequence,
// so identical runs produce identical ids
func routeUUID(shape models.RouteShape, edgeIDs []int64) string {
	name := string(shape)
	for _, id := range edgeIDs {
		name += fmt.Sprintf(":%d", id)
	}
	return uuid.NewSHA1(routeNamespace, []byte(name)).String()
}

// assembleGeometry stitches the path's edge geometries into one linestring,
// orienting each edge to the walk direction
func assembleGeometry(sub *graph.Graph, p *Path) (orb.LineString, []float64) {
	var line orb.LineString
	var elevs []float64

	at := p.Start()
	for _, eid := range p.EdgeIDs {
		e := sub.Edges[eid]
		segLine := e.Geometry
		segZ := e.Elevations
		if e.Target == at {
			segLine, segZ = geo.Reverse(segLine, segZ)
		}

		start := 0
		if len(line) > 0 {
			start = 1 // skip the shared joint vertex
		}
		line = append(line, segLine[start:]...)
		if len(segZ) >= len(segLine) {
			elevs = append(elevs, segZ[start:]...)
		} else {
			for i := start; i < len(segLine); i++ {
				elevs = append(elevs, 0)
			}
		}

		at = e.Other(at)
	}

	return line, elevs
}

// collectTrailNames returns the deduped constituent trail names along a
// path, sorted for stability
func collectTrailNames(sub *graph.Graph, p *Path) []string {
	seen := make(map[string]bool)
	var out []string
	for _, eid := range p.EdgeIDs {
		name := sub.Edges[eid].TrailName
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
