package routing

import (
	"context"
	"errors"
	"log"
	"sort"

	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// lollipopCandidates composes stem + loop routes: from each anchor vertex,
// walk out to a reachable destination and return by a sufficiently different
// path. Candidates are capped and ordered deterministically.
func (s *Searcher) lollipopCandidates(ctx context.Context, sub *graph.Graph, endpoints []int64, pattern models.RoutePattern, level ladderLevel, opts SearchOptions, summary *models.RunSummary) ([]candidate, error) {
	lcfg := s.cfg.Lollipop

	anchors := endpoints
	if len(anchors) > lcfg.MaxAnchorNodes {
		anchors = anchors[:lcfg.MaxAnchorNodes]
	}

	var out []candidate

	for _, anchor := range anchors {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		default:
		}

		// 1. reachable destinations within the outbound window
		dists, truncated := Reachable(ctx, sub, anchor, pattern.TargetDistanceKm/2, lcfg.MaxReachableNodes, opts)
		if truncated {
			summary.Record(models.ErrCapacity, "lollipop_max_reachable")
		}

		type dest struct {
			id   int64
			dist float64
		}
		var dests []dest
		for v, d := range dists {
			if v == anchor || d < lcfg.MinOutboundKm {
				continue
			}
			dests = append(dests, dest{id: v, dist: d})
		}
		sort.Slice(dests, func(i, j int) bool {
			if dests[i].dist != dests[j].dist {
				return dests[i].dist > dests[j].dist // longest stems first
			}
			return dests[i].id < dests[j].id
		})
		if len(dests) > lcfg.MaxDestinationExplore {
			dests = dests[:lcfg.MaxDestinationExplore]
		}

		// 2-4. stem + K return paths, filtered by edge overlap
		for _, d := range dests {
			stem, err := ShortestPath(ctx, sub, anchor, d.id, opts)
			if err != nil {
				if errors.Is(err, ErrNoPath) {
					continue
				}
				return out, err
			}

			loops, err := KShortestPaths(ctx, sub, d.id, anchor, lcfg.KSPPaths, opts)
			if err != nil {
				if errors.Is(err, ErrNoPath) {
					continue
				}
				return out, err
			}

			for _, loop := range loops {
				if edgeOverlapRatio(stem, loop) > lcfg.EdgeOverlapThreshold {
					continue
				}

				composite := stem.Clone()
				for _, eid := range loop.EdgeIDs {
					composite.appendEdge(sub.Edges[eid], composite.End())
				}

				if lcfg.DistanceRangeKm[1] > 0 &&
					(composite.LengthKm < lcfg.DistanceRangeKm[0] || composite.LengthKm > lcfg.DistanceRangeKm[1]) {
					continue
				}

				out = append(out, candidate{
					path:       composite,
					realizedKm: composite.LengthKm,
					realizedGn: composite.GainM,
				})
			}
		}
	}

	// 5. keep the top candidates by length within the target window
	inRange := out[:0]
	for _, c := range out {
		if c.realizedKm >= level.minKm && c.realizedKm <= level.maxKm {
			inRange = append(inRange, c)
		}
	}
	sort.SliceStable(inRange, func(i, j int) bool {
		if inRange[i].realizedKm != inRange[j].realizedKm {
			return inRange[i].realizedKm > inRange[j].realizedKm
		}
		return lessEdgeSeq(inRange[i].path.EdgeIDs, inRange[j].path.EdgeIDs)
	})
	if len(inRange) > lcfg.MaxRoutesToKeep {
		log.Printf("Warning: lollipop candidates capped at %d (had %d)", lcfg.MaxRoutesToKeep, len(inRange))
		inRange = inRange[:lcfg.MaxRoutesToKeep]
	}

	return inRange, nil
}

// edgeOverlapRatio is |E(stem) n E(loop)| / |E(stem)|
func edgeOverlapRatio(stem, loop *Path) float64 {
	if len(stem.EdgeIDs) == 0 {
		return 0
	}

	stemSet := make(map[int64]bool, len(stem.EdgeIDs))
	for _, id := range stem.EdgeIDs {
		stemSet[id] = true
	}

	shared := 0
	for _, id := range loop.EdgeIDs {
		if stemSet[id] {
			shared++
		}
	}

	return float64(shared) / float64(len(stem.EdgeIDs))
}
