package routing

import (
	"context"
	"errors"
	"sort"

	"github.com/trailforge/trailforge_core/internal/graph"
)

// KShortestPaths enumerates up to k loopless paths from source to target in
// non-decreasing cost order using Yen's algorithm. Spur searches reuse
// ShortestPath with edge/vertex exclusions layered over opts.
func KShortestPaths(ctx context.Context, g *graph.Graph, source, target int64, k int, opts SearchOptions) ([]*Path, error) {
	if k <= 0 {
		k = 1
	}

	best, err := ShortestPath(ctx, g, source, target, opts)
	if err != nil {
		return nil, err
	}

	accepted := []*Path{best}
	var candidates []*Path

	for len(accepted) < k {
		select {
		case <-ctx.Done():
			return accepted, ctx.Err()
		default:
		}

		prev := accepted[len(accepted)-1]

		for spurIdx := 0; spurIdx < len(prev.VertexIDs)-1; spurIdx++ {
			spurVertex := prev.VertexIDs[spurIdx]
			rootVertices := prev.VertexIDs[:spurIdx+1]
			rootEdges := prev.EdgeIDs[:spurIdx]

			spurOpts := SearchOptions{
				MaxSingleEdgeKm:  opts.MaxSingleEdgeKm,
				ExcludedEdges:    make(map[int64]bool),
				ExcludedVertices: make(map[int64]bool),
			}
			for id := range opts.ExcludedEdges {
				spurOpts.ExcludedEdges[id] = true
			}
			for id := range opts.ExcludedVertices {
				spurOpts.ExcludedVertices[id] = true
			}

			// block the next edge of every accepted path sharing this root
			for _, p := range accepted {
				if sharesRoot(p, rootEdges, rootVertices) && spurIdx < len(p.EdgeIDs) {
					spurOpts.ExcludedEdges[p.EdgeIDs[spurIdx]] = true
				}
			}
			// block root vertices except the spur itself
			for _, v := range rootVertices[:len(rootVertices)-1] {
				spurOpts.ExcludedVertices[v] = true
			}

			spur, err := ShortestPath(ctx, g, spurVertex, target, spurOpts)
			if err != nil {
				if errors.Is(err, ErrNoPath) {
					continue
				}
				return accepted, err
			}

			candidate := joinPaths(g, rootVertices, rootEdges, spur)
			if candidate != nil && !containsPath(candidates, candidate) && !containsPath(accepted, candidate) {
				candidates = append(candidates, candidate)
			}
		}

		if len(candidates) == 0 {
			break
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].LengthKm != candidates[j].LengthKm {
				return candidates[i].LengthKm < candidates[j].LengthKm
			}
			return lessEdgeSeq(candidates[i].EdgeIDs, candidates[j].EdgeIDs)
		})

		accepted = append(accepted, candidates[0])
		candidates = candidates[1:]
	}

	return accepted, nil
}

// sharesRoot reports whether p begins with exactly the given root edge and
// vertex prefix
func sharesRoot(p *Path, rootEdges []int64, rootVertices []int64) bool {
	if len(p.EdgeIDs) < len(rootEdges) || len(p.VertexIDs) < len(rootVertices) {
		return false
	}
	for i, id := range rootEdges {
		if p.EdgeIDs[i] != id {
			return false
		}
	}
	for i, v := range rootVertices {
		if p.VertexIDs[i] != v {
			return false
		}
	}
	return true
}

// joinPaths concatenates a root prefix with a spur path, replaying the root
// edges so length and gain accumulate direction-aware. Returns nil if the
// joint would revisit a vertex (non-simple path).
func joinPaths(g *graph.Graph, rootVertices []int64, rootEdges []int64, spur *Path) *Path {
	path := &Path{VertexIDs: []int64{rootVertices[0]}}
	for _, eid := range rootEdges {
		path.appendEdge(g.Edges[eid], path.End())
	}
	for _, eid := range spur.EdgeIDs {
		path.appendEdge(g.Edges[eid], path.End())
	}

	seen := make(map[int64]bool, len(path.VertexIDs))
	for _, v := range path.VertexIDs {
		if seen[v] {
			return nil
		}
		seen[v] = true
	}

	return path
}

// containsPath reports whether the set already holds a path with the same
// edge sequence
func containsPath(set []*Path, p *Path) bool {
	for _, q := range set {
		if sameEdgeSeq(q.EdgeIDs, p.EdgeIDs) {
			return true
		}
	}
	return false
}

func sameEdgeSeq(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lessEdgeSeq(a, b []int64) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
