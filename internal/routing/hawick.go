package routing

import (
	"context"

	"github.com/trailforge/trailforge_core/internal/graph"
)

// CycleEnumerator enumerates simple cycles of the undirected graph in the
// manner of Hawick-James circuit search, bounded by a row cap and a length
// upper bound. Cycles are vertex-simple; every edge is used at most once, so
// two parallel edges between the same vertices form a valid 2-edge cycle.
type CycleEnumerator struct {
	// MaxRows caps the total DFS expansions; enumeration stops when hit
	MaxRows int
	// MaxLengthKm prunes any partial cycle already longer than this
	MaxLengthKm float64
	// Opts filters the edge set under search
	Opts SearchOptions
}

// Enumerate walks all simple cycles and calls emit for each. Returning false
// from emit stops the enumeration. The bool result reports whether the row
// cap truncated the search.
func (ce *CycleEnumerator) Enumerate(ctx context.Context, g *graph.Graph, emit func(*Path) bool) (truncated bool, err error) {
	rows := 0
	stopped := false

	// anchored at each start vertex in ascending order; only vertices with
	// id >= start participate, so each cycle is found exactly once at its
	// smallest vertex
	for _, start := range g.VertexIDs() {
		if stopped || rows >= ce.MaxRows {
			break
		}

		select {
		case <-ctx.Done():
			return rows >= ce.MaxRows, ctx.Err()
		default:
		}

		path := &Path{VertexIDs: []int64{start}}
		onPath := map[int64]bool{start: true}
		usedEdges := map[int64]bool{}

		var dfs func(at int64) bool
		dfs = func(at int64) bool {
			for _, e := range g.IncidentEdges(at) {
				if rows >= ce.MaxRows {
					return false
				}
				rows++
				if rows%ctxCheckInterval == 0 {
					select {
					case <-ctx.Done():
						return false
					default:
					}
				}

				if usedEdges[e.ID] || !ce.Opts.edgeUsable(e) {
					continue
				}
				next := e.Other(at)
				if next < start {
					continue
				}

				if next == start {
					if len(path.EdgeIDs) < 1 {
						continue
					}
					closed := path.Clone()
					closed.appendEdge(e, at)
					if ce.MaxLengthKm > 0 && closed.LengthKm > ce.MaxLengthKm {
						continue
					}
					if !canonicalOrientation(closed) {
						continue
					}
					if !emit(closed) {
						stopped = true
						return false
					}
					continue
				}

				if onPath[next] {
					continue
				}
				if ce.MaxLengthKm > 0 && path.LengthKm+e.LengthKm > ce.MaxLengthKm {
					continue
				}

				prevGain, prevLoss := path.GainM, path.LossM
				path.appendEdge(e, at)
				onPath[next] = true
				usedEdges[e.ID] = true

				if !dfs(next) {
					return false
				}

				usedEdges[e.ID] = false
				delete(onPath, next)
				path.VertexIDs = path.VertexIDs[:len(path.VertexIDs)-1]
				path.EdgeIDs = path.EdgeIDs[:len(path.EdgeIDs)-1]
				path.LengthKm -= e.LengthKm
				path.GainM, path.LossM = prevGain, prevLoss
			}
			return true
		}

		dfs(start)
	}

	return rows >= ce.MaxRows, nil
}

// canonicalOrientation keeps exactly one of the two traversal directions of
// each undirected cycle: the one whose second vertex is smaller than its
// second-to-last. Two-edge cycles are oriented by edge id instead.
func canonicalOrientation(p *Path) bool {
	n := len(p.VertexIDs)
	if len(p.EdgeIDs) == 2 {
		return p.EdgeIDs[0] < p.EdgeIDs[1]
	}
	return p.VertexIDs[1] < p.VertexIDs[n-2]
}
