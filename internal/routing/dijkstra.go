package routing

import (
	"container/heap"
	"context"
	"errors"
	"math"

	"github.com/trailforge/trailforge_core/internal/graph"
	"github.com/trailforge/trailforge_core/internal/models"
)

// ErrNoPath is returned when no path exists between the requested vertices
var ErrNoPath = errors.New("no path found")

// ctxCheckInterval is how many heap pops occur between cancellation checks
const ctxCheckInterval = 1000

// Path is a walk over the graph: the vertex sequence and the ordered edges
// connecting consecutive vertices. Gain and loss are direction-aware: an
// edge traversed target-to-source contributes its stored loss as gain.
type Path struct {
	VertexIDs []int64
	EdgeIDs   []int64
	LengthKm  float64
	GainM     float64
	LossM     float64
}

// Clone returns a deep copy of the path
func (p *Path) Clone() *Path {
	return &Path{
		VertexIDs: append([]int64(nil), p.VertexIDs...),
		EdgeIDs:   append([]int64(nil), p.EdgeIDs...),
		LengthKm:  p.LengthKm,
		GainM:     p.GainM,
		LossM:     p.LossM,
	}
}

// Start returns the first vertex of the path
func (p *Path) Start() int64 { return p.VertexIDs[0] }

// End returns the last vertex of the path
func (p *Path) End() int64 { return p.VertexIDs[len(p.VertexIDs)-1] }

// appendEdge extends the path over edge e from vertex at
func (p *Path) appendEdge(e *models.Edge, at int64) {
	next := e.Other(at)
	p.VertexIDs = append(p.VertexIDs, next)
	p.EdgeIDs = append(p.EdgeIDs, e.ID)
	p.LengthKm += e.LengthKm
	if e.Source == at {
		p.GainM += e.ElevationGainM
		p.LossM += e.ElevationLossM
	} else {
		p.GainM += e.ElevationLossM
		p.LossM += e.ElevationGainM
	}
}

// SearchOptions constrain a single shortest-path query
type SearchOptions struct {
	// MaxSingleEdgeKm excludes edges longer than this from the search; 0
	// means no cap
	MaxSingleEdgeKm float64
	// ExcludedEdges and ExcludedVertices are removed from the graph for
	// this query (used by Yen's spur searches)
	ExcludedEdges    map[int64]bool
	ExcludedVertices map[int64]bool
}

func (o *SearchOptions) edgeUsable(e *models.Edge) bool {
	if o.MaxSingleEdgeKm > 0 && e.LengthKm > o.MaxSingleEdgeKm {
		return false
	}
	if o.ExcludedEdges != nil && o.ExcludedEdges[e.ID] {
		return false
	}
	return true
}

func (o *SearchOptions) vertexUsable(v int64) bool {
	return o.ExcludedVertices == nil || !o.ExcludedVertices[v]
}

// ShortestPath runs Dijkstra from source to target over the undirected
// graph, weighting edges by Cost. Returns ErrNoPath when target is
// unreachable under the options.
func ShortestPath(ctx context.Context, g *graph.Graph, source, target int64, opts SearchOptions) (*Path, error) {
	if source == target {
		return nil, ErrNoPath
	}
	if _, ok := g.Vertices[source]; !ok {
		return nil, ErrNoPath
	}
	if _, ok := g.Vertices[target]; !ok {
		return nil, ErrNoPath
	}

	dist := map[int64]float64{source: 0}
	prevEdge := map[int64]int64{}
	prevVertex := map[int64]int64{}
	done := map[int64]bool{}

	pq := &vertexQueue{}
	heap.Init(pq)
	heap.Push(pq, &queueItem{vertex: source, priority: 0})

	popped := 0
	for pq.Len() > 0 {
		popped++
		if popped%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		current := heap.Pop(pq).(*queueItem)
		if done[current.vertex] {
			continue
		}
		done[current.vertex] = true

		if current.vertex == target {
			break
		}

		for _, e := range g.IncidentEdges(current.vertex) {
			if !opts.edgeUsable(e) {
				continue
			}
			next := e.Other(current.vertex)
			if done[next] || !opts.vertexUsable(next) {
				continue
			}

			cost := e.Cost
			if e.Target == current.vertex {
				cost = e.ReverseCost
			}

			tentative := dist[current.vertex] + cost
			if existing, ok := dist[next]; !ok || tentative < existing {
				dist[next] = tentative
				prevEdge[next] = e.ID
				prevVertex[next] = current.vertex
				heap.Push(pq, &queueItem{vertex: next, priority: tentative})
			}
		}
	}

	if !done[target] {
		return nil, ErrNoPath
	}

	// reconstruct backwards then replay forwards to accumulate gain/loss
	var revVertices []int64
	var revEdges []int64
	for v := target; v != source; v = prevVertex[v] {
		revVertices = append(revVertices, v)
		revEdges = append(revEdges, prevEdge[v])
	}

	path := &Path{VertexIDs: []int64{source}}
	for i := len(revEdges) - 1; i >= 0; i-- {
		path.appendEdge(g.Edges[revEdges[i]], path.End())
	}

	return path, nil
}

// Reachable runs a bounded Dijkstra from source and returns the distance in
// km to every vertex within maxKm, visiting at most maxNodes vertices.
// Capacity truncation is reported via the second return value.
func Reachable(ctx context.Context, g *graph.Graph, source int64, maxKm float64, maxNodes int, opts SearchOptions) (map[int64]float64, bool) {
	dist := map[int64]float64{source: 0}
	done := map[int64]bool{}
	truncated := false

	pq := &vertexQueue{}
	heap.Init(pq)
	heap.Push(pq, &queueItem{vertex: source, priority: 0})

	popped := 0
	for pq.Len() > 0 {
		popped++
		if popped%ctxCheckInterval == 0 {
			select {
			case <-ctx.Done():
				return dist, truncated
			default:
			}
		}

		current := heap.Pop(pq).(*queueItem)
		if done[current.vertex] {
			continue
		}
		done[current.vertex] = true

		if maxNodes > 0 && len(done) > maxNodes {
			truncated = true
			break
		}
		if current.priority > maxKm {
			continue
		}

		for _, e := range g.IncidentEdges(current.vertex) {
			if !opts.edgeUsable(e) {
				continue
			}
			next := e.Other(current.vertex)
			if done[next] || !opts.vertexUsable(next) {
				continue
			}

			tentative := dist[current.vertex] + e.Cost
			if tentative > maxKm {
				continue
			}
			if existing, ok := dist[next]; !ok || tentative < existing {
				dist[next] = tentative
				heap.Push(pq, &queueItem{vertex: next, priority: tentative})
			}
		}
	}

	// drop over-distance entries that were relaxed but never finalized
	for v, d := range dist {
		if d > maxKm || math.IsInf(d, 0) {
			delete(dist, v)
		}
	}

	return dist, truncated
}

// queueItem is a heap entry for Dijkstra's open set
type queueItem struct {
	vertex   int64
	priority float64
	index    int
}

// vertexQueue implements heap.Interface for the open set
type vertexQueue []*queueItem

func (pq vertexQueue) Len() int { return len(pq) }

func (pq vertexQueue) Less(i, j int) bool {
	if pq[i].priority != pq[j].priority {
		return pq[i].priority < pq[j].priority
	}
	return pq[i].vertex < pq[j].vertex
}

func (pq vertexQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index = i
	pq[j].index = j
}

func (pq *vertexQueue) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}

func (pq *vertexQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*pq = old[0 : n-1]
	return item
}
