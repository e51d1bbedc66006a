package graph

import (
	"sort"

	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/models"
)

// FindComponents labels connected components over the undirected graph with
// union-find. Component ids are dense 1..K, ordered by the smallest vertex
// id each component owns, so the labelling is stable under edge reordering.
func FindComponents(g *Graph) []models.Component {
	vertexIDs := g.VertexIDs()

	parent := make(map[int64]int64, len(vertexIDs))
	for _, id := range vertexIDs {
		parent[id] = id
	}

	var find func(int64) int64
	find = func(x int64) int64 {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}

	for _, eid := range g.EdgeIDs() {
		e := g.Edges[eid]
		rs, rt := find(e.Source), find(e.Target)
		if rs != rt {
			if rs < rt {
				parent[rt] = rs
			} else {
				parent[rs] = rt
			}
		}
	}

	members := make(map[int64][]int64)
	for _, id := range vertexIDs {
		root := find(id)
		members[root] = append(members[root], id)
	}

	roots := make([]int64, 0, len(members))
	for root := range members {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool {
		return minOf(members[roots[i]]) < minOf(members[roots[j]])
	})

	edgeCounts := make(map[int64]int)
	for _, eid := range g.EdgeIDs() {
		edgeCounts[find(g.Edges[eid].Source)]++
	}

	out := make([]models.Component, 0, len(roots))
	for i, root := range roots {
		compID := int64(i + 1)
		ids := members[root]
		sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

		var pts orb.MultiPoint
		for _, vid := range ids {
			g.Vertices[vid].ComponentID = compID
			pts = append(pts, g.Vertices[vid].Point)
		}

		out = append(out, models.Component{
			ID:        compID,
			VertexIDs: ids,
			EdgeCount: edgeCounts[root],
			BBox:      pts.Bound(),
		})
	}

	return out
}

// Subgraph returns a view of g restricted to one component's vertices and
// the edges between them
func Subgraph(g *Graph, comp models.Component) *Graph {
	sub := New()
	inComp := make(map[int64]bool, len(comp.VertexIDs))

	for _, vid := range comp.VertexIDs {
		inComp[vid] = true
		sub.AddVertex(g.Vertices[vid])
	}
	for _, eid := range g.EdgeIDs() {
		e := g.Edges[eid]
		if inComp[e.Source] && inComp[e.Target] {
			sub.AddEdge(e)
		}
	}

	sub.recountDegrees()
	sub.buildTree()
	return sub
}

func minOf(ids []int64) int64 {
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return min
}
