package graph

import (
	"math"
	"sort"

	"github.com/kyroy/kdtree"
	"github.com/kyroy/kdtree/kdrange"
	"github.com/paulmach/orb"

	"github.com/trailforge/trailforge_core/internal/geo"
	"github.com/trailforge/trailforge_core/internal/models"
)

// Graph holds the routing topology in memory: vertices, edges and the
// undirected adjacency, plus a kd-tree for nearest-vertex lookups
type Graph struct {
	Vertices map[int64]*models.Vertex
	Edges    map[int64]*models.Edge

	// Adjacency maps a vertex id to the ids of its incident edges
	Adjacency map[int64][]int64

	tree *kdtree.KDTree
}

// New creates an empty graph
func New() *Graph {
	return &Graph{
		Vertices:  make(map[int64]*models.Vertex),
		Edges:     make(map[int64]*models.Edge),
		Adjacency: make(map[int64][]int64),
	}
}

// AddVertex registers a vertex
func (g *Graph) AddVertex(v *models.Vertex) {
	g.Vertices[v.ID] = v
}

// AddEdge registers an edge and links it into the adjacency of both
// endpoints
func (g *Graph) AddEdge(e *models.Edge) {
	g.Edges[e.ID] = e
	g.Adjacency[e.Source] = append(g.Adjacency[e.Source], e.ID)
	g.Adjacency[e.Target] = append(g.Adjacency[e.Target], e.ID)
}

// IncidentEdges returns the edges touching vertex v in ascending edge-id
// order
func (g *Graph) IncidentEdges(v int64) []*models.Edge {
	ids := g.Adjacency[v]
	out := make([]*models.Edge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.Edges[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// VertexIDs returns all vertex ids in ascending order
func (g *Graph) VertexIDs() []int64 {
	out := make([]int64, 0, len(g.Vertices))
	for id := range g.Vertices {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// EdgeIDs returns all edge ids in ascending order
func (g *Graph) EdgeIDs() []int64 {
	out := make([]int64, 0, len(g.Edges))
	for id := range g.Edges {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// recountDegrees recomputes cnt(v) for every vertex from the adjacency
func (g *Graph) recountDegrees() {
	for id, v := range g.Vertices {
		v.Cnt = len(g.Adjacency[id])
	}
}

// Finalize recomputes vertex degrees and rebuilds the nearest-vertex index.
// Call after assembling a graph by hand (the noder does this itself).
func (g *Graph) Finalize() {
	g.recountDegrees()
	g.buildTree()
}

// vertexPoint adapts a vertex to the kd-tree point interface
type vertexPoint struct {
	point orb.Point
	id    int64
}

func (p *vertexPoint) Dimensions() int { return 2 }

func (p *vertexPoint) Dimension(i int) float64 { return p.point[i] }

// buildTree (re)builds the kd-tree over all vertices
func (g *Graph) buildTree() {
	pts := make([]kdtree.Point, 0, len(g.Vertices))
	for _, id := range g.VertexIDs() {
		v := g.Vertices[id]
		pts = append(pts, &vertexPoint{point: v.Point, id: v.ID})
	}
	g.tree = kdtree.New(pts)
}

// NearestVertex returns the vertex closest to the given lng/lat point within
// maxDistM meters, or nil if none qualifies. The kd-tree works in degree
// space, so the search collects every vertex inside a degree window that
// covers the full metric ball and re-ranks by equirectangular distance; the
// winner is the true nearest in meters, not a degree-space approximation.
func (g *Graph) NearestVertex(p orb.Point, maxDistM float64) *models.Vertex {
	if g.tree == nil || len(g.Vertices) == 0 || maxDistM <= 0 {
		return nil
	}

	// latitude degrees have a fixed meter length; longitude degrees shrink
	// with latitude, so that span widens accordingly
	latSpan := geo.MetersToDegrees(maxDistM, 0)
	lngSpan := geo.MetersToDegrees(maxDistM, p[1])

	candidates := g.tree.RangeSearch(kdrange.New(
		p[0]-lngSpan, p[0]+lngSpan,
		p[1]-latSpan, p[1]+latSpan,
	))

	var best *models.Vertex
	bestDist := math.Inf(1)
	for _, raw := range candidates {
		vp := raw.(*vertexPoint)
		d := geo.EquirectM(p, vp.point)
		if d > maxDistM {
			continue
		}
		if d < bestDist || (d == bestDist && best != nil && vp.id < best.ID) {
			best = g.Vertices[vp.id]
			bestDist = d
		}
	}
	return best
}

// BBox returns the bounding box over all vertices
func (g *Graph) BBox() orb.Bound {
	var mls orb.MultiPoint
	for _, id := range g.VertexIDs() {
		mls = append(mls, g.Vertices[id].Point)
	}
	return mls.Bound()
}
