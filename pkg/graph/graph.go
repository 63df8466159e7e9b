package graph

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrMalformedGraph is returned when a snapshot is internally inconsistent.
var ErrMalformedGraph = errors.New("malformed graph")

// NodeID identifies an intersection or path extremity.
// Transient nodes inserted by an EditSession are negative.
type NodeID int64

// EdgeID identifies an edge. Snapshot edges use the id of the path segment
// they represent; transient edges are negative.
type EdgeID int64

// Edge is one path segment, or a piece of one while a splice is active.
type Edge struct {
	ID     EdgeID
	PathID EdgeID    // path segment this edge belongs to; equals ID outside splices
	Length float64   // weight used by shortest-path search
	Nodes  [2]NodeID // Nodes[0] sits at From, Nodes[1] at To
	From   float64   // span on the path geometry, [0,1] for snapshot edges
	To     float64
}

// Neighbor is an adjacency entry: the node reached and the edge used.
type Neighbor struct {
	Node NodeID
	Edge EdgeID
}

// Graph is an undirected weighted multigraph of path segments.
// Parallel edges and self loops are allowed.
type Graph struct {
	adj   map[NodeID][]Neighbor
	edges map[EdgeID]*Edge

	nextTransient int64
	editing       bool
}

// Build creates a Graph from its node set and edge list. Adjacency order is
// deterministic: edges are inserted by ascending id.
func Build(nodes []NodeID, edges []Edge) (*Graph, error) {
	g := &Graph{
		adj:           make(map[NodeID][]Neighbor, len(nodes)),
		edges:         make(map[EdgeID]*Edge, len(edges)),
		nextTransient: -1,
	}
	for _, n := range nodes {
		if _, ok := g.adj[n]; !ok {
			g.adj[n] = nil
		}
	}

	sorted := make([]Edge, len(edges))
	copy(sorted, edges)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		e := sorted[i]
		if math.IsNaN(e.Length) || e.Length < 0 {
			return nil, fmt.Errorf("%w: edge %d has invalid length %v", ErrMalformedGraph, e.ID, e.Length)
		}
		if _, dup := g.edges[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate edge %d", ErrMalformedGraph, e.ID)
		}
		for _, n := range e.Nodes {
			if _, ok := g.adj[n]; !ok {
				return nil, fmt.Errorf("%w: edge %d references unknown node %d", ErrMalformedGraph, e.ID, n)
			}
		}
		e.PathID = e.ID
		e.From, e.To = 0, 1
		g.addEdge(&e)
	}
	return g, nil
}

func (g *Graph) addEdge(e *Edge) {
	g.edges[e.ID] = e
	a, b := e.Nodes[0], e.Nodes[1]
	g.adj[a] = append(g.adj[a], Neighbor{Node: b, Edge: e.ID})
	if a != b {
		g.adj[b] = append(g.adj[b], Neighbor{Node: a, Edge: e.ID})
	}
}

// Neighbors returns the adjacency list of node. The slice must not be modified.
func (g *Graph) Neighbors(node NodeID) []Neighbor {
	return g.adj[node]
}

// HasNode reports whether node is part of the graph.
func (g *Graph) HasNode(node NodeID) bool {
	_, ok := g.adj[node]
	return ok
}

// Edge returns the edge with the given id.
func (g *Graph) Edge(id EdgeID) (Edge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

// NumNodes returns the number of nodes, transient ones included.
func (g *Graph) NumNodes() int { return len(g.adj) }

// NumEdges returns the number of edges, transient ones included.
func (g *Graph) NumEdges() int { return len(g.edges) }

// Nodes returns all node ids in ascending order.
func (g *Graph) Nodes() []NodeID {
	nodes := make([]NodeID, 0, len(g.adj))
	for n := range g.adj {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Edges returns a copy of all edges in ascending id order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		edges = append(edges, *e)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	return edges
}
