package graph

import (
	"encoding/json"
	"fmt"
	"io"
)

// Snapshot is the wire form of a path graph:
//
//	{"nodes": {"1": {"2": 10}}, "edges": {"10": {"id": 10, "length": 5, "nodes_id": [1, 2]}}}
type Snapshot struct {
	Nodes map[NodeID]map[NodeID]EdgeID `json:"nodes"`
	Edges map[EdgeID]SnapshotEdge      `json:"edges"`
}

// SnapshotEdge is one edge of a Snapshot.
type SnapshotEdge struct {
	ID     EdgeID    `json:"id"`
	Length float64   `json:"length"`
	Nodes  [2]NodeID `json:"nodes_id"`
}

// FromSnapshot validates a snapshot and builds the graph it describes.
func FromSnapshot(s Snapshot) (*Graph, error) {
	nodes := make([]NodeID, 0, len(s.Nodes))
	for n := range s.Nodes {
		nodes = append(nodes, n)
	}
	for n, neighbors := range s.Nodes {
		for m, e := range neighbors {
			if _, ok := s.Nodes[m]; !ok {
				return nil, fmt.Errorf("%w: node %d lists unknown neighbor %d", ErrMalformedGraph, n, m)
			}
			if _, ok := s.Edges[e]; !ok {
				return nil, fmt.Errorf("%w: node %d lists unknown edge %d", ErrMalformedGraph, n, e)
			}
		}
	}

	edges := make([]Edge, 0, len(s.Edges))
	for key, e := range s.Edges {
		if key != e.ID {
			return nil, fmt.Errorf("%w: edge key %d holds edge %d", ErrMalformedGraph, key, e.ID)
		}
		edges = append(edges, Edge{ID: e.ID, Length: e.Length, Nodes: e.Nodes})
	}
	return Build(nodes, edges)
}

// DecodeSnapshot reads a JSON snapshot and builds its graph.
func DecodeSnapshot(r io.Reader) (*Graph, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrMalformedGraph, err)
	}
	return FromSnapshot(s)
}

// Snapshot returns the wire form of the graph. When parallel edges join the
// same pair of nodes, the nodes map lists the shortest one; the edges map
// keeps them all.
func (g *Graph) Snapshot() Snapshot {
	s := Snapshot{
		Nodes: make(map[NodeID]map[NodeID]EdgeID, len(g.adj)),
		Edges: make(map[EdgeID]SnapshotEdge, len(g.edges)),
	}
	for n, neighbors := range g.adj {
		m := make(map[NodeID]EdgeID, len(neighbors))
		for _, nb := range neighbors {
			if prev, ok := m[nb.Node]; ok && g.edges[prev].Length <= g.edges[nb.Edge].Length {
				continue
			}
			m[nb.Node] = nb.Edge
		}
		s.Nodes[n] = m
	}
	for id, e := range g.edges {
		s.Edges[id] = SnapshotEdge{ID: e.ID, Length: e.Length, Nodes: e.Nodes}
	}
	return s
}
