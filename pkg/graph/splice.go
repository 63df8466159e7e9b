package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrSpliceActive is returned by Edit while another EditSession is open.
	ErrSpliceActive = errors.New("graph: splice session already active")
	// ErrUnknownEdge is returned when a splice targets a missing edge.
	ErrUnknownEdge = errors.New("graph: unknown edge")
)

// endpointEpsilon is how close to 0 or 1 a fraction must be to reuse the
// existing endpoint instead of splitting the edge.
const endpointEpsilon = 1e-9

// EditSession is the only way to mutate a Graph. At most one session is open
// per graph; Restore returns the graph to exactly the state it had when the
// session was opened.
//
//	s, err := g.Edit()
//	if err != nil { ... }
//	defer s.Restore()
type EditSession struct {
	g         *Graph
	undo      []func()
	originals map[EdgeID]Edge     // snapshot edges split during this session
	pieces    map[EdgeID][]EdgeID // current edges covering each split path, by ascending span
	firstID   int64
	restored  bool
}

// Edit opens a splice session on g.
func (g *Graph) Edit() (*EditSession, error) {
	if g.editing {
		return nil, ErrSpliceActive
	}
	g.editing = true
	return &EditSession{
		g:         g,
		originals: make(map[EdgeID]Edge),
		pieces:    make(map[EdgeID][]EdgeID),
		firstID:   g.nextTransient,
	}, nil
}

// InsertTransientNode returns a node located at fraction along path edge
// pathID. If the fraction falls on an existing endpoint that node is returned
// and the graph is left untouched; otherwise the edge piece covering the
// fraction is replaced by two edges joined at a new transient node.
func (s *EditSession) InsertTransientNode(pathID EdgeID, fraction float64) (NodeID, error) {
	if s.restored {
		return 0, errors.New("graph: splice session already restored")
	}
	g := s.g

	orig, ok := s.originals[pathID]
	if !ok {
		e, found := g.edges[pathID]
		if !found || e.ID != e.PathID || e.ID < 0 {
			return 0, fmt.Errorf("%w: %d", ErrUnknownEdge, pathID)
		}
		orig = *e
	}

	if fraction < 0 {
		fraction = 0
	} else if fraction > 1 {
		fraction = 1
	}
	if fraction <= endpointEpsilon {
		return orig.Nodes[0], nil
	}
	if fraction >= 1-endpointEpsilon {
		return orig.Nodes[1], nil
	}

	pieces := s.pieces[pathID]
	if pieces == nil {
		pieces = []EdgeID{pathID}
	}
	idx := -1
	for i, id := range pieces {
		p := g.edges[id]
		if fraction <= p.To+endpointEpsilon {
			idx = i
			break
		}
	}
	if idx < 0 {
		idx = len(pieces) - 1
	}
	piece := *g.edges[pieces[idx]]
	if fraction-piece.From <= endpointEpsilon {
		return piece.Nodes[0], nil
	}
	if piece.To-fraction <= endpointEpsilon {
		return piece.Nodes[1], nil
	}

	node := NodeID(g.nextTransient)
	head := &Edge{
		ID:     EdgeID(g.nextTransient - 1),
		PathID: pathID,
		Length: orig.Length * (fraction - piece.From),
		Nodes:  [2]NodeID{piece.Nodes[0], node},
		From:   piece.From,
		To:     fraction,
	}
	tail := &Edge{
		ID:     EdgeID(g.nextTransient - 2),
		PathID: pathID,
		Length: orig.Length * (piece.To - fraction),
		Nodes:  [2]NodeID{node, piece.Nodes[1]},
		From:   fraction,
		To:     piece.To,
	}
	g.nextTransient -= 3

	// Save exact adjacency slices so restoration preserves neighbor order.
	a, b := piece.Nodes[0], piece.Nodes[1]
	savedA := append([]Neighbor(nil), g.adj[a]...)
	savedB := append([]Neighbor(nil), g.adj[b]...)
	savedPieces := append([]EdgeID(nil), s.pieces[pathID]...)
	_, hadOriginal := s.originals[pathID]

	g.removeEdge(piece.ID)
	g.adj[node] = nil
	g.addEdge(head)
	g.addEdge(tail)

	if !hadOriginal {
		s.originals[pathID] = orig
	}
	next := make([]EdgeID, 0, len(pieces)+1)
	next = append(next, pieces[:idx]...)
	next = append(next, head.ID, tail.ID)
	next = append(next, pieces[idx+1:]...)
	s.pieces[pathID] = next

	removed := piece
	s.undo = append(s.undo, func() {
		delete(g.edges, head.ID)
		delete(g.edges, tail.ID)
		delete(g.adj, node)
		e := removed
		g.edges[e.ID] = &e
		g.adj[a] = savedA
		g.adj[b] = savedB
		if len(savedPieces) == 0 {
			delete(s.pieces, pathID)
		} else {
			s.pieces[pathID] = savedPieces
		}
		if !hadOriginal {
			delete(s.originals, pathID)
		}
	})
	return node, nil
}

// Restore undoes every splice of the session in reverse order and releases
// the graph for the next session. It is safe to call more than once.
func (s *EditSession) Restore() {
	if s.restored {
		return
	}
	for i := len(s.undo) - 1; i >= 0; i-- {
		s.undo[i]()
	}
	s.undo = nil
	s.g.nextTransient = s.firstID
	s.g.editing = false
	s.restored = true
}

func (g *Graph) removeEdge(id EdgeID) {
	e := g.edges[id]
	delete(g.edges, id)
	for _, n := range e.Nodes {
		list := g.adj[n]
		kept := list[:0:0]
		for _, nb := range list {
			if nb.Edge != id {
				kept = append(kept, nb)
			}
		}
		g.adj[n] = kept
	}
}
