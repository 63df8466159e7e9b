package routing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slog"

	"topo_router/pkg/graph"
	"topo_router/pkg/topology"
)

// ErrTooFewWaypoints is returned when a route has fewer than two waypoints.
var ErrTooFewWaypoints = errors.New("route needs at least two waypoints")

// RouteError reports which waypoint pair of a route could not be computed.
// Index is the position of the pair's destination waypoint.
type RouteError struct {
	Index int
	Err   error
}

func (e *RouteError) Error() string {
	return fmt.Sprintf("waypoint %d: %v", e.Index, e.Err)
}

func (e *RouteError) Unwrap() error { return e.Err }

// ComputedPath is the shortest path between two consecutive waypoints.
type ComputedPath struct {
	From, To   int // waypoint indices
	Components []PathComponent
	Weight     float64
}

// PathIDs returns the path segments traversed, in order. Consecutive edges
// belonging to the same path (pieces of a spliced segment) are reported once.
func (p *ComputedPath) PathIDs() []graph.EdgeID {
	var ids []graph.EdgeID
	for _, c := range p.Components {
		if n := len(ids); n > 0 && ids[n-1] == c.PathID {
			continue
		}
		ids = append(ids, c.PathID)
	}
	return ids
}

// Legs returns the stretch of each path covered, one entry per traversed
// edge, in travel order.
func (p *ComputedPath) Legs() []topology.Leg {
	legs := make([]topology.Leg, len(p.Components))
	for i, c := range p.Components {
		legs[i] = topology.Leg{PathID: c.PathID, From: c.From, To: c.To}
	}
	return legs
}

// Engine computes multi-waypoint routes over a path graph. Waypoints sitting
// mid-segment are spliced into the graph for the duration of one pair
// search, so calls are serialized.
type Engine struct {
	mu         sync.Mutex
	g          *graph.Graph
	components map[graph.NodeID]int
}

// NewEngine creates a routing engine over g. g must not be edited by anyone
// else while the engine is in use.
func NewEngine(g *graph.Graph) *Engine {
	return &Engine{
		g:          g,
		components: g.Components(),
	}
}

// Graph returns the underlying graph.
func (e *Engine) Graph() *graph.Graph { return e.g }

// ComputeRoute finds the shortest path between each pair of consecutive
// waypoints. Pairs are computed one after another, each on a freshly
// restored graph. The first failing pair aborts the route with a
// *RouteError.
func (e *Engine) ComputeRoute(ctx context.Context, waypoints []Location) ([]ComputedPath, error) {
	if len(waypoints) < 2 {
		return nil, ErrTooFewWaypoints
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	paths := make([]ComputedPath, 0, len(waypoints)-1)
	for i := 1; i < len(waypoints); i++ {
		p, err := e.computePair(ctx, waypoints[i-1], waypoints[i])
		if err != nil {
			slog.Debug("route pair failed", "from", i-1, "to", i, "error", err)
			return nil, &RouteError{Index: i, Err: err}
		}
		p.From, p.To = i-1, i
		paths = append(paths, *p)
	}
	return paths, nil
}

func (e *Engine) computePair(ctx context.Context, from, to Location) (*ComputedPath, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, ok := e.g.Edge(from.PathID)
	if !ok {
		return nil, fmt.Errorf("%w %d", graph.ErrUnknownEdge, from.PathID)
	}
	b, ok := e.g.Edge(to.PathID)
	if !ok {
		return nil, fmt.Errorf("%w %d", graph.ErrUnknownEdge, to.PathID)
	}
	if e.components[a.Nodes[0]] != e.components[b.Nodes[0]] {
		return nil, ErrNotFound
	}

	s, err := e.g.Edit()
	if err != nil {
		return nil, err
	}
	defer s.Restore()

	src, err := s.InsertTransientNode(from.PathID, from.Fraction)
	if err != nil {
		return nil, err
	}
	dst, err := s.InsertTransientNode(to.PathID, to.Fraction)
	if err != nil {
		return nil, err
	}

	p, err := ShortestPath(ctx, e.g, []graph.NodeID{src}, []graph.NodeID{dst})
	if err != nil {
		return nil, err
	}
	return &ComputedPath{Components: p.Components, Weight: p.Weight}, nil
}
