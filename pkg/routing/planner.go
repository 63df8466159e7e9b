package routing

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"topo_router/pkg/geo"
	"topo_router/pkg/graph"
	"topo_router/pkg/topology"
)

// Step is a route waypoint given as a position along a path segment.
type Step struct {
	PathID   graph.EdgeID `json:"path_id"`
	Position float64      `json:"positionOnPath"`
}

// Plan is a computed route: one sub-topology and one rendered line per
// consecutive pair of steps.
type Plan struct {
	Paths      []ComputedPath
	Topologies []*topology.Topology
	Geometry   orb.Collection
}

// Planner turns route requests into topologies and geometry.
type Planner struct {
	engine *Engine
	lines  topology.PolylineSource
}

// NewPlanner creates a planner. lines must cover every path of the engine's
// graph.
func NewPlanner(engine *Engine, lines topology.PolylineSource) *Planner {
	return &Planner{engine: engine, lines: lines}
}

// Locations resolves steps into points on their path polylines.
func (p *Planner) Locations(steps []Step) ([]Location, error) {
	locs := make([]Location, len(steps))
	for i, s := range steps {
		line, ok := p.lines.Polyline(s.PathID)
		if !ok {
			return nil, fmt.Errorf("step %d: %w %d", i, topology.ErrUnknownPath, s.PathID)
		}
		f := min(max(s.Position, 0), 1)
		locs[i] = Location{Point: geo.Interpolate(line, f), PathID: s.PathID, Fraction: f}
	}
	return locs, nil
}

// Plan computes the route through steps.
func (p *Planner) Plan(ctx context.Context, steps []Step) (*Plan, error) {
	if len(steps) < 2 {
		return nil, ErrTooFewWaypoints
	}
	locs, err := p.Locations(steps)
	if err != nil {
		return nil, err
	}
	return p.PlanLocations(ctx, locs)
}

// PlanLocations computes the route through already resolved waypoints.
func (p *Planner) PlanLocations(ctx context.Context, locs []Location) (*Plan, error) {
	paths, err := p.engine.ComputeRoute(ctx, locs)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Paths:      paths,
		Topologies: make([]*topology.Topology, 0, len(paths)),
		Geometry:   make(orb.Collection, 0, len(paths)),
	}
	for i := range paths {
		cp := &paths[i]
		topo, err := topology.FromTraversal(cp, p.lines, locs[cp.From].Point, locs[cp.To].Point, 0)
		if err != nil {
			return nil, &RouteError{Index: cp.To, Err: err}
		}
		line, err := topology.BuildGeometry(topo, p.lines)
		if err != nil {
			return nil, &RouteError{Index: cp.To, Err: err}
		}
		plan.Topologies = append(plan.Topologies, topo)
		plan.Geometry = append(plan.Geometry, line)
	}
	return plan, nil
}
