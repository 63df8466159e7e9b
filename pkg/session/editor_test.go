package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/paulmach/orb"

	"topo_router/pkg/graph"
	"topo_router/pkg/routing"
	"topo_router/pkg/topology"
)

// At zoom 8, 256 pixels are 1.40625 coordinate units.
const (
	testZoom   = 8
	testPixels = 256
)

// squarePlanner builds a square of paths 1-4 and a detached path 9.
func squarePlanner(t *testing.T) (*routing.Planner, *routing.GuideIndex) {
	t.Helper()
	g, err := graph.Build(
		[]graph.NodeID{1, 2, 3, 4, 6, 7},
		[]graph.Edge{
			{ID: 1, Length: 10, Nodes: [2]graph.NodeID{1, 2}},
			{ID: 2, Length: 10, Nodes: [2]graph.NodeID{2, 3}},
			{ID: 3, Length: 10, Nodes: [2]graph.NodeID{4, 3}},
			{ID: 4, Length: 12, Nodes: [2]graph.NodeID{1, 4}},
			{ID: 9, Length: 10, Nodes: [2]graph.NodeID{6, 7}},
		},
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	lines := topology.PolylineMap{
		1: {{0, 0}, {10, 0}},
		2: {{10, 0}, {10, 10}},
		3: {{0, 10}, {10, 10}},
		4: {{0, 0}, {0, 10}},
		9: {{50, 50}, {60, 50}},
	}
	guides := make([]routing.Guide, 0, len(lines))
	for _, id := range []graph.EdgeID{1, 2, 3, 4, 9} {
		guides = append(guides, routing.LineGuide(id, lines[id]))
	}
	return routing.NewPlanner(routing.NewEngine(g), lines), routing.NewGuideIndex(guides, 0)
}

// flakyFetcher fails with a transport error while fail is set.
type flakyFetcher struct {
	next *routing.Planner
	fail bool
}

var errTransport = errors.New("connection refused")

func (f *flakyFetcher) Plan(ctx context.Context, steps []routing.Step) (*routing.Plan, error) {
	if f.fail {
		return nil, errTransport
	}
	return f.next.Plan(ctx, steps)
}

func newTestEditor(t *testing.T) (*Editor, *flakyFetcher) {
	p, ix := squarePlanner(t)
	f := &flakyFetcher{next: p}
	return NewEditor(f, ix, testPixels), f
}

func mustAdd(t *testing.T, e *Editor, pos orb.Point) *routing.Plan {
	t.Helper()
	plan, err := e.AddWaypoint(context.Background(), -1, pos, testZoom)
	if err != nil {
		t.Fatalf("AddWaypoint(%v): %v", pos, err)
	}
	return plan
}

func TestEditorAddWaypoints(t *testing.T) {
	e, _ := newTestEditor(t)

	if plan := mustAdd(t, e, orb.Point{5, 0.5}); plan != nil {
		t.Errorf("route with one waypoint = %+v, want nil", plan)
	}
	plan := mustAdd(t, e, orb.Point{5, 9.5})
	if plan == nil || len(plan.Topologies) != 1 {
		t.Fatalf("plan = %+v, want one topology", plan)
	}

	locs := e.Waypoints()
	if len(locs) != 2 {
		t.Fatalf("got %d waypoints", len(locs))
	}
	if locs[0].PathID != 1 || locs[0].Point != (orb.Point{5, 0}) {
		t.Errorf("waypoint 0 = %+v, want snapped onto path 1 at (5,0)", locs[0])
	}
	if locs[1].PathID != 3 || locs[1].Point != (orb.Point{5, 10}) {
		t.Errorf("waypoint 1 = %+v, want snapped onto path 3 at (5,10)", locs[1])
	}

	// Insert in the middle.
	if _, err := e.AddWaypoint(context.Background(), 1, orb.Point{10.5, 5}, testZoom); err != nil {
		t.Fatalf("AddWaypoint: %v", err)
	}
	if got := e.Waypoints()[1].PathID; got != 2 {
		t.Errorf("inserted waypoint on path %d, want 2", got)
	}
	if n := len(e.Route().Topologies); n != 2 {
		t.Errorf("route has %d topologies, want 2", n)
	}
}

func TestEditorUnsnappedDrop(t *testing.T) {
	e, _ := newTestEditor(t)
	mustAdd(t, e, orb.Point{5, 0.5})

	if _, err := e.AddWaypoint(context.Background(), -1, orb.Point{30, 30}, testZoom); !errors.Is(err, routing.ErrUnsnappedDrop) {
		t.Errorf("err = %v, want ErrUnsnappedDrop", err)
	}
	if n := len(e.Waypoints()); n != 1 {
		t.Errorf("got %d waypoints, want 1", n)
	}

	if _, err := e.MoveWaypoint(context.Background(), 0, orb.Point{30, 30}, testZoom); !errors.Is(err, routing.ErrUnsnappedDrop) {
		t.Errorf("err = %v, want ErrUnsnappedDrop", err)
	}
	if loc := e.Waypoints()[0]; loc.Point != (orb.Point{5, 0}) {
		t.Errorf("waypoint = %+v, want reverted to (5,0)", loc)
	}

	// Snapping is skipped entirely at low zoom.
	if _, err := e.AddWaypoint(context.Background(), -1, orb.Point{5, 0}, -1); !errors.Is(err, routing.ErrUnsnappedDrop) {
		t.Errorf("err = %v, want ErrUnsnappedDrop below min zoom", err)
	}
}

func TestEditorNotFound(t *testing.T) {
	e, _ := newTestEditor(t)
	mustAdd(t, e, orb.Point{5, 0.5})
	before := mustAdd(t, e, orb.Point{5, 9.5})

	// Moving onto the detached path reverts the waypoint.
	plan, err := e.MoveWaypoint(context.Background(), 1, orb.Point{55, 50.5}, testZoom)
	if !errors.Is(err, routing.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if plan != before {
		t.Error("route changed after a rejected move")
	}
	if loc := e.Waypoints()[1]; loc.PathID != 3 {
		t.Errorf("waypoint = %+v, want reverted onto path 3", loc)
	}

	// A new waypoint there is removed.
	if _, err := e.AddWaypoint(context.Background(), -1, orb.Point{55, 50.5}, testZoom); !errors.Is(err, routing.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if n := len(e.Waypoints()); n != 2 {
		t.Errorf("got %d waypoints, want 2", n)
	}
	if e.Errored() || e.Busy() {
		t.Errorf("errored=%v busy=%v after a rejected route", e.Errored(), e.Busy())
	}
}

func TestEditorFetchFailure(t *testing.T) {
	e, f := newTestEditor(t)
	mustAdd(t, e, orb.Point{5, 0.5})
	before := mustAdd(t, e, orb.Point{5, 9.5})

	f.fail = true
	plan, err := e.MoveWaypoint(context.Background(), 0, orb.Point{10.5, 5}, testZoom)
	if !errors.Is(err, errTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if plan != before {
		t.Error("previous route not kept")
	}
	if !e.Errored() || e.Busy() {
		t.Errorf("errored=%v busy=%v, want errored and re-enabled", e.Errored(), e.Busy())
	}
	if loc := e.Waypoints()[0]; loc.PathID != 1 {
		t.Errorf("waypoint = %+v, want previous location on path 1", loc)
	}

	f.fail = false
	if _, err := e.Retry(context.Background()); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if e.Errored() {
		t.Error("still errored after a successful retry")
	}
}

func TestEditorRemoveWaypoint(t *testing.T) {
	e, _ := newTestEditor(t)
	mustAdd(t, e, orb.Point{5, 0.5})
	mustAdd(t, e, orb.Point{10.5, 5})
	mustAdd(t, e, orb.Point{5, 9.5})

	plan, err := e.RemoveWaypoint(context.Background(), 1)
	if err != nil {
		t.Fatalf("RemoveWaypoint: %v", err)
	}
	if len(plan.Topologies) != 1 {
		t.Errorf("got %d topologies, want 1", len(plan.Topologies))
	}

	if plan, err := e.RemoveWaypoint(context.Background(), 0); err != nil || plan != nil {
		t.Errorf("RemoveWaypoint = %+v, %v; want no route", plan, err)
	}
	if _, err := e.RemoveWaypoint(context.Background(), 5); !errors.Is(err, ErrNoWaypoint) {
		t.Errorf("err = %v, want ErrNoWaypoint", err)
	}
	if _, err := e.MoveWaypoint(context.Background(), -1, orb.Point{}, testZoom); !errors.Is(err, ErrNoWaypoint) {
		t.Errorf("err = %v, want ErrNoWaypoint", err)
	}
}

// blockingFetcher holds every request until release is closed.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
	next    RouteFetcher
}

func (b *blockingFetcher) Plan(ctx context.Context, steps []routing.Step) (*routing.Plan, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.next.Plan(ctx, steps)
}

func TestEditorMarkersDisabledWhileFetching(t *testing.T) {
	p, ix := squarePlanner(t)
	b := &blockingFetcher{entered: make(chan struct{}, 1), release: make(chan struct{}), next: p}
	e := NewEditor(b, ix, testPixels)
	mustAdd(t, e, orb.Point{5, 0.5})

	var wg sync.WaitGroup
	var addErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, addErr = e.AddWaypoint(context.Background(), -1, orb.Point{5, 9.5}, testZoom)
	}()
	<-b.entered

	if !e.Busy() {
		t.Error("Busy = false during fetch")
	}
	if _, err := e.MoveWaypoint(context.Background(), 0, orb.Point{5, 0.5}, testZoom); !errors.Is(err, ErrMarkersDisabled) {
		t.Errorf("MoveWaypoint err = %v, want ErrMarkersDisabled", err)
	}
	if _, err := e.AddWaypoint(context.Background(), -1, orb.Point{5, 0.5}, testZoom); !errors.Is(err, ErrMarkersDisabled) {
		t.Errorf("AddWaypoint err = %v, want ErrMarkersDisabled", err)
	}
	if _, err := e.Retry(context.Background()); !errors.Is(err, ErrFetchInProgress) {
		t.Errorf("Retry err = %v, want ErrFetchInProgress", err)
	}

	close(b.release)
	wg.Wait()
	if addErr != nil {
		t.Fatalf("AddWaypoint: %v", addErr)
	}
	if e.Busy() || e.Route() == nil {
		t.Errorf("busy=%v route=%v after fetch", e.Busy(), e.Route())
	}
}
