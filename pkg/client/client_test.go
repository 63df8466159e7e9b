package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"topo_router/pkg/api"
	"topo_router/pkg/graph"
	"topo_router/pkg/routing"
	"topo_router/pkg/session"
	"topo_router/pkg/topology"
)

// newTestServer serves a square of paths 1-4 and a detached path 9.
func newTestServer(t *testing.T) *httptest.Server {
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

	planner := routing.NewPlanner(routing.NewEngine(g), lines)
	ix := routing.NewGuideIndex(routing.LineGuides(lines), 0)
	sessions := session.NewStore(10, time.Hour, func() *session.Editor {
		return session.NewEditor(planner, ix, 256)
	})
	h, err := api.NewHandlers(planner, g, ix, sessions, 256)
	if err != nil {
		t.Fatalf("NewHandlers: %v", err)
	}
	srv := httptest.NewServer(api.NewRouter(api.DefaultConfig(":0"), h))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlan(t *testing.T) {
	c := New(newTestServer(t).URL, nil)

	plan, err := c.Plan(context.Background(), []routing.Step{
		{PathID: 1, Position: 0.5},
		{PathID: 3, Position: 0.5},
	})
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Topologies) != 1 || !reflect.DeepEqual(plan.Topologies[0].Paths, []graph.EdgeID{1, 2, 3}) {
		t.Errorf("topologies = %+v", plan.Topologies)
	}
	want := orb.Collection{orb.LineString{{5, 0}, {10, 0}, {10, 10}, {5, 10}}}
	if !reflect.DeepEqual(plan.Geometry, want) {
		t.Errorf("geometry = %v, want %v", plan.Geometry, want)
	}
}

func TestPlanErrors(t *testing.T) {
	c := New(newTestServer(t).URL, nil)
	ctx := context.Background()

	_, err := c.Plan(ctx, []routing.Step{{PathID: 1, Position: 0}, {PathID: 9, Position: 0.5}})
	var e *Error
	if !errors.As(err, &e) || e.Status != http.StatusUnprocessableEntity || e.Field != "steps[1]" {
		t.Errorf("detached step error = %v", err)
	}
	if !errors.Is(err, routing.ErrNotFound) {
		t.Errorf("detached step error %v does not match ErrNotFound", err)
	}

	_, err = c.Plan(ctx, []routing.Step{{PathID: 1, Position: 0}, {PathID: 77, Position: 0.5}})
	if !errors.Is(err, topology.ErrUnknownPath) {
		t.Errorf("unknown path error = %v", err)
	}

	_, err = c.Plan(ctx, []routing.Step{{PathID: 1, Position: 0.2}, {PathID: 1, Position: 0.2}})
	if !errors.Is(err, topology.ErrEmptyTopology) {
		t.Errorf("zero-length route error = %v", err)
	}
}

func TestGraph(t *testing.T) {
	c := New(newTestServer(t).URL, nil)
	g, err := c.Graph(context.Background())
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if g.NumNodes() != 6 || g.NumEdges() != 5 {
		t.Errorf("graph has %d nodes, %d edges", g.NumNodes(), g.NumEdges())
	}
	if e, ok := g.Edge(4); !ok || e.Length != 12 {
		t.Errorf("edge 4 = %+v, %v", e, ok)
	}
}

func TestSnap(t *testing.T) {
	c := New(newTestServer(t).URL, nil)
	ctx := context.Background()

	pt, err := c.Snap(ctx, orb.Point{9.5, 5}, 8)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if pt.Snap == nil || *pt.Snap != 2 || pt.Lng != 10 || pt.Lat != 5 {
		t.Errorf("snap = %+v, want (10,5) on path 2", pt)
	}

	pt, err = c.Snap(ctx, orb.Point{30, 30}, 8)
	if err != nil || pt.Snap != nil {
		t.Errorf("far snap = %+v, %v", pt, err)
	}
}

func TestResponseWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, nil).Plan(context.Background(), nil)
	var e *Error
	if !errors.As(err, &e) || e.Status != http.StatusBadGateway || e.Unwrap() != nil {
		t.Errorf("error = %#v", err)
	}
	if err.Error() != "server: HTTP 502" {
		t.Errorf("message = %q", err.Error())
	}
}
