// Package session implements server-side route editing sessions: a list of
// waypoints snapped onto the path network and the last valid route through
// them.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/exp/slog"

	"topo_router/pkg/routing"
	"topo_router/pkg/topology"
)

var (
	// ErrMarkersDisabled is returned for edits made while a route fetch is
	// outstanding.
	ErrMarkersDisabled = errors.New("waypoints are disabled while the route is fetched")
	// ErrNoWaypoint is returned for an out-of-range waypoint index.
	ErrNoWaypoint = errors.New("no such waypoint")
)

// RouteFetcher computes routes, either locally or over the network.
type RouteFetcher interface {
	Plan(ctx context.Context, steps []routing.Step) (*routing.Plan, error)
}

// Editor is one route editing session.
type Editor struct {
	ID         string
	CreatedAt  time.Time
	LastAccess time.Time

	mu         sync.Mutex
	fetcher    RouteFetcher
	guides     *routing.GuideIndex
	snapPixels float64
	guard      FetchGuard
	waypoints  []*routing.Waypoint
	route      *routing.Plan
}

// NewEditor creates an empty editor. Waypoints snap to guides within
// snapPixels screen pixels at the zoom level of each edit.
func NewEditor(fetcher RouteFetcher, guides *routing.GuideIndex, snapPixels float64) *Editor {
	return &Editor{
		fetcher:    fetcher,
		guides:     guides,
		snapPixels: snapPixels,
	}
}

// AddWaypoint places a new waypoint at pos and inserts it before index; an
// out-of-range index appends. The waypoint is discarded if it does not snap
// or if no route passes through it.
func (e *Editor) AddWaypoint(ctx context.Context, index int, pos orb.Point, zoom int) (*routing.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.guard.Busy() {
		return nil, ErrMarkersDisabled
	}

	w := &routing.Waypoint{}
	w.Apply(e.snap(pos, zoom))
	if _, err := w.Drop(); err != nil {
		return nil, err
	}

	if index < 0 || index > len(e.waypoints) {
		index = len(e.waypoints)
	}
	e.waypoints = append(e.waypoints[:index], append([]*routing.Waypoint{w}, e.waypoints[index:]...)...)

	err := e.refresh(ctx, func() {
		e.waypoints = append(e.waypoints[:index], e.waypoints[index+1:]...)
	})
	return e.route, err
}

// MoveWaypoint drops waypoint index at pos. If the new position does not
// snap or yields no route, the waypoint goes back to where it was.
func (e *Editor) MoveWaypoint(ctx context.Context, index int, pos orb.Point, zoom int) (*routing.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.guard.Busy() {
		return nil, ErrMarkersDisabled
	}
	if index < 0 || index >= len(e.waypoints) {
		return nil, fmt.Errorf("%w: %d", ErrNoWaypoint, index)
	}

	w := e.waypoints[index]
	w.Apply(e.snap(pos, zoom))
	if _, err := w.Drop(); err != nil {
		return e.route, err
	}

	err := e.refresh(ctx, func() { w.Revert() })
	return e.route, err
}

// RemoveWaypoint deletes waypoint index and reroutes through the rest.
func (e *Editor) RemoveWaypoint(ctx context.Context, index int) (*routing.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.guard.Busy() {
		return nil, ErrMarkersDisabled
	}
	if index < 0 || index >= len(e.waypoints) {
		return nil, fmt.Errorf("%w: %d", ErrNoWaypoint, index)
	}

	removed := e.waypoints[index]
	e.waypoints = append(e.waypoints[:index], e.waypoints[index+1:]...)

	err := e.refresh(ctx, func() {
		e.waypoints = append(e.waypoints[:index], append([]*routing.Waypoint{removed}, e.waypoints[index:]...)...)
	})
	return e.route, err
}

// Retry fetches the route again after a failure.
func (e *Editor) Retry(ctx context.Context) (*routing.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.guard.Busy() {
		return nil, ErrFetchInProgress
	}
	err := e.refresh(ctx, func() {})
	return e.route, err
}

// Route returns the last valid route, or nil.
func (e *Editor) Route() *routing.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.route
}

// Waypoints returns the current waypoint locations.
func (e *Editor) Waypoints() []routing.Location {
	e.mu.Lock()
	defer e.mu.Unlock()
	locs := make([]routing.Location, len(e.waypoints))
	for i, w := range e.waypoints {
		locs[i] = *w.Location
	}
	return locs
}

// Busy reports whether a route fetch is outstanding.
func (e *Editor) Busy() bool { return e.guard.Busy() }

// Errored reports whether the last route fetch failed.
func (e *Editor) Errored() bool { return e.guard.Errored() }

func (e *Editor) snap(pos orb.Point, zoom int) routing.SnapResult {
	_, res, _ := e.guides.Snap(pos, zoom, e.snapPixels)
	return res
}

func (e *Editor) steps() []routing.Step {
	steps := make([]routing.Step, len(e.waypoints))
	for i, w := range e.waypoints {
		steps[i] = routing.Step{PathID: w.Location.PathID, Position: w.Location.Fraction}
	}
	return steps
}

// refresh recomputes the route after an edit. undo reverses the edit when
// the route is rejected or the fetch fails. e.mu must be held; it is
// released while the fetch runs.
func (e *Editor) refresh(ctx context.Context, undo func()) error {
	if len(e.waypoints) < 2 {
		e.route = nil
		e.commit()
		return nil
	}

	steps := e.steps()
	t := e.guard.Begin(len(steps))

	e.mu.Unlock()
	plan, err := e.fetcher.Plan(ctx, steps)
	e.mu.Lock()

	switch {
	case err == nil:
		if err := e.guard.Complete(t, len(e.waypoints)); err != nil {
			return err
		}
		e.route = plan
		e.commit()
		return nil
	case rejected(err):
		if err := e.guard.Abort(t); err != nil {
			return err
		}
		undo()
		return err
	default:
		if err := e.guard.Fail(t); err != nil {
			return err
		}
		slog.Warn("route fetch failed", "editor", e.ID, "error", err)
		undo()
		return err
	}
}

func (e *Editor) commit() {
	for _, w := range e.waypoints {
		w.Commit()
	}
}

// rejected reports whether err means the route does not exist, as opposed
// to a failure to compute it.
func rejected(err error) bool {
	return errors.Is(err, routing.ErrNotFound) || errors.Is(err, topology.ErrEmptyTopology)
}
