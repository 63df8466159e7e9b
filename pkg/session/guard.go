package session

import (
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrStaleResponse is returned when a route response arrives for a
	// request that has been superseded or no longer matches the waypoints.
	ErrStaleResponse = errors.New("stale route response")
	// ErrFetchInProgress is returned when a retry is requested while a fetch
	// is outstanding.
	ErrFetchInProgress = errors.New("route fetch in progress")
)

// Ticket identifies one route fetch.
type Ticket struct {
	ID        ulid.ULID
	Waypoints int // waypoint count when the request was made
}

// FetchGuard tracks the single outstanding route fetch of an editor. A new
// Begin supersedes the previous ticket; only the latest ticket may commit.
type FetchGuard struct {
	mu      sync.Mutex
	current *Ticket
	errored bool
}

// Begin starts a fetch for a route with the given number of waypoints.
func (g *FetchGuard) Begin(waypoints int) Ticket {
	g.mu.Lock()
	defer g.mu.Unlock()
	t := Ticket{ID: ulid.Make(), Waypoints: waypoints}
	g.current = &t
	return t
}

// Busy reports whether a fetch is outstanding. Markers are disabled while
// it is.
func (g *FetchGuard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current != nil
}

// Errored reports whether the last fetch failed.
func (g *FetchGuard) Errored() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errored
}

// Complete accepts the response for t. waypoints is the current waypoint
// count; a mismatch means the route changed while the request was in
// flight and the response is discarded.
func (g *FetchGuard) Complete(t Ticket, waypoints int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.ID != t.ID {
		return ErrStaleResponse
	}
	g.current = nil
	if t.Waypoints != waypoints {
		return ErrStaleResponse
	}
	g.errored = false
	return nil
}

// Abort releases t without flagging an error, for routes the server
// rejected rather than failed to compute.
func (g *FetchGuard) Abort(t Ticket) error {
	return g.release(t, false)
}

// Fail releases t and flags the editor as errored.
func (g *FetchGuard) Fail(t Ticket) error {
	return g.release(t, true)
}

func (g *FetchGuard) release(t Ticket, errored bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.current == nil || g.current.ID != t.ID {
		return ErrStaleResponse
	}
	g.current = nil
	g.errored = errored
	return nil
}
