package routing

import (
	"errors"

	"github.com/paulmach/orb"

	"topo_router/pkg/graph"
)

// ErrUnsnappedDrop is returned when a waypoint is released away from every
// guide and has no previous location to fall back to.
var ErrUnsnappedDrop = errors.New("waypoint dropped off path")

// Location is a point snapped onto a path segment.
type Location struct {
	Point    orb.Point
	PathID   graph.EdgeID
	Fraction float64
}

// Waypoint is a user-placed route point. Location follows the marker while
// it is dragged; Previous holds the last location that produced a valid
// route.
type Waypoint struct {
	Location *Location
	Previous *Location
	Valid    bool
}

// NewWaypoint returns a waypoint already committed at loc.
func NewWaypoint(loc Location) *Waypoint {
	w := &Waypoint{}
	w.Location = &loc
	w.Valid = true
	w.Commit()
	return w
}

// Apply updates the waypoint from a snapping result.
func (w *Waypoint) Apply(res SnapResult) {
	if !res.Snapped {
		w.Location = nil
		w.Valid = false
		return
	}
	w.Location = &Location{Point: res.Point, PathID: res.Guide.PathID, Fraction: res.Fraction}
	w.Valid = true
}

// Drop finishes a drag. A waypoint released off every guide is reverted to
// its previous location and ErrUnsnappedDrop is returned; keep is false when
// there was nothing to revert to and the caller should discard it.
func (w *Waypoint) Drop() (keep bool, err error) {
	if w.Valid {
		return true, nil
	}
	return w.Revert(), ErrUnsnappedDrop
}

// Commit records the current location as the last valid one.
func (w *Waypoint) Commit() {
	if w.Location == nil {
		return
	}
	loc := *w.Location
	w.Previous = &loc
}

// Revert moves the waypoint back to its previous valid location. It reports
// false if there is none.
func (w *Waypoint) Revert() bool {
	if w.Previous == nil {
		return false
	}
	loc := *w.Previous
	w.Location = &loc
	w.Valid = true
	return true
}
