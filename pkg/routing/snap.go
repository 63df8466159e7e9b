package routing

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"topo_router/pkg/geo"
	"topo_router/pkg/graph"
)

// ErrPointTooFar is returned when the query point is too far from any path.
var ErrPointTooFar = errors.New("point too far from path")

// GuideKind tells which geometry a Guide carries.
type GuideKind int

const (
	PointGuideKind GuideKind = iota
	LineGuideKind
)

// Guide is a geometry a marker may snap to: either a single point or a
// polyline. PathID names the path segment it belongs to.
type Guide struct {
	Kind   GuideKind
	PathID graph.EdgeID
	Point  orb.Point
	Line   orb.LineString
}

// PointGuide creates a point guide.
func PointGuide(pathID graph.EdgeID, p orb.Point) Guide {
	return Guide{Kind: PointGuideKind, PathID: pathID, Point: p}
}

// LineGuide creates a polyline guide.
func LineGuide(pathID graph.EdgeID, line orb.LineString) Guide {
	return Guide{Kind: LineGuideKind, PathID: pathID, Line: line}
}

// Locate finds the point of the guide closest to p.
func (g Guide) Locate(p orb.Point) geo.Location {
	switch g.Kind {
	case PointGuideKind:
		return geo.Location{Distance: planar.Distance(p, g.Point), Point: g.Point}
	case LineGuideKind:
		return geo.Locate(p, g.Line)
	default:
		panic(fmt.Sprintf("routing: unknown guide kind %d", g.Kind))
	}
}

// Bound returns the bounding box of the guide geometry.
func (g Guide) Bound() orb.Bound {
	switch g.Kind {
	case PointGuideKind:
		return g.Point.Bound()
	case LineGuideKind:
		return g.Line.Bound()
	default:
		panic(fmt.Sprintf("routing: unknown guide kind %d", g.Kind))
	}
}

// Transition reports how a move changed the snapping state of a marker.
type Transition int

const (
	TransitionNone   Transition = iota // state unchanged
	TransitionSnap                     // unsnapped -> snapped
	TransitionUnsnap                   // snapped -> unsnapped
)

func (t Transition) String() string {
	switch t {
	case TransitionSnap:
		return "snap"
	case TransitionUnsnap:
		return "unsnap"
	default:
		return "none"
	}
}

// SnapResult is the outcome of one marker move.
type SnapResult struct {
	Snapped    bool
	Transition Transition
	Guide      Guide     // winning guide, only meaningful when Snapped
	Point      orb.Point // snapped position, or the raw position when unsnapped
	Fraction   float64   // position along Guide.Line, 0 for point guides
	Distance   float64   // distance from the raw position to the closest guide
}

// Nearest returns the guide closest to p. On equal distances the guide
// listed first wins. ok is false when guides is empty.
func Nearest(p orb.Point, guides []Guide) (best Guide, loc geo.Location, ok bool) {
	loc.Distance = math.Inf(1)
	for _, g := range guides {
		l := g.Locate(p)
		if l.Distance < loc.Distance {
			best, loc, ok = g, l, true
		}
	}
	return best, loc, ok
}

// Snapper tracks the snapping state of one marker. The zero value is an
// unsnapped marker.
type Snapper struct {
	snapped bool
}

// Snapped reports the current state.
func (s *Snapper) Snapped() bool { return s.snapped }

// OnMove ranks the candidate guides against the new marker position and
// snaps to the nearest one when it is strictly closer than snapDistance.
// Guides are expected to be pre-filtered to the visible area.
func (s *Snapper) OnMove(pos orb.Point, guides []Guide, snapDistance float64) SnapResult {
	guide, loc, ok := Nearest(pos, guides)
	was := s.snapped
	s.snapped = ok && loc.Distance < snapDistance

	res := SnapResult{Snapped: s.snapped, Point: pos, Distance: loc.Distance}
	if s.snapped {
		res.Guide = guide
		res.Point = loc.Point
		res.Fraction = loc.Fraction
	}

	switch {
	case s.snapped && !was:
		res.Transition = TransitionSnap
	case !s.snapped && was:
		res.Transition = TransitionUnsnap
	}
	return res
}
