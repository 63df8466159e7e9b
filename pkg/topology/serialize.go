package topology

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"golang.org/x/exp/slog"

	"topo_router/pkg/geo"
	"topo_router/pkg/graph"
)

// loopSplitThreshold is the fraction gap above which a route on a closed
// loop goes through the seam instead of along the loop.
const loopSplitThreshold = 0.5

// Traversal is anything that lists the path segments a route crosses, such
// as a computed shortest path.
type Traversal interface {
	PathIDs() []graph.EdgeID
}

// Leg is the stretch of one path a route covers, as fractions in travel
// direction.
type Leg struct {
	PathID   graph.EdgeID
	From, To float64
}

// LegTraversal is a Traversal that knows exactly which stretch of each path
// it covers, such as a route read off the graph it was searched on.
type LegTraversal interface {
	Traversal
	Legs() []Leg
}

// FromTraversal looks up the polylines of a traversal and serializes it.
// A LegTraversal is encoded from its legs; otherwise the direction through
// each path is inferred from the polylines by Serialize.
func FromTraversal(t Traversal, lines PolylineSource, start, end orb.Point, offset float64) (*Topology, error) {
	if lt, ok := t.(LegTraversal); ok {
		return FromLegs(lt.Legs(), lines, offset)
	}

	ids := t.PathIDs()
	polylines := make([]orb.LineString, len(ids))
	for i, id := range ids {
		l, ok := lines.Polyline(id)
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownPath, id)
		}
		polylines[i] = l
	}
	topo := Serialize(ids, polylines, start, end, offset)
	if topo == nil {
		return nil, ErrEmptyTopology
	}
	return topo, nil
}

// FromLegs encodes a route given as legs. Consecutive legs of one path that
// join up are merged, so a path crossed through its seam stays two entries.
func FromLegs(legs []Leg, lines PolylineSource, offset float64) (*Topology, error) {
	raw := &Topology{Positions: make(map[int][2]float64, len(legs))}
	for i, l := range legs {
		if _, ok := lines.Polyline(l.PathID); !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownPath, l.PathID)
		}
		raw.Positions[i] = [2]float64{l.From, l.To}
		raw.Paths = append(raw.Paths, l.PathID)
	}
	raw.Offset = offset

	t := clean(raw)
	if len(t.Paths) == 0 {
		slog.Error("topology is empty after cleanup", "legs", len(legs))
		return nil, ErrEmptyTopology
	}
	return t, nil
}

// Serialize encodes the route from start to end over the given path
// segments. lines[i] is the polyline of pathIDs[i]. It returns nil when the
// route covers no path at all.
func Serialize(pathIDs []graph.EdgeID, lines []orb.LineString, start, end orb.Point, offset float64) *Topology {
	if len(pathIDs) == 0 || len(pathIDs) != len(lines) {
		slog.Error("cannot serialize topology", "paths", len(pathIDs), "lines", len(lines))
		return nil
	}
	for i, l := range lines {
		if len(l) == 0 {
			slog.Error("cannot serialize topology", "path", pathIDs[i], "error", "empty polyline")
			return nil
		}
	}

	var (
		t       *Topology
		cleanup = true
	)
	switch {
	case samePath(pathIDs):
		t, cleanup = serializeSingle(pathIDs[0], lines[0], start, end)
	case len(pathIDs) == 3 && pathIDs[0] == pathIDs[2]:
		t, cleanup = serializeLoop(pathIDs, lines, start, end), false
	default:
		t = serializeMulti(pathIDs, lines, start, end)
	}
	t.Offset = offset

	if cleanup {
		t = clean(t)
	}
	if len(t.Paths) == 0 {
		slog.Error("topology is empty after cleanup", "paths", pathIDs)
		return nil
	}
	return t
}

func samePath(ids []graph.EdgeID) bool {
	for _, id := range ids[1:] {
		if id != ids[0] {
			return false
		}
	}
	return true
}

// serializeSingle handles a route that stays on one segment. On a closed
// loop the route takes the short way across the seam, producing two
// references to the same path.
func serializeSingle(id graph.EdgeID, line orb.LineString, start, end orb.Point) (*Topology, bool) {
	s := geo.Locate(start, line).Fraction
	e := geo.Locate(end, line).Fraction

	if geo.IsClosed(line) && math.Abs(e-s) > loopSplitThreshold {
		t := &Topology{Paths: []graph.EdgeID{id, id}}
		if e > s {
			t.Positions = map[int][2]float64{0: {s, 0}, 1: {1, e}}
		} else {
			t.Positions = map[int][2]float64{0: {s, 1}, 1: {0, e}}
		}
		return t, false
	}
	return &Topology{
		Positions: map[int][2]float64{0: {s, e}},
		Paths:     []graph.EdgeID{id},
	}, true
}

// serializeLoop handles a route that leaves a segment, crosses one other
// segment and comes back onto the first one.
func serializeLoop(ids []graph.EdgeID, lines []orb.LineString, start, end orb.Point) *Topology {
	first, mid := lines[0], lines[1]
	s := geo.Locate(start, first).Fraction
	e := geo.Locate(end, first).Fraction

	head, tail := first[0], first[len(first)-1]
	var exit, entry float64
	switch atHead, atTail := touches(head, mid), touches(tail, mid); {
	case atHead && !atTail:
		exit, entry = 0, 0
	case atTail && !atHead:
		exit, entry = 1, 1
	case s <= e:
		exit, entry = 0, 1
	default:
		exit, entry = 1, 0
	}

	exitVertex := head
	if exit == 1 {
		exitVertex = tail
	}
	midPos := [2]float64{1, 0}
	if mid[0] == exitVertex {
		midPos = [2]float64{0, 1}
	}

	return &Topology{
		Positions: map[int][2]float64{0: {s, exit}, 1: midPos, 2: {entry, e}},
		Paths:     append([]graph.EdgeID(nil), ids...),
	}
}

// serializeMulti chains segments through their shared end vertices.
func serializeMulti(ids []graph.EdgeID, lines []orb.LineString, start, end orb.Point) *Topology {
	n := len(ids)
	t := &Topology{
		Positions: make(map[int][2]float64, n),
		Paths:     append([]graph.EdgeID(nil), ids...),
	}

	first := lines[0]
	s := geo.Locate(start, first).Fraction
	var exit float64
	switch atHead, atTail := touches(first[0], lines[1]), touches(first[len(first)-1], lines[1]); {
	case atTail && !atHead:
		exit = 1
	case atHead && atTail && s >= 0.5:
		exit = 1
	}
	t.Positions[0] = [2]float64{s, exit}
	cur := first[0]
	if exit == 1 {
		cur = first[len(first)-1]
	}

	for i := 1; i < n-1; i++ {
		l := lines[i]
		if l[0] != cur && l[len(l)-1] == cur {
			t.Positions[i] = [2]float64{1, 0}
			cur = l[0]
			continue
		}
		if l[0] != cur {
			slog.Warn("path segments do not share a vertex", "path", ids[i], "previous", ids[i-1])
		}
		t.Positions[i] = [2]float64{0, 1}
		cur = l[len(l)-1]
	}

	last := lines[n-1]
	e := geo.Locate(end, last).Fraction
	entry := 0.0
	switch atHead, atTail := last[0] == cur, last[len(last)-1] == cur; {
	case atTail && !atHead:
		entry = 1
	case atHead && atTail && e > 0.5:
		entry = 1
	}
	t.Positions[n-1] = [2]float64{entry, e}
	return t
}

func touches(p orb.Point, line orb.LineString) bool {
	return len(line) > 0 && (line[0] == p || line[len(line)-1] == p)
}

// clean drops zero-length references and merges consecutive references to
// the same path that join up.
func clean(t *Topology) *Topology {
	out := &Topology{Offset: t.Offset, Positions: make(map[int][2]float64)}
	for i, id := range t.Paths {
		pos, ok := t.Positions[i]
		if !ok {
			pos = [2]float64{0, 1}
		}
		if pos[0] == pos[1] {
			continue
		}
		if n := len(out.Paths); n > 0 && out.Paths[n-1] == id && out.Positions[n-1][1] == pos[0] {
			prev := out.Positions[n-1]
			if prev[0] == pos[1] {
				// Went there and back: nothing left.
				out.Paths = out.Paths[:n-1]
				delete(out.Positions, n-1)
				continue
			}
			out.Positions[n-1] = [2]float64{prev[0], pos[1]}
			continue
		}
		out.Positions[len(out.Paths)] = pos
		out.Paths = append(out.Paths, id)
	}
	return out
}
