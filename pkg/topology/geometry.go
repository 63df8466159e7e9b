package topology

import (
	"fmt"

	"github.com/paulmach/orb"

	"topo_router/pkg/geo"
)

// BuildGeometry renders a topology as a single line by cutting each
// referenced path to its stored fractions. Paths without a stored position
// are taken whole.
func BuildGeometry(t *Topology, lines PolylineSource) (orb.LineString, error) {
	if t == nil || len(t.Paths) == 0 {
		return nil, ErrEmptyTopology
	}

	var out orb.LineString
	for i, id := range t.Paths {
		line, ok := lines.Polyline(id)
		if !ok {
			return nil, fmt.Errorf("%w %d", ErrUnknownPath, id)
		}
		pos, ok := t.Positions[i]
		if !ok {
			pos = [2]float64{0, 1}
		}
		sub := geo.SubLine(line, pos[0], pos[1])
		if n := len(out); n > 0 && len(sub) > 0 && out[n-1] == sub[0] {
			sub = sub[1:]
		}
		out = append(out, sub...)
	}
	return out, nil
}
