// Package topology encodes routes as linear references onto path segments.
package topology

import (
	"errors"

	"github.com/paulmach/orb"

	"topo_router/pkg/graph"
)

var (
	// ErrEmptyTopology is returned when a sub-route serializes to no paths.
	ErrEmptyTopology = errors.New("empty topology")
	// ErrUnknownPath is returned when a path id has no polyline.
	ErrUnknownPath = errors.New("unknown path")
)

// Topology is the stored form of one sub-route between two waypoints.
// Positions[i] holds the [start, end] fractions covered on Paths[i].
type Topology struct {
	Offset    float64            `json:"offset"`
	Positions map[int][2]float64 `json:"positions"`
	Paths     []graph.EdgeID     `json:"paths"`
}

// PointTopology is the stored form of a single point, optionally snapped to
// a path.
type PointTopology struct {
	Lat  float64       `json:"lat"`
	Lng  float64       `json:"lng"`
	Snap *graph.EdgeID `json:"snap,omitempty"`
}

// PolylineSource looks up the geometry of a path segment.
type PolylineSource interface {
	Polyline(id graph.EdgeID) (orb.LineString, bool)
}

// PolylineMap is an in-memory PolylineSource.
type PolylineMap map[graph.EdgeID]orb.LineString

// Polyline implements PolylineSource.
func (m PolylineMap) Polyline(id graph.EdgeID) (orb.LineString, bool) {
	l, ok := m[id]
	return l, ok
}
