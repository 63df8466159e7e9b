package api

import (
	"github.com/paulmach/orb/geojson"

	"topo_router/pkg/graph"
	"topo_router/pkg/routing"
	"topo_router/pkg/topology"
)

// RouteRequest is the JSON body for POST /api/v1/route.
type RouteRequest struct {
	Steps []routing.Step `json:"steps"`
}

// RouteResponse is the JSON response for a computed route: one geometry and
// one serialized topology per pair of consecutive steps.
type RouteResponse struct {
	GeoJSON    *geojson.Geometry    `json:"geojson"`
	Serialized []*topology.Topology `json:"serialized"`
}

// SnapRequest is the JSON body for POST /api/v1/snap.
type SnapRequest struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Zoom int     `json:"zoom"`
}

// WaypointRequest is the JSON body for adding or moving a session waypoint.
// Index only applies when adding; omitted appends.
type WaypointRequest struct {
	Index *int    `json:"index,omitempty"`
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Zoom  int     `json:"zoom"`
}

// WaypointJSON is a snapped session waypoint.
type WaypointJSON struct {
	Lat      float64      `json:"lat"`
	Lng      float64      `json:"lng"`
	PathID   graph.EdgeID `json:"path_id"`
	Position float64      `json:"positionOnPath"`
}

// SessionResponse is the state of an editing session.
type SessionResponse struct {
	ID        string         `json:"id"`
	Waypoints []WaypointJSON `json:"waypoints"`
	Route     *RouteResponse `json:"route"`
	Busy      bool           `json:"busy"`
	Errored   bool           `json:"errored"`
}

// ErrorResponse is the JSON response for errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// StatsResponse is the JSON response for GET /api/v1/stats.
type StatsResponse struct {
	NumNodes    int `json:"num_nodes"`
	NumPaths    int `json:"num_paths"`
	NumSessions int `json:"num_sessions"`
}

// HealthResponse is the JSON response for GET /api/v1/health.
type HealthResponse struct {
	Status string `json:"status"`
}

func newRouteResponse(plan *routing.Plan) *RouteResponse {
	if plan == nil {
		return nil
	}
	return &RouteResponse{
		GeoJSON:    geojson.NewGeometry(plan.Geometry),
		Serialized: plan.Topologies,
	}
}
