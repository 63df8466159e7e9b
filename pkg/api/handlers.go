package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/exp/slog"

	"topo_router/pkg/graph"
	"topo_router/pkg/routing"
	"topo_router/pkg/session"
	"topo_router/pkg/topology"
)

// maxStepsBody bounds route request bodies.
const maxStepsBody = 64 << 10

// Planner computes routes through path steps.
type Planner interface {
	Plan(ctx context.Context, steps []routing.Step) (*routing.Plan, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	planner    Planner
	guides     *routing.GuideIndex
	sessions   *session.Store
	snapPixels float64
	snapshot   []byte // encoded graph, captured while the graph is at rest
	stats      StatsResponse
}

// NewHandlers creates handlers. g is encoded once up front; it must not be
// in an edit session.
func NewHandlers(planner Planner, g *graph.Graph, guides *routing.GuideIndex, sessions *session.Store, snapPixels float64) (*Handlers, error) {
	snapshot, err := json.Marshal(g.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("encode graph: %w", err)
	}
	return &Handlers{
		planner:    planner,
		guides:     guides,
		sessions:   sessions,
		snapPixels: snapPixels,
		snapshot:   snapshot,
		stats:      StatsResponse{NumNodes: g.NumNodes(), NumPaths: g.NumEdges()},
	}, nil
}

// HandleGraph handles GET /api/v1/graph.
func (h *Handlers) HandleGraph(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(h.snapshot)
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !decodeJSON(w, r, &req, maxStepsBody) {
		return
	}
	if len(req.Steps) < 2 {
		writeError(w, http.StatusBadRequest, "invalid_request", "steps")
		return
	}
	for i, s := range req.Steps {
		if math.IsNaN(s.Position) || s.Position < 0 || s.Position > 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("steps[%d].positionOnPath", i))
			return
		}
	}

	plan, err := h.planner.Plan(r.Context(), req.Steps)
	if err != nil {
		writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRouteResponse(plan))
}

// HandleSnap handles POST /api/v1/snap. The response carries no snap when
// no path lies within the snapping distance.
func (h *Handlers) HandleSnap(w http.ResponseWriter, r *http.Request) {
	var req SnapRequest
	if !decodeJSON(w, r, &req, 1024) {
		return
	}
	if err := validateCoord(req.Lat, req.Lng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return
	}

	resp := topology.PointTopology{Lat: req.Lat, Lng: req.Lng}
	g, res, err := h.guides.Snap(orb.Point{req.Lng, req.Lat}, req.Zoom, h.snapPixels)
	if err == nil {
		id := g.PathID
		resp = topology.PointTopology{Lat: res.Point.Lat(), Lng: res.Point.Lon(), Snap: &id}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGuides handles GET /api/v1/guides?bbox=minLng,minLat,maxLng,maxLat&zoom=z.
// It lists the guides a client should snap against in that viewport, none
// below the minimum snapping zoom.
func (h *Handlers) HandleGuides(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var b [4]float64
	if _, err := fmt.Sscanf(q.Get("bbox"), "%f,%f,%f,%f", &b[0], &b[1], &b[2], &b[3]); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "bbox")
		return
	}
	if validateCoord(b[1], b[0]) != nil || validateCoord(b[3], b[2]) != nil || b[0] > b[2] || b[1] > b[3] {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "bbox")
		return
	}
	zoom, err := strconv.Atoi(q.Get("zoom"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "zoom")
		return
	}

	view := orb.Bound{Min: orb.Point{b[0], b[1]}, Max: orb.Point{b[2], b[3]}}
	fc := geojson.NewFeatureCollection()
	for _, g := range h.guides.Candidates(view, zoom) {
		var f *geojson.Feature
		if g.Kind == routing.PointGuideKind {
			f = geojson.NewFeature(g.Point)
		} else {
			f = geojson.NewFeature(g.Line)
		}
		f.Properties["path_id"] = g.PathID
		fc.Append(f)
	}
	writeJSON(w, http.StatusOK, fc)
}

// HandleCreateSession handles POST /api/v1/sessions.
func (h *Handlers) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	ed := h.sessions.Create()
	slog.Debug("session created", "id", ed.ID)
	writeJSON(w, http.StatusCreated, sessionResponse(ed))
}

// HandleGetSession handles GET /api/v1/sessions/{id}/route.
func (h *Handlers) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ed))
}

// HandleRetrySession handles POST /api/v1/sessions/{id}/route.
func (h *Handlers) HandleRetrySession(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := ed.Retry(r.Context()); err != nil {
		writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ed))
}

// HandleDeleteSession handles DELETE /api/v1/sessions/{id}.
func (h *Handlers) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.Delete(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddWaypoint handles POST /api/v1/sessions/{id}/waypoints.
func (h *Handlers) HandleAddWaypoint(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.session(w, r)
	if !ok {
		return
	}
	var req WaypointRequest
	if !decodeJSON(w, r, &req, 1024) {
		return
	}
	if err := validateCoord(req.Lat, req.Lng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return
	}
	index := -1
	if req.Index != nil {
		index = *req.Index
	}

	if _, err := ed.AddWaypoint(r.Context(), index, orb.Point{req.Lng, req.Lat}, req.Zoom); err != nil {
		writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ed))
}

// HandleMoveWaypoint handles PUT /api/v1/sessions/{id}/waypoints/{idx}.
func (h *Handlers) HandleMoveWaypoint(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "idx")
		return
	}
	var req WaypointRequest
	if !decodeJSON(w, r, &req, 1024) {
		return
	}
	if err := validateCoord(req.Lat, req.Lng); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "")
		return
	}

	if _, err := ed.MoveWaypoint(r.Context(), idx, orb.Point{req.Lng, req.Lat}, req.Zoom); err != nil {
		writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ed))
}

// HandleRemoveWaypoint handles DELETE /api/v1/sessions/{id}/waypoints/{idx}.
func (h *Handlers) HandleRemoveWaypoint(w http.ResponseWriter, r *http.Request) {
	ed, ok := h.session(w, r)
	if !ok {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "idx"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "idx")
		return
	}

	if _, err := ed.RemoveWaypoint(r.Context(), idx); err != nil {
		writeRouteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(ed))
}

// HandleHealth handles GET /api/v1/health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.stats
	stats.NumSessions = h.sessions.Len()
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*session.Editor, bool) {
	ed, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_session", "id")
		return nil, false
	}
	return ed, true
}

func sessionResponse(ed *session.Editor) SessionResponse {
	locs := ed.Waypoints()
	wps := make([]WaypointJSON, len(locs))
	for i, l := range locs {
		wps[i] = WaypointJSON{Lat: l.Point.Lat(), Lng: l.Point.Lon(), PathID: l.PathID, Position: l.Fraction}
	}
	return SessionResponse{
		ID:        ed.ID,
		Waypoints: wps,
		Route:     newRouteResponse(ed.Route()),
		Busy:      ed.Busy(),
		Errored:   ed.Errored(),
	}
}

// decodeJSON enforces the JSON content type and decodes a bounded body into
// v. It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, limit int64) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "")
		return false
	}
	return true
}

// writeRouteError maps routing, topology and session errors to responses.
func writeRouteError(w http.ResponseWriter, err error) {
	field := ""
	var re *routing.RouteError
	if errors.As(err, &re) {
		field = fmt.Sprintf("steps[%d]", re.Index)
	}

	switch {
	case errors.Is(err, topology.ErrUnknownPath), errors.Is(err, graph.ErrUnknownEdge):
		writeError(w, http.StatusBadRequest, "unknown_path", "steps")
	case errors.Is(err, routing.ErrTooFewWaypoints):
		writeError(w, http.StatusBadRequest, "invalid_request", "steps")
	case errors.Is(err, routing.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "invalid_route", field)
	case errors.Is(err, topology.ErrEmptyTopology):
		writeError(w, http.StatusUnprocessableEntity, "empty_route", field)
	case errors.Is(err, routing.ErrUnsnappedDrop), errors.Is(err, routing.ErrPointTooFar):
		writeError(w, http.StatusUnprocessableEntity, "point_too_far_from_path", "")
	case errors.Is(err, session.ErrNoWaypoint):
		writeError(w, http.StatusNotFound, "unknown_waypoint", "idx")
	case errors.Is(err, session.ErrMarkersDisabled):
		writeError(w, http.StatusConflict, "markers_disabled", "")
	case errors.Is(err, session.ErrFetchInProgress):
		writeError(w, http.StatusConflict, "fetch_in_progress", "")
	case errors.Is(err, session.ErrStaleResponse):
		writeError(w, http.StatusConflict, "stale_response", "")
	case errors.Is(err, graph.ErrMalformedGraph):
		writeError(w, http.StatusInternalServerError, "graph_malformed", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request_timeout", "")
	default:
		slog.Error("route request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}

func validateCoord(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return errors.New("coordinates out of range")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, field string) {
	writeJSON(w, status, ErrorResponse{Error: code, Field: field})
}
