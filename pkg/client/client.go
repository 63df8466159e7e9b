// Package client talks to a running route server over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"

	"topo_router/pkg/api"
	"topo_router/pkg/graph"
	"topo_router/pkg/routing"
	"topo_router/pkg/topology"
)

// maxResponse bounds response bodies.
const maxResponse = 32 << 20

// Error is a non-2xx response. It unwraps to the matching routing or
// topology error when the server reported one.
type Error struct {
	Status int
	Code   string
	Field  string
	err    error
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server: HTTP %d", e.Status)
	}
	if e.Field != "" {
		return fmt.Sprintf("server: %s (%s)", e.Code, e.Field)
	}
	return "server: " + e.Code
}

func (e *Error) Unwrap() error { return e.err }

var codeErrors = map[string]error{
	"invalid_route":           routing.ErrNotFound,
	"empty_route":             topology.ErrEmptyTopology,
	"unknown_path":            topology.ErrUnknownPath,
	"point_too_far_from_path": routing.ErrPointTooFar,
	"graph_malformed":         graph.ErrMalformedGraph,
}

// Client is a route server client. It can stand in for a local planner.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// Plan fetches the route through steps. The returned plan carries
// topologies and geometry; raw path components stay on the server.
func (c *Client) Plan(ctx context.Context, steps []routing.Step) (*routing.Plan, error) {
	var resp api.RouteResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/route", api.RouteRequest{Steps: steps}, &resp); err != nil {
		return nil, err
	}

	plan := &routing.Plan{Topologies: resp.Serialized}
	if resp.GeoJSON != nil {
		coll, ok := resp.GeoJSON.Geometry().(orb.Collection)
		if !ok {
			return nil, fmt.Errorf("route geometry is %s, want a collection", resp.GeoJSON.Type)
		}
		plan.Geometry = coll
	}
	return plan, nil
}

// Graph fetches the path network.
func (c *Client) Graph(ctx context.Context) (*graph.Graph, error) {
	body, err := c.fetch(ctx, http.MethodGet, "/api/v1/graph", nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return graph.DecodeSnapshot(body)
}

// Snap snaps p at the given zoom level. The result has no snap when p is
// too far from every path.
func (c *Client) Snap(ctx context.Context, p orb.Point, zoom int) (topology.PointTopology, error) {
	var pt topology.PointTopology
	err := c.do(ctx, http.MethodPost, "/api/v1/snap", api.SnapRequest{Lat: p.Lat(), Lng: p.Lon(), Zoom: zoom}, &pt)
	return pt, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	body, err := c.fetch(ctx, method, path, in)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(io.LimitReader(body, maxResponse)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, method, path string, in any) (io.ReadCloser, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, responseError(resp)
	}
	return resp.Body, nil
}

func responseError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}
	var er api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if json.Unmarshal(data, &er) == nil {
		e.Code, e.Field = er.Error, er.Field
		e.err = codeErrors[er.Error]
	}
	return e
}
