// Command visualize fetches a route from a running server and writes it as a
// GeoJSON feature collection, ready for any GeoJSON viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/exp/slog"

	"topo_router/pkg/client"
	"topo_router/pkg/graph"
	"topo_router/pkg/logging"
	"topo_router/pkg/routing"
)

func main() {
	routerURL := flag.String("router-url", "http://localhost:8080", "Route server URL")
	stepsFlag := flag.String("steps", "", "Route steps as path:position pairs, e.g. 12:0.5,40:1")
	output := flag.String("output", "", "Output file (empty = stdout)")
	timeout := flag.Duration("timeout", 15*time.Second, "Request timeout")
	flag.Parse()

	logging.Setup(os.Stderr, "info")

	steps, err := parseSteps(*stepsFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid steps: %v\n", err)
		os.Exit(1)
	}

	c := client.New(*routerURL, &http.Client{Timeout: *timeout})
	start := time.Now()
	plan, err := c.Plan(context.Background(), steps)
	if err != nil {
		slog.Error("route request failed", "error", err)
		os.Exit(1)
	}
	slog.Info("route fetched", "legs", len(plan.Topologies), "latency", time.Since(start).Round(time.Millisecond))

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			slog.Error("create output", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}
	if err := write(w, steps, plan); err != nil {
		slog.Error("write output", "error", err)
		os.Exit(1)
	}
}

// parseSteps parses "path:position" pairs separated by commas.
func parseSteps(s string) ([]routing.Step, error) {
	if s == "" {
		return nil, fmt.Errorf("no steps given")
	}
	var steps []routing.Step
	for _, part := range strings.Split(s, ",") {
		id, pos, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("step %q: want path:position", part)
		}
		pathID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", part, err)
		}
		position, err := strconv.ParseFloat(pos, 64)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", part, err)
		}
		steps = append(steps, routing.Step{PathID: graph.EdgeID(pathID), Position: position})
	}
	return steps, nil
}

// write emits one line feature per leg with its serialized topology as
// properties.
func write(w io.Writer, steps []routing.Step, plan *routing.Plan) error {
	fc := geojson.NewFeatureCollection()
	for i, g := range plan.Geometry {
		f := geojson.NewFeature(g)
		f.Properties["leg"] = i
		if i < len(plan.Topologies) {
			t := plan.Topologies[i]
			f.Properties["paths"] = t.Paths
			f.Properties["positions"] = t.Positions
		}
		if i+1 < len(steps) {
			f.Properties["from"] = steps[i]
			f.Properties["to"] = steps[i+1]
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return err
}
