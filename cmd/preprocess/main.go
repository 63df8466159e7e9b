package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"topo_router/pkg/graph"
	"topo_router/pkg/logging"
	osmparser "topo_router/pkg/osm"
	"topo_router/pkg/store"
)

func main() {
	input := flag.String("input", "", "Path to .osm.pbf file")
	output := flag.String("output", "paths.db", "Output path store")
	bbox := flag.String("bbox", "", "Bounding box filter: minLat,minLng,maxLat,maxLng (e.g. 1.15,103.6,1.48,104.1)")
	largest := flag.Bool("largest-component", true, "Keep only the largest connected component")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if err := logging.Setup(os.Stderr, *logLevel); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *input == "" {
		fmt.Fprintln(os.Stderr, "Usage: preprocess --input <file.osm.pbf> [--output paths.db] [--bbox minLat,minLng,maxLat,maxLng]")
		os.Exit(1)
	}

	var opts osmparser.ParseOptions
	if *bbox != "" {
		var minLat, minLng, maxLat, maxLng float64
		if _, err := fmt.Sscanf(*bbox, "%f,%f,%f,%f", &minLat, &minLng, &maxLat, &maxLng); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid bbox format (expected minLat,minLng,maxLat,maxLng): %v\n", err)
			os.Exit(1)
		}
		opts.BBox = osmparser.BBox{MinLat: minLat, MaxLat: maxLat, MinLng: minLng, MaxLng: maxLng}
		slog.Info("using bounding box filter", "lat", [2]float64{minLat, maxLat}, "lng", [2]float64{minLng, maxLng})
	}

	if err := run(*input, *output, opts, *largest); err != nil {
		slog.Error("preprocess failed", "error", err)
		os.Exit(1)
	}
}

func run(input, output string, opts osmparser.ParseOptions, largest bool) error {
	start := time.Now()
	ctx := context.Background()

	f, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	res, err := osmparser.Parse(ctx, f, opts)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	slog.Info("parsed", "segments", len(res.Segments), "skipped", res.Skipped)

	paths := make([]store.Path, len(res.Segments))
	for i, s := range res.Segments {
		paths[i] = store.Path{
			ID:        graph.EdgeID(s.ID),
			StartNode: graph.NodeID(s.StartNode),
			EndNode:   graph.NodeID(s.EndNode),
			Length:    s.Length,
			Geometry:  s.Geometry,
		}
	}

	if largest {
		if paths, err = largestComponent(paths); err != nil {
			return err
		}
	}

	db, err := store.Open(output)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PutPaths(ctx, paths); err != nil {
		return err
	}

	slog.Info("done", "paths", len(paths), "output", output, "elapsed", time.Since(start).Round(time.Second))
	return nil
}

// largestComponent drops the paths outside the largest connected component.
func largestComponent(paths []store.Path) ([]store.Path, error) {
	g, err := store.BuildGraph(paths)
	if err != nil {
		return nil, err
	}
	nodes := g.LargestComponent()
	filtered, err := g.FilterToComponent(nodes)
	if err != nil {
		return nil, err
	}
	slog.Info("largest component",
		"nodes", len(nodes),
		"share", fmt.Sprintf("%.1f%%", float64(len(nodes))/float64(max(g.NumNodes(), 1))*100))

	kept := paths[:0]
	for _, p := range paths {
		if _, ok := filtered.Edge(p.ID); ok {
			kept = append(kept, p)
		}
	}
	return kept, nil
}
