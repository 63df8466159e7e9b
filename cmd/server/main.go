package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/exp/slog"

	"topo_router/pkg/api"
	"topo_router/pkg/config"
	"topo_router/pkg/logging"
	"topo_router/pkg/routing"
	"topo_router/pkg/session"
	"topo_router/pkg/store"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (empty = defaults)")
	dbPath := flag.String("db", "", "Path to the path store, overrides store.path")
	port := flag.Int("port", 0, "HTTP port, overrides server.addr")
	corsOrigin := flag.String("cors-origin", "", "CORS allowed origin, overrides server.cors_origin")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *port != 0 {
		cfg.Server.Addr = fmt.Sprintf(":%d", *port)
	}
	if *corsOrigin != "" {
		cfg.Server.CORSOrigin = *corsOrigin
	}

	if err := logging.Setup(os.Stderr, cfg.Logging.Level); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	start := time.Now()

	slog.Info("loading path network", "store", cfg.Store.Path)
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	g, lines, err := db.Network(context.Background())
	if err != nil {
		return fmt.Errorf("load network: %w", err)
	}
	slog.Info("loaded", "nodes", g.NumNodes(), "paths", g.NumEdges())

	planner := routing.NewPlanner(routing.NewEngine(g), lines)
	guides := routing.NewGuideIndex(routing.LineGuides(lines), cfg.Snapping.MinZoom)

	sessions := session.NewStore(cfg.Sessions.Max, cfg.Sessions.TTL, func() *session.Editor {
		return session.NewEditor(planner, guides, cfg.Snapping.DistancePx)
	})
	stopCleanup := sessions.StartCleanup(cfg.Sessions.CleanupInterval)
	defer stopCleanup()

	handlers, err := api.NewHandlers(planner, g, guides, sessions, cfg.Snapping.DistancePx)
	if err != nil {
		return err
	}
	slog.Info("ready", "elapsed", time.Since(start).Round(time.Millisecond))

	return api.ListenAndServe(api.NewServer(cfg.ServerConfig(), handlers))
}
