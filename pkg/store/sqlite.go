// Package store persists the path network in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"topo_router/pkg/graph"
	"topo_router/pkg/topology"
)

// Path is one stored path segment.
type Path struct {
	ID        graph.EdgeID
	StartNode graph.NodeID
	EndNode   graph.NodeID
	Length    float64
	Geometry  orb.LineString
}

// SqliteStore is a SQLite-backed path segment store.
type SqliteStore struct {
	db *sql.DB
}

// Open opens or creates a path store at the given path.
func Open(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS paths (
			id INTEGER PRIMARY KEY,
			start_node INTEGER NOT NULL,
			end_node INTEGER NOT NULL,
			length REAL NOT NULL,
			geometry TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SqliteStore{db: db}, nil
}

// Close closes the database.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// PutPaths upserts path segments in a single transaction.
func (s *SqliteStore) PutPaths(ctx context.Context, paths []Path) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO paths (id, start_node, end_node, length, geometry)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			start_node = excluded.start_node,
			end_node = excluded.end_node,
			length = excluded.length,
			geometry = excluded.geometry`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range paths {
		geom, err := geojson.NewGeometry(p.Geometry).MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode path %d: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.StartNode, p.EndNode, p.Length, string(geom)); err != nil {
			return fmt.Errorf("upsert path %d: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// Paths returns every stored path ordered by id.
func (s *SqliteStore) Paths(ctx context.Context) ([]Path, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, start_node, end_node, length, geometry FROM paths ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query paths: %w", err)
	}
	defer rows.Close()

	var paths []Path
	for rows.Next() {
		var (
			p    Path
			geom string
		)
		if err := rows.Scan(&p.ID, &p.StartNode, &p.EndNode, &p.Length, &geom); err != nil {
			return nil, fmt.Errorf("scan path: %w", err)
		}
		g, err := geojson.UnmarshalGeometry([]byte(geom))
		if err != nil {
			return nil, fmt.Errorf("decode path %d: %w", p.ID, err)
		}
		line, ok := g.Geometry().(orb.LineString)
		if !ok {
			return nil, fmt.Errorf("path %d: geometry is %s, not LineString", p.ID, g.Geometry().GeoJSONType())
		}
		p.Geometry = line
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Count returns the number of stored paths.
func (s *SqliteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paths`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count paths: %w", err)
	}
	return n, nil
}

// Network loads the stored paths as a routing graph and the matching
// polylines.
func (s *SqliteStore) Network(ctx context.Context) (*graph.Graph, topology.PolylineMap, error) {
	paths, err := s.Paths(ctx)
	if err != nil {
		return nil, nil, err
	}
	g, err := BuildGraph(paths)
	if err != nil {
		return nil, nil, err
	}
	return g, Polylines(paths), nil
}

// BuildGraph builds a routing graph with one edge per path.
func BuildGraph(paths []Path) (*graph.Graph, error) {
	seen := make(map[graph.NodeID]bool)
	var nodes []graph.NodeID
	edges := make([]graph.Edge, len(paths))
	for i, p := range paths {
		for _, n := range []graph.NodeID{p.StartNode, p.EndNode} {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
		edges[i] = graph.Edge{ID: p.ID, Length: p.Length, Nodes: [2]graph.NodeID{p.StartNode, p.EndNode}}
	}
	return graph.Build(nodes, edges)
}

// Polylines indexes path geometries by id.
func Polylines(paths []Path) topology.PolylineMap {
	m := make(topology.PolylineMap, len(paths))
	for _, p := range paths {
		m[p.ID] = p.Geometry
	}
	return m
}
