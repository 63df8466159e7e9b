// Package osm imports a walkable path network from OpenStreetMap PBF data.
package osm

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"golang.org/x/exp/slog"

	"topo_router/pkg/geo"
)

// Segment is a stretch of way between two junctions.
type Segment struct {
	ID        int64
	WayID     osm.WayID
	StartNode osm.NodeID
	EndNode   osm.NodeID
	Length    float64 // meters
	Geometry  orb.LineString
}

// ParseResult holds the output of parsing an OSM PBF file.
type ParseResult struct {
	Segments []Segment
	Skipped  int // segments dropped for missing coordinates or the bbox
}

// pathHighways lists highway tag values of the path network.
var pathHighways = map[string]bool{
	"footway":    true,
	"path":       true,
	"track":      true,
	"bridleway":  true,
	"cycleway":   true,
	"pedestrian": true,
	"steps":      true,
}

// isPathAccessible returns true if the way belongs to the path network.
func isPathAccessible(tags osm.Tags) bool {
	if !pathHighways[tags.Find("highway")] {
		return false
	}

	// Pedestrian plazas are mapped as closed areas.
	if tags.Find("area") == "yes" {
		return false
	}

	access := tags.Find("access")
	if access == "no" || access == "private" {
		return false
	}
	if tags.Find("foot") == "no" {
		return false
	}

	return true
}

// wayInfo holds parsed way data collected during Pass 1.
type wayInfo struct {
	ID      osm.WayID
	NodeIDs []osm.NodeID
}

// BBox defines a geographic bounding box for filtering.
// If non-zero, only segments entirely inside the box are kept.
type BBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// IsZero returns true if the bbox is unset.
func (b BBox) IsZero() bool {
	return b.MinLat == 0 && b.MaxLat == 0 && b.MinLng == 0 && b.MaxLng == 0
}

// Contains returns true if the point is inside the bounding box.
func (b BBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// ParseOptions configures the OSM parser.
type ParseOptions struct {
	BBox BBox // if non-zero, filter segments to this bounding box
}

// Parse reads an OSM PBF file and returns the path segments of its walkable
// ways. The reader is consumed twice (seeks back to start for the second
// pass), so it must implement io.ReadSeeker.
func Parse(ctx context.Context, rs io.ReadSeeker, opts ...ParseOptions) (*ParseResult, error) {
	var opt ParseOptions
	if len(opts) > 0 {
		opt = opts[0]
	}

	// Pass 1: Scan ways to collect referenced node IDs and way info.
	referencedNodes := make(map[osm.NodeID]struct{})
	var ways []wayInfo

	scanner := osmpbf.New(ctx, rs, 1)
	scanner.SkipNodes = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		w, ok := scanner.Object().(*osm.Way)
		if !ok {
			continue
		}
		if !isPathAccessible(w.Tags) || len(w.Nodes) < 2 {
			continue
		}

		nodeIDs := make([]osm.NodeID, len(w.Nodes))
		for i, wn := range w.Nodes {
			nodeIDs[i] = wn.ID
			referencedNodes[wn.ID] = struct{}{}
		}
		ways = append(ways, wayInfo{ID: w.ID, NodeIDs: nodeIDs})
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 1 (ways): %w", err)
	}
	scanner.Close()

	slog.Info("pass 1 complete", "ways", len(ways), "nodes", len(referencedNodes))

	// Pass 2: Scan nodes to collect coordinates for referenced nodes only.
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek for pass 2: %w", err)
	}

	coords := make(map[osm.NodeID]orb.Point, len(referencedNodes))

	scanner = osmpbf.New(ctx, rs, 1)
	scanner.SkipWays = true
	scanner.SkipRelations = true

	for scanner.Scan() {
		n, ok := scanner.Object().(*osm.Node)
		if !ok {
			continue
		}
		if _, needed := referencedNodes[n.ID]; !needed {
			continue
		}
		coords[n.ID] = n.Point()
	}
	if err := scanner.Err(); err != nil {
		scanner.Close()
		return nil, fmt.Errorf("pass 2 (nodes): %w", err)
	}
	scanner.Close()

	slog.Info("pass 2 complete", "coordinates", len(coords))

	res := splitWays(ways, coords, opt.BBox)
	if res.Skipped > 0 {
		slog.Warn("skipped path segments", "count", res.Skipped)
	}
	slog.Info("built path segments", "count", len(res.Segments))
	return res, nil
}

// splitWays cuts ways into segments at every junction: a node shared by
// two ways, or visited twice by one. Segment ids are assigned sequentially
// from 1.
func splitWays(ways []wayInfo, coords map[osm.NodeID]orb.Point, bbox BBox) *ParseResult {
	uses := make(map[osm.NodeID]int)
	for _, w := range ways {
		for _, id := range w.NodeIDs {
			uses[id]++
		}
		// Way ends always cut.
		uses[w.NodeIDs[0]]++
		uses[w.NodeIDs[len(w.NodeIDs)-1]]++
	}

	res := &ParseResult{}
	for _, w := range ways {
		start := 0
		for i := 1; i < len(w.NodeIDs); i++ {
			if uses[w.NodeIDs[i]] < 2 && i < len(w.NodeIDs)-1 {
				continue
			}
			if seg, ok := buildSegment(w, w.NodeIDs[start:i+1], coords, bbox); ok {
				seg.ID = int64(len(res.Segments) + 1)
				res.Segments = append(res.Segments, seg)
			} else {
				res.Skipped++
			}
			start = i
		}
	}
	return res
}

func buildSegment(w wayInfo, nodes []osm.NodeID, coords map[osm.NodeID]orb.Point, bbox BBox) (Segment, bool) {
	line := make(orb.LineString, len(nodes))
	for i, id := range nodes {
		p, ok := coords[id]
		if !ok {
			return Segment{}, false
		}
		if !bbox.IsZero() && !bbox.Contains(p.Lat(), p.Lon()) {
			return Segment{}, false
		}
		line[i] = p
	}
	return Segment{
		WayID:     w.ID,
		StartNode: nodes[0],
		EndNode:   nodes[len(nodes)-1],
		Length:    geo.LengthMeters(line),
		Geometry:  line,
	}, true
}
