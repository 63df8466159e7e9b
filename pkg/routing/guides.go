package routing

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"

	"topo_router/pkg/graph"
	"topo_router/pkg/topology"
)

// GuideIndex is an R-tree over snapping guides. It does the spatial
// pre-filtering the Snapper expects from its caller.
type GuideIndex struct {
	tr      rtree.RTreeG[int]
	guides  []Guide
	minZoom int
}

// NewGuideIndex indexes guides. Below minZoom, Candidates returns nothing.
func NewGuideIndex(guides []Guide, minZoom int) *GuideIndex {
	ix := &GuideIndex{guides: guides, minZoom: minZoom}
	for i, g := range guides {
		b := g.Bound()
		ix.tr.Insert([2]float64(b.Min), [2]float64(b.Max), i)
	}
	return ix
}

// Len returns the number of indexed guides.
func (ix *GuideIndex) Len() int { return len(ix.guides) }

// Candidates returns the guides whose bounds intersect view, in the order
// they were indexed. Snapping is disabled below the minimum zoom level.
func (ix *GuideIndex) Candidates(view orb.Bound, zoom int) []Guide {
	if zoom < ix.minZoom {
		return nil
	}
	return ix.search(view)
}

// Nearest finds the guide closest to p within maxDist, measured in
// coordinate units.
func (ix *GuideIndex) Nearest(p orb.Point, maxDist float64) (Guide, SnapResult, error) {
	view := orb.Bound{
		Min: orb.Point{p[0] - maxDist, p[1] - maxDist},
		Max: orb.Point{p[0] + maxDist, p[1] + maxDist},
	}
	var s Snapper
	res := s.OnMove(p, ix.search(view), maxDist)
	if !res.Snapped {
		return Guide{}, res, ErrPointTooFar
	}
	return res.Guide, res, nil
}

// Snap snaps pos to the nearest guide within pixels screen pixels at the
// given zoom level. Below the minimum zoom nothing snaps.
func (ix *GuideIndex) Snap(pos orb.Point, zoom int, pixels float64) (Guide, SnapResult, error) {
	if zoom < ix.minZoom {
		return Guide{}, SnapResult{Point: pos, Distance: math.Inf(1)}, ErrPointTooFar
	}
	return ix.Nearest(pos, pixels*UnitsPerPixel(zoom))
}

// LineGuides returns one line guide per polyline, ordered by path id.
func LineGuides(lines topology.PolylineMap) []Guide {
	ids := make([]graph.EdgeID, 0, len(lines))
	for id := range lines {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	guides := make([]Guide, len(ids))
	for i, id := range ids {
		guides[i] = LineGuide(id, lines[id])
	}
	return guides
}

func (ix *GuideIndex) search(view orb.Bound) []Guide {
	var hits []int
	ix.tr.Search([2]float64(view.Min), [2]float64(view.Max), func(min, max [2]float64, i int) bool {
		hits = append(hits, i)
		return true
	})
	sort.Ints(hits)

	out := make([]Guide, len(hits))
	for k, i := range hits {
		out[k] = ix.guides[i]
	}
	return out
}

// UnitsPerPixel converts a pixel distance at the given zoom level into
// degrees of longitude on a 256-pixel tile pyramid.
func UnitsPerPixel(zoom int) float64 {
	return 360 / (256 * math.Pow(2, float64(zoom)))
}
