package routing

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"topo_router/pkg/topology"
)

func testIndex() *GuideIndex {
	return NewGuideIndex([]Guide{
		LineGuide(1, orb.LineString{{0, 0}, {10, 0}}),
		LineGuide(2, orb.LineString{{10, 0}, {10, 10}}),
		LineGuide(3, orb.LineString{{100, 100}, {110, 100}}),
		PointGuide(4, orb.Point{50, 50}),
	}, 10)
}

func ids(guides []Guide) []int64 {
	out := make([]int64, len(guides))
	for i, g := range guides {
		out[i] = int64(g.PathID)
	}
	return out
}

func TestGuideIndexCandidates(t *testing.T) {
	ix := testIndex()
	if ix.Len() != 4 {
		t.Fatalf("Len = %d, want 4", ix.Len())
	}

	tests := []struct {
		name string
		view orb.Bound
		zoom int
		want []int64
	}{
		{name: "square corner", view: orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{20, 20}}, zoom: 12, want: []int64{1, 2}},
		{name: "point only", view: orb.Bound{Min: orb.Point{40, 40}, Max: orb.Point{60, 60}}, zoom: 10, want: []int64{4}},
		{name: "empty area", view: orb.Bound{Min: orb.Point{200, 200}, Max: orb.Point{300, 300}}, zoom: 15, want: []int64{}},
		{name: "below min zoom", view: orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{200, 200}}, zoom: 9, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ix.Candidates(tt.view, tt.zoom)
			if tt.want == nil {
				if got != nil {
					t.Errorf("Candidates = %v, want nil", ids(got))
				}
				return
			}
			gotIDs := ids(got)
			if len(gotIDs) != len(tt.want) {
				t.Fatalf("Candidates = %v, want %v", gotIDs, tt.want)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.want[i] {
					t.Errorf("Candidates = %v, want %v", gotIDs, tt.want)
					break
				}
			}
		})
	}
}

func TestGuideIndexNearest(t *testing.T) {
	ix := testIndex()

	g, res, err := ix.Nearest(orb.Point{9, 5}, 2)
	if err != nil {
		t.Fatalf("Nearest: %v", err)
	}
	if g.PathID != 2 || res.Point != (orb.Point{10, 5}) || res.Fraction != 0.5 {
		t.Errorf("Nearest = %d %+v, want path 2 at (10,5)", g.PathID, res)
	}

	if _, _, err := ix.Nearest(orb.Point{30, 30}, 2); !errors.Is(err, ErrPointTooFar) {
		t.Errorf("err = %v, want ErrPointTooFar", err)
	}
}

func TestUnitsPerPixel(t *testing.T) {
	if got := UnitsPerPixel(0); got != 1.40625 {
		t.Errorf("UnitsPerPixel(0) = %v, want 1.40625", got)
	}
	if got := UnitsPerPixel(1); got != 0.703125 {
		t.Errorf("UnitsPerPixel(1) = %v, want 0.703125", got)
	}
}

func TestGuideIndexSnap(t *testing.T) {
	ix := testIndex()

	// 1024 pixels at zoom 10 are 1.40625 units.
	g, res, err := ix.Snap(orb.Point{5, 1}, 10, 1024)
	if err != nil || g.PathID != 1 || res.Point != (orb.Point{5, 0}) {
		t.Errorf("Snap = %d %+v %v, want path 1 at (5,0)", g.PathID, res, err)
	}
	if _, res, err := ix.Snap(orb.Point{5, 1}, 11, 1024); !errors.Is(err, ErrPointTooFar) || res.Snapped {
		t.Errorf("Snap at zoom 11 = %+v %v, want too far", res, err)
	}
	if _, res, err := ix.Snap(orb.Point{5, 1}, 5, 1024); !errors.Is(err, ErrPointTooFar) || res.Point != (orb.Point{5, 1}) {
		t.Errorf("Snap below min zoom = %+v %v, want raw point and ErrPointTooFar", res, err)
	}
}

func TestLineGuides(t *testing.T) {
	guides := LineGuides(topology.PolylineMap{
		3: {{0, 0}, {1, 0}},
		1: {{0, 1}, {1, 1}},
	})
	if len(guides) != 2 || guides[0].PathID != 1 || guides[1].PathID != 3 {
		t.Errorf("LineGuides = %+v", guides)
	}
	if guides[0].Kind != LineGuideKind {
		t.Errorf("Kind = %v, want LineGuideKind", guides[0].Kind)
	}
}
