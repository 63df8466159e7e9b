package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Location is the closest point of a line to a query point.
type Location struct {
	Fraction float64   // arc length up to Point divided by the line length, in [0,1]
	Distance float64   // planar distance from the query point to Point
	Point    orb.Point // closest point on the line
}

// PointToSegmentDist computes the planar distance from p to segment ab and
// the projection ratio along ab, clamped to [0,1].
func PointToSegmentDist(p, a, b orb.Point) (dist float64, ratio float64) {
	// Exact comparison so that repeated vertices never divide by a tiny lenSq.
	if a == b {
		return planar.Distance(p, a), 0
	}

	dx := b[0] - a[0]
	dy := b[1] - a[1]
	lenSq := dx*dx + dy*dy

	var t float64
	if lenSq > 0 {
		t = ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / lenSq
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
	}

	ex := p[0] - (a[0] + t*dx)
	ey := p[1] - (a[1] + t*dy)
	return math.Sqrt(ex*ex + ey*ey), t
}

// Length returns the planar length of line.
func Length(line orb.LineString) float64 {
	return planar.Length(line)
}

// Locate finds the point of line closest to p.
//
// Every consecutive vertex pair is scanned; on equal distances the first
// segment in vertex order wins. A line with zero length (a single point or
// only repeated vertices) yields Fraction 0. An empty line yields an infinite
// Distance.
func Locate(p orb.Point, line orb.LineString) Location {
	switch len(line) {
	case 0:
		return Location{Distance: math.Inf(1), Point: p}
	case 1:
		return Location{Distance: planar.Distance(p, line[0]), Point: line[0]}
	}

	total := Length(line)
	best := Location{Distance: math.Inf(1)}
	var walked float64

	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		segLen := planar.Distance(a, b)
		dist, t := PointToSegmentDist(p, a, b)
		if dist < best.Distance {
			best.Distance = dist
			best.Point = orb.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1])}
			best.Fraction = walked + t*segLen
		}
		walked += segLen
	}

	if total > 0 {
		best.Fraction = clamp01(best.Fraction / total)
	} else {
		best.Fraction = 0
	}
	return best
}

// Interpolate returns the point at the given arc-length fraction of line.
// The fraction is clamped to [0,1].
func Interpolate(line orb.LineString, fraction float64) orb.Point {
	if len(line) == 0 {
		return orb.Point{}
	}
	fraction = clamp01(fraction)
	total := Length(line)
	if total == 0 || fraction == 0 {
		return line[0]
	}
	if fraction == 1 {
		return line[len(line)-1]
	}

	target := fraction * total
	var walked float64
	for i := 1; i < len(line); i++ {
		a, b := line[i-1], line[i]
		segLen := planar.Distance(a, b)
		if walked+segLen >= target && segLen > 0 {
			r := (target - walked) / segLen
			return orb.Point{a[0] + r*(b[0]-a[0]), a[1] + r*(b[1]-a[1])}
		}
		walked += segLen
	}
	return line[len(line)-1]
}

// SubLine returns the part of line between two fractions. When from > to
// the result runs backwards, from the point at from to the point at to.
func SubLine(line orb.LineString, from, to float64) orb.LineString {
	if len(line) == 0 {
		return nil
	}
	if from > to {
		sub := SubLine(line, to, from)
		sub.Reverse()
		return sub
	}
	from, to = clamp01(from), clamp01(to)

	total := Length(line)
	start := Interpolate(line, from)
	end := Interpolate(line, to)
	if total == 0 {
		return orb.LineString{start, end}
	}

	// Vertices within eps of either cut point are covered by start/end.
	eps := total * 1e-9
	lo, hi := from*total+eps, to*total-eps
	sub := orb.LineString{start}
	var walked float64
	for i := 1; i < len(line)-1; i++ {
		walked += planar.Distance(line[i-1], line[i])
		if walked > lo && walked < hi {
			sub = append(sub, line[i])
		}
	}
	return append(sub, end)
}

// IsClosed reports whether the first and last vertex of line coincide.
func IsClosed(line orb.LineString) bool {
	return len(line) > 1 && line[0] == line[len(line)-1]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
