package nav

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// ErrNotSplittable is returned when a round trip has too few waypoints or
// path points to be divided into two legs.
var ErrNotSplittable = errors.New("nav: round trip needs at least 2 waypoints and 2 path points")

// Names of the two legs of a split round trip.
const (
	TripThere = "tripThere"
	TripBack  = "tripBack"
)

// SplitRoundTrip divides the closed loop of an optimized round trip at the
// furthest waypoint reached along it. The outbound leg ends on the turnaround
// coordinate and the return leg starts on it.
func SplitRoundTrip(res *DirectionsResult) (there, back Trip, err error) {
	if res == nil || len(res.Waypoints) < MinLocations || len(res.Trips) == 0 || len(res.Trips[0].Geometry) < 2 {
		return Trip{}, Trip{}, ErrNotSplittable
	}

	path := res.Trips[0].Geometry
	turn := turnaroundIndex(path, res.Waypoints)

	there = Trip{
		Name:     TripThere,
		Geometry: cloneLine(path[:turn+1]),
		Distance: res.Distance,
		Duration: res.Duration,
	}
	back = Trip{
		Name:     TripBack,
		Geometry: cloneLine(path[turn:]),
		Distance: res.Distance,
		Duration: res.Duration,
	}
	return there, back, nil
}

// turnaroundIndex returns the largest path index matched by any waypoint.
// When nothing past the start matches, the point farthest from the start is
// used instead so both legs stay meaningful.
func turnaroundIndex(path orb.LineString, waypoints []Waypoint) int {
	turn := -1
	for _, wp := range waypoints {
		if i := indexOfPoint(path, wp.Location); i > turn {
			turn = i
		}
	}
	if turn > 0 {
		return turn
	}
	return farthestFromStart(path)
}

// indexOfPoint returns the index of the first path coordinate within
// MatchTolerance of p, or -1.
func indexOfPoint(path orb.LineString, p orb.Point) int {
	for i, c := range path {
		if math.Abs(c.Lon()-p.Lon()) <= MatchTolerance && math.Abs(c.Lat()-p.Lat()) <= MatchTolerance {
			return i
		}
	}
	return -1
}

func farthestFromStart(path orb.LineString) int {
	best, bestDist := 0, -1.0
	for i, c := range path {
		if d := geo.Distance(path[0], c); d > bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func cloneLine(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	copy(out, ls)
	return out
}
