// Package sphereindex is the stop-coordinate spatial index backing
// both C6's per-stop radius transfer computation and C7's access/egress
// resolution (spec.md §4.6 step 4, §4.7 "Access resolution"). It layers
// two pack libraries: tidwall/rtree does the broad-phase rectangular
// query over a lat/lon bounding box, and golang/geo/s2 resolves the
// exact great-circle distance for each candidate the rtree returns, so
// that the rectangle's corner-cutting doesn't leak false positives (or
// drop true ones) near the query radius.
package sphereindex

import (
	"math"

	"github.com/golang/geo/s2"
	"github.com/tidwall/rtree"
)

// earthRadiusMeters matches the radius geo.HaversineDistance assumes,
// in meters rather than kilometers.
const earthRadiusMeters = 6371000.0

// degreesPerMeter is how many degrees of latitude a meter spans. Query
// pads the rtree query rectangle by this in latitude and by this over
// cos(lat) in longitude, so the rectangle contains every point within
// the requested radius.
const degreesPerMeter = 360.0 / (2 * 3.14159265358979323846 * earthRadiusMeters)

// Index maps stop indices to their position on the sphere. Stop
// identity is the caller's int32 index into timetable.Timetable.Stops;
// sphereindex doesn't know about stop IDs.
type Index struct {
	tree   rtree.RTree
	points map[int32]s2.Point
}

func New() *Index {
	return &Index{points: make(map[int32]s2.Point)}
}

// Insert adds a stop at (lat, lon) under the given index.
func (idx *Index) Insert(stopIdx int32, lat, lon float64) {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	idx.points[stopIdx] = pt
	idx.tree.Insert([2]float64{lon, lat}, [2]float64{lon, lat}, stopIdx)
}

// Neighbor is one result of a radius query: the stop index and its
// great-circle distance from the query point, in meters.
type Neighbor struct {
	StopIndex int32
	Meters    float64
}

// Query returns every inserted stop within radiusMeters of (lat, lon),
// sorted by great-circle distance ascending. Distance order is not
// walking-time order; transfergraph.Build sorts its Transfer lists by
// walk time itself.
func (idx *Index) Query(lat, lon, radiusMeters float64) []Neighbor {
	latPad := radiusMeters * degreesPerMeter * 1.01 // small margin for rounding
	lonPad := latPad / math.Max(math.Cos(lat*math.Pi/180), 1e-9)
	min := [2]float64{lon - lonPad, lat - latPad}
	max := [2]float64{lon + lonPad, lat + latPad}

	origin := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))

	var out []Neighbor
	idx.tree.Search(min, max, func(_, _ [2]float64, data interface{}) bool {
		stopIdx := data.(int32)
		pt := idx.points[stopIdx]
		angle := origin.Distance(pt)
		meters := float64(angle) * earthRadiusMeters
		if meters <= radiusMeters {
			out = append(out, Neighbor{StopIndex: stopIdx, Meters: meters})
		}
		return true
	})

	sortNeighborsByDistance(out)
	return out
}

func sortNeighborsByDistance(n []Neighbor) {
	// insertion sort: per-stop neighbor lists are small (bounded by
	// R_max), not worth pulling in sort.Slice's reflection overhead.
	for i := 1; i < len(n); i++ {
		for j := i; j > 0 && n[j].Meters < n[j-1].Meters; j-- {
			n[j], n[j-1] = n[j-1], n[j]
		}
	}
}

// Len reports how many stops are indexed.
func (idx *Index) Len() int {
	return len(idx.points)
}
