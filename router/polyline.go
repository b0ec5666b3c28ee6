package router

import "github.com/paulmach/go.geojson"

// fillPolylines attaches a street-network or route-shape polyline to
// every leg (spec.md §4.7 "Egress & reconstruction": "emit
// street-network polylines for the access, egress, and transfer
// legs"). Transit legs get the compiled pattern's intermediate stop
// positions between board and alight, which is the only shape
// geometry the compiled timetable retains (full shapes.txt polylines
// are not carried through compile — see DESIGN.md). Transfer legs
// (including access/egress) get a straight line between endpoints,
// since the contracted graph discards the uncontracted path once a
// shortcut is built.
func (r *Router) fillPolylines(it *Itinerary) {
	for i := range it.Legs {
		leg := &it.Legs[i]
		var points []LatLon
		if leg.Kind == LegTransit {
			points = r.transitShape(leg)
		}
		if len(points) == 0 {
			points = []LatLon{{Lat: leg.FromLat, Lon: leg.FromLon}, {Lat: leg.ToLat, Lon: leg.ToLon}}
		}
		leg.Polyline = encodeLine(points)
	}
}

// transitShape walks the compiled pattern's stop positions from
// BoardPosition to AlightPosition and returns their coordinates.
func (r *Router) transitShape(leg *Leg) []LatLon {
	stopIDs := r.tt.PatternStopIDs(leg.PatternID)
	if int(leg.AlightPosition) >= len(stopIDs) {
		return nil
	}
	out := make([]LatLon, 0, leg.AlightPosition-leg.BoardPosition+1)
	for pos := leg.BoardPosition; pos <= leg.AlightPosition; pos++ {
		s := r.tt.Stop(stopIDs[pos])
		out = append(out, LatLon{Lat: s.Lat, Lon: s.Lon})
	}
	return out
}

// encodeLine round-trips points through a GeoJSON LineString geometry,
// matching the representation the build path's road-network tooling
// (github.com/paulmach/go.geojson) already uses elsewhere in the
// pack for street-network shapes.
func encodeLine(points []LatLon) []LatLon {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Lon, p.Lat} // GeoJSON order: [lon, lat]
	}
	geom := geojson.NewLineStringGeometry(coords)

	out := make([]LatLon, len(geom.LineString))
	for i, c := range geom.LineString {
		out[i] = LatLon{Lat: c[1], Lon: c[0]}
	}
	return out
}
