package router

import "math"

// coordEpsilonDegrees is the tolerance golden comparisons use when
// deciding whether two leg endpoints "coincide" — compiled stop
// coordinates round-trip through float64 decode exactly, but a
// hand-authored golden fixture may carry fewer decimal digits.
const coordEpsilonDegrees = 1e-4

// ItinerariesEquivalent implements spec.md §8's golden comparator:
// "two itineraries [are] equivalent when the same underlying vehicles
// are used, even if boarding/alighting stops differ by one ... transit
// legs match when (transit_route, transit_agency) are equal and at
// least one of (start_location, end_location) coincides; when both
// coincide, route_shape must match too."
//
// spec.md §9 open question #1 notes the source's equivalent relation
// has a bug: its final branch returns false unconditionally after the
// per-leg loop succeeds. This implementation applies the documented
// fix — every leg matching under legsEquivalent is treated as a
// successful match.
func ItinerariesEquivalent(a, b Itinerary) bool {
	if len(a.Legs) != len(b.Legs) {
		return false
	}
	for i := range a.Legs {
		if !legsEquivalent(a.Legs[i], b.Legs[i]) {
			return false
		}
	}
	return true
}

func legsEquivalent(a, b Leg) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == LegTransfer {
		return coordsEqual(a.FromLat, a.FromLon, b.FromLat, b.FromLon) &&
			coordsEqual(a.ToLat, a.ToLon, b.ToLat, b.ToLon)
	}

	if a.RouteShortName != b.RouteShortName || a.AgencyID != b.AgencyID {
		return false
	}

	startMatch := coordsEqual(a.FromLat, a.FromLon, b.FromLat, b.FromLon)
	endMatch := coordsEqual(a.ToLat, a.ToLon, b.ToLat, b.ToLon)
	if !startMatch && !endMatch {
		return false
	}
	if startMatch && endMatch {
		return polylinesEqual(a.Polyline, b.Polyline)
	}
	return true
}

func coordsEqual(lat1, lon1, lat2, lon2 float64) bool {
	return math.Abs(lat1-lat2) <= coordEpsilonDegrees && math.Abs(lon1-lon2) <= coordEpsilonDegrees
}

func polylinesEqual(a, b []LatLon) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !coordsEqual(a[i].Lat, a[i].Lon, b[i].Lat, b[i].Lon) {
			return false
		}
	}
	return true
}
