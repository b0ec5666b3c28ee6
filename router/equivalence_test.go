package router

import "testing"

func transitLeg(route, agency string, fromLat, fromLon, toLat, toLon float64, shape []LatLon) Leg {
	return Leg{
		Kind:           LegTransit,
		RouteShortName: route,
		AgencyID:       agency,
		FromLat:        fromLat, FromLon: fromLon,
		ToLat: toLat, ToLon: toLon,
		Polyline: shape,
	}
}

func TestItinerariesEquivalentIdentical(t *testing.T) {
	leg := transitLeg("R1", "ag1", 47.6, -122.3, 47.61, -122.3, nil)
	a := Itinerary{Legs: []Leg{leg}}
	b := Itinerary{Legs: []Leg{leg}}
	if !ItinerariesEquivalent(a, b) {
		t.Fatal("expected identical itineraries to be equivalent")
	}
}

func TestItinerariesEquivalentBoardingStopDiffersByOne(t *testing.T) {
	a := Itinerary{Legs: []Leg{transitLeg("R1", "ag1", 47.60, -122.30, 47.62, -122.30, nil)}}
	// Boards one stop later; only the end location coincides.
	b := Itinerary{Legs: []Leg{transitLeg("R1", "ag1", 47.605, -122.30, 47.62, -122.30, nil)}}
	if !ItinerariesEquivalent(a, b) {
		t.Fatal("expected itineraries sharing a route/agency and one endpoint to be equivalent")
	}
}

func TestItinerariesEquivalentDifferentRouteNotEquivalent(t *testing.T) {
	a := Itinerary{Legs: []Leg{transitLeg("R1", "ag1", 47.60, -122.30, 47.62, -122.30, nil)}}
	b := Itinerary{Legs: []Leg{transitLeg("R2", "ag1", 47.60, -122.30, 47.62, -122.30, nil)}}
	if ItinerariesEquivalent(a, b) {
		t.Fatal("expected different routes to not be equivalent")
	}
}

func TestItinerariesEquivalentBothEndpointsRequireMatchingShape(t *testing.T) {
	shapeA := []LatLon{{Lat: 47.60, Lon: -122.30}, {Lat: 47.62, Lon: -122.30}}
	shapeB := []LatLon{{Lat: 47.60, Lon: -122.30}, {Lat: 47.61, Lon: -122.30}, {Lat: 47.62, Lon: -122.30}}
	a := Itinerary{Legs: []Leg{transitLeg("R1", "ag1", 47.60, -122.30, 47.62, -122.30, shapeA)}}
	b := Itinerary{Legs: []Leg{transitLeg("R1", "ag1", 47.60, -122.30, 47.62, -122.30, shapeB)}}
	if ItinerariesEquivalent(a, b) {
		t.Fatal("expected mismatched route_shape to break equivalence when both endpoints coincide")
	}
}

func TestItinerariesEquivalentDifferentLegCountNotEquivalent(t *testing.T) {
	leg := transitLeg("R1", "ag1", 47.6, -122.3, 47.61, -122.3, nil)
	a := Itinerary{Legs: []Leg{leg}}
	b := Itinerary{Legs: []Leg{leg, leg}}
	if ItinerariesEquivalent(a, b) {
		t.Fatal("expected different leg counts to never be equivalent")
	}
}
