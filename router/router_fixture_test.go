package router

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/mmap"
	"github.com/ellenhp/solari-go/timetable"
	"github.com/ellenhp/solari-go/transfergraph"
)

// fixtureStops are three stops on a north-south line roughly 555m
// apart (0.005 degrees latitude), close enough together that a single
// route and a single contracted road graph cover access, a direct
// ride, and egress.
var fixtureStops = []struct {
	id       string
	lat, lon float64
}{
	{"a", 47.600, -122.300},
	{"b", 47.605, -122.300},
	{"c", 47.610, -122.300},
}

// buildFixtureRouter compiles a three-stop, one-pattern timetable plus
// a road graph with one node per stop (connected in a line, matching
// the stops' spacing) into a temp-directory timetable and a
// contracted-graph sidecar, then opens a Router over both.
func buildFixtureRouter(t *testing.T) *Router {
	t.Helper()

	stops := make([]*model.Stop, len(fixtureStops))
	for i, s := range fixtureStops {
		stops[i] = &model.Stop{ID: s.id, Name: s.id, Lat: s.lat, Lon: s.lon}
	}
	tt, err := timetable.Build(stops, nil, "20240101", 2)
	require.NoError(t, err)

	tt.Patterns = []timetable.PatternHeader{{
		StopOffset: 0, NumStops: 3, TripOffset: 0, NumTrips: 1,
		RouteID: "r1", AgencyID: "ag1", ShortName: "R1", LongName: "Route One",
		RouteType: model.RouteTypeBus,
	}}
	tt.PatternStops = []int32{0, 1, 2}
	tt.Trips = []timetable.Trip{{PatternID: 0, ServiceID: "svc", Headsign: "Northbound", StopsIndex: 0}}
	tt.StopTimes = []timetable.StopTime{
		{Arrival: 0, Departure: 0},
		{Arrival: 300, Departure: 310},
		{Arrival: 600, Departure: 600},
	}
	tt.Calendar = []timetable.TripCalendar{{Days: make([]byte, tt.BytesPerTrip())}}
	tt.Calendar[0].Days[0] = 0b00000001 // active on day 0
	tt.Transfers = make([][]timetable.Transfer, len(stops))

	dir := t.TempDir()
	require.NoError(t, mmap.Write(dir, tt))

	g := transfergraph.NewGraph()
	nodes := make([]transfergraph.NodeID, len(fixtureStops))
	for i, s := range fixtureStops {
		nodes[i] = g.AddNode(s.lat, s.lon)
	}
	for i := 0; i < len(nodes)-1; i++ {
		seconds := metersBetween(fixtureStops[i].lat, fixtureStops[i].lon, fixtureStops[i+1].lat, fixtureStops[i+1].lon) / walkingSpeedMetersPerSecond
		g.AddEdge(nodes[i], nodes[i+1], seconds)
		g.AddEdge(nodes[i+1], nodes[i], seconds)
	}
	ch := transfergraph.BuildCH(g)

	chPath := filepath.Join(t.TempDir(), "contracted_graph.bin")
	require.NoError(t, transfergraph.WriteCH(chPath, ch))

	r, err := Open(dir, chPath)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

// metersBetween is the equirectangular approximation good enough for
// the short, nearly-constant-latitude spans this fixture uses.
func metersBetween(lat1, lon1, lat2, lon2 float64) float64 {
	const metersPerDegreeLat = 111320.0
	dLat := (lat2 - lat1) * metersPerDegreeLat
	dLon := (lon2 - lon1) * metersPerDegreeLat
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
