package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/pattern"
	"github.com/ellenhp/solari-go/timetable"
)

func buildTable(t *testing.T, stops []*model.Stop, patterns []*pattern.Pattern) *timetable.Timetable {
	tt, err := timetable.Build(stops, patterns, "20240101", 30)
	require.NoError(t, err)
	bitmaps := map[string][]byte{}
	for _, p := range patterns {
		for _, trip := range p.Trips {
			bitmaps[trip.ServiceID] = make([]byte, tt.BytesPerTrip())
		}
	}
	require.NoError(t, tt.ApplyCalendar(bitmaps))
	return tt
}

func TestConcatenateMergesCoincidentStops(t *testing.T) {
	a := buildTable(t, []*model.Stop{
		{ID: "feedA:downtown", Name: "Downtown Station", Lat: 47.6062, Lon: -122.3321},
	}, nil)
	b := buildTable(t, []*model.Stop{
		{ID: "feedB:downtown", Name: "Downtown Station", Lat: 47.6062, Lon: -122.3321},
	}, nil)

	merged, err := Concatenate([]*timetable.Timetable{a, b}, []string{"a.zip", "b.zip"})
	require.NoError(t, err)
	assert.Len(t, merged.Stops, 1)
}

func TestConcatenateKeepsDistinctStops(t *testing.T) {
	a := buildTable(t, []*model.Stop{{ID: "s1", Name: "Main St", Lat: 47.6, Lon: -122.3}}, nil)
	b := buildTable(t, []*model.Stop{{ID: "s2", Name: "Main St", Lat: 48.0, Lon: -122.3}}, nil)

	merged, err := Concatenate([]*timetable.Timetable{a, b}, []string{"a.zip", "b.zip"})
	require.NoError(t, err)
	assert.Len(t, merged.Stops, 2)
}

func TestConcatenateCoalescesIdenticalPatterns(t *testing.T) {
	stopsA := []*model.Stop{{ID: "x", Name: "X", Lat: 1, Lon: 1}, {ID: "y", Name: "Y", Lat: 2, Lon: 2}}
	stopsB := []*model.Stop{{ID: "x2", Name: "X", Lat: 1, Lon: 1}, {ID: "y2", Name: "Y", Lat: 2, Lon: 2}}

	pA := []*pattern.Pattern{{
		Stops: []string{"x", "y"}, RouteID: "r",
		Trips: []pattern.Trip{{TripID: "t1", ServiceID: "s1", Times: []pattern.StopTime{
			{StopID: "x", Arrival: 100, Departure: 100}, {StopID: "y", Arrival: 200, Departure: 200},
		}}},
	}}
	pB := []*pattern.Pattern{{
		Stops: []string{"x2", "y2"}, RouteID: "r",
		Trips: []pattern.Trip{{TripID: "t2", ServiceID: "s2", Times: []pattern.StopTime{
			{StopID: "x2", Arrival: 50, Departure: 50}, {StopID: "y2", Arrival: 150, Departure: 150},
		}}},
	}}

	a := buildTable(t, stopsA, pA)
	b := buildTable(t, stopsB, pB)

	merged, err := Concatenate([]*timetable.Timetable{a, b}, []string{"a.zip", "b.zip"})
	require.NoError(t, err)
	require.Len(t, merged.Patterns, 1)
	require.Len(t, merged.Trips, 2)

	// t2 departs earlier (50) than t1 (100); coalesced trip list must
	// be re-sorted by first-stop departure.
	assert.Equal(t, "s2", merged.Trips[0].ServiceID)
	assert.Equal(t, "s1", merged.Trips[1].ServiceID)
}

func TestConcatenateKeepsFIFOSplitPatternsApart(t *testing.T) {
	// Two feeds whose stops coincide and whose patterns share the same
	// stop sequence once remapped, but t2 (departing x at 150) arrives
	// at y (250) before t1 (departing x at 100, arriving y at 300)
	// does. Naively coalescing by stop sequence and re-sorting the
	// combined trip list by first-stop departure alone would put t1
	// ahead of t2 and silently let t2 overtake it -- exactly the case
	// pattern.Build's splitFIFOViolations exists to prevent within a
	// single feed. Concatenate must keep them in separate patterns.
	stopsA := []*model.Stop{{ID: "x", Name: "X", Lat: 1, Lon: 1}, {ID: "y", Name: "Y", Lat: 2, Lon: 2}}
	stopsB := []*model.Stop{{ID: "x2", Name: "X", Lat: 1, Lon: 1}, {ID: "y2", Name: "Y", Lat: 2, Lon: 2}}

	pA := []*pattern.Pattern{{
		Stops: []string{"x", "y"}, RouteID: "r",
		Trips: []pattern.Trip{{TripID: "t1", ServiceID: "s1", Times: []pattern.StopTime{
			{StopID: "x", Arrival: 100, Departure: 100}, {StopID: "y", Arrival: 300, Departure: 300},
		}}},
	}}
	pB := []*pattern.Pattern{{
		Stops: []string{"x2", "y2"}, RouteID: "r",
		Trips: []pattern.Trip{{TripID: "t2", ServiceID: "s2", Times: []pattern.StopTime{
			{StopID: "x2", Arrival: 150, Departure: 150}, {StopID: "y2", Arrival: 250, Departure: 250},
		}}},
	}}

	a := buildTable(t, stopsA, pA)
	b := buildTable(t, stopsB, pB)

	merged, err := Concatenate([]*timetable.Timetable{a, b}, []string{"a.zip", "b.zip"})
	require.NoError(t, err)

	require.Len(t, merged.Patterns, 2, "FIFO-incompatible trips must land in separate patterns")
	for p := int32(0); p < int32(len(merged.Patterns)); p++ {
		trips := merged.PatternTrips(p)
		require.Len(t, trips, 1)
	}

	var serviceIDs []string
	for p := int32(0); p < int32(len(merged.Patterns)); p++ {
		for _, tripIdx := range merged.PatternTrips(p) {
			serviceIDs = append(serviceIDs, merged.Trips[tripIdx].ServiceID)
		}
	}
	assert.ElementsMatch(t, []string{"s1", "s2"}, serviceIDs)
}

func TestConcatenateRejectsCalendarMismatch(t *testing.T) {
	a, err := timetable.Build(nil, nil, "20240101", 30)
	require.NoError(t, err)
	b, err := timetable.Build(nil, nil, "20240201", 30)
	require.NoError(t, err)

	_, err = Concatenate([]*timetable.Timetable{a, b}, []string{"a.zip", "b.zip"})
	assert.Error(t, err)
}

func TestConcatenateRejectsEmptyInput(t *testing.T) {
	_, err := Concatenate(nil, nil)
	assert.Error(t, err)
}
