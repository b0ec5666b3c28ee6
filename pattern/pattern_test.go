package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellenhp/solari-go/feed/model"
)

func stopTime(trip, stop string, seq uint32, arr, dep string) *model.StopTime {
	return &model.StopTime{TripID: trip, StopID: stop, StopSequence: seq, Arrival: arr, Departure: dep}
}

func TestBuildGroupsByStopSequence(t *testing.T) {
	trips := []*model.Trip{
		{ID: "t1", RouteID: "r", ServiceID: "s"},
		{ID: "t2", RouteID: "r", ServiceID: "s"},
	}
	times := []*model.StopTime{
		stopTime("t1", "a", 1, "080000", "080000"),
		stopTime("t1", "b", 2, "080500", "080500"),
		stopTime("t2", "a", 1, "090000", "090000"),
		stopTime("t2", "b", 2, "090500", "090500"),
	}
	routes := map[string]*model.Route{"r": {ID: "r", ShortName: "R", Type: model.RouteTypeBus, AgencyID: "ag"}}

	patterns, err := Build(trips, times, routes)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, []string{"a", "b"}, patterns[0].Stops)
	assert.Equal(t, 0, patterns[0].ID)
	require.Len(t, patterns[0].Trips, 2)
	assert.Equal(t, "t1", patterns[0].Trips[0].TripID)
	assert.Equal(t, "t2", patterns[0].Trips[1].TripID)
	assert.Equal(t, model.RouteTypeBus, patterns[0].RouteType)
	assert.Equal(t, "ag", patterns[0].AgencyID)
}

func TestBuildDistinctStopSequencesGetDistinctPatterns(t *testing.T) {
	trips := []*model.Trip{
		{ID: "t1", RouteID: "r", ServiceID: "s"},
		{ID: "t2", RouteID: "r", ServiceID: "s"},
	}
	times := []*model.StopTime{
		stopTime("t1", "a", 1, "080000", "080000"),
		stopTime("t1", "b", 2, "080500", "080500"),
		stopTime("t2", "a", 1, "090000", "090000"),
		stopTime("t2", "c", 2, "090500", "090500"),
	}
	patterns, err := Build(trips, times, map[string]*model.Route{})
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	keys := map[string]bool{patterns[0].Key(): true, patterns[1].Key(): true}
	assert.True(t, keys["a\x1fb"])
	assert.True(t, keys["a\x1fc"])
}

func TestBuildSplitsFIFOViolation(t *testing.T) {
	trips := []*model.Trip{
		{ID: "early", RouteID: "r", ServiceID: "s"},
		{ID: "late", RouteID: "r", ServiceID: "s"},
	}
	// "late" departs stop a after "early" but overtakes it and arrives
	// at stop b first -- these cannot share a stop-times matrix.
	times := []*model.StopTime{
		stopTime("early", "a", 1, "080000", "080000"),
		stopTime("early", "b", 2, "090000", "090000"),
		stopTime("late", "a", 1, "081000", "081000"),
		stopTime("late", "b", 2, "083000", "083000"),
	}
	patterns, err := Build(trips, times, map[string]*model.Route{})
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	for _, p := range patterns {
		assert.Equal(t, []string{"a", "b"}, p.Stops)
		assert.Len(t, p.Trips, 1)
	}
}

func TestBuildRejectsShortTrip(t *testing.T) {
	trips := []*model.Trip{{ID: "t1", RouteID: "r", ServiceID: "s"}}
	times := []*model.StopTime{stopTime("t1", "a", 1, "080000", "080000")}
	_, err := Build(trips, times, map[string]*model.Route{})
	assert.Error(t, err)
}

func TestPatternKeyIsStable(t *testing.T) {
	p := &Pattern{Stops: []string{"x", "y", "z"}}
	assert.Equal(t, "x\x1fy\x1fz", p.Key())
}
