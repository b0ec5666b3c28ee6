package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/pattern"
)

func TestBuildAssemblesCSRArrays(t *testing.T) {
	stops := []*model.Stop{
		{ID: "a", Name: "A", Lat: 1, Lon: 2},
		{ID: "b", Name: "B", Lat: 3, Lon: 4},
	}
	patterns := []*pattern.Pattern{
		{
			Stops:     []string{"a", "b"},
			RouteID:   "r",
			ShortName: "R",
			Trips: []pattern.Trip{
				{
					TripID:    "t1",
					ServiceID: "s",
					Times: []pattern.StopTime{
						{StopID: "a", Arrival: 100, Departure: 100},
						{StopID: "b", Arrival: 200, Departure: 200},
					},
				},
			},
		},
	}

	tt, err := Build(stops, patterns, "20240101", 30)
	require.NoError(t, err)
	require.Len(t, tt.Stops, 2)
	require.Len(t, tt.Patterns, 1)
	require.Len(t, tt.Trips, 1)

	assert.Equal(t, []int32{0, 1}, tt.PatternStopIDs(0))
	times := tt.TripStopTimes(0)
	require.Len(t, times, 2)
	assert.Equal(t, uint32(100), times[0].Arrival)
	assert.Equal(t, uint32(200), times[1].Arrival)

	assert.Equal(t, []int32{0}, tt.PatternTrips(0))

	require.Len(t, tt.StopPatterns[0], 1)
	assert.Equal(t, int32(0), tt.StopPatterns[0][0].Pattern)
	assert.Equal(t, int32(0), tt.StopPatterns[0][0].Position)
	require.Len(t, tt.StopPatterns[1], 1)
	assert.Equal(t, int32(1), tt.StopPatterns[1][0].Position)
}

func TestBuildResolvesParentStation(t *testing.T) {
	stops := []*model.Stop{
		{ID: "platform", Name: "Platform", ParentStation: "station"},
		{ID: "station", Name: "Station"},
	}
	tt, err := Build(stops, nil, "20240101", 1)
	require.NoError(t, err)
	platformIdx := tt.StopIndex["platform"]
	stationIdx := tt.StopIndex["station"]
	assert.Equal(t, stationIdx, tt.Stops[platformIdx].ParentStop)
	assert.Equal(t, int32(-1), tt.Stops[stationIdx].ParentStop)
}

func TestBuildRejectsUnknownParentStation(t *testing.T) {
	stops := []*model.Stop{{ID: "s", ParentStation: "missing"}}
	_, err := Build(stops, nil, "20240101", 1)
	assert.Error(t, err)
}

func TestApplyCalendarAssignsByServiceID(t *testing.T) {
	stops := []*model.Stop{{ID: "a"}, {ID: "b"}}
	patterns := []*pattern.Pattern{{
		Stops: []string{"a", "b"},
		Trips: []pattern.Trip{{
			TripID:    "t1",
			ServiceID: "weekdays",
			Times: []pattern.StopTime{
				{StopID: "a", Arrival: 0, Departure: 0},
				{StopID: "b", Arrival: 60, Departure: 60},
			},
		}},
	}}
	tt, err := Build(stops, patterns, "20240101", 7)
	require.NoError(t, err)

	bits := map[string][]byte{"weekdays": {0b00011111}}
	require.NoError(t, tt.ApplyCalendar(bits))
	assert.True(t, tt.Calendar[0].ActiveOnDay(0))
	assert.True(t, tt.Calendar[0].ActiveOnDay(4))
	assert.False(t, tt.Calendar[0].ActiveOnDay(5))
}

func TestApplyCalendarErrorsOnUnknownService(t *testing.T) {
	stops := []*model.Stop{{ID: "a"}, {ID: "b"}}
	patterns := []*pattern.Pattern{{
		Stops: []string{"a", "b"},
		Trips: []pattern.Trip{{TripID: "t1", ServiceID: "weekdays", Times: []pattern.StopTime{
			{StopID: "a"}, {StopID: "b"},
		}}},
	}}
	tt, err := Build(stops, patterns, "20240101", 7)
	require.NoError(t, err)
	assert.Error(t, tt.ApplyCalendar(map[string][]byte{}))
}
