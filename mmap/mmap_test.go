package mmap

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/timetable"
)

func sampleTimetable(t *testing.T) *timetable.Timetable {
	stops := []*model.Stop{
		{ID: "a", Name: "Stop A", Lat: 47.6, Lon: -122.3},
		{ID: "b", Name: "Stop B", Lat: 47.7, Lon: -122.4},
	}
	tt, err := timetable.Build(stops, nil, "20240101", 30)
	require.NoError(t, err)
	tt.Patterns = []timetable.PatternHeader{{
		StopOffset: 0, NumStops: 2, TripOffset: 0, NumTrips: 1,
		RouteID: "r", AgencyID: "ag", ShortName: "R", RouteType: model.RouteTypeBus,
	}}
	tt.PatternStops = []int32{0, 1}
	tt.Trips = []timetable.Trip{{PatternID: 0, ServiceID: "svc", Headsign: "Downtown", StopsIndex: 0}}
	tt.StopTimes = []timetable.StopTime{{Arrival: 100, Departure: 100}, {Arrival: 200, Departure: 210}}
	tt.Calendar = []timetable.TripCalendar{{Days: make([]byte, tt.BytesPerTrip())}}
	tt.Calendar[0].Days[0] = 0b00000101 // active on day 0 and day 2
	tt.Transfers = [][]timetable.Transfer{
		{{ToStop: 1, WalkSecond: 90}},
		{},
	}
	return tt
}

func TestWriteOpenRoundTrip(t *testing.T) {
	dir := t.TempDir()
	tt := sampleTimetable(t)
	require.NoError(t, Write(dir, tt))

	opened, err := Open(dir)
	require.NoError(t, err)
	defer opened.Close()

	assert.Equal(t, "20240101", opened.CalendarStart())
	assert.Equal(t, 30, opened.CalendarDays())
	assert.Equal(t, 2, opened.NumStops())
	assert.Equal(t, 1, opened.NumPatterns())
	assert.Equal(t, 1, opened.NumTrips())

	a := opened.Stop(0)
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "Stop A", a.Name)
	assert.Equal(t, 47.6, a.Lat)
	assert.Equal(t, int32(-1), a.ParentStop)

	p := opened.Pattern(0)
	assert.Equal(t, "r", p.RouteID)
	assert.Equal(t, "R", p.ShortName)
	assert.Equal(t, model.RouteTypeBus, p.RouteType)
	assert.Equal(t, []int32{0, 1}, opened.PatternStopIDs(0))

	trip := opened.Trip(0)
	assert.Equal(t, "Downtown", trip.Headsign)
	assert.Equal(t, []int32{0}, opened.PatternTrips(0))

	times := opened.TripStopTimes(0)
	require.Len(t, times, 2)
	assert.Equal(t, uint32(100), times[0].Arrival)
	assert.Equal(t, uint32(210), times[1].Departure)

	assert.True(t, opened.ActiveOnDay(0, 0))
	assert.False(t, opened.ActiveOnDay(0, 1))
	assert.True(t, opened.ActiveOnDay(0, 2))
	assert.False(t, opened.ActiveOnDay(0, 30))

	transfers := opened.Transfers(0)
	require.Len(t, transfers, 1)
	assert.Equal(t, int32(1), transfers[0].ToStop)
	assert.Equal(t, uint32(90), transfers[0].WalkSecond)
	assert.Empty(t, opened.Transfers(1))
}

func TestOpenRejectsBadMagic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, sampleTimetable(t)))

	// Corrupt the manifest's magic number.
	path := dir + "/manifest.bin"
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[0] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Open(dir)
	assert.Error(t, err)
}
