package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/feed/storage"
)

func stageFeed(t *testing.T, hash string) storage.FeedReader {
	s := storage.NewMemoryStorage()
	w, err := s.GetWriter(hash)
	require.NoError(t, err)

	require.NoError(t, w.WriteStop(&model.Stop{ID: "a", Name: "A", Lat: 1, Lon: 1}))
	require.NoError(t, w.WriteStop(&model.Stop{ID: "b", Name: "B", Lat: 2, Lon: 2}))
	require.NoError(t, w.WriteRoute(&model.Route{ID: "r", ShortName: "R", Type: model.RouteTypeBus}))
	require.NoError(t, w.WriteCalendar(&model.Calendar{ServiceID: "s", Weekday: 0x7F, StartDate: "20240101", EndDate: "20240131"}))

	require.NoError(t, w.BeginTrips())
	require.NoError(t, w.WriteTrip(&model.Trip{ID: "t", RouteID: "r", ServiceID: "s"}))
	require.NoError(t, w.EndTrips())

	require.NoError(t, w.BeginStopTimes())
	require.NoError(t, w.WriteStopTime(&model.StopTime{TripID: "t", StopID: "a", StopSequence: 1, Arrival: "080000", Departure: "080000"}))
	require.NoError(t, w.WriteStopTime(&model.StopTime{TripID: "t", StopID: "b", StopSequence: 2, Arrival: "081000", Departure: "081000"}))
	require.NoError(t, w.EndStopTimes())

	require.NoError(t, w.Close())

	reader, err := s.GetReader(hash)
	require.NoError(t, err)
	return reader
}

func TestCompileBuildsAndConcatenatesFeeds(t *testing.T) {
	feeds := []Feed{
		{SourcePath: "feed-a.zip", Reader: stageFeed(t, "a")},
		{SourcePath: "feed-b.zip", Reader: stageFeed(t, "b")},
	}
	cfg := Config{CalendarStart: "20240101", CalendarDays: 30, NumWorkers: 2}

	merged, err := Compile(feeds, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, merged.Stops, 2) // same-named stops across feeds dedup
	assert.Len(t, merged.Patterns, 1)
	assert.Len(t, merged.Trips, 2)
}
