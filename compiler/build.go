package compiler

import (
	"fmt"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/feed/storage"
	"github.com/ellenhp/solari-go/pattern"
	"github.com/ellenhp/solari-go/timetable"
)

// BuildFeed runs one staged feed (C1 output, already parsed by
// feed/parse) through pattern induction (C2) and CSR assembly (C3),
// producing a single-feed timetable.Timetable ready for
// Concatenate. calendarStart/calendarDays bound the compiled window;
// Compile passes the build's configured window to every feed
// unchanged.
func BuildFeed(reader storage.FeedReader, calendarStart string, calendarDays int) (*timetable.Timetable, error) {
	stops, err := reader.Stops()
	if err != nil {
		return nil, fmt.Errorf("reading stops: %w", err)
	}
	trips, err := reader.Trips()
	if err != nil {
		return nil, fmt.Errorf("reading trips: %w", err)
	}
	stopTimes, err := reader.StopTimes()
	if err != nil {
		return nil, fmt.Errorf("reading stop_times: %w", err)
	}
	routeList, err := reader.Routes()
	if err != nil {
		return nil, fmt.Errorf("reading routes: %w", err)
	}
	calendars, err := reader.Calendars()
	if err != nil {
		return nil, fmt.Errorf("reading calendar: %w", err)
	}
	calendarDates, err := reader.CalendarDates()
	if err != nil {
		return nil, fmt.Errorf("reading calendar_dates: %w", err)
	}

	routes := make(map[string]*model.Route, len(routeList))
	for _, r := range routeList {
		routes[r.ID] = r
	}

	patterns, err := pattern.Build(trips, stopTimes, routes)
	if err != nil {
		return nil, fmt.Errorf("building patterns: %w", err)
	}

	tt, err := timetable.Build(stops, patterns, calendarStart, calendarDays)
	if err != nil {
		return nil, fmt.Errorf("assembling timetable: %w", err)
	}

	bitmaps, err := ExpandCalendar(calendars, calendarDates, calendarStart, calendarDays)
	if err != nil {
		return nil, fmt.Errorf("expanding calendar: %w", err)
	}
	if err := tt.ApplyCalendar(bitmaps); err != nil {
		return nil, fmt.Errorf("applying calendar: %w", err)
	}

	return tt, nil
}
