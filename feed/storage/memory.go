package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/ellenhp/solari-go/feed/model"
)

// In-memory implementation of Storage, used by tests so they don't need
// a sqlite file on disk.

type MemoryStorage struct {
	Feeds    map[string]*MemoryStorageFeed
	Metadata map[string]*FeedMetadata
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		Feeds:    map[string]*MemoryStorageFeed{},
		Metadata: map[string]*FeedMetadata{},
	}
}

func (s *MemoryStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	feeds := []*FeedMetadata{}
	for _, metadata := range s.Metadata {
		if filter.Hash != "" && metadata.Hash != filter.Hash {
			continue
		}
		feeds = append(feeds, metadata)
	}
	sort.Slice(feeds, func(i, j int) bool {
		return feeds[i].StagedAt.After(feeds[j].StagedAt)
	})
	return feeds, nil
}

func (s *MemoryStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	s.Metadata[feed.Hash] = feed
	return nil
}

func (s *MemoryStorage) GetReader(hash string) (FeedReader, error) {
	f, ok := s.Feeds[hash]
	if !ok {
		return nil, fmt.Errorf("feed not found: %s", hash)
	}
	return f, nil
}

func (s *MemoryStorage) GetWriter(hash string) (FeedWriter, error) {
	f := &MemoryStorageFeed{
		calendar:        map[string]*model.Calendar{},
		calendarDate:    map[string][]*model.CalendarDate{},
		routes:          map[string]*model.Route{},
		agency:          map[string]*model.Agency{},
		stops:           map[string]*model.Stop{},
		trips:           map[string]*model.Trip{},
		stopTimesByTrip: map[string][]*model.StopTime{},
		minMaxStopSeq:   map[string][2]uint32{},
	}
	s.Feeds[hash] = f
	return f, nil
}

type MemoryStorageFeed struct {
	calendar        map[string]*model.Calendar
	calendarDate    map[string][]*model.CalendarDate
	routes          map[string]*model.Route
	agency          map[string]*model.Agency
	stops           map[string]*model.Stop
	trips           map[string]*model.Trip
	stopTimesByTrip map[string][]*model.StopTime
	minMaxStopSeq   map[string][2]uint32
}

func (f *MemoryStorageFeed) WriteAgency(agency *model.Agency) error {
	f.agency[agency.ID] = agency
	return nil
}

func (f *MemoryStorageFeed) WriteStop(stop *model.Stop) error {
	f.stops[stop.ID] = stop
	return nil
}

func (f *MemoryStorageFeed) WriteRoute(route *model.Route) error {
	f.routes[route.ID] = route
	return nil
}

func (f *MemoryStorageFeed) BeginTrips() error { return nil }

func (f *MemoryStorageFeed) WriteTrip(trip *model.Trip) error {
	f.trips[trip.ID] = trip
	return nil
}

func (f *MemoryStorageFeed) EndTrips() error { return nil }

func (f *MemoryStorageFeed) BeginStopTimes() error { return nil }

func (f *MemoryStorageFeed) WriteStopTime(stopTime *model.StopTime) error {
	f.stopTimesByTrip[stopTime.TripID] = append(f.stopTimesByTrip[stopTime.TripID], stopTime)

	mms, found := f.minMaxStopSeq[stopTime.TripID]
	if !found {
		f.minMaxStopSeq[stopTime.TripID] = [2]uint32{stopTime.StopSequence, stopTime.StopSequence}
	} else {
		if stopTime.StopSequence < mms[0] {
			mms[0] = stopTime.StopSequence
		}
		if stopTime.StopSequence > mms[1] {
			mms[1] = stopTime.StopSequence
		}
		f.minMaxStopSeq[stopTime.TripID] = mms
	}

	return nil
}

func (f *MemoryStorageFeed) EndStopTimes() error { return nil }

func (f *MemoryStorageFeed) WriteCalendar(row *model.Calendar) error {
	f.calendar[row.ServiceID] = row
	return nil
}

func (f *MemoryStorageFeed) WriteCalendarDate(row *model.CalendarDate) error {
	f.calendarDate[row.ServiceID] = append(f.calendarDate[row.ServiceID], row)
	return nil
}

func (f *MemoryStorageFeed) Close() error { return nil }

func (f *MemoryStorageFeed) Agencies() ([]*model.Agency, error) {
	agencies := []*model.Agency{}
	for _, v := range f.agency {
		agencies = append(agencies, v)
	}
	return agencies, nil
}

func (f *MemoryStorageFeed) Stops() ([]*model.Stop, error) {
	stops := []*model.Stop{}
	for _, v := range f.stops {
		stops = append(stops, v)
	}
	return stops, nil
}

func (f *MemoryStorageFeed) Routes() ([]*model.Route, error) {
	routes := []*model.Route{}
	for _, v := range f.routes {
		routes = append(routes, v)
	}
	return routes, nil
}

func (f *MemoryStorageFeed) Trips() ([]*model.Trip, error) {
	trips := []*model.Trip{}
	for _, v := range f.trips {
		trips = append(trips, v)
	}
	return trips, nil
}

func (f *MemoryStorageFeed) StopTimes() ([]*model.StopTime, error) {
	stopTimes := []*model.StopTime{}
	for _, v := range f.stopTimesByTrip {
		stopTimes = append(stopTimes, v...)
	}
	return stopTimes, nil
}

func (f *MemoryStorageFeed) Calendars() ([]*model.Calendar, error) {
	cals := []*model.Calendar{}
	for _, v := range f.calendar {
		cals = append(cals, v)
	}
	return cals, nil
}

func (f *MemoryStorageFeed) CalendarDates() ([]*model.CalendarDate, error) {
	cds := []*model.CalendarDate{}
	for _, v := range f.calendarDate {
		cds = append(cds, v...)
	}
	return cds, nil
}

func (f *MemoryStorageFeed) ActiveServices(date string) ([]string, error) {
	services := map[string]bool{}

	parsedDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}

	for _, calendar := range f.calendar {
		if calendar.Weekday&(1<<parsedDate.Weekday()) == 0 {
			continue
		}
		if calendar.StartDate > date {
			continue
		}
		if calendar.EndDate < date {
			continue
		}
		services[calendar.ServiceID] = true
	}

	for _, cds := range f.calendarDate {
		for _, cd := range cds {
			if cd.Date == date {
				if cd.ExceptionType == model.ExceptionTypeAdded {
					services[cd.ServiceID] = true
				} else if cd.ExceptionType == model.ExceptionTypeRemoved {
					services[cd.ServiceID] = false
				}
			}
		}
	}

	activeServices := []string{}
	for serviceID, active := range services {
		if active {
			activeServices = append(activeServices, serviceID)
		}
	}

	return activeServices, nil
}

func (f *MemoryStorageFeed) MinMaxStopSeq() (map[string][2]uint32, error) {
	return f.minMaxStopSeq, nil
}
