// Package storage holds the GTFS feed staging layer (C1). It exists
// only to give feed/parse somewhere to write rows while a zip is being
// unpacked, and to give compiler.BuildFeed a typed, queryable view of one
// feed's rows afterwards. It is not a query-serving layer: once a
// timetable has been compiled (mmap.Write), queries run against the
// mmap-resident artifact via router.Router, not against this package.
package storage

import (
	"time"

	"github.com/ellenhp/solari-go/feed/model"
)

// Storage manages staged feeds keyed by a caller-chosen hash string.
// It does not check whether an input was staged before; cmd/solaribuild
// stages under positional keys and parses every input afresh.
type Storage interface {
	// ListFeeds retrieves metadata for all staged feeds matching filter.
	ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error)

	// WriteFeedMetadata records metadata for a feed identified by its
	// Hash. Writing twice with the same hash overwrites.
	WriteFeedMetadata(metadata *FeedMetadata) error

	// GetReader returns a reader over the feed with the given hash. It
	// is an error to call this before a writer for that hash has been
	// closed.
	GetReader(hash string) (FeedReader, error)

	// GetWriter returns a writer for staging a new feed under hash,
	// replacing anything already staged there.
	GetWriter(hash string) (FeedWriter, error)
}

type ListFeedsFilter struct {
	// If set, only include the feed with this hash.
	Hash string
}

// FeedMetadata summarizes a staged feed: the parts of it that
// compiler.BuildFeed and pattern.Build need without rereading every row.
type FeedMetadata struct {
	Hash              string
	SourcePath        string
	StagedAt          time.Time
	Timezone          string
	CalendarStartDate string
	CalendarEndDate   string
	MaxArrival        string
	MaxDeparture      string
}

// FeedWriter writes GTFS records for a single feed. stop_times.txt is
// typically the largest file by a wide margin, so Begin/EndStopTimes
// bracket it to allow batching.
type FeedWriter interface {
	WriteAgency(agency *model.Agency) error
	WriteStop(stop *model.Stop) error
	WriteRoute(route *model.Route) error
	BeginTrips() error
	WriteTrip(trip *model.Trip) error
	EndTrips() error
	WriteCalendar(cal *model.Calendar) error
	WriteCalendarDate(caldate *model.CalendarDate) error
	BeginStopTimes() error
	WriteStopTime(stopTime *model.StopTime) error
	EndStopTimes() error
	Close() error
}

type FeedReader interface {
	Agencies() ([]*model.Agency, error)
	Stops() ([]*model.Stop, error)
	Routes() ([]*model.Route, error)
	Trips() ([]*model.Trip, error)
	StopTimes() ([]*model.StopTime, error)
	Calendars() ([]*model.Calendar, error)
	CalendarDates() ([]*model.CalendarDate, error)

	// ActiveServices returns service IDs active on the given date
	// (YYYYMMDD), applying calendar.txt and calendar_dates.txt
	// exceptions.
	ActiveServices(date string) ([]string, error)

	// MinMaxStopSeq maps trip_id to the [min, max] stop_sequence seen
	// in stop_times for that trip.
	MinMaxStopSeq() (map[string][2]uint32, error)
}
