package storage

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ellenhp/solari-go/feed/model"
)

type SQLiteConfig struct {
	OnDisk    bool
	Directory string
}

type SQLiteStorage struct {
	SQLiteConfig

	feedDB *sql.DB
	feeds  map[string]*sql.DB
}

type SQLiteFeedWriter struct {
	db                  *sql.DB
	stopTimeInsertQuery *sql.Stmt
	stopTimeInsertTx    *sql.Tx
}

type SQLiteFeedReader struct {
	db *sql.DB
}

func NewSQLiteStorage(cfg ...SQLiteConfig) (*SQLiteStorage, error) {
	onDisk := false
	directory := ""
	if len(cfg) > 0 {
		onDisk = cfg[0].OnDisk
		directory = cfg[0].Directory
	}

	sourceName := ":memory:"
	if onDisk {
		sourceName = directory + "/feeds.db"
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    hash TEXT PRIMARY KEY,
    source_path TEXT NOT NULL,
    staged_at TIMESTAMP NOT NULL,
    calendar_start TEXT NOT NULL,
    calendar_end TEXT NOT NULL,
    timezone TEXT NOT NULL,
    max_arrival TEXT NOT NULL,
    max_departure TEXT NOT NULL
);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating feed table: %w", err)
	}

	return &SQLiteStorage{
		SQLiteConfig: SQLiteConfig{
			OnDisk:    onDisk,
			Directory: directory,
		},
		feedDB: db,
		feeds:  map[string]*sql.DB{},
	}, nil
}

func (s *SQLiteStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	query := `
SELECT hash, source_path, staged_at, calendar_start, calendar_end, timezone, max_arrival, max_departure
FROM feed`
	args := []interface{}{}
	if filter.Hash != "" {
		query += " WHERE hash = ?"
		args = append(args, filter.Hash)
	}

	rows, err := s.feedDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*FeedMetadata
	for rows.Next() {
		var feed FeedMetadata
		err := rows.Scan(
			&feed.Hash,
			&feed.SourcePath,
			&feed.StagedAt,
			&feed.CalendarStartDate,
			&feed.CalendarEndDate,
			&feed.Timezone,
			&feed.MaxArrival,
			&feed.MaxDeparture,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning feed: %w", err)
		}
		feeds = append(feeds, &feed)
	}

	return feeds, nil
}

func (s *SQLiteStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	_, err := s.feedDB.Exec(`
INSERT INTO feed (hash, source_path, staged_at, calendar_start, calendar_end, timezone, max_arrival, max_departure)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (hash) DO UPDATE SET
    source_path = excluded.source_path,
    staged_at = excluded.staged_at,
    calendar_start = excluded.calendar_start,
    calendar_end = excluded.calendar_end,
    timezone = excluded.timezone,
    max_arrival = excluded.max_arrival,
    max_departure = excluded.max_departure
`,
		feed.Hash,
		feed.SourcePath,
		feed.StagedAt,
		feed.CalendarStartDate,
		feed.CalendarEndDate,
		feed.Timezone,
		feed.MaxArrival,
		feed.MaxDeparture,
	)
	if err != nil {
		return fmt.Errorf("writing feed metadata: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetReader(hash string) (FeedReader, error) {
	db, found := s.feeds[hash]
	if found {
		return &SQLiteFeedReader{db: db}, nil
	}

	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.Directory + "/" + hash + ".db"
		if _, err := os.Stat(sourceName); os.IsNotExist(err) {
			return nil, fmt.Errorf("feed %s does not exist at %s", hash, sourceName)
		}
	} else {
		return nil, fmt.Errorf("feed %s does not exist", hash)
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.feeds[hash] = db

	return &SQLiteFeedReader{db: db}, nil
}

func (s *SQLiteStorage) GetWriter(hash string) (FeedWriter, error) {
	sourceName := ":memory:"
	if s.OnDisk {
		sourceName = s.Directory + "/" + hash + ".db"
		if _, err := os.Stat(sourceName); err == nil {
			if err := os.Remove(sourceName); err != nil {
				return nil, fmt.Errorf("removing existing staged feed: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", sourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for name, query := range map[string]string{
		"agency": `
CREATE TABLE agency (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    url TEXT NOT NULL,
    timezone TEXT NOT NULL
);`,
		"stops": `
CREATE TABLE stops (
    id TEXT PRIMARY KEY,
    code TEXT,
    name TEXT NOT NULL,
    desc TEXT,
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    url TEXT,
    location_type INTEGER NOT NULL,
    parent_station TEXT,
    platform_code TEXT
);
CREATE INDEX stops_parent_station ON stops (parent_station);
`,
		"routes": `
CREATE TABLE routes (
    id TEXT PRIMARY KEY,
    agency_id TEXT,
    short_name TEXT,
    long_name TEXT NOT NULL,
    desc TEXT,
    type INTEGER NOT NULL,
    url TEXT,
    color TEXT,
    text_color TEXT
);`,
		"trips": `
CREATE TABLE trips (
    id TEXT PRIMARY KEY,
    route_id TEXT NOT NULL,
    service_id TEXT NOT NULL,
    headsign TEXT,
    short_name TEXT,
    direction_id INTEGER
);
CREATE INDEX trips_route_id ON trips (route_id);
CREATE INDEX trips_service_id ON trips (service_id);
`,
		"stop_times": `
CREATE TABLE stop_times (
    trip_id TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    headsign TEXT
);
CREATE INDEX stop_times_trip_id ON stop_times (trip_id);
CREATE INDEX stop_times_stop_id ON stop_times (stop_id);
`,
		"calendar": `
CREATE TABLE calendar (
    service_id TEXT PRIMARY KEY,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL,
    monday INTEGER NOT NULL,
    tuesday INTEGER NOT NULL,
    wednesday INTEGER NOT NULL,
    thursday INTEGER NOT NULL,
    friday INTEGER NOT NULL,
    saturday INTEGER NOT NULL,
    sunday INTEGER NOT NULL
);`,
		"calendar_dates": `
CREATE TABLE calendar_dates (
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL
);`,
	} {
		if _, err := db.Exec(query); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating %s table: %w", name, err)
		}
	}

	if !s.OnDisk {
		// :memory: databases are private to the *sql.DB that opened
		// them; a later GetReader can't reopen one by name the way it
		// can an on-disk file, so the handle has to be kept around here.
		s.feeds[hash] = db
	}

	return &SQLiteFeedWriter{db: db}, nil
}

func (f *SQLiteFeedWriter) WriteAgency(a *model.Agency) error {
	_, err := f.db.Exec(`INSERT INTO agency (id, name, url, timezone) VALUES (?, ?, ?, ?)`,
		a.ID, a.Name, a.URL, a.Timezone)
	if err != nil {
		return fmt.Errorf("inserting agency: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteStop(stop *model.Stop) error {
	_, err := f.db.Exec(`
INSERT INTO stops (id, code, name, desc, lat, lon, url, location_type, parent_station, platform_code)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stop.ID, stop.Code, stop.Name, stop.Desc, stop.Lat, stop.Lon,
		stop.URL, stop.LocationType, stop.ParentStation, stop.PlatformCode)
	if err != nil {
		return fmt.Errorf("inserting stop: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteRoute(route *model.Route) error {
	_, err := f.db.Exec(`
INSERT INTO routes (id, agency_id, short_name, long_name, desc, type, url, color, text_color)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.ID, route.AgencyID, route.ShortName, route.LongName, route.Desc,
		route.Type, route.URL, route.Color, route.TextColor)
	if err != nil {
		return fmt.Errorf("inserting route: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) BeginTrips() error { return nil }

func (f *SQLiteFeedWriter) WriteTrip(trip *model.Trip) error {
	_, err := f.db.Exec(`
INSERT INTO trips (id, route_id, service_id, headsign, short_name, direction_id)
VALUES (?, ?, ?, ?, ?, ?)`,
		trip.ID, trip.RouteID, trip.ServiceID, trip.Headsign, trip.ShortName, trip.DirectionID)
	if err != nil {
		return fmt.Errorf("inserting trip: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) EndTrips() error { return nil }

func (f *SQLiteFeedWriter) BeginStopTimes() error {
	var err error
	f.stopTimeInsertTx, err = f.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning stop_time insert transaction: %w", err)
	}

	f.stopTimeInsertQuery, err = f.stopTimeInsertTx.Prepare(`
INSERT INTO stop_times (trip_id, stop_id, stop_sequence, arrival_time, departure_time, headsign)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		return fmt.Errorf("preparing stop_time insert: %w", err)
	}

	return nil
}

func (f *SQLiteFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	_, err := f.stopTimeInsertQuery.Exec(
		stopTime.TripID, stopTime.StopID, stopTime.StopSequence,
		stopTime.Arrival, stopTime.Departure, stopTime.Headsign)
	if err != nil {
		f.stopTimeInsertQuery.Close()
		f.stopTimeInsertTx.Rollback()
		f.stopTimeInsertTx = nil
		f.stopTimeInsertQuery = nil
		return fmt.Errorf("inserting stop_time: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) EndStopTimes() error {
	f.stopTimeInsertQuery.Close()
	if err := f.stopTimeInsertTx.Commit(); err != nil {
		return fmt.Errorf("committing stop_time insert transaction: %w", err)
	}
	f.stopTimeInsertTx = nil
	f.stopTimeInsertQuery = nil
	return nil
}

func (f *SQLiteFeedWriter) WriteCalendar(cal *model.Calendar) error {
	mon, tue, wed, thu, fri, sat, sun := 0, 0, 0, 0, 0, 0, 0
	if cal.Weekday&(1<<time.Monday) != 0 {
		mon = 1
	}
	if cal.Weekday&(1<<time.Tuesday) != 0 {
		tue = 1
	}
	if cal.Weekday&(1<<time.Wednesday) != 0 {
		wed = 1
	}
	if cal.Weekday&(1<<time.Thursday) != 0 {
		thu = 1
	}
	if cal.Weekday&(1<<time.Friday) != 0 {
		fri = 1
	}
	if cal.Weekday&(1<<time.Saturday) != 0 {
		sat = 1
	}
	if cal.Weekday&(1<<time.Sunday) != 0 {
		sun = 1
	}

	_, err := f.db.Exec(`
INSERT INTO calendar (service_id, start_date, end_date, monday, tuesday, wednesday, thursday, friday, saturday, sunday)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cal.ServiceID, cal.StartDate, cal.EndDate, mon, tue, wed, thu, fri, sat, sun)
	if err != nil {
		return fmt.Errorf("inserting calendar: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	_, err := f.db.Exec(`INSERT INTO calendar_dates (service_id, date, exception_type) VALUES (?, ?, ?)`,
		cd.ServiceID, cd.Date, cd.ExceptionType)
	if err != nil {
		return fmt.Errorf("inserting calendar date: %w", err)
	}
	return nil
}

func (f *SQLiteFeedWriter) Close() error {
	if _, err := f.db.Exec(`ANALYZE;`); err != nil {
		f.db.Close()
		return fmt.Errorf("analyzing database: %w", err)
	}
	return nil
}

func (f *SQLiteFeedReader) ActiveServices(date string) ([]string, error) {
	parsedDate, err := time.Parse("20060102", date)
	if err != nil {
		return nil, fmt.Errorf("invalid date: %s", date)
	}

	var weekday string
	switch parsedDate.Weekday() {
	case time.Monday:
		weekday = "monday"
	case time.Tuesday:
		weekday = "tuesday"
	case time.Wednesday:
		weekday = "wednesday"
	case time.Thursday:
		weekday = "thursday"
	case time.Friday:
		weekday = "friday"
	case time.Saturday:
		weekday = "saturday"
	case time.Sunday:
		weekday = "sunday"
	}

	rows, err := f.db.Query(`
WITH
Exceptions AS (
	SELECT service_id, exception_type
	FROM calendar_dates
	WHERE date = ?
),
Regular AS (
	SELECT service_id
	FROM calendar
	WHERE `+weekday+` = 1 AND start_date <= ? AND end_date >= ?
)
SELECT service_id FROM Regular
WHERE service_id NOT IN (SELECT service_id FROM Exceptions WHERE exception_type = 2)
UNION
SELECT service_id FROM Exceptions WHERE exception_type = 1
`, date, date, date)
	if err != nil {
		return nil, fmt.Errorf("querying for active services: %w", err)
	}
	defer rows.Close()

	var activeServices []string
	for rows.Next() {
		var serviceID string
		if err := rows.Scan(&serviceID); err != nil {
			return nil, fmt.Errorf("scanning active services: %w", err)
		}
		activeServices = append(activeServices, serviceID)
	}

	return activeServices, nil
}

func (f *SQLiteFeedReader) Agencies() ([]*model.Agency, error) {
	rows, err := f.db.Query(`SELECT id, name, url, timezone FROM agency`)
	if err != nil {
		return nil, fmt.Errorf("querying agencies: %w", err)
	}
	defer rows.Close()

	var agencies []*model.Agency
	for rows.Next() {
		a := &model.Agency{}
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone); err != nil {
			return nil, fmt.Errorf("scanning agency: %w", err)
		}
		agencies = append(agencies, a)
	}
	return agencies, nil
}

func (f *SQLiteFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := f.db.Query(`
SELECT id, code, name, desc, lat, lon, url, location_type, parent_station, platform_code
FROM stops`)
	if err != nil {
		return nil, fmt.Errorf("querying stops: %w", err)
	}
	defer rows.Close()

	var stops []*model.Stop
	for rows.Next() {
		s := &model.Stop{}
		if err := rows.Scan(
			&s.ID, &s.Code, &s.Name, &s.Desc, &s.Lat, &s.Lon,
			&s.URL, &s.LocationType, &s.ParentStation, &s.PlatformCode,
		); err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}
	return stops, nil
}

func (f *SQLiteFeedReader) Routes() ([]*model.Route, error) {
	rows, err := f.db.Query(`
SELECT id, agency_id, short_name, long_name, desc, type, url, color, text_color
FROM routes`)
	if err != nil {
		return nil, fmt.Errorf("querying routes: %w", err)
	}
	defer rows.Close()

	var routes []*model.Route
	for rows.Next() {
		r := &model.Route{}
		if err := rows.Scan(
			&r.ID, &r.AgencyID, &r.ShortName, &r.LongName, &r.Desc,
			&r.Type, &r.URL, &r.Color, &r.TextColor,
		); err != nil {
			return nil, fmt.Errorf("scanning route: %w", err)
		}
		routes = append(routes, r)
	}
	return routes, nil
}

func (f *SQLiteFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := f.db.Query(`SELECT id, route_id, service_id, headsign, short_name, direction_id FROM trips`)
	if err != nil {
		return nil, fmt.Errorf("querying trips: %w", err)
	}
	defer rows.Close()

	var trips []*model.Trip
	for rows.Next() {
		t := &model.Trip{}
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.ShortName, &t.DirectionID); err != nil {
			return nil, fmt.Errorf("scanning trip: %w", err)
		}
		trips = append(trips, t)
	}
	return trips, nil
}

func (f *SQLiteFeedReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := f.db.Query(`
SELECT trip_id, stop_id, headsign, stop_sequence, arrival_time, departure_time
FROM stop_times ORDER BY trip_id, stop_sequence`)
	if err != nil {
		return nil, fmt.Errorf("querying stop times: %w", err)
	}
	defer rows.Close()

	var stopTimes []*model.StopTime
	for rows.Next() {
		st := &model.StopTime{}
		if err := rows.Scan(
			&st.TripID, &st.StopID, &st.Headsign, &st.StopSequence, &st.Arrival, &st.Departure,
		); err != nil {
			return nil, fmt.Errorf("scanning stop time: %w", err)
		}
		stopTimes = append(stopTimes, st)
	}
	return stopTimes, nil
}

func (f *SQLiteFeedReader) Calendars() ([]*model.Calendar, error) {
	rows, err := f.db.Query(`
SELECT service_id, start_date, end_date, monday, tuesday, wednesday, thursday, friday, saturday, sunday
FROM calendar`)
	if err != nil {
		return nil, fmt.Errorf("querying calendar: %w", err)
	}
	defer rows.Close()

	var calendars []*model.Calendar
	for rows.Next() {
		var serviceID, startDate, endDate string
		var mon, tue, wed, thu, fri, sat, sun bool
		if err := rows.Scan(&serviceID, &startDate, &endDate, &mon, &tue, &wed, &thu, &fri, &sat, &sun); err != nil {
			return nil, fmt.Errorf("scanning calendar: %w", err)
		}
		var weekday int8
		for bit, set := range map[time.Weekday]bool{
			time.Monday: mon, time.Tuesday: tue, time.Wednesday: wed, time.Thursday: thu,
			time.Friday: fri, time.Saturday: sat, time.Sunday: sun,
		} {
			if set {
				weekday |= 1 << bit
			}
		}
		calendars = append(calendars, &model.Calendar{
			ServiceID: serviceID, StartDate: startDate, EndDate: endDate, Weekday: weekday,
		})
	}
	return calendars, nil
}

func (f *SQLiteFeedReader) CalendarDates() ([]*model.CalendarDate, error) {
	rows, err := f.db.Query(`SELECT service_id, date, exception_type FROM calendar_dates`)
	if err != nil {
		return nil, fmt.Errorf("querying calendar dates: %w", err)
	}
	defer rows.Close()

	var calendarDates []*model.CalendarDate
	for rows.Next() {
		cd := &model.CalendarDate{}
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType); err != nil {
			return nil, fmt.Errorf("scanning calendar date: %w", err)
		}
		calendarDates = append(calendarDates, cd)
	}
	return calendarDates, nil
}

func (f *SQLiteFeedReader) MinMaxStopSeq() (map[string][2]uint32, error) {
	rows, err := f.db.Query(`SELECT trip_id, MIN(stop_sequence), MAX(stop_sequence) FROM stop_times GROUP BY trip_id`)
	if err != nil {
		return nil, fmt.Errorf("querying min/max stop sequence: %w", err)
	}
	defer rows.Close()

	res := map[string][2]uint32{}
	for rows.Next() {
		var tripID string
		var min, max uint32
		if err := rows.Scan(&tripID, &min, &max); err != nil {
			return nil, fmt.Errorf("scanning min/max stop sequence: %w", err)
		}
		res[tripID] = [2]uint32{min, max}
	}
	return res, nil
}
