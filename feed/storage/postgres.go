package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"

	"github.com/ellenhp/solari-go/feed/model"
)

// PSQLStorage is an alternate backend to SQLiteStorage for builds over a
// single very large feed, where Postgres's COPY support (pq.CopyIn)
// keeps trip/stop_time ingestion fast.

const (
	PSQLTripBatchSize     = 10000
	PSQLStopTimeBatchSize = 5000
)

type PSQLStorage struct {
	db *sql.DB
}

type PSQLFeedWriter struct {
	hash        string
	db          *sql.DB
	tripBuf     []*model.Trip
	stopTimeBuf []*model.StopTime
}

type PSQLFeedReader struct {
	hash string
	db   *sql.DB
}

// NewPSQLStorage opens a Postgres-backed Storage using connStr. If
// clearDB is true, all feed tables are dropped on startup; tests rely
// on this to start from a clean schema.
func NewPSQLStorage(connStr string, clearDB bool) (*PSQLStorage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open db")
	}

	if err := db.Ping(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to ping db")
	}

	if clearDB {
		_, err = db.Exec(`
DROP TABLE IF EXISTS feed;
DROP TABLE IF EXISTS agency;
DROP TABLE IF EXISTS calendar;
DROP TABLE IF EXISTS calendar_dates;
DROP TABLE IF EXISTS stops;
DROP TABLE IF EXISTS stop_times;
DROP TABLE IF EXISTS routes;
DROP TABLE IF EXISTS trips;
`)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "clearing db")
		}
	}

	_, err = db.Exec(`
CREATE TABLE IF NOT EXISTS feed (
    hash TEXT PRIMARY KEY,
    source_path TEXT NOT NULL,
    staged_at TIMESTAMPTZ NOT NULL,
    calendar_start TEXT NOT NULL,
    calendar_end TEXT NOT NULL,
    timezone TEXT NOT NULL,
    max_arrival TEXT NOT NULL,
    max_departure TEXT NOT NULL
);`)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "creating feed table")
	}

	return &PSQLStorage{db: db}, nil
}

func (s *PSQLStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return pkgerrors.Wrap(err, "failed to close db")
	}
	return nil
}

func (s *PSQLStorage) ListFeeds(filter ListFeedsFilter) ([]*FeedMetadata, error) {
	query := `
SELECT hash, source_path, staged_at, calendar_start, calendar_end, timezone, max_arrival, max_departure
FROM feed`
	args := []interface{}{}
	if filter.Hash != "" {
		query += " WHERE hash = $1"
		args = append(args, filter.Hash)
	}
	query += " ORDER BY staged_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "listing feeds")
	}
	defer rows.Close()

	var feeds []*FeedMetadata
	for rows.Next() {
		feed := &FeedMetadata{}
		err := rows.Scan(
			&feed.Hash, &feed.SourcePath, &feed.StagedAt, &feed.CalendarStartDate,
			&feed.CalendarEndDate, &feed.Timezone, &feed.MaxArrival, &feed.MaxDeparture,
		)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scanning feed")
		}
		feed.StagedAt = feed.StagedAt.UTC()
		feeds = append(feeds, feed)
	}

	return feeds, nil
}

func (s *PSQLStorage) WriteFeedMetadata(feed *FeedMetadata) error {
	_, err := s.db.Exec(`
INSERT INTO feed (hash, source_path, staged_at, calendar_start, calendar_end, timezone, max_arrival, max_departure)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (hash) DO UPDATE SET
    source_path = excluded.source_path,
    staged_at = excluded.staged_at,
    calendar_start = excluded.calendar_start,
    calendar_end = excluded.calendar_end,
    timezone = excluded.timezone,
    max_arrival = excluded.max_arrival,
    max_departure = excluded.max_departure
`,
		feed.Hash, feed.SourcePath, feed.StagedAt.UTC(), feed.CalendarStartDate,
		feed.CalendarEndDate, feed.Timezone, feed.MaxArrival, feed.MaxDeparture,
	)
	if err != nil {
		return pkgerrors.Wrap(err, "writing feed metadata")
	}
	return nil
}

func (s *PSQLStorage) GetReader(hash string) (FeedReader, error) {
	return &PSQLFeedReader{hash: hash, db: s.db}, nil
}

func (s *PSQLStorage) GetWriter(hash string) (FeedWriter, error) {
	tables := map[string]string{
		"agency": `
CREATE TABLE IF NOT EXISTS agency (
    hash TEXT NOT NULL, id TEXT NOT NULL, name TEXT NOT NULL, url TEXT NOT NULL, timezone TEXT NOT NULL,
    PRIMARY KEY(hash, id)
);`,
		"stops": `
CREATE TABLE IF NOT EXISTS stops (
    hash TEXT NOT NULL, id TEXT NOT NULL, code TEXT, name TEXT NOT NULL, description TEXT,
    lat DOUBLE PRECISION NOT NULL, lon DOUBLE PRECISION NOT NULL, url TEXT,
    location_type INTEGER NOT NULL, parent_station TEXT, platform_code TEXT,
    PRIMARY KEY(hash, id)
);
CREATE INDEX IF NOT EXISTS stops_parent_station ON stops (parent_station);
`,
		"routes": `
CREATE TABLE IF NOT EXISTS routes (
    hash TEXT NOT NULL, id TEXT NOT NULL, agency_id TEXT, short_name TEXT, long_name TEXT NOT NULL,
    description TEXT, type INTEGER NOT NULL, url TEXT, color TEXT, text_color TEXT,
    PRIMARY KEY(hash, id)
);`,
		"trips": `
CREATE TABLE IF NOT EXISTS trips (
    hash TEXT NOT NULL, id TEXT NOT NULL, route_id TEXT NOT NULL, service_id TEXT NOT NULL,
    headsign TEXT, short_name TEXT, direction_id INTEGER,
    PRIMARY KEY(hash, id)
);
CREATE INDEX IF NOT EXISTS trips_route_id ON trips (route_id);
CREATE INDEX IF NOT EXISTS trips_service_id ON trips (service_id);
`,
		"stop_times": `
CREATE TABLE IF NOT EXISTS stop_times (
    hash TEXT NOT NULL, trip_id TEXT NOT NULL, stop_id TEXT NOT NULL, stop_sequence INTEGER NOT NULL,
    arrival_time TEXT NOT NULL, departure_time TEXT NOT NULL, headsign TEXT,
    PRIMARY KEY(hash, trip_id, stop_id, stop_sequence)
);
CREATE INDEX IF NOT EXISTS stop_times_trip_id ON stop_times (trip_id);
CREATE INDEX IF NOT EXISTS stop_times_stop_id ON stop_times (stop_id);
`,
		"calendar": `
CREATE TABLE IF NOT EXISTS calendar (
    hash TEXT NOT NULL, service_id TEXT NOT NULL, start_date TEXT NOT NULL, end_date TEXT NOT NULL,
    monday INTEGER NOT NULL, tuesday INTEGER NOT NULL, wednesday INTEGER NOT NULL,
    thursday INTEGER NOT NULL, friday INTEGER NOT NULL, saturday INTEGER NOT NULL, sunday INTEGER NOT NULL,
    PRIMARY KEY(hash, service_id)
);`,
		"calendar_dates": `
CREATE TABLE IF NOT EXISTS calendar_dates (
    hash TEXT NOT NULL, service_id TEXT NOT NULL, date TEXT NOT NULL, exception_type INTEGER NOT NULL,
    PRIMARY KEY(hash, service_id, date)
);`,
	}

	for name, query := range tables {
		if _, err := s.db.Exec(query); err != nil {
			return nil, pkgerrors.Wrapf(err, "creating %s table", name)
		}
	}

	for name := range tables {
		if _, err := s.db.Exec(`DELETE FROM `+name+` WHERE hash = $1`, hash); err != nil {
			return nil, pkgerrors.Wrapf(err, "deleting %s records", name)
		}
	}

	return &PSQLFeedWriter{hash: hash, db: s.db}, nil
}

func (w *PSQLFeedWriter) WriteAgency(a *model.Agency) error {
	_, err := w.db.Exec(`INSERT INTO agency (hash, id, name, url, timezone) VALUES ($1, $2, $3, $4, $5)`,
		w.hash, a.ID, a.Name, a.URL, a.Timezone)
	if err != nil {
		return pkgerrors.Wrap(err, "inserting agency")
	}
	return nil
}

func (w *PSQLFeedWriter) WriteStop(stop *model.Stop) error {
	var parentStation sql.NullString
	if stop.ParentStation != "" {
		parentStation = sql.NullString{String: stop.ParentStation, Valid: true}
	}
	_, err := w.db.Exec(`
INSERT INTO stops (hash, id, code, name, description, lat, lon, url, location_type, parent_station, platform_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.hash, stop.ID, stop.Code, stop.Name, stop.Desc, stop.Lat, stop.Lon,
		stop.URL, stop.LocationType, parentStation, stop.PlatformCode)
	if err != nil {
		return pkgerrors.Wrap(err, "inserting stop")
	}
	return nil
}

func (w *PSQLFeedWriter) WriteRoute(route *model.Route) error {
	_, err := w.db.Exec(`
INSERT INTO routes (hash, id, agency_id, short_name, long_name, description, type, url, color, text_color)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		w.hash, route.ID, route.AgencyID, route.ShortName, route.LongName, route.Desc,
		route.Type, route.URL, route.Color, route.TextColor)
	if err != nil {
		return pkgerrors.Wrap(err, "inserting route")
	}
	return nil
}

func (w *PSQLFeedWriter) BeginTrips() error { return nil }

func (w *PSQLFeedWriter) WriteTrip(trip *model.Trip) error {
	w.tripBuf = append(w.tripBuf, trip)
	if len(w.tripBuf) >= PSQLTripBatchSize {
		return pkgerrors.Wrap(w.flushTrips(), "flushing trips")
	}
	return nil
}

func (w *PSQLFeedWriter) EndTrips() error {
	if len(w.tripBuf) > 0 {
		return pkgerrors.Wrap(w.flushTrips(), "flushing trips")
	}
	return nil
}

func (w *PSQLFeedWriter) flushTrips() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(
		"trips", "hash", "id", "route_id", "service_id", "headsign", "short_name", "direction_id",
	))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, trip := range w.tripBuf {
		_, err = stmt.Exec(w.hash, trip.ID, trip.RouteID, trip.ServiceID, trip.Headsign, trip.ShortName, trip.DirectionID)
		if err != nil {
			return fmt.Errorf("COPY trip: %w", err)
		}
	}

	if _, err = stmt.Exec(); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.tripBuf = nil
	return nil
}

func (w *PSQLFeedWriter) WriteCalendar(cal *model.Calendar) error {
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

	_, err := w.db.Exec(`
INSERT INTO calendar (hash, service_id, start_date, end_date, monday, tuesday, wednesday, thursday, friday, saturday, sunday)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.hash, cal.ServiceID, cal.StartDate, cal.EndDate, mon, tue, wed, thu, fri, sat, sun)
	if err != nil {
		return pkgerrors.Wrap(err, "inserting calendar")
	}
	return nil
}

func (w *PSQLFeedWriter) WriteCalendarDate(cd *model.CalendarDate) error {
	_, err := w.db.Exec(`INSERT INTO calendar_dates (hash, service_id, date, exception_type) VALUES ($1, $2, $3, $4)`,
		w.hash, cd.ServiceID, cd.Date, cd.ExceptionType)
	if err != nil {
		return pkgerrors.Wrap(err, "inserting calendar date")
	}
	return nil
}

func (w *PSQLFeedWriter) BeginStopTimes() error { return nil }

func (w *PSQLFeedWriter) WriteStopTime(stopTime *model.StopTime) error {
	w.stopTimeBuf = append(w.stopTimeBuf, stopTime)
	if len(w.stopTimeBuf) >= PSQLStopTimeBatchSize {
		return pkgerrors.Wrap(w.flushStopTimes(), "flushing stop_times")
	}
	return nil
}

func (w *PSQLFeedWriter) EndStopTimes() error {
	if len(w.stopTimeBuf) > 0 {
		return pkgerrors.Wrap(w.flushStopTimes(), "flushing stop_times")
	}
	return nil
}

func (w *PSQLFeedWriter) flushStopTimes() error {
	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(pq.CopyIn(
		"stop_times", "hash", "trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time", "headsign",
	))
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, st := range w.stopTimeBuf {
		_, err = stmt.Exec(w.hash, st.TripID, st.StopID, st.StopSequence, st.Arrival, st.Departure, st.Headsign)
		if err != nil {
			return fmt.Errorf("COPY stop_time: %w", err)
		}
	}

	if _, err = stmt.Exec(); err != nil {
		return fmt.Errorf("executing statement: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}

	w.stopTimeBuf = nil
	return nil
}

func (w *PSQLFeedWriter) Close() error {
	if _, err := w.db.Exec(`ANALYZE`); err != nil {
		return pkgerrors.Wrap(err, "analyzing")
	}
	return nil
}

func (r *PSQLFeedReader) Agencies() ([]*model.Agency, error) {
	rows, err := r.db.Query(`SELECT id, name, url, timezone FROM agency WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying agencies")
	}
	defer rows.Close()

	var agencies []*model.Agency
	for rows.Next() {
		a := &model.Agency{}
		if err := rows.Scan(&a.ID, &a.Name, &a.URL, &a.Timezone); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning agency")
		}
		agencies = append(agencies, a)
	}
	return agencies, nil
}

func (r *PSQLFeedReader) Stops() ([]*model.Stop, error) {
	rows, err := r.db.Query(`
SELECT id, code, name, description, lat, lon, url, location_type, parent_station, platform_code
FROM stops WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying stops")
	}
	defer rows.Close()

	var stops []*model.Stop
	for rows.Next() {
		s := &model.Stop{}
		parentStation := sql.NullString{}
		err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Desc, &s.Lat, &s.Lon, &s.URL, &s.LocationType, &parentStation, &s.PlatformCode)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scanning stop")
		}
		if parentStation.Valid {
			s.ParentStation = parentStation.String
		}
		stops = append(stops, s)
	}
	return stops, nil
}

func (r *PSQLFeedReader) Routes() ([]*model.Route, error) {
	rows, err := r.db.Query(`
SELECT id, agency_id, short_name, long_name, description, type, url, color, text_color
FROM routes WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying routes")
	}
	defer rows.Close()

	var routes []*model.Route
	for rows.Next() {
		route := &model.Route{}
		err := rows.Scan(&route.ID, &route.AgencyID, &route.ShortName, &route.LongName, &route.Desc, &route.Type, &route.URL, &route.Color, &route.TextColor)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "scanning route")
		}
		routes = append(routes, route)
	}
	return routes, nil
}

func (r *PSQLFeedReader) Trips() ([]*model.Trip, error) {
	rows, err := r.db.Query(`SELECT id, route_id, service_id, headsign, short_name, direction_id FROM trips WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying trips")
	}
	defer rows.Close()

	var trips []*model.Trip
	for rows.Next() {
		t := &model.Trip{}
		if err := rows.Scan(&t.ID, &t.RouteID, &t.ServiceID, &t.Headsign, &t.ShortName, &t.DirectionID); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning trip")
		}
		trips = append(trips, t)
	}
	return trips, nil
}

func (r *PSQLFeedReader) StopTimes() ([]*model.StopTime, error) {
	rows, err := r.db.Query(`
SELECT trip_id, stop_id, headsign, stop_sequence, arrival_time, departure_time
FROM stop_times WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying stop times")
	}
	defer rows.Close()

	var stopTimes []*model.StopTime
	for rows.Next() {
		st := &model.StopTime{}
		if err := rows.Scan(&st.TripID, &st.StopID, &st.Headsign, &st.StopSequence, &st.Arrival, &st.Departure); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning stop time")
		}
		stopTimes = append(stopTimes, st)
	}
	return stopTimes, nil
}

func (r *PSQLFeedReader) Calendars() ([]*model.Calendar, error) {
	rows, err := r.db.Query(`
SELECT service_id, start_date, end_date, monday, tuesday, wednesday, thursday, friday, saturday, sunday
FROM calendar WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying calendar")
	}
	defer rows.Close()

	var calendars []*model.Calendar
	for rows.Next() {
		var serviceID, startDate, endDate string
		var mon, tue, wed, thu, fri, sat, sun bool
		if err := rows.Scan(&serviceID, &startDate, &endDate, &mon, &tue, &wed, &thu, &fri, &sat, &sun); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning calendar")
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
		calendars = append(calendars, &model.Calendar{ServiceID: serviceID, StartDate: startDate, EndDate: endDate, Weekday: weekday})
	}
	return calendars, nil
}

func (r *PSQLFeedReader) CalendarDates() ([]*model.CalendarDate, error) {
	rows, err := r.db.Query(`SELECT service_id, date, exception_type FROM calendar_dates WHERE hash = $1`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying calendar dates")
	}
	defer rows.Close()

	var calendarDates []*model.CalendarDate
	for rows.Next() {
		cd := &model.CalendarDate{}
		if err := rows.Scan(&cd.ServiceID, &cd.Date, &cd.ExceptionType); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning calendar date")
		}
		calendarDates = append(calendarDates, cd)
	}
	return calendarDates, nil
}

func (r *PSQLFeedReader) ActiveServices(date string) ([]string, error) {
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

	rows, err := r.db.Query(`
WITH
Exceptions AS (
        SELECT service_id, exception_type
        FROM calendar_dates
        WHERE hash = $1 AND date = $2
),
Regular AS (
        SELECT service_id
        FROM calendar
        WHERE hash = $1 AND `+weekday+` = 1 AND start_date <= $2 AND end_date >= $2
)
SELECT service_id FROM Regular
WHERE service_id NOT IN (SELECT service_id FROM Exceptions WHERE exception_type = 2)
UNION
SELECT service_id FROM Exceptions WHERE exception_type = 1
`, r.hash, date)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying for active services")
	}
	defer rows.Close()

	var activeServices []string
	for rows.Next() {
		var serviceID string
		if err := rows.Scan(&serviceID); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning active services")
		}
		activeServices = append(activeServices, serviceID)
	}
	return activeServices, nil
}

func (r *PSQLFeedReader) MinMaxStopSeq() (map[string][2]uint32, error) {
	rows, err := r.db.Query(`
SELECT trip_id, MIN(stop_sequence), MAX(stop_sequence)
FROM stop_times WHERE hash = $1 GROUP BY trip_id`, r.hash)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "querying min/max stop sequence")
	}
	defer rows.Close()

	res := map[string][2]uint32{}
	for rows.Next() {
		var tripID string
		var min, max uint32
		if err := rows.Scan(&tripID, &min, &max); err != nil {
			return nil, pkgerrors.Wrap(err, "scanning min/max stop sequence")
		}
		res[tripID] = [2]uint32{min, max}
	}
	return res, nil
}
