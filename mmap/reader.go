package mmap

import (
	"fmt"
	"path/filepath"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/timetable"
)

// Timetable is an opened, mmap-backed timetable directory. It answers
// the same queries as timetable.Timetable but reads directly out of
// the mapped files on every call instead of holding decoded Go
// structs, so opening one does no table-sized heap allocation (spec.md
// §4.4, §5 "the mmap'd timetable ... is shared read-only").
type Timetable struct {
	manifest manifest

	stops           *mappedFile
	patterns        *mappedFile
	patternStops    *mappedFile
	trips           *mappedFile
	stopTimes       *mappedFile
	calendar        *mappedFile
	transfers       *mappedFile
	transferOffsets *mappedFile
	strings         *mappedFile
}

// Open mmaps every table file under dir and validates the manifest.
// Returns BadTimetable-class errors (wrapped) on magic/version
// mismatch or a missing/truncated file.
func Open(dir string) (*Timetable, error) {
	manifestBytes, err := mapFile(filepath.Join(dir, fileManifest))
	if err != nil {
		return nil, fmt.Errorf("opening timetable %s: %w", dir, err)
	}
	m, err := readManifest(manifestBytes.data)
	manifestBytes.close()
	if err != nil {
		return nil, fmt.Errorf("opening timetable %s: %w", dir, err)
	}

	t := &Timetable{manifest: m}
	names := []struct {
		name string
		dst  **mappedFile
	}{
		{fileStops, &t.stops},
		{filePatterns, &t.patterns},
		{filePatternStops, &t.patternStops},
		{fileTrips, &t.trips},
		{fileStopTimes, &t.stopTimes},
		{fileCalendar, &t.calendar},
		{fileTransfers, &t.transfers},
		{fileTransferOffsets, &t.transferOffsets},
		{fileStrings, &t.strings},
	}
	for _, n := range names {
		mf, err := mapFile(filepath.Join(dir, n.name))
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("opening timetable %s: %w", dir, err)
		}
		*n.dst = mf
	}
	return t, nil
}

// Close unmaps every table file. Safe to call once. Values the
// accessors returned are decoded copies (strings included, see
// readString) and stay valid after Close; the accessors themselves
// must not be called after Close.
func (t *Timetable) Close() error {
	var firstErr error
	for _, mf := range []*mappedFile{t.stops, t.patterns, t.patternStops, t.trips, t.stopTimes, t.calendar, t.transfers, t.transferOffsets, t.strings} {
		if mf == nil {
			continue
		}
		if err := mf.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Timetable) CalendarStart() string { return readString(t.strings.data, t.manifest.CalendarStart) }
func (t *Timetable) CalendarDays() int     { return int(t.manifest.CalendarDays) }
func (t *Timetable) NumStops() int         { return int(t.manifest.NumStops) }
func (t *Timetable) NumPatterns() int      { return int(t.manifest.NumPatterns) }
func (t *Timetable) NumTrips() int         { return int(t.manifest.NumTrips) }

// Stop decodes stop record i directly out of the mapped stops.bin.
func (t *Timetable) Stop(i int32) timetable.Stop {
	rec := t.stops.data[int(i)*stopRecordSize : (int(i)+1)*stopRecordSize]
	j := 0
	id := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	code := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	name := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	lat := float64frombits(byteOrder.Uint64(rec[j : j+8]))
	j += 8
	lon := float64frombits(byteOrder.Uint64(rec[j : j+8]))
	j += 8
	sx := float64frombits(byteOrder.Uint64(rec[j : j+8]))
	j += 8
	sy := float64frombits(byteOrder.Uint64(rec[j : j+8]))
	j += 8
	sz := float64frombits(byteOrder.Uint64(rec[j : j+8]))
	j += 8
	parent := int32(byteOrder.Uint32(rec[j : j+4]))
	return timetable.Stop{
		ID:         readString(t.strings.data, id),
		Code:       readString(t.strings.data, code),
		Name:       readString(t.strings.data, name),
		Lat:        lat,
		Lon:        lon,
		SphereX:    sx,
		SphereY:    sy,
		SphereZ:    sz,
		ParentStop: parent,
	}
}

// Pattern decodes pattern header p out of patterns.bin.
func (t *Timetable) Pattern(p int32) timetable.PatternHeader {
	rec := t.patterns.data[int(p)*patternRecordSize : (int(p)+1)*patternRecordSize]
	j := 0
	getU32 := func() uint32 { v := byteOrder.Uint32(rec[j : j+4]); j += 4; return v }
	stopOffset := getU32()
	numStops := getU32()
	tripOffset := getU32()
	numTrips := getU32()
	routeID := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	agencyID := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	shortName := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	longName := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	routeType := getU32()
	return timetable.PatternHeader{
		StopOffset: int32(stopOffset),
		NumStops:   int32(numStops),
		TripOffset: int32(tripOffset),
		NumTrips:   int32(numTrips),
		RouteID:    readString(t.strings.data, routeID),
		AgencyID:   readString(t.strings.data, agencyID),
		ShortName:  readString(t.strings.data, shortName),
		LongName:   readString(t.strings.data, longName),
		RouteType:  model.RouteType(routeType),
	}
}

// PatternStopIDs returns the ordered stop indices pattern p visits,
// decoded directly from pattern_stops.bin.
func (t *Timetable) PatternStopIDs(p int32) []int32 {
	h := t.Pattern(p)
	out := make([]int32, h.NumStops)
	for i := range out {
		off := int(h.StopOffset+int32(i)) * 4
		out[i] = int32(byteOrder.Uint32(t.patternStops.data[off : off+4]))
	}
	return out
}

// Trip decodes trip record i out of trips.bin.
func (t *Timetable) Trip(i int32) timetable.Trip {
	rec := t.trips.data[int(i)*tripRecordSize : (int(i)+1)*tripRecordSize]
	j := 0
	patternID := int32(byteOrder.Uint32(rec[j : j+4]))
	j += 4
	serviceID := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	headsign := readStringRef(rec[j : j+stringRefSize])
	j += stringRefSize
	stopsIndex := int32(byteOrder.Uint32(rec[j : j+4]))
	return timetable.Trip{
		PatternID:  patternID,
		ServiceID:  readString(t.strings.data, serviceID),
		Headsign:   readString(t.strings.data, headsign),
		StopsIndex: stopsIndex,
	}
}

// TripStopTimes decodes trip t's (arrival, departure) pairs directly
// out of stop_times.bin.
func (t *Timetable) TripStopTimes(tripIdx int32) []timetable.StopTime {
	trip := t.Trip(tripIdx)
	n := t.Pattern(trip.PatternID).NumStops
	out := make([]timetable.StopTime, n)
	for i := int32(0); i < n; i++ {
		off := int(trip.StopsIndex+i) * stopTimeRecordSize
		out[i] = timetable.StopTime{
			Arrival:   byteOrder.Uint32(t.stopTimes.data[off : off+4]),
			Departure: byteOrder.Uint32(t.stopTimes.data[off+4 : off+8]),
		}
	}
	return out
}

// StopTimeAt decodes a single (arrival, departure) pair for trip
// tripIdx at pattern position pos, without decoding the trip's whole
// stop-times run. The RAPTOR pattern scan (router package) calls this
// once per (trip, position) candidate it considers, rather than
// TripStopTimes's whole-trip decode, since most candidates are
// discarded after a single position check.
func (t *Timetable) StopTimeAt(tripIdx, pos int32) timetable.StopTime {
	trip := t.Trip(tripIdx)
	off := int(trip.StopsIndex+pos) * stopTimeRecordSize
	return timetable.StopTime{
		Arrival:   byteOrder.Uint32(t.stopTimes.data[off : off+4]),
		Departure: byteOrder.Uint32(t.stopTimes.data[off+4 : off+8]),
	}
}

// ActiveOnDay reports whether trip tripIdx runs on CalendarStart+dayOffset,
// reading its bitmap directly out of calendar.bin.
func (t *Timetable) ActiveOnDay(tripIdx int32, dayOffset int) bool {
	if dayOffset < 0 || dayOffset >= int(t.manifest.CalendarDays) {
		return false
	}
	bytesPerTrip := int(t.manifest.BytesPerTrip)
	base := int(tripIdx) * bytesPerTrip
	b := t.calendar.data[base+dayOffset/8]
	return b&(1<<uint(dayOffset%8)) != 0
}

// PatternTrips returns the trip indices belonging to pattern p.
func (t *Timetable) PatternTrips(p int32) []int32 {
	h := t.Pattern(p)
	out := make([]int32, h.NumTrips)
	for i := range out {
		out[i] = h.TripOffset + int32(i)
	}
	return out
}

// StopPatterns returns the (pattern, position) pairs stop s appears
// in, derived on the fly by scanning pattern_stops.bin's CSR payload
// against every pattern's stop range. Patterns are few enough (tens
// of thousands at most) that this linear scan, done once per RAPTOR
// round per marked stop, is cheap; building a persisted reverse index
// would duplicate pattern_stops.bin's content on disk for no gain.
func (t *Timetable) StopPatterns(s int32) []timetable.StopPatternRef {
	var out []timetable.StopPatternRef
	for p := int32(0); p < t.manifest.NumPatterns; p++ {
		ids := t.PatternStopIDs(p)
		for pos, id := range ids {
			if id == s {
				out = append(out, timetable.StopPatternRef{Pattern: p, Position: int32(pos)})
			}
		}
	}
	return out
}

// Transfers returns stop s's outgoing transfer edges, sorted
// ascending by walk time (spec.md §3: "per-stop transfer lists are
// sorted by walk_seconds ascending").
func (t *Timetable) Transfers(s int32) []timetable.Transfer {
	start := byteOrder.Uint32(t.transferOffsets.data[int(s)*4 : int(s)*4+4])
	end := byteOrder.Uint32(t.transferOffsets.data[int(s+1)*4 : int(s+1)*4+4])
	out := make([]timetable.Transfer, 0, end-start)
	for i := start; i < end; i++ {
		off := int(i) * transferRecordSize
		out = append(out, timetable.Transfer{
			ToStop:     int32(byteOrder.Uint32(t.transfers.data[off : off+4])),
			WalkSecond: byteOrder.Uint32(t.transfers.data[off+4 : off+8]),
		})
	}
	return out
}
