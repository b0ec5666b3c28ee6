// Package timetable assembles pattern.Pattern slices into the
// in-memory CSR arrays spec.md §4.3 describes: a stop table, a
// pattern table with CSR offsets into a stop-sequence array, a trip
// table, a stop-times matrix, and the stop→patterns reverse index
// RAPTOR's pattern scan needs. It is the in-memory shape that
// mmap.Write serializes and mmap.Open reconstructs byte-for-byte.
package timetable

import (
	"fmt"
	"sort"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/pattern"
)

// Stop is the compiled, dense-indexed stop record. SphereX/Y/Z are
// the precomputed unit-sphere coordinates spec.md §3 allows for fast
// distance; transfergraph fills them in, so they are zero until then.
type Stop struct {
	ID         string
	Code       string
	Name       string
	Lat, Lon   float64
	SphereX    float64
	SphereY    float64
	SphereZ    float64
	ParentStop int32 // -1 if none
}

// PatternHeader is the fixed-width part of a compiled pattern: CSR
// offsets into the PatternStops array plus route metadata. Per-trip data
// lives in Trips, indexed by [TripOffset : TripOffset+NumTrips).
type PatternHeader struct {
	StopOffset int32
	NumStops   int32
	TripOffset int32
	NumTrips   int32
	RouteID    string
	AgencyID   string
	ShortName  string
	LongName   string
	RouteType  model.RouteType
}

// Trip is a compiled trip: its pattern, its service and headsign, and
// its slice of the global stop-times matrix. Its calendar bitmap is the
// Timetable.Calendar entry at the same index.
type Trip struct {
	PatternID  int32
	ServiceID  string
	Headsign   string
	StopsIndex int32 // offset into StopTimes, length == pattern's NumStops
}

// StopTime is one (arrival, departure) pair, addressed via
// Trip.StopsIndex + position-within-pattern.
type StopTime struct {
	Arrival   uint32
	Departure uint32
}

// StopPatternRef is one entry of the stop→patterns reverse index:
// stop s is visited by Pattern at stop-sequence position Position.
type StopPatternRef struct {
	Pattern  int32
	Position int32
}

// Timetable is the fully assembled, not-yet-serialized in-memory
// representation. Transfers is left empty (spec.md §4.3: "at this
// stage the transfer table is empty") until transfergraph fills it
// in post-concatenation.
type Timetable struct {
	Stops         []Stop
	StopIndex     map[string]int32
	Patterns      []PatternHeader
	PatternStops  []int32 // CSR payload, indexed by PatternHeader.StopOffset
	Trips         []Trip
	StopTimes     []StopTime
	StopPatterns  [][]StopPatternRef // indexed by stop index
	Transfers     [][]Transfer       // indexed by stop index, empty until transfergraph runs
	CalendarStart string
	CalendarDays  int

	// Calendar holds one bitmap per trip, (CalendarDays+7)/8 bytes
	// each, bit d set when the trip runs on CalendarStart+d days
	// (spec.md §3 "Trip", §9 "Calendar representation"). Indexed in
	// lockstep with Trips.
	Calendar []TripCalendar
}

// TripCalendar is one trip's per-day activity bitmap.
type TripCalendar struct {
	Days []byte
}

// BytesPerTrip is the fixed calendar-bitmap width for this timetable.
func (tt *Timetable) BytesPerTrip() int {
	return (tt.CalendarDays + 7) / 8
}

// ActiveOnDay reports whether the trip at Calendar index i runs on
// the day CalendarStart+dayOffset.
func (c TripCalendar) ActiveOnDay(dayOffset int) bool {
	if dayOffset < 0 || dayOffset/8 >= len(c.Days) {
		return false
	}
	return c.Days[dayOffset/8]&(1<<uint(dayOffset%8)) != 0
}

// Transfer is a precomputed walking edge between two compiled stops.
type Transfer struct {
	ToStop     int32
	WalkSecond uint32
}

// Build assembles patterns (already grouped and FIFO-split by
// pattern.Build) plus the raw stop table into CSR arrays. calendarStart
// and calendarDays bound the per-trip activity bitmap's length. Build
// leaves every trip's bitmap empty; ApplyCalendar fills them in.
func Build(stops []*model.Stop, patterns []*pattern.Pattern, calendarStart string, calendarDays int) (*Timetable, error) {
	tt := &Timetable{
		StopIndex:     map[string]int32{},
		CalendarStart: calendarStart,
		CalendarDays:  calendarDays,
	}

	sortedStops := make([]*model.Stop, len(stops))
	copy(sortedStops, stops)
	sort.Slice(sortedStops, func(i, j int) bool { return sortedStops[i].ID < sortedStops[j].ID })

	for i, s := range sortedStops {
		tt.StopIndex[s.ID] = int32(i)
		tt.Stops = append(tt.Stops, Stop{
			ID:         s.ID,
			Code:       s.Code,
			Name:       s.Name,
			Lat:        s.Lat,
			Lon:        s.Lon,
			ParentStop: -1,
		})
	}
	for i, s := range sortedStops {
		if s.ParentStation == "" {
			continue
		}
		parent, ok := tt.StopIndex[s.ParentStation]
		if !ok {
			return nil, fmt.Errorf("stop %s: parent_station %s not found", s.ID, s.ParentStation)
		}
		tt.Stops[i].ParentStop = parent
	}

	tt.StopPatterns = make([][]StopPatternRef, len(tt.Stops))

	for _, p := range patterns {
		key := p.Key()
		stopIdx := make([]int32, len(p.Stops))
		for i, sid := range p.Stops {
			idx, ok := tt.StopIndex[sid]
			if !ok {
				return nil, fmt.Errorf("pattern %s: stop %s not found", key, sid)
			}
			stopIdx[i] = idx
		}

		patternID := int32(len(tt.Patterns))
		header := PatternHeader{
			StopOffset: int32(len(tt.PatternStops)),
			NumStops:   int32(len(stopIdx)),
			TripOffset: int32(len(tt.Trips)),
			NumTrips:   int32(len(p.Trips)),
			RouteID:    p.RouteID,
			AgencyID:   p.AgencyID,
			ShortName:  p.ShortName,
			LongName:   p.LongName,
			RouteType:  p.RouteType,
		}
		tt.PatternStops = append(tt.PatternStops, stopIdx...)

		for i, idx := range stopIdx {
			tt.StopPatterns[idx] = append(tt.StopPatterns[idx], StopPatternRef{Pattern: patternID, Position: int32(i)})
		}

		for _, trip := range p.Trips {
			if len(trip.Times) != len(stopIdx) {
				return nil, fmt.Errorf("trip %s: time count %d != pattern stop count %d", trip.TripID, len(trip.Times), len(stopIdx))
			}
			tt.Trips = append(tt.Trips, Trip{
				PatternID:  patternID,
				ServiceID:  trip.ServiceID,
				Headsign:   trip.Headsign,
				StopsIndex: int32(len(tt.StopTimes)),
			})
			for _, st := range trip.Times {
				tt.StopTimes = append(tt.StopTimes, StopTime{Arrival: st.Arrival, Departure: st.Departure})
			}
		}

		tt.Patterns = append(tt.Patterns, header)
	}

	tt.Transfers = make([][]Transfer, len(tt.Stops))
	tt.Calendar = make([]TripCalendar, len(tt.Trips))

	return tt, nil
}

// ApplyCalendar assigns a per-day activity bitmap to every trip by
// its ServiceID, using bitmaps already expanded to CalendarDays bits
// (compiler.ExpandCalendar produces these from a feed's calendar.txt
// and calendar_dates.txt). Returns an error if any trip's service has
// no bitmap.
func (tt *Timetable) ApplyCalendar(byService map[string][]byte) error {
	for i, trip := range tt.Trips {
		bits, ok := byService[trip.ServiceID]
		if !ok {
			return fmt.Errorf("trip with service_id %s: no calendar bitmap", trip.ServiceID)
		}
		tt.Calendar[i] = TripCalendar{Days: bits}
	}
	return nil
}

// PatternStopIDs returns the ordered stop indices visited by pattern p.
func (tt *Timetable) PatternStopIDs(p int32) []int32 {
	h := tt.Patterns[p]
	return tt.PatternStops[h.StopOffset : h.StopOffset+h.NumStops]
}

// TripStopTimes returns the (arrival, departure) pairs for trip t,
// ordered the same as its pattern's stops.
func (tt *Timetable) TripStopTimes(t int32) []StopTime {
	trip := tt.Trips[t]
	n := tt.Patterns[trip.PatternID].NumStops
	return tt.StopTimes[trip.StopsIndex : trip.StopsIndex+n]
}

// PatternTrips returns the trip indices belonging to pattern p, in
// the order pattern.Build sorted them (by departure at the first stop).
func (tt *Timetable) PatternTrips(p int32) []int32 {
	h := tt.Patterns[p]
	out := make([]int32, h.NumTrips)
	for i := range out {
		out[i] = h.TripOffset + int32(i)
	}
	return out
}
