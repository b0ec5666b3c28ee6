// Package compiler implements the concatenator (C5): merging
// independently-built per-feed timetables into one, and the
// per-feed build pipeline (parse -> pattern -> timetable) that feeds
// it, fanned out across a worker pool (spec.md §4.5, §5).
package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ellenhp/solari-go/feed/model"
	"github.com/ellenhp/solari-go/geo"
	"github.com/ellenhp/solari-go/timetable"
)

// stopMergeEpsilonMeters is spec.md §4.5's "haversine distance < ε
// (≈2 m)" stop-merge threshold.
const stopMergeEpsilonMeters = 2.0

var nameCanonRe = regexp.MustCompile(`[^a-z0-9]+`)

func canonicalizeName(s string) string {
	return nameCanonRe.ReplaceAllString(strings.ToLower(s), "")
}

type tripRef struct {
	table int
	trip  int32
}

// Concatenate merges tables (one per source feed) into a unified
// timetable: stop dedup, pattern remap/coalesce, and calendar-window
// equality (spec.md §4.5). names gives each table's canonical sort
// key (its source feed's filename), so the merge is reproducible
// regardless of the order worker goroutines finished in (spec.md §9
// "outputs should be sorted by a canonical key ... before merge").
func Concatenate(tables []*timetable.Timetable, names []string) (*timetable.Timetable, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("concatenating: no timetables given")
	}
	order := make([]int, len(tables))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	first := tables[order[0]]
	for _, i := range order {
		tt := tables[i]
		if tt.CalendarStart != first.CalendarStart || tt.CalendarDays != first.CalendarDays {
			return nil, fmt.Errorf("calendar mismatch: %s spans (%s,+%dd), %s spans (%s,+%dd)",
				names[i], tt.CalendarStart, tt.CalendarDays,
				names[order[0]], first.CalendarStart, first.CalendarDays)
		}
	}

	merged := &timetable.Timetable{
		StopIndex:     map[string]int32{},
		CalendarStart: first.CalendarStart,
		CalendarDays:  first.CalendarDays,
	}

	stopRemap := mergeStops(merged, tables, order)

	merged.StopPatterns = make([][]timetable.StopPatternRef, len(merged.Stops))
	merged.Transfers = make([][]timetable.Transfer, len(merged.Stops))

	mergePatterns(merged, tables, order, stopRemap)

	return merged, nil
}

// mergeStops dedups stops across tables by (canonicalized name,
// haversine proximity) and returns, per table, a remap from that
// table's local stop index to the unified index.
func mergeStops(merged *timetable.Timetable, tables []*timetable.Timetable, order []int) [][]int32 {
	stopRemap := make([][]int32, len(tables))
	byCanonName := map[string][]int32{}

	for _, ti := range order {
		tt := tables[ti]
		stopRemap[ti] = make([]int32, len(tt.Stops))
		for si, s := range tt.Stops {
			canon := canonicalizeName(s.Name)
			match := int32(-1)
			for _, candidate := range byCanonName[canon] {
				existing := merged.Stops[candidate]
				distKm := geo.HaversineDistance(s.Lat, s.Lon, existing.Lat, existing.Lon)
				if distKm*1000 < stopMergeEpsilonMeters {
					match = candidate
					break
				}
			}
			if match >= 0 {
				stopRemap[ti][si] = match
				continue
			}
			newIdx := int32(len(merged.Stops))
			unified := s
			unified.ParentStop = -1
			merged.Stops = append(merged.Stops, unified)
			merged.StopIndex[s.ID] = newIdx
			byCanonName[canon] = append(byCanonName[canon], newIdx)
			stopRemap[ti][si] = newIdx
		}
	}

	for _, ti := range order {
		tt := tables[ti]
		for si, s := range tt.Stops {
			if s.ParentStop < 0 {
				continue
			}
			merged.Stops[stopRemap[ti][si]].ParentStop = stopRemap[ti][s.ParentStop]
		}
	}

	return stopRemap
}

// mergeCandidate accumulates every table's trips that remap to the
// same stop sequence, before the FIFO re-split below decides whether
// they coalesce into one merged pattern or stay apart.
type mergeCandidate struct {
	stops     []int32
	routeID   string
	agencyID  string
	shortName string
	longName  string
	routeType model.RouteType
	refs      []tripRef
}

// mergePatterns remaps every table's patterns into the unified stop
// space, coalesces patterns that become identical, and rebuilds the
// trip/stop-times/calendar arrays so that each pattern's trips remain
// a contiguous CSR range sorted by first-stop departure -- even when
// the pattern's trips were contributed by more than one source table.
//
// Two local patterns can share a stop-sequence key while having been
// deliberately kept apart by pattern.Build's splitFIFOViolations (one
// trip overtakes another at a later stop). Coalescing them here and
// re-sorting the combined trip list by first-stop departure alone
// would silently reintroduce that overtake, violating the
// FIFO-overtake-free invariant router/raptor.go's findEarliestBoardable
// binary search depends on (spec.md §3, §8 invariant 2). So after
// grouping by stop sequence, every candidate's trips are re-split for
// FIFO violations exactly as pattern.Build does, and each resulting
// group becomes its own merged pattern.
func mergePatterns(merged *timetable.Timetable, tables []*timetable.Timetable, order []int, stopRemap [][]int32) {
	candidateByKey := map[string]*mergeCandidate{}
	var keys []string

	for _, ti := range order {
		tt := tables[ti]
		for p := 0; p < len(tt.Patterns); p++ {
			header := tt.Patterns[p]
			localStops := tt.PatternStopIDs(int32(p))
			remapped := make([]int32, len(localStops))
			for i, s := range localStops {
				remapped[i] = stopRemap[ti][s]
			}
			key := patternKey(remapped)

			c, ok := candidateByKey[key]
			if !ok {
				c = &mergeCandidate{
					stops:     remapped,
					routeID:   header.RouteID,
					agencyID:  header.AgencyID,
					shortName: header.ShortName,
					longName:  header.LongName,
					routeType: header.RouteType,
				}
				candidateByKey[key] = c
				keys = append(keys, key)
			}
			for _, localTrip := range tt.PatternTrips(int32(p)) {
				c.refs = append(c.refs, tripRef{table: ti, trip: localTrip})
			}
		}
	}

	for _, key := range keys {
		c := candidateByKey[key]
		sort.SliceStable(c.refs, func(i, j int) bool {
			return firstDeparture(tables, c.refs[i]) < firstDeparture(tables, c.refs[j])
		})

		for _, group := range splitMergedFIFO(tables, c.refs) {
			patternID := int32(len(merged.Patterns))
			merged.Patterns = append(merged.Patterns, timetable.PatternHeader{
				StopOffset: int32(len(merged.PatternStops)),
				NumStops:   int32(len(c.stops)),
				TripOffset: int32(len(merged.Trips)),
				NumTrips:   int32(len(group)),
				RouteID:    c.routeID,
				AgencyID:   c.agencyID,
				ShortName:  c.shortName,
				LongName:   c.longName,
				RouteType:  c.routeType,
			})
			merged.PatternStops = append(merged.PatternStops, c.stops...)
			for pos, s := range c.stops {
				merged.StopPatterns[s] = append(merged.StopPatterns[s], timetable.StopPatternRef{Pattern: patternID, Position: int32(pos)})
			}

			for _, ref := range group {
				tt := tables[ref.table]
				trip := tt.Trips[ref.trip]
				merged.Trips = append(merged.Trips, timetable.Trip{
					PatternID:  patternID,
					ServiceID:  trip.ServiceID,
					Headsign:   trip.Headsign,
					StopsIndex: int32(len(merged.StopTimes)),
				})
				merged.StopTimes = append(merged.StopTimes, tt.TripStopTimes(ref.trip)...)
				merged.Calendar = append(merged.Calendar, tt.Calendar[ref.trip])
			}
		}
	}
}

func firstDeparture(tables []*timetable.Timetable, ref tripRef) uint32 {
	times := tables[ref.table].TripStopTimes(ref.trip)
	return times[0].Departure
}

// splitMergedFIFO partitions refs (already sorted by first-stop
// departure) the same way pattern.Build's splitFIFOViolations does: a
// trip joins the first existing group it doesn't overtake, or starts a
// new one. refs may come from different source tables, which is
// exactly the case pattern-level splitting can't see.
func splitMergedFIFO(tables []*timetable.Timetable, refs []tripRef) [][]tripRef {
	var groups [][]tripRef
	for _, ref := range refs {
		placed := false
		for gi := range groups {
			last := groups[gi][len(groups[gi])-1]
			if fifoCompatibleRefs(tables, last, ref) {
				groups[gi] = append(groups[gi], ref)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []tripRef{ref})
		}
	}
	return groups
}

// fifoCompatibleRefs mirrors pattern.fifoCompatible: appending later
// after earlier must not let later arrive at any stop before earlier
// does.
func fifoCompatibleRefs(tables []*timetable.Timetable, earlier, later tripRef) bool {
	earlierTimes := tables[earlier.table].TripStopTimes(earlier.trip)
	laterTimes := tables[later.table].TripStopTimes(later.trip)
	n := len(earlierTimes)
	if len(laterTimes) < n {
		n = len(laterTimes)
	}
	for i := 0; i < n; i++ {
		if laterTimes[i].Arrival < earlierTimes[i].Arrival {
			return false
		}
	}
	return true
}

func patternKey(stops []int32) string {
	b := make([]byte, 0, len(stops)*5)
	for _, s := range stops {
		b = append(b, byte(s), byte(s>>8), byte(s>>16), byte(s>>24), '\x1f')
	}
	return string(b)
}
