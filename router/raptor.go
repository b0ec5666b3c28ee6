package router

import (
	"sort"

	"github.com/ellenhp/solari-go/mmap"
)

// inf marks "unreached" in the RAPTOR scratch arrays. Service-day
// seconds comfortably fit below this for any real GTFS feed (even a
// multi-day-spanning overnight trip stays under a few hundred
// thousand seconds).
const inf = 1 << 30

type predKind int8

const (
	predNone predKind = iota
	predAccess
	predTransit
	predTransfer
)

// predecessor records how a stop was reached in one round, enough to
// reconstruct the leg that produced it (spec.md §8 "Backward
// references": "store it as two parallel arrays ... per round" — here
// folded into one struct per (round, stop) for simplicity).
type predecessor struct {
	kind        predKind
	fromStop    int32
	tripIdx     int32
	boardPos    int32
	alightPos   int32
	walkSeconds int
}

// raptorState is one query's scratch RAPTOR arrays (spec.md §5: "The
// RAPTOR arrays are per-request scratch ... never shared"). It holds a
// handle to the router's shared mmap.Timetable but owns no data the
// timetable itself doesn't already own.
type raptorState struct {
	tt        *mmap.Timetable
	dayOffset int
	maxRounds int
	numStops  int

	bestArrival  []int
	roundArrival [][]int
	pred         [][]predecessor
	marked       []bool

	// activeTrips caches, per pattern, the subset of its trips active
	// on dayOffset, in the same departure-sorted order PatternTrips
	// returns them in. One query only ever runs against a single
	// calendar day, so this is safe to compute lazily and keep for the
	// life of the request.
	activeTrips map[int32][]int32
}

func newRaptorState(tt *mmap.Timetable, dayOffset, maxRounds int) *raptorState {
	numStops := tt.NumStops()
	rs := &raptorState{
		tt:          tt,
		dayOffset:   dayOffset,
		maxRounds:   maxRounds,
		numStops:    numStops,
		activeTrips: make(map[int32][]int32),
	}
	rs.bestArrival = make([]int, numStops)
	for i := range rs.bestArrival {
		rs.bestArrival[i] = inf
	}
	rs.roundArrival = make([][]int, maxRounds+1)
	rs.pred = make([][]predecessor, maxRounds+1)
	for k := 0; k <= maxRounds; k++ {
		rs.roundArrival[k] = make([]int, numStops)
		for i := range rs.roundArrival[k] {
			rs.roundArrival[k][i] = inf
		}
		rs.pred[k] = make([]predecessor, numStops)
	}
	rs.marked = make([]bool, numStops)
	return rs
}

// seedAccess initializes round 0 with the access stops (spec.md §4.7:
// "Initialize round 0 with access stops (arrival = start_time +
// walk_time)").
func (rs *raptorState) seedAccess(access []AccessCandidate, startSecond int) {
	for _, a := range access {
		arrival := startSecond + a.WalkSecond
		if arrival < rs.bestArrival[a.StopIndex] {
			rs.bestArrival[a.StopIndex] = arrival
			rs.roundArrival[0][a.StopIndex] = arrival
			rs.pred[0][a.StopIndex] = predecessor{kind: predAccess, walkSeconds: a.WalkSecond}
			rs.marked[a.StopIndex] = true
		}
	}
}

func (rs *raptorState) activeTripsFor(patternID int32) []int32 {
	if cached, ok := rs.activeTrips[patternID]; ok {
		return cached
	}
	all := rs.tt.PatternTrips(patternID)
	out := make([]int32, 0, len(all))
	for _, tripIdx := range all {
		if rs.tt.ActiveOnDay(tripIdx, rs.dayOffset) {
			out = append(out, tripIdx)
		}
	}
	rs.activeTrips[patternID] = out
	return out
}

// run executes rounds 1..maxRounds of the RAPTOR core (spec.md §4.7
// steps 1-3), stopping early once a round marks no stops.
func (rs *raptorState) run() {
	for k := 1; k <= rs.maxRounds; k++ {
		if !rs.runRound(k) {
			break
		}
	}
}

// runRound executes one round, returning whether any stop was marked
// (used for early termination).
func (rs *raptorState) runRound(k int) bool {
	// Step 1: marked stops from the previous round, grouped by the
	// earliest pattern position any of them occupies.
	patternEntry := make(map[int32]int32)
	for s := 0; s < rs.numStops; s++ {
		if !rs.marked[s] {
			continue
		}
		for _, ref := range rs.tt.StopPatterns(int32(s)) {
			if existing, ok := patternEntry[ref.Pattern]; !ok || ref.Position < existing {
				patternEntry[ref.Pattern] = ref.Position
			}
		}
	}

	marked := make([]bool, rs.numStops)

	// Step 2: pattern scan.
	for patternID, entryPos := range patternEntry {
		rs.scanPattern(k, patternID, entryPos, marked)
	}

	// Step 3: transfer relaxation, over stops the pattern scan just
	// marked.
	for s := 0; s < rs.numStops; s++ {
		if !marked[s] {
			continue
		}
		for _, tr := range rs.tt.Transfers(int32(s)) {
			candidate := rs.roundArrival[k][s] + int(tr.WalkSecond)
			if candidate < rs.bestArrival[tr.ToStop] {
				rs.bestArrival[tr.ToStop] = candidate
				rs.roundArrival[k][tr.ToStop] = candidate
				rs.pred[k][tr.ToStop] = predecessor{kind: predTransfer, fromStop: int32(s), walkSeconds: int(tr.WalkSecond)}
				marked[tr.ToStop] = true
			}
		}
	}

	rs.marked = marked
	for _, m := range marked {
		if m {
			return true
		}
	}
	return false
}

func (rs *raptorState) scanPattern(k int, patternID, entryPos int32, marked []bool) {
	trips := rs.activeTripsFor(patternID)
	if len(trips) == 0 {
		return
	}
	stopIDs := rs.tt.PatternStopIDs(patternID)

	currentTrip := -1
	boardPos := entryPos

	for j := entryPos; int(j) < len(stopIDs); j++ {
		stopJ := stopIDs[j]

		prevArrival := rs.roundArrival[k-1][stopJ]
		if prevArrival < inf {
			if candidate := findEarliestBoardable(rs.tt, trips, j, prevArrival); candidate >= 0 {
				if currentTrip < 0 || candidate < currentTrip {
					currentTrip = candidate
					boardPos = j
				}
			}
		}

		if currentTrip < 0 {
			continue
		}
		st := rs.tt.StopTimeAt(trips[currentTrip], j)
		arrival := int(st.Arrival)
		if arrival < rs.bestArrival[stopJ] {
			rs.bestArrival[stopJ] = arrival
			rs.roundArrival[k][stopJ] = arrival
			rs.pred[k][stopJ] = predecessor{
				kind:      predTransit,
				fromStop:  stopIDs[boardPos],
				tripIdx:   trips[currentTrip],
				boardPos:  boardPos,
				alightPos: j,
			}
			marked[stopJ] = true
		}
	}
}

// findEarliestBoardable returns the index into trips (sorted ascending
// by departure, hence also by arrival at every position, per the
// FIFO-overtake-free property spec.md §4.2/§8 guarantees) of the
// earliest trip whose departure at position pos is >= minDeparture, or
// -1 if none board in time.
func findEarliestBoardable(tt *mmap.Timetable, trips []int32, pos int32, minDeparture int) int {
	n := len(trips)
	idx := sort.Search(n, func(i int) bool {
		return int(tt.StopTimeAt(trips[i], pos).Departure) >= minDeparture
	})
	if idx == n {
		return -1
	}
	return idx
}
