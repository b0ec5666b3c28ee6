// Package pattern groups a feed's trips into route-patterns: the
// equivalence class of trips that visit the same ordered stop
// sequence. It is the bridge between feed/storage's per-feed tables
// (C1) and timetable's CSR arrays (C3).
package pattern

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ellenhp/solari-go/feed/model"
)

// StopTime is a trip's visit to one stop, already resolved to a
// numeric time. Seconds may exceed 86400 for next-day service, per
// GTFS and spec.md's data model for Trip.
type StopTime struct {
	StopID       string
	StopSequence uint32
	Arrival      uint32
	Departure    uint32
}

// Trip is one scheduled run through a pattern's stop sequence. Times
// line up positionally with Pattern.Stops: Times[i] is the visit to
// Pattern.Stops[i].
type Trip struct {
	TripID    string
	ServiceID string
	Headsign  string
	Times     []StopTime
}

// Pattern is the equivalence class of trips sharing one ordered stop
// sequence. Trips are sorted by departure time at the first stop.
type Pattern struct {
	ID        int
	Stops     []string
	RouteID   string
	AgencyID  string
	ShortName string
	LongName  string
	RouteType model.RouteType
	Trips     []Trip
}

// Key is the canonical stop-sequence key patterns are grouped and
// deduplicated by.
func (p *Pattern) Key() string {
	return strings.Join(p.Stops, "\x1f")
}

// Build groups trips into patterns, splits any pattern that violates
// the FIFO property (spec.md §4.2, §8 invariant 2), and assigns dense
// pattern IDs in the order patterns are first produced. Input trips
// and stopTimes come straight from a feed/storage.FeedReader; routes
// supplies route/agency metadata keyed by route ID.
func Build(trips []*model.Trip, stopTimes []*model.StopTime, routes map[string]*model.Route) ([]*Pattern, error) {
	timesByTrip := map[string][]*model.StopTime{}
	for _, st := range stopTimes {
		timesByTrip[st.TripID] = append(timesByTrip[st.TripID], st)
	}
	for tripID, times := range timesByTrip {
		sort.Slice(times, func(i, j int) bool { return times[i].StopSequence < times[j].StopSequence })
		timesByTrip[tripID] = times
	}

	type candidate struct {
		key     string
		stops   []string
		routeID string
		trips   []Trip
	}
	byKey := map[string]*candidate{}
	var order []string

	for _, t := range trips {
		times := timesByTrip[t.ID]
		if len(times) < 2 {
			return nil, fmt.Errorf("trip %s: fewer than 2 stop_times", t.ID)
		}

		stops := make([]string, len(times))
		converted := make([]StopTime, len(times))
		for i, st := range times {
			stops[i] = st.StopID
			arr := uint32(st.ArrivalTime().Seconds())
			dep := uint32(st.DepartureTime().Seconds())
			if dep < arr {
				return nil, fmt.Errorf("trip %s stop %s: departure before arrival", t.ID, st.StopID)
			}
			if i > 0 && arr < converted[i-1].Departure {
				return nil, fmt.Errorf("trip %s stop %s: time goes backwards", t.ID, st.StopID)
			}
			converted[i] = StopTime{StopID: st.StopID, StopSequence: st.StopSequence, Arrival: arr, Departure: dep}
		}

		key := strings.Join(stops, "\x1f")
		c, ok := byKey[key]
		if !ok {
			c = &candidate{key: key, stops: stops, routeID: t.RouteID}
			byKey[key] = c
			order = append(order, key)
		}
		c.trips = append(c.trips, Trip{
			TripID:    t.ID,
			ServiceID: t.ServiceID,
			Headsign:  t.Headsign,
			Times:     converted,
		})
	}

	var patterns []*Pattern
	for _, key := range order {
		c := byKey[key]
		sort.Slice(c.trips, func(i, j int) bool {
			return c.trips[i].Times[0].Departure < c.trips[j].Times[0].Departure
		})
		route := routes[c.routeID]
		split := splitFIFOViolations(c.stops, c.trips)
		for _, group := range split {
			p := &Pattern{
				Stops:   c.stops,
				RouteID: c.routeID,
				Trips:   group,
			}
			if route != nil {
				p.AgencyID = route.AgencyID
				p.ShortName = route.ShortName
				p.LongName = route.LongName
				p.RouteType = route.Type
			}
			patterns = append(patterns, p)
		}
	}

	for i, p := range patterns {
		p.ID = i
	}

	return patterns, nil
}

// splitFIFOViolations partitions trips (already sorted by departure
// at the first stop) into groups where, within each group, no
// earlier-departing trip arrives at a later stop after a
// later-departing trip — the FIFO-overtake-free property the
// stop-times matrix requires (spec.md §3 "Stop-times matrix", §4.2).
//
// A trip is assigned to the first group it doesn't overtake; if it
// overtakes every existing group it starts a new one. This keeps each
// output pattern internally FIFO while preserving departure order
// within a group.
func splitFIFOViolations(stops []string, trips []Trip) [][]Trip {
	var groups [][]Trip
	for _, t := range trips {
		placed := false
		for gi := range groups {
			last := groups[gi][len(groups[gi])-1]
			if fifoCompatible(last, t) {
				groups[gi] = append(groups[gi], t)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []Trip{t})
		}
	}
	return groups
}

// fifoCompatible reports whether appending later (which departs the
// first stop no earlier than earlier) preserves FIFO order at every
// subsequent stop.
func fifoCompatible(earlier, later Trip) bool {
	n := len(earlier.Times)
	if len(later.Times) < n {
		n = len(later.Times)
	}
	for i := 0; i < n; i++ {
		if later.Times[i].Arrival < earlier.Times[i].Arrival {
			return false
		}
	}
	return true
}
