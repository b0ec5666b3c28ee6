package router

import (
	"fmt"

	"github.com/ellenhp/solari-go/mmap"
	"github.com/ellenhp/solari-go/transfergraph"
	"github.com/ellenhp/solari-go/transfergraph/sphereindex"
)

// Router holds every read-only resource one compiled timetable needs
// to serve queries: the mmap'd timetable itself, the contracted
// pedestrian graph (for access/egress walking-time queries), a sphere
// index over the timetable's stops ("stops near this coordinate"), and
// a sphere index over the pedestrian graph's road nodes (to snap a
// query coordinate, or a stop, onto its nearest road node before a CH
// query). All four are safe to share across concurrent requests; see
// the package doc.
type Router struct {
	tt      *mmap.Timetable
	ch      *transfergraph.CHGraph
	stopIdx *sphereindex.Index
	roadIdx *sphereindex.Index
}

// Open opens the timetable at timetableDir and its contracted-graph
// sidecar at contractedGraphPath (spec.md §9: "contracted_graph.bin").
func Open(timetableDir, contractedGraphPath string) (*Router, error) {
	tt, err := mmap.Open(timetableDir)
	if err != nil {
		return nil, fmt.Errorf("opening timetable: %w", err)
	}
	ch, err := transfergraph.ReadCH(contractedGraphPath)
	if err != nil {
		tt.Close()
		return nil, fmt.Errorf("opening contracted graph: %w", err)
	}

	stopIdx := sphereindex.New()
	for i := 0; i < tt.NumStops(); i++ {
		s := tt.Stop(int32(i))
		stopIdx.Insert(int32(i), s.Lat, s.Lon)
	}

	roadIdx := sphereindex.New()
	for i, n := range ch.Base().Nodes {
		roadIdx.Insert(int32(i), n.Lat, n.Lon)
	}

	return &Router{tt: tt, ch: ch, stopIdx: stopIdx, roadIdx: roadIdx}, nil
}

// Close releases the underlying mmap handles.
func (r *Router) Close() error {
	return r.tt.Close()
}

// ResponseStatus is the outer status field of the JSON wire format
// (spec.md §9 "Wire format of response").
type ResponseStatus string

const (
	StatusOK           ResponseStatus = "ok"
	StatusNoRouteFound ResponseStatus = "no_route_found"
	StatusTooEarly     ResponseStatus = "too_early"
	StatusTooLate      ResponseStatus = "too_late"
)

// Result is the router's answer to one Query, ready for Marshal.
type Result struct {
	Status      ResponseStatus
	Itineraries []Itinerary
}

// Route runs the full C7 pipeline: access resolution, the RAPTOR core,
// egress and Pareto collection, and itinerary reconstruction (spec.md
// §4.7).
func (r *Router) Route(q Query) (Result, error) {
	q = q.WithDefaults()

	dayOffset, secondOfDay, err := r.resolveServiceDay(q.StartTimeUnix)
	if err != nil {
		return Result{}, err
	}
	if dayOffset < 0 {
		return Result{Status: StatusTooEarly}, nil
	}
	if dayOffset >= r.tt.CalendarDays() {
		return Result{Status: StatusTooLate}, nil
	}

	access := r.resolveAccess(q.OriginLat, q.OriginLon, q.MaxAccessEgressMeters, q.MaxAccessStops)
	egress := r.resolveEgress(q.DestLat, q.DestLon, q.MaxAccessEgressMeters, q.MaxEgressStops)
	if len(access) == 0 || len(egress) == 0 {
		return Result{Status: StatusNoRouteFound}, nil
	}

	state := newRaptorState(r.tt, dayOffset, q.MaxRounds)
	state.seedAccess(access, secondOfDay)
	state.run()

	itineraries := state.collectItineraries(egress, q.MaxItineraries, dayOffset)
	if len(itineraries) == 0 {
		return Result{Status: StatusNoRouteFound}, nil
	}
	for i := range itineraries {
		r.fillLegCoordinates(&itineraries[i], q)
		r.fillPolylines(&itineraries[i])
	}
	return Result{Status: StatusOK, Itineraries: itineraries}, nil
}

// resolveServiceDay converts a query's absolute start time into a
// (dayOffset, secondOfDay) pair relative to the compiled calendar
// window. dayOffset is negative if startUnix precedes the window.
func (r *Router) resolveServiceDay(startUnix int64) (int, int, error) {
	start, err := parseCalendarStart(r.tt.CalendarStart())
	if err != nil {
		return 0, 0, fmt.Errorf("parsing calendar start: %w", err)
	}
	delta := startUnix - start
	const secondsPerDay = 86400
	dayOffset := int(delta / secondsPerDay)
	secondOfDay := int(delta % secondsPerDay)
	if secondOfDay < 0 {
		secondOfDay += secondsPerDay
		dayOffset--
	}
	return dayOffset, secondOfDay, nil
}

// fillLegCoordinates attaches lat/lon to every leg endpoint: compiled
// stop coordinates for FromStop/ToStop >= 0, and the query's street
// coordinates for the access leg's origin and the egress leg's
// destination (both recorded as -1 by raptorState.reconstruct, which
// has no knowledge of the query).
func (r *Router) fillLegCoordinates(it *Itinerary, q Query) {
	for i := range it.Legs {
		leg := &it.Legs[i]
		if leg.FromStop >= 0 {
			s := r.tt.Stop(leg.FromStop)
			leg.FromLat, leg.FromLon = s.Lat, s.Lon
		} else {
			leg.FromLat, leg.FromLon = q.OriginLat, q.OriginLon
		}
		if leg.ToStop >= 0 {
			s := r.tt.Stop(leg.ToStop)
			leg.ToLat, leg.ToLon = s.Lat, s.Lon
		} else {
			leg.ToLat, leg.ToLon = q.DestLat, q.DestLon
		}
	}
}
