// Package router implements C7: the RAPTOR-based journey planner that
// serves queries against an opened timetable plus its transfer-graph
// sidecar (spec.md §4.7). It is read-only and concurrency-safe — the
// mmap'd timetable, the contracted pedestrian graph, and the sphere
// indices are shared across requests; each request gets its own
// scratch RAPTOR state.
package router

// Default bounds, per spec.md §4.7 "Router query" and "Access
// resolution"/"Egress & reconstruction".
const (
	DefaultMaxAccessEgressMeters = 1500
	DefaultMaxAccessStops        = 6
	DefaultMaxEgressStops        = 4
	DefaultMaxRounds             = 4
	DefaultMaxItineraries        = 1000
)

// Query is one journey-planning request. StartTimeUnix is seconds since
// the Unix epoch; the router converts to the compiled calendar's
// service-day-relative seconds internally (spec.md §9 open question
// #3) and only converts back at the response boundary.
type Query struct {
	OriginLat, OriginLon float64
	DestLat, DestLon     float64
	StartTimeUnix        int64

	MaxAccessEgressMeters float64
	MaxAccessStops        int
	MaxEgressStops        int
	MaxRounds             int
	MaxItineraries        int
}

// WithDefaults fills zero-valued bounds with the spec's defaults.
func (q Query) WithDefaults() Query {
	if q.MaxAccessEgressMeters == 0 {
		q.MaxAccessEgressMeters = DefaultMaxAccessEgressMeters
	}
	if q.MaxAccessStops == 0 {
		q.MaxAccessStops = DefaultMaxAccessStops
	}
	if q.MaxEgressStops == 0 {
		q.MaxEgressStops = DefaultMaxEgressStops
	}
	if q.MaxRounds == 0 {
		q.MaxRounds = DefaultMaxRounds
	}
	if q.MaxItineraries == 0 {
		q.MaxItineraries = DefaultMaxItineraries
	}
	return q
}

// LegKind distinguishes a scheduled transit ride from a walking leg.
type LegKind int

const (
	LegTransit LegKind = iota
	LegTransfer
)

// Leg is one segment of an itinerary. Times are service-day-relative
// seconds until the response boundary converts them to epoch
// milliseconds (spec.md §9 open question #3). Transit legs additionally
// carry the pattern/trip they ride and the route/agency names for
// display; Transfer legs (including access/egress) carry only
// endpoints.
type Leg struct {
	Kind LegKind

	StartSecond, EndSecond int
	FromStop, ToStop       int32 // -1 for a street endpoint (access/egress)
	FromLat, FromLon       float64
	ToLat, ToLon           float64

	// Transit-only fields.
	PatternID      int32
	TripID         int32
	BoardPosition  int32
	AlightPosition int32
	RouteShortName string
	RouteLongName  string
	AgencyID       string
	Headsign       string

	// Polyline is the leg's street-network or route shape, in
	// travel order. Filled in by Router.Route (see polyline.go).
	Polyline []LatLon
}

// LatLon is one vertex of a leg polyline.
type LatLon struct {
	Lat, Lon float64
}

// Itinerary is a time-contiguous sequence of legs (spec.md §3
// Itinerary invariant: "leg[i].end_time <= leg[i+1].start_time").
type Itinerary struct {
	Legs      []Leg
	Rounds    int // number of transit legs
	DayOffset int // which compiled calendar day this itinerary's trips ran on
}
