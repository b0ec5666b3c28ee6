package router

import "encoding/json"

// location is the wire representation of a leg endpoint (spec.md §6
// "Wire format of response": start_location, end_location).
type location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// legJSON is one leg in the wire format. Transit-only fields are
// omitted (via omitempty) on transfer legs; RouteShape is filled on
// both kinds.
type legJSON struct {
	Type        string   `json:"type"` // "transit" or "transfer"
	Start       location `json:"start_location"`
	End         location `json:"end_location"`
	StartTimeMs int64    `json:"start_time_ms"`
	EndTimeMs   int64    `json:"end_time_ms"`

	RouteShortName string   `json:"route_short_name,omitempty"`
	RouteLongName  string   `json:"route_long_name,omitempty"`
	TransitAgency  string   `json:"transit_agency,omitempty"`
	Headsign       string   `json:"headsign,omitempty"`
	TripID         int32    `json:"trip_id,omitempty"`
	RouteShape     []LatLon `json:"route_shape,omitempty"`
}

// itineraryJSON is one itinerary in the wire format.
type itineraryJSON struct {
	StartLocation location  `json:"start_location"`
	EndLocation   location  `json:"end_location"`
	StartTimeMs   int64     `json:"start_time_ms"`
	EndTimeMs     int64     `json:"end_time_ms"`
	Legs          []legJSON `json:"legs"`
}

// responseJSON is the full wire format (spec.md §6).
type responseJSON struct {
	Status      ResponseStatus  `json:"status"`
	Itineraries []itineraryJSON `json:"itineraries"`
}

// MarshalJSON implements the spec.md §6 wire format: status plus
// itineraries with epoch-millisecond times, converting from the
// service-day-relative seconds the RAPTOR core works in (spec.md §9
// open question #3) using each itinerary's recorded DayOffset and the
// router's calendar start.
func (r *Router) MarshalJSON(res Result) ([]byte, error) {
	start, err := parseCalendarStart(r.tt.CalendarStart())
	if err != nil {
		return nil, err
	}

	out := responseJSON{Status: res.Status}
	for _, it := range res.Itineraries {
		out.Itineraries = append(out.Itineraries, itineraryJSONOf(it, start))
	}
	return json.Marshal(out)
}

func itineraryJSONOf(it Itinerary, calendarStartUnix int64) itineraryJSON {
	dayBase := calendarStartUnix + int64(it.DayOffset)*86400

	legs := make([]legJSON, len(it.Legs))
	for i, leg := range it.Legs {
		lj := legJSON{
			Start:       location{Lat: leg.FromLat, Lon: leg.FromLon},
			End:         location{Lat: leg.ToLat, Lon: leg.ToLon},
			StartTimeMs: (dayBase + int64(leg.StartSecond)) * 1000,
			EndTimeMs:   (dayBase + int64(leg.EndSecond)) * 1000,
		}
		if leg.Kind == LegTransit {
			lj.Type = "transit"
			lj.RouteShortName = leg.RouteShortName
			lj.RouteLongName = leg.RouteLongName
			lj.TransitAgency = leg.AgencyID
			lj.Headsign = leg.Headsign
			lj.TripID = leg.TripID
			lj.RouteShape = leg.Polyline
		} else {
			lj.Type = "transfer"
			lj.RouteShape = leg.Polyline
		}
		legs[i] = lj
	}

	var ij itineraryJSON
	ij.Legs = legs
	if len(legs) > 0 {
		first, last := legs[0], legs[len(legs)-1]
		ij.StartLocation = first.Start
		ij.EndLocation = last.End
		ij.StartTimeMs = first.StartTimeMs
		ij.EndTimeMs = last.EndTimeMs
	}
	return ij
}
