package router

import "sort"

// egressCandidate is one (round, egress-stop) pairing under
// consideration during Pareto collection.
type egressCandidate struct {
	totalArrival int
	rounds       int
	stopIndex    int32
	egressWalk   int
}

// collectItineraries performs spec.md §4.7's "Egress & reconstruction"
// step: for every egress candidate and every round, compute the total
// arrival time, keep the Pareto-optimal (arrival, rounds) pairs, and
// reconstruct an Itinerary for each of up to maxItineraries of them.
func (rs *raptorState) collectItineraries(egress []AccessCandidate, maxItineraries int, dayOffset int) []Itinerary {
	var candidates []egressCandidate
	for k := 0; k <= rs.maxRounds; k++ {
		for _, e := range egress {
			arrival := rs.roundArrival[k][e.StopIndex]
			if arrival >= inf {
				continue
			}
			candidates = append(candidates, egressCandidate{
				totalArrival: arrival + e.WalkSecond,
				rounds:       k,
				stopIndex:    e.StopIndex,
				egressWalk:   e.WalkSecond,
			})
		}
	}

	// Pareto filter: a candidate is dominated if another arrives no
	// later using no more rounds, strictly better in at least one.
	pareto := candidates[:0:0]
	for _, c := range candidates {
		dominated := false
		for _, o := range candidates {
			if o.totalArrival <= c.totalArrival && o.rounds <= c.rounds &&
				(o.totalArrival < c.totalArrival || o.rounds < c.rounds) {
				dominated = true
				break
			}
		}
		if !dominated {
			pareto = append(pareto, c)
		}
	}

	sort.Slice(pareto, func(i, j int) bool { return pareto[i].totalArrival < pareto[j].totalArrival })
	if len(pareto) > maxItineraries {
		pareto = pareto[:maxItineraries]
	}

	itineraries := make([]Itinerary, 0, len(pareto))
	for _, c := range pareto {
		itineraries = append(itineraries, rs.reconstruct(c.rounds, c.stopIndex, c.egressWalk, dayOffset))
	}
	return itineraries
}

// reconstruct walks the predecessor chain backward from (rounds,
// egressStop) to an access leg, then appends the egress leg. Access
// and egress legs carry FromStop/ToStop of -1 on the street-endpoint
// side; Router.Route fills in the actual origin/destination
// coordinates afterward, since raptorState doesn't know the query.
func (rs *raptorState) reconstruct(rounds int, egressStop int32, egressWalk int, dayOffset int) Itinerary {
	var legs []Leg

	cur := egressStop
	round := rounds
	for round >= 0 {
		p := rs.pred[round][cur]
		switch p.kind {
		case predAccess:
			arrival := rs.roundArrival[round][cur]
			legs = append(legs, Leg{
				Kind:        LegTransfer,
				FromStop:    -1,
				ToStop:      cur,
				StartSecond: arrival - p.walkSeconds,
				EndSecond:   arrival,
			})
			round = -1
		case predTransfer:
			arrival := rs.roundArrival[round][cur]
			legs = append(legs, Leg{
				Kind:        LegTransfer,
				FromStop:    p.fromStop,
				ToStop:      cur,
				StartSecond: arrival - p.walkSeconds,
				EndSecond:   arrival,
			})
			cur = p.fromStop
			// transfer relaxation happens within the same round as the
			// transit leg that fed it, so round is unchanged.
		case predTransit:
			arrival := rs.roundArrival[round][cur]
			departure := int(rs.tt.StopTimeAt(p.tripIdx, p.boardPos).Departure)
			pattern := rs.tt.Pattern(rs.tt.Trip(p.tripIdx).PatternID)
			trip := rs.tt.Trip(p.tripIdx)
			legs = append(legs, Leg{
				Kind:           LegTransit,
				FromStop:       p.fromStop,
				ToStop:         cur,
				StartSecond:    departure,
				EndSecond:      arrival,
				PatternID:      trip.PatternID,
				TripID:         p.tripIdx,
				BoardPosition:  p.boardPos,
				AlightPosition: p.alightPos,
				RouteShortName: pattern.ShortName,
				RouteLongName:  pattern.LongName,
				AgencyID:       pattern.AgencyID,
				Headsign:       trip.Headsign,
			})
			cur = p.fromStop
			round--
		default:
			round = -1
		}
	}

	reverseLegs(legs)

	// Egress leg: walk from the last transit/transfer stop to the
	// destination. Left with FromStop set and ToStop -1 so the caller
	// can fill in the destination coordinate.
	lastArrival := rs.roundArrival[rounds][egressStop]
	legs = append(legs, Leg{
		Kind:        LegTransfer,
		FromStop:    egressStop,
		ToStop:      -1,
		StartSecond: lastArrival,
		EndSecond:   lastArrival + egressWalk,
	})

	return Itinerary{Legs: legs, Rounds: rounds, DayOffset: dayOffset}
}

func reverseLegs(legs []Leg) {
	for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
		legs[i], legs[j] = legs[j], legs[i]
	}
}
