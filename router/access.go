package router

import (
	"sort"

	"github.com/ellenhp/solari-go/transfergraph"
)

// roadSnapRadiusMeters bounds how far a query coordinate or a stop may
// sit from the nearest road-graph node before access/egress resolution
// gives up on it. Walking-scale pedestrian graphs built from real tile
// data place a node every few tens of meters at most; a few hundred
// meters is generous slack for a coarse tile source.
const roadSnapRadiusMeters = 500

// AccessCandidate is one stop reachable from a street endpoint
// (origin or destination), with its resolved walking time.
type AccessCandidate struct {
	StopIndex  int32
	WalkSecond int
}

// resolveAccess finds the best-by-time stops near (lat, lon), per
// spec.md §4.7 "Access resolution": query the sphere index for stops
// within maxMeters and rank them by walking time.
func (r *Router) resolveAccess(lat, lon, maxMeters float64, limit int) []AccessCandidate {
	return r.resolveStreetEndpoint(lat, lon, maxMeters, limit)
}

// resolveEgress is access resolution run for the destination.
func (r *Router) resolveEgress(lat, lon, maxMeters float64, limit int) []AccessCandidate {
	return r.resolveStreetEndpoint(lat, lon, maxMeters, limit)
}

// resolveStreetEndpoint implements spec.md §4.7 "Access resolution":
// for each stop within maxMeters of (lat, lon), use the contracted
// graph to compute a walking time from the endpoint's nearest road
// node to the stop's nearest road node, keeping the limit best by
// time. A stop whose road node can't be reached within maxMeters'
// straight-line-equivalent walk time (CH query returns !ok), or that
// the endpoint itself can't snap to a road node near, falls back to
// the straight-line estimate rather than being dropped outright —
// sparse or gapped tile data shouldn't silently remove an otherwise
// reachable stop.
func (r *Router) resolveStreetEndpoint(lat, lon, maxMeters float64, limit int) []AccessCandidate {
	nearStops := r.stopIdx.Query(lat, lon, maxMeters)
	if len(nearStops) == 0 {
		return nil
	}

	maxWalkSeconds := maxMeters / walkingSpeedMetersPerSecond
	endpointNode, hasEndpointNode := r.nearestRoadNode(lat, lon)

	out := make([]AccessCandidate, 0, len(nearStops))
	for _, n := range nearStops {
		seconds := n.Meters / walkingSpeedMetersPerSecond

		if hasEndpointNode {
			s := r.tt.Stop(n.StopIndex)
			if stopNode, ok := r.nearestRoadNode(s.Lat, s.Lon); ok {
				if walked, ok := r.ch.Query(endpointNode, stopNode, maxWalkSeconds); ok {
					seconds = walked
				}
			}
		}

		out = append(out, AccessCandidate{StopIndex: n.StopIndex, WalkSecond: int(seconds)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].WalkSecond < out[j].WalkSecond })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// nearestRoadNode returns the closest road-graph node to (lat, lon)
// within roadSnapRadiusMeters.
func (r *Router) nearestRoadNode(lat, lon float64) (transfergraph.NodeID, bool) {
	neighbors := r.roadIdx.Query(lat, lon, roadSnapRadiusMeters)
	if len(neighbors) == 0 {
		return 0, false
	}
	return transfergraph.NodeID(neighbors[0].StopIndex), true
}

// walkingSpeedMetersPerSecond matches the speed the transfer-graph
// build assumes (spec.md §4.6 step 1: "≈1.4 m/s"), used both as the
// straight-line fallback's conversion and to bound the CH query by
// maxMeters' time-equivalent.
const walkingSpeedMetersPerSecond = 1.4
