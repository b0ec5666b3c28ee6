package transfergraph

import "github.com/ellenhp/solari-go/transfergraph/sphereindex"

// nearestNodeSearchRadii is the expanding-radius schedule used to
// resolve a stop or query coordinate to its closest pedestrian-graph
// node. Most stops sit within a block of a road node; a few (ferry
// terminals, stops on private campuses) need a wider net.
var nearestNodeSearchRadii = []float64{100, 500, 2000, 10000, 50000}

// nearestRoadNode finds the closest indexed road node to (lat, lon),
// expanding the search radius until something is found or the
// schedule is exhausted.
func nearestRoadNode(idx *sphereindex.Index, lat, lon float64) (NodeID, bool) {
	if idx.Len() == 0 {
		return 0, false
	}
	for _, radius := range nearestNodeSearchRadii {
		neighbors := idx.Query(lat, lon, radius)
		if len(neighbors) > 0 {
			return NodeID(neighbors[0].StopIndex), true
		}
	}
	return 0, false
}
