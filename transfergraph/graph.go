package transfergraph

// Package transfergraph implements C6: the precomputed walking-transfer
// index (spec.md §4.6). It consumes a weighted pedestrian graph built
// from an external road-network tile store — that reader is explicitly
// out of scope per spec.md §2 ("the third-party road-network tile
// reader, whose only contract is 'given a tile directory, produce a
// weighted pedestrian graph'") — contracts it for fast point-to-point
// queries, and for every stop within range of every other stop,
// persists a Transfer into the compiled timetable.

// NodeID identifies a vertex in the pedestrian graph: an intersection
// or other walkable point in the road network, not a GTFS stop.
type NodeID int32

// Node is a road-network vertex's position.
type Node struct {
	Lat, Lon float64
}

// Edge is a directed, weighted arc of the pedestrian graph. Seconds is
// the walking traversal time; spec.md §4.6 step 1 derives it from edge
// length at a fixed walking speed (≈1.4 m/s), but that conversion
// belongs to the tile reader, not this package.
type Edge struct {
	To      NodeID
	Seconds float64
}

// Graph is a weighted, directed pedestrian graph, as produced by a
// TileReader. It is mutable only during construction; Build treats it
// as read-only once contracted.
type Graph struct {
	Nodes []Node
	out   [][]Edge
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// AddNode appends a vertex and returns its ID.
func (g *Graph) AddNode(lat, lon float64) NodeID {
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{Lat: lat, Lon: lon})
	g.out = append(g.out, nil)
	return id
}

// AddEdge adds a directed arc from -> to. Pedestrian paths are usually
// bidirectional; callers that know an edge is walkable both ways
// should call AddEdge twice, once per direction.
func (g *Graph) AddEdge(from, to NodeID, seconds float64) {
	g.out[from] = append(g.out[from], Edge{To: to, Seconds: seconds})
}

// NumNodes reports the vertex count.
func (g *Graph) NumNodes() int {
	return len(g.Nodes)
}

// Neighbors returns the outgoing edges of n.
func (g *Graph) Neighbors(n NodeID) []Edge {
	return g.out[n]
}

// TileReader is the external collaborator spec.md §2 and §6 describe
// and place out of scope: given a tile directory, produce a weighted
// pedestrian graph. transfergraph depends only on this interface, not
// on any concrete tile format.
type TileReader interface {
	BuildPedestrianGraph(tileDir string) (*Graph, error)
}
