package transfergraph

import (
	"container/heap"
	"sort"
)

// witnessSearchSettleLimit bounds how many nodes the witness search
// explores when deciding whether a shortcut is necessary. A full
// unbounded Dijkstra per contraction is the textbook algorithm but is
// wasteful for local pedestrian graphs where useful witness paths are
// always short; capping the settle count keeps contraction near-linear
// without changing correctness for walking-scale graphs (spec.md's
// T_max of 20 minutes means no witness path worth finding is long).
const witnessSearchSettleLimit = 200

// CHGraph is a contracted hierarchy over a Graph (spec.md §4.6 step 2,
// §9 "contracted_graph.bin"): a node order plus shortcut edges, such
// that bidirectional Dijkstra restricted to "upward" edges (toward
// higher-ranked nodes) finds exact shortest paths while visiting far
// fewer vertices than a plain search over the base graph.
type CHGraph struct {
	base  *Graph
	rank  []int32 // rank[n]: contraction order, 0 = contracted first
	upOut [][]Edge
	upIn  [][]Edge
}

type chEdgeEntry struct {
	weight float64
	live   bool
}

// BuildCH contracts g, producing a CHGraph ready for Query. Uses the
// standard edge-difference heuristic (spec.md §4.6 step 2: "iteratively
// remove vertices in order of 'edge difference' heuristic, adding
// shortcut edges that preserve shortest-path distances"): at each step
// contract the node whose removal would add the fewest net edges,
// recomputing neighbors' priorities lazily rather than eagerly
// maintaining a fully accurate heap (a common, simpler approximation:
// priorities are refreshed only when a node is popped, and re-pushed
// if stale).
func BuildCH(g *Graph) *CHGraph {
	n := g.NumNodes()
	live := make([]map[NodeID]float64, n) // adjacency during contraction, symmetric
	for v := 0; v < n; v++ {
		live[v] = make(map[NodeID]float64)
	}
	for v := 0; v < n; v++ {
		for _, e := range g.out[v] {
			if w, ok := live[v][e.To]; !ok || e.Seconds < w {
				live[v][e.To] = e.Seconds
			}
			if w, ok := live[e.To][NodeID(v)]; !ok || e.Seconds < w {
				live[e.To][NodeID(v)] = e.Seconds
			}
		}
	}

	contracted := make([]bool, n)
	rank := make([]int32, n)
	upOut := make([][]Edge, n)
	upIn := make([][]Edge, n)

	priority := func(v NodeID) int {
		return edgeDifference(v, live, contracted)
	}

	pq := &chPriorityQueue{}
	heap.Init(pq)
	for v := 0; v < n; v++ {
		heap.Push(pq, &chPriorityEntry{node: NodeID(v), priority: priority(NodeID(v))})
	}

	order := 0
	for pq.Len() > 0 {
		entry := heap.Pop(pq).(*chPriorityEntry)
		v := entry.node
		if contracted[v] {
			continue
		}
		fresh := priority(v)
		if fresh > entry.priority {
			entry.priority = fresh
			heap.Push(pq, entry)
			continue
		}

		// v's remaining neighbors are all contracted later, so they rank
		// higher: record these as v's upward edges before contractNode
		// clears live[v].
		for u, w := range live[v] {
			if contracted[u] {
				continue
			}
			upOut[v] = append(upOut[v], Edge{To: u, Seconds: w})
			upIn[v] = append(upIn[v], Edge{To: u, Seconds: w})
		}

		contractNode(v, live, contracted)
		contracted[v] = true
		rank[v] = int32(order)
		order++
	}

	return &CHGraph{base: g, rank: rank, upOut: upOut, upIn: upIn}
}

// edgeDifference estimates the number of shortcuts contracting v would
// add minus the edges it would remove, without mutating state.
func edgeDifference(v NodeID, live []map[NodeID]float64, contracted []bool) int {
	neighbors := activeNeighbors(v, live, contracted)
	added := 0
	for i, u := range neighbors {
		for j, w := range neighbors {
			if i == j {
				continue
			}
			viaV := live[v][u] + live[v][w]
			if !witnessExists(u, w, viaV, v, live, contracted) {
				added++
			}
		}
	}
	removed := len(neighbors) * 2
	return added - removed
}

func activeNeighbors(v NodeID, live []map[NodeID]float64, contracted []bool) []NodeID {
	var out []NodeID
	for u := range live[v] {
		if !contracted[u] {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// witnessExists reports whether some path from u to w avoiding v costs
// no more than viaV, making a shortcut through v redundant.
func witnessExists(u, w NodeID, viaV float64, v NodeID, live []map[NodeID]float64, contracted []bool) bool {
	neighbors := func(n NodeID) []Edge {
		var edges []Edge
		for to, weight := range live[n] {
			if !contracted[to] {
				edges = append(edges, Edge{To: to, Seconds: weight})
			}
		}
		return edges
	}
	skip := func(n NodeID) bool { return n == v }
	dist := dijkstraLimited(len(live), u, neighbors, skip, viaV, witnessSearchSettleLimit)
	d, ok := dist[w]
	return ok && d <= viaV
}

// contractNode removes v from the live adjacency, inserting shortcut
// edges between its still-active neighbors wherever no witness path
// makes the shortcut redundant.
func contractNode(v NodeID, live []map[NodeID]float64, contracted []bool) {
	neighbors := activeNeighbors(v, live, contracted)
	for _, u := range neighbors {
		for _, w := range neighbors {
			if u == w {
				continue
			}
			viaV := live[v][u] + live[v][w]
			if witnessExists(u, w, viaV, v, live, contracted) {
				continue
			}
			if existing, ok := live[u][w]; !ok || viaV < existing {
				live[u][w] = viaV
			}
		}
	}
	for u := range live[v] {
		delete(live[u], v)
	}
	live[v] = nil
}

type chPriorityEntry struct {
	node     NodeID
	priority int
	index    int
}

type chPriorityQueue []*chPriorityEntry

func (q chPriorityQueue) Len() int            { return len(q) }
func (q chPriorityQueue) Less(i, j int) bool  { return q[i].priority < q[j].priority }
func (q chPriorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *chPriorityQueue) Push(x interface{}) {
	e := x.(*chPriorityEntry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *chPriorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// Base returns the uncontracted graph the hierarchy was built from, so
// callers outside this package (e.g. the router's access/egress
// resolution) can build their own spatial index over road-node
// coordinates without this package needing to depend on sphereindex
// itself.
func (ch *CHGraph) Base() *Graph {
	return ch.base
}

// Query returns the shortest walking time between two road nodes, or
// ok=false if they're farther apart than maxSeconds (used to enforce
// T_max, spec.md §4.6 step 4). Runs the standard CH bidirectional
// search: forward from `from` over upOut edges, backward from `to`
// over upIn edges, meeting in the middle.
func (ch *CHGraph) Query(from, to NodeID, maxSeconds float64) (float64, bool) {
	if from == to {
		return 0, true
	}
	n := len(ch.upOut)
	distF := dijkstraLimited(n, from, func(v NodeID) []Edge { return ch.upOut[v] }, nil, maxSeconds, n)
	distB := dijkstraLimited(n, to, func(v NodeID) []Edge { return ch.upIn[v] }, nil, maxSeconds, n)

	best := maxSeconds
	found := false
	for node, df := range distF {
		if db, ok := distB[node]; ok {
			total := df + db
			if total <= best {
				best = total
				found = true
			}
		}
	}
	return best, found
}
