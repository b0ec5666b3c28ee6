package transfergraph

import "container/heap"

// dijkstraEntry is one frontier node. index is heap.Interface
// bookkeeping, mirroring the priority-queue pattern other graph-search
// code in the corpus uses for its A* open set.
type dijkstraEntry struct {
	node     NodeID
	distance float64
	index    int
}

type dijkstraQueue []*dijkstraEntry

func (q dijkstraQueue) Len() int            { return len(q) }
func (q dijkstraQueue) Less(i, j int) bool  { return q[i].distance < q[j].distance }
func (q dijkstraQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].index = i; q[j].index = j }
func (q *dijkstraQueue) Push(x interface{}) {
	e := x.(*dijkstraEntry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *dijkstraQueue) Pop() interface{} {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}

// neighborFunc abstracts the edge set a Dijkstra run should expand
// from a node, so witnessExists (the live contraction adjacency,
// excluding already-contracted nodes) and the CH up/down queries (edges restricted to
// higher-ranked neighbors) can share one implementation.
type neighborFunc func(NodeID) []Edge

// dijkstraLimited runs Dijkstra from source until every node within
// maxDistance (or maxSettled nodes) has its shortest distance fixed,
// returning the distance map. skip, if non-nil, excludes a node from
// the search entirely (used by witness search to route around the
// node being contracted).
func dijkstraLimited(numNodes int, source NodeID, neighbors neighborFunc, skip func(NodeID) bool, maxDistance float64, maxSettled int) map[NodeID]float64 {
	dist := make(map[NodeID]float64, maxSettled)
	settled := make(map[NodeID]bool, maxSettled)

	pq := &dijkstraQueue{}
	heap.Init(pq)
	heap.Push(pq, &dijkstraEntry{node: source, distance: 0})
	dist[source] = 0

	for pq.Len() > 0 {
		if len(settled) >= maxSettled {
			break
		}
		cur := heap.Pop(pq).(*dijkstraEntry)
		if settled[cur.node] {
			continue
		}
		if cur.distance > maxDistance {
			break
		}
		settled[cur.node] = true

		for _, e := range neighbors(cur.node) {
			if skip != nil && skip(e.To) {
				continue
			}
			nd := cur.distance + e.Seconds
			if nd > maxDistance {
				continue
			}
			if existing, ok := dist[e.To]; !ok || nd < existing {
				dist[e.To] = nd
				heap.Push(pq, &dijkstraEntry{node: e.To, distance: nd})
			}
		}
	}
	return dist
}
