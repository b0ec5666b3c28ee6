package transfergraph

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ellenhp/solari-go/timetable"
	"github.com/ellenhp/solari-go/transfergraph/sphereindex"
)

// Config bundles C6's build-time parameters. spec.md §9 open question
// #2 flags that the source hardcodes these instead of exposing them as
// configuration; here they're plain fields so cmd/solaribuild can
// surface them as flags.
type Config struct {
	// MaxRadiusMeters is R_max: stops farther apart than this are never
	// considered for a transfer. Default 1500m (spec.md §4.6 step 4).
	MaxRadiusMeters float64
	// MaxWalkSeconds is T_max: the contracted-graph walking time above
	// which a candidate transfer is dropped. Default 1200s / 20min.
	MaxWalkSeconds float64
	// NumWorkers bounds how many per-stop radius queries run
	// concurrently (spec.md §5: "the transfer-graph build parallelizes
	// the per-stop radius queries across workers"). 0 means unbounded.
	NumWorkers int
}

func DefaultConfig() Config {
	return Config{MaxRadiusMeters: 1500, MaxWalkSeconds: 1200}
}

// Build computes, for every stop, the list of nearby stops reachable
// on foot within cfg.MaxRadiusMeters and cfg.MaxWalkSeconds, using a
// contracted pedestrian graph (spec.md §4.6 steps 3-4). The result is
// indexed by stop index, matching timetable.Timetable.Transfers.
func Build(stops []timetable.Stop, graph *Graph, cfg Config) ([][]timetable.Transfer, error) {
	ch := BuildCH(graph)

	roadIdx := sphereindex.New()
	for i, n := range graph.Nodes {
		roadIdx.Insert(int32(i), n.Lat, n.Lon)
	}

	nearestNode := make([]NodeID, len(stops))
	hasRoadNode := make([]bool, len(stops))
	for i, s := range stops {
		node, ok := nearestRoadNode(roadIdx, s.Lat, s.Lon)
		nearestNode[i] = node
		hasRoadNode[i] = ok
	}

	stopIdx := sphereindex.New()
	for i, s := range stops {
		stopIdx.Insert(int32(i), s.Lat, s.Lon)
	}

	transfers := make([][]timetable.Transfer, len(stops))

	var g errgroup.Group
	if cfg.NumWorkers > 0 {
		g.SetLimit(cfg.NumWorkers)
	}
	for i := range stops {
		i := i
		g.Go(func() error {
			if !hasRoadNode[i] {
				return nil
			}
			candidates := stopIdx.Query(stops[i].Lat, stops[i].Lon, cfg.MaxRadiusMeters)
			out := make([]timetable.Transfer, 0, len(candidates))
			for _, c := range candidates {
				if c.StopIndex == int32(i) || !hasRoadNode[c.StopIndex] {
					continue
				}
				seconds, ok := ch.Query(nearestNode[i], nearestNode[c.StopIndex], cfg.MaxWalkSeconds)
				if !ok {
					continue
				}
				out = append(out, timetable.Transfer{
					ToStop:     c.StopIndex,
					WalkSecond: uint32(seconds),
				})
			}
			sort.Slice(out, func(a, b int) bool { return out[a].WalkSecond < out[b].WalkSecond })
			transfers[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return transfers, nil
}

// Attach installs computed transfers into tt, replacing the empty
// placeholder C3 leaves behind (spec.md §4.3).
func Attach(tt *timetable.Timetable, transfers [][]timetable.Transfer) {
	tt.Transfers = transfers
}
