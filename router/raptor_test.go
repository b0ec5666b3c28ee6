package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaptorStateDirectRide(t *testing.T) {
	r := buildFixtureRouter(t)

	state := newRaptorState(r.tt, 0, DefaultMaxRounds)
	state.seedAccess([]AccessCandidate{{StopIndex: 0, WalkSecond: 0}}, 0)
	state.run()

	assert.Equal(t, 0, state.bestArrival[0])
	assert.Equal(t, 300, state.bestArrival[1])
	assert.Equal(t, 600, state.bestArrival[2])

	pred := state.pred[1][2]
	require.Equal(t, predTransit, pred.kind)
	assert.Equal(t, int32(0), pred.fromStop)
	assert.Equal(t, int32(0), pred.tripIdx)
}

func TestRaptorStateUnreachedStopStaysInfinite(t *testing.T) {
	r := buildFixtureRouter(t)

	state := newRaptorState(r.tt, 0, DefaultMaxRounds)
	// Seed access far from the pattern's first stop, at stop c instead
	// of stop a, so the pattern never boards toward stop a.
	state.seedAccess([]AccessCandidate{{StopIndex: 2, WalkSecond: 0}}, 0)
	state.run()

	assert.Equal(t, inf, state.bestArrival[0])
}

func TestRaptorStateNoServiceOnUnscheduledDay(t *testing.T) {
	r := buildFixtureRouter(t)

	// The fixture's trip only runs on day 0.
	state := newRaptorState(r.tt, 1, DefaultMaxRounds)
	state.seedAccess([]AccessCandidate{{StopIndex: 0, WalkSecond: 0}}, 0)
	state.run()

	assert.Equal(t, inf, state.bestArrival[1])
	assert.Equal(t, inf, state.bestArrival[2])
}

func TestFindEarliestBoardableSkipsDepartedTrips(t *testing.T) {
	r := buildFixtureRouter(t)
	trips := r.tt.PatternTrips(0)

	idx := findEarliestBoardable(r.tt, trips, 0, 0)
	assert.Equal(t, 0, idx)

	idx = findEarliestBoardable(r.tt, trips, 0, 1)
	assert.Equal(t, -1, idx)
}
