package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAccessFindsNearestStopFirst(t *testing.T) {
	r := buildFixtureRouter(t)

	candidates := r.resolveAccess(fixtureStops[0].lat, fixtureStops[0].lon, DefaultMaxAccessEgressMeters, DefaultMaxAccessStops)
	require.NotEmpty(t, candidates)
	assert.Equal(t, int32(0), candidates[0].StopIndex)
	assert.Equal(t, 0, candidates[0].WalkSecond)

	// candidates must be sorted ascending by walk time.
	for i := 1; i < len(candidates); i++ {
		assert.LessOrEqual(t, candidates[i-1].WalkSecond, candidates[i].WalkSecond)
	}
}

func TestResolveAccessEmptyWhenNothingNearby(t *testing.T) {
	r := buildFixtureRouter(t)

	candidates := r.resolveAccess(10.0, 10.0, DefaultMaxAccessEgressMeters, DefaultMaxAccessStops)
	assert.Empty(t, candidates)
}

func TestResolveAccessRespectsLimit(t *testing.T) {
	r := buildFixtureRouter(t)

	// All three stops sit within a generous radius of stop b (the
	// middle one); a limit of 1 must keep only the closest.
	candidates := r.resolveAccess(fixtureStops[1].lat, fixtureStops[1].lon, 5000, 1)
	require.Len(t, candidates, 1)
	assert.Equal(t, int32(1), candidates[0].StopIndex)
}

func TestNearestRoadNodeSnapsToFixtureNodes(t *testing.T) {
	r := buildFixtureRouter(t)

	node, ok := r.nearestRoadNode(fixtureStops[1].lat, fixtureStops[1].lon)
	require.True(t, ok)
	assert.Equal(t, int32(1), int32(node))
}

func TestNearestRoadNodeFailsFarAway(t *testing.T) {
	r := buildFixtureRouter(t)

	_, ok := r.nearestRoadNode(-33.0, 151.0) // Sydney; nowhere near the fixture
	assert.False(t, ok)
}
