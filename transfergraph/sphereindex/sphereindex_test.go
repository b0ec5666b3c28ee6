package sphereindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryFindsNearbyStops(t *testing.T) {
	idx := New()
	idx.Insert(0, 47.6062, -122.3321) // downtown Seattle
	idx.Insert(1, 47.6092, -122.3321) // ~330m north
	idx.Insert(2, 48.0, -122.3321)    // far away

	neighbors := idx.Query(47.6062, -122.3321, 500)
	require.Len(t, neighbors, 2)
	assert.Equal(t, int32(0), neighbors[0].StopIndex)
	assert.InDelta(t, 0, neighbors[0].Meters, 1)
	assert.Equal(t, int32(1), neighbors[1].StopIndex)
	assert.InDelta(t, 333, neighbors[1].Meters, 10)
}

func TestQueryExcludesOutOfRadius(t *testing.T) {
	idx := New()
	idx.Insert(0, 47.6062, -122.3321)
	idx.Insert(1, 48.0, -122.3321)

	neighbors := idx.Query(47.6062, -122.3321, 500)
	assert.Len(t, neighbors, 1)
}

func TestLenReflectsInsertedCount(t *testing.T) {
	idx := New()
	idx.Insert(0, 1, 1)
	idx.Insert(1, 2, 2)
	assert.Equal(t, 2, idx.Len())
}
