package geo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHaversineDistanceZero(t *testing.T) {
	d := HaversineDistance(47.6062, -122.3321, 47.6062, -122.3321)
	require.InDelta(t, 0, d, 0.0001)
}

func TestHaversineDistanceKnownPoints(t *testing.T) {
	// Seattle to Portland is roughly 233km as the crow flies.
	d := HaversineDistance(47.6062, -122.3321, 45.5152, -122.6784)
	require.InDelta(t, 233, d, 10)
}
