package transfergraph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ellenhp/solari-go/timetable"
)

func TestPopulateSphereCoordsSetsUnitVector(t *testing.T) {
	tt := &timetable.Timetable{Stops: []timetable.Stop{
		{ID: "a", Lat: 47.6062, Lon: -122.3321},
	}}
	PopulateSphereCoords(tt)

	s := tt.Stops[0]
	lengthSq := s.SphereX*s.SphereX + s.SphereY*s.SphereY + s.SphereZ*s.SphereZ
	assert.InDelta(t, 1.0, lengthSq, 0.0001)
}
