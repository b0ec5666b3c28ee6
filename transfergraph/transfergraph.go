package transfergraph

import (
	"github.com/golang/geo/s2"

	"github.com/ellenhp/solari-go/timetable"
)

// PopulateSphereCoords fills in each stop's precomputed unit-sphere
// coordinates (spec.md §3 Stop: "optional precomputed unit-sphere
// coordinates for fast distance"). Run once after concatenation,
// before Build, so the compiled Stop records carry them. Build's own
// sphere index and the router's access/egress resolution (C7) work
// from lat/lon and do not read these fields.
func PopulateSphereCoords(tt *timetable.Timetable) {
	for i := range tt.Stops {
		pt := s2.PointFromLatLng(s2.LatLngFromDegrees(tt.Stops[i].Lat, tt.Stops[i].Lon))
		tt.Stops[i].SphereX = pt.X
		tt.Stops[i].SphereY = pt.Y
		tt.Stops[i].SphereZ = pt.Z
	}
}
