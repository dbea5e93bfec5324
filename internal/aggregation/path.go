package aggregation

import "github.com/jengzang/coverage-backend-go/internal/models"

// pathFold accumulates the traversal edges of one trip. Each step is a resolved
// record; an edge is emitted whenever the area changes.
type pathFold struct {
	tripID   int64
	last     *int64
	previous *int64
	bearing  float32 // last known heading, zero until one is seen
	edges    []models.AreaPath
}

func (f *pathFold) step(areaID int64, bearing float32) {
	if f.last != nil && *f.last != areaID {
		f.edges = append(f.edges, models.AreaPath{
			AreaID:         *f.last,
			NextAreaID:     areaID,
			PreviousAreaID: f.previous,
			Bearing:        f.bearing,
			TripID:         f.tripID,
		})
		f.previous = f.last
	}

	id := areaID
	f.last = &id
	// Zero is not a heading.
	if bearing > 0 {
		f.bearing = bearing
	}
}
