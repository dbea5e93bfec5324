package spatial

import (
	"math"

	"github.com/golang/geo/s2"
)

// Point represents a 2D point with latitude and longitude
type Point struct {
	Lat float64
	Lon float64
}

// PathLength calculates the total length of a path (sequence of points) in meters
func PathLength(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(points); i++ {
		totalDist += HaversineDistance(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}

	return totalDist
}

// Segmentize densifies a path so that no two consecutive points are more than
// maxSegment meters apart. Original vertices are kept and new ones are placed
// evenly along each great-circle edge.
func Segmentize(points []Point, maxSegment float64) []Point {
	if len(points) < 2 || maxSegment <= 0 {
		return points
	}

	out := make([]Point, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points); i++ {
		from, to := points[i-1], points[i]
		d := HaversineDistance(from.Lat, from.Lon, to.Lat, to.Lon)
		n := int(math.Ceil(d / maxSegment))

		if n > 1 {
			a := s2.PointFromLatLng(s2.LatLngFromDegrees(from.Lat, from.Lon))
			b := s2.PointFromLatLng(s2.LatLngFromDegrees(to.Lat, to.Lon))
			for k := 1; k < n; k++ {
				ll := s2.LatLngFromPoint(s2.Interpolate(float64(k)/float64(n), a, b))
				out = append(out, Point{Lat: ll.Lat.Degrees(), Lon: ll.Lng.Degrees()})
			}
		}
		out = append(out, to)
	}

	return out
}
