package spatial

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// Constants
const (
	EarthRadiusMeters = 6371000.0 // Earth's mean radius in meters
)

// boundaryToleranceMeters absorbs float error so a fix computed to lie exactly
// on a radius is treated as inside it.
const boundaryToleranceMeters = 1e-3

// HaversineDistance calculates the great-circle distance between two points in meters
func HaversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lon1)
	p2 := s2.LatLngFromDegrees(lat2, lon2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Within reports whether two points are at most radius meters apart. The boundary is inclusive.
func Within(lat1, lon1, lat2, lon2, radius float64) bool {
	return HaversineDistance(lat1, lon1, lat2, lon2) <= radius+boundaryToleranceMeters
}

// DestinationPoint calculates the destination point given a start point, bearing, and distance
// bearing: degrees (0-360), distance: meters
func DestinationPoint(lat, lon, bearing, distance float64) (float64, float64) {
	p := s2.LatLngFromDegrees(lat, lon)
	bearingRad := bearing * math.Pi / 180
	angularDistance := distance / EarthRadiusMeters

	latRad := p.Lat.Radians()
	lonRad := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(latRad)*math.Cos(angularDistance) +
		math.Cos(latRad)*math.Sin(angularDistance)*math.Cos(bearingRad))

	lon2 := lonRad + math.Atan2(
		math.Sin(bearingRad)*math.Sin(angularDistance)*math.Cos(latRad),
		math.Cos(angularDistance)-math.Sin(latRad)*math.Sin(lat2))

	return lat2 * 180 / math.Pi, lon2 * 180 / math.Pi
}

// BoundingBox returns the lat/lon box that contains the disk of radius meters
// around (lat, lon). Returns (minLat, minLon, maxLat, maxLon).
func BoundingBox(lat, lon, radius float64) (float64, float64, float64, float64) {
	rect := s2.RectFromLatLng(s2.LatLngFromDegrees(lat, lon))
	angle := s1.Angle((radius + 1) / EarthRadiusMeters)
	rect = rect.ExpandedByDistance(angle)
	return rect.Lo().Lat.Degrees(), rect.Lo().Lng.Degrees(), rect.Hi().Lat.Degrees(), rect.Hi().Lng.Degrees()
}
