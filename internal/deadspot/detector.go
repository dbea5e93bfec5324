// Package deadspot walks a route and reports the stretches without acceptable coverage.
package deadspot

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/spatial"
)

const (
	// SegmentMeters is the maximum spacing of the vertices probed along a route.
	SegmentMeters = 10.0
	// ThresholdMeters is how far from a vertex an area may be to cover it.
	ThresholdMeters = 50.0
)

// AreaLocator finds the area covering a point.
type AreaLocator interface {
	NearestWithin(ctx context.Context, lat, lon, radius float64) (*models.Area, error)
}

// PerformanceSource scores an area, optionally restricted to some trips.
type PerformanceSource interface {
	Performance(ctx context.Context, areaID int64, tripIDs []int64) (float64, error)
}

// Detector finds dead spots along routes.
type Detector struct {
	areas  AreaLocator
	perf   PerformanceSource
	router RouteProvider
	log    logrus.FieldLogger
}

// NewDetector creates a detector. router may be nil when only polylines are queried.
func NewDetector(areas AreaLocator, perf PerformanceSource, router RouteProvider, log logrus.FieldLogger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{areas: areas, perf: perf, router: router, log: log}
}

// FindDeadSpots segments route and walks its vertices. A vertex is covered when an
// area lies within ThresholdMeters and scores at least minPerformance. Every run of
// uncovered vertices between two covered ones yields a closed gap measured between
// the two covering areas. A run still open at the end of the route yields an open
// gap measured from the last covering area to the final vertex. Uncovered vertices
// before the first covered one have no anchor and are not reported.
func (d *Detector) FindDeadSpots(ctx context.Context, route []spatial.Point, tripIDs []int64, minPerformance float64) ([]models.GapReport, error) {
	start := time.Now()
	vertices := spatial.Segmentize(route, SegmentMeters)

	var (
		gaps      = []models.GapReport{}
		inGap     bool
		lastValid *models.Area
		cache     = make(map[int64]float64)
	)
	for _, v := range vertices {
		area, err := d.areas.NearestWithin(ctx, v.Lat, v.Lon, ThresholdMeters)
		if err != nil {
			return nil, fmt.Errorf("locate area at (%f, %f): %w", v.Lat, v.Lon, err)
		}
		if area == nil {
			inGap = true
			continue
		}

		perf, ok := cache[area.ID]
		if !ok {
			perf, err = d.perf.Performance(ctx, area.ID, tripIDs)
			if err != nil {
				return nil, fmt.Errorf("score area %d: %w", area.ID, err)
			}
			cache[area.ID] = perf
		}
		if perf < minPerformance {
			inGap = true
			continue
		}

		if inGap && lastValid != nil {
			to := *area
			gaps = append(gaps, models.GapReport{
				FromArea:     *lastValid,
				ToArea:       &to,
				LengthMeters: spatial.HaversineDistance(lastValid.Latitude, lastValid.Longitude, area.Latitude, area.Longitude),
			})
		}
		inGap = false
		lastValid = area
	}

	if inGap && lastValid != nil && len(vertices) > 0 {
		end := vertices[len(vertices)-1]
		gaps = append(gaps, models.GapReport{
			FromArea:     *lastValid,
			LengthMeters: spatial.HaversineDistance(lastValid.Latitude, lastValid.Longitude, end.Lat, end.Lon),
			Open:         true,
		})
	}

	d.log.WithFields(logrus.Fields{
		"vertices": len(vertices),
		"areas":    len(cache),
		"gaps":     len(gaps),
		"took":     time.Since(start),
	}).Debug("walked route")
	return gaps, nil
}

// FindOnPolyline decodes an encoded polyline (precision 5) and walks it.
func (d *Detector) FindOnPolyline(ctx context.Context, encoded string, tripIDs []int64, minPerformance float64) ([]models.GapReport, error) {
	route, err := DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	return d.FindDeadSpots(ctx, route, tripIDs, minPerformance)
}

// FindBetween asks the route provider for a route and walks it. Provider failures
// are returned wrapped in ErrRouteUnavailable.
func (d *Detector) FindBetween(ctx context.Context, origin, destination spatial.Point, tripIDs []int64, minPerformance float64) ([]models.GapReport, error) {
	if d.router == nil {
		return nil, fmt.Errorf("%w: no route provider configured", ErrRouteUnavailable)
	}
	route, err := d.router.Route(ctx, origin, destination)
	if err != nil {
		return nil, err
	}
	return d.FindDeadSpots(ctx, route, tripIDs, minPerformance)
}
