package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/deadspot"
	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/repository"
	"github.com/jengzang/coverage-backend-go/internal/scoring"
	"github.com/jengzang/coverage-backend-go/internal/spatial"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Repositories groups the stores the service reads
type Repositories struct {
	Areas        *repository.AreaRepository
	Measurements *repository.MeasurementRepository
	Paths        *repository.AreaPathRepository
}

// CoverageService answers the reporting queries
type CoverageService struct {
	areas        *repository.AreaRepository
	measurements *repository.MeasurementRepository
	paths        *repository.AreaPathRepository
	scorer       *scoring.Scorer
	detector     *deadspot.Detector
	log          logrus.FieldLogger
}

// NewCoverageService creates a new coverage service
func NewCoverageService(repos Repositories, scorer *scoring.Scorer, detector *deadspot.Detector, log logrus.FieldLogger) *CoverageService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &CoverageService{
		areas:        repos.Areas,
		measurements: repos.Measurements,
		paths:        repos.Paths,
		scorer:       scorer,
		detector:     detector,
		log:          log,
	}
}

// TripPath is the traversal of one trip through its areas
type TripPath struct {
	TripID       int64             `json:"tripId"`
	Edges        []models.AreaPath `json:"edges"`
	Areas        []models.Area     `json:"areas"`
	LengthMeters float64           `json:"lengthMeters"`
	Polyline     string            `json:"polyline"`
}

// DeadSpotResult is the outcome of a route query. Message explains an empty
// result caused by the route provider.
type DeadSpotResult struct {
	Gaps    []models.GapReport `json:"gaps"`
	Message string             `json:"message,omitempty"`
}

// Measurements returns the raw measurements matching filter
func (s *CoverageService) Measurements(ctx context.Context, filter models.MeasurementFilter) ([]models.Measurement, error) {
	rows, err := s.measurements.Query(ctx, filter)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Measurement{}
	}
	return rows, nil
}

// Trips lists every trip with its size and dominant network type
func (s *CoverageService) Trips(ctx context.Context) (models.TripsResponse, error) {
	trips, err := s.measurements.ListTrips(ctx)
	if err != nil {
		return models.TripsResponse{}, err
	}
	resp := models.TripsResponse{Trips: trips}
	for _, t := range trips {
		resp.Total += t.MeasurementCount
	}
	return resp, nil
}

// Areas returns every matching area with its quality aggregate
func (s *CoverageService) Areas(ctx context.Context, filter models.MeasurementFilter) ([]models.AreaReport, error) {
	return s.scorer.Areas(ctx, filter)
}

// Area returns the report of one area. Areas without matching measurements get
// the default aggregate.
func (s *CoverageService) Area(ctx context.Context, id int64, tripIDs []int64) (models.AreaReport, error) {
	area, err := s.areas.GetByID(ctx, id)
	if err != nil {
		return models.AreaReport{}, err
	}
	if area == nil {
		return models.AreaReport{}, fmt.Errorf("area %d: %w", id, ErrNotFound)
	}

	reports, err := s.scorer.Areas(ctx, models.MeasurementFilter{AreaID: &id, TripIDs: tripIDs})
	if err != nil {
		return models.AreaReport{}, err
	}
	if len(reports) == 1 {
		return reports[0], nil
	}
	return models.AreaReport{Area: *area, Data: models.NewAreaData()}, nil
}

// TripPath returns the areas one trip passed through in order
func (s *CoverageService) TripPath(ctx context.Context, tripID int64) (TripPath, error) {
	edges, err := s.paths.ByTrip(ctx, tripID)
	if err != nil {
		return TripPath{}, err
	}
	path := TripPath{TripID: tripID, Edges: edges, Areas: []models.Area{}}
	if len(edges) == 0 {
		path.Edges = []models.AreaPath{}
		return path, nil
	}

	sequence := make([]int64, 0, len(edges)+1)
	sequence = append(sequence, edges[0].AreaID)
	for _, e := range edges {
		sequence = append(sequence, e.NextAreaID)
	}
	byID, err := s.areas.GetByIDs(ctx, sequence)
	if err != nil {
		return TripPath{}, err
	}

	points := make([]spatial.Point, 0, len(sequence))
	for _, id := range sequence {
		a, ok := byID[id]
		if !ok {
			s.log.WithFields(logrus.Fields{"trip_id": tripID, "area_id": id}).Warn("path references missing area")
			continue
		}
		path.Areas = append(path.Areas, a)
		points = append(points, spatial.Point{Lat: a.Latitude, Lon: a.Longitude})
	}
	path.LengthMeters = spatial.PathLength(points)
	path.Polyline = deadspot.EncodePolyline(points)
	return path, nil
}

// Correlations returns the pairwise correlations of the area metrics
func (s *CoverageService) Correlations(ctx context.Context, filter models.MeasurementFilter) ([]models.Correlation, error) {
	return s.scorer.Correlations(ctx, filter)
}

// Distribution returns the value histogram of metric
func (s *CoverageService) Distribution(ctx context.Context, metric models.Metric, filter models.MeasurementFilter, bounds scoring.Range, minCount *int) (models.Distribution, error) {
	return s.scorer.Distribution(ctx, metric, filter, bounds, minCount)
}

// Series returns metric over the packets of one trip
func (s *CoverageService) Series(ctx context.Context, metric models.Metric, tripID int64, packets scoring.Range) (models.Series, error) {
	return s.scorer.Series(ctx, metric, tripID, packets)
}

// Relation returns y aggregated over the distinct values of x
func (s *CoverageService) Relation(ctx context.Context, kind string, x, y models.Metric, filter models.MeasurementFilter, bounds scoring.Range, minCount *int) (models.Relation, error) {
	return s.scorer.Relation(ctx, kind, x, y, filter, bounds, minCount)
}

// DeadSpotsBetween routes from origin to destination and reports its dead spots.
// A route provider failure yields an empty result with a message, not an error.
func (s *CoverageService) DeadSpotsBetween(ctx context.Context, origin, destination spatial.Point, tripIDs []int64, minPerformance float64) (DeadSpotResult, error) {
	gaps, err := s.detector.FindBetween(ctx, origin, destination, tripIDs, minPerformance)
	return s.deadSpotResult(gaps, err)
}

// DeadSpotsOnPolyline reports the dead spots along an encoded polyline.
func (s *CoverageService) DeadSpotsOnPolyline(ctx context.Context, encoded string, tripIDs []int64, minPerformance float64) (DeadSpotResult, error) {
	gaps, err := s.detector.FindOnPolyline(ctx, encoded, tripIDs, minPerformance)
	return s.deadSpotResult(gaps, err)
}

func (s *CoverageService) deadSpotResult(gaps []models.GapReport, err error) (DeadSpotResult, error) {
	if errors.Is(err, deadspot.ErrRouteUnavailable) {
		s.log.WithError(err).Warn("route provider unavailable")
		return DeadSpotResult{Gaps: []models.GapReport{}, Message: err.Error()}, nil
	}
	if err != nil {
		return DeadSpotResult{}, err
	}
	if gaps == nil {
		gaps = []models.GapReport{}
	}
	return DeadSpotResult{Gaps: gaps}, nil
}
