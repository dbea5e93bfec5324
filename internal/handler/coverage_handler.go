package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/coverage-backend-go/internal/deadspot"
	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/scoring"
	"github.com/jengzang/coverage-backend-go/internal/service"
	"github.com/jengzang/coverage-backend-go/pkg/response"
)

// CoverageHandler handles HTTP requests for coverage reports
type CoverageHandler struct {
	service *service.CoverageService
}

// NewCoverageHandler creates a new coverage handler
func NewCoverageHandler(service *service.CoverageService) *CoverageHandler {
	return &CoverageHandler{service: service}
}

func bindFilter(c *gin.Context) (models.MeasurementFilter, bool) {
	var q models.MeasurementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return models.MeasurementFilter{}, false
	}
	filter, err := q.Filter()
	if err != nil {
		response.BadRequest(c, "Invalid trip id expression", err)
		return models.MeasurementFilter{}, false
	}
	return filter, true
}

// GetMeasurements handles GET /api/v1/measurements
func (h *CoverageHandler) GetMeasurements(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	rows, err := h.service.Measurements(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to get measurements", err)
		return
	}
	response.Success(c, models.MeasurementsResponse{Measurements: rows})
}

// GetTrips handles GET /api/v1/trips
func (h *CoverageHandler) GetTrips(c *gin.Context) {
	trips, err := h.service.Trips(c.Request.Context())
	if err != nil {
		response.InternalError(c, "Failed to list trips", err)
		return
	}
	response.Success(c, trips)
}

// GetTripPath handles GET /api/v1/trips/:tripId/path
func (h *CoverageHandler) GetTripPath(c *gin.Context) {
	tripID, err := strconv.ParseInt(c.Param("tripId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid trip ID", err)
		return
	}
	path, err := h.service.TripPath(c.Request.Context(), tripID)
	if err != nil {
		response.InternalError(c, "Failed to get trip path", err)
		return
	}
	response.Success(c, path)
}

// GetAreas handles GET /api/v1/areas
func (h *CoverageHandler) GetAreas(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	areas, err := h.service.Areas(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to get areas", err)
		return
	}
	response.Success(c, gin.H{"areas": areas})
}

// GetArea handles GET /api/v1/areas/:id
func (h *CoverageHandler) GetArea(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid area ID", err)
		return
	}
	tripIDs, err := models.ParseTripIDs(c.Query("tripId"))
	if err != nil {
		response.BadRequest(c, "Invalid trip id expression", err)
		return
	}

	report, err := h.service.Area(c.Request.Context(), id, tripIDs)
	if errors.Is(err, service.ErrNotFound) {
		response.NotFound(c, "Area not found", err)
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get area", err)
		return
	}
	response.Success(c, report)
}

// GetAreasGeoJSON handles GET /api/v1/areas.geojson
func (h *CoverageHandler) GetAreasGeoJSON(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	areas, err := h.service.Areas(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to get areas", err)
		return
	}
	writeGeoJSON(c, service.AreasToGeoJSON(areas))
}

// GetCorrelations handles GET /api/v1/correlations
func (h *CoverageHandler) GetCorrelations(c *gin.Context) {
	filter, ok := bindFilter(c)
	if !ok {
		return
	}
	correlations, err := h.service.Correlations(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to compute correlations", err)
		return
	}
	response.Success(c, gin.H{"correlations": correlations})
}

func bindMetricQuery(c *gin.Context) (models.MetricQuery, models.MeasurementFilter, bool) {
	var q models.MetricQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return q, models.MeasurementFilter{}, false
	}
	filter, err := q.Filter()
	if err != nil {
		response.BadRequest(c, "Invalid trip id expression", err)
		return q, models.MeasurementFilter{}, false
	}
	return q, filter, true
}

func parseMetric(c *gin.Context, name string) (models.Metric, bool) {
	m, err := models.ParseMetric(name)
	if err != nil {
		response.BadRequest(c, "Invalid metric", err)
		return 0, false
	}
	return m, true
}

// GetDistribution handles GET /api/v1/charts/distribution
func (h *CoverageHandler) GetDistribution(c *gin.Context) {
	q, filter, ok := bindMetricQuery(c)
	if !ok {
		return
	}
	metric, ok := parseMetric(c, q.Metric)
	if !ok {
		return
	}
	dist, err := h.service.Distribution(c.Request.Context(), metric, filter, scoring.Range{Min: q.XMin, Max: q.XMax}, q.MinCount)
	if err != nil {
		response.InternalError(c, "Failed to compute distribution", err)
		return
	}
	response.Success(c, dist)
}

// GetSeries handles GET /api/v1/charts/series
func (h *CoverageHandler) GetSeries(c *gin.Context) {
	q, _, ok := bindMetricQuery(c)
	if !ok {
		return
	}
	metric, ok := parseMetric(c, q.Metric)
	if !ok {
		return
	}
	tripID, err := strconv.ParseInt(q.TripID, 10, 64)
	if err != nil {
		response.BadRequest(c, "A single trip id is required", err)
		return
	}
	series, err := h.service.Series(c.Request.Context(), metric, tripID, scoring.Range{Min: q.XMin, Max: q.XMax})
	if err != nil {
		response.InternalError(c, "Failed to compute series", err)
		return
	}
	response.Success(c, series)
}

// GetRelation handles GET /api/v1/charts/relation
func (h *CoverageHandler) GetRelation(c *gin.Context) {
	q, filter, ok := bindMetricQuery(c)
	if !ok {
		return
	}
	x, ok := parseMetric(c, q.X)
	if !ok {
		return
	}
	y, ok := parseMetric(c, q.Y)
	if !ok {
		return
	}
	if q.Kind != "" && q.Kind != models.RelationAverage && q.Kind != models.RelationMedian {
		response.BadRequest(c, "kind must be average or median", nil)
		return
	}
	rel, err := h.service.Relation(c.Request.Context(), q.Kind, x, y, filter, scoring.Range{Min: q.XMin, Max: q.XMax}, q.MinCount)
	if err != nil {
		response.InternalError(c, "Failed to compute relation", err)
		return
	}
	response.Success(c, rel)
}

// GetDeadSpots handles GET /api/v1/deadspots
func (h *CoverageHandler) GetDeadSpots(c *gin.Context) {
	var q models.DeadSpotQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "origin and destination are required", err)
		return
	}
	origin, err := deadspot.ParsePoint(q.Origin)
	if err != nil {
		response.BadRequest(c, "Invalid origin", err)
		return
	}
	destination, err := deadspot.ParsePoint(q.Destination)
	if err != nil {
		response.BadRequest(c, "Invalid destination", err)
		return
	}
	tripIDs, err := models.ParseTripIDs(q.TripID)
	if err != nil {
		response.BadRequest(c, "Invalid trip id expression", err)
		return
	}

	result, err := h.service.DeadSpotsBetween(c.Request.Context(), origin, destination, tripIDs, q.MinPerformance)
	if err != nil {
		response.InternalError(c, "Failed to find dead spots", err)
		return
	}
	h.writeDeadSpots(c, result)
}

// GetDeadSpotsOnPolyline handles GET /api/v1/deadspots/polyline
func (h *CoverageHandler) GetDeadSpotsOnPolyline(c *gin.Context) {
	var q models.PolylineQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, "polyline is required", err)
		return
	}
	if _, err := deadspot.DecodePolyline(q.Polyline); err != nil {
		response.BadRequest(c, "Invalid polyline", err)
		return
	}
	tripIDs, err := models.ParseTripIDs(q.TripID)
	if err != nil {
		response.BadRequest(c, "Invalid trip id expression", err)
		return
	}

	result, err := h.service.DeadSpotsOnPolyline(c.Request.Context(), q.Polyline, tripIDs, q.MinPerformance)
	if err != nil {
		response.InternalError(c, "Failed to find dead spots", err)
		return
	}
	h.writeDeadSpots(c, result)
}

func (h *CoverageHandler) writeDeadSpots(c *gin.Context, result service.DeadSpotResult) {
	if c.Query("format") == "geojson" {
		writeGeoJSON(c, service.GapsToGeoJSON(result.Gaps))
		return
	}
	response.Success(c, result)
}

func writeGeoJSON(c *gin.Context, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		response.InternalError(c, "Failed to encode GeoJSON", err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", b)
}
