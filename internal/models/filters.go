package models

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxTripIDs caps how many ids a trip expression may expand to.
const MaxTripIDs = 100000

// MeasurementFilter selects measurements for reading and scoring.
// Zero values mean "no filter".
type MeasurementFilter struct {
	AreaID      *int64
	TripIDs      []int64
	NetworkTypes []string
}

// MeasurementQuery represents the query parameters shared by the reporting endpoints
type MeasurementQuery struct {
	AreaID      *int64 `form:"areaId"`
	TripID      string `form:"tripId"`      // e.g. "1,3,5-7"
	NetworkType string `form:"networkType"` // e.g. "LTE,HSPA+"
}

// Filter converts the raw query into a MeasurementFilter
func (q MeasurementQuery) Filter() (MeasurementFilter, error) {
	tripIDs, err := ParseTripIDs(q.TripID)
	if err != nil {
		return MeasurementFilter{}, err
	}
	return MeasurementFilter{
		AreaID:       q.AreaID,
		TripIDs:      tripIDs,
		NetworkTypes: ParseNetworkTypes(q.NetworkType),
	}, nil
}

// ParseNetworkTypes splits a comma separated list of network types, dropping
// blanks and duplicates. An empty list yields nil.
func ParseNetworkTypes(expr string) []string {
	var types []string
	seen := make(map[string]bool)
	for _, t := range strings.Split(expr, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		types = append(types, t)
	}
	return types
}

// DeadSpotQuery represents the parameters of a route dead-spot query
type DeadSpotQuery struct {
	Origin         string  `form:"origin" binding:"required"`      // "lat,lng"
	Destination    string  `form:"destination" binding:"required"` // "lat,lng"
	TripID         string  `form:"tripId"`
	MinPerformance float64 `form:"minPerformance"`
}

// PolylineQuery represents the parameters of a dead-spot query over an encoded polyline
type PolylineQuery struct {
	Polyline       string  `form:"polyline" binding:"required"`
	TripID         string  `form:"tripId"`
	MinPerformance float64 `form:"minPerformance"`
}

// MetricQuery represents the parameters of the metric endpoints
type MetricQuery struct {
	MeasurementQuery
	Metric   string `form:"metric"`
	X        string `form:"x"`
	Y        string `form:"y"`
	Kind     string `form:"kind"` // average, median
	XMin     *int64 `form:"xMin"`
	XMax     *int64 `form:"xMax"`
	MinCount *int   `form:"cMin"`
}

// ParseTripIDs expands a comma separated list of trip ids and inclusive
// "a-b" ranges. An empty expression yields nil. A reversed range yields nothing.
func ParseTripIDs(expr string) ([]int64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	var ids []int64
	for _, token := range strings.Split(expr, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(token, "-"); ok {
			from, err := strconv.ParseInt(strings.TrimSpace(lo), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid trip range %q: %w", token, err)
			}
			to, err := strconv.ParseInt(strings.TrimSpace(hi), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid trip range %q: %w", token, err)
			}
			if to < from {
				continue
			}
			// to-from overflows for ranges spanning more than half the int64 domain.
			span := uint64(to) - uint64(from)
			if span >= MaxTripIDs || uint64(len(ids))+span+1 > MaxTripIDs {
				return nil, fmt.Errorf("trip range %q exceeds %d ids", token, MaxTripIDs)
			}
			for n := int64(0); n <= int64(span); n++ {
				ids = append(ids, from+n)
			}
		} else {
			id, err := strconv.ParseInt(token, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid trip id %q: %w", token, err)
			}
			if len(ids) >= MaxTripIDs {
				return nil, fmt.Errorf("trip expression exceeds %d ids", MaxTripIDs)
			}
			ids = append(ids, id)
		}
	}

	return ids, nil
}
