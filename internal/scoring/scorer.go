package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/stats"
)

// MeasurementSource reads persisted measurements.
type MeasurementSource interface {
	Query(ctx context.Context, filter models.MeasurementFilter) ([]models.Measurement, error)
}

// AreaSource reads areas.
type AreaSource interface {
	GetByIDs(ctx context.Context, ids []int64) (map[int64]models.Area, error)
}

// Scorer answers quality queries over the store.
type Scorer struct {
	measurements MeasurementSource
	areas        AreaSource
	log          logrus.FieldLogger
}

// NewScorer creates a scorer. A nil logger uses the standard logger.
func NewScorer(measurements MeasurementSource, areas AreaSource, log logrus.FieldLogger) *Scorer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scorer{measurements: measurements, areas: areas, log: log}
}

// AreaData computes the quality aggregate of every area with measurements matching filter.
func (s *Scorer) AreaData(ctx context.Context, filter models.MeasurementFilter) (map[int64]models.AreaData, error) {
	start := time.Now()
	rows, err := s.measurements.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	byArea := make(map[int64][]models.Measurement)
	for _, m := range rows {
		byArea[m.AreaID] = append(byArea[m.AreaID], m)
	}

	data := make(map[int64]models.AreaData, len(byArea))
	for areaID, group := range byArea {
		data[areaID] = Compute(group)
	}

	s.log.WithFields(logrus.Fields{
		"records": len(rows),
		"areas":   len(data),
		"took":    time.Since(start),
	}).Debug("computed area data")
	return data, nil
}

// Performance is the performance of one area, considering only measurements of
// the given trips when tripIDs is non-empty. An area without matching measurements scores 0.
func (s *Scorer) Performance(ctx context.Context, areaID int64, tripIDs []int64) (float64, error) {
	data, err := s.AreaData(ctx, models.MeasurementFilter{AreaID: &areaID, TripIDs: tripIDs})
	if err != nil {
		return 0, err
	}
	d, ok := data[areaID]
	if !ok {
		return 0, nil
	}
	return d.Performance(), nil
}

// Areas joins each matching area with its aggregate, ordered by area id.
func (s *Scorer) Areas(ctx context.Context, filter models.MeasurementFilter) ([]models.AreaReport, error) {
	data, err := s.AreaData(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	areas, err := s.areas.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	reports := make([]models.AreaReport, 0, len(ids))
	for _, id := range ids {
		area, ok := areas[id]
		if !ok {
			continue
		}
		d := data[id]
		reports = append(reports, models.AreaReport{Area: area, Data: d, Performance: d.Performance()})
	}
	return reports, nil
}

// Correlations computes the Pearson coefficient across areas for every pair of area metrics.
// Undefined coefficients (constant metric, fewer than two areas) are reported as 0.
func (s *Scorer) Correlations(ctx context.Context, filter models.MeasurementFilter) ([]models.Correlation, error) {
	data, err := s.AreaData(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	columns := make(map[models.AreaMetric][]float64, len(models.AreaMetrics))
	for _, metric := range models.AreaMetrics {
		values := make([]float64, len(ids))
		for i, id := range ids {
			values[i] = metric.Value(data[id])
		}
		columns[metric] = values
	}

	var out []models.Correlation
	for i, x := range models.AreaMetrics {
		for _, y := range models.AreaMetrics[i+1:] {
			c := stats.PearsonCorrelation(columns[x], columns[y])
			if math.IsNaN(c) {
				c = 0
			}
			out = append(out, models.Correlation{X: x.String(), Y: y.String(), Coefficient: c})
		}
	}
	return out, nil
}

// Range bounds a metric's values (Distribution, Relation) or packet ids (Series). Nil means open.
type Range struct {
	Min *int64
	Max *int64
}

func (r Range) contains(v float64) bool {
	if r.Min != nil && v < float64(*r.Min) {
		return false
	}
	if r.Max != nil && v > float64(*r.Max) {
		return false
	}
	return true
}

// Distribution counts how often each value of metric occurs. Buckets with at most
// minCount measurements are dropped; mean and median cover every matching value.
func (s *Scorer) Distribution(ctx context.Context, metric models.Metric, filter models.MeasurementFilter, bounds Range, minCount *int) (models.Distribution, error) {
	rows, err := s.measurements.Query(ctx, filter)
	if err != nil {
		return models.Distribution{}, err
	}

	var values []float64
	counts := make(map[float64]int)
	for _, m := range rows {
		v, ok := metric.Value(m)
		if !ok || !bounds.contains(v) {
			continue
		}
		values = append(values, v)
		counts[v]++
	}

	dist := models.Distribution{
		Metric:  metric.String(),
		Label:   metric.Label(),
		Buckets: []models.Bucket{},
		Mean:    stats.Mean(values),
		Median:  stats.Median(values),
	}
	for v, c := range counts {
		if minCount != nil && c <= *minCount {
			continue
		}
		dist.Buckets = append(dist.Buckets, models.Bucket{Value: v, Count: c})
	}
	sort.Slice(dist.Buckets, func(i, j int) bool { return dist.Buckets[i].Value < dist.Buckets[j].Value })
	return dist, nil
}

// Series lists metric over the packets of one trip in packet order, starting at
// packets.Min (default: the trip's first packet). When packets.Max is set at most
// Max-Min packets are considered. Packets without a value are skipped.
func (s *Scorer) Series(ctx context.Context, metric models.Metric, tripID int64, packets Range) (models.Series, error) {
	rows, err := s.measurements.Query(ctx, models.MeasurementFilter{TripIDs: []int64{tripID}})
	if err != nil {
		return models.Series{}, err
	}
	rows = sortedByPacket(rows)

	series := models.Series{Metric: metric.String(), Label: metric.Label(), TripID: tripID, Points: []models.SeriesPoint{}}
	if len(rows) == 0 {
		return series, nil
	}

	from := int64(rows[0].PacketID)
	if packets.Min != nil {
		from = *packets.Min
	}
	limit := -1
	if packets.Max != nil {
		limit = int(max(*packets.Max-from, 0))
	}

	taken := 0
	for _, m := range rows {
		if int64(m.PacketID) < from {
			continue
		}
		if limit >= 0 && taken >= limit {
			break
		}
		taken++
		if v, ok := metric.Value(m); ok {
			series.Points = append(series.Points, models.SeriesPoint{PacketID: m.PacketID, Value: v})
		}
	}
	return series, nil
}

// Relation aggregates y (average or median) for every distinct value of x.
// Groups with at most minCount measurements are dropped, as are groups without any y value.
func (s *Scorer) Relation(ctx context.Context, kind string, x, y models.Metric, filter models.MeasurementFilter, bounds Range, minCount *int) (models.Relation, error) {
	var aggregate func([]float64) float64
	switch kind {
	case models.RelationAverage, "":
		kind, aggregate = models.RelationAverage, stats.Mean
	case models.RelationMedian:
		aggregate = stats.Median
	default:
		return models.Relation{}, fmt.Errorf("unknown relation kind %q", kind)
	}

	rows, err := s.measurements.Query(ctx, filter)
	if err != nil {
		return models.Relation{}, err
	}

	type group struct {
		count int
		ys    []float64
	}
	groups := make(map[float64]*group)
	for _, m := range rows {
		xv, ok := x.Value(m)
		if !ok || !bounds.contains(xv) {
			continue
		}
		g := groups[xv]
		if g == nil {
			g = &group{}
			groups[xv] = g
		}
		g.count++
		if yv, ok := y.Value(m); ok {
			g.ys = append(g.ys, yv)
		}
	}

	rel := models.Relation{
		Kind: kind, X: x.String(), Y: y.String(),
		XLabel: x.Label(), YLabel: y.Label(),
		Points: []models.RelationPoint{},
	}
	for xv, g := range groups {
		if len(g.ys) == 0 || (minCount != nil && g.count <= *minCount) {
			continue
		}
		rel.Points = append(rel.Points, models.RelationPoint{X: xv, Y: aggregate(g.ys), Count: g.count})
	}
	sort.Slice(rel.Points, func(i, j int) bool { return rel.Points[i].X < rel.Points[j].X })
	return rel, nil
}

func sortedByPacket(rows []models.Measurement) []models.Measurement {
	sorted := make([]models.Measurement, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].PacketID < sorted[j].PacketID })
	return sorted
}
