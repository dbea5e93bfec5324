package scoring

import (
	"context"
	"io"
	"math"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/jengzang/coverage-backend-go/internal/models"
)

func ptr[T any](v T) *T { return &v }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

type fakeMeasurements []models.Measurement

func (f fakeMeasurements) Query(_ context.Context, filter models.MeasurementFilter) ([]models.Measurement, error) {
	var out []models.Measurement
	for _, m := range f {
		if filter.AreaID != nil && m.AreaID != *filter.AreaID {
			continue
		}
		if len(filter.NetworkTypes) > 0 && !slices.Contains(filter.NetworkTypes, m.NetworkTypeOrEmpty()) {
			continue
		}
		if len(filter.TripIDs) > 0 {
			found := false
			for _, id := range filter.TripIDs {
				found = found || id == m.TripID
			}
			if !found {
				continue
			}
		}
		out = append(out, m)
	}
	return out, nil
}

type fakeAreas map[int64]models.Area

func (f fakeAreas) GetByIDs(_ context.Context, ids []int64) (map[int64]models.Area, error) {
	out := make(map[int64]models.Area)
	for _, id := range ids {
		if a, ok := f[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func newScorer(rows []models.Measurement) *Scorer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewScorer(fakeMeasurements(rows), fakeAreas{1: {ID: 1}, 2: {ID: 2}, 3: {ID: 3}}, log)
}

func TestRoundTripTimeQuality(t *testing.T) {
	tests := []struct {
		rtt         int32
		networkType *string
		want        float64
	}{
		{79, nil, 1.0},
		{80, nil, 0.8},
		{119, ptr("LTE"), 0.8},
		{199, ptr("LTE"), 0.4},
		{200, ptr("LTE"), 0.2},
		{199, ptr("EDGE"), 1.0},
		{799, ptr("EDGE"), 0.4},
		{800, ptr("EDGE"), 0.2},
		{149, ptr("HSDPA"), 1.0},
		{450, ptr("HSUPA"), 0.4},
		{250, ptr("HSPA+"), 0.6},
	}
	for _, tt := range tests {
		if got := RoundTripTimeQuality(tt.rtt, tt.networkType); got != tt.want {
			nt := "<nil>"
			if tt.networkType != nil {
				nt = *tt.networkType
			}
			t.Errorf("RoundTripTimeQuality(%d, %s) = %v, want %v", tt.rtt, nt, got, tt.want)
		}
	}
}

func TestSignalStrength(t *testing.T) {
	tests := []struct {
		name string
		m    models.Measurement
		want float64
		ok   bool
	}{
		{"lte asu on lte", models.Measurement{NetworkType: ptr("LTE"), LteAsuLevel: ptr(int32(97)), GsmAsuLevel: ptr(int32(0))}, 1.0, true},
		{"lte asu off lte falls back to gsm", models.Measurement{NetworkType: ptr("HSPA"), LteAsuLevel: ptr(int32(97)), GsmAsuLevel: ptr(int32(31))}, 1.0, true},
		{"legacy", models.Measurement{SignalStrength: ptr(float32(0.25))}, 0.25, true},
		{"none", models.Measurement{NetworkType: ptr("LTE")}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SignalStrength(tt.m)
			if ok != tt.ok || !approx(got, tt.want) {
				t.Errorf("SignalStrength = %v, %v; want %v, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestComputeDefaults(t *testing.T) {
	got := Compute([]models.Measurement{{TripID: 1, PacketID: 1}})
	if got.AverageRoundTripTime != 1.0 || got.MedianRoundTripTime != 1.0 || got.RoundTripTimeQuality != 1.0 {
		t.Errorf("rtt defaults = %+v", got)
	}
	if got.AverageSignalStrength != 1.0 {
		t.Errorf("signal default = %v, want 1", got.AverageSignalStrength)
	}
	if got.PacketLossRatio != 1.0 {
		t.Errorf("loss = %v, want 1", got.PacketLossRatio)
	}
	if got.Performance() != 0 {
		t.Errorf("performance = %v, want 0", got.Performance())
	}
}

func TestCompute(t *testing.T) {
	rows := []models.Measurement{
		{TripID: 1, PacketID: 1, NetworkType: ptr("LTE"), RoundTripTime: ptr(int32(50)), LteAsuLevel: ptr(int32(97)), ServerReplyTime: ptr(int64(1000))},
		{TripID: 1, PacketID: 2, NetworkType: ptr("LTE"), RoundTripTime: ptr(int32(100)), LteAsuLevel: ptr(int32(0)), ServerReplyTime: ptr(int64(1300))},
		{TripID: 1, PacketID: 3, NetworkType: ptr("EDGE"), GsmAsuLevel: ptr(int32(31)), ServerReplyTime: ptr(int64(1500))},
		{TripID: 1, PacketID: 4, NetworkType: ptr("EDGE"), RoundTripTime: ptr(int32(300)), GsmAsuLevel: ptr(int32(31))},
	}
	got := Compute(rows)

	if !approx(got.AverageRoundTripTime, 150) {
		t.Errorf("average rtt = %v, want 150", got.AverageRoundTripTime)
	}
	if !approx(got.MedianRoundTripTime, 100) {
		t.Errorf("median rtt = %v, want 100", got.MedianRoundTripTime)
	}
	// 1.0 (LTE 50) + 0.8 (LTE 100) + 0.8 (EDGE 300)
	if !approx(got.RoundTripTimeQuality, 2.6/3) {
		t.Errorf("rtt quality = %v, want %v", got.RoundTripTimeQuality, 2.6/3)
	}
	if !approx(got.AverageSignalStrength, 0.75) {
		t.Errorf("signal = %v, want 0.75", got.AverageSignalStrength)
	}
	if !approx(got.PacketLossRatio, 0.25) {
		t.Errorf("loss = %v, want 0.25", got.PacketLossRatio)
	}
	// interarrivals 300 and 200, deviations 50 and 50
	if !approx(got.JitterRatio, 0.2) {
		t.Errorf("jitter = %v, want 0.2", got.JitterRatio)
	}
	if got.CommonNetworkType == nil || *got.CommonNetworkType != "LTE" {
		t.Errorf("common network type = %v, want LTE (first seen of a tie)", got.CommonNetworkType)
	}
}

func TestJitterRatioPrefersStoredJitter(t *testing.T) {
	rows := []models.Measurement{
		// trip 1: stored jitter 25 -> 0.1
		{TripID: 1, PacketID: 1, ServerReplyTime: ptr(int64(0))},
		{TripID: 1, PacketID: 2, ServerReplyTime: ptr(int64(1000)), Jitter: ptr(int32(25))},
		// trip 2: no usable pair -> 0
		{TripID: 2, PacketID: 1, ServerReplyTime: ptr(int64(0))},
		{TripID: 2, PacketID: 3, ServerReplyTime: ptr(int64(500))},
	}
	if got := JitterRatio(rows); !approx(got, 0.05) {
		t.Errorf("JitterRatio = %v, want 0.05", got)
	}
}

func TestPerformanceBounded(t *testing.T) {
	values := []float64{0, 0.2, 0.5, 0.8, 1}
	for _, loss := range values {
		for _, jitter := range values {
			for _, q := range values {
				for _, s := range values {
					d := models.AreaData{PacketLossRatio: loss, JitterRatio: jitter, RoundTripTimeQuality: q, AverageSignalStrength: s}
					if p := d.Performance(); p < 0 || p > 1 {
						t.Fatalf("performance %v out of range for %+v", p, d)
					}
				}
			}
		}
	}

	// Extreme inputs are clamped so the score stays bounded.
	rows := []models.Measurement{
		{TripID: 1, PacketID: 1, RoundTripTime: ptr(int32(10)), SignalStrength: ptr(float32(4)), Jitter: ptr(int32(5000))},
	}
	d := Compute(rows)
	if p := d.Performance(); p < 0 || p > 1 {
		t.Errorf("performance %v out of range for %+v", p, d)
	}
}

func TestAreasAndPerformance(t *testing.T) {
	s := newScorer([]models.Measurement{
		{AreaID: 2, TripID: 1, PacketID: 1, RoundTripTime: ptr(int32(10)), GsmAsuLevel: ptr(int32(31))},
		{AreaID: 1, TripID: 1, PacketID: 2},
		{AreaID: 2, TripID: 2, PacketID: 1},
	})
	ctx := context.Background()

	reports, err := s.Areas(ctx, models.MeasurementFilter{})
	if err != nil {
		t.Fatalf("Areas: %v", err)
	}
	if len(reports) != 2 || reports[0].ID != 1 || reports[1].ID != 2 {
		t.Fatalf("Areas = %+v, want areas 1 and 2 in order", reports)
	}

	perf, err := s.Performance(ctx, 2, []int64{1})
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	if !approx(perf, 1) {
		t.Errorf("Performance(trip 1) = %v, want 1", perf)
	}
	perf, err = s.Performance(ctx, 2, nil)
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	if !approx(perf, 0.5) {
		t.Errorf("Performance(all trips) = %v, want 0.5", perf)
	}
	perf, err = s.Performance(ctx, 3, nil)
	if err != nil || perf != 0 {
		t.Errorf("Performance(no data) = %v, %v; want 0", perf, err)
	}
}

func TestCorrelations(t *testing.T) {
	s := newScorer([]models.Measurement{
		{AreaID: 1, TripID: 1, PacketID: 1, RoundTripTime: ptr(int32(10))},
		{AreaID: 2, TripID: 1, PacketID: 2, RoundTripTime: ptr(int32(20))},
		{AreaID: 3, TripID: 1, PacketID: 3, RoundTripTime: ptr(int32(30))},
	})
	got, err := s.Correlations(context.Background(), models.MeasurementFilter{})
	if err != nil {
		t.Fatalf("Correlations: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("pairs = %d, want 10", len(got))
	}
	if got[0].X != "averageRoundTripTime" || got[0].Y != "medianRoundTripTime" || !approx(got[0].Coefficient, 1) {
		t.Errorf("first pair = %+v, want average/median rtt with coefficient 1", got[0])
	}
	for _, c := range got {
		if math.IsNaN(c.Coefficient) {
			t.Errorf("pair %s/%s is NaN", c.X, c.Y)
		}
	}
}

func TestDistribution(t *testing.T) {
	rows := []models.Measurement{
		{RoundTripTime: ptr(int32(10))},
		{RoundTripTime: ptr(int32(10))},
		{RoundTripTime: ptr(int32(20))},
		{RoundTripTime: ptr(int32(90))},
		{},
	}
	s := newScorer(rows)
	ctx := context.Background()

	got, err := s.Distribution(ctx, models.MetricRoundTripTime, models.MeasurementFilter{}, Range{Max: ptr(int64(50))}, nil)
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	if len(got.Buckets) != 2 || got.Buckets[0] != (models.Bucket{Value: 10, Count: 2}) || got.Buckets[1] != (models.Bucket{Value: 20, Count: 1}) {
		t.Errorf("buckets = %+v", got.Buckets)
	}
	if !approx(got.Mean, 40.0/3) || got.Median != 10 {
		t.Errorf("mean/median = %v/%v", got.Mean, got.Median)
	}

	got, err = s.Distribution(ctx, models.MetricRoundTripTime, models.MeasurementFilter{}, Range{}, ptr(1))
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	if len(got.Buckets) != 1 || got.Buckets[0].Value != 10 {
		t.Errorf("buckets with cMin=1 = %+v", got.Buckets)
	}
}

func TestSeries(t *testing.T) {
	var rows []models.Measurement
	for id := int32(10); id < 20; id++ {
		m := models.Measurement{TripID: 4, PacketID: id}
		if id != 12 {
			m.RoundTripTime = ptr(id * 2)
		}
		rows = append(rows, m)
	}
	s := newScorer(rows)

	got, err := s.Series(context.Background(), models.MetricRoundTripTime, 4, Range{Max: ptr(int64(14))})
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	want := []int32{10, 11, 13}
	if len(got.Points) != len(want) {
		t.Fatalf("points = %+v, want packets %v", got.Points, want)
	}
	for i, id := range want {
		if got.Points[i].PacketID != id || got.Points[i].Value != float64(id*2) {
			t.Errorf("point %d = %+v", i, got.Points[i])
		}
	}
}

func TestRelation(t *testing.T) {
	rows := []models.Measurement{
		{GsmAsuLevel: ptr(int32(10)), RoundTripTime: ptr(int32(100))},
		{GsmAsuLevel: ptr(int32(10)), RoundTripTime: ptr(int32(200))},
		{GsmAsuLevel: ptr(int32(10)), RoundTripTime: ptr(int32(600))},
		{GsmAsuLevel: ptr(int32(20)), RoundTripTime: ptr(int32(50))},
		{GsmAsuLevel: ptr(int32(30))},
	}
	s := newScorer(rows)
	ctx := context.Background()

	avg, err := s.Relation(ctx, models.RelationAverage, models.MetricGsmAsuLevel, models.MetricRoundTripTime, models.MeasurementFilter{}, Range{}, nil)
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	want := []models.RelationPoint{{X: 10, Y: 300, Count: 3}, {X: 20, Y: 50, Count: 1}}
	if len(avg.Points) != len(want) || avg.Points[0] != want[0] || avg.Points[1] != want[1] {
		t.Errorf("average points = %+v, want %+v", avg.Points, want)
	}

	med, err := s.Relation(ctx, models.RelationMedian, models.MetricGsmAsuLevel, models.MetricRoundTripTime, models.MeasurementFilter{}, Range{}, ptr(1))
	if err != nil {
		t.Fatalf("Relation: %v", err)
	}
	if len(med.Points) != 1 || med.Points[0] != (models.RelationPoint{X: 10, Y: 200, Count: 3}) {
		t.Errorf("median points = %+v", med.Points)
	}

	if _, err := s.Relation(ctx, "mode", models.MetricGsmAsuLevel, models.MetricRoundTripTime, models.MeasurementFilter{}, Range{}, nil); err == nil {
		t.Error("expected error for unknown kind")
	}
}
