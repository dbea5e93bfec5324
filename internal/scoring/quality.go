// Package scoring derives per-area quality aggregates and metric reports from
// persisted measurements.
package scoring

import (
	"math"

	"github.com/jengzang/coverage-backend-go/internal/aggregation"
	"github.com/jengzang/coverage-backend-go/internal/models"
	"github.com/jengzang/coverage-backend-go/internal/stats"
)

// ASU scales of the two radio families.
const (
	maxGsmAsu = 31.0
	maxLteAsu = 97.0
)

// rttSteps are the upper bounds (exclusive, ms) for the scores 1.0, 0.8, 0.6 and 0.4.
// Anything slower scores 0.2.
var rttSteps = map[string][4]int32{
	"EDGE":  {200, 400, 600, 800},
	"HSPA":  {150, 300, 450, 600},
	"HSUPA": {150, 300, 450, 600},
	"HSDPA": {150, 300, 450, 600},
	"HSPA+": {100, 200, 300, 400},
}

var defaultRTTSteps = [4]int32{80, 120, 160, 200}

var rttScores = [4]float64{1.0, 0.8, 0.6, 0.4}

// RoundTripTimeQuality scores a round-trip time against the expectations of its network type.
func RoundTripTimeQuality(rtt int32, networkType *string) float64 {
	steps := defaultRTTSteps
	if networkType != nil {
		if s, ok := rttSteps[*networkType]; ok {
			steps = s
		}
	}
	for i, bound := range steps {
		if rtt < bound {
			return rttScores[i]
		}
	}
	return 0.2
}

// SignalStrength normalizes the best available signal reading of m to [0,1].
// LTE ASU is preferred on LTE, then GSM ASU, then the legacy reading.
func SignalStrength(m models.Measurement) (float64, bool) {
	switch {
	case m.NetworkTypeOrEmpty() == models.NetworkTypeLTE && m.LteAsuLevel != nil:
		return float64(*m.LteAsuLevel) / maxLteAsu, true
	case m.GsmAsuLevel != nil:
		return float64(*m.GsmAsuLevel) / maxGsmAsu, true
	case m.SignalStrength != nil:
		return float64(*m.SignalStrength), true
	}
	return 0, false
}

// Compute aggregates the measurements of one area. Rows may span several trips.
func Compute(rows []models.Measurement) models.AreaData {
	data := models.NewAreaData()
	if len(rows) == 0 {
		return data
	}

	var rtts, qualities, signals []float64
	lost := 0
	for _, m := range rows {
		if m.RoundTripTime == nil {
			lost++
		} else {
			rtts = append(rtts, float64(*m.RoundTripTime))
			qualities = append(qualities, RoundTripTimeQuality(*m.RoundTripTime, m.NetworkType))
		}
		if s, ok := SignalStrength(m); ok {
			signals = append(signals, s)
		}
	}

	data.AverageRoundTripTime = stats.MeanOr(rtts, 1.0)
	if len(rtts) > 0 {
		data.MedianRoundTripTime = stats.Median(rtts)
	}
	data.RoundTripTimeQuality = stats.MeanOr(qualities, 1.0)
	data.AverageSignalStrength = clamp01(stats.MeanOr(signals, 1.0))
	data.PacketLossRatio = float64(lost) / float64(len(rows))
	data.JitterRatio = clamp01(JitterRatio(rows))
	data.CommonNetworkType = commonNetworkType(rows)
	return data
}

// JitterRatio is the mean over trips of each trip's jitter relative to the send
// interval. A trip with stored jitter uses it directly. Otherwise the reply
// interarrival times of consecutive packets are used, and a trip without any
// such pair contributes zero.
func JitterRatio(rows []models.Measurement) float64 {
	var (
		order  []int64
		byTrip = make(map[int64][]models.Measurement)
	)
	for _, m := range rows {
		if _, ok := byTrip[m.TripID]; !ok {
			order = append(order, m.TripID)
		}
		byTrip[m.TripID] = append(byTrip[m.TripID], m)
	}

	ratios := make([]float64, 0, len(order))
	for _, tripID := range order {
		ratios = append(ratios, tripJitterRatio(byTrip[tripID]))
	}
	return stats.Mean(ratios)
}

func tripJitterRatio(rows []models.Measurement) float64 {
	var stored []float64
	for _, m := range rows {
		if m.Jitter != nil {
			stored = append(stored, float64(*m.Jitter)/aggregation.UDPSendIntervalMs)
		}
	}
	if len(stored) > 0 {
		return stats.Mean(stored)
	}

	sorted := sortedByPacket(rows)
	var deviations []float64
	for i := 0; i+1 < len(sorted); i++ {
		a, b := sorted[i], sorted[i+1]
		if int64(b.PacketID)-int64(a.PacketID) != 1 || a.ServerReplyTime == nil || b.ServerReplyTime == nil {
			continue
		}
		interarrival := *b.ServerReplyTime - *a.ServerReplyTime
		deviations = append(deviations, math.Abs(float64(interarrival-aggregation.UDPSendIntervalMs)))
	}
	if len(deviations) == 0 {
		return 0
	}
	return stats.Mean(deviations) / aggregation.UDPSendIntervalMs
}

// commonNetworkType is the most frequent network type, the first seen winning ties.
// Unknown types are counted too, so the answer may be nil.
func commonNetworkType(rows []models.Measurement) *string {
	type tally struct {
		networkType *string
		count       int
	}
	var seen []*tally
	index := make(map[string]*tally)
	key := func(nt *string) string {
		if nt == nil {
			return "\x00"
		}
		return *nt
	}
	for _, m := range rows {
		k := key(m.NetworkType)
		t, ok := index[k]
		if !ok {
			t = &tally{networkType: m.NetworkType}
			index[k] = t
			seen = append(seen, t)
		}
		t.count++
	}

	var best *tally
	for _, t := range seen {
		if best == nil || t.count > best.count {
			best = t
		}
	}
	if best == nil || best.networkType == nil {
		return nil
	}
	nt := *best.networkType
	return &nt
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
