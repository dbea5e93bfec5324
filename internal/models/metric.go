package models

import (
	"fmt"
	"strings"
)

// Metric is a per-measurement quantity that can be charted or filtered on.
type Metric int

const (
	MetricRoundTripTime Metric = iota
	MetricSignalStrength
	MetricGsmAsuLevel
	MetricLteAsuLevel
	MetricIPDV
	MetricJitter
)

// Metrics lists every Metric in declaration order.
var Metrics = []Metric{
	MetricRoundTripTime,
	MetricSignalStrength,
	MetricGsmAsuLevel,
	MetricLteAsuLevel,
	MetricIPDV,
	MetricJitter,
}

// ParseMetric resolves a metric name case-insensitively.
func ParseMetric(name string) (Metric, error) {
	for _, m := range Metrics {
		if strings.EqualFold(name, m.String()) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown metric %q", name)
}

func (m Metric) String() string {
	switch m {
	case MetricRoundTripTime:
		return "roundTripTime"
	case MetricSignalStrength:
		return "signalStrength"
	case MetricGsmAsuLevel:
		return "gsmAsuLevel"
	case MetricLteAsuLevel:
		return "lteAsuLevel"
	case MetricIPDV:
		return "ipdv"
	case MetricJitter:
		return "jitter"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// Label is a human readable axis label.
func (m Metric) Label() string {
	switch m {
	case MetricRoundTripTime:
		return "Round-trip time (ms)"
	case MetricSignalStrength:
		return "Signal strength"
	case MetricGsmAsuLevel:
		return "GSM ASU Level (0-31)"
	case MetricLteAsuLevel:
		return "LTE ASU Level (0-97)"
	case MetricIPDV:
		return "IPDV (ms)"
	case MetricJitter:
		return "Jitter (ms)"
	}
	return m.String()
}

// Value extracts the metric from a measurement. ok is false when the value is absent.
func (m Metric) Value(ms Measurement) (v float64, ok bool) {
	switch m {
	case MetricRoundTripTime:
		return intValue(ms.RoundTripTime)
	case MetricSignalStrength:
		if ms.SignalStrength == nil {
			return 0, false
		}
		return float64(*ms.SignalStrength), true
	case MetricGsmAsuLevel:
		return intValue(ms.GsmAsuLevel)
	case MetricLteAsuLevel:
		return intValue(ms.LteAsuLevel)
	case MetricIPDV:
		return intValue(ms.IPDV)
	case MetricJitter:
		return intValue(ms.Jitter)
	}
	return 0, false
}

func intValue(p *int32) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

// AreaMetric is a per-area aggregate that can be correlated across areas.
type AreaMetric int

const (
	AreaMetricAverageRoundTripTime AreaMetric = iota
	AreaMetricMedianRoundTripTime
	AreaMetricAverageSignalStrength
	AreaMetricJitterRatio
	AreaMetricPacketLossRatio
)

// AreaMetrics lists every AreaMetric in declaration order.
var AreaMetrics = []AreaMetric{
	AreaMetricAverageRoundTripTime,
	AreaMetricMedianRoundTripTime,
	AreaMetricAverageSignalStrength,
	AreaMetricJitterRatio,
	AreaMetricPacketLossRatio,
}

func (m AreaMetric) String() string {
	switch m {
	case AreaMetricAverageRoundTripTime:
		return "averageRoundTripTime"
	case AreaMetricMedianRoundTripTime:
		return "medianRoundTripTime"
	case AreaMetricAverageSignalStrength:
		return "averageSignalStrength"
	case AreaMetricJitterRatio:
		return "jitterRatio"
	case AreaMetricPacketLossRatio:
		return "packetLossRatio"
	}
	return fmt.Sprintf("AreaMetric(%d)", int(m))
}

// Value extracts the aggregate from an AreaData.
func (m AreaMetric) Value(d AreaData) float64 {
	switch m {
	case AreaMetricAverageRoundTripTime:
		return d.AverageRoundTripTime
	case AreaMetricMedianRoundTripTime:
		return d.MedianRoundTripTime
	case AreaMetricAverageSignalStrength:
		return d.AverageSignalStrength
	case AreaMetricJitterRatio:
		return d.JitterRatio
	case AreaMetricPacketLossRatio:
		return d.PacketLossRatio
	}
	panic(fmt.Sprintf("models: no value for %v", m))
}

// Correlation is the Pearson coefficient between two area metrics.
type Correlation struct {
	X           string  `json:"x"`
	Y           string  `json:"y"`
	Coefficient float64 `json:"coefficient"`
}
