package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the ingestion counters exported on /metrics.
type Metrics struct {
	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	batches           *prometheus.CounterVec
	records           *prometheus.CounterVec
	batchDuration     prometheus.Histogram
	probes            *prometheus.CounterVec
}

// NewMetrics creates the ingestion metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "coverage_tcp_connections_active",
			Help: "Currently open batch upload connections",
		}),
		connectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "coverage_tcp_connections_total",
			Help: "Batch upload connections accepted",
		}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coverage_batches_total",
			Help: "Batches received by outcome",
		}, []string{"outcome"}),
		records: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coverage_records_total",
			Help: "Measurement records by outcome",
		}, []string{"outcome"}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "coverage_batch_ingest_seconds",
			Help:    "Time to aggregate and persist one batch",
			Buckets: prometheus.DefBuckets,
		}),
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "coverage_udp_probes_total",
			Help: "UDP probe datagrams by outcome",
		}, []string{"outcome"}),
	}
}

// Outcome labels.
const (
	outcomeOK        = "ok"
	outcomeFailed    = "failed"
	outcomeMalformed = "malformed"
	outcomeWiFi      = "wifi"
	outcomeStored    = "stored"
	outcomeSkipped   = "skipped"
	outcomeDropped   = "dropped"
	outcomeReplied   = "replied"
)
