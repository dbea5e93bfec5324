package models

// Bucket counts the measurements sharing one metric value.
type Bucket struct {
	Value float64 `json:"value"`
	Count int     `json:"count"`
}

// Distribution is the value histogram of one metric.
type Distribution struct {
	Metric  string   `json:"metric"`
	Label   string   `json:"label"`
	Buckets []Bucket `json:"buckets"`
	Mean    float64  `json:"mean"`
	Median  float64  `json:"median"`
}

// SeriesPoint is a metric value at a packet of a trip.
type SeriesPoint struct {
	PacketID int32   `json:"packetId"`
	Value    float64 `json:"value"`
}

// Series is a metric over the packets of one trip.
type Series struct {
	Metric string        `json:"metric"`
	Label  string        `json:"label"`
	TripID int64         `json:"tripId"`
	Points []SeriesPoint `json:"points"`
}

// RelationPoint aggregates Y over the measurements sharing one X value.
type RelationPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Count int     `json:"count"`
}

// Relation is one metric aggregated as a function of another.
type Relation struct {
	Kind   string          `json:"kind"`
	X      string          `json:"x"`
	Y      string          `json:"y"`
	XLabel string          `json:"xLabel"`
	YLabel string          `json:"yLabel"`
	Points []RelationPoint `json:"points"`
}

// Relation kinds.
const (
	RelationAverage = "average"
	RelationMedian  = "median"
)
