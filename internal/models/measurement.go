package models

// NetworkTypeWiFi is the network type reported by clients on WiFi. Such records are
// never persisted and never take part in clustering.
const NetworkTypeWiFi = "WiFi"

// NetworkTypeLTE selects the LTE ASU scale for signal normalization.
const NetworkTypeLTE = "LTE"

// MeasurementRecord is one sample as produced by a client and carried on the wire.
// Optional fields are nil when the client did not supply them.
type MeasurementRecord struct {
	PacketID           int32    `json:"packetId"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Accuracy           float32  `json:"accuracy"` // Meters, lower is better
	Speed              float32  `json:"speed"`
	Bearing            float32  `json:"bearing"` // 0 means unknown
	RoundTripTime      *int32   `json:"roundTripTime,omitempty"`
	ServerReplyTime    *int64   `json:"serverReplyTime,omitempty"`
	SignalStrength     *float32 `json:"signalStrength,omitempty"` // Legacy clients only
	NetworkType        *string  `json:"networkType,omitempty"`
	LinkDownstreamKbps *int32   `json:"linkDownstreamKbps,omitempty"`
	LinkUpstreamKbps   *int32   `json:"linkUpstreamKbps,omitempty"`
	Jitter             *float32 `json:"jitter,omitempty"` // Legacy clients only
	GsmAsuLevel        *int32   `json:"gsmAsuLevel,omitempty"`
	LteAsuLevel        *int32   `json:"lteAsuLevel,omitempty"`
}

// IsWiFi reports whether the record was taken on WiFi.
func (r MeasurementRecord) IsWiFi() bool {
	return r.NetworkType != nil && *r.NetworkType == NetworkTypeWiFi
}

// Measurement is a persisted, area-resolved sample. Rows are immutable once written.
type Measurement struct {
	ID              int64    `json:"id" db:"id"`
	AreaID          int64    `json:"areaId" db:"area_id"`
	PacketID        int32    `json:"packetId" db:"packet_id"`
	TripID          int64    `json:"tripId" db:"trip_id"`
	Speed           float32  `json:"speed" db:"speed"`
	Bearing         float32  `json:"bearing" db:"bearing"`
	NetworkType     *string  `json:"networkType,omitempty" db:"network_type"`
	SignalStrength  *float32 `json:"signalStrength,omitempty" db:"signal_strength"`
	RoundTripTime   *int32   `json:"roundTripTime,omitempty" db:"round_trip_time"`
	ServerReplyTime *int64   `json:"serverReplyTime,omitempty" db:"server_reply_time"`
	IPDV            *int32   `json:"ipdv,omitempty" db:"ipdv"`     // Inter-packet delay variation (ms)
	Jitter          *int32   `json:"jitter,omitempty" db:"jitter"` // |ipdv|
	GsmAsuLevel     *int32   `json:"gsmAsuLevel,omitempty" db:"gsm_asu_level"`
	LteAsuLevel     *int32   `json:"lteAsuLevel,omitempty" db:"lte_asu_level"`
}

// NetworkTypeOrEmpty returns the network type, or "" when unknown.
func (m Measurement) NetworkTypeOrEmpty() string {
	if m.NetworkType == nil {
		return ""
	}
	return *m.NetworkType
}

// MeasurementsResponse wraps a list of measurements
type MeasurementsResponse struct {
	Measurements []Measurement `json:"measurements"`
}
