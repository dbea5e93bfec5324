package models

// TripSummary describes a trip for listing
type TripSummary struct {
	TripID              int64   `json:"tripId"`
	MeasurementCount    int64   `json:"measurementCount"`
	DominantNetworkType *string `json:"dominantNetworkType,omitempty"`
	DominantShare       float64 `json:"dominantShare"` // 0~1
}

// TripsResponse represents the trip listing
type TripsResponse struct {
	Trips []TripSummary `json:"trips"`
	Total int64         `json:"total"`
}
