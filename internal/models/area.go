package models

// AreaRadiusMeters is the radius of the geodetic disk an Area covers.
const AreaRadiusMeters = 50.0

// Area is a deduplicated geographic cell. Its location and accuracy may be
// refined by a more accurate fix, but its ID never changes.
type Area struct {
	ID        int64   `json:"id" db:"id"`
	Latitude  float64 `json:"lat" db:"latitude"`
	Longitude float64 `json:"lng" db:"longitude"`
	Accuracy  float32 `json:"acc" db:"accuracy"` // Meters, lower is better
}

// AreaPath is a directed traversal edge between two distinct consecutive areas of a trip.
type AreaPath struct {
	AreaID         int64   `json:"areaId" db:"area_id"`
	NextAreaID     int64   `json:"nextAreaId" db:"next_area_id"`
	PreviousAreaID *int64  `json:"previousAreaId,omitempty" db:"previous_area_id"`
	Bearing        float32 `json:"bearing" db:"bearing"`
	TripID         int64   `json:"tripId" db:"trip_id"`
}

// AreaData is the query-time quality aggregate of one area's measurements.
type AreaData struct {
	AverageRoundTripTime  float64 `json:"averageRoundTripTime"`
	MedianRoundTripTime   float64 `json:"medianRoundTripTime"`
	RoundTripTimeQuality  float64 `json:"roundTripTimeQuality"`
	AverageSignalStrength float64 `json:"averageSignalStrength"`
	JitterRatio           float64 `json:"jitterRatio"`
	PacketLossRatio       float64 `json:"packetLossRatio"`
	CommonNetworkType     *string `json:"commonNetworkType,omitempty"`
}

// NewAreaData returns the neutral aggregate used before any measurement is seen.
func NewAreaData() AreaData {
	return AreaData{
		AverageRoundTripTime:  1.0,
		MedianRoundTripTime:   1.0,
		RoundTripTimeQuality:  1.0,
		AverageSignalStrength: 1.0,
	}
}

// Performance is the composite quality score. Each factor is in [0,1] so the product is too.
func (d AreaData) Performance() float64 {
	return (1.0 - d.PacketLossRatio) *
		(1.0 - d.JitterRatio) *
		d.RoundTripTimeQuality *
		d.AverageSignalStrength
}

// AreaReport joins an area with its aggregate for reporting.
type AreaReport struct {
	Area
	Data        AreaData `json:"data"`
	Performance float64  `json:"perf"`
}

// GapReport is a stretch of a route without acceptable coverage.
// Open gaps run to the end of the route and have no ToArea.
type GapReport struct {
	FromArea     Area    `json:"fromArea"`
	ToArea       *Area   `json:"toArea,omitempty"`
	LengthMeters float64 `json:"lengthMeters"`
	Open         bool    `json:"open"`
}
