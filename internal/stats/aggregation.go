// Package stats holds the small set of descriptive statistics used by scoring.
package stats

import (
	"math"
	"sort"
)

// Mean calculates the arithmetic mean. Returns 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanOr returns the mean of values, or fallback when there are none.
func MeanOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	return Mean(values)
}

// Median returns the middle value, averaging the two middle values for even lengths.
func Median(values []float64) float64 {
	return Quantile(values, 0.5)
}

// Quantile calculates the q-th quantile (0 <= q <= 1) with linear interpolation
func Quantile(values []float64, q float64) float64 {
	if len(values) == 0 {
		return 0
	}
	q = math.Max(0, math.Min(1, q))

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := q * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))
	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
