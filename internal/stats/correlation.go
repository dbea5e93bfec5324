package stats

import "math"

// PearsonCorrelation calculates the Pearson correlation coefficient between two variables.
// Returns NaN when it is undefined: mismatched or short input, or a constant variable.
func PearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return math.NaN()
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var sumXY, sumX2, sumY2 float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sumXY += dx * dy
		sumX2 += dx * dx
		sumY2 += dy * dy
	}

	if sumX2 == 0 || sumY2 == 0 {
		return math.NaN()
	}

	return sumXY / math.Sqrt(sumX2*sumY2)
}
