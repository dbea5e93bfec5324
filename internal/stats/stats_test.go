package stats

import (
	"math"
	"testing"
)

func TestMedian(t *testing.T) {
	tests := []struct {
		values []float64
		want   float64
	}{
		{nil, 0},
		{[]float64{5}, 5},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := Median(tt.values); got != tt.want {
			t.Errorf("Median(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}

	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 {
		t.Errorf("Median must not reorder its input")
	}
}

func TestMeanOr(t *testing.T) {
	if got := MeanOr(nil, 1.0); got != 1.0 {
		t.Errorf("MeanOr(nil, 1) = %v, want 1", got)
	}
	if got := MeanOr([]float64{1, 2, 3, 4}, 1.0); got != 2.5 {
		t.Errorf("MeanOr = %v, want 2.5", got)
	}
}

func TestPearsonCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	if got := PearsonCorrelation(x, []float64{2, 4, 6, 8, 10}); math.Abs(got-1) > 1e-12 {
		t.Errorf("perfect positive = %v, want 1", got)
	}
	if got := PearsonCorrelation(x, []float64{5, 4, 3, 2, 1}); math.Abs(got+1) > 1e-12 {
		t.Errorf("perfect negative = %v, want -1", got)
	}
	if got := PearsonCorrelation(x, []float64{1, 1, 1, 1, 1}); !math.IsNaN(got) {
		t.Errorf("constant variable = %v, want NaN", got)
	}
	if got := PearsonCorrelation([]float64{1}, []float64{1}); !math.IsNaN(got) {
		t.Errorf("single sample = %v, want NaN", got)
	}
}
