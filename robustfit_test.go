package canopywatch

import (
	"math"
	"testing"
)

func TestRobustFitFlatSeries(t *testing.T) {
	dates := make([]Date, 20)
	y := make([]float64, 20)
	for i := range dates {
		dates[i] = Date{CE: i * 16, Year: 2015 + i/5, DOY: 1}
		y[i] = 500
	}
	x := HarmonicTerms(dates, 1, 0)

	rf := NewRobustFit(3)
	coeffs, _, sd, err := rf.Fit(x, y)
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	if math.Abs(coeffs[0]-500) > 1e-6 {
		t.Errorf("intercept = %v, want ~500", coeffs[0])
	}
	if math.Abs(coeffs[1]) > 1e-6 || math.Abs(coeffs[2]) > 1e-6 {
		t.Errorf("harmonic coefficients = (%v, %v), want (0, 0)", coeffs[1], coeffs[2])
	}
	if sd > 1e-6 {
		t.Errorf("sd = %v, want ~0", sd)
	}
}

func TestRobustFitDownweightsSingleSpike(t *testing.T) {
	dates := make([]Date, 12)
	y := make([]float64, 12)
	for i := range dates {
		dates[i] = Date{CE: i * 30, Year: 2020, DOY: 1}
		y[i] = 500
	}
	y[6] = 5000 // single spike

	x := HarmonicTerms(dates, 1, 0)
	rf := NewRobustFit(3)
	coeffs, _, _, err := rf.Fit(x, y)
	if err != nil {
		t.Fatalf("Fit returned error: %v", err)
	}

	// a single outlier should be downweighted enough that the intercept
	// stays much closer to 500 than a naive mean (which would be ~875).
	if math.Abs(coeffs[0]-500) > 100 {
		t.Errorf("intercept = %v, want close to 500 (outlier downweighted)", coeffs[0])
	}
}

func TestBisquareWeight(t *testing.T) {
	if w := bisquareWeight(0); w != 1 {
		t.Errorf("bisquareWeight(0) = %v, want 1", w)
	}
	if w := bisquareWeight(1); w != 0 {
		t.Errorf("bisquareWeight(1) = %v, want 0", w)
	}
	if w := bisquareWeight(2); w != 0 {
		t.Errorf("bisquareWeight(2) = %v, want 0", w)
	}
}

func TestMedian(t *testing.T) {
	if m := median([]float64{1, 2, 3}); m != 2 {
		t.Errorf("median(odd) = %v, want 2", m)
	}
	if m := median([]float64{1, 2, 3, 4}); m != 2.5 {
		t.Errorf("median(even) = %v, want 2.5", m)
	}
}
