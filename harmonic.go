package canopywatch

import "math"

// NumCoefficients returns n_coef = 1 + 2*modes + (trend ? 1 : 0), the
// harmonic model's coefficient count, per spec.md §3. Grounded on
// original_source/src/utils/harmonic.c's number_of_coefficients.
func NumCoefficients(modes, trend int) (int, error) {
	n := 1 + 2*modes
	if trend != 0 {
		n++
	}
	if n < 3 {
		return 0, ErrTooFewCoefs
	}
	return n, nil
}

// HarmonicTerms computes the N x n_coef design matrix for a sequence of
// dates, in the column order of spec.md §3's Harmonic model: intercept,
// (trend,) then cos/sin pairs at the annual, semi-annual and tri-annual
// frequencies up to modes. It depends only on dates and (modes, trend),
// so a stage computes it once and shares it read-only across workers
// (spec.md §4.1). Grounded on
// original_source/src/utils/harmonic.c's compute_harmonic_terms.
func HarmonicTerms(dates []Date, modes, trend int) [][]float64 {
	nCoef, _ := NumCoefficients(modes, trend)
	terms := make([][]float64, len(dates))

	for i, d := range dates {
		row := make([]float64, nCoef)
		ce := float64(d.CE)
		k := 0

		row[k] = 1.0 // intercept
		k++

		if trend != 0 {
			row[k] = ce
			k++
		}

		for mode := 1; mode <= modes; mode++ {
			f := float64(mode) * 2 * math.Pi / 365.0 * ce
			row[k] = math.Cos(f)
			k++
			row[k] = math.Sin(f)
			k++
		}

		terms[i] = row
	}

	return terms
}

// Predict evaluates the harmonic model at one pixel: sum(terms[k] *
// coeffs[k] / COEFSCALE). All coefficients, intercept included, are
// unscaled here — the resolved form of the Open Question in spec.md §9.
// Grounded on original_source/src/utils/harmonic.c's
// predict_harmonic_value.
func Predict(termsRow []float64, coeffs []int16) float64 {
	var y float64
	for k, t := range termsRow {
		y += t * float64(coeffs[k]) / COEFSCALE
	}
	return y
}
