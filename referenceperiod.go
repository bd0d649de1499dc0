package canopywatch

import (
	"math"
	"sync/atomic"
)

// ReferencePeriodConfig holds the per-run tuning of the RPF engine (spec.md
// §4.4): modes/trend select the harmonic basis, year is the target year
// being extended to, threshold/confirmationNumber gate the anomaly
// counter against the previous model.
type ReferencePeriodConfig struct {
	Modes             int
	Trend             int
	Year              int
	Threshold         float64
	ConfirmationNumber int
}

// ReferencePeriodStats are the per-run counters spec.md §4.4 requires to be
// logged at stage end: pixels-processed, pixels-fit, pixels-already-broken,
// pixels-newly-broken.
type ReferencePeriodStats struct {
	Pixels         int
	Fit            int
	AlreadyBroken  int
	NewlyBroken    int
}

// FitReferencePeriod runs the RPF engine over every pixel of the stack,
// incrementally extending or freezing each pixel's harmonic fit. Grounded
// line-for-line on original_source/src/reference_period.c's per-pixel
// parallel region: mask gate, short-circuit reuse of an already-broken
// pixel, anomaly-confirmation counter against the previous model between
// iBreak and the end of the stack, extend-and-refit branch gated on
// n_valid > n_coef.
//
// initial is true on the first-ever run for this pixel grid (prevCoef is
// then the one-band sentinel raster and is not read); prevPeriod is nil in
// that case and every pixel is fit from scratch.
func FitReferencePeriod(
	input []*Image, dates []Date, mask *Image,
	prevCoef, prevPeriod *Image, initial bool,
	iBreak int, cfg ReferencePeriodConfig, workers int,
) (outCoef, outPeriod *Image, stats ReferencePeriodStats) {
	nCoef, _ := NumCoefficients(cfg.Modes, cfg.Trend)
	terms := HarmonicTerms(dates, cfg.Modes, cfg.Trend)

	outCoef = CopyImage(mask, nCoef, SHRTMIN, "")
	outPeriod = CopyImage(mask, 2, SHRTMIN, "")

	var pixels, fit, alreadyBroken, newlyBroken atomic.Int64

	ParallelForPixels(outCoef.NC, workers, func(start, end int) {
		rf := NewRobustFit(nCoef)
		var localPixels, localFit, localAlready, localNew int

		for p := start; p < end; p++ {
			for b := 0; b < outCoef.NB; b++ {
				outCoef.Data[b][p] = outCoef.NoData
			}
			for b := 0; b < outPeriod.NB; b++ {
				outPeriod.Data[b][p] = outPeriod.NoData
			}

			if !mask.Valid(0, p) || mask.At(0, p) == 0 {
				continue
			}
			localPixels++

			if !initial && int(prevPeriod.At(0, p)) < cfg.Year-1 {
				if int(prevPeriod.At(0, p)) < 1900 {
					continue
				}
				for b := 0; b < outCoef.NB; b++ {
					outCoef.Data[b][p] = prevCoef.Data[b][p]
				}
				for b := 0; b < outPeriod.NB; b++ {
					outPeriod.Data[b][p] = prevPeriod.Data[b][p]
				}
				localAlready++
				continue
			}

			stable := true

			if !initial {
				anomalyCounter := 0
				for i := iBreak; i < len(input); i++ {
					if !input[i].Valid(0, p) {
						continue
					}

					yPred := Predict(terms[i], coefColumn(prevCoef, p, nCoef))
					residual := float64(input[i].At(0, p)) - yPred

					if cfg.Threshold > 0 && residual > cfg.Threshold {
						anomalyCounter++
					} else if cfg.Threshold < 0 && residual < cfg.Threshold {
						anomalyCounter++
					} else {
						anomalyCounter = 0
					}

					if anomalyCounter >= cfg.ConfirmationNumber {
						stable = false
						for b := 0; b < outCoef.NB; b++ {
							outCoef.Data[b][p] = prevCoef.Data[b][p]
						}
						for b := 0; b < outPeriod.NB; b++ {
							outPeriod.Data[b][p] = prevPeriod.Data[b][p]
						}
						localNew++
						break
					}
				}
			}

			if !stable && !initial {
				continue
			}

			var nValid int
			for i := range input {
				if input[i].Valid(0, p) {
					nValid++
				}
			}

			if nValid <= nCoef {
				continue
			}

			x := make([][]float64, nValid)
			y := make([]float64, nValid)
			for i, k := 0, 0; i < len(input); i++ {
				if !input[i].Valid(0, p) {
					continue
				}
				x[k] = terms[i]
				y[k] = float64(input[i].At(0, p))
				k++
			}

			coeffs, _, sd, err := rf.Fit(x, y)
			if err != nil {
				continue
			}

			for b := 0; b < nCoef; b++ {
				outCoef.Data[b][p] = int16(math.Round(coeffs[b] * COEFSCALE))
			}
			outPeriod.Data[0][p] = int16(cfg.Year)
			outPeriod.Data[1][p] = int16(sd)

			localFit++
		}

		pixels.Add(int64(localPixels))
		fit.Add(int64(localFit))
		alreadyBroken.Add(int64(localAlready))
		newlyBroken.Add(int64(localNew))
	})

	stats = ReferencePeriodStats{
		Pixels:        int(pixels.Load()),
		Fit:           int(fit.Load()),
		AlreadyBroken: int(alreadyBroken.Load()),
		NewlyBroken:   int(newlyBroken.Load()),
	}
	return outCoef, outPeriod, stats
}

// coefColumn extracts pixel p's coefficient vector from a coefficient
// raster as a fixed-length slice, for use as Predict's per-pixel argument.
func coefColumn(coef *Image, p, nCoef int) []int16 {
	out := make([]int16, nCoef)
	for b := 0; b < nCoef; b++ {
		out[b] = coef.Data[b][p]
	}
	return out
}
