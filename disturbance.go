package canopywatch

import "sync/atomic"

// DisturbanceConfig holds one disturbance-detection run's tuning (spec.md
// §4.5): modes/trend select the harmonic basis already baked into
// coefficients, thresholdResidual/thresholdVariability gate the alert
// test, confirmationNumber is the hysteresis width shared by both the
// alert and reversion counters.
type DisturbanceConfig struct {
	Modes               int
	Trend               int
	ThresholdResidual   float64
	ThresholdVariability float64
	ConfirmationNumber  int
}

// DisturbanceStats are the per-run counters spec.md §4.5 requires logged
// at stage end: pixels-valid, alerts-raised, alerts-reverted,
// disturbances-final.
type DisturbanceStats struct {
	Pixels     int
	Alerts     int
	Reversions int
	Detected   int

	// FirstPixel is the pixel index of one confirmed disturbance pixel
	// captured while scanning (workers race to set it, so it is merely
	// representative, not necessarily raster-order first), or -1 if none
	// were detected. Callers can resolve it to a projected coordinate via
	// NewPixelCoefficients for a one-line diagnostic pinpointing where a
	// run triggered.
	FirstPixel int
}

// DetectDisturbances runs the DD engine over every pixel of a single
// target year's input stack. Grounded line-for-line on
// original_source/src/disturbance_detection.c's per-pixel parallel
// region: mask/variability/coefficient nodata gates, alert-counter rising
// edge capturing candidate, reversion test at half the residual
// threshold once confirmed, continued (non-breaking) scan to allow
// reversion within the same year (spec.md §9's resolved Open Question),
// final emission of the candidate's (ce-epoch, year, doy) triple.
func DetectDisturbances(input []*Image, dates []Date, mask, variability, coefficients *Image, cfg DisturbanceConfig, workers int) (*Image, DisturbanceStats) {
	nCoef, _ := NumCoefficients(cfg.Modes, cfg.Trend)
	terms := HarmonicTerms(dates, cfg.Modes, cfg.Trend)

	out := CopyImage(variability, 3, SHRTMIN, "")

	var pixels, alerts, reversions, detected atomic.Int64
	firstPixel := atomic.Int64{}
	firstPixel.Store(-1)

	ParallelForPixels(out.NC, workers, func(start, end int) {
		var localPixels, localAlerts, localReversions, localDetected int

		for p := start; p < end; p++ {
			if !mask.Valid(0, p) || mask.At(0, p) == 0 {
				continue
			}
			if !variability.Valid(1, p) {
				continue
			}
			if !coefficients.Valid(1, p) {
				continue
			}

			localPixels++

			alertNumber, candidate, revertNumber := 0, 0, 0
			confirmed := false

			coefCol := coefColumn(coefficients, p, nCoef)

			for i := range input {
				if !input[i].Valid(0, p) {
					continue
				}

				yPred := Predict(terms[i], coefCol)
				residual := float64(input[i].At(0, p)) - yPred

				if !confirmed {
					v := float64(variability.At(1, p))
					switch {
					case cfg.ThresholdResidual > 0 &&
						residual > cfg.ThresholdResidual &&
						residual > cfg.ThresholdVariability*v:
						alertNumber++
					case cfg.ThresholdResidual < 0 &&
						residual < cfg.ThresholdResidual &&
						residual < cfg.ThresholdVariability*v:
						alertNumber++
					default:
						alertNumber = 0
					}

					if alertNumber == 1 {
						candidate = i
					}
					if alertNumber == cfg.ConfirmationNumber {
						confirmed = true
						localAlerts++
					}
				} else {
					switch {
					case cfg.ThresholdResidual > 0 && residual < cfg.ThresholdResidual/2:
						revertNumber++
					case cfg.ThresholdResidual < 0 && residual > cfg.ThresholdResidual/2:
						revertNumber++
					default:
						revertNumber = 0
					}

					if revertNumber == cfg.ConfirmationNumber {
						confirmed = false
						localReversions++
						alertNumber = 0
						revertNumber = 0
					}
				}
			}

			if !confirmed {
				continue
			}

			localDetected++
			out.Data[0][p] = int16(dates[candidate].CE - 1970*365)
			out.Data[1][p] = int16(dates[candidate].Year)
			out.Data[2][p] = int16(dates[candidate].DOY)
			firstPixel.CompareAndSwap(-1, int64(p))
		}

		pixels.Add(int64(localPixels))
		alerts.Add(int64(localAlerts))
		reversions.Add(int64(localReversions))
		detected.Add(int64(localDetected))
	})

	stats := DisturbanceStats{
		Pixels:     int(pixels.Load()),
		Alerts:     int(alerts.Load()),
		Reversions: int(reversions.Load()),
		Detected:   int(detected.Load()),
		FirstPixel: int(firstPixel.Load()),
	}
	return out, stats
}
