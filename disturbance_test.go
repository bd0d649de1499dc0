package canopywatch

import "testing"

func buildFlatCoefficients(nCoef int, intercept int16) *Image {
	coef := newTestImage(1, 1, nCoef, SHRTMIN)
	coef.Data[0][0] = intercept
	return coef
}

func TestDetectDisturbancesStepChangeConfirmed(t *testing.T) {
	dates := buildDates([]int{2018, 2018, 2018, 2018, 2018, 2018})

	mask := newTestImage(1, 1, 1, SHRTMIN)
	mask.Data[0][0] = 1
	variability := newTestImage(1, 1, 2, SHRTMIN)
	variability.Data[1][0] = 50
	coefficients := buildFlatCoefficients(3, int16(500*COEFSCALE))

	input := make([]*Image, len(dates))
	for i := range input {
		img := newTestImage(1, 1, 1, SHRTMIN)
		img.Data[0][0] = 500
		input[i] = img
	}
	// sustained jump, well beyond threshold and variability scaling.
	for i := 2; i < 5; i++ {
		input[i].Data[0][0] = 1500
	}

	cfg := DisturbanceConfig{Modes: 1, Trend: 0, ThresholdResidual: 500, ThresholdVariability: 2, ConfirmationNumber: 3}
	out, stats := DetectDisturbances(input, dates, mask, variability, coefficients, cfg, 0)

	if stats.Detected != 1 {
		t.Fatalf("stats.Detected = %d, want 1", stats.Detected)
	}
	if out.Data[1][0] != 2018 {
		t.Errorf("disturbance year = %d, want 2018", out.Data[1][0])
	}
	if stats.FirstPixel != 0 {
		t.Errorf("stats.FirstPixel = %d, want 0", stats.FirstPixel)
	}
}

func TestDetectDisturbancesSingleSpikeDoesNotConfirm(t *testing.T) {
	dates := buildDates([]int{2018, 2018, 2018, 2018, 2018, 2018})

	mask := newTestImage(1, 1, 1, SHRTMIN)
	mask.Data[0][0] = 1
	variability := newTestImage(1, 1, 2, SHRTMIN)
	variability.Data[1][0] = 50
	coefficients := buildFlatCoefficients(3, int16(500*COEFSCALE))

	input := make([]*Image, len(dates))
	for i := range input {
		img := newTestImage(1, 1, 1, SHRTMIN)
		img.Data[0][0] = 500
		input[i] = img
	}
	input[2].Data[0][0] = 1500 // single spike, not sustained

	cfg := DisturbanceConfig{Modes: 1, Trend: 0, ThresholdResidual: 500, ThresholdVariability: 2, ConfirmationNumber: 3}
	out, stats := DetectDisturbances(input, dates, mask, variability, coefficients, cfg, 0)

	if stats.Detected != 0 {
		t.Fatalf("stats.Detected = %d, want 0", stats.Detected)
	}
	if out.Data[0][0] != SHRTMIN {
		t.Errorf("disturbance band 0 = %d, want nodata", out.Data[0][0])
	}
	if stats.FirstPixel != -1 {
		t.Errorf("stats.FirstPixel = %d, want -1 (none detected)", stats.FirstPixel)
	}
}

func TestDetectDisturbancesReversion(t *testing.T) {
	dates := buildDates([]int{2018, 2018, 2018, 2018, 2018, 2018, 2018})

	mask := newTestImage(1, 1, 1, SHRTMIN)
	mask.Data[0][0] = 1
	variability := newTestImage(1, 1, 2, SHRTMIN)
	variability.Data[1][0] = 50
	coefficients := buildFlatCoefficients(3, int16(500*COEFSCALE))

	input := make([]*Image, len(dates))
	for i := range input {
		img := newTestImage(1, 1, 1, SHRTMIN)
		img.Data[0][0] = 500
		input[i] = img
	}
	// 3 high residuals confirm, then 3 near-zero residuals revert.
	for i := 0; i < 3; i++ {
		input[i].Data[0][0] = 1500
	}
	for i := 3; i < 6; i++ {
		input[i].Data[0][0] = 500
	}

	cfg := DisturbanceConfig{Modes: 1, Trend: 0, ThresholdResidual: 500, ThresholdVariability: 2, ConfirmationNumber: 3}
	out, stats := DetectDisturbances(input, dates, mask, variability, coefficients, cfg, 0)

	if stats.Alerts != 1 || stats.Reversions != 1 {
		t.Fatalf("stats = %+v, want 1 alert and 1 reversion", stats)
	}
	if out.Data[0][0] != SHRTMIN {
		t.Errorf("reverted disturbance should emit nodata, got band0=%d", out.Data[0][0])
	}
}

func TestDetectDisturbancesMaskedPixelSkipped(t *testing.T) {
	dates := buildDates([]int{2018})

	mask := newTestImage(1, 1, 1, SHRTMIN)
	mask.Data[0][0] = 0
	variability := newTestImage(1, 1, 2, SHRTMIN)
	variability.Data[1][0] = 50
	coefficients := buildFlatCoefficients(3, int16(500*COEFSCALE))

	input := []*Image{newTestImage(1, 1, 1, SHRTMIN)}
	input[0].Data[0][0] = 1500

	cfg := DisturbanceConfig{Modes: 1, Trend: 0, ThresholdResidual: 500, ThresholdVariability: 2, ConfirmationNumber: 1}
	out, stats := DetectDisturbances(input, dates, mask, variability, coefficients, cfg, 0)

	if stats.Pixels != 0 {
		t.Fatalf("stats.Pixels = %d, want 0 (masked)", stats.Pixels)
	}
	if out.Data[0][0] != SHRTMIN {
		t.Errorf("masked pixel should be nodata, got %d", out.Data[0][0])
	}
}
