package canopywatch

import "testing"

func TestCombineDisturbancesLastPositiveWins(t *testing.T) {
	first := newTestImage(1, 1, 2, SHRTMIN)
	first.Data[0][0] = 2018
	first.Data[1][0] = 120

	second := newTestImage(1, 1, 2, SHRTMIN)
	second.Data[0][0] = 2020
	second.Data[1][0] = 140

	out := CombineDisturbances([]*Image{first, second}, 0)
	if out.Data[0][0] != 2020 {
		t.Errorf("band0 = %d, want 2020 (later input wins)", out.Data[0][0])
	}
	if out.Data[1][0] != 140 {
		t.Errorf("band1 = %d, want 140 (later input wins)", out.Data[1][0])
	}
}

func TestCombineDisturbancesLaterNodataDoesNotOverwrite(t *testing.T) {
	first := newTestImage(1, 1, 2, SHRTMIN)
	first.Data[0][0] = 2018
	first.Data[1][0] = 120

	second := newTestImage(1, 1, 2, SHRTMIN)
	// second stays nodata on both bands: no detection in that year.

	out := CombineDisturbances([]*Image{first, second}, 0)
	if out.Data[0][0] != 2018 {
		t.Errorf("band0 = %d, want 2018 (nodata input should not overwrite)", out.Data[0][0])
	}
	if out.Data[1][0] != 120 {
		t.Errorf("band1 = %d, want 120 (nodata input should not overwrite)", out.Data[1][0])
	}
}

func TestCombineDisturbancesAllNodataStaysNodata(t *testing.T) {
	first := newTestImage(1, 1, 2, SHRTMIN)
	second := newTestImage(1, 1, 2, SHRTMIN)

	out := CombineDisturbances([]*Image{first, second}, 0)
	if out.Data[0][0] != SHRTMIN || out.Data[1][0] != SHRTMIN {
		t.Errorf("expected nodata on every band when no input ever detects a disturbance")
	}
}

func TestCombineDisturbancesNonPositiveValueIgnored(t *testing.T) {
	first := newTestImage(1, 1, 2, SHRTMIN)
	first.Data[0][0] = 2018
	first.Data[1][0] = 120

	second := newTestImage(1, 1, 2, SHRTMIN)
	second.Data[0][0] = 0 // not a positive disturbance year

	out := CombineDisturbances([]*Image{first, second}, 0)
	if out.Data[0][0] != 2018 {
		t.Errorf("band0 = %d, want 2018 (non-positive value must not overwrite)", out.Data[0][0])
	}
}
