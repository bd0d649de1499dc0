package canopywatch

import "testing"

// newTestImage builds a minimal in-memory Image for unit tests, bypassing
// raster I/O entirely.
func newTestImage(nx, ny, nb int, nodata int16) *Image {
	img := &Image{
		NX: nx, NY: ny, NC: nx * ny, NB: nb,
		NoData:       nodata,
		Projection:   "EPSG:32632",
		GeoTransform: [6]float64{500000, 10, 0, 6000000, 0, -10},
		Data:         make([][]int16, nb),
	}
	for b := 0; b < nb; b++ {
		buf := make([]int16, img.NC)
		for i := range buf {
			buf[i] = nodata
		}
		img.Data[b] = buf
	}
	return img
}

func TestCompareImagesDimensionMismatch(t *testing.T) {
	a := newTestImage(2, 2, 1, SHRTMIN)
	b := newTestImage(3, 3, 1, SHRTMIN)

	if err := CompareImages(a, b); err == nil {
		t.Fatal("expected a dimension mismatch error, got nil")
	}
}

func TestCompareImagesCompatible(t *testing.T) {
	a := newTestImage(2, 2, 1, SHRTMIN)
	b := newTestImage(2, 2, 3, SHRTMIN)

	if err := CompareImages(a, b); err != nil {
		t.Fatalf("expected compatible images, got error: %v", err)
	}
}

func TestParseBandList(t *testing.T) {
	bands, err := ParseBandList("8:0.864,9:1.609,10:2.202")
	if err != nil {
		t.Fatalf("ParseBandList returned error: %v", err)
	}
	wantNumber := []int{8, 9, 10}
	wantWavelength := []float64{0.864, 1.609, 2.202}
	for i := range wantNumber {
		if bands.Number[i] != wantNumber[i] || bands.Wavelength[i] != wantWavelength[i] {
			t.Fatalf("entry %d = %d:%g, want %d:%g", i, bands.Number[i], bands.Wavelength[i], wantNumber[i], wantWavelength[i])
		}
	}
}

func TestParseBandListMalformed(t *testing.T) {
	if _, err := ParseBandList("8-0.864"); err == nil {
		t.Error("expected an error for an entry missing the ':' separator")
	}
	if _, err := ParseBandList("x:0.864"); err == nil {
		t.Error("expected an error for a non-numeric band index")
	}
	if _, err := ParseBandList("8:y"); err == nil {
		t.Error("expected an error for a non-numeric wavelength")
	}
}

func TestCopyImageNodataFilled(t *testing.T) {
	from := newTestImage(2, 2, 1, SHRTMIN)
	out := CopyImage(from, 2, SHRTMIN, "")

	if out.NB != 2 {
		t.Fatalf("NB = %d, want 2", out.NB)
	}
	for b := 0; b < out.NB; b++ {
		for p := 0; p < out.NC; p++ {
			if out.Data[b][p] != SHRTMIN {
				t.Fatalf("Data[%d][%d] = %d, want nodata", b, p, out.Data[b][p])
			}
		}
	}
}
