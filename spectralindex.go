package canopywatch

import "fmt"

// Sentinel-2 and Landsat band-number mappings for the continuum-removed
// SWIR1 index, per spec.md §4.7: {R, NIR, SWIR1} at roughly
// {0.864, 1.609, 2.202} micrometres. Landsat's six-band reflectance stack
// carries four fewer bands than Sentinel-2's ten, so the same three
// quantities land four positions earlier.
var (
	sentinel2Bands = []int{8, 9, 10}
	landsatBands   = []int{4, 5, 6}

	sentinel2Wavelengths = []float64{0.864, 1.609, 2.202}
)

// SpectralIndex computes the continuum-removed index for every pixel of a
// single-date reflectance image, gated by quality and mask. Grounded on
// spec.md §4.7/§4.8 directly: the original_source/src/spectral_index.c
// fragment in this pack carries only CLI argument parsing, not the index
// arithmetic, so the formula and band maps come from the specification
// text, cross-checked against quality.c's bit layout for the QAI gate
// (used in UseThisPixel).
//
// bands overrides the default Sentinel-2/Landsat band-count detection
// with an explicit {R, NIR, SWIR1} projection (spec.md §3's Band-list,
// SPEC_FULL.md §7's -b flag); pass nil to use the default mapping.
func SpectralIndex(reflectance, qai, mask *Image, bands *BandList, workers int) (*Image, error) {
	var rBand, nirBand, swirBand int
	var lambda0, lambda1, lambda2 float64

	if bands != nil {
		if len(bands.Number) != 3 || len(bands.Wavelength) != 3 {
			return nil, fmt.Errorf("%w: band-list must name exactly 3 bands (R, NIR, SWIR1)", ErrInvalidBandList)
		}
		rBand, nirBand, swirBand = 0, 1, 2
		lambda0, lambda1, lambda2 = bands.Wavelength[0], bands.Wavelength[1], bands.Wavelength[2]
	} else {
		defaultBands := sentinel2Bands
		if reflectance.NB == 6 {
			defaultBands = landsatBands
		}
		if reflectance.NB < defaultBands[2] {
			return nil, fmt.Errorf("reflectance raster has %d bands, the default band mapping needs at least %d", reflectance.NB, defaultBands[2])
		}
		rBand, nirBand, swirBand = defaultBands[0]-1, defaultBands[1]-1, defaultBands[2]-1
		lambda0, lambda1, lambda2 = sentinel2Wavelengths[0], sentinel2Wavelengths[1], sentinel2Wavelengths[2]
	}

	out := CopyImage(reflectance, 1, SHRTMIN, "")

	ParallelForPixels(out.NC, workers, func(start, end int) {
		for p := start; p < end; p++ {
			if !mask.Valid(0, p) || mask.At(0, p) == 0 {
				continue
			}
			if !qai.Valid(0, p) || !UseThisPixel(qai.At(0, p)) {
				continue
			}
			if !reflectance.Valid(rBand, p) || !reflectance.Valid(nirBand, p) || !reflectance.Valid(swirBand, p) {
				continue
			}

			r := float64(reflectance.At(rBand, p))
			nir := float64(reflectance.At(nirBand, p))
			swir1 := float64(reflectance.At(swirBand, p))

			interp := (r*(lambda2-lambda1) + swir1*(lambda1-lambda0)) / (lambda2 - lambda0)
			out.Data[0][p] = int16(nir - interp)
		}
	})

	return out, nil
}
