package canopywatch

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/airbusgeo/godal"
)

// SHRTMIN is the nodata sentinel shared by every raster in this system
// (reference-period, variability, disturbance, mask, coefficients).
const SHRTMIN int16 = -32768

// COEFSCALE is the fixed-point scale applied to every harmonic coefficient
// (intercept included, per the resolved Open Question in spec.md §9) before
// it is stored as an int16.
const COEFSCALE = 10.0

// Image is an aligned raster: nx*ny pixels, nb bands, one shared nodata
// sentinel, band-major int16 storage. Grounded on
// original_source/src/utils/image_io.h's image_t.
type Image struct {
	NX, NY, NC, NB int
	NoData         int16
	Projection     string
	GeoTransform   [6]float64
	Data           [][]int16
	Path           string
}

// BandList is an optional projection of bands to read from a multi-band
// source raster, paired with their centre wavelengths in micrometres.
// Used only by the spectral-index stage (spec.md §3).
type BandList struct {
	Number     []int
	Wavelength []float64
}

// ParseBandList parses the -b flag's "band:wavelength,band:wavelength,..."
// syntax into a BandList, in the {R, NIR, SWIR1} order spec.md §4.7's
// continuum-removal formula expects. Grounded on date.go's
// strconv-based filename parsing idiom, applied to a flag value instead of
// a basename.
func ParseBandList(spec string) (*BandList, error) {
	parts := strings.Split(spec, ",")
	bands := &BandList{Number: make([]int, len(parts)), Wavelength: make([]float64, len(parts))}

	for i, part := range parts {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: band-list entry %q must be band:wavelength", ErrInvalidBandList, part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: band index %q", ErrInvalidBandList, fields[0])
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: wavelength %q", ErrInvalidBandList, fields[1])
		}
		bands.Number[i] = n
		bands.Wavelength[i] = w
	}

	return bands, nil
}

// At returns the value of band b at pixel p.
func (img *Image) At(b, p int) int16 { return img.Data[b][p] }

// Valid reports whether the value at band b, pixel p is not nodata.
func (img *Image) Valid(b, p int) bool { return img.Data[b][p] != img.NoData }

// ReadImage opens path, validates it carries a nodata value on every band
// read, and materializes the requested bands (or all bands, if bands is
// nil) into memory. Grounded on
// original_source/src/utils/image_io.c's read_image, using
// github.com/airbusgeo/godal in place of direct GDAL C calls.
func ReadImage(path string, bands *BandList) (*Image, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	img := &Image{
		NX:         st.SizeX,
		NY:         st.SizeY,
		NC:         st.SizeX * st.SizeY,
		Projection: ds.Projection(),
		Path:       path,
	}

	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("reading geotransform of %s: %w", path, err)
	}
	img.GeoTransform = gt

	allBands := ds.Bands()

	var indices []int
	if bands != nil {
		if len(bands.Number) < 1 {
			return nil, fmt.Errorf("%w: no bands specified for %s", ErrInvalidBandList, path)
		}
		for _, n := range bands.Number {
			if n < 1 || n > len(allBands) {
				return nil, fmt.Errorf("band number %d out of range for %s", n, path)
			}
		}
		indices = bands.Number
	} else {
		for i := range allBands {
			indices = append(indices, i+1)
		}
	}

	img.NB = len(indices)
	img.Data = make([][]int16, img.NB)

	for i, n := range indices {
		band := allBands[n-1]

		nodata, ok := band.NoData()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingNoData, path)
		}
		img.NoData = int16(nodata)

		buf := make([]int16, img.NC)
		if err := band.Read(0, 0, buf, img.NX, img.NY); err != nil {
			return nil, fmt.Errorf("reading band %d from %s: %w", n, path, err)
		}
		img.Data[i] = buf
	}

	return img, nil
}

// CopyImage allocates a new output raster sharing from's geometry
// (dimensions, projection, geotransform) with nbands bands, nodata-filled.
// Grounded on original_source/src/utils/image_io.c's copy_image.
func CopyImage(from *Image, nbands int, nodata int16, path string) *Image {
	out := &Image{
		NX:           from.NX,
		NY:           from.NY,
		NC:           from.NC,
		NB:           nbands,
		NoData:       nodata,
		Projection:   from.Projection,
		GeoTransform: from.GeoTransform,
		Path:         path,
		Data:         make([][]int16, nbands),
	}
	for b := 0; b < nbands; b++ {
		buf := make([]int16, out.NC)
		for p := range buf {
			buf[p] = nodata
		}
		out.Data[b] = buf
	}
	return out
}

// WriteImage creates a tiled, ZSTD-compressed, BigTIFF-enabled GeoTIFF and
// writes every band, per spec.md §6's creation-option table. Grounded on
// original_source/src/utils/image_io.c's write_image.
func WriteImage(img *Image) error {
	opts := []godal.DatasetCreateOption{
		godal.CreationOption(
			"TILED=YES",
			"BLOCKXSIZE=256",
			"BLOCKYSIZE=256",
			"COMPRESS=ZSTD",
			"PREDICTOR=2",
			"INTERLEAVE=BAND",
			"BIGTIFF=YES",
		),
	}

	ds, err := godal.Create(godal.GTiff, img.Path, img.NB, godal.Int16, img.NX, img.NY, opts...)
	if err != nil {
		return fmt.Errorf("creating %s: %w", img.Path, err)
	}
	defer ds.Close()

	bands := ds.Bands()
	for b := 0; b < img.NB; b++ {
		if err := bands[b].Write(0, 0, img.Data[b], img.NX, img.NY); err != nil {
			return fmt.Errorf("writing band %d to %s: %w", b+1, img.Path, err)
		}
		if err := bands[b].SetNoData(float64(img.NoData)); err != nil {
			return fmt.Errorf("setting nodata on %s: %w", img.Path, err)
		}
	}

	if err := ds.SetGeoTransform(img.GeoTransform); err != nil {
		return fmt.Errorf("setting geotransform on %s: %w", img.Path, err)
	}
	if err := ds.SetProjection(img.Projection); err != nil {
		return fmt.Errorf("setting projection on %s: %w", img.Path, err)
	}

	return nil
}

// CompareImages enforces the compatibility invariant of spec.md §3: two
// images must share (nx, ny, nc, projection, geotransform). Grounded on
// original_source/src/utils/image_io.c's compare_images.
func CompareImages(a, b *Image) error {
	if a.NX != b.NX || a.NY != b.NY || a.NC != b.NC {
		return fmt.Errorf("%w: %s (%dx%d) vs %s (%dx%d)", ErrDimensionMismatch,
			a.Path, a.NX, a.NY, b.Path, b.NX, b.NY)
	}
	if a.Projection != b.Projection {
		return fmt.Errorf("%w: %s vs %s", ErrProjectionMismatch, a.Path, b.Path)
	}
	if a.GeoTransform != b.GeoTransform {
		return fmt.Errorf("%w: %s vs %s", ErrGeoTransformMismatch, a.Path, b.Path)
	}
	return nil
}

// CheckOutputPath enforces the "output must not pre-exist" configuration
// invariant (spec.md §6/§7) before any raster is opened or allocated.
func CheckOutputPath(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrOutputExists, path)
	}
	return nil
}

// CheckInputPath enforces the "input must exist" configuration invariant.
func CheckInputPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrInputMissing, path)
	}
	return nil
}
