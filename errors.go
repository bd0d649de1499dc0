package canopywatch

import "errors"

// Configuration errors: unknown flag, out-of-range value, pre-existing
// output, missing input. These abort before any heavy work (spec.md §7).
var (
	ErrOutputExists    = errors.New("output file already exists")
	ErrInputMissing    = errors.New("input file does not exist")
	ErrNoInputImages   = errors.New("at least one input image must be provided")
	ErrInvalidCPUCount = errors.New("number of worker threads must be at least 1")
	ErrInvalidModes    = errors.New("modes must be 1, 2, or 3")
	ErrInvalidTrend    = errors.New("trend must be 0 or 1")
	ErrInvalidYear     = errors.New("year must be between 1970 and 2100")
	ErrInvalidConfirm  = errors.New("confirmation number must be at least 1")
	ErrZeroThreshold   = errors.New("threshold must be non-zero")
	ErrTooFewCoefs     = errors.New("number of coefficients must be at least 3")
	ErrInvalidBandList = errors.New("band-list must be a comma-separated list of band:wavelength pairs")
)

// Alignment errors: dimension / projection / geotransform mismatch across
// input rasters, or a raster band with no nodata value.
var (
	ErrDimensionMismatch    = errors.New("image dimensions do not match")
	ErrProjectionMismatch   = errors.New("image projections do not match")
	ErrGeoTransformMismatch = errors.New("image geotransforms do not match")
	ErrMissingNoData        = errors.New("raster band has no nodata value set")
)

// Stack ordering errors: non-monotone ce, wrong-year image.
var (
	ErrStackNotOrdered = errors.New("input images must be ordered by date, earliest to latest")
	ErrStackWrongYear  = errors.New("input images should be from the same year")
	ErrNoYearMatch     = errors.New("no input image from the requested year was given")
	ErrFutureImage     = errors.New("input images must not include data from after the target year")
)

// Shape errors: coefficient band count mismatch against n_coef(modes, trend).
var ErrCoefficientShape = errors.New("coefficient raster band count does not match modes/trend configuration")
