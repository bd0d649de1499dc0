package canopywatch

// PixelCoefficients holds a raster's affine geotransform in the form
// needed to map a pixel index to a projected coordinate, computed once
// per image and reused across every pixel. Grounded on the teacher's
// geo.go GeoCoefficients (a coefficients struct computed once, applied
// per element via a pure method) — the WGS84 across/along-track formulas
// themselves have no analogue here, since these rasters are already
// projected grids, so only that "precompute, then apply" shape survives.
type PixelCoefficients struct {
	originX, originY float64
	pixelW, pixelH   float64
	nx               int
}

// NewPixelCoefficients derives a PixelCoefficients from an image's
// geotransform ([originX, pixelW, rowRotation, originY, colRotation,
// pixelH]) and row width, for use in diagnostic messages that need a
// pixel index resolved to a map coordinate (e.g. DisturbanceStats.FirstPixel
// in cmd/canopywatch's disturbance-detection run summary).
func NewPixelCoefficients(img *Image) PixelCoefficients {
	return PixelCoefficients{
		originX: img.GeoTransform[0],
		originY: img.GeoTransform[3],
		pixelW:  img.GeoTransform[1],
		pixelH:  img.GeoTransform[5],
		nx:      img.NX,
	}
}

// Coordinate returns the centre of pixel index p as an (x, y) projected
// coordinate.
func (c PixelCoefficients) Coordinate(p int) (x, y float64) {
	col := p % c.nx
	row := p / c.nx
	x = c.originX + (float64(col)+0.5)*c.pixelW
	y = c.originY + (float64(row)+0.5)*c.pixelH
	return x, y
}
