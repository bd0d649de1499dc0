package canopywatch

// UpdateMask propagates confirmed disturbances into a mask raster: once a
// pixel shows a positive disturbance, it is excluded (0) from all future
// runs. Grounded on original_source/src/update_mask.c: copy mask through
// unchanged except where disturbance is valid and positive.
func UpdateMask(disturbance, mask *Image, workers int) *Image {
	out := CopyImage(disturbance, 1, SHRTMIN, "")

	ParallelForPixels(out.NC, workers, func(start, end int) {
		for p := start; p < end; p++ {
			out.Data[0][p] = mask.At(0, p)

			if !mask.Valid(0, p) || mask.At(0, p) == 0 || !disturbance.Valid(0, p) {
				continue
			}
			if disturbance.At(0, p) > 0 {
				out.Data[0][p] = 0
			}
		}
	})

	return out
}
