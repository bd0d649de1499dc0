package canopywatch

// CombineDisturbances overlays a set of per-year disturbance rasters into
// one: for each pixel and band, the last valid positive value wins (later
// inputs overwrite earlier ones). Grounded on
// original_source/src/combine_disturbances.c. All inputs must already be
// compatible (CompareImages), checked by the caller before this is
// invoked.
func CombineDisturbances(inputs []*Image, workers int) *Image {
	first := inputs[0]
	out := CopyImage(first, first.NB, first.NoData, "")

	ParallelForPixels(out.NC, workers, func(start, end int) {
		for p := start; p < end; p++ {
			out.Data[0][p] = out.NoData

			for _, in := range inputs {
				for b := 0; b < in.NB; b++ {
					if in.Valid(b, p) && in.At(b, p) > 0 {
						out.Data[b][p] = in.At(b, p)
					}
				}
			}
		}
	})

	return out
}
