package canopywatch

import "math"

// maxCalendarYear records original_source/src/temporal_variability.c's
// fixed n_years=2100 table size ("should be enough, no?"). yearIndex keys
// a map by year instead, so this constant bounds nothing.
const maxCalendarYear = 2100

// yearRange is the half-open [Start, End) slice of the input stack's index
// space belonging to one calendar year.
type yearRange struct {
	Start, End int
}

// yearIndex builds a year -> yearRange table from an ordered date stack.
// Grounded on original_source/src/temporal_variability.c's range[year][start|end]
// table construction.
func yearIndex(dates []Date) map[int]yearRange {
	idx := make(map[int]yearRange)
	for i, d := range dates {
		r, ok := idx[d.Year]
		if !ok {
			r = yearRange{Start: i, End: i + 1}
		} else {
			if i+1 > r.End {
				r.End = i + 1
			}
		}
		idx[d.Year] = r
	}
	return idx
}

// TemporalVariability computes the per-pixel robust standard deviation
// over the reference window recorded in reference (band 0 = the final
// reference year). Grounded line-for-line on
// original_source/src/temporal_variability.c: mask gate, reference-nodata
// gate, Welford's one-pass variance recurrence (stats.c's var_recurrence/
// standdev) over the input images belonging to the reference year's
// index range.
func TemporalVariability(input []*Image, dates []Date, mask, reference *Image, workers int) *Image {
	out := CopyImage(reference, 1, SHRTMIN, "")
	ranges := yearIndex(dates)

	ParallelForPixels(out.NC, workers, func(start, end int) {
		for p := start; p < end; p++ {
			out.Data[0][p] = out.NoData

			if !mask.Valid(0, p) || mask.At(0, p) == 0 {
				continue
			}
			if !reference.Valid(0, p) {
				continue
			}

			r, ok := ranges[int(reference.At(0, p))]
			if !ok {
				continue
			}

			var mean, variance, n float64
			for i := r.Start; i < r.End; i++ {
				if !input[i].Valid(0, p) {
					continue
				}
				n++
				x := float64(input[i].At(0, p))
				oldMean := mean
				mean = oldMean + (x-oldMean)/n
				variance = variance + (x-oldMean)*(x-mean)
			}

			if n > 0 {
				out.Data[0][p] = int16(math.Sqrt(variance / (n - 1)))
			}
		}
	})

	return out
}
