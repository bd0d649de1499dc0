package canopywatch

import "github.com/samber/lo"

// QualityInfo summarizes a slice of counters (spec.md §7's run-end
// diagnostics), grounded on the teacher's qa.go QualityInfo/QInfo
// (samber/lo Max/Min used to summarize a slice of counters) adapted from
// ping beam-count consistency to per-band valid-pixel counts of an output
// raster. TotalPixels is the sum of the counts.
type QualityInfo struct {
	TotalPixels   int
	MinCount      int
	MaxCount      int
	ConsistentRun bool
}

// Summarize reduces a slice of counts (in cmd/canopywatch: one valid-pixel
// count per band of the output coefficients raster) into a QualityInfo,
// reporting whether every count is equal — a sanity diagnostic that the
// bands of one per-pixel fit were populated together.
func Summarize(counts []int) QualityInfo {
	if len(counts) == 0 {
		return QualityInfo{}
	}

	min := lo.Min(counts)
	max := lo.Max(counts)

	var total int
	for _, c := range counts {
		total += c
	}

	return QualityInfo{
		TotalPixels:   total,
		MinCount:      min,
		MaxCount:      max,
		ConsistentRun: min == max,
	}
}
