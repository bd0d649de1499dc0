package main

import (
	"log"
	"os"

	"github.com/airbusgeo/godal"
	"github.com/urfave/cli/v2"

	cw "github.com/forestpulse/canopywatch"
)

// readStack opens every input path as an Image, in order, deriving its
// date from the basename and validating the ascending-ce ordering
// invariant spec.md §6 requires of every input stack.
func readStack(paths []string) ([]*cw.Image, []cw.Date, error) {
	images := make([]*cw.Image, len(paths))
	dates := make([]cw.Date, len(paths))

	for i, p := range paths {
		if err := cw.CheckInputPath(p); err != nil {
			return nil, nil, err
		}

		img, err := cw.ReadImage(p, nil)
		if err != nil {
			return nil, nil, err
		}
		images[i] = img

		d, err := cw.DateFromFilename(p)
		if err != nil {
			return nil, nil, err
		}
		dates[i] = d
	}

	if !cw.Ordered(dates) {
		return nil, nil, cw.ErrStackNotOrdered
	}

	return images, dates, nil
}

func checkAligned(mask *cw.Image, others ...*cw.Image) error {
	for _, o := range others {
		if err := cw.CompareImages(mask, o); err != nil {
			return err
		}
	}
	return nil
}

// workerCount validates and returns the -j flag, per spec.md §6/§7 and
// args_reference_period.c's n_cpus < 1 abort.
func workerCount(cCtx *cli.Context) (int, error) {
	n := cCtx.Int("j")
	if n < 1 {
		return 0, cw.ErrInvalidCPUCount
	}
	return n, nil
}

// validateModesTrend enforces the only model-selection grid spec.md §1/§6
// allows: modes in {1,2,3}, trend in {0,1}.
func validateModesTrend(modes, trend int) error {
	switch modes {
	case 1, 2, 3:
	default:
		return cw.ErrInvalidModes
	}
	switch trend {
	case 0, 1:
	default:
		return cw.ErrInvalidTrend
	}
	return nil
}

// bandValidCounts counts, per band, how many pixels of img carry a non-
// nodata value — fed to cw.Summarize as a sanity check that the output
// coefficients raster was populated consistently across its bands, since
// they are all produced from the same per-pixel fit and should agree.
func bandValidCounts(img *cw.Image) []int {
	counts := make([]int, img.NB)
	for b := 0; b < img.NB; b++ {
		for p := 0; p < img.NC; p++ {
			if img.Valid(b, p) {
				counts[b]++
			}
		}
	}
	return counts
}

func referencePeriodAction(cCtx *cli.Context) error {
	outCoefPath := cCtx.String("c")
	outPeriodPath := cCtx.String("out-period")
	if err := cw.CheckOutputPath(outCoefPath); err != nil {
		return err
	}
	if err := cw.CheckOutputPath(outPeriodPath); err != nil {
		return err
	}

	workers, err := workerCount(cCtx)
	if err != nil {
		return err
	}

	modes, trend := cCtx.Int("m"), cCtx.Int("t")
	if err := validateModesTrend(modes, trend); err != nil {
		return err
	}
	year := cCtx.Int("y")
	if year < 1970 || year > 2100 {
		return cw.ErrInvalidYear
	}
	confirmation := cCtx.Int("n")
	if confirmation < 1 {
		return cw.ErrInvalidConfirm
	}
	threshold := cCtx.Float64("s")
	if threshold == 0 {
		return cw.ErrZeroThreshold
	}

	paths := cCtx.Args().Slice()
	if len(paths) == 0 {
		return cw.ErrNoInputImages
	}

	log.Println("Reading input stack")
	input, dates, err := readStack(paths)
	if err != nil {
		return err
	}

	log.Println("Reading mask and previous state")
	mask, err := cw.ReadImage(cCtx.String("x"), nil)
	if err != nil {
		return err
	}

	initial := false
	var prevCoef, prevPeriod *cw.Image

	inCoefPath := cCtx.String("i")
	prevCoef, err = cw.ReadImage(inCoefPath, nil)
	if err != nil {
		return err
	}
	if err := checkAligned(mask, prevCoef); err != nil {
		return err
	}
	if prevCoef.NB == 1 {
		initial = true
	} else {
		prevPeriod, err = cw.ReadImage(cCtx.String("p"), nil)
		if err != nil {
			return err
		}
		if err := checkAligned(mask, prevPeriod); err != nil {
			return err
		}
	}

	iBreak := -1
	for i, d := range dates {
		if d.Year == year && iBreak < 0 {
			iBreak = i
		}
		if d.Year > year {
			return cw.ErrFutureImage
		}
	}
	if iBreak < 0 {
		return cw.ErrNoYearMatch
	}

	for _, img := range input {
		if err := checkAligned(mask, img); err != nil {
			return err
		}
	}

	cfg := cw.ReferencePeriodConfig{
		Modes:              modes,
		Trend:              trend,
		Year:               year,
		Threshold:          threshold,
		ConfirmationNumber: confirmation,
	}

	log.Println("Fitting reference period")
	outCoef, outPeriod, stats := cw.FitReferencePeriod(input, dates, mask, prevCoef, prevPeriod, initial, iBreak, cfg, workers)
	outCoef.Path = outCoefPath
	outPeriod.Path = outPeriodPath

	log.Printf("Fitted new models for %d out of %d pixels, i.e. %.2f%%.\n",
		stats.Fit, stats.Pixels, 100*float64(stats.Fit)/float64(stats.Pixels))
	log.Printf("Stopped to extend the reference period for %d pixels, i.e. %.2f%%.\n",
		stats.NewlyBroken, 100*float64(stats.NewlyBroken)/float64(stats.Pixels))
	log.Printf("Reference period already ended earlier for %d pixels, i.e. %.2f%%.\n",
		stats.AlreadyBroken, 100*float64(stats.AlreadyBroken)/float64(stats.Pixels))

	coefQuality := cw.Summarize(bandValidCounts(outCoef))
	if !coefQuality.ConsistentRun {
		log.Printf("Warning: output coefficient bands carry inconsistent valid-pixel counts (min=%d, max=%d)",
			coefQuality.MinCount, coefQuality.MaxCount)
	}

	if err := cw.WriteImage(outCoef); err != nil {
		return err
	}
	if err := cw.WriteImage(outPeriod); err != nil {
		return err
	}

	if summaryPath := cCtx.String("summary-json"); summaryPath != "" {
		summary := struct {
			cw.ReferencePeriodStats
			CoefficientBandQuality cw.QualityInfo `json:"coefficient_band_quality"`
		}{stats, coefQuality}
		if _, err := cw.WriteJson(summaryPath, summary); err != nil {
			return err
		}
	}

	return nil
}

func disturbanceDetectionAction(cCtx *cli.Context) error {
	outPath := cCtx.String("o")
	if err := cw.CheckOutputPath(outPath); err != nil {
		return err
	}

	workers, err := workerCount(cCtx)
	if err != nil {
		return err
	}

	modes, trend := cCtx.Int("m"), cCtx.Int("t")
	if err := validateModesTrend(modes, trend); err != nil {
		return err
	}
	confirmation := cCtx.Int("n")
	if confirmation < 1 {
		return cw.ErrInvalidConfirm
	}
	thresholdResidual := cCtx.Float64("d")
	thresholdVariability := cCtx.Float64("s")
	if thresholdResidual == 0 {
		return cw.ErrZeroThreshold
	}

	paths := cCtx.Args().Slice()
	if len(paths) == 0 {
		return cw.ErrNoInputImages
	}

	log.Println("Reading input stack")
	input, dates, err := readStack(paths)
	if err != nil {
		return err
	}
	for i := 1; i < len(dates); i++ {
		if dates[i].Year != dates[i-1].Year {
			return cw.ErrStackWrongYear
		}
	}

	log.Println("Reading mask, variability and coefficients")
	mask, err := cw.ReadImage(cCtx.String("x"), nil)
	if err != nil {
		return err
	}
	variability, err := cw.ReadImage(cCtx.String("r"), nil)
	if err != nil {
		return err
	}
	coefficients, err := cw.ReadImage(cCtx.String("c"), nil)
	if err != nil {
		return err
	}
	if err := checkAligned(mask, variability, coefficients); err != nil {
		return err
	}
	for _, img := range input {
		if err := checkAligned(coefficients, img); err != nil {
			return err
		}
	}

	nCoef, err := cw.NumCoefficients(modes, trend)
	if err != nil {
		return err
	}
	if nCoef != coefficients.NB {
		return cw.ErrCoefficientShape
	}

	cfg := cw.DisturbanceConfig{
		Modes:                modes,
		Trend:                trend,
		ThresholdResidual:    thresholdResidual,
		ThresholdVariability: thresholdVariability,
		ConfirmationNumber:   confirmation,
	}

	log.Println("Detecting disturbances")
	out, stats := cw.DetectDisturbances(input, dates, mask, variability, coefficients, cfg, workers)
	out.Path = outPath

	log.Printf("Alerts were produced for %d out of %d pixels, i.e. %.2f%%.\n",
		stats.Alerts, stats.Pixels, 100*float64(stats.Alerts)/float64(stats.Pixels))
	log.Printf("Alerts were reversed for %d out of %d pixels, i.e. %.2f%%.\n",
		stats.Reversions, stats.Pixels, 100*float64(stats.Reversions)/float64(stats.Pixels))
	log.Printf("Disturbances were detected for %d out of %d pixels, i.e. %.2f%%.\n",
		stats.Detected, stats.Pixels, 100*float64(stats.Detected)/float64(stats.Pixels))
	if stats.FirstPixel >= 0 {
		x, y := cw.NewPixelCoefficients(out).Coordinate(stats.FirstPixel)
		log.Printf("A confirmed disturbance was centred near (%.1f, %.1f) in %s.\n", x, y, out.Projection)
	}

	if err := cw.WriteImage(out); err != nil {
		return err
	}

	if summaryPath := cCtx.String("summary-json"); summaryPath != "" {
		if _, err := cw.WriteJson(summaryPath, stats); err != nil {
			return err
		}
	}

	return nil
}

func temporalVariabilityAction(cCtx *cli.Context) error {
	outPath := cCtx.String("o")
	if err := cw.CheckOutputPath(outPath); err != nil {
		return err
	}

	workers, err := workerCount(cCtx)
	if err != nil {
		return err
	}

	paths := cCtx.Args().Slice()
	if len(paths) == 0 {
		return cw.ErrNoInputImages
	}

	log.Println("Reading input stack")
	input, dates, err := readStack(paths)
	if err != nil {
		return err
	}

	mask, err := cw.ReadImage(cCtx.String("x"), nil)
	if err != nil {
		return err
	}
	reference, err := cw.ReadImage(cCtx.String("p"), nil)
	if err != nil {
		return err
	}
	if err := checkAligned(mask, reference); err != nil {
		return err
	}
	for _, img := range input {
		if err := checkAligned(mask, img); err != nil {
			return err
		}
	}

	log.Println("Computing temporal variability")
	out := cw.TemporalVariability(input, dates, mask, reference, workers)
	out.Path = outPath

	return cw.WriteImage(out)
}

func spectralIndexAction(cCtx *cli.Context) error {
	outPath := cCtx.String("o")
	if err := cw.CheckOutputPath(outPath); err != nil {
		return err
	}

	workers, err := workerCount(cCtx)
	if err != nil {
		return err
	}

	var bands *cw.BandList
	if spec := cCtx.String("b"); spec != "" {
		bands, err = cw.ParseBandList(spec)
		if err != nil {
			return err
		}
	}

	reflectance, err := cw.ReadImage(cCtx.String("r"), bands)
	if err != nil {
		return err
	}
	qai, err := cw.ReadImage(cCtx.String("q"), nil)
	if err != nil {
		return err
	}
	mask, err := cw.ReadImage(cCtx.String("x"), nil)
	if err != nil {
		return err
	}
	if err := checkAligned(reflectance, qai, mask); err != nil {
		return err
	}

	log.Println("Computing spectral index")
	out, err := cw.SpectralIndex(reflectance, qai, mask, bands, workers)
	if err != nil {
		return err
	}
	out.Path = outPath

	return cw.WriteImage(out)
}

func updateMaskAction(cCtx *cli.Context) error {
	outPath := cCtx.String("o")
	if err := cw.CheckOutputPath(outPath); err != nil {
		return err
	}

	workers, err := workerCount(cCtx)
	if err != nil {
		return err
	}

	disturbance, err := cw.ReadImage(cCtx.String("r"), nil)
	if err != nil {
		return err
	}
	mask, err := cw.ReadImage(cCtx.String("x"), nil)
	if err != nil {
		return err
	}
	if err := cw.CompareImages(disturbance, mask); err != nil {
		return err
	}

	log.Println("Updating mask")
	out := cw.UpdateMask(disturbance, mask, workers)
	out.Path = outPath

	return cw.WriteImage(out)
}

func combineDisturbancesAction(cCtx *cli.Context) error {
	outPath := cCtx.String("o")
	if err := cw.CheckOutputPath(outPath); err != nil {
		return err
	}

	workers, err := workerCount(cCtx)
	if err != nil {
		return err
	}

	paths := cCtx.Args().Slice()
	if len(paths) == 0 {
		return cw.ErrNoInputImages
	}

	inputs := make([]*cw.Image, len(paths))
	for i, p := range paths {
		img, err := cw.ReadImage(p, nil)
		if err != nil {
			return err
		}
		if i > 0 {
			if err := cw.CompareImages(inputs[0], img); err != nil {
				return err
			}
		}
		inputs[i] = img
	}

	log.Println("Combining disturbance rasters")
	out := cw.CombineDisturbances(inputs, workers)
	out.Path = outPath

	return cw.WriteImage(out)
}

func cpuFlag() *cli.IntFlag {
	return &cli.IntFlag{Name: "j", Usage: "worker thread count, N >= 1", Value: 1}
}

func main() {
	godal.RegisterAll()

	app := &cli.App{
		Name:  "canopywatch",
		Usage: "per-pixel, time-series disturbance detection over geospatial raster stacks",
		Commands: []*cli.Command{
			{
				Name:  "reference-period",
				Usage: "incrementally extend or freeze the per-pixel robust harmonic fit",
				Flags: []cli.Flag{
					cpuFlag(),
					&cli.StringFlag{Name: "x", Usage: "mask raster path", Required: true},
					&cli.StringFlag{Name: "c", Usage: "output coefficients raster path", Required: true},
					&cli.StringFlag{Name: "out-period", Usage: "output reference-period raster path", Required: true},
					&cli.StringFlag{Name: "i", Usage: "input coefficients raster path (nb=1 signals an initial run)", Required: true},
					&cli.StringFlag{Name: "p", Usage: "input reference-period raster path (ignored on an initial run)"},
					&cli.IntFlag{Name: "m", Usage: "modes (1, 2, or 3)", Required: true},
					&cli.IntFlag{Name: "t", Usage: "trend (0 or 1)"},
					&cli.IntFlag{Name: "y", Usage: "target year", Required: true},
					&cli.Float64Flag{Name: "s", Usage: "anomaly residual threshold", Required: true},
					&cli.IntFlag{Name: "n", Usage: "confirmation number", Required: true},
					&cli.StringFlag{Name: "summary-json", Usage: "optional path to write run statistics as JSON"},
				},
				Action: referencePeriodAction,
			},
			{
				Name:  "disturbance-detection",
				Usage: "detect and temporally confirm disturbances in a target year",
				Flags: []cli.Flag{
					cpuFlag(),
					&cli.StringFlag{Name: "x", Usage: "mask raster path", Required: true},
					&cli.StringFlag{Name: "r", Usage: "variability raster path", Required: true},
					&cli.StringFlag{Name: "c", Usage: "coefficients raster path", Required: true},
					&cli.StringFlag{Name: "o", Usage: "output disturbance raster path", Required: true},
					&cli.IntFlag{Name: "m", Usage: "modes (1, 2, or 3)", Required: true},
					&cli.IntFlag{Name: "t", Usage: "trend (0 or 1)"},
					&cli.Float64Flag{Name: "d", Usage: "residual threshold (non-zero)", Required: true},
					&cli.Float64Flag{Name: "s", Usage: "variability threshold multiplier", Required: true},
					&cli.IntFlag{Name: "n", Usage: "confirmation number", Required: true},
					&cli.StringFlag{Name: "summary-json", Usage: "optional path to write run statistics as JSON"},
				},
				Action: disturbanceDetectionAction,
			},
			{
				Name:  "temporal-variability",
				Usage: "per-pixel robust standard deviation over the reference window",
				Flags: []cli.Flag{
					cpuFlag(),
					&cli.StringFlag{Name: "x", Usage: "mask raster path", Required: true},
					&cli.StringFlag{Name: "p", Usage: "reference-period raster path", Required: true},
					&cli.StringFlag{Name: "o", Usage: "output variability raster path", Required: true},
				},
				Action: temporalVariabilityAction,
			},
			{
				Name:  "spectral-index",
				Usage: "continuum-removed SWIR1 index from reflectance, quality and mask",
				Flags: []cli.Flag{
					cpuFlag(),
					&cli.StringFlag{Name: "r", Usage: "reflectance raster path", Required: true},
					&cli.StringFlag{Name: "q", Usage: "quality (QAI) raster path", Required: true},
					&cli.StringFlag{Name: "x", Usage: "mask raster path", Required: true},
					&cli.StringFlag{Name: "o", Usage: "output index raster path", Required: true},
					&cli.StringFlag{Name: "b", Usage: "explicit band:wavelength list overriding the Sentinel-2/Landsat auto-detect, e.g. 8:0.864,9:1.609,10:2.202"},
				},
				Action: spectralIndexAction,
			},
			{
				Name:  "update-mask",
				Usage: "propagate confirmed disturbances into a mask raster",
				Flags: []cli.Flag{
					cpuFlag(),
					&cli.StringFlag{Name: "r", Usage: "disturbance raster path", Required: true},
					&cli.StringFlag{Name: "x", Usage: "mask raster path", Required: true},
					&cli.StringFlag{Name: "o", Usage: "output mask raster path", Required: true},
				},
				Action: updateMaskAction,
			},
			{
				Name:  "combine-disturbances",
				Usage: "fold a set of per-year disturbance rasters into one cumulative raster",
				Flags: []cli.Flag{
					cpuFlag(),
					&cli.StringFlag{Name: "o", Usage: "output raster path", Required: true},
				},
				Action: combineDisturbancesAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
