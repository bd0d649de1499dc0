package canopywatch

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrFitFailed marks a per-pixel robust fit that could not be solved (e.g.
// a singular design). This is never fatal to a stage (spec.md §7): the
// caller degrades the pixel to nodata and continues.
var ErrFitFailed = errors.New("robust fit failed")

const (
	bisquareTuning = 4.685
	irlsMaxIter    = 50
	irlsTol        = 1e-6
)

// RobustFit is a per-worker IRLS fitter created inside the parallel region
// (spec.md §5). It holds only the coefficient count; the weights,
// residuals, design and solution buffers are allocated afresh by each Fit
// call rather than reused across pixels.
type RobustFit struct {
	nCoef int
}

// NewRobustFit creates an IRLS fitter for a given coefficient count. One
// instance is created per worker, not per pixel.
func NewRobustFit(nCoef int) *RobustFit {
	return &RobustFit{nCoef: nCoef}
}

// Fit performs iteratively reweighted least squares with a bisquare
// (Tukey) weight function: fit y ~= X*c, downweighting residuals beyond
// ~4.685 robust-sigma, to a fixed iteration budget. Non-convergence is not
// an error — the last iterate's coefficients are returned regardless, per
// spec.md §4.2. A singular weighted design is solved through the SVD
// fallback in weightedLeastSquares; only a failed SVD factorization
// surfaces as ErrFitFailed, so the caller can mark the pixel unfit instead
// of panicking.
//
// Grounded on original_source/src/utils/harmonic.c's irls_fit (GSL
// gsl_multifit_robust_bisquare) for the iterate-reweight-resolve shape,
// and on ADGArrio-Influenza_Causality_AR_Project/application/functions.go's
// SVD-based weighted least squares solve for the Go numerical idiom.
func (rf *RobustFit) Fit(x [][]float64, y []float64) (coeffs []float64, cov [][]float64, sd float64, err error) {
	n := len(y)
	p := rf.nCoef

	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1.0
	}

	var c *mat.VecDense
	var residuals []float64

	for iter := 0; iter < irlsMaxIter; iter++ {
		newC, newCov, ferr := weightedLeastSquares(x, y, weights, p)
		if ferr != nil {
			return nil, nil, 0, ferr
		}

		residuals = make([]float64, n)
		for i := 0; i < n; i++ {
			var pred float64
			for k := 0; k < p; k++ {
				pred += x[i][k] * newC.AtVec(k)
			}
			residuals[i] = y[i] - pred
		}

		converged := c != nil && maxAbsDelta(c, newC) < irlsTol
		c = newC
		cov = newCov

		if converged {
			break
		}

		scale := madScale(residuals)
		if scale == 0 {
			break
		}
		for i := 0; i < n; i++ {
			weights[i] = bisquareWeight(residuals[i] / (bisquareTuning * scale))
		}
	}

	sd = residualStdDev(residuals, p)

	coeffs = make([]float64, p)
	for k := 0; k < p; k++ {
		coeffs[k] = c.AtVec(k)
	}

	return coeffs, cov, sd, nil
}

// weightedLeastSquares solves min ||W^(1/2)(y - X*c)||^2. The primary path
// is mat.VecDense.SolveVec, the same direct least-squares solve
// ADGArrio-Influenza_Causality_AR_Project/application/functions.go uses for
// its unrestricted VAR regression. When the reweighted design is singular
// (SolveVec returns an error — the ill-conditioned constant-only designs
// spec.md §4.2 calls out), this falls back to an SVD pseudoinverse solve at
// the design's numerical rank, mirroring that same file's xtxInv-fails-try-
// SVD fallback (mat.SVD.Factorize + Rank + SolveTo).
func weightedLeastSquares(x [][]float64, y []float64, weights []float64, p int) (*mat.VecDense, [][]float64, error) {
	n := len(y)

	xwData := make([]float64, n*p)
	ywData := make([]float64, n)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(weights[i])
		for k := 0; k < p; k++ {
			xwData[i*p+k] = x[i][k] * sw
		}
		ywData[i] = y[i] * sw
	}

	xw := mat.NewDense(n, p, xwData)
	yw := mat.NewVecDense(n, ywData)

	var c mat.VecDense
	if err := c.SolveVec(xw, yw); err != nil {
		svdC, svdCov, svdErr := svdFallbackSolve(xw, yw, p)
		if svdErr != nil {
			return nil, nil, svdErr
		}
		return svdC, svdCov, nil
	}

	cov := designCov(xw, p)

	return &c, cov, nil
}

// svdFallbackSolve resolves a singular weighted design via its SVD
// pseudoinverse, solving at the numerically-determined rank instead of
// aborting, per spec.md §4.2's "must not abort on singular systems".
func svdFallbackSolve(xw *mat.Dense, yw *mat.VecDense, p int) (*mat.VecDense, [][]float64, error) {
	var svd mat.SVD
	if ok := svd.Factorize(xw, mat.SVDFullU|mat.SVDFullV); !ok {
		return nil, nil, ErrFitFailed
	}

	rank := svd.Rank(1e-12)
	n, _ := xw.Dims()
	if rank == 0 {
		return mat.NewVecDense(p, nil), make([][]float64, p), nil
	}

	ywDense := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		ywDense.Set(i, 0, yw.AtVec(i))
	}

	var cDense mat.Dense
	svd.SolveTo(&cDense, ywDense, rank)

	c := mat.NewVecDense(p, nil)
	for k := 0; k < p; k++ {
		c.SetVec(k, cDense.At(k, 0))
	}

	cov := pseudoInverseCov(&svd, p)

	return c, cov, nil
}

// designCov derives the coefficient covariance (X'X)^-1 of a non-singular
// weighted design via its SVD, used on the common, well-conditioned path
// where SolveVec already succeeded.
func designCov(xw *mat.Dense, p int) [][]float64 {
	var svd mat.SVD
	if ok := svd.Factorize(xw, mat.SVDFullU|mat.SVDFullV); !ok {
		return make([][]float64, p)
	}
	return pseudoInverseCov(&svd, p)
}

// pseudoInverseCov derives an approximate coefficient covariance matrix
// (V * diag(1/s^2) * V^T) from the SVD of the weighted design, per
// spec.md §4.2's "Outputs: ... covariance cov (n_coef x n_coef)".
func pseudoInverseCov(svd *mat.SVD, p int) [][]float64 {
	var v mat.Dense
	svd.VTo(&v)
	s := svd.Values(nil)

	cov := make([][]float64, p)
	for i := range cov {
		cov[i] = make([]float64, p)
	}

	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			var sum float64
			for k := 0; k < len(s); k++ {
				if s[k] <= 1e-12 {
					continue
				}
				sum += v.At(i, k) * v.At(j, k) / (s[k] * s[k])
			}
			cov[i][j] = sum
		}
	}
	return cov
}

func maxAbsDelta(a, b *mat.VecDense) float64 {
	var max float64
	for i := 0; i < a.Len(); i++ {
		d := math.Abs(a.AtVec(i) - b.AtVec(i))
		if d > max {
			max = d
		}
	}
	return max
}

// madScale estimates a robust scale from the median absolute deviation,
// the standard normalization (divide by 0.6745) used to feed a bisquare
// weight function.
func madScale(residuals []float64) float64 {
	abs := make([]float64, len(residuals))
	for i, r := range residuals {
		abs[i] = math.Abs(r)
	}
	sort.Float64s(abs)
	med := median(abs)
	return med / 0.6745
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// bisquareWeight is Tukey's biweight function evaluated at a standardized
// residual u.
func bisquareWeight(u float64) float64 {
	if math.Abs(u) >= 1 {
		return 0
	}
	t := 1 - u*u
	return t * t
}

// residualStdDev computes the (unweighted) residual standard deviation of
// the final iterate, used as the reference-period sd output (spec.md §4.4).
func residualStdDev(residuals []float64, p int) float64 {
	n := len(residuals)
	if n <= p {
		return 0
	}
	var sum float64
	for _, r := range residuals {
		sum += r * r
	}
	return math.Sqrt(sum / float64(n-p))
}
