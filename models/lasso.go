// Package models fits the forecast design matrix with an L1 penalized linear regression
package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	DefaultLambda     = 1.0
	DefaultIterations = 10000
	DefaultTolerance  = 1e-6
)

var (
	ErrNoOptions          = errors.New("lasso options are not initialized")
	ErrNotFit             = errors.New("lasso regression has not been fit")
	ErrNoTrainingMatrix   = errors.New("design matrix is required for fitting")
	ErrNoTargetMatrix     = errors.New("target matrix is required for fitting")
	ErrNoDesignMatrix     = errors.New("design matrix is required for prediction")
	ErrTargetLenMismatch  = errors.New("target rows do not match design matrix rows")
	ErrFeatureLenMismatch = errors.New("design matrix columns do not match the fitted coefficients")
	ErrPenaltyLenMismatch = errors.New("penalty factors do not match design matrix columns")

	ErrNegativeLambda     = errors.New("negative lambda")
	ErrNegativePenalty    = errors.New("negative penalty factor")
	ErrNegativeIterations = errors.New("negative iterations")
	ErrNegativeTolerance  = errors.New("negative tolerance")
	ErrWarmStartBetaSize  = errors.New("warm start beta does not have the same number of coefficients as training features")
)

// LassoOptions represents input options to run the Lasso Regression
type LassoOptions struct {
	// WarmStartBeta is used to prime the coordinate descent to reduce the training time if a previous
	// fit has been performed.
	WarmStartBeta []float64

	// Lambda represents the L1 multiplier, controlling the regularization. Must be a non-negative. 0.0 results in converging
	// to Ordinary Least Squares (OLS).
	Lambda float64

	// PenaltyFactors scales Lambda per feature column. A factor of 0 leaves the feature unpenalized. If
	// empty every feature uses a factor of 1.
	PenaltyFactors []float64

	// Iterations is the maximum number of times the fit loops through training all coefficients.
	Iterations int

	// Tolerance is the largest relative coefficient change on an iteration to determine when to stop iterating.
	Tolerance float64

	// FitIntercept centers the features and target and recovers the intercept after the fit
	FitIntercept bool
}

// Validate runs basic validation on Lasso options
func (l *LassoOptions) Validate() (*LassoOptions, error) {
	if l == nil {
		l = NewDefaultLassoOptions()
	}

	if l.Lambda < 0 {
		return nil, ErrNegativeLambda
	}
	for _, p := range l.PenaltyFactors {
		if p < 0 {
			return nil, ErrNegativePenalty
		}
	}
	if l.Iterations < 0 {
		return nil, ErrNegativeIterations
	}
	if l.Tolerance < 0 {
		return nil, ErrNegativeTolerance
	}
	return l, nil
}

// NewDefaultLassoOptions returns a default set of Lasso Regression options
func NewDefaultLassoOptions() *LassoOptions {
	return &LassoOptions{
		Lambda:       DefaultLambda,
		Iterations:   DefaultIterations,
		Tolerance:    DefaultTolerance,
		FitIntercept: true,
	}
}

// LassoRegression computes the lasso regression using coordinate descent. lambda = 0 converges to OLS.
// The objective is 0.5*||y - b0 - Xb||^2 + sum_j lambda*p_j*|b_j|.
type LassoRegression struct {
	opt *LassoOptions

	coef      []float64
	intercept float64
	iters     int
	fit       bool
}

// NewLassoRegression initializes a Lasso model ready for fitting
func NewLassoRegression(opt *LassoOptions) (*LassoRegression, error) {
	opt, err := opt.Validate()
	if err != nil {
		return nil, err
	}
	return &LassoRegression{
		opt: opt,
	}, nil
}

// Fit the model according to the given training data. x has a row per observation and a
// column per feature, y is a single column of observations.
func (l *LassoRegression) Fit(x, y mat.Matrix) error {
	if err := l.fitValidate(x, y); err != nil {
		return err
	}
	m, n := x.Dims()

	xcols := make([][]float64, n)
	xmean := make([]float64, n)
	xdot := make([]float64, n)
	for j := 0; j < n; j++ {
		xcols[j] = mat.Col(nil, j, x)
	}
	yArr := mat.Col(nil, 0, y)

	var ymean float64
	if l.opt.FitIntercept {
		ymean = stat.Mean(yArr, nil)
		floats.AddConst(-ymean, yArr)
		for j := 0; j < n; j++ {
			xmean[j] = stat.Mean(xcols[j], nil)
			floats.AddConst(-xmean[j], xcols[j])
		}
	}
	for j := 0; j < n; j++ {
		xdot[j] = floats.Dot(xcols[j], xcols[j])
	}

	// tracks current betas
	beta := make([]float64, n)
	if l.opt.WarmStartBeta != nil {
		copy(beta, l.opt.WarmStartBeta)
	}

	// residual is kept in sync with every beta update
	residual := make([]float64, m)
	copy(residual, yArr)
	for j := 0; j < n; j++ {
		if beta[j] != 0 {
			floats.AddScaled(residual, -beta[j], xcols[j])
		}
	}

	var iter int
	for iter = 0; iter < l.opt.Iterations; iter++ {
		maxCoef := 0.0
		maxUpdate := 0.0

		for j := 0; j < n; j++ {
			if xdot[j] == 0 {
				beta[j] = 0
				continue
			}
			betaCurr := beta[j]
			rho := floats.Dot(xcols[j], residual) + betaCurr*xdot[j]
			betaNext := SoftThreshold(rho, l.lambda(j)) / xdot[j]

			if delta := betaNext - betaCurr; delta != 0 {
				floats.AddScaled(residual, -delta, xcols[j])
				maxUpdate = math.Max(maxUpdate, math.Abs(delta))
			}
			maxCoef = math.Max(maxCoef, math.Abs(betaNext))
			beta[j] = betaNext
		}

		// break early if we've achieved the desired tolerance
		if maxUpdate <= l.opt.Tolerance*maxCoef {
			break
		}
	}

	l.coef = beta
	l.intercept = 0
	if l.opt.FitIntercept {
		l.intercept = ymean - floats.Dot(beta, xmean)
	}
	l.iters = iter
	l.fit = true
	return nil
}

func (l *LassoRegression) lambda(j int) float64 {
	if len(l.opt.PenaltyFactors) == 0 {
		return l.opt.Lambda
	}
	return l.opt.Lambda * l.opt.PenaltyFactors[j]
}

func (l *LassoRegression) fitValidate(x, y mat.Matrix) error {
	if l.opt == nil {
		return ErrNoOptions
	}
	if x == nil {
		return ErrNoTrainingMatrix
	}
	if y == nil {
		return ErrNoTargetMatrix
	}

	m, n := x.Dims()
	ym, _ := y.Dims()
	if ym != m {
		return fmt.Errorf("training data has %d rows and target has %d row, %w", m, ym, ErrTargetLenMismatch)
	}
	if len(l.opt.PenaltyFactors) != 0 && len(l.opt.PenaltyFactors) != n {
		return fmt.Errorf("got %d penalty factors for %d features, %w", len(l.opt.PenaltyFactors), n, ErrPenaltyLenMismatch)
	}
	if l.opt.WarmStartBeta != nil && len(l.opt.WarmStartBeta) != n {
		return fmt.Errorf("warm start beta has %d features instead of %d, %w", len(l.opt.WarmStartBeta), n, ErrWarmStartBetaSize)
	}
	return nil
}

// Predict using the Lasso model
func (l *LassoRegression) Predict(x mat.Matrix) ([]float64, error) {
	if l.opt == nil {
		return nil, ErrNoOptions
	}
	if !l.fit {
		return nil, ErrNotFit
	}
	if x == nil {
		return nil, ErrNoDesignMatrix
	}

	m, n := x.Dims()
	if n != len(l.coef) {
		return nil, fmt.Errorf("got %d features in design matrix, but expected %d, %w", n, len(l.coef), ErrFeatureLenMismatch)
	}

	coefMx := mat.NewVecDense(n, l.coef)
	var res mat.VecDense
	res.MulVec(x, coefMx)

	out := make([]float64, m)
	for i := 0; i < m; i++ {
		out[i] = res.AtVec(i) + l.intercept
	}
	return out, nil
}

// Score computes the coefficient of determination of the prediction
func (l *LassoRegression) Score(x, y mat.Matrix) (float64, error) {
	if l.opt == nil {
		return 0.0, ErrNoOptions
	}
	if x == nil {
		return 0.0, ErrNoDesignMatrix
	}
	if y == nil {
		return 0.0, ErrNoTargetMatrix
	}

	m, _ := x.Dims()
	ym, _ := y.Dims()
	if m != ym {
		return 0.0, fmt.Errorf("design matrix has %d rows and target has %d rows, %w", m, ym, ErrTargetLenMismatch)
	}

	res, err := l.Predict(x)
	if err != nil {
		return 0.0, err
	}

	score := stat.RSquaredFrom(res, mat.Col(nil, 0, y), nil)
	if math.IsNaN(score) {
		score = 1.0
	}
	return score, nil
}

// Intercept returns the computed intercept if FitIntercept is set to true. Defaults to 0.0 if not set.
func (l *LassoRegression) Intercept() float64 {
	return l.intercept
}

// Coef returns a copy of the trained coefficients in the same order of the training feature Matrix by column.
func (l *LassoRegression) Coef() []float64 {
	c := make([]float64, len(l.coef))
	copy(c, l.coef)
	return c
}

// Iterations returns the number of coordinate descent passes the last fit ran
func (l *LassoRegression) Iterations() int {
	return l.iters
}

// SoftThreshold returns 0.0 if the absolute value is less than or equal to the gamma input
// and otherwise shrinks the value towards 0 by gamma
func SoftThreshold(x, gamma float64) float64 {
	res := math.Max(0, math.Abs(x)-gamma)
	if math.Signbit(x) {
		return -res
	}
	return res
}
