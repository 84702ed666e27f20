package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func generateData(nObs int, intercept float64, coef []float64) (*mat.Dense, *mat.Dense) {
	x := mat.NewDense(nObs, len(coef), nil)
	y := mat.NewDense(nObs, 1, nil)
	for i := 0; i < nObs; i++ {
		val := intercept
		for j := range coef {
			feat := float64((i*(j+3))%(7+j)) + float64(i)/float64(nObs)*float64(j)
			x.Set(i, j, feat)
			val += coef[j] * feat
		}
		y.Set(i, 0, val)
	}
	return x, y
}

func TestLassoRegression(t *testing.T) {
	testData := map[string]struct {
		opt       *LassoOptions
		intercept float64
		coef      []float64
		tol       float64
	}{
		"ols equivalent": {
			opt: &LassoOptions{
				Lambda:       0,
				Iterations:   DefaultIterations,
				Tolerance:    1e-9,
				FitIntercept: true,
			},
			intercept: 2.0,
			coef:      []float64{3.0, -1.0, 0.5},
			tol:       1e-4,
		},
		"no intercept": {
			opt: &LassoOptions{
				Lambda:       0,
				Iterations:   DefaultIterations,
				Tolerance:    1e-9,
				FitIntercept: false,
			},
			intercept: 0.0,
			coef:      []float64{1.5, 2.5},
			tol:       1e-4,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			x, y := generateData(60, td.intercept, td.coef)

			model, err := NewLassoRegression(td.opt)
			require.Nil(t, err)
			require.Nil(t, model.Fit(x, y))

			assert.InDelta(t, td.intercept, model.Intercept(), td.tol)
			assert.InDeltaSlice(t, td.coef, model.Coef(), td.tol)

			r2, err := model.Score(x, y)
			require.Nil(t, err)
			assert.InDelta(t, 1.0, r2, 1e-6)
		})
	}
}

func TestLassoPenaltyFactors(t *testing.T) {
	x, y := generateData(60, 1.0, []float64{2.0, 0.01})

	model, err := NewLassoRegression(&LassoOptions{
		Lambda:         1e6,
		PenaltyFactors: []float64{0, 1},
		Iterations:     DefaultIterations,
		Tolerance:      1e-9,
		FitIntercept:   true,
	})
	require.Nil(t, err)
	require.Nil(t, model.Fit(x, y))

	coef := model.Coef()
	assert.Equal(t, 0.0, coef[1])
	assert.InDelta(t, 2.0, coef[0], 0.1)

	pred, err := model.Predict(x)
	require.Nil(t, err)
	assert.Len(t, pred, 60)
}

func TestLassoValidation(t *testing.T) {
	_, err := NewLassoRegression(&LassoOptions{Lambda: -1})
	assert.ErrorIs(t, err, ErrNegativeLambda)

	_, err = NewLassoRegression(&LassoOptions{PenaltyFactors: []float64{-1}})
	assert.ErrorIs(t, err, ErrNegativePenalty)

	_, err = NewLassoRegression(&LassoOptions{Iterations: -1})
	assert.ErrorIs(t, err, ErrNegativeIterations)

	_, err = NewLassoRegression(&LassoOptions{Tolerance: -1})
	assert.ErrorIs(t, err, ErrNegativeTolerance)

	model, err := NewLassoRegression(nil)
	require.Nil(t, err)

	x, y := generateData(10, 0, []float64{1, 2})
	_, err = model.Predict(x)
	assert.ErrorIs(t, err, ErrNotFit)

	assert.ErrorIs(t, model.Fit(nil, y), ErrNoTrainingMatrix)
	assert.ErrorIs(t, model.Fit(x, nil), ErrNoTargetMatrix)
	assert.ErrorIs(t, model.Fit(x, mat.NewDense(5, 1, nil)), ErrTargetLenMismatch)

	model.opt.PenaltyFactors = []float64{1}
	assert.ErrorIs(t, model.Fit(x, y), ErrPenaltyLenMismatch)
	model.opt.PenaltyFactors = nil

	require.Nil(t, model.Fit(x, y))
	_, err = model.Predict(mat.NewDense(2, 3, nil))
	assert.ErrorIs(t, err, ErrFeatureLenMismatch)
}

func TestSoftThreshold(t *testing.T) {
	testData := map[string]struct {
		x, gamma, expected float64
	}{
		"inside":   {x: 0.5, gamma: 1.0, expected: 0.0},
		"positive": {x: 3.0, gamma: 1.0, expected: 2.0},
		"negative": {x: -3.0, gamma: 1.0, expected: -2.0},
		"zero":     {x: 0.0, gamma: 0.0, expected: 0.0},
	}
	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, td.expected, SoftThreshold(td.x, td.gamma))
		})
	}
}
