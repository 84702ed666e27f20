package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	ErrResLenMismatch = errors.New("predicted and actual have different lengths")
	ErrNoValidPairs   = errors.New("no finite predicted and actual pairs")
)

// pairs returns the predicted and actual values where both are finite. At least one pair is
// required.
func pairs(predicted, actual []float64) ([]float64, []float64, error) {
	if len(predicted) != len(actual) {
		return nil, nil, fmt.Errorf("expected %d, but got %d, %w", len(actual), len(predicted), ErrResLenMismatch)
	}
	p := make([]float64, 0, len(predicted))
	a := make([]float64, 0, len(actual))
	for i := 0; i < len(actual); i++ {
		if !finite(actual[i]) || !finite(predicted[i]) {
			continue
		}
		p = append(p, predicted[i])
		a = append(a, actual[i])
	}
	if len(a) == 0 {
		return nil, nil, ErrNoValidPairs
	}
	return p, a, nil
}

// MAE computes the mean absolute error over the non NaN pairs
func MAE(predicted, actual []float64) (float64, error) {
	p, a, err := pairs(predicted, actual)
	if err != nil {
		return 0, err
	}
	var mae float64
	for i := range a {
		mae += math.Abs(a[i] - p[i])
	}
	return mae / float64(len(a)), nil
}

// MSE computes the mean squared error. A score of 0 means a perfect match with no errors.
func MSE(predicted, actual []float64) (float64, error) {
	p, a, err := pairs(predicted, actual)
	if err != nil {
		return 0, err
	}
	var mse float64
	for i := range a {
		mse += (a[i] - p[i]) * (a[i] - p[i])
	}
	return mse / float64(len(a)), nil
}

// RMSE is the square root of the mean squared error
func RMSE(predicted, actual []float64) (float64, error) {
	mse, err := MSE(predicted, actual)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAPE calculates the mean absolute percent error as a fraction. Pairs with a zero actual
// value are skipped.
func MAPE(predicted, actual []float64) (float64, error) {
	p, a, err := pairs(predicted, actual)
	if err != nil {
		return 0, err
	}
	var mape float64
	var n int
	for i := range a {
		if a[i] == 0 {
			continue
		}
		mape += math.Abs((a[i] - p[i]) / a[i])
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return mape / float64(n), nil
}

// RSquared computes the r squared value between the predicted and actual where 1.0 means perfect
// fit. A constant actual series perfectly predicted scores 1.0.
func RSquared(predicted, actual []float64) (float64, error) {
	p, a, err := pairs(predicted, actual)
	if err != nil {
		return 0, err
	}
	r2 := stat.RSquaredFrom(p, a, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		var sse float64
		for i := range a {
			sse += (a[i] - p[i]) * (a[i] - p[i])
		}
		if sse == 0 {
			return 1.0, nil
		}
		return 0.0, nil
	}
	return r2, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
