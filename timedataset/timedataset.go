// Package timedataset holds the validated observation series passed between the
// pipeline steps.
package timedataset

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

var (
	ErrNoTrainingData     = errors.New("no observations")
	ErrNonMonotonic       = errors.New("time feature is not monotonic")
	ErrDuplicateTime      = errors.New("duplicate timestamp")
	ErrDatasetLenMismatch = errors.New("time feature has a different length than observations")
	ErrCannotInferFreq    = errors.New("need at least 2 points to infer an interval")
)

// TimeDataset represents a time series storing a slice of time points and values.
// Both must be of the same length and the time points are strictly increasing.
type TimeDataset struct {
	T []time.Time
	Y []float64
}

// NewUnivariateDataset returns an instance of a TimeDataset given a time and value slice.
// The inputs are copied.
func NewUnivariateDataset(t []time.Time, y []float64) (*TimeDataset, error) {
	if len(y) == 0 {
		return nil, ErrNoTrainingData
	}
	if len(t) != len(y) {
		return nil, fmt.Errorf(
			"time feature has length of %d, but values has a length of %d, %w",
			len(t), len(y), ErrDatasetLenMismatch,
		)
	}
	if err := ValidateTime(t); err != nil {
		return nil, err
	}

	tSeries := make([]time.Time, len(t))
	ySeries := make([]float64, len(t))
	copy(tSeries, t)
	copy(ySeries, y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}, nil
}

// ValidateTime checks that every time point is strictly after the previous one.
func ValidateTime(t []time.Time) error {
	for i := 1; i < len(t); i++ {
		if t[i].Equal(t[i-1]) {
			return fmt.Errorf("%s at index %d, %w", t[i].Format(time.RFC3339), i, ErrDuplicateTime)
		}
		if t[i].Before(t[i-1]) {
			return fmt.Errorf("non-monotonic at %d, %w", i, ErrNonMonotonic)
		}
	}
	return nil
}

// Len returns the number of observations
func (td *TimeDataset) Len() int {
	if td == nil {
		return 0
	}
	return len(td.T)
}

// Copy returns a deep copy of the dataset
func (td *TimeDataset) Copy() *TimeDataset {
	tSeries := make([]time.Time, len(td.T))
	ySeries := make([]float64, len(td.T))
	copy(tSeries, td.T)
	copy(ySeries, td.Y)
	return &TimeDataset{
		T: tSeries,
		Y: ySeries,
	}
}

// StartTime returns the first time point or the zero time if empty
func (td *TimeDataset) StartTime() time.Time {
	if td.Len() == 0 {
		return time.Time{}
	}
	return td.T[0]
}

// EndTime returns the last time point or the zero time if empty
func (td *TimeDataset) EndTime() time.Time {
	if td.Len() == 0 {
		return time.Time{}
	}
	return td.T[len(td.T)-1]
}

// NaNCount returns the number of missing values
func (td *TimeDataset) NaNCount() int {
	var cnt int
	for _, v := range td.Y {
		if math.IsNaN(v) {
			cnt++
		}
	}
	return cnt
}

// DropNaN returns a new dataset without missing values
func (td *TimeDataset) DropNaN() *TimeDataset {
	out := &TimeDataset{
		T: make([]time.Time, 0, len(td.T)),
		Y: make([]float64, 0, len(td.Y)),
	}
	for i := range td.T {
		if math.IsNaN(td.Y[i]) {
			continue
		}
		out.T = append(out.T, td.T[i])
		out.Y = append(out.Y, td.Y[i])
	}
	return out
}

// MedianInterval returns the median spacing between consecutive time points.
func MedianInterval(t []time.Time) (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}
	deltas := make([]time.Duration, 0, len(t)-1)
	for i := 1; i < len(t); i++ {
		deltas = append(deltas, t[i].Sub(t[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2], nil
}

// MinInterval returns the smallest spacing between consecutive time points.
func MinInterval(t []time.Time) (time.Duration, error) {
	if len(t) < 2 {
		return 0, ErrCannotInferFreq
	}
	minDelta := time.Duration(math.MaxInt64)
	for i := 1; i < len(t); i++ {
		if delta := t[i].Sub(t[i-1]); delta < minDelta {
			minDelta = delta
		}
	}
	return minDelta, nil
}
