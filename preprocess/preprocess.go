// Package preprocess reshapes a raw table into the two column ds,y series used for fitting
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/source"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
)

const (
	ColumnTime  = "ds"
	ColumnValue = "y"
)

var (
	ErrUnknownMissingPolicy = errors.New("unknown missing value policy")
	ErrNoRowsRemaining      = errors.New("no rows remain after handling missing values")
)

// MissingPolicy decides what happens to rows with missing values
type MissingPolicy string

const (
	// MissingDrop removes rows with missing values
	MissingDrop MissingPolicy = "drop"
	// MissingInterpolate linearly imputes interior gaps in time and drops leading and trailing gaps
	MissingInterpolate MissingPolicy = "interpolate"
)

func ParseMissingPolicy(s string) (MissingPolicy, error) {
	switch p := MissingPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return MissingDrop, nil
	case MissingDrop, MissingInterpolate:
		return p, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownMissingPolicy)
}

// Report counts what happened to the rows of the raw table
type Report struct {
	RowsIn  int `json:"rows_in"`
	RowsOut int `json:"rows_out"`
	Dropped int `json:"dropped"`
	Imputed int `json:"imputed"`
}

// Process locates the time and value columns, parses them and applies the missing value policy.
// Row order is preserved and any dropped rows are counted in the report.
func Process(tbl *source.Table, cols source.Columns, policy MissingPolicy) (*timedataset.TimeDataset, Report, error) {
	if err := source.Validate(tbl, cols); err != nil {
		return nil, Report{}, fmt.Errorf("unable to validate table, %w", err)
	}
	report := Report{RowsIn: tbl.Len()}

	tCells, err := tbl.Column(cols.Time)
	if err != nil {
		return nil, report, err
	}
	yCells, err := tbl.Column(cols.Value)
	if err != nil {
		return nil, report, err
	}

	t := make([]time.Time, 0, len(tCells))
	y := make([]float64, 0, len(yCells))
	for i := range tCells {
		tPnt, err := timedataset.ParseTime(tCells[i])
		if err != nil {
			return nil, report, fmt.Errorf("row %d, %w", i+1, err)
		}
		v, err := timedataset.ParseValue(yCells[i])
		if err != nil {
			return nil, report, fmt.Errorf("row %d column %q, %w", i+1, cols.Value, err)
		}
		t = append(t, tPnt)
		y = append(y, v)
	}

	switch policy {
	case MissingDrop, "":
	case MissingInterpolate:
		report.Imputed = interpolate(t, y)
	default:
		return nil, report, fmt.Errorf("%q, %w", policy, ErrUnknownMissingPolicy)
	}

	td, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return nil, report, fmt.Errorf("unable to create dataset, %w", err)
	}
	td = td.DropNaN()

	report.RowsOut = td.Len()
	report.Dropped = report.RowsIn - report.RowsOut
	if report.RowsOut == 0 {
		return nil, report, ErrNoRowsRemaining
	}
	return td, report, nil
}

// interpolate fills NaN runs bounded on both sides by observations with values linear in
// time and returns the number of imputed values
func interpolate(t []time.Time, y []float64) int {
	var imputed int
	last := -1
	for i := range y {
		if math.IsNaN(y[i]) {
			continue
		}
		if last >= 0 && i-last > 1 {
			span := t[i].Sub(t[last]).Seconds()
			for j := last + 1; j < i; j++ {
				frac := t[j].Sub(t[last]).Seconds() / span
				y[j] = y[last] + frac*(y[i]-y[last])
				imputed++
			}
		}
		last = i
	}
	return imputed
}
