// Package evaluate compares in-sample forecasts to the observed values
package evaluate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/aouyang1/go-forecast-pipeline/stats"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"github.com/goccy/go-json"
)

var (
	ErrMissingForecast = errors.New("no forecast record for observation")
	ErrNoActuals       = errors.New("no actual observations")
)

// Evaluation is the left join of the observations with the forecast records on time
type Evaluation struct {
	T         []time.Time
	Actual    []float64
	Predicted []float64
	Lower     []float64
	Upper     []float64
}

// Join merges every observation with the forecast record at the same time
func Join(actual *timedataset.TimeDataset, res *forecast.Results) (*Evaluation, error) {
	if actual.Len() == 0 {
		return nil, ErrNoActuals
	}
	idx := make(map[int64]int, res.Len())
	for i := 0; i < res.Len(); i++ {
		idx[res.T[i].UnixNano()] = i
	}

	n := actual.Len()
	ev := &Evaluation{
		T:         make([]time.Time, 0, n),
		Actual:    make([]float64, 0, n),
		Predicted: make([]float64, 0, n),
		Lower:     make([]float64, 0, n),
		Upper:     make([]float64, 0, n),
	}
	for i, tPnt := range actual.T {
		j, exists := idx[tPnt.UnixNano()]
		if !exists {
			return nil, fmt.Errorf("%s, %w", tPnt.Format(time.RFC3339), ErrMissingForecast)
		}
		ev.T = append(ev.T, tPnt)
		ev.Actual = append(ev.Actual, actual.Y[i])
		ev.Predicted = append(ev.Predicted, res.Forecast[j])
		ev.Lower = append(ev.Lower, res.Lower[j])
		ev.Upper = append(ev.Upper, res.Upper[j])
	}
	return ev, nil
}

// Residuals returns actual minus predicted
func (e *Evaluation) Residuals() []float64 {
	out := make([]float64, len(e.Actual))
	for i := range e.Actual {
		out[i] = e.Actual[i] - e.Predicted[i]
	}
	return out
}

// Coverage returns the fraction of actuals within the forecast bounds
func (e *Evaluation) Coverage() float64 {
	var in, n int
	for i, v := range e.Actual {
		if math.IsNaN(v) {
			continue
		}
		n++
		if v >= e.Lower[i] && v <= e.Upper[i] {
			in++
		}
	}
	if n == 0 {
		return 0
	}
	return float64(in) / float64(n)
}

// Metrics summarizes the fit. MAPE is in percent.
type Metrics struct {
	MAE  float64 `json:"MAE"`
	RMSE float64 `json:"RMSE"`
	MAPE float64 `json:"MAPE"`
	R2   float64 `json:"R2"`
	N    int     `json:"n"`
}

// NewMetrics computes the metrics over the pairs where both values are finite
func NewMetrics(predicted, actual []float64) (Metrics, error) {
	mae, err := stats.MAE(predicted, actual)
	if err != nil {
		return Metrics{}, fmt.Errorf("unable to compute mean absolute error, %w", err)
	}
	rmse, err := stats.RMSE(predicted, actual)
	if err != nil {
		return Metrics{}, fmt.Errorf("unable to compute root mean squared error, %w", err)
	}
	mape, err := stats.MAPE(predicted, actual)
	if err != nil {
		return Metrics{}, fmt.Errorf("unable to compute mean absolute percent error, %w", err)
	}
	r2, err := stats.RSquared(predicted, actual)
	if err != nil {
		return Metrics{}, fmt.Errorf("unable to compute r-squared, %w", err)
	}

	var n int
	for i := range actual {
		if finite(actual[i]) && finite(predicted[i]) {
			n++
		}
	}
	return Metrics{
		MAE:  mae,
		RMSE: rmse,
		MAPE: mape * 100.0,
		R2:   r2,
		N:    n,
	}, nil
}

// Metrics computes the metrics of the evaluation
func (e *Evaluation) Metrics() (Metrics, error) {
	return NewMetrics(e.Predicted, e.Actual)
}

// Equal reports whether two metrics match within a relative tolerance
func (m Metrics) Equal(other Metrics, tol float64) bool {
	near := func(a, b float64) bool {
		return math.Abs(a-b) <= tol*math.Max(1.0, math.Max(math.Abs(a), math.Abs(b)))
	}
	return m.N == other.N && near(m.MAE, other.MAE) && near(m.RMSE, other.RMSE) &&
		near(m.MAPE, other.MAPE) && near(m.R2, other.R2)
}

// WriteCSV writes the metrics as a single row with a MAE,RMSE,MAPE,R2 header
func (m Metrics) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	records := [][]string{
		{"MAE", "RMSE", "MAPE", "R2"},
		{format(m.MAE), format(m.RMSE), format(m.MAPE), format(m.R2)},
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("unable to write metrics csv, %w", err)
	}
	return nil
}

// WriteJSON writes the metrics as an indented JSON document
func (m Metrics) WriteJSON(w io.Writer) error {
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal metrics, %w", err)
	}
	if _, err := w.Write(append(out, '\n')); err != nil {
		return fmt.Errorf("unable to write metrics json, %w", err)
	}
	return nil
}

// ReadJSON decodes metrics written by WriteJSON
func ReadJSON(r io.Reader) (Metrics, error) {
	var m Metrics
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return Metrics{}, fmt.Errorf("unable to decode metrics, %w", err)
	}
	return m, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
