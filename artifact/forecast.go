package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/aouyang1/go-forecast-pipeline/preprocess"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
)

var (
	ErrBadForecastHeader = errors.New("unexpected forecast header")
	ErrShortForecastRow  = errors.New("forecast row has too few columns")
)

// Fixed forecast columns, followed by one column per seasonality
var forecastColumns = []string{
	"ds",
	"yhat",
	"yhat_lower",
	"yhat_upper",
	"trend",
	"seasonal",
}

const seasonalPrefix = "seasonal_"

// WriteForecast writes forecast records as csv with one column per component
func WriteForecast(w io.Writer, res *forecast.Results) error {
	names := res.SeasonalityNames()
	header := append([]string(nil), forecastColumns...)
	for _, name := range names {
		header = append(header, seasonalPrefix+name)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("unable to write forecast header, %w", err)
	}

	layout := preprocess.TimeLayout(res.T)
	row := make([]string, len(header))
	for i := 0; i < res.Len(); i++ {
		row[0] = res.T[i].Format(layout)
		row[1] = formatFloat(res.Forecast[i])
		row[2] = formatFloat(res.Lower[i])
		row[3] = formatFloat(res.Upper[i])
		row[4] = formatAt(res.Components.Trend, i)
		row[5] = formatAt(res.Components.SeasonalTotal, i)
		for j, name := range names {
			row[len(forecastColumns)+j] = formatAt(res.Components.Seasonal[name], i)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("unable to write forecast row, %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadForecast reads forecast records written by WriteForecast
func ReadForecast(r io.Reader) (*forecast.Results, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unable to read forecast csv, %w", err)
	}
	if len(records) == 0 {
		return nil, ErrBadForecastHeader
	}

	header := records[0]
	if len(header) < len(forecastColumns) {
		return nil, fmt.Errorf("%v, %w", header, ErrBadForecastHeader)
	}
	for i, col := range forecastColumns {
		if header[i] != col {
			return nil, fmt.Errorf("column %d expected %s but got %s, %w", i, col, header[i], ErrBadForecastHeader)
		}
	}
	names := make([]string, 0, len(header)-len(forecastColumns))
	for _, col := range header[len(forecastColumns):] {
		if !strings.HasPrefix(col, seasonalPrefix) {
			return nil, fmt.Errorf("%s, %w", col, ErrBadForecastHeader)
		}
		names = append(names, strings.TrimPrefix(col, seasonalPrefix))
	}

	n := len(records) - 1
	res := &forecast.Results{
		T:        make([]time.Time, 0, n),
		Forecast: make([]float64, 0, n),
		Lower:    make([]float64, 0, n),
		Upper:    make([]float64, 0, n),
		Components: forecast.Components{
			Trend:         make([]float64, 0, n),
			SeasonalTotal: make([]float64, 0, n),
			Seasonal:      make(map[string][]float64, len(names)),
		},
	}
	for _, name := range names {
		res.Components.Seasonal[name] = make([]float64, 0, n)
	}

	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, fmt.Errorf("row %d, %w", i+1, ErrShortForecastRow)
		}
		tPnt, err := timedataset.ParseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("row %d, %w", i+1, err)
		}
		vals := make([]float64, len(rec)-1)
		for j, cell := range rec[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s, %w", i+1, header[j+1], timedataset.ErrUnparseableValue)
			}
			vals[j] = v
		}
		res.T = append(res.T, tPnt)
		res.Forecast = append(res.Forecast, vals[0])
		res.Lower = append(res.Lower, vals[1])
		res.Upper = append(res.Upper, vals[2])
		res.Components.Trend = append(res.Components.Trend, vals[3])
		res.Components.SeasonalTotal = append(res.Components.SeasonalTotal, vals[4])
		for j, name := range names {
			res.Components.Seasonal[name] = append(res.Components.Seasonal[name], vals[len(forecastColumns)-1+j])
		}
	}
	return res, nil
}

// WriteForecastFile writes the forecast csv to path
func WriteForecastFile(path string, res *forecast.Results) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create forecast directory, %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create forecast file, %w", err)
	}
	if err := WriteForecast(file, res); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// ReadForecastFile reads the forecast csv at path
func ReadForecastFile(path string) (*forecast.Results, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s, %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("unable to open forecast file, %w", err)
	}
	defer file.Close()
	return ReadForecast(file)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatAt(vals []float64, i int) string {
	if i >= len(vals) {
		return formatFloat(0)
	}
	return formatFloat(vals[i])
}
