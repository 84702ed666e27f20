package plot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/aouyang1/go-forecast-pipeline/horizon"
)

var ErrNoFutureRecords = errors.New("no forecast records after the last observation")

const monthLayout = "Jan 2006"

// AutoDecimals selects the table precision from the observed values
const AutoDecimals = -1

// fractionalDecimals is the precision used for series with fractional observations
const fractionalDecimals = 2

// TableDecimals returns the number of decimals for the forecast table. Series whose finite
// observations are all whole numbers are shown as integers.
func TableDecimals(y []float64) int {
	for _, v := range y {
		if finite(v) && v != math.Trunc(v) {
			return fractionalDecimals
		}
	}
	return 0
}

// TableHeader returns the future forecast table columns for an interval width
func TableHeader(width float64) []string {
	pct := int(math.Round(width * 100))
	return []string{
		"Date",
		"Forecast",
		fmt.Sprintf("Lower Bound (%d%%)", pct),
		fmt.Sprintf("Upper Bound (%d%%)", pct),
	}
}

// ForecastTable writes the forecast records strictly after the given time as csv. Values are
// rounded half away from zero to the given decimals and monthly data is labelled by month.
func ForecastTable(w io.Writer, res *forecast.Results, after time.Time, width float64, freq horizon.Frequency, decimals int) error {
	future := res.After(after)
	if future.Len() == 0 {
		return ErrNoFutureRecords
	}

	layout := dateLayout
	switch freq {
	case horizon.MonthStart:
		layout = monthLayout
	case horizon.Hourly:
		layout = dateTimeLayout
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(TableHeader(width)); err != nil {
		return fmt.Errorf("unable to write table header, %w", err)
	}
	for i, tPnt := range future.T {
		row := []string{
			tPnt.Format(layout),
			roundCell(future.Forecast[i], decimals),
			roundCell(future.Lower[i], decimals),
			roundCell(future.Upper[i], decimals),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("unable to write table row, %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ForecastTableFile writes the future forecast table to the given path
func ForecastTableFile(path string, res *forecast.Results, after time.Time, width float64, freq horizon.Frequency, decimals int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create forecast table file, %w", err)
	}
	if err := ForecastTable(file, res, after, width, freq, decimals); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func roundCell(v float64, decimals int) string {
	if !finite(v) {
		return ""
	}
	if decimals < 0 {
		decimals = 0
	}
	scale := math.Pow(10, float64(decimals))
	r := math.Round(v*scale) / scale
	if r == 0 {
		// drop the sign of negative zero
		r = 0
	}
	return strconv.FormatFloat(r, 'f', decimals, 64)
}
