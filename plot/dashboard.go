package plot

import (
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/evaluate"
	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth     = "1200px"
	chartHeight    = "420px"
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// LineTSeries generates an echart multi-line chart for some arbitrary time/value combination. Every
// series in y must have the same length as t. Non finite values are left as gaps.
func LineTSeries(title string, seriesName []string, t []time.Time, y [][]float64) (*charts.Line, error) {
	for i := range y {
		if len(y[i]) != len(t) {
			return nil, fmt.Errorf("series %d, %w", i, ErrLenMismatch)
		}
	}
	line := newLine(title)
	line.SetXAxis(xAxis(t))
	for i, series := range seriesName {
		if i >= len(y) {
			break
		}
		line.AddSeries(series, lineData(y[i]))
	}
	return line, nil
}

// LineForecaster generates an echart line chart of the observed values along with the
// forecasted, upper and lower values. Observations are aligned to the forecast times.
func LineForecaster(history *timedataset.TimeDataset, res *forecast.Results) *charts.Line {
	actual := make([]float64, res.Len())
	for i := range actual {
		actual[i] = math.NaN()
	}
	idx := make(map[int64]int, res.Len())
	for i, tPnt := range res.T {
		idx[tPnt.UnixNano()] = i
	}
	if history != nil {
		for i, tPnt := range history.T {
			if j, exists := idx[tPnt.UnixNano()]; exists {
				actual[j] = history.Y[i]
			}
		}
	}

	line := newLine("Forecast Fit")
	line.SetXAxis(xAxis(res.T)).
		AddSeries("Actual", lineData(actual)).
		AddSeries("Forecast", lineData(res.Forecast)).
		AddSeries("Upper", lineData(res.Upper)).
		AddSeries("Lower", lineData(res.Lower))
	return line
}

// RenderDashboard writes an html page with the forecast fit, its components and the
// in-sample residuals.
func RenderDashboard(w io.Writer, history *timedataset.TimeDataset, res *forecast.Results, ev *evaluate.Evaluation) error {
	if res.Len() == 0 {
		return ErrNoResults
	}

	names := []string{"Trend"}
	series := [][]float64{res.Components.Trend}
	for _, name := range res.SeasonalityNames() {
		names = append(names, name)
		series = append(series, res.Components.Seasonal[name])
	}
	comps, err := LineTSeries("Forecast Components", names, res.T, series)
	if err != nil {
		return fmt.Errorf("unable to chart components, %w", err)
	}

	page := components.NewPage()
	page.AddCharts(
		LineForecaster(history, res),
		comps,
	)

	if ev != nil && len(ev.T) > 0 {
		resid, err := LineTSeries("Forecast Residual", []string{"Residual"}, ev.T, [][]float64{ev.Residuals()})
		if err != nil {
			return fmt.Errorf("unable to chart residuals, %w", err)
		}
		page.AddCharts(resid)
	}
	return page.Render(w)
}

// Dashboard writes the html dashboard to the given path
func Dashboard(path string, history *timedataset.TimeDataset, res *forecast.Results, ev *evaluate.Evaluation) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create dashboard file, %w", err)
	}
	if err := RenderDashboard(file, history, res, ev); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func newLine(title string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(
			opts.Initialization{
				PageTitle: "Forecast Dashboard",
				Width:     chartWidth,
				Height:    chartHeight,
			},
		),
		charts.WithTitleOpts(
			opts.Title{
				Title: title,
			},
		),
	)
	return line
}

func xAxis(t []time.Time) []string {
	layout := dateLayout
	for _, tPnt := range t {
		if h, m, s := tPnt.Clock(); h != 0 || m != 0 || s != 0 {
			layout = dateTimeLayout
			break
		}
	}
	out := make([]string, len(t))
	for i, tPnt := range t {
		out[i] = tPnt.Format(layout)
	}
	return out
}

// lineData maps non finite values to null so the chart leaves a gap
func lineData(y []float64) []opts.LineData {
	out := make([]opts.LineData, len(y))
	for i, v := range y {
		if !finite(v) {
			out[i] = opts.LineData{Value: nil}
			continue
		}
		out[i] = opts.LineData{Value: v}
	}
	return out
}
