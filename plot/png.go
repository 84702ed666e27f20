// Package plot renders forecast results as static images, an interactive html dashboard and
// a tabular summary of the future horizon.
package plot

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/evaluate"
	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	gonumplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	ErrNoResults    = errors.New("no forecast results to plot")
	ErrNoEvaluation = errors.New("no evaluation records to plot")
	ErrLenMismatch  = errors.New("time and value lengths do not match")
)

const (
	FigureWidth  = 12 * vg.Inch
	FigureHeight = 8 * vg.Inch

	panelHeight = 3 * vg.Inch
)

var (
	bandColor     = color.RGBA{R: 173, G: 216, B: 230, A: 140}
	forecastColor = color.RGBA{B: 255, A: 255}
	actualColor   = color.RGBA{A: 255}
	residualColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	zeroColor     = color.RGBA{A: 96}
)

// Labels holds the title and axis labels of a figure
type Labels struct {
	Title  string `yaml:"title" json:"title"`
	XLabel string `yaml:"x_label" json:"x_label"`
	YLabel string `yaml:"y_label" json:"y_label"`
}

// Forecast writes a png with the prediction interval band, the forecast line and the observed
// values as points.
func Forecast(path string, history *timedataset.TimeDataset, res *forecast.Results, labels Labels) error {
	if res.Len() == 0 {
		return ErrNoResults
	}
	p, err := forecastPanel(history, res, labels)
	if err != nil {
		return err
	}
	if err := p.Save(FigureWidth, FigureHeight, path); err != nil {
		return fmt.Errorf("unable to save forecast plot, %w", err)
	}
	return nil
}

// Components writes a png with the trend on the first panel and one panel for each
// seasonality.
func Components(path string, res *forecast.Results) error {
	if res.Len() == 0 {
		return ErrNoResults
	}
	names := res.SeasonalityNames()
	panels := make([]*gonumplot.Plot, 0, len(names)+1)

	trend, err := linePanel("trend", res.T, res.Components.Trend, forecastColor)
	if err != nil {
		return fmt.Errorf("unable to plot trend component, %w", err)
	}
	panels = append(panels, trend)

	for _, name := range names {
		p, err := linePanel(name, res.T, res.Components.Seasonal[name], forecastColor)
		if err != nil {
			return fmt.Errorf("unable to plot %s component, %w", name, err)
		}
		panels = append(panels, p)
	}
	return savePanels(path, panels, FigureWidth, panelHeight*vg.Length(len(panels)))
}

// ForecastVsActual writes a png comparing the in-sample forecast with the observed values
// along with a residual panel.
func ForecastVsActual(path string, ev *evaluate.Evaluation, labels Labels) error {
	if ev == nil || len(ev.T) == 0 {
		return ErrNoEvaluation
	}
	td := &timedataset.TimeDataset{T: ev.T, Y: ev.Actual}
	res := &forecast.Results{
		T:        ev.T,
		Forecast: ev.Predicted,
		Lower:    ev.Lower,
		Upper:    ev.Upper,
	}
	top, err := forecastPanel(td, res, labels)
	if err != nil {
		return err
	}
	top.X.Label.Text = ""

	resid, err := linePanel("", ev.T, ev.Residuals(), residualColor)
	if err != nil {
		return fmt.Errorf("unable to plot residuals, %w", err)
	}
	resid.X.Label.Text = labels.XLabel
	resid.Y.Label.Text = "Residuals"
	zero := plotter.NewFunction(func(float64) float64 { return 0 })
	zero.LineStyle.Color = zeroColor
	zero.LineStyle.Width = vg.Points(1)
	resid.Add(zero)

	return savePanels(path, []*gonumplot.Plot{top, resid}, FigureWidth, FigureHeight)
}

func forecastPanel(history *timedataset.TimeDataset, res *forecast.Results, labels Labels) (*gonumplot.Plot, error) {
	p := newTimePlot(res.T)
	p.Title.Text = labels.Title
	p.X.Label.Text = labels.XLabel
	p.Y.Label.Text = labels.YLabel
	p.Legend.Top = true
	p.Legend.Left = true

	band := bandXYs(res.T, res.Lower, res.Upper)
	if len(band) >= 3 {
		poly, err := plotter.NewPolygon(band)
		if err != nil {
			return nil, fmt.Errorf("unable to plot prediction interval, %w", err)
		}
		poly.Color = bandColor
		poly.LineStyle.Width = 0
		p.Add(poly)
		p.Legend.Add("Prediction Interval", poly)
	}

	fxy, err := timeXYs(res.T, res.Forecast)
	if err != nil {
		return nil, err
	}
	if len(fxy) > 0 {
		line, err := plotter.NewLine(fxy)
		if err != nil {
			return nil, fmt.Errorf("unable to plot forecast, %w", err)
		}
		line.LineStyle.Color = forecastColor
		line.LineStyle.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("Forecast", line)
	}

	if history.Len() > 0 {
		axy, err := timeXYs(history.T, history.Y)
		if err != nil {
			return nil, err
		}
		if len(axy) > 0 {
			sc, err := plotter.NewScatter(axy)
			if err != nil {
				return nil, fmt.Errorf("unable to plot actuals, %w", err)
			}
			sc.GlyphStyle.Color = actualColor
			sc.GlyphStyle.Shape = draw.CircleGlyph{}
			sc.GlyphStyle.Radius = vg.Points(2)
			p.Add(sc)
			p.Legend.Add("Actual", sc)
		}
	}
	return p, nil
}

func linePanel(title string, t []time.Time, y []float64, c color.Color) (*gonumplot.Plot, error) {
	p := newTimePlot(t)
	p.Y.Label.Text = title

	xys, err := timeXYs(t, y)
	if err != nil {
		return nil, err
	}
	if len(xys) == 0 {
		return p, nil
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = c
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	return p, nil
}

func newTimePlot(t []time.Time) *gonumplot.Plot {
	p := gonumplot.New()
	p.X.Tick.Marker = gonumplot.TimeTicks{Format: tickFormat(t)}
	p.Add(plotter.NewGrid())
	return p
}

// tickFormat shortens the tick labels for long spans
func tickFormat(t []time.Time) string {
	if len(t) < 2 {
		return "2006-01-02"
	}
	if t[len(t)-1].Sub(t[0]) > 2*365*24*time.Hour {
		return "2006-01"
	}
	return "2006-01-02"
}

// timeXYs converts a time series into plot coordinates in unix seconds, skipping points
// with non finite values.
func timeXYs(t []time.Time, y []float64) (plotter.XYs, error) {
	if len(t) != len(y) {
		return nil, fmt.Errorf("%d times, %d values, %w", len(t), len(y), ErrLenMismatch)
	}
	xys := make(plotter.XYs, 0, len(t))
	for i, tPnt := range t {
		if !finite(y[i]) {
			continue
		}
		xys = append(xys, plotter.XY{X: float64(tPnt.Unix()), Y: y[i]})
	}
	return xys, nil
}

// bandXYs traces the upper bound forward and the lower bound backward to close the interval
// polygon.
func bandXYs(t []time.Time, lower, upper []float64) plotter.XYs {
	if len(lower) != len(t) || len(upper) != len(t) {
		return nil
	}
	idx := make([]int, 0, len(t))
	for i := range t {
		if finite(lower[i]) && finite(upper[i]) {
			idx = append(idx, i)
		}
	}
	xys := make(plotter.XYs, 0, 2*len(idx))
	for _, i := range idx {
		xys = append(xys, plotter.XY{X: float64(t[i].Unix()), Y: upper[i]})
	}
	for j := len(idx) - 1; j >= 0; j-- {
		i := idx[j]
		xys = append(xys, plotter.XY{X: float64(t[i].Unix()), Y: lower[i]})
	}
	return xys
}

func savePanels(path string, panels []*gonumplot.Plot, width, height vg.Length) error {
	img := vgimg.New(width, height)
	dc := draw.New(img)

	tiles := draw.Tiles{
		Rows:      len(panels),
		Cols:      1,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
	}
	grid := make([][]*gonumplot.Plot, len(panels))
	for i, p := range panels {
		grid[i] = []*gonumplot.Plot{p}
	}
	canvases := gonumplot.Align(grid, tiles, dc)
	for i, p := range panels {
		p.Draw(canvases[i][0])
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create plot file, %w", err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("unable to write png, %w", err)
	}
	return f.Close()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
