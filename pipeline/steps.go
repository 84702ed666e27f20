package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/artifact"
	"github.com/aouyang1/go-forecast-pipeline/evaluate"
	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/aouyang1/go-forecast-pipeline/plot"
	"github.com/aouyang1/go-forecast-pipeline/preprocess"
	"github.com/aouyang1/go-forecast-pipeline/source"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
)

// FutureRow is one forecast record after the last observation
type FutureRow struct {
	Date       time.Time `json:"date"`
	Prediction float64   `json:"prediction"`
	Lower      float64   `json:"lower"`
	Upper      float64   `json:"upper"`
}

// TrainResult is the output of the train step
type TrainResult struct {
	Metrics evaluate.Metrics
	Future  []FutureRow
	Results *forecast.Results
}

// Download fetches the raw dataset and stores the bytes as received. An existing raw file is
// kept when skip_existing_download is set.
func (p *Pipeline) Download(ctx context.Context) error {
	path := p.RawPath()
	if p.cfg.SkipExistingDownload {
		if _, err := os.Stat(path); err == nil {
			p.logger.Info("raw data already exists, skipping download", "path", path)
			return nil
		}
	}

	raw, tbl, err := source.FetchValidated(ctx, p.src)
	if err != nil {
		return err
	}
	if err := writeBytes(path, raw); err != nil {
		return err
	}
	p.logger.Info("downloaded dataset", "path", path, "rows", tbl.Len(), "bytes", len(raw))
	return nil
}

// Preprocess parses the raw file, applies the missing value policy and writes the ds,y file
func (p *Pipeline) Preprocess(ctx context.Context) (preprocess.Report, error) {
	rawPath := p.RawPath()
	if err := requireFile(rawPath); err != nil {
		return preprocess.Report{}, err
	}
	raw, err := os.ReadFile(rawPath)
	if err != nil {
		return preprocess.Report{}, fmt.Errorf("unable to read raw data, %w", err)
	}
	tbl, err := p.src.Parse(raw)
	if err != nil {
		return preprocess.Report{}, fmt.Errorf("unable to parse raw data, %w", err)
	}
	policy, err := preprocess.ParseMissingPolicy(p.cfg.MissingPolicy)
	if err != nil {
		return preprocess.Report{}, err
	}

	cols := source.Columns{Time: p.cfg.Source.TimeColumn, Value: p.cfg.Source.ValueColumn}
	td, report, err := preprocess.Process(tbl, cols, policy)
	if err != nil {
		return report, err
	}
	if report.Dropped > 0 {
		p.logger.Warn("dropped rows with missing values",
			"dropped", report.Dropped,
			"rows_in", report.RowsIn,
			"policy", string(policy),
		)
	}
	if report.Imputed > 0 {
		p.logger.Info("interpolated missing values", "imputed", report.Imputed)
	}

	path := p.ProcessedPath()
	if err := preprocess.WriteFile(path, td); err != nil {
		return report, err
	}
	p.logger.Info("saved processed data",
		"path", path,
		"rows_in", report.RowsIn,
		"rows_out", report.RowsOut,
		"start", td.StartTime().Format(time.DateOnly),
		"end", td.EndTime().Format(time.DateOnly),
	)
	return report, nil
}

// Train fits the model on the processed data, forecasts the horizon and writes the model,
// forecast and metrics artifacts.
func (p *Pipeline) Train(ctx context.Context) (*TrainResult, error) {
	td, err := p.readProcessed()
	if err != nil {
		return nil, err
	}

	opt, err := p.cfg.Model.Options()
	if err != nil {
		return nil, err
	}
	f, err := forecast.New(opt)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize forecast, %w", err)
	}
	if err := f.Fit(td.T, td.Y); err != nil {
		return nil, fmt.Errorf("unable to fit forecast, %w", err)
	}
	if eq, err := f.ModelEq(); err == nil {
		p.logger.Debug("fitted model", "equation", eq)
	}

	freq, err := p.cfg.Horizon.ParsedFrequency()
	if err != nil {
		return nil, err
	}
	t, err := f.MakeFuture(p.cfg.Horizon.Periods, freq, true)
	if err != nil {
		return nil, err
	}
	res, err := f.Predict(t)
	if err != nil {
		return nil, fmt.Errorf("unable to predict, %w", err)
	}

	ev, err := evaluate.Join(td, res)
	if err != nil {
		return nil, fmt.Errorf("unable to join forecast with observations, %w", err)
	}
	metrics, err := ev.Metrics()
	if err != nil {
		return nil, err
	}

	model, err := f.Model()
	if err != nil {
		return nil, err
	}
	if err := artifact.WriteModel(p.ModelPath(), model); err != nil {
		return nil, err
	}
	if err := artifact.RemoveStaleModel(p.cfg.ModelsDir(), p.cfg.CompressModel); err != nil {
		return nil, err
	}
	if err := artifact.WriteForecastFile(p.ForecastPath(), res); err != nil {
		return nil, err
	}
	if err := writeWith(p.MetricsCSVPath(), metrics.WriteCSV); err != nil {
		return nil, err
	}
	if err := writeWith(p.MetricsJSONPath(), metrics.WriteJSON); err != nil {
		return nil, err
	}

	p.logger.Info("model metrics",
		"mae", metrics.MAE,
		"rmse", metrics.RMSE,
		"mape", metrics.MAPE,
		"r2", metrics.R2,
		"n", metrics.N,
	)

	future := futureRows(res.After(td.EndTime()))
	for i, row := range future {
		if i == previewRows {
			break
		}
		p.logger.Info("future prediction",
			"date", row.Date.Format(time.DateOnly),
			"prediction", row.Prediction,
			"lower", row.Lower,
			"upper", row.Upper,
		)
	}
	return &TrainResult{Metrics: metrics, Future: future, Results: res}, nil
}

// Visualize renders the plots, dashboard and future forecast table from the training artifacts
func (p *Pipeline) Visualize(ctx context.Context) error {
	td, err := p.readProcessed()
	if err != nil {
		return err
	}
	modelPath, err := artifact.FindModel(p.cfg.ModelsDir(), p.cfg.CompressModel)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return fmt.Errorf("%s, %w", p.ModelPath(), ErrNotFound)
		}
		return err
	}
	model, err := artifact.ReadModel(modelPath)
	if err != nil {
		return err
	}
	if err := requireFile(p.ForecastPath()); err != nil {
		return err
	}
	res, err := artifact.ReadForecastFile(p.ForecastPath())
	if err != nil {
		return err
	}

	ev, err := evaluate.Join(td, res)
	if err != nil {
		return fmt.Errorf("unable to join forecast with observations, %w", err)
	}

	width := p.cfg.Model.IntervalWidth
	if model.Options != nil {
		width = model.Options.IntervalWidth
	}
	freq, err := p.cfg.Horizon.ParsedFrequency()
	if err != nil {
		return err
	}
	if freq == "" {
		freq = model.Frequency
	}

	decimals := p.cfg.Plot.TableDecimals
	if decimals == plot.AutoDecimals {
		decimals = plot.TableDecimals(td.Y)
	}

	if err := os.MkdirAll(p.cfg.VisualizationsDir(), 0o755); err != nil {
		return fmt.Errorf("unable to create visualization directory, %w", err)
	}

	labels := p.cfg.Plot
	renders := []struct {
		name string
		fn   func(path string) error
	}{
		{ForecastPlotFile, func(path string) error {
			return plot.Forecast(path, td, res, labels.Forecast)
		}},
		{ComponentsPlotFile, func(path string) error {
			return plot.Components(path, res)
		}},
		{ForecastVsActualFile, func(path string) error {
			return plot.ForecastVsActual(path, ev, labels.ForecastVsActual)
		}},
		{DashboardFile, func(path string) error {
			return plot.Dashboard(path, td, res, ev)
		}},
		{FutureTableFile, func(path string) error {
			return plot.ForecastTableFile(path, res, td.EndTime(), width, freq, decimals)
		}},
	}
	for _, r := range renders {
		path := p.VisualizationPath(r.name)
		if err := r.fn(path); err != nil {
			return fmt.Errorf("unable to render %s, %w", r.name, err)
		}
		p.logger.Info("saved visualization", "path", path)
	}
	return nil
}

func (p *Pipeline) readProcessed() (*timedataset.TimeDataset, error) {
	path := p.ProcessedPath()
	if err := requireFile(path); err != nil {
		return nil, err
	}
	return preprocess.ReadFile(path)
}

func futureRows(res *forecast.Results) []FutureRow {
	rows := make([]FutureRow, 0, res.Len())
	for i := 0; i < res.Len(); i++ {
		rows = append(rows, FutureRow{
			Date:       res.T[i],
			Prediction: res.Forecast[i],
			Lower:      res.Lower[i],
			Upper:      res.Upper[i],
		})
	}
	return rows
}

func writeBytes(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %s, %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write %s, %w", path, err)
	}
	return nil
}

func writeWith(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for %s, %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s, %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
