package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/artifact"
	"github.com/aouyang1/go-forecast-pipeline/config"
	"github.com/aouyang1/go-forecast-pipeline/history"
	"github.com/aouyang1/go-forecast-pipeline/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// airlineCSV returns n months of a growing series with a yearly cycle
func airlineCSV(n int) string {
	var sb strings.Builder
	sb.WriteString("Month,Passengers\n")
	start := time.Date(1949, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		trend := 100.0 + 2.0*float64(i)
		y := trend * (1.0 + 0.2*math.Sin(2.0*math.Pi*float64(i)/12.0))
		fmt.Fprintf(&sb, "%s,%.0f\n", start.AddDate(0, i, 0).Format("2006-01"), y)
	}
	return sb.String()
}

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "passengers.csv")
	require.Nil(t, os.WriteFile(path, []byte(airlineCSV(144)), 0o644))

	cfg := config.Airline()
	cfg.Root = filepath.Join(dir, "run")
	cfg.Source.Kind = config.SourceLocal
	cfg.Source.Name = "passengers"
	cfg.Source.Path = path
	require.Nil(t, cfg.Validate())
	return cfg
}

func newTestPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	p, err := New(cfg, opts...)
	require.Nil(t, err)
	return p
}

func TestRun(t *testing.T) {
	cfg := localConfig(t)
	p := newTestPipeline(t, cfg)

	sum, err := p.Run(context.Background())
	require.Nil(t, err)
	assert.Equal(t, p.RunID(), sum.RunID)
	assert.Equal(t, 144, sum.Report.RowsIn)
	assert.Equal(t, 144, sum.Report.RowsOut)
	assert.Len(t, sum.Future, cfg.Horizon.Periods)
	assert.Equal(t, time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC), sum.Future[0].Date)
	assert.NotEmpty(t, sum.ProcessedSHA256)

	m := sum.Metrics
	assert.Equal(t, 144, m.N)
	assert.GreaterOrEqual(t, m.MAE, 0.0)
	assert.GreaterOrEqual(t, m.RMSE, 0.0)
	assert.GreaterOrEqual(t, m.MAPE, 0.0)
	assert.LessOrEqual(t, m.R2, 1.0)
	assert.Greater(t, m.R2, 0.9)

	for _, row := range sum.Future {
		assert.LessOrEqual(t, row.Lower, row.Prediction)
		assert.LessOrEqual(t, row.Prediction, row.Upper)
	}

	outputs := []string{
		p.RawPath(),
		p.ProcessedPath(),
		p.ModelPath(),
		p.ForecastPath(),
		p.MetricsCSVPath(),
		p.MetricsJSONPath(),
		p.VisualizationPath(ForecastPlotFile),
		p.VisualizationPath(ComponentsPlotFile),
		p.VisualizationPath(ForecastVsActualFile),
		p.VisualizationPath(DashboardFile),
		p.VisualizationPath(FutureTableFile),
	}
	for _, path := range outputs {
		info, err := os.Stat(path)
		require.Nil(t, err, path)
		assert.Greater(t, info.Size(), int64(0), path)
	}

	assert.Equal(t, filepath.Join(cfg.Root, "data", "processed", "passengers-processed.csv"), p.ProcessedPath())

	table, err := os.ReadFile(p.VisualizationPath(FutureTableFile))
	require.Nil(t, err)
	lines := strings.Split(strings.TrimRight(string(table), "\n"), "\n")
	require.Len(t, lines, cfg.Horizon.Periods+1)
	assert.Equal(t, "Date,Forecast,Lower Bound (95%),Upper Bound (95%)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Jan 1961,"), lines[1])
	// whole passenger counts are shown as integers
	assert.NotContains(t, lines[1], ".")

	f, err := os.Open(p.ForecastPath())
	require.Nil(t, err)
	defer f.Close()
	res, err := artifact.ReadForecast(f)
	require.Nil(t, err)
	assert.Equal(t, 144+cfg.Horizon.Periods, res.Len())
}

func TestRunIsRepeatable(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)

	first, err := newTestPipeline(t, cfg).Run(ctx)
	require.Nil(t, err)
	processed, err := os.ReadFile(newTestPipeline(t, cfg).ProcessedPath())
	require.Nil(t, err)

	p := newTestPipeline(t, cfg)
	second, err := p.Run(ctx)
	require.Nil(t, err)
	again, err := os.ReadFile(p.ProcessedPath())
	require.Nil(t, err)

	assert.Equal(t, processed, again)
	assert.Equal(t, first.ProcessedSHA256, second.ProcessedSHA256)
	assert.True(t, first.Metrics.Equal(second.Metrics, metricsTolerance))
	assert.NotEqual(t, first.RunID, second.RunID)

	runs, err := p.History(ctx, 0)
	require.Nil(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.RunID, runs[0].ID)
	assert.Equal(t, first.RunID, runs[1].ID)
	for _, run := range runs {
		assert.Equal(t, "passengers", run.Dataset)
		assert.Equal(t, first.ProcessedSHA256, run.ProcessedSHA256)
		assert.Equal(t, 144, run.Rows)
	}
}

func TestRunWithoutHistory(t *testing.T) {
	cfg := localConfig(t)
	cfg.HistoryDB = ""
	p := newTestPipeline(t, cfg)

	_, err := p.Run(context.Background())
	require.Nil(t, err)

	runs, err := p.History(context.Background(), 0)
	require.Nil(t, err)
	assert.Empty(t, runs)
	_, err = os.Stat(filepath.Join(cfg.Root, "data", history.DefaultFilename))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMissingInputs(t *testing.T) {
	ctx := context.Background()
	testData := map[string]func(p *Pipeline) error{
		"preprocess": func(p *Pipeline) error {
			_, err := p.Preprocess(ctx)
			return err
		},
		"train": func(p *Pipeline) error {
			_, err := p.Train(ctx)
			return err
		},
		"visualize": func(p *Pipeline) error {
			return p.Visualize(ctx)
		},
	}

	for name, step := range testData {
		t.Run(name, func(t *testing.T) {
			p := newTestPipeline(t, localConfig(t))
			assert.ErrorIs(t, step(p), ErrNotFound)
		})
	}
}

func TestVisualizeWithoutModel(t *testing.T) {
	ctx := context.Background()
	p := newTestPipeline(t, localConfig(t))
	require.Nil(t, p.Download(ctx))
	_, err := p.Preprocess(ctx)
	require.Nil(t, err)

	assert.ErrorIs(t, p.Visualize(ctx), ErrNotFound)
}

func TestCompressedModel(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)
	cfg.CompressModel = true
	p := newTestPipeline(t, cfg)

	_, err := p.Run(ctx)
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(p.ModelPath(), ".zst"))

	path, err := artifact.FindModel(cfg.ModelsDir(), cfg.CompressModel)
	require.Nil(t, err)
	assert.Equal(t, p.ModelPath(), path)
}

func TestModelFormatSwitch(t *testing.T) {
	ctx := context.Background()
	cfg := localConfig(t)

	testData := map[string]struct {
		compress bool
		width    float64
		header   string
	}{
		"plain": {
			compress: false,
			width:    0.8,
			header:   "Date,Forecast,Lower Bound (80%),Upper Bound (80%)",
		},
		"compressed": {
			compress: true,
			width:    0.95,
			header:   "Date,Forecast,Lower Bound (95%),Upper Bound (95%)",
		},
	}

	// plain first so the compressed run replaces an existing plain model
	for _, name := range []string{"plain", "compressed"} {
		td := testData[name]
		t.Run(name, func(t *testing.T) {
			cfg.CompressModel = td.compress
			cfg.Model.IntervalWidth = td.width
			p := newTestPipeline(t, cfg)

			_, err := p.Run(ctx)
			require.Nil(t, err)

			_, err = os.Stat(artifact.ModelPath(cfg.ModelsDir(), !td.compress))
			assert.ErrorIs(t, err, os.ErrNotExist)

			table, err := os.ReadFile(p.VisualizationPath(FutureTableFile))
			require.Nil(t, err)
			header, _, _ := strings.Cut(string(table), "\n")
			assert.Equal(t, td.header, header)
		})
	}
}

func TestMissingValuesLoggedOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passengers.csv")
	lines := strings.Split(airlineCSV(48), "\n")
	lines[3] = "1949-03,"
	require.Nil(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	cfg := localConfig(t)
	cfg.Source.Path = path

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	prev := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(prev) })

	p := newTestPipeline(t, cfg, WithLogger(logger))
	require.Nil(t, p.Download(context.Background()))
	report, err := p.Preprocess(context.Background())
	require.Nil(t, err)
	assert.Equal(t, 1, report.Dropped)

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "dropped rows with missing values"))
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "dropped rows with missing values") {
			assert.Contains(t, line, "run_id="+p.RunID().String())
			assert.Contains(t, line, "dropped=1")
		}
	}
}

func TestDownloadHTTP(t *testing.T) {
	body := airlineCSV(36)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(body))
	}))
	defer srv.Close()

	cfg := config.Airline()
	cfg.Root = t.TempDir()
	cfg.Source.URL = srv.URL
	cfg.HTTP.MaxRetries = 0

	ctx := context.Background()
	p := newTestPipeline(t, cfg, WithHTTPClient(srv.Client()))
	assert.Equal(t, filepath.Join(cfg.Root, "data", "raw", source.AirlineRawFilename), p.RawPath())

	require.Nil(t, p.Download(ctx))
	raw, err := os.ReadFile(p.RawPath())
	require.Nil(t, err)
	assert.Equal(t, body, string(raw))
	assert.Equal(t, int32(1), hits.Load())

	// existing raw file is kept
	require.Nil(t, p.Download(ctx))
	assert.Equal(t, int32(1), hits.Load())

	cfg.SkipExistingDownload = false
	require.Nil(t, p.Download(ctx))
	assert.Equal(t, int32(2), hits.Load())

	report, err := p.Preprocess(ctx)
	require.Nil(t, err)
	assert.Equal(t, 36, report.RowsOut)
}

func TestDownloadErrors(t *testing.T) {
	testData := map[string]struct {
		handler http.HandlerFunc
		err     error
	}{
		"not found": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			err: source.ErrUnexpectedStatus,
		},
		"missing column": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("Month,Riders\n1949-01,112\n"))
			},
			err: source.ErrMissingColumn,
		},
		"empty dataset": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("Month,Passengers\n"))
			},
			err: source.ErrEmptyDataset,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(td.handler)
			defer srv.Close()

			cfg := config.Airline()
			cfg.Root = t.TempDir()
			cfg.Source.URL = srv.URL
			cfg.HTTP.MaxRetries = 0
			p := newTestPipeline(t, cfg, WithHTTPClient(srv.Client()))

			_, err := p.Run(context.Background())
			require.NotNil(t, err)
			assert.ErrorIs(t, err, td.err)
			assert.Contains(t, err.Error(), "download step failed")
			_, statErr := os.Stat(p.RawPath())
			assert.ErrorIs(t, statErr, os.ErrNotExist)
		})
	}
}

func TestNewSource(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	testData := map[string]struct {
		cfg      func() *config.Config
		name     string
		filename string
		err      error
	}{
		"airline": {
			cfg:      config.Airline,
			name:     source.AirlineName,
			filename: source.AirlineRawFilename,
		},
		"stock": {
			cfg:      config.Stock,
			name:     "aapl",
			filename: "aapl-chart.json",
		},
		"local": {
			cfg: func() *config.Config {
				cfg := config.Airline()
				cfg.Source.Kind = config.SourceLocal
				cfg.Source.Name = "mine"
				cfg.Source.Path = filepath.Join("in", "mine.csv")
				return cfg
			},
			name:     "mine",
			filename: "mine.csv",
		},
		"unknown kind": {
			cfg: func() *config.Config {
				cfg := config.Airline()
				cfg.Source.Kind = "ftp"
				return cfg
			},
			err: ErrUnknownSourceKind,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			src, err := NewSource(td.cfg(), http.DefaultClient, now)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.name, src.Name())
			assert.Equal(t, td.filename, src.RawFilename())
		})
	}
}

func TestStepLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	p := newTestPipeline(t, localConfig(t), WithLogger(logger))

	_, err := p.Train(context.Background())
	require.NotNil(t, err)

	err = p.step("train", func() error { return ErrNotFound })
	assert.ErrorIs(t, err, ErrNotFound)
	out := buf.String()
	assert.Contains(t, out, "step=train")
	assert.Contains(t, out, "step failed")
	assert.Contains(t, out, "run_id="+p.RunID().String())
	assert.Contains(t, out, "dataset=passengers")
}
