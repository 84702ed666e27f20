// Package pipeline runs the forecasting steps in order: download, preprocess, train and
// visualize. Steps communicate only through the files they write under the configured root.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/artifact"
	"github.com/aouyang1/go-forecast-pipeline/config"
	"github.com/aouyang1/go-forecast-pipeline/evaluate"
	"github.com/aouyang1/go-forecast-pipeline/history"
	"github.com/aouyang1/go-forecast-pipeline/preprocess"
	"github.com/aouyang1/go-forecast-pipeline/source"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("required input not found")
	ErrUnknownSourceKind = errors.New("unknown source kind")
)

// Output file names
const (
	ForecastPlotFile     = "forecast_plot.png"
	ComponentsPlotFile   = "components_plot.png"
	ForecastVsActualFile = "forecast_vs_actual.png"
	DashboardFile        = "dashboard.html"
	FutureTableFile      = "future_forecast_table.csv"

	previewRows = 5
)

// Pipeline holds the resolved configuration and source of a run
type Pipeline struct {
	cfg    *config.Config
	src    source.Source
	runID  uuid.UUID
	logger *slog.Logger
	now    func() time.Time

	httpClient *http.Client
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSource replaces the source built from the configuration
func WithSource(src source.Source) Option {
	return func(p *Pipeline) {
		p.src = src
	}
}

// WithLogger sets the base logger. Run and dataset attributes are added to it.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithHTTPClient sets the http client used by download sources
func WithHTTPClient(c *http.Client) Option {
	return func(p *Pipeline) {
		p.httpClient = c
	}
}

// WithClock sets the time source used for the run start and open ended date ranges
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline for the configuration
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.Airline()
	}
	p := &Pipeline{
		cfg:    cfg,
		runID:  uuid.New(),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.src == nil {
		if p.httpClient == nil {
			p.httpClient = &http.Client{Timeout: cfg.HTTP.Timeout}
		}
		src, err := NewSource(cfg, p.httpClient, p.now())
		if err != nil {
			return nil, err
		}
		p.src = src
	}
	p.logger = p.logger.With("run_id", p.runID.String(), "dataset", p.src.Name())
	return p, nil
}

// NewSource builds the configured source
func NewSource(cfg *config.Config, httpClient *http.Client, now time.Time) (source.Source, error) {
	policy := source.DefaultRetryPolicy()
	policy.MaxRetries = cfg.HTTP.MaxRetries
	clientOpts := []source.ClientOption{source.WithRetryPolicy(policy)}
	if cfg.HTTP.UserAgent != "" {
		clientOpts = append(clientOpts, source.WithUserAgent(cfg.HTTP.UserAgent))
	}
	client := source.NewClient(httpClient, clientOpts...)

	sc := cfg.Source
	cols := source.Columns{Time: sc.TimeColumn, Value: sc.ValueColumn}
	switch sc.Kind {
	case config.SourceHTTP:
		return source.NewHTTPCSV(sc.Name, sc.URL, sc.Filename, cols, client), nil
	case config.SourceLocal:
		return source.NewLocalFile(sc.Name, sc.Path, cols), nil
	case config.SourceYahoo:
		start, err := sc.StartTime()
		if err != nil {
			return nil, fmt.Errorf("unable to parse start date, %w", err)
		}
		end, err := sc.EndTime(now)
		if err != nil {
			return nil, fmt.Errorf("unable to parse end date, %w", err)
		}
		y := source.NewYahoo(sc.Ticker, start, end, client)
		if sc.URL != "" {
			y.BaseURL = sc.URL
		}
		return y, nil
	}
	return nil, fmt.Errorf("%q, %w", sc.Kind, ErrUnknownSourceKind)
}

func (p *Pipeline) RunID() uuid.UUID       { return p.runID }
func (p *Pipeline) Logger() *slog.Logger   { return p.logger }
func (p *Pipeline) Config() *config.Config { return p.cfg }

// RawPath is where the downloaded bytes are stored
func (p *Pipeline) RawPath() string {
	return filepath.Join(p.cfg.RawDir(), p.src.RawFilename())
}

// ProcessedPath is where the cleaned ds,y file is stored
func (p *Pipeline) ProcessedPath() string {
	return filepath.Join(p.cfg.ProcessedDir(), preprocess.ProcessedFilename(p.src.Name()))
}

// ModelPath is where the trained model is stored
func (p *Pipeline) ModelPath() string {
	return artifact.ModelPath(p.cfg.ModelsDir(), p.cfg.CompressModel)
}

func (p *Pipeline) ForecastPath() string {
	return filepath.Join(p.cfg.ModelsDir(), artifact.ForecastFilename)
}

func (p *Pipeline) MetricsCSVPath() string {
	return filepath.Join(p.cfg.ModelsDir(), artifact.MetricsCSV)
}

func (p *Pipeline) MetricsJSONPath() string {
	return filepath.Join(p.cfg.ModelsDir(), artifact.MetricsJSON)
}

// VisualizationPath returns the path of a file in the visualization directory
func (p *Pipeline) VisualizationPath(name string) string {
	return filepath.Join(p.cfg.VisualizationsDir(), name)
}

// CreateDirectories creates every output directory
func (p *Pipeline) CreateDirectories() error {
	for _, dir := range p.cfg.Dirs() {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("unable to create directory %s, %w", dir, err)
		}
		p.logger.Info("created directory", "dir", dir)
	}
	return nil
}

// Summary describes a completed run
type Summary struct {
	RunID           uuid.UUID
	StartedAt       time.Time
	Duration        time.Duration
	Report          preprocess.Report
	Metrics         evaluate.Metrics
	Future          []FutureRow
	ProcessedSHA256 string
}

// Run executes every step in order and stops at the first failure. Completed runs are recorded
// in the history ledger when one is configured.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	begin := time.Now()
	p.logger.Info("starting forecast pipeline")

	sum := &Summary{RunID: p.runID, StartedAt: p.now()}
	if err := p.CreateDirectories(); err != nil {
		return nil, err
	}

	if err := p.step("download", func() error {
		return p.Download(ctx)
	}); err != nil {
		return nil, err
	}
	if err := p.step("preprocess", func() error {
		report, err := p.Preprocess(ctx)
		sum.Report = report
		return err
	}); err != nil {
		return nil, err
	}
	if err := p.step("train", func() error {
		res, err := p.Train(ctx)
		if err != nil {
			return err
		}
		sum.Metrics = res.Metrics
		sum.Future = res.Future
		return nil
	}); err != nil {
		return nil, err
	}
	if err := p.step("visualize", func() error {
		return p.Visualize(ctx)
	}); err != nil {
		return nil, err
	}

	hash, err := history.HashFile(p.ProcessedPath())
	if err != nil {
		return nil, err
	}
	sum.ProcessedSHA256 = hash
	sum.Duration = time.Since(begin)

	if err := p.record(ctx, sum); err != nil {
		return nil, err
	}

	p.logger.Info("pipeline completed",
		"elapsed", sum.Duration.Round(time.Millisecond),
		"processed", p.cfg.ProcessedDir(),
		"models", p.cfg.ModelsDir(),
		"visualizations", p.cfg.VisualizationsDir(),
	)
	return sum, nil
}

// step runs fn logging its start and elapsed time
func (p *Pipeline) step(name string, fn func() error) error {
	start := time.Now()
	p.logger.Info("running step", "step", name)
	if err := fn(); err != nil {
		p.logger.Error("step failed", "step", name, "elapsed", time.Since(start).Round(time.Millisecond), "error", err)
		return fmt.Errorf("%s step failed, %w", name, err)
	}
	p.logger.Info("step completed", "step", name, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// requireFile returns ErrNotFound when path does not exist
func requireFile(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s, %w", path, ErrNotFound)
	}
	return fmt.Errorf("unable to stat %s, %w", path, err)
}
