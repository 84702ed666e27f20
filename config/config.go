// Package config defines the pipeline configuration. Values are resolved in order of
// increasing priority:
//
//	dataset preset -> yaml file -> .env file -> FORECAST_* environment variables
//
// and the result is validated before use.
package config

import (
	"fmt"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/forecast/options"
	"github.com/aouyang1/go-forecast-pipeline/horizon"
	"github.com/aouyang1/go-forecast-pipeline/plot"
	"github.com/aouyang1/go-forecast-pipeline/preprocess"
	"github.com/aouyang1/go-forecast-pipeline/source"
)

// Dataset presets
const (
	DatasetAirline = "airline"
	DatasetStock   = "stock"
)

// Source kinds
const (
	SourceHTTP  = "http"
	SourceYahoo = "yahoo"
	SourceLocal = "local"
)

const (
	DateLayout    = "2006-01-02"
	DefaultTicker = "AAPL"
	DefaultStart  = "2020-01-01"
)

// Config is the full pipeline configuration
type Config struct {
	Dataset              string `yaml:"dataset" validate:"required,oneof=airline stock"`
	Root                 string `yaml:"root"`
	SkipExistingDownload bool   `yaml:"skip_existing_download" split_words:"true"`
	MissingPolicy        string `yaml:"missing_policy" split_words:"true" validate:"oneof=drop interpolate"`
	CompressModel        bool   `yaml:"compress_model" split_words:"true"`
	HistoryDB            string `yaml:"history_db" split_words:"true"`

	Source  SourceConfig  `yaml:"source"`
	Model   ModelConfig   `yaml:"model"`
	Horizon HorizonConfig `yaml:"horizon"`
	HTTP    HTTPConfig    `yaml:"http"`
	Plot    PlotConfig    `yaml:"plot" ignored:"true"`
}

// SourceConfig selects where the raw data comes from
type SourceConfig struct {
	Kind        string `yaml:"kind" validate:"required,oneof=http yahoo local"`
	Name        string `yaml:"name" validate:"required"`
	URL         string `yaml:"url" validate:"required_if=Kind http"`
	Filename    string `yaml:"filename" validate:"required_if=Kind http"`
	Path        string `yaml:"path" validate:"required_if=Kind local"`
	Ticker      string `yaml:"ticker" validate:"required_if=Kind yahoo"`
	Start       string `yaml:"start" validate:"omitempty,datetime=2006-01-02"`
	End         string `yaml:"end" validate:"omitempty,datetime=2006-01-02"`
	TimeColumn  string `yaml:"time_column" split_words:"true" validate:"required"`
	ValueColumn string `yaml:"value_column" split_words:"true" validate:"required"`
}

// ModelConfig holds the forecast model settings
type ModelConfig struct {
	SeasonalityMode       string  `yaml:"seasonality_mode" split_words:"true" validate:"oneof=additive multiplicative"`
	ChangepointPriorScale float64 `yaml:"changepoint_prior_scale" split_words:"true" validate:"gt=0"`
	ChangepointRange      float64 `yaml:"changepoint_range" split_words:"true" validate:"gt=0,lte=1"`
	NumChangepoints       int     `yaml:"num_changepoints" split_words:"true" validate:"gte=0"`
	SeasonalityPriorScale float64 `yaml:"seasonality_prior_scale" split_words:"true" validate:"gt=0"`
	IntervalWidth         float64 `yaml:"interval_width" split_words:"true" validate:"gt=0,lt=1"`
	Yearly                string  `yaml:"yearly" validate:"omitempty,oneof=auto on off"`
	Weekly                string  `yaml:"weekly" validate:"omitempty,oneof=auto on off"`
	Daily                 string  `yaml:"daily" validate:"omitempty,oneof=auto on off"`
	OutlierPasses         int     `yaml:"outlier_passes" split_words:"true" validate:"gte=0"`
}

// HorizonConfig sets how far and at what spacing to forecast
type HorizonConfig struct {
	Periods   int    `yaml:"periods" validate:"gt=0"`
	Frequency string `yaml:"frequency" validate:"omitempty,oneof=H D B W MS"`
}

// HTTPConfig configures the download client
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" split_words:"true" validate:"gte=0"`
	UserAgent  string        `yaml:"user_agent" split_words:"true"`
}

// PlotConfig holds the figure labels and the future table precision. TableDecimals of -1
// picks the precision from the observed values.
type PlotConfig struct {
	Forecast         plot.Labels `yaml:"forecast"`
	ForecastVsActual plot.Labels `yaml:"forecast_vs_actual"`
	TableDecimals    int         `yaml:"table_decimals" validate:"gte=-1,lte=6"`
}

// Airline returns the monthly airline passengers preset
func Airline() *Config {
	return &Config{
		Dataset:              DatasetAirline,
		Root:                 ".",
		SkipExistingDownload: true,
		MissingPolicy:        string(preprocess.MissingDrop),
		HistoryDB:            "data/history.db",
		Source: SourceConfig{
			Kind:        SourceHTTP,
			Name:        source.AirlineName,
			URL:         source.AirlinePassengersURL,
			Filename:    source.AirlineRawFilename,
			TimeColumn:  "Month",
			ValueColumn: "Passengers",
		},
		Model: ModelConfig{
			SeasonalityMode:       string(options.SeasonalityMultiplicative),
			ChangepointPriorScale: 0.05,
			ChangepointRange:      options.DefaultChangepointRange,
			NumChangepoints:       options.DefaultAutoNumChangepoints,
			SeasonalityPriorScale: 10.0,
			IntervalWidth:         0.95,
			Yearly:                string(options.ToggleOn),
			Weekly:                string(options.ToggleOff),
			Daily:                 string(options.ToggleOff),
		},
		Horizon: HorizonConfig{
			Periods:   24,
			Frequency: string(horizon.MonthStart),
		},
		HTTP: defaultHTTP(),
		Plot: PlotConfig{
			TableDecimals: plot.AutoDecimals,
			Forecast: plot.Labels{
				Title:  "Forecast: Airline Passengers (1949-1960)",
				XLabel: "Date",
				YLabel: "Passengers",
			},
			ForecastVsActual: plot.Labels{
				Title:  "Forecast vs Actual: Airline Passengers",
				XLabel: "Date",
				YLabel: "Passengers",
			},
		},
	}
}

// Stock returns the daily closing price preset
func Stock() *Config {
	return &Config{
		Dataset:              DatasetStock,
		Root:                 ".",
		SkipExistingDownload: true,
		MissingPolicy:        string(preprocess.MissingDrop),
		HistoryDB:            "data/history.db",
		Source: SourceConfig{
			Kind:        SourceYahoo,
			Name:        "aapl",
			Ticker:      DefaultTicker,
			Start:       DefaultStart,
			TimeColumn:  "Date",
			ValueColumn: "Close",
		},
		Model: ModelConfig{
			SeasonalityMode:       string(options.SeasonalityAdditive),
			ChangepointPriorScale: options.DefaultChangepointPriorScale,
			ChangepointRange:      options.DefaultChangepointRange,
			NumChangepoints:       options.DefaultAutoNumChangepoints,
			SeasonalityPriorScale: options.DefaultSeasonalityPriorScale,
			IntervalWidth:         0.95,
			Yearly:                string(options.ToggleOn),
			Weekly:                string(options.ToggleOn),
			Daily:                 string(options.ToggleOff),
		},
		Horizon: HorizonConfig{
			Periods:   30,
			Frequency: string(horizon.Daily),
		},
		HTTP: defaultHTTP(),
		Plot: PlotConfig{
			TableDecimals: plot.AutoDecimals,
			Forecast: plot.Labels{
				Title:  "Apple Stock Price Forecast",
				XLabel: "Date",
				YLabel: "Price (USD)",
			},
			ForecastVsActual: plot.Labels{
				Title:  "Forecast vs Actual: Apple Stock Price",
				XLabel: "Date",
				YLabel: "Price (USD)",
			},
		},
	}
}

// Preset returns the preset for a dataset name
func Preset(dataset string) (*Config, error) {
	switch dataset {
	case DatasetAirline, "":
		return Airline(), nil
	case DatasetStock:
		return Stock(), nil
	}
	return nil, &ConfigError{
		Type:    ErrUnknownDataset,
		Message: fmt.Sprintf("no preset for dataset %q", dataset),
	}
}

func defaultHTTP() HTTPConfig {
	return HTTPConfig{
		Timeout:    30 * time.Second,
		MaxRetries: source.DefaultRetryPolicy().MaxRetries,
		UserAgent:  source.DefaultUserAgent,
	}
}

// Options converts the model settings into forecast options
func (m ModelConfig) Options() (*options.Options, error) {
	mode, err := options.ParseSeasonalityMode(m.SeasonalityMode)
	if err != nil {
		return nil, err
	}

	opt := options.NewDefaultOptions()
	opt.SeasonalityMode = mode
	opt.IntervalWidth = m.IntervalWidth

	opt.ChangepointOptions.PriorScale = m.ChangepointPriorScale
	opt.ChangepointOptions.Range = m.ChangepointRange
	opt.ChangepointOptions.AutoNumChangepoints = m.NumChangepoints
	opt.ChangepointOptions.Auto = m.NumChangepoints > 0

	opt.SeasonalityOptions.PriorScale = m.SeasonalityPriorScale
	toggles := map[string]string{
		options.LabelSeasYearly: m.Yearly,
		options.LabelSeasWeekly: m.Weekly,
		options.LabelSeasDaily:  m.Daily,
	}
	for name, raw := range toggles {
		tg, err := options.ParseToggle(raw)
		if err != nil {
			return nil, fmt.Errorf("%s seasonality, %w", name, err)
		}
		opt.SeasonalityOptions.Set(name, tg)
	}

	if m.OutlierPasses > 0 {
		opt.OutlierOptions = options.NewOutlierOptions()
		opt.OutlierOptions.NumPasses = m.OutlierPasses
	}

	if err := opt.Validate(); err != nil {
		return nil, fmt.Errorf("unable to validate model options, %w", err)
	}
	return opt, nil
}

// ParsedFrequency returns the horizon frequency, empty when it should be inferred from training
func (h HorizonConfig) ParsedFrequency() (horizon.Frequency, error) {
	if h.Frequency == "" {
		return "", nil
	}
	return horizon.ParseFrequency(h.Frequency)
}

// StartTime returns the parsed source start date
func (s SourceConfig) StartTime() (time.Time, error) {
	return parseDate(s.Start, time.Time{})
}

// EndTime returns the parsed source end date or now when unset
func (s SourceConfig) EndTime(now time.Time) (time.Time, error) {
	return parseDate(s.End, now)
}

func parseDate(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q, %w", s, err)
	}
	return t, nil
}
