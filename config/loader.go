package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. FORECAST_HORIZON_PERIODS
const EnvPrefix = "FORECAST"

const DefaultPath = "config.yaml"

// ConfigErrorType categorizes configuration loading failures
type ConfigErrorType string

const (
	ErrReading        ConfigErrorType = "READ_FAILED"
	ErrParsing        ConfigErrorType = "PARSING_FAILED"
	ErrValidation     ConfigErrorType = "VALIDATION_FAILED"
	ErrUnknownDataset ConfigErrorType = "UNKNOWN_DATASET"
)

// ConfigError is returned by the loader with the stage that failed
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsType reports whether err is a ConfigError of the given type
func IsType(err error, typ ConfigErrorType) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Type == typ
}

// Loader resolves a Config
type Loader struct {
	// Path is the yaml file. An empty path reads DefaultPath when it exists.
	Path string

	// Dataset overrides the dataset from every other source
	Dataset string

	// DotenvFiles are loaded into the environment without overriding variables already set.
	// Missing files are skipped.
	DotenvFiles []string
}

// Load resolves the configuration from the yaml file at path and the environment. A non
// empty dataset selects the preset and overrides the file and environment.
func Load(path, dataset string) (*Config, error) {
	return Loader{Path: path, Dataset: dataset, DotenvFiles: []string{".env"}}.Load()
}

// Load resolves and validates the configuration
func (l Loader) Load() (*Config, error) {
	for _, file := range l.DotenvFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, &ConfigError{
				Type:    ErrParsing,
				Message: fmt.Sprintf("failed to load dotenv file %s", file),
				Err:     err,
			}
		}
	}

	data, err := l.readFile()
	if err != nil {
		return nil, err
	}

	dataset, err := l.resolveDataset(data)
	if err != nil {
		return nil, err
	}
	cfg, err := Preset(dataset)
	if err != nil {
		return nil, err
	}

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{
				Type:    ErrParsing,
				Message: "failed to parse config file",
				Err:     err,
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	if l.Dataset != "" {
		cfg.Dataset = l.Dataset
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l Loader) readFile() ([]byte, error) {
	path := l.Path
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && l.Path == "" {
			slog.Debug("no config file, using preset", "path", path)
			return nil, nil
		}
		return nil, &ConfigError{
			Type:    ErrReading,
			Message: fmt.Sprintf("failed to read config file %s", path),
			Err:     err,
		}
	}
	return data, nil
}

// resolveDataset picks the preset by flag, then environment, then the file
func (l Loader) resolveDataset(data []byte) (string, error) {
	if l.Dataset != "" {
		return l.Dataset, nil
	}
	if ds, ok := os.LookupEnv(EnvPrefix + "_DATASET"); ok && ds != "" {
		return ds, nil
	}
	if len(data) == 0 {
		return DatasetAirline, nil
	}
	var head struct {
		Dataset string `yaml:"dataset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return "", &ConfigError{
			Type:    ErrParsing,
			Message: "failed to parse config file",
			Err:     err,
		}
	}
	return head.Dataset, nil
}

// Validate checks the configuration against its validation rules
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if _, err := c.Model.Options(); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "invalid model configuration",
			Err:     err,
		}
	}
	if _, err := c.Horizon.ParsedFrequency(); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "invalid horizon frequency",
			Err:     err,
		}
	}
	return nil
}

// Directory layout relative to the root
const (
	rawDir            = "data/raw"
	processedDir      = "data/processed"
	modelsDir         = "models"
	visualizationsDir = "results/visualizations"
)

func (c *Config) path(rel string) string {
	root := c.Root
	if root == "" {
		root = "."
	}
	return filepath.Join(root, filepath.FromSlash(rel))
}

func (c *Config) RawDir() string            { return c.path(rawDir) }
func (c *Config) ProcessedDir() string      { return c.path(processedDir) }
func (c *Config) ModelsDir() string         { return c.path(modelsDir) }
func (c *Config) VisualizationsDir() string { return c.path(visualizationsDir) }

// Dirs lists every output directory of the pipeline
func (c *Config) Dirs() []string {
	return []string{c.RawDir(), c.ProcessedDir(), c.ModelsDir(), c.VisualizationsDir()}
}

// HistoryPath returns the run ledger path, empty when the ledger is disabled
func (c *Config) HistoryPath() string {
	if strings.TrimSpace(c.HistoryDB) == "" {
		return ""
	}
	if filepath.IsAbs(c.HistoryDB) {
		return c.HistoryDB
	}
	return c.path(c.HistoryDB)
}
