// Package artifact reads and writes the trained model and forecast files shared between the
// pipeline steps
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aouyang1/go-forecast-pipeline/forecast"
	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var ErrNotFound = errors.New("artifact not found")

const (
	ModelFilename    = "model.json"
	ForecastFilename = "forecast.csv"
	MetricsCSV       = "metrics.csv"
	MetricsJSON      = "metrics.json"

	zstdExt = ".zst"
)

// ModelPath returns the model artifact path in dir, with the zstd extension when compressed
func ModelPath(dir string, compress bool) string {
	name := ModelFilename
	if compress {
		name += zstdExt
	}
	return filepath.Join(dir, name)
}

// FindModel returns the path of the model artifact in dir. The format given by compress is
// preferred and the other format is used only when the preferred file is missing.
func FindModel(dir string, compress bool) (string, error) {
	for _, compress := range []bool{compress, !compress} {
		path := ModelPath(dir, compress)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("unable to stat model artifact, %w", err)
		}
	}
	return "", fmt.Errorf("%s, %w", ModelPath(dir, compress), ErrNotFound)
}

// RemoveStaleModel deletes the model artifact in dir of the format not given by compress
func RemoveStaleModel(dir string, compress bool) error {
	path := ModelPath(dir, !compress)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to remove stale model %s, %w", path, err)
	}
	return nil
}

// EncodeModel serializes the model as indented json, compressed with zstd if requested
func EncodeModel(m forecast.Model, compress bool) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("unable to marshal model, %w", err)
	}
	if !compress {
		return data, nil
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("unable to create zstd encoder, %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// DecodeModel deserializes a model, decompressing it first when compressed
func DecodeModel(data []byte, compressed bool) (forecast.Model, error) {
	if compressed {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return forecast.Model{}, fmt.Errorf("unable to create zstd decoder, %w", err)
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			return forecast.Model{}, fmt.Errorf("unable to decompress model, %w", err)
		}
	}
	var m forecast.Model
	if err := json.Unmarshal(data, &m); err != nil {
		return forecast.Model{}, fmt.Errorf("unable to unmarshal model, %w", err)
	}
	return m, nil
}

// WriteModel writes the model to path, compressing when the path has a .zst extension
func WriteModel(path string, m forecast.Model) error {
	data, err := EncodeModel(m, isCompressed(path))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create model directory, %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("unable to write model, %w", err)
	}
	return nil
}

// ReadModel reads a model written by WriteModel
func ReadModel(path string) (forecast.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return forecast.Model{}, fmt.Errorf("%s, %w", path, ErrNotFound)
		}
		return forecast.Model{}, fmt.Errorf("unable to read model, %w", err)
	}
	return DecodeModel(data, isCompressed(path))
}

func isCompressed(path string) bool {
	return strings.EqualFold(filepath.Ext(path), zstdExt)
}
