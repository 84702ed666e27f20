package preprocess

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/timedataset"
)

const DateLayout = "2006-01-02"

var ErrBadHeader = errors.New("processed file header must be ds,y")

// ProcessedFilename is the processed file name for a dataset
func ProcessedFilename(name string) string {
	return name + "-processed.csv"
}

// TimeLayout returns the date layout when every time point is midnight UTC and RFC3339 otherwise
func TimeLayout(t []time.Time) string {
	for _, tPnt := range t {
		if tPnt.Location() != time.UTC || !tPnt.Equal(tPnt.Truncate(24*time.Hour)) {
			return time.RFC3339
		}
	}
	return DateLayout
}

// WriteCSV writes the dataset as ds,y. The output only depends on the dataset so unchanged
// input always produces identical bytes.
func WriteCSV(w io.Writer, td *timedataset.TimeDataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColumnTime, ColumnValue}); err != nil {
		return fmt.Errorf("unable to write header, %w", err)
	}
	layout := TimeLayout(td.T)
	for i := range td.T {
		rec := []string{
			td.T[i].Format(layout),
			strconv.FormatFloat(td.Y[i], 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("unable to write row %d, %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the processed dataset to path creating parent directories
func WriteFile(path string, td *timedataset.TimeDataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create directory, %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s, %w", path, err)
	}
	if err := WriteCSV(f, td); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV reads a processed ds,y file
func ReadCSV(r io.Reader) (*timedataset.TimeDataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 2

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, timedataset.ErrNoTrainingData
		}
		return nil, fmt.Errorf("unable to read header, %w", err)
	}
	if header[0] != ColumnTime || header[1] != ColumnValue {
		return nil, fmt.Errorf("got %v, %w", header, ErrBadHeader)
	}

	var t []time.Time
	var y []float64
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read line %d, %w", line, err)
		}
		tPnt, err := timedataset.ParseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		v, err := timedataset.ParseValue(rec[1])
		if err != nil {
			return nil, fmt.Errorf("line %d, %w", line, err)
		}
		t = append(t, tPnt)
		y = append(y, v)
	}
	return timedataset.NewUnivariateDataset(t, y)
}

// ReadFile reads a processed ds,y file from path
func ReadFile(path string) (*timedataset.TimeDataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s, %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
