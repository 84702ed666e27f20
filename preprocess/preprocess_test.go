package preprocess

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/source"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess(t *testing.T) {
	cols := source.Columns{Time: "Month", Value: "Passengers"}
	rows := [][]string{
		{"1949-01", "112"},
		{"1949-02", ""},
		{"1949-03", "NA"},
		{"1949-04", "130"},
		{"1949-05", ""},
	}

	testData := map[string]struct {
		rows     [][]string
		policy   MissingPolicy
		expected []float64
		report   Report
		err      error
	}{
		"no missing": {
			rows:     [][]string{{"1949-01", "112"}, {"1949-02", "118"}},
			policy:   MissingDrop,
			expected: []float64{112, 118},
			report:   Report{RowsIn: 2, RowsOut: 2},
		},
		"drop": {
			rows:     rows,
			policy:   MissingDrop,
			expected: []float64{112, 130},
			report:   Report{RowsIn: 5, RowsOut: 2, Dropped: 3},
		},
		"interpolate": {
			rows:   rows,
			policy: MissingInterpolate,
			// interpolated linearly in time, february is shorter than january
			expected: []float64{
				112,
				112 + 18*31.0/90.0,
				112 + 18*59.0/90.0,
				130,
			},
			report: Report{RowsIn: 5, RowsOut: 4, Dropped: 1, Imputed: 2},
		},
		"bad value": {
			rows:   [][]string{{"1949-01", "many"}},
			policy: MissingDrop,
			err:    timedataset.ErrUnparseableValue,
		},
		"infinite value": {
			rows:   [][]string{{"1949-01", "112"}, {"1949-02", "118"}, {"1949-03", "Inf"}},
			policy: MissingDrop,
			err:    timedataset.ErrUnparseableValue,
		},
		"all missing": {
			rows:   [][]string{{"1949-01", ""}},
			policy: MissingDrop,
			err:    ErrNoRowsRemaining,
		},
		"unknown policy": {
			rows:   [][]string{{"1949-01", "1"}},
			policy: "mean",
			err:    ErrUnknownMissingPolicy,
		},
		"missing column": {
			rows:   [][]string{{"1949-01"}},
			policy: MissingDrop,
			err:    source.ErrMissingColumn,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			header := []string{"Month", "Passengers"}
			if name == "missing column" {
				header = []string{"Month"}
			}
			tbl := &source.Table{Columns: header, Rows: td.rows}
			ds, report, err := Process(tbl, cols, td.policy)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.report, report)
			assert.InDeltaSlice(t, td.expected, ds.Y, 1e-9)
			assert.Equal(t, report.RowsOut, ds.Len())
			assert.Equal(t, report.RowsIn, report.RowsOut+report.Dropped)
		})
	}
}

func TestParseMissingPolicy(t *testing.T) {
	p, err := ParseMissingPolicy("")
	require.Nil(t, err)
	assert.Equal(t, MissingDrop, p)

	p, err = ParseMissingPolicy("Interpolate")
	require.Nil(t, err)
	assert.Equal(t, MissingInterpolate, p)

	_, err = ParseMissingPolicy("zero")
	assert.ErrorIs(t, err, ErrUnknownMissingPolicy)
}

func TestWriteReadCSV(t *testing.T) {
	testData := map[string]struct {
		t        []time.Time
		y        []float64
		expected string
	}{
		"dates": {
			t:        timedataset.GenerateMonthStartT(2, time.Date(1949, 1, 1, 0, 0, 0, 0, time.UTC)),
			y:        []float64{112, 118.5},
			expected: "ds,y\n1949-01-01,112\n1949-02-01,118.5\n",
		},
		"timestamps": {
			t:        timedataset.GenerateT(2, time.Hour, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)),
			y:        []float64{1.25, math.NaN()},
			expected: "ds,y\n2020-01-01T00:00:00Z,1.25\n2020-01-01T01:00:00Z,NaN\n",
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			ds, err := timedataset.NewUnivariateDataset(td.t, td.y)
			require.Nil(t, err)

			var buf bytes.Buffer
			require.Nil(t, WriteCSV(&buf, ds))
			assert.Equal(t, td.expected, buf.String())

			read, err := ReadCSV(strings.NewReader(buf.String()))
			require.Nil(t, err)
			require.Equal(t, ds.Len(), read.Len())
			for i := range ds.T {
				assert.True(t, ds.T[i].Equal(read.T[i]))
			}

			// rewriting what was read is byte identical
			var again bytes.Buffer
			require.Nil(t, WriteCSV(&again, read))
			assert.Equal(t, buf.String(), again.String())
		})
	}
}

func TestReadCSVErrors(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	assert.ErrorIs(t, err, timedataset.ErrNoTrainingData)

	_, err = ReadCSV(strings.NewReader("Month,Passengers\n1949-01,1\n"))
	assert.ErrorIs(t, err, ErrBadHeader)

	_, err = ReadCSV(strings.NewReader("ds,y\nnope,1\n"))
	assert.ErrorIs(t, err, timedataset.ErrUnparseableTime)
}

func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "processed", ProcessedFilename("airline"))
	ds, err := timedataset.NewUnivariateDataset(
		timedataset.GenerateMonthStartT(3, time.Date(1949, 1, 1, 0, 0, 0, 0, time.UTC)),
		[]float64{1, 2, 3},
	)
	require.Nil(t, err)
	require.Nil(t, WriteFile(path, ds))

	read, err := ReadFile(path)
	require.Nil(t, err)
	assert.Equal(t, ds.Y, read.Y)
	assert.True(t, strings.HasSuffix(path, "airline-processed.csv"))
}
