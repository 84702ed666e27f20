package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const airlineSample = `"Month","Passengers"
"1949-01",112
"1949-02",118
"1949-03",132
`

func TestParseCSV(t *testing.T) {
	testData := map[string]struct {
		raw      string
		expected *Table
		err      error
	}{
		"empty": {
			raw: "",
			err: ErrEmptyDataset,
		},
		"airline": {
			raw: airlineSample + "\n",
			expected: &Table{
				Columns: []string{"Month", "Passengers"},
				Rows: [][]string{
					{"1949-01", "112"},
					{"1949-02", "118"},
					{"1949-03", "132"},
				},
			},
		},
		"ragged": {
			raw: "a,b\n1,2,3\n",
			err: ErrRaggedRow,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			tbl, err := ParseCSV([]byte(td.raw))
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			assert.Equal(t, td.expected, tbl)
		})
	}
}

func TestValidate(t *testing.T) {
	cols := Columns{Time: "Month", Value: "Passengers"}

	testData := map[string]struct {
		tbl *Table
		err error
	}{
		"valid": {
			tbl: &Table{Columns: []string{"Month", "Passengers"}, Rows: [][]string{{"1949-01", "1"}, {"1949-02", "2"}}},
		},
		"case insensitive columns": {
			tbl: &Table{Columns: []string{"month", "passengers"}, Rows: [][]string{{"1949-01", "1"}}},
		},
		"empty": {
			tbl: &Table{Columns: []string{"Month", "Passengers"}},
			err: ErrEmptyDataset,
		},
		"missing column": {
			tbl: &Table{Columns: []string{"Month", "Count"}, Rows: [][]string{{"1949-01", "1"}}},
			err: ErrMissingColumn,
		},
		"unparseable time": {
			tbl: &Table{Columns: []string{"Month", "Passengers"}, Rows: [][]string{{"Jan", "1"}}},
			err: timedataset.ErrUnparseableTime,
		},
		"empty time": {
			tbl: &Table{Columns: []string{"Month", "Passengers"}, Rows: [][]string{{"", "1"}}},
			err: ErrEmptyTimestamp,
		},
		"duplicate": {
			tbl: &Table{Columns: []string{"Month", "Passengers"}, Rows: [][]string{{"1949-01", "1"}, {"1949-01", "2"}}},
			err: timedataset.ErrDuplicateTime,
		},
		"decreasing": {
			tbl: &Table{Columns: []string{"Month", "Passengers"}, Rows: [][]string{{"1949-02", "1"}, {"1949-01", "2"}}},
			err: timedataset.ErrNonMonotonic,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			err := Validate(td.tbl, cols)
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			assert.Nil(t, err)
		})
	}
}

func TestHTTPCSVFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(airlineSample))
	}))
	defer srv.Close()

	src := NewAirlinePassengers(NewClient(srv.Client()))
	src.URL = srv.URL

	raw, tbl, err := FetchValidated(context.Background(), src)
	require.Nil(t, err)
	assert.Equal(t, airlineSample, string(raw))
	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, "airline", src.Name())
	assert.Equal(t, AirlineRawFilename, src.RawFilename())
}

func TestLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.csv")
	require.Nil(t, os.WriteFile(path, []byte(airlineSample), 0o644))

	src := NewLocalFile("sample", path, Columns{Time: "Month", Value: "Passengers"})
	raw, tbl, err := FetchValidated(context.Background(), src)
	require.Nil(t, err)
	assert.Equal(t, airlineSample, string(raw))
	assert.Equal(t, "sample.csv", src.RawFilename())

	vals, err := tbl.Column("passengers")
	require.Nil(t, err)
	assert.Equal(t, []string{"112", "118", "132"}, vals)

	missing := NewLocalFile("missing", filepath.Join(t.TempDir(), "none.csv"), Columns{})
	_, _, err = FetchValidated(context.Background(), missing)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

const chartSample = `{"chart":{"result":[{"meta":{"symbol":"AAPL","exchangeTimezoneName":"America/New_York"},
"timestamp":[1577975400,1578061800,1578321000],
"indicators":{"quote":[{"open":[74.06,74.28,null],"high":[75.15,75.14,null],"low":[73.79,74.12,null],
"close":[75.0875,74.3575,null],"volume":[135480400,146322800,null]}],
"adjclose":[{"adjclose":[72.7,71.99,null]}]}}],"error":null}}`

func TestYahooParse(t *testing.T) {
	y := NewYahoo("aapl", time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{}, nil)
	assert.Equal(t, "aapl", y.Name())
	assert.Equal(t, "aapl-chart.json", y.RawFilename())

	tbl, err := y.Parse([]byte(chartSample))
	require.Nil(t, err)
	assert.Equal(t, YahooColumns, tbl.Columns)
	expected := [][]string{
		{"2020-01-02", "74.06", "75.15", "73.79", "75.0875", "72.7", "135480400"},
		{"2020-01-03", "74.28", "75.14", "74.12", "74.3575", "71.99", "146322800"},
		{"2020-01-06", "", "", "", "", "", ""},
	}
	assert.Equal(t, expected, tbl.Rows)
	assert.Nil(t, Validate(tbl, y.Columns()))

	_, err = y.Parse([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	assert.ErrorIs(t, err, ErrYahoo)

	_, err = y.Parse([]byte(`{"chart":{"result":[],"error":null}}`))
	assert.ErrorIs(t, err, ErrNoChartData)
}

func TestYahooFetch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/AAPL", r.URL.Path)
		query = r.URL.RawQuery
		w.Write([]byte(chartSample))
	}))
	defer srv.Close()

	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 1, 7, 0, 0, 0, 0, time.UTC)
	y := NewYahoo("AAPL", start, end, NewClient(srv.Client()))
	y.BaseURL = srv.URL

	raw, tbl, err := FetchValidated(context.Background(), y)
	require.Nil(t, err)
	assert.Equal(t, chartSample, string(raw))
	assert.Equal(t, 3, tbl.Len())
	assert.Contains(t, query, "period1=1577836800")
	assert.Contains(t, query, "period2=1578355200")
	assert.Contains(t, query, "interval=1d")
}
