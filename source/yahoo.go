package source

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange time zones on hosts without zoneinfo

	"github.com/goccy/go-json"
)

const (
	YahooChartURL   = "https://query1.finance.yahoo.com/v8/finance/chart"
	YahooDateLayout = "2006-01-02"
)

var (
	ErrYahoo       = errors.New("yahoo chart api error")
	ErrNoChartData = errors.New("no chart results")
)

// YahooColumns are the columns of a parsed chart in order
var YahooColumns = []string{"Date", "Open", "High", "Low", "Close", "Adj Close", "Volume"}

// Yahoo downloads daily bars for a ticker from the Yahoo Finance chart api. The raw JSON
// document is persisted and parsing dates the bars in the exchange time zone.
type Yahoo struct {
	Ticker  string
	Start   time.Time
	End     time.Time
	BaseURL string

	client *Client
}

// NewYahoo creates a Yahoo source for the ticker. A zero end fetches up to now.
func NewYahoo(ticker string, start, end time.Time, client *Client) *Yahoo {
	if client == nil {
		client = NewClient(nil)
	}
	return &Yahoo{
		Ticker:  strings.ToUpper(ticker),
		Start:   start,
		End:     end,
		BaseURL: YahooChartURL,
		client:  client,
	}
}

func (y *Yahoo) Name() string        { return strings.ToLower(y.Ticker) }
func (y *Yahoo) RawFilename() string { return strings.ToLower(y.Ticker) + "-chart.json" }

// Columns models the close price
func (y *Yahoo) Columns() Columns {
	return Columns{Time: "Date", Value: "Close"}
}

// URL returns the chart request for the configured window
func (y *Yahoo) URL() string {
	end := y.End
	if end.IsZero() {
		end = time.Now()
	}
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(y.Start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")
	q.Set("events", "history")
	q.Set("includeAdjustedClose", "true")
	return strings.TrimRight(y.BaseURL, "/") + "/" + url.PathEscape(y.Ticker) + "?" + q.Encode()
}

func (y *Yahoo) Fetch(ctx context.Context) ([]byte, error) {
	return y.client.Get(ctx, y.URL())
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// Parse converts the chart document into a table of daily bars. Null bars become empty cells.
func (y *Yahoo) Parse(raw []byte) (*Table, error) {
	var resp chartResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unable to decode chart response, %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s, %w", resp.Chart.Error.Code, resp.Chart.Error.Description, ErrYahoo)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, ErrNoChartData
	}
	res := resp.Chart.Result[0]

	loc := time.UTC
	if tz := res.Meta.ExchangeTimezoneName; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unable to load exchange time zone %q, %w", tz, err)
		}
		loc = l
	}

	n := len(res.Timestamp)
	cell := func(series []*float64, i int, prec int) string {
		if i >= len(series) || series[i] == nil {
			return ""
		}
		return strconv.FormatFloat(*series[i], 'f', prec, 64)
	}

	var open, high, low, closes, volume, adj []*float64
	if len(res.Indicators.Quote) > 0 {
		q := res.Indicators.Quote[0]
		open, high, low, closes, volume = q.Open, q.High, q.Low, q.Close, q.Volume
	}
	if len(res.Indicators.AdjClose) > 0 {
		adj = res.Indicators.AdjClose[0].AdjClose
	}

	rows := make([][]string, 0, n)
	for i, ts := range res.Timestamp {
		rows = append(rows, []string{
			time.Unix(ts, 0).In(loc).Format(YahooDateLayout),
			cell(open, i, -1),
			cell(high, i, -1),
			cell(low, i, -1),
			cell(closes, i, -1),
			cell(adj, i, -1),
			cell(volume, i, 0),
		})
	}

	return &Table{
		Columns: append([]string(nil), YahooColumns...),
		Rows:    rows,
	}, nil
}
