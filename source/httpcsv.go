package source

import (
	"context"
)

const (
	AirlinePassengersURL = "https://raw.githubusercontent.com/jbrownlee/Datasets/master/airline-passengers.csv"
	AirlineName          = "airline"
	AirlineRawFilename   = "airline-passengers.csv"
)

// HTTPCSV downloads a CSV document
type HTTPCSV struct {
	DatasetName string
	URL         string
	Filename    string
	Cols        Columns

	client *Client
}

func NewHTTPCSV(name, url, filename string, cols Columns, client *Client) *HTTPCSV {
	if client == nil {
		client = NewClient(nil)
	}
	return &HTTPCSV{
		DatasetName: name,
		URL:         url,
		Filename:    filename,
		Cols:        cols,
		client:      client,
	}
}

// NewAirlinePassengers returns the monthly airline passenger counts from 1949 to 1960
func NewAirlinePassengers(client *Client) *HTTPCSV {
	return NewHTTPCSV(
		AirlineName,
		AirlinePassengersURL,
		AirlineRawFilename,
		Columns{Time: "Month", Value: "Passengers"},
		client,
	)
}

func (h *HTTPCSV) Name() string        { return h.DatasetName }
func (h *HTTPCSV) RawFilename() string { return h.Filename }
func (h *HTTPCSV) Columns() Columns    { return h.Cols }

func (h *HTTPCSV) Fetch(ctx context.Context) ([]byte, error) {
	return h.client.Get(ctx, h.URL)
}

func (h *HTTPCSV) Parse(raw []byte) (*Table, error) {
	return ParseCSV(raw)
}
