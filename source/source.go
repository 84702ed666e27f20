// Package source fetches raw time stamped observations and validates them before they are
// persisted unmodified
package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/timedataset"
)

var (
	ErrEmptyDataset   = errors.New("dataset has no rows")
	ErrMissingColumn  = errors.New("expected column not found")
	ErrRaggedRow      = errors.New("row has a different number of fields than the header")
	ErrEmptyTimestamp = errors.New("empty timestamp")
)

// Columns names the time and value columns of a raw table
type Columns struct {
	Time  string `yaml:"time" json:"time"`
	Value string `yaml:"value" json:"value"`
}

// Source is a dataset that can be fetched, persisted as raw bytes, and parsed back into a table
type Source interface {
	// Name identifies the dataset and prefixes the processed file
	Name() string
	// RawFilename is the file name the raw bytes are written to
	RawFilename() string
	Fetch(ctx context.Context) ([]byte, error)
	Parse(raw []byte) (*Table, error)
	Columns() Columns
}

// Table is the raw tabular form of a dataset with the original column names
type Table struct {
	Columns []string
	Rows    [][]string
}

// Index returns the position of the named column
func (t *Table) Index(col string) (int, bool) {
	if t == nil {
		return -1, false
	}
	idx := slices.IndexFunc(t.Columns, func(c string) bool {
		return strings.EqualFold(strings.TrimSpace(c), col)
	})
	return idx, idx >= 0
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Column returns a copy of the named column's cells
func (t *Table) Column(col string) ([]string, error) {
	idx, exists := t.Index(col)
	if !exists {
		return nil, fmt.Errorf("%q, %w", col, ErrMissingColumn)
	}
	out := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, row[idx])
	}
	return out, nil
}

// WriteCSV writes the table with its header
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("unable to write header, %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("unable to write rows, %w", err)
	}
	return nil
}

// ParseCSV reads a CSV document with a header row
func ParseCSV(raw []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
			return nil, fmt.Errorf("line %d, %w", perr.Line, ErrRaggedRow)
		}
		return nil, fmt.Errorf("unable to read csv, %w", err)
	}
	if len(records) == 0 {
		return nil, ErrEmptyDataset
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		// skip blank trailing lines
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		rows = append(rows, rec)
	}
	return &Table{Columns: header, Rows: rows}, nil
}

// Validate checks the table is non-empty, has the expected columns, and its timestamps parse
// and are strictly increasing with no duplicates
func Validate(tbl *Table, cols Columns) error {
	if tbl.Len() == 0 {
		return ErrEmptyDataset
	}
	for _, col := range []string{cols.Time, cols.Value} {
		if _, exists := tbl.Index(col); !exists {
			return fmt.Errorf("%q in %v, %w", col, tbl.Columns, ErrMissingColumn)
		}
	}

	cells, err := tbl.Column(cols.Time)
	if err != nil {
		return err
	}
	t := make([]time.Time, 0, len(cells))
	for i, cell := range cells {
		if strings.TrimSpace(cell) == "" {
			return fmt.Errorf("row %d, %w", i+1, ErrEmptyTimestamp)
		}
		tPnt, err := timedataset.ParseTime(cell)
		if err != nil {
			return fmt.Errorf("row %d, %w", i+1, err)
		}
		t = append(t, tPnt)
	}
	return timedataset.ValidateTime(t)
}

// FetchValidated fetches the raw bytes of the source and validates the parsed table
func FetchValidated(ctx context.Context, src Source) ([]byte, *Table, error) {
	raw, err := src.Fetch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to fetch %s, %w", src.Name(), err)
	}
	tbl, err := src.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse %s, %w", src.Name(), err)
	}
	if err := Validate(tbl, src.Columns()); err != nil {
		return nil, nil, fmt.Errorf("unable to validate %s, %w", src.Name(), err)
	}
	return raw, tbl, nil
}
