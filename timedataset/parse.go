package timedataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnparseableTime  = errors.New("unable to parse timestamp")
	ErrUnparseableValue = errors.New("unable to parse value")
)

// TimeLayouts are the accepted timestamp layouts in order of preference
var TimeLayouts = []string{
	"2006-01-02",
	"2006-01",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// ParseTime parses a timestamp trying each of the accepted layouts. Timestamps without a zone
// are interpreted as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.Trim(s, "\""))
	for _, layout := range TimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q, %w", s, ErrUnparseableTime)
}

// IsMissing reports whether a raw cell represents a missing value
func IsMissing(s string) bool {
	switch strings.TrimSpace(strings.Trim(s, "\"")) {
	case "", "NA", "NaN", "nan", "null", "None":
		return true
	}
	return false
}

// ParseValue parses a raw cell into a float. Missing cells parse to NaN and infinite values
// are rejected.
func ParseValue(s string) (float64, error) {
	if IsMissing(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.Trim(s, "\"")), 64)
	if err != nil || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q, %w", s, ErrUnparseableValue)
	}
	return v, nil
}
