// Package horizon generates the future time points a forecast is evaluated on
package horizon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"
)

var (
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrNegativePeriods  = errors.New("negative number of periods")
)

// Frequency is the spacing between consecutive forecast points
type Frequency string

const (
	Hourly      Frequency = "H"
	Daily       Frequency = "D"
	BusinessDay Frequency = "B"
	Weekly      Frequency = "W"
	MonthStart  Frequency = "MS"
)

// ParseFrequency parses a frequency alias, case insensitive
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(s))); f {
	case Hourly, Daily, BusinessDay, Weekly, MonthStart:
		return f, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownFrequency)
}

// goodFriday closes the US exchanges although it is not a federal holiday
var goodFriday = aa.GoodFriday.Clone(&cal.Holiday{Name: "Good Friday", Type: cal.ObservanceOther})

// MarketCalendar returns a business calendar with the US market holidays observed
func MarketCalendar() *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.Name = "US market"
	c.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.PresidentsDay,
		goodFriday,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	return c
}

// Generate returns exactly periods time points after last spaced by the frequency
func Generate(last time.Time, periods int, freq Frequency) ([]time.Time, error) {
	if periods < 0 {
		return nil, ErrNegativePeriods
	}

	var next func(time.Time) time.Time
	switch freq {
	case Hourly:
		next = func(t time.Time) time.Time { return t.Add(time.Hour) }
	case Daily:
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
	case Weekly:
		next = func(t time.Time) time.Time { return t.AddDate(0, 0, 7) }
	case MonthStart:
		next = func(t time.Time) time.Time {
			first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
			return first.AddDate(0, 1, 0)
		}
	case BusinessDay:
		c := MarketCalendar()
		next = func(t time.Time) time.Time {
			t = t.AddDate(0, 0, 1)
			for !c.IsWorkday(t) {
				t = t.AddDate(0, 0, 1)
			}
			return t
		}
	default:
		return nil, fmt.Errorf("%q, %w", freq, ErrUnknownFrequency)
	}

	out := make([]time.Time, 0, periods)
	curr := last
	for i := 0; i < periods; i++ {
		curr = next(curr)
		out = append(out, curr)
	}
	return out, nil
}

// Infer picks the frequency that best matches the median spacing of the observed times.
// Daily series without weekend observations are treated as business days.
func Infer(t []time.Time) (Frequency, error) {
	median, err := timedataset.MedianInterval(t)
	if err != nil {
		return "", err
	}

	day := 24 * time.Hour
	switch {
	case median < 2*time.Hour:
		return Hourly, nil
	case median < 2*day:
		for _, tPnt := range t {
			switch tPnt.Weekday() {
			case time.Saturday, time.Sunday:
				return Daily, nil
			}
		}
		return BusinessDay, nil
	case median < 14*day:
		return Weekly, nil
	}
	return MonthStart, nil
}
