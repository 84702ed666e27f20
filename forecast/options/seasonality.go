package options

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/forecast/util"
)

const (
	LabelSeasYearly = "yearly"
	LabelSeasWeekly = "weekly"
	LabelSeasDaily  = "daily"

	DefaultSeasonalityPriorScale = 10.0

	Day  = 24 * time.Hour
	Week = 7 * Day
	// Year is the average calendar year of 365.25 days
	Year = time.Duration(365.25 * float64(Day))
)

var ErrUnknownToggle = errors.New("unknown seasonality toggle")

// Toggle turns a seasonality on, off or lets the history length and sampling decide
type Toggle string

const (
	ToggleAuto Toggle = "auto"
	ToggleOn   Toggle = "on"
	ToggleOff  Toggle = "off"
)

func ParseToggle(s string) (Toggle, error) {
	switch tg := Toggle(strings.ToLower(strings.TrimSpace(s))); tg {
	case "":
		return ToggleAuto, nil
	case ToggleAuto, ToggleOn, ToggleOff:
		return tg, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownToggle)
}

// SeasonalityOptions configures the seasonal components to fit for and the prior scale
// shared by all Fourier features. A larger prior scale allows larger seasonal swings.
type SeasonalityOptions struct {
	PriorScale         float64             `json:"prior_scale"`
	SeasonalityConfigs []SeasonalityConfig `json:"seasonality_configs"`
}

func (s SeasonalityOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(s.SeasonalityConfigs) > 0 {
		noCfg = ""
		fmt.Fprintf(tbl, "%s%sName\tPeriod\tOrders\tToggle\t\n", prefix, util.IndentExpand(indent, indentGrowth+1))
	}
	fmt.Fprintf(w, "%s%sSeasonality:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg)
	for _, seasCfg := range s.SeasonalityConfigs {
		fmt.Fprintf(tbl, "%s%s%s\t%s\t%d\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			seasCfg.Name, seasCfg.Period, seasCfg.Orders, seasCfg.Toggle)
	}
	return tbl.Flush()
}

// NewDefaultSeasonalityOptions generates yearly, weekly and daily seasonality configs which
// are enabled depending on the training history
func NewDefaultSeasonalityOptions() SeasonalityOptions {
	return SeasonalityOptions{
		PriorScale: DefaultSeasonalityPriorScale,
		SeasonalityConfigs: []SeasonalityConfig{
			NewYearlySeasonalityConfig(10),
			NewWeeklySeasonalityConfig(3),
			NewDailySeasonalityConfig(4),
		},
	}
}

// Set replaces the toggle of the named seasonality, returning false if no config has the name
func (s *SeasonalityOptions) Set(name string, toggle Toggle) bool {
	for i := range s.SeasonalityConfigs {
		if s.SeasonalityConfigs[i].Name == name {
			s.SeasonalityConfigs[i].Toggle = toggle
			return true
		}
	}
	return false
}

// Resolve returns the seasonalities to model given the training time points. Auto toggled
// configs are enabled by the history length and sampling interval. Orders are capped below the
// Nyquist limit of the median sampling interval and configs left with no orders are dropped.
func (s SeasonalityOptions) Resolve(t []time.Time) []SeasonalityConfig {
	if len(t) < 2 {
		return nil
	}
	history := t[len(t)-1].Sub(t[0])

	interval := medianInterval(t)

	resolved := make([]SeasonalityConfig, 0, len(s.SeasonalityConfigs))
	seen := make(map[string]struct{})
	for _, seasCfg := range s.SeasonalityConfigs {
		if seasCfg.Name == "" || seasCfg.Period <= 0 || seasCfg.Orders <= 0 {
			continue
		}
		if _, exists := seen[seasCfg.Name]; exists {
			slog.Warn("duplicate seasonality name, skipping", "name", seasCfg.Name)
			continue
		}

		switch seasCfg.Toggle {
		case ToggleOff:
			continue
		case ToggleAuto, "":
			if !seasCfg.autoEnabled(history, interval) {
				slog.Debug("seasonality disabled by history or sampling", "name", seasCfg.Name, "history", history, "interval", interval)
				continue
			}
		}

		maxOrder := seasCfg.maxOrder(interval)
		if maxOrder <= 0 {
			slog.Warn("seasonality period not resolvable at sampling interval, dropping", "name", seasCfg.Name, "period", seasCfg.Period, "interval", interval)
			continue
		}
		if seasCfg.Orders > maxOrder {
			slog.Debug("capping seasonality orders", "name", seasCfg.Name, "orders", seasCfg.Orders, "max_orders", maxOrder)
			seasCfg.Orders = maxOrder
		}
		seasCfg.Toggle = ToggleOn
		seen[seasCfg.Name] = struct{}{}
		resolved = append(resolved, seasCfg)
	}
	sort.Slice(resolved, func(i, j int) bool {
		return resolved[i].Period > resolved[j].Period
	})
	return resolved
}

func medianInterval(t []time.Time) time.Duration {
	deltas := make([]time.Duration, 0, len(t)-1)
	for i := 1; i < len(t); i++ {
		deltas = append(deltas, t[i].Sub(t[i-1]))
	}
	sort.Slice(deltas, func(i, j int) bool { return deltas[i] < deltas[j] })
	return deltas[len(deltas)/2]
}

// SeasonalityConfig represents a single seasonality configuration to model. This will generate
// Fourier series of the specified period and number of orders. E.g. a period of 24*time.Hour
// with 3 orders will create 6 Fourier series of order 1, 2, 3 and for the sine/cosine components
// where order 1 will have a period of 1 day and order 2 will have a period of 12 hours.
type SeasonalityConfig struct {
	Name   string        `json:"name"`
	Orders int           `json:"orders"`
	Period time.Duration `json:"period"`
	Toggle Toggle        `json:"toggle"`
}

// NewSeasonalityConfig creates a new auto toggled seasonality config given a name, period and orders
func NewSeasonalityConfig(name string, period time.Duration, orders int) SeasonalityConfig {
	if orders < 0 {
		orders = 0
	}

	return SeasonalityConfig{
		Name:   name,
		Orders: orders,
		Period: period,
		Toggle: ToggleAuto,
	}
}

func NewYearlySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasYearly, Year, orders)
}

func NewWeeklySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasWeekly, Week, orders)
}

func NewDailySeasonalityConfig(orders int) SeasonalityConfig {
	return NewSeasonalityConfig(LabelSeasDaily, Day, orders)
}

// PeriodDays returns the seasonal period in days
func (s SeasonalityConfig) PeriodDays() float64 {
	return float64(s.Period) / float64(Day)
}

// autoEnabled requires two full periods of history and sampling finer than the period
func (s SeasonalityConfig) autoEnabled(history, interval time.Duration) bool {
	if history < 2*s.Period {
		return false
	}
	// yearly seasonality only needs the history
	if s.Period >= Year {
		return true
	}
	return interval < s.Period
}

// maxOrder is the largest order whose frequency stays below the Nyquist limit of the interval
func (s SeasonalityConfig) maxOrder(interval time.Duration) int {
	if interval <= 0 {
		return s.Orders
	}
	return int(math.Ceil(float64(s.Period)/(2*float64(interval)))) - 1
}
