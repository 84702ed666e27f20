// Package options contains all forecast options for fitting a trend and seasonality
// decomposition of a univariate time series
package options

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aouyang1/go-forecast-pipeline/forecast/util"
)

// DefaultPenaltyWeight scales the prior scales into the per feature lasso penalty
const (
	DefaultIntervalWidth = 0.80
	DefaultPenaltyWeight = 1e-4
)

var (
	ErrUnknownSeasonalityMode = errors.New("unknown seasonality mode")
	ErrInvalidIntervalWidth   = errors.New("interval width must be between 0 and 1 exclusive")
	ErrNonPositivePriorScale  = errors.New("prior scale must be positive")
	ErrNegativePenaltyWeight  = errors.New("negative penalty weight")
)

// SeasonalityMode describes how seasonal components combine with the trend
type SeasonalityMode string

const (
	SeasonalityAdditive       SeasonalityMode = "additive"
	SeasonalityMultiplicative SeasonalityMode = "multiplicative"
)

// ParseSeasonalityMode parses a case insensitive seasonality mode
func ParseSeasonalityMode(s string) (SeasonalityMode, error) {
	switch m := SeasonalityMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SeasonalityAdditive, SeasonalityMultiplicative:
		return m, nil
	}
	return "", fmt.Errorf("%q, %w", s, ErrUnknownSeasonalityMode)
}

// OutlierOptions configures the number of passes of residual outlier removal before the final
// fit. Each pass drops points outside of the tukey fences of the residual percentiles.
type OutlierOptions struct {
	NumPasses       int     `json:"num_passes"`
	UpperPercentile float64 `json:"upper_percentile"`
	LowerPercentile float64 `json:"lower_percentile"`
	TukeyFactor     float64 `json:"tukey_factor"`
}

func NewOutlierOptions() *OutlierOptions {
	return &OutlierOptions{
		NumPasses:       3,
		UpperPercentile: 0.9,
		LowerPercentile: 0.1,
		TukeyFactor:     1.0,
	}
}

// Options configures a forecast by specifying the seasonality mode, changepoints, seasonalities
// and the width of the uncertainty interval.
type Options struct {
	SeasonalityMode SeasonalityMode `json:"seasonality_mode"`

	ChangepointOptions ChangepointOptions `json:"changepoint_options"`
	SeasonalityOptions SeasonalityOptions `json:"seasonality_options"`

	// IntervalWidth is the probability mass covered by the lower and upper bounds
	IntervalWidth float64 `json:"interval_width"`

	// Lasso related options
	PenaltyWeight float64 `json:"penalty_weight"`
	Iterations    int     `json:"iterations"`
	Tolerance     float64 `json:"tolerance"`

	OutlierOptions *OutlierOptions `json:"outlier_options,omitempty"`
}

// NewDefaultOptions returns a set of default forecast options
func NewDefaultOptions() *Options {
	return &Options{
		SeasonalityMode:    SeasonalityAdditive,
		ChangepointOptions: NewDefaultChangepointOptions(),
		SeasonalityOptions: NewDefaultSeasonalityOptions(),
		IntervalWidth:      DefaultIntervalWidth,
		PenaltyWeight:      DefaultPenaltyWeight,
	}
}

// Validate checks the options and fills in zero values with defaults
func (o *Options) Validate() error {
	if o == nil {
		return nil
	}
	if o.SeasonalityMode == "" {
		o.SeasonalityMode = SeasonalityAdditive
	}
	if _, err := ParseSeasonalityMode(string(o.SeasonalityMode)); err != nil {
		return err
	}

	if o.IntervalWidth == 0 {
		o.IntervalWidth = DefaultIntervalWidth
	}
	if o.IntervalWidth <= 0 || o.IntervalWidth >= 1 {
		return fmt.Errorf("got %.3f, %w", o.IntervalWidth, ErrInvalidIntervalWidth)
	}

	if o.PenaltyWeight < 0 {
		return ErrNegativePenaltyWeight
	}

	if o.ChangepointOptions.PriorScale == 0 {
		o.ChangepointOptions.PriorScale = DefaultChangepointPriorScale
	}
	if o.ChangepointOptions.PriorScale < 0 {
		return fmt.Errorf("changepoint, %w", ErrNonPositivePriorScale)
	}
	if o.ChangepointOptions.Range == 0 {
		o.ChangepointOptions.Range = DefaultChangepointRange
	}
	if o.ChangepointOptions.Range < 0 || o.ChangepointOptions.Range > 1 {
		return ErrInvalidChangepointRange
	}

	if o.SeasonalityOptions.PriorScale == 0 {
		o.SeasonalityOptions.PriorScale = DefaultSeasonalityPriorScale
	}
	if o.SeasonalityOptions.PriorScale < 0 {
		return fmt.Errorf("seasonality, %w", ErrNonPositivePriorScale)
	}
	for _, seasCfg := range o.SeasonalityOptions.SeasonalityConfigs {
		if _, err := ParseToggle(string(seasCfg.Toggle)); err != nil {
			return fmt.Errorf("seasonality %q, %w", seasCfg.Name, err)
		}
	}
	return nil
}

// TablePrint writes a human readable summary of the options
func (o *Options) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	if o == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%s%sSeasonality Mode: %s\n", prefix, util.IndentExpand(indent, indentGrowth), o.SeasonalityMode); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sInterval Width: %.2f\n", prefix, util.IndentExpand(indent, indentGrowth), o.IntervalWidth); err != nil {
		return err
	}
	if err := o.SeasonalityOptions.TablePrint(w, prefix, indent, indentGrowth); err != nil {
		return err
	}
	return o.ChangepointOptions.TablePrint(w, prefix, indent, indentGrowth)
}
