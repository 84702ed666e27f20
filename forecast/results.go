package forecast

import "time"

// Components is the decomposition of a forecast. Trend is in the units of the series. For
// additive seasonality each seasonal component is added to the trend, for multiplicative
// seasonality each seasonal component is a relative effect so yhat = trend * (1 + total).
type Components struct {
	Trend         []float64            `json:"trend"`
	Seasonal      map[string][]float64 `json:"seasonal"`
	SeasonalTotal []float64            `json:"seasonal_total"`
}

// Results holds the forecast records for each requested time point
type Results struct {
	T        []time.Time `json:"time"`
	Forecast []float64   `json:"forecast"`
	Upper    []float64   `json:"upper"`
	Lower    []float64   `json:"lower"`

	Components Components `json:"components"`
}

// Len returns the number of forecast records
func (r *Results) Len() int {
	if r == nil {
		return 0
	}
	return len(r.T)
}

// SeasonalityNames returns the names of the seasonal components in a stable order
func (r *Results) SeasonalityNames() []string {
	if r == nil {
		return nil
	}
	return sortedKeys(r.Components.Seasonal)
}

// After returns the records strictly after the given time
func (r *Results) After(t time.Time) *Results {
	if r == nil {
		return nil
	}
	start := len(r.T)
	for i, tPnt := range r.T {
		if tPnt.After(t) {
			start = i
			break
		}
	}
	return r.slice(start, len(r.T))
}

func (r *Results) slice(start, end int) *Results {
	out := &Results{
		T:        append([]time.Time(nil), r.T[start:end]...),
		Forecast: append([]float64(nil), r.Forecast[start:end]...),
		Upper:    append([]float64(nil), r.Upper[start:end]...),
		Lower:    append([]float64(nil), r.Lower[start:end]...),
		Components: Components{
			Seasonal: make(map[string][]float64, len(r.Components.Seasonal)),
		},
	}
	if len(r.Components.Trend) == len(r.T) {
		out.Components.Trend = append([]float64(nil), r.Components.Trend[start:end]...)
	}
	if len(r.Components.SeasonalTotal) == len(r.T) {
		out.Components.SeasonalTotal = append([]float64(nil), r.Components.SeasonalTotal[start:end]...)
	}
	for name, vals := range r.Components.Seasonal {
		out.Components.Seasonal[name] = append([]float64(nil), vals[start:end]...)
	}
	return out
}
