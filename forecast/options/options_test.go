package options

import (
	"bytes"
	"testing"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	testData := map[string]struct {
		opt *Options
		err error
	}{
		"nil": {},
		"defaults": {
			opt: NewDefaultOptions(),
		},
		"zero value filled": {
			opt: &Options{},
		},
		"unknown mode": {
			opt: &Options{SeasonalityMode: "exponential"},
			err: ErrUnknownSeasonalityMode,
		},
		"interval width too large": {
			opt: &Options{IntervalWidth: 1.0},
			err: ErrInvalidIntervalWidth,
		},
		"negative prior scale": {
			opt: &Options{ChangepointOptions: ChangepointOptions{PriorScale: -1}},
			err: ErrNonPositivePriorScale,
		},
		"changepoint range": {
			opt: &Options{ChangepointOptions: ChangepointOptions{Range: 1.5}},
			err: ErrInvalidChangepointRange,
		},
		"unknown toggle": {
			opt: &Options{SeasonalityOptions: SeasonalityOptions{
				SeasonalityConfigs: []SeasonalityConfig{{Name: "yearly", Toggle: "maybe"}},
			}},
			err: ErrUnknownToggle,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			err := td.opt.Validate()
			if td.err != nil {
				assert.ErrorIs(t, err, td.err)
				return
			}
			require.Nil(t, err)
			if td.opt != nil {
				assert.Equal(t, SeasonalityAdditive, td.opt.SeasonalityMode)
				assert.Equal(t, DefaultIntervalWidth, td.opt.IntervalWidth)
				assert.Equal(t, DefaultChangepointPriorScale, td.opt.ChangepointOptions.PriorScale)
				assert.Equal(t, DefaultSeasonalityPriorScale, td.opt.SeasonalityOptions.PriorScale)
			}
		})
	}
}

func TestParseSeasonalityMode(t *testing.T) {
	m, err := ParseSeasonalityMode(" Multiplicative")
	require.Nil(t, err)
	assert.Equal(t, SeasonalityMultiplicative, m)

	_, err = ParseSeasonalityMode("log")
	assert.ErrorIs(t, err, ErrUnknownSeasonalityMode)
}

func TestSeasonalityTablePrint(t *testing.T) {
	testData := map[string]struct {
		opt          SeasonalityOptions
		prefix       string
		indent       string
		indentGrowth int
		expected     string
	}{
		"no configs": {
			expected: `Seasonality: None
`,
		},
		"no configs with prefix and indent": {
			prefix:       "  ",
			indent:       "--",
			indentGrowth: 1,
			expected: `  --Seasonality: None
`,
		},
		"config with prefix and indent": {
			opt: SeasonalityOptions{
				SeasonalityConfigs: []SeasonalityConfig{
					{Name: "s0", Period: 12 * time.Hour, Orders: 1, Toggle: ToggleOn},
				},
			},
			prefix:       "  ",
			indent:       "  ",
			indentGrowth: 1,
			expected: `    Seasonality:
       Name  Period Orders Toggle
         s0 12h0m0s      1     on
`,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.Nil(t, td.opt.TablePrint(&buf, td.prefix, td.indent, td.indentGrowth))
			assert.Equal(t, td.expected, buf.String())
		})
	}
}

func TestResolveSeasonality(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	type resolved struct {
		name   string
		orders int
	}

	testData := map[string]struct {
		t        []time.Time
		opt      func() SeasonalityOptions
		expected []resolved
	}{
		"too short": {
			t:   []time.Time{start},
			opt: NewDefaultSeasonalityOptions,
		},
		"monthly defaults": {
			t:   timedataset.GenerateMonthStartT(144, start),
			opt: NewDefaultSeasonalityOptions,
			expected: []resolved{
				{LabelSeasYearly, 5},
			},
		},
		"monthly forced weekly is dropped": {
			t: timedataset.GenerateMonthStartT(144, start),
			opt: func() SeasonalityOptions {
				s := NewDefaultSeasonalityOptions()
				s.Set(LabelSeasWeekly, ToggleOn)
				return s
			},
			expected: []resolved{
				{LabelSeasYearly, 5},
			},
		},
		"daily with short history": {
			t:   timedataset.GenerateT(100, Day, start),
			opt: NewDefaultSeasonalityOptions,
			expected: []resolved{
				{LabelSeasWeekly, 3},
			},
		},
		"daily with long history": {
			t:   timedataset.GenerateT(800, Day, start),
			opt: NewDefaultSeasonalityOptions,
			expected: []resolved{
				{LabelSeasYearly, 10},
				{LabelSeasWeekly, 3},
			},
		},
		"hourly with yearly off": {
			t: timedataset.GenerateT(24*30, time.Hour, start),
			opt: func() SeasonalityOptions {
				s := NewDefaultSeasonalityOptions()
				s.Set(LabelSeasYearly, ToggleOff)
				return s
			},
			expected: []resolved{
				{LabelSeasWeekly, 3},
				{LabelSeasDaily, 4},
			},
		},
		"forced yearly on short history": {
			t: timedataset.GenerateT(100, Day, start),
			opt: func() SeasonalityOptions {
				s := NewDefaultSeasonalityOptions()
				s.Set(LabelSeasYearly, ToggleOn)
				s.Set(LabelSeasWeekly, ToggleOff)
				return s
			},
			expected: []resolved{
				{LabelSeasYearly, 10},
			},
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			res := td.opt().Resolve(td.t)
			require.Len(t, res, len(td.expected))
			for i, exp := range td.expected {
				assert.Equal(t, exp.name, res[i].Name)
				assert.Equal(t, exp.orders, res[i].Orders)
				assert.Equal(t, ToggleOn, res[i].Toggle)
			}
		})
	}
}

func TestGenerateAutoChangepoints(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	testData := map[string]struct {
		n        int
		opt      ChangepointOptions
		expected int
		lastIdx  int
	}{
		"disabled": {
			n:   100,
			opt: ChangepointOptions{},
		},
		"default count": {
			n:        100,
			opt:      NewDefaultChangepointOptions(),
			expected: 25,
			lastIdx:  79,
		},
		"short history": {
			n:        10,
			opt:      NewDefaultChangepointOptions(),
			expected: 7,
			lastIdx:  7,
		},
		"single point": {
			n:   1,
			opt: NewDefaultChangepointOptions(),
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			tSeries := timedataset.GenerateT(td.n, Day, start)
			chpts := td.opt.GenerateAutoChangepoints(tSeries)
			require.Len(t, chpts, td.expected)
			if td.expected == 0 {
				return
			}
			assert.Equal(t, "auto_0", chpts[0].Name)
			assert.True(t, chpts[0].T.After(tSeries[0]))
			assert.Equal(t, tSeries[td.lastIdx], chpts[len(chpts)-1].T)
			for i := 1; i < len(chpts); i++ {
				assert.True(t, chpts[i].T.After(chpts[i-1].T))
			}
		})
	}
}

func TestResolveChangepoints(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	tSeries := timedataset.GenerateT(10, Day, start)

	opt := ChangepointOptions{
		Changepoints: []Changepoint{
			NewChangepoint("", start.Add(3*Day)),
			NewChangepoint("before", start.Add(-Day)),
			NewChangepoint("after", start.Add(20*Day)),
			NewChangepoint("launch", start.Add(5*Day)),
		},
	}
	chpts := opt.Resolve(tSeries)
	require.Len(t, chpts, 2)
	assert.Equal(t, "0", chpts[0].Name)
	assert.Equal(t, "launch", chpts[1].Name)
}

func TestChangepointTablePrint(t *testing.T) {
	opt := ChangepointOptions{
		Changepoints: []Changepoint{
			NewChangepoint("c1", time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	}
	var buf bytes.Buffer
	require.Nil(t, opt.TablePrint(&buf, "", "  ", 0))
	expected := `Changepoints:
   Name             Datetime
     c1 1970-01-01T00:00:00Z
`
	assert.Equal(t, expected, buf.String())
}
