package options

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/forecast/util"
)

const (
	DefaultAutoNumChangepoints   = 25
	DefaultChangepointRange      = 0.8
	DefaultChangepointPriorScale = 0.05
)

var ErrInvalidChangepointRange = errors.New("changepoint range must be between 0 and 1")

// Changepoint describes a point in time that will change the ongoing trend
type Changepoint struct {
	T    time.Time `json:"time"`
	Name string    `json:"name"`
}

func NewChangepoint(name string, t time.Time) Changepoint {
	return Changepoint{t, name}
}

// ChangepointOptions configures the changepoints of the trend. Auto-detection places N
// changepoints on observed time points evenly across the first Range fraction of the
// training history, and the prior scale controls how flexible the trend is at each one.
// Changepoints explicitly set are always kept.
type ChangepointOptions struct {
	Changepoints        []Changepoint `json:"changepoints"`
	Auto                bool          `json:"auto"`
	AutoNumChangepoints int           `json:"auto_num_changepoints"`
	Range               float64       `json:"range"`
	PriorScale          float64       `json:"prior_scale"`
	EnableBias          bool          `json:"enable_bias"`
}

func (c ChangepointOptions) TablePrint(w io.Writer, prefix, indent string, indentGrowth int) error {
	tbl := tabwriter.NewWriter(w, 0, 0, 1, ' ', tabwriter.AlignRight)
	noCfg := " None"
	if len(c.Changepoints) > 0 {
		noCfg = ""
		fmt.Fprintf(tbl, "%s%sName\tDatetime\t\n", prefix, util.IndentExpand(indent, indentGrowth+1))
	}
	fmt.Fprintf(w, "%s%sChangepoints:%s\n", prefix, util.IndentExpand(indent, indentGrowth), noCfg)
	for _, chpt := range c.Changepoints {
		fmt.Fprintf(tbl, "%s%s%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			chpt.Name, chpt.T.Format(time.RFC3339))
	}
	return tbl.Flush()
}

// NewDefaultChangepointOptions generates a set of default changepoint options
func NewDefaultChangepointOptions() ChangepointOptions {
	return ChangepointOptions{
		Auto:                true,
		AutoNumChangepoints: DefaultAutoNumChangepoints,
		Range:               DefaultChangepointRange,
		PriorScale:          DefaultChangepointPriorScale,
	}
}

// GenerateAutoChangepoints places changepoints on the observed time points evenly spaced by
// index across the first Range fraction of t. t must be sorted. The first point is never a
// changepoint and fewer changepoints are returned when the history is too short.
func (c ChangepointOptions) GenerateAutoChangepoints(t []time.Time) []Changepoint {
	if !c.Auto {
		return nil
	}

	n := c.AutoNumChangepoints
	if n == 0 {
		n = DefaultAutoNumChangepoints
	}
	r := c.Range
	if r == 0 {
		r = DefaultChangepointRange
	}

	histSize := int(math.Floor(float64(len(t)) * r))
	if histSize-1 < n {
		n = histSize - 1
	}
	if n <= 0 {
		return nil
	}

	chpts := make([]Changepoint, 0, n)
	step := float64(histSize-1) / float64(n)
	for i := 1; i <= n; i++ {
		idx := int(math.Round(step * float64(i)))
		chpts = append(
			chpts,
			NewChangepoint("auto_"+strconv.Itoa(i-1), t[idx]),
		)
	}
	return chpts
}

// Resolve returns the explicit changepoints inside the training window followed by the
// auto generated changepoints
func (c ChangepointOptions) Resolve(t []time.Time) []Changepoint {
	if len(t) == 0 {
		return nil
	}
	start, end := t[0], t[len(t)-1]

	chpts := make([]Changepoint, 0, len(c.Changepoints)+c.AutoNumChangepoints)
	for i, chpt := range c.Changepoints {
		// changepoints outside of training produce constant features
		if !chpt.T.After(start) || !chpt.T.Before(end) {
			continue
		}
		if chpt.Name == "" {
			chpt.Name = strconv.Itoa(i)
		}
		chpts = append(chpts, chpt)
	}
	return append(chpts, c.GenerateAutoChangepoints(t)...)
}
