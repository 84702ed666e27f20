package feature

import (
	"fmt"
	"strings"
)

type ChangepointComp string

const (
	ChangepointCompBias  ChangepointComp = "bias"
	ChangepointCompSlope ChangepointComp = "slope"
)

type Changepoint struct {
	Name            string          `json:"name"`
	ChangepointComp ChangepointComp `json:"changepoint_component"`
}

func NewChangepoint(name string, comp ChangepointComp) *Changepoint {
	return &Changepoint{name, comp}
}

func (c Changepoint) String() string {
	return fmt.Sprintf("chpnt_%s_%s", c.Name, c.ChangepointComp)
}

func (c Changepoint) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return c.Name, true
	case "changepoint_component":
		return string(c.ChangepointComp), true
	}
	return "", false
}

func (c Changepoint) Type() FeatureType {
	return FeatureTypeChangepoint
}

func (c Changepoint) Decode() map[string]string {
	return map[string]string{
		"name":                  c.Name,
		"changepoint_component": string(c.ChangepointComp),
	}
}

// Generate returns the changepoint column for normalized time given the normalized
// changepoint location. The bias component is a step of 1 from the changepoint onwards
// and the slope component is a ramp starting at 0 on the changepoint.
func (c Changepoint) Generate(tNorm []float64, loc float64) []float64 {
	out := make([]float64, len(tNorm))
	for i, tPnt := range tNorm {
		if tPnt < loc {
			continue
		}
		switch c.ChangepointComp {
		case ChangepointCompBias:
			out[i] = 1.0
		case ChangepointCompSlope:
			out[i] = tPnt - loc
		}
	}
	return out
}
