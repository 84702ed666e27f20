package feature

import (
	"fmt"
	"strings"
)

const GrowthLinear = "linear"

type Growth struct {
	Name string `json:"name"`
}

func NewGrowth(name string) *Growth {
	return &Growth{name}
}

// Linear returns the growth feature for a linear trend
func Linear() *Growth {
	return NewGrowth(GrowthLinear)
}

// String returns the string representation of the growth feature
func (g Growth) String() string {
	return fmt.Sprintf("growth_%s", g.Name)
}

// Get returns the value of an arbitrary label and returns the value along with whether
// the label exists
func (g Growth) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return g.Name, true
	}
	return "", false
}

// Type returns the type of this feature
func (g Growth) Type() FeatureType {
	return FeatureTypeGrowth
}

// Decode converts the feature into a map of label values
func (g Growth) Decode() map[string]string {
	return map[string]string{"name": g.Name}
}

// Generate returns the growth column for normalized time. tNorm is 0 at the start of
// training and 1 at the end.
func (g Growth) Generate(tNorm []float64) []float64 {
	out := make([]float64, len(tNorm))
	copy(out, tNorm)
	return out
}
