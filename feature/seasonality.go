package feature

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type FourierComp string

const (
	FourierCompSin FourierComp = "sin"
	FourierCompCos FourierComp = "cos"
)

type Seasonality struct {
	Name        string      `json:"name"`
	FourierComp FourierComp `json:"fourier_component"`
	Order       int         `json:"order"`
}

func NewSeasonality(name string, fcomp FourierComp, order int) *Seasonality {
	return &Seasonality{name, fcomp, order}
}

func (s Seasonality) String() string {
	return fmt.Sprintf("seas_%s_%02d_%s", s.Name, s.Order, s.FourierComp)
}

func (s Seasonality) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return s.Name, true
	case "fourier_component":
		return string(s.FourierComp), true
	case "order":
		return strconv.Itoa(s.Order), true
	}
	return "", false
}

func (s Seasonality) Type() FeatureType {
	return FeatureTypeSeasonality
}

func (s Seasonality) Decode() map[string]string {
	return map[string]string{
		"name":              s.Name,
		"fourier_component": string(s.FourierComp),
		"order":             strconv.Itoa(s.Order),
	}
}

// Generate computes the fourier component of this feature's order where epochDays
// is time in days since the unix epoch and periodDays is the seasonal period in days.
func (s Seasonality) Generate(epochDays []float64, periodDays float64) []float64 {
	omega := 2.0 * math.Pi * float64(s.Order) / periodDays
	out := make([]float64, len(epochDays))
	for i, tFeat := range epochDays {
		rad := omega * tFeat
		switch s.FourierComp {
		case FourierCompSin:
			out[i] = math.Sin(rad)
		case FourierCompCos:
			out[i] = math.Cos(rad)
		}
	}
	return out
}
