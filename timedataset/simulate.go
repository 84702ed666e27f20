package timedataset

import (
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/floats"
)

// GenerateT generates n evenly spaced time points starting at start
func GenerateT(n int, interval time.Duration, start time.Time) []time.Time {
	t := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = append(t, start.Add(interval*time.Duration(i)))
	}
	return t
}

// GenerateMonthStartT generates n month start time points beginning with the month of start
func GenerateMonthStartT(n int, start time.Time) []time.Time {
	first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	t := make([]time.Time, 0, n)
	for i := 0; i < n; i++ {
		t = append(t, first.AddDate(0, i, 0))
	}
	return t
}

type Series []float64

func (s Series) Add(src Series) Series {
	floats.Add(s, src)
	return s
}

func (s Series) Mul(src Series) Series {
	floats.Mul(s, src)
	return s
}

func (s Series) SetConst(t []time.Time, val float64, start, end time.Time) Series {
	for i := 0; i < len(s); i++ {
		if (t[i].After(start) || t[i].Equal(start)) && t[i].Before(end) {
			s[i] = val
		}
	}
	return s
}

func GenerateConstY(n int, val float64) Series {
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, val)
	}
	return Series(y)
}

// GenerateLinearY generates a line through intercept at t[0] with slope per day
func GenerateLinearY(t []time.Time, intercept, slopePerDay float64) Series {
	y := make([]float64, 0, len(t))
	for i := 0; i < len(t); i++ {
		days := t[i].Sub(t[0]).Hours() / 24.0
		y = append(y, intercept+slopePerDay*days)
	}
	return Series(y)
}

func GenerateWaveY(t []time.Time, amp, periodSec, order, timeOffset float64) Series {
	y := make([]float64, 0, len(t))
	for i := 0; i < len(t); i++ {
		val := amp * math.Sin(2.0*math.Pi*order/periodSec*(float64(t[i].Unix())+timeOffset))
		y = append(y, val)
	}
	return Series(y)
}

// GenerateNoise generates normally distributed noise from a seeded source for repeatable tests
func GenerateNoise(n int, scale float64, seed uint64) Series {
	r := rand.New(rand.NewPCG(seed, seed))
	y := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		y = append(y, r.NormFloat64()*scale)
	}
	return Series(y)
}

// GenerateChange generates a trend change at chpt with a jump of bias and slope per day
func GenerateChange(t []time.Time, chpt time.Time, bias, slopePerDay float64) Series {
	y := make([]float64, len(t))
	for i := 0; i < len(t); i++ {
		if t[i].After(chpt) || t[i].Equal(chpt) {
			y[i] = bias + slopePerDay*t[i].Sub(chpt).Hours()/24.0
		}
	}
	return Series(y)
}
