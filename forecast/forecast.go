package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/feature"
	"github.com/aouyang1/go-forecast-pipeline/forecast/options"
	"github.com/aouyang1/go-forecast-pipeline/horizon"
	"github.com/aouyang1/go-forecast-pipeline/models"
	"github.com/aouyang1/go-forecast-pipeline/stats"
	"github.com/aouyang1/go-forecast-pipeline/timedataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrUninitializedForecast     = errors.New("uninitialized forecast")
	ErrInsufficientTrainingData  = errors.New("insufficient training data after removing NaNs")
	ErrNoModelCoefficients       = errors.New("no model coefficients from fit")
	ErrUntrainedForecast         = errors.New("forecast has not been trained yet")
	ErrNonPositiveMultiplicative = errors.New("multiplicative seasonality requires strictly positive values")
	ErrMissingFeature            = errors.New("model feature could not be generated")
	ErrNoHistory                 = errors.New("no training history available")
	ErrInfiniteValue             = errors.New("training values must be finite")
)

// Forecast represents a single forecast model of a time series. This is a linear model using
// coordinate descent to calculate the weights. This will decompose the series into an intercept,
// a piecewise linear trend (based on changepoint times), and Fourier seasonal components.
// Multiplicative seasonality fits the log of the series.
type Forecast struct {
	opt    *options.Options
	scores *Scores // score calculations after training

	// model coefficients
	fLabels   *feature.Labels
	coef      []float64
	intercept float64

	trainStartTime time.Time
	trainEndTime   time.Time
	tScale         float64 // training window in seconds
	yScale         float64 // additive series are divided by the max absolute value
	sigma          float64 // residual standard deviation in fit space
	freq           horizon.Frequency

	seasonalities []options.SeasonalityConfig
	changepoints  []options.Changepoint

	trainT     []time.Time
	residual   []float64
	fitResults *Results
	trained    bool
}

// New creates a new forecast instance with the given options. If none are provided, a default
// is used
func New(opt *options.Options) (*Forecast, error) {
	if opt == nil {
		opt = options.NewDefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, fmt.Errorf("unable to validate forecast options, %w", err)
	}

	return &Forecast{opt: opt}, nil
}

// Fit takes the input training data and fits a forecast model for the trend, changepoints and
// seasonal components. NaN values are ignored. If outlier options are set, points with outlier
// residuals are removed and the model is refit for up to the configured number of passes.
func (f *Forecast) Fit(t []time.Time, y []float64) error {
	if f == nil {
		return ErrUninitializedForecast
	}

	td, err := timedataset.NewUnivariateDataset(t, y)
	if err != nil {
		return fmt.Errorf("unable to create training dataset, %w", err)
	}

	for _, v := range td.Y {
		if math.IsInf(v, 0) {
			return fmt.Errorf("got value %f, %w", v, ErrInfiniteValue)
		}
	}
	if f.opt.SeasonalityMode == options.SeasonalityMultiplicative {
		for _, v := range td.Y {
			if !math.IsNaN(v) && v <= 0 {
				return fmt.Errorf("got value %f, %w", v, ErrNonPositiveMultiplicative)
			}
		}
	}

	numPasses := 0
	if f.opt.OutlierOptions != nil {
		numPasses = f.opt.OutlierOptions.NumPasses
	}

	trainY := td.Copy().Y
	for pass := 0; ; pass++ {
		if err := f.fit(td.T, trainY); err != nil {
			return err
		}

		// break out if no outlier options provided
		if f.opt.OutlierOptions == nil || pass >= numPasses {
			break
		}

		res, err := f.Predict(td.T)
		if err != nil {
			return fmt.Errorf("unable to predict training set for outlier removal, %w", err)
		}
		residual := make([]float64, len(trainY))
		floats.SubTo(residual, trainY, res.Forecast)

		outlierIdxs := stats.DetectOutliers(
			residual,
			f.opt.OutlierOptions.LowerPercentile,
			f.opt.OutlierOptions.UpperPercentile,
			f.opt.OutlierOptions.TukeyFactor,
		)

		// no more outliers detected with outlier options so break early
		if len(outlierIdxs) == 0 {
			break
		}
		for _, idx := range outlierIdxs {
			trainY[idx] = math.NaN()
		}
	}

	f.trainT = td.T
	if freq, err := horizon.Infer(td.DropNaN().T); err == nil {
		f.freq = freq
	}

	// use input training to include NaNs
	f.fitResults, err = f.Predict(td.T)
	if err != nil {
		return fmt.Errorf("unable to get predicted values from training set, %w", err)
	}

	f.residual = make([]float64, len(td.Y))
	floats.SubTo(f.residual, td.Y, f.fitResults.Forecast)

	f.scores, err = NewScores(f.fitResults.Forecast, td.Y)
	if err != nil {
		return err
	}
	return nil
}

func (f *Forecast) fit(t []time.Time, y []float64) error {
	trainingT := make([]time.Time, 0, len(t))
	trainingY := make([]float64, 0, len(y))

	// drop out nans
	for i := 0; i < len(t); i++ {
		if math.IsNaN(y[i]) {
			continue
		}
		trainingT = append(trainingT, t[i])
		trainingY = append(trainingY, y[i])
	}

	if len(trainingT) <= 1 {
		return ErrInsufficientTrainingData
	}

	f.trainStartTime = trainingT[0]
	f.trainEndTime = trainingT[len(trainingT)-1]
	f.tScale = f.trainEndTime.Sub(f.trainStartTime).Seconds()

	z := make([]float64, len(trainingY))
	f.yScale = 1.0
	switch f.opt.SeasonalityMode {
	case options.SeasonalityMultiplicative:
		for i, v := range trainingY {
			z[i] = math.Log(v)
		}
	default:
		if yMax := floats.Norm(trainingY, math.Inf(1)); yMax > 0 {
			f.yScale = yMax
		}
		floats.ScaleTo(z, 1.0/f.yScale, trainingY)
	}

	f.seasonalities = f.opt.SeasonalityOptions.Resolve(trainingT)
	f.changepoints = f.opt.ChangepointOptions.Resolve(trainingT)

	x := f.generateFeatures(trainingT)
	labels := x.Labels()
	xMx := x.Matrix()

	penalty := make([]float64, labels.Len())
	for j, label := range labels.Labels() {
		switch label.Type() {
		case feature.FeatureTypeChangepoint:
			penalty[j] = 1.0 / f.opt.ChangepointOptions.PriorScale
		case feature.FeatureTypeSeasonality:
			penalty[j] = 1.0 / f.opt.SeasonalityOptions.PriorScale
		}
	}

	lassoOpt := models.NewDefaultLassoOptions()
	lassoOpt.Lambda = float64(len(z)) * f.opt.PenaltyWeight
	lassoOpt.PenaltyFactors = penalty
	if f.opt.Iterations > 0 {
		lassoOpt.Iterations = f.opt.Iterations
	}
	if f.opt.Tolerance > 0 {
		lassoOpt.Tolerance = f.opt.Tolerance
	}

	model, err := models.NewLassoRegression(lassoOpt)
	if err != nil {
		return fmt.Errorf("unable to initialize lasso regression, %w", err)
	}
	if err := model.Fit(xMx, mat.NewDense(len(z), 1, z)); err != nil {
		return fmt.Errorf("unable to fit lasso regression, %w", err)
	}

	f.fLabels = labels
	f.coef = model.Coef()
	f.intercept = model.Intercept()

	zhat, err := model.Predict(xMx)
	if err != nil {
		return fmt.Errorf("unable to predict training features, %w", err)
	}
	residual := make([]float64, len(z))
	floats.SubTo(residual, z, zhat)
	f.sigma = 0
	if len(residual) > 1 {
		if sd := stat.StdDev(residual, nil); !math.IsNaN(sd) {
			f.sigma = sd
		}
	}

	f.trained = true
	return nil
}

// generateFeatures builds the growth, changepoint and seasonality features for the time points
// relative to the training window
func (f *Forecast) generateFeatures(t []time.Time) *feature.Set {
	tNorm := make([]float64, len(t))
	epochDays := make([]float64, len(t))
	for i, tPnt := range t {
		tNorm[i] = tPnt.Sub(f.trainStartTime).Seconds() / f.tScale
		epochDays[i] = float64(tPnt.Unix()) / float64(options.Day/time.Second)
	}

	x := feature.NewSet()

	growth := feature.Linear()
	x.Set(growth, growth.Generate(tNorm))

	for _, chpt := range f.changepoints {
		loc := chpt.T.Sub(f.trainStartTime).Seconds() / f.tScale

		slope := feature.NewChangepoint(chpt.Name, feature.ChangepointCompSlope)
		x.Set(slope, slope.Generate(tNorm, loc))

		if f.opt.ChangepointOptions.EnableBias {
			bias := feature.NewChangepoint(chpt.Name, feature.ChangepointCompBias)
			x.Set(bias, bias.Generate(tNorm, loc))
		}
	}

	for _, seasCfg := range f.seasonalities {
		periodDays := seasCfg.PeriodDays()
		for order := 1; order <= seasCfg.Orders; order++ {
			sinFeat := feature.NewSeasonality(seasCfg.Name, feature.FourierCompSin, order)
			cosFeat := feature.NewSeasonality(seasCfg.Name, feature.FourierCompCos, order)
			x.Set(sinFeat, sinFeat.Generate(epochDays, periodDays))
			x.Set(cosFeat, cosFeat.Generate(epochDays, periodDays))
		}
	}
	return x
}

// Predict takes a slice of times in any order and produces the forecast, uncertainty bounds and
// components for those times given a pre-trained model.
func (f *Forecast) Predict(t []time.Time) (*Results, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}

	if !f.trained {
		return nil, ErrUntrainedForecast
	}

	n := len(t)
	zTrend := make([]float64, n)
	for i := range zTrend {
		zTrend[i] = f.intercept
	}
	zSeas := make(map[string][]float64, len(f.seasonalities))
	for _, seasCfg := range f.seasonalities {
		zSeas[seasCfg.Name] = make([]float64, n)
	}

	if n > 0 {
		x := f.generateFeatures(t)
		for j, label := range f.fLabels.Labels() {
			data, exists := x.Get(label)
			if !exists {
				return nil, fmt.Errorf("%s, %w", label, ErrMissingFeature)
			}
			switch label.Type() {
			case feature.FeatureTypeSeasonality:
				name, _ := label.Get("name")
				if _, exists := zSeas[name]; !exists {
					zSeas[name] = make([]float64, n)
				}
				floats.AddScaled(zSeas[name], f.coef[j], data)
			default:
				floats.AddScaled(zTrend, f.coef[j], data)
			}
		}
	}

	zTotal := make([]float64, n)
	for _, name := range sortedKeys(zSeas) {
		floats.Add(zTotal, zSeas[name])
	}

	band := f.sigma * distuv.UnitNormal.Quantile(0.5+f.opt.IntervalWidth/2.0)

	res := &Results{
		T:        append([]time.Time(nil), t...),
		Forecast: make([]float64, n),
		Upper:    make([]float64, n),
		Lower:    make([]float64, n),
		Components: Components{
			Trend:         make([]float64, n),
			Seasonal:      make(map[string][]float64, len(zSeas)),
			SeasonalTotal: make([]float64, n),
		},
	}

	multiplicative := f.opt.SeasonalityMode == options.SeasonalityMultiplicative
	for i := 0; i < n; i++ {
		zhat := zTrend[i] + zTotal[i]
		if multiplicative {
			res.Forecast[i] = math.Exp(zhat)
			res.Lower[i] = math.Exp(zhat - band)
			res.Upper[i] = math.Exp(zhat + band)
			res.Components.Trend[i] = math.Exp(zTrend[i])
			res.Components.SeasonalTotal[i] = math.Exp(zTotal[i]) - 1.0
			continue
		}
		res.Forecast[i] = zhat * f.yScale
		res.Lower[i] = (zhat - band) * f.yScale
		res.Upper[i] = (zhat + band) * f.yScale
		res.Components.Trend[i] = zTrend[i] * f.yScale
		res.Components.SeasonalTotal[i] = zTotal[i] * f.yScale
	}

	for name, seas := range zSeas {
		comp := make([]float64, n)
		for i, v := range seas {
			if multiplicative {
				comp[i] = math.Exp(v) - 1.0
				continue
			}
			comp[i] = v * f.yScale
		}
		res.Components.Seasonal[name] = comp
	}
	return res, nil
}

// MakeFuture returns periods time points after the end of training spaced by the frequency.
// An empty frequency uses the frequency inferred from training. The training time points are
// prepended when includeHistory is set.
func (f *Forecast) MakeFuture(periods int, freq horizon.Frequency, includeHistory bool) ([]time.Time, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}
	if !f.trained {
		return nil, ErrUntrainedForecast
	}
	if freq == "" {
		freq = f.freq
	}

	future, err := horizon.Generate(f.trainEndTime, periods, freq)
	if err != nil {
		return nil, fmt.Errorf("unable to generate future time points, %w", err)
	}
	if !includeHistory {
		return future, nil
	}
	if len(f.trainT) == 0 {
		return nil, ErrNoHistory
	}
	out := make([]time.Time, 0, len(f.trainT)+len(future))
	out = append(out, f.trainT...)
	return append(out, future...), nil
}

// FeatureLabels returns the slice of feature labels in the order of the coefficients
func (f *Forecast) FeatureLabels() []feature.Feature {
	if f == nil {
		return nil
	}

	return f.fLabels.Labels()
}

// Coefficients returns a forecast model map of coefficients keyed by the string
// representation of each feature label
func (f *Forecast) Coefficients() (map[string]float64, error) {
	if f == nil {
		return nil, ErrUninitializedForecast
	}

	names := f.fLabels.Names()
	if len(names) == 0 || len(f.coef) != len(names) {
		return nil, ErrNoModelCoefficients
	}
	coef := make(map[string]float64, len(names))
	for i, name := range names {
		coef[name] = f.coef[i]
	}
	return coef, nil
}

// Intercept returns the intercept of the forecast model in fit space
func (f *Forecast) Intercept() float64 {
	if f == nil {
		return 0
	}
	return f.intercept
}

// ModelEq returns a string representation of the model linear equation in fit space in the
// format of y ~ b + m1x1 + m2x2 + ...
func (f *Forecast) ModelEq() (string, error) {
	if f == nil {
		return "", ErrUninitializedForecast
	}

	coef, err := f.Coefficients()
	if err != nil {
		return "", err
	}

	var eq strings.Builder
	switch f.opt.SeasonalityMode {
	case options.SeasonalityMultiplicative:
		eq.WriteString("log(y) ~ ")
	default:
		fmt.Fprintf(&eq, "y/%.2f ~ ", f.yScale)
	}
	fmt.Fprintf(&eq, "%.4f", f.intercept)

	for _, label := range f.fLabels.Labels() {
		w := coef[label.String()]
		if w == 0 {
			continue
		}
		fmt.Fprintf(&eq, "%+.4f*%s", w, label)
	}
	return eq.String(), nil
}

// Scores returns the fit scores for evaluating how well the resulting model
// fit the training data
func (f *Forecast) Scores() Scores {
	if f == nil {
		return Scores{}
	}
	if f.scores == nil {
		return Scores{}
	}
	return *f.scores
}

// Residuals returns a slice of values representing the difference between the
// training data and the fit data
func (f *Forecast) Residuals() []float64 {
	if f == nil {
		return nil
	}
	res := make([]float64, len(f.residual))
	copy(res, f.residual)
	return res
}

// FitResults returns the forecast over the training time points
func (f *Forecast) FitResults() *Results {
	if f == nil || f.fitResults == nil {
		return nil
	}
	return f.fitResults.slice(0, f.fitResults.Len())
}

// Seasonalities returns the seasonalities resolved at training time
func (f *Forecast) Seasonalities() []options.SeasonalityConfig {
	if f == nil {
		return nil
	}
	return append([]options.SeasonalityConfig(nil), f.seasonalities...)
}

// Changepoints returns the changepoints resolved at training time
func (f *Forecast) Changepoints() []options.Changepoint {
	if f == nil {
		return nil
	}
	return append([]options.Changepoint(nil), f.changepoints...)
}

// Frequency returns the sampling frequency inferred from the training data
func (f *Forecast) Frequency() horizon.Frequency {
	if f == nil {
		return ""
	}
	return f.freq
}

// Options returns the forecast options
func (f *Forecast) Options() *options.Options {
	if f == nil {
		return nil
	}
	return f.opt
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
