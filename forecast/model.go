package forecast

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/aouyang1/go-forecast-pipeline/feature"
	"github.com/aouyang1/go-forecast-pipeline/forecast/options"
	"github.com/aouyang1/go-forecast-pipeline/forecast/util"
	"github.com/aouyang1/go-forecast-pipeline/horizon"
	"github.com/goccy/go-json"
)

// Model represents a serializeable format of a forecast storing the forecast options, the
// training window used to normalize time, the resolved seasonalities and changepoints, fit
// scores and coefficients
type Model struct {
	TrainStartTime time.Time         `json:"train_start_time"`
	TrainEndTime   time.Time         `json:"train_end_time"`
	TimeScale      float64           `json:"time_scale_seconds"`
	YScale         float64           `json:"y_scale"`
	Sigma          float64           `json:"sigma"`
	Frequency      horizon.Frequency `json:"frequency"`

	Options       *options.Options            `json:"options"`
	Seasonalities []options.SeasonalityConfig `json:"seasonalities"`
	Changepoints  []options.Changepoint       `json:"changepoints"`

	Scores  *Scores `json:"scores"`
	Weights Weights `json:"weights"`
}

// Model returns the serializeable format of the forecast model
func (f *Forecast) Model() (Model, error) {
	if f == nil {
		return Model{}, ErrUninitializedForecast
	}
	if !f.trained {
		return Model{}, ErrUntrainedForecast
	}

	fws := make([]FeatureWeight, 0, len(f.coef))
	labels := f.fLabels.Labels()
	for i, c := range f.coef {
		fws = append(fws, NewFeatureWeight(labels[i], c))
	}
	m := Model{
		TrainStartTime: f.trainStartTime,
		TrainEndTime:   f.trainEndTime,
		TimeScale:      f.tScale,
		YScale:         f.yScale,
		Sigma:          f.sigma,
		Frequency:      f.freq,
		Options:        f.opt,
		Seasonalities:  f.Seasonalities(),
		Changepoints:   f.Changepoints(),
		Scores:         f.scores,
		Weights: Weights{
			Intercept: f.intercept,
			Coef:      fws,
		},
	}
	return m, nil
}

// NewFromModel creates a new forecast instance given a forecast Model to initialize. This
// instance can be used for inference immediately and does not need to be trained again.
func NewFromModel(model Model) (*Forecast, error) {
	labels, err := model.Weights.FeatureLabels()
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, ErrNoModelCoefficients
	}

	opt := model.Options
	if opt == nil {
		opt = options.NewDefaultOptions()
	}
	if err := opt.Validate(); err != nil {
		return nil, fmt.Errorf("unable to validate model options, %w", err)
	}

	yScale := model.YScale
	if yScale == 0 {
		yScale = 1.0
	}

	f := &Forecast{
		opt:            opt,
		fLabels:        feature.NewLabels(labels),
		coef:           model.Weights.Coefficients(),
		intercept:      model.Weights.Intercept,
		trainStartTime: model.TrainStartTime,
		trainEndTime:   model.TrainEndTime,
		tScale:         model.TimeScale,
		yScale:         yScale,
		sigma:          model.Sigma,
		freq:           model.Frequency,
		seasonalities:  model.Seasonalities,
		changepoints:   model.Changepoints,
		scores:         model.Scores,
		trained:        true,
	}
	return f, nil
}

func (m Model) TablePrint(w io.Writer, prefix, indent string) error {
	if _, err := fmt.Fprintf(w, "%s%sForecast:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s%sTraining Window: %s to %s\n", prefix, util.IndentExpand(indent, 1),
		m.TrainStartTime.Format(time.RFC3339), m.TrainEndTime.Format(time.RFC3339)); err != nil {
		return err
	}

	if m.Frequency != "" {
		if _, err := fmt.Fprintf(w, "%s%sFrequency: %s\n", prefix, util.IndentExpand(indent, 1), m.Frequency); err != nil {
			return err
		}
	}

	if m.Options != nil {
		if err := m.Options.TablePrint(w, prefix, indent, 1); err != nil {
			return err
		}
	}

	resolved := options.SeasonalityOptions{SeasonalityConfigs: m.Seasonalities}
	if _, err := fmt.Fprintf(w, "%s%sResolved:\n", prefix, util.IndentExpand(indent, 1)); err != nil {
		return err
	}
	if err := resolved.TablePrint(w, prefix, indent, 2); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s%sNum Changepoints: %d\n", prefix, util.IndentExpand(indent, 2), len(m.Changepoints)); err != nil {
		return err
	}

	if m.Scores != nil {
		if _, err := fmt.Fprintf(w, "%s%sScores:\n", prefix, util.IndentExpand(indent, 0)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s%sMAPE: %.3f    MSE: %.3f    R2: %.3f\n",
			prefix, util.IndentExpand(indent, 1),
			m.Scores.MAPE,
			m.Scores.MSE,
			m.Scores.R2,
		); err != nil {
			return err
		}
	}

	return m.Weights.tablePrint(w, prefix, indent, 0)
}

// Weights stores the intercept and coefficients for the forecast model
type Weights struct {
	Intercept float64         `json:"intercept"`
	Coef      []FeatureWeight `json:"coefficients"`
}

// FeatureLabels returns all of the feature labels in the same order as the coefficients
func (w *Weights) FeatureLabels() ([]feature.Feature, error) {
	labels := make([]feature.Feature, 0, len(w.Coef))
	for _, fw := range w.Coef {
		feat, err := fw.ToFeature()
		if err != nil {
			return nil, err
		}
		labels = append(labels, feat)
	}
	return labels, nil
}

// Coefficients returns a slice copy of the coefficients ignoring the intercept.
func (w *Weights) Coefficients() []float64 {
	coef := make([]float64, 0, len(w.Coef))
	for _, fw := range w.Coef {
		coef = append(coef, fw.Value)
	}
	return coef
}

func (w Weights) tablePrint(wr io.Writer, prefix, indent string, indentGrowth int) error {
	if _, err := fmt.Fprintf(wr, "%s%sWeights:\n", prefix, util.IndentExpand(indent, indentGrowth)); err != nil {
		return err
	}
	tbl := tabwriter.NewWriter(wr, 0, 0, 1, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintf(tbl, "%s%sType\tLabels\tValue\t\n", prefix, util.IndentExpand(indent, indentGrowth+1)); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(tbl, "%s%sIntercept\t\t%.3f\t\n", prefix, util.IndentExpand(indent, indentGrowth+1), w.Intercept); err != nil {
		return err
	}
	for _, fw := range w.Coef {
		labelOut, err := json.Marshal(fw.Labels)
		if err != nil {
			return err
		}
		val := fmt.Sprintf("%.3f", fw.Value)
		if fw.Value == 0 {
			val = "..."
		}
		if _, err := fmt.Fprintf(tbl, "%s%s%s\t%s\t%s\t\n",
			prefix, util.IndentExpand(indent, indentGrowth+1),
			fw.Type, string(labelOut), val); err != nil {
			return err
		}
	}
	return tbl.Flush()
}

// FeatureWeight represents a feature described with a type e.g. changepoint, labels and the value
type FeatureWeight struct {
	Labels map[string]string   `json:"labels"`
	Type   feature.FeatureType `json:"type"`
	Value  float64             `json:"value"`
}

func NewFeatureWeight(f feature.Feature, val float64) FeatureWeight {
	return FeatureWeight{
		Labels: f.Decode(),
		Type:   f.Type(),
		Value:  val,
	}
}

// ToFeature transforms the Type and Labels into a feature
func (fw *FeatureWeight) ToFeature() (feature.Feature, error) {
	if fw == nil {
		return nil, feature.ErrUnknownFeatureType
	}
	return feature.FromLabels(fw.Type, fw.Labels)
}
