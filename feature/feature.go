// Package feature describes the columns of the forecast design matrix and how each
// column is generated from time.
package feature

import (
	"errors"
	"fmt"
	"strconv"
)

type FeatureType string

const (
	FeatureTypeChangepoint FeatureType = "changepoint"
	FeatureTypeSeasonality FeatureType = "seasonality"
	FeatureTypeGrowth      FeatureType = "growth"
)

// Feature is a labeled column of the design matrix
type Feature interface {
	String() string
	Get(string) (string, bool)
	Type() FeatureType
	Decode() map[string]string
}

var (
	ErrUnknownFeatureType = errors.New("unknown feature type")
	ErrMissingLabel       = errors.New("missing feature label")
)

// FromLabels reconstructs a feature from its type and decoded labels
func FromLabels(fType FeatureType, labels map[string]string) (Feature, error) {
	name, exists := labels["name"]
	if !exists {
		return nil, fmt.Errorf("name, %w", ErrMissingLabel)
	}
	switch fType {
	case FeatureTypeGrowth:
		return NewGrowth(name), nil
	case FeatureTypeChangepoint:
		comp, exists := labels["changepoint_component"]
		if !exists {
			return nil, fmt.Errorf("changepoint_component, %w", ErrMissingLabel)
		}
		return NewChangepoint(name, ChangepointComp(comp)), nil
	case FeatureTypeSeasonality:
		comp, exists := labels["fourier_component"]
		if !exists {
			return nil, fmt.Errorf("fourier_component, %w", ErrMissingLabel)
		}
		orderStr, exists := labels["order"]
		if !exists {
			return nil, fmt.Errorf("order, %w", ErrMissingLabel)
		}
		order, err := strconv.Atoi(orderStr)
		if err != nil {
			return nil, fmt.Errorf("unable to parse seasonality order, %w", err)
		}
		return NewSeasonality(name, FourierComp(comp), order), nil
	}
	return nil, fmt.Errorf("%q, %w", fType, ErrUnknownFeatureType)
}
