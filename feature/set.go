package feature

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Set represents a mapping to each feature data keyed by the string representation
// of the feature. All features in a set have the same number of observations.
type Set struct {
	m      int
	set    map[string][]float64
	labels map[string]Feature
}

func NewSet() *Set {
	return &Set{
		set:    make(map[string][]float64),
		labels: make(map[string]Feature),
	}
}

// Len returns the number of features in the set
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.set)
}

// Rows returns the number of observations per feature
func (s *Set) Rows() int {
	if s == nil {
		return 0
	}
	return s.m
}

// Set stores the feature data. The first feature added defines the number of
// observations and data of any other length is ignored.
func (s *Set) Set(f Feature, data []float64) bool {
	if s == nil || f == nil {
		return false
	}
	if len(s.set) == 0 {
		s.m = len(data)
	}
	if len(data) != s.m {
		return false
	}
	s.set[f.String()] = data
	s.labels[f.String()] = f
	return true
}

// Get returns the feature data if it exists
func (s *Set) Get(f Feature) ([]float64, bool) {
	if s == nil || f == nil {
		return nil, false
	}
	data, exists := s.set[f.String()]
	return data, exists
}

// Update merges another set into this one
func (s *Set) Update(other *Set) {
	if s == nil || other == nil {
		return
	}
	for _, f := range other.Labels().Labels() {
		data, _ := other.Get(f)
		s.Set(f, data)
	}
}

// Filter returns a new set of the features matching the feature type
func (s *Set) Filter(fType FeatureType) *Set {
	out := NewSet()
	if s == nil {
		return out
	}
	for _, f := range s.Labels().Labels() {
		if f.Type() != fType {
			continue
		}
		data, _ := s.Get(f)
		out.Set(f, data)
	}
	return out
}

// Labels returns the sorted labels of all tracked features in the set
func (s *Set) Labels() *Labels {
	if s == nil {
		return NewLabels(nil)
	}
	labels := make([]Feature, 0, len(s.labels))
	for _, f := range s.labels {
		labels = append(labels, f)
	}
	sort.Slice(
		labels,
		func(i, j int) bool {
			return labels[i].String() < labels[j].String()
		},
	)
	return NewLabels(labels)
}

// Matrix returns a matrix representation of the Set to be used with matrix methods.
// The matrix has m rows representing the number of observations and n columns
// representing the number of features in label order.
func (s *Set) Matrix() *mat.Dense {
	if s.Len() == 0 || s.m == 0 {
		return nil
	}
	labels := s.Labels().Labels()
	n := len(labels)
	mx := mat.NewDense(s.m, n, nil)
	for j, label := range labels {
		mx.SetCol(j, s.set[label.String()])
	}
	return mx
}
