package feature

// Labels is an ordered list of features. Position i is the column of the design matrix and the
// coefficient of the fitted model for that feature.
type Labels struct {
	features []Feature
	position map[string]int
}

// NewLabels indexes the features in the given order. A repeated feature keeps its first position.
func NewLabels(features []Feature) *Labels {
	l := &Labels{
		features: make([]Feature, 0, len(features)),
		position: make(map[string]int, len(features)),
	}
	for _, f := range features {
		key := f.String()
		if _, dup := l.position[key]; dup {
			continue
		}
		l.position[key] = len(l.features)
		l.features = append(l.features, f)
	}
	return l
}

func (l *Labels) Len() int {
	if l == nil {
		return 0
	}
	return len(l.features)
}

// Labels returns a copy of the ordered features
func (l *Labels) Labels() []Feature {
	if l == nil {
		return nil
	}
	return append([]Feature(nil), l.features...)
}

// Index returns the column of a feature
func (l *Labels) Index(f Feature) (int, bool) {
	if l == nil {
		return -1, false
	}
	pos, ok := l.position[f.String()]
	if !ok {
		return -1, false
	}
	return pos, true
}

// Names returns the string form of each feature in column order
func (l *Labels) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, len(l.features))
	for i, f := range l.features {
		names[i] = f.String()
	}
	return names
}
