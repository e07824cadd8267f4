package ml

import "fmt"

// FeatureVector is one property record expressed in the vocabulary the model
// was trained on. It preserves insertion order and is built once per request;
// counterfactual probes never mutate it in place, they derive a copy via With.
type FeatureVector struct {
	names  []string
	values map[string]any
}

// NewFeatureVector creates an empty feature vector
func NewFeatureVector() *FeatureVector {
	return &FeatureVector{
		values: make(map[string]any),
	}
}

// Set stores a value under name, appending it to the column order if new
func (v *FeatureVector) Set(name string, value any) {
	if _, ok := v.values[name]; !ok {
		v.names = append(v.names, name)
	}
	v.values[name] = value
}

// Get returns the value stored under name
func (v *FeatureVector) Get(name string) (any, bool) {
	val, ok := v.values[name]
	return val, ok
}

// Has reports whether the vector carries a value for name
func (v *FeatureVector) Has(name string) bool {
	_, ok := v.values[name]
	return ok
}

// Names returns the column order as a copy
func (v *FeatureVector) Names() []string {
	out := make([]string, len(v.names))
	copy(out, v.names)
	return out
}

// Len returns the number of features in the vector
func (v *FeatureVector) Len() int {
	return len(v.names)
}

// Clone returns an independent copy of the vector
func (v *FeatureVector) Clone() *FeatureVector {
	out := &FeatureVector{
		names:  make([]string, len(v.names)),
		values: make(map[string]any, len(v.values)),
	}
	copy(out.names, v.names)
	for k, val := range v.values {
		out.values[k] = val
	}
	return out
}

// With returns a copy of the vector with a single feature overridden.
// The receiver is left untouched.
func (v *FeatureVector) With(name string, value any) *FeatureVector {
	out := v.Clone()
	out.Set(name, value)
	return out
}

// Float returns the value under name coerced to float64. Booleans map to 0/1.
func (v *FeatureVector) Float(name string) (float64, bool) {
	val, ok := v.values[name]
	if !ok {
		return 0, false
	}
	switch x := val.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// Text returns the value under name rendered as a categorical string
func (v *FeatureVector) Text(name string) (string, bool) {
	val, ok := v.values[name]
	if !ok {
		return "", false
	}
	if s, ok := val.(string); ok {
		return s, true
	}
	return fmt.Sprintf("%v", val), true
}
