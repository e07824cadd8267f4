package ml

import (
	"fmt"
	"math"
	"sort"
)

// NumericColumn describes one numeric input column and its imputation value
type NumericColumn struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"` // Fill value for missing entries
}

// CategoricalColumn describes one categorical input column, its known
// category levels and the most-frequent fill value for missing entries
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Fill       string   `json:"fill"`
}

// Preprocessor transforms a FeatureVector into the dense numeric row the
// model consumes: numeric columns first (median-imputed), then one-hot
// encoded categorical columns. Unknown category values encode to all zeros
// rather than erroring, matching the training-time encoder behavior.
type Preprocessor struct {
	Numeric     []NumericColumn     `json:"numeric"`
	Categorical []CategoricalColumn `json:"categorical"`
}

// Width returns the number of transformed output columns
func (p *Preprocessor) Width() int {
	width := len(p.Numeric)
	for _, col := range p.Categorical {
		width += len(col.Categories)
	}
	return width
}

// FeatureNames returns the transformed column names. Numeric columns are
// prefixed "num__", one-hot categorical columns "cat__<column>_<level>".
func (p *Preprocessor) FeatureNames() []string {
	names := make([]string, 0, p.Width())
	for _, col := range p.Numeric {
		names = append(names, "num__"+col.Name)
	}
	for _, col := range p.Categorical {
		for _, cat := range col.Categories {
			names = append(names, "cat__"+col.Name+"_"+cat)
		}
	}
	return names
}

// Transform encodes a single feature vector into a dense numeric row.
// Features absent from the vector fall back to the imputation values
// learned at fit time.
func (p *Preprocessor) Transform(v *FeatureVector) ([]float64, error) {
	if v == nil {
		return nil, fmt.Errorf("nil feature vector")
	}
	row := make([]float64, 0, p.Width())
	for _, col := range p.Numeric {
		val, ok := v.Float(col.Name)
		if !ok || math.IsNaN(val) {
			val = col.Median
		}
		row = append(row, val)
	}
	for _, col := range p.Categorical {
		val, ok := v.Text(col.Name)
		if !ok || val == "" {
			val = col.Fill
		}
		for _, cat := range col.Categories {
			if cat == val {
				row = append(row, 1)
			} else {
				row = append(row, 0)
			}
		}
	}
	return row, nil
}

// FitPreprocessor learns imputation values and category tables from raw
// training columns. Numeric columns may contain NaN for missing entries,
// categorical columns the empty string.
func FitPreprocessor(numeric map[string][]float64, numericOrder []string, categorical map[string][]string, categoricalOrder []string) *Preprocessor {
	p := &Preprocessor{}
	for _, name := range numericOrder {
		p.Numeric = append(p.Numeric, NumericColumn{
			Name:   name,
			Median: median(numeric[name]),
		})
	}
	for _, name := range categoricalOrder {
		values := categorical[name]
		fill := mostFrequent(values)
		levels := make(map[string]struct{})
		for _, val := range values {
			if val == "" {
				val = fill
			}
			levels[val] = struct{}{}
		}
		cats := make([]string, 0, len(levels))
		for val := range levels {
			cats = append(cats, val)
		}
		sort.Strings(cats)
		p.Categorical = append(p.Categorical, CategoricalColumn{
			Name:       name,
			Categories: cats,
			Fill:       fill,
		})
	}
	return p
}

// median returns the median of the non-NaN entries
func median(values []float64) float64 {
	clean := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			clean = append(clean, v)
		}
	}
	if len(clean) == 0 {
		return 0
	}
	sort.Float64s(clean)
	mid := len(clean) / 2
	if len(clean)%2 == 0 {
		return (clean[mid-1] + clean[mid]) / 2
	}
	return clean[mid]
}

// mostFrequent returns the most common non-empty value
func mostFrequent(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best := ""
	bestCount := 0
	for v, count := range counts {
		if count > bestCount || (count == bestCount && v < best) {
			best = v
			bestCount = count
		}
	}
	return best
}
