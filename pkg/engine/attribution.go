package engine

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"github.com/properlytics/properlytics-go/pkg/ml"
)

// maxAttributionEntries bounds the attribution summary to the strongest
// contributors
const maxAttributionEntries = 15

// Attribution is one labeled, signed contribution to a single prediction
type Attribution struct {
	Label string
	Value float64
}

// AttributionMap is a ranked attribution summary, descending by absolute
// contribution. It marshals as a JSON object preserving rank order.
type AttributionMap []Attribution

// MarshalJSON renders the map as an ordered JSON object
func (m AttributionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(entry.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ExtractAttributions computes the ranked per-feature attribution summary
// for one prediction. Attribution is best effort: any unsupported pipeline
// shape or internal failure degrades to an empty map, never to a failed
// prediction.
func ExtractAttributions(p Predictor, v *ml.FeatureVector) AttributionMap {
	intro, ok := p.(Introspectable)
	if !ok {
		return AttributionMap{}
	}
	prep, model := intro.Stages()
	if prep == nil || model == nil {
		return AttributionMap{}
	}
	attributor, ok := model.(ml.TreeAttributor)
	if !ok {
		// Only additive tree ensembles support exact attribution; other
		// model families degrade rather than misrepresent.
		return AttributionMap{}
	}

	row, err := prep.Transform(v)
	if err != nil {
		return AttributionMap{}
	}
	contributions, err := attributor.Attributions(row)
	if err != nil {
		return AttributionMap{}
	}
	names := prep.FeatureNames()
	if len(names) != len(contributions) {
		return AttributionMap{}
	}

	// Two transformed columns can clean to the same label; the later one
	// wins. Accepted lossy compression, not worth disambiguating.
	byLabel := make(map[string]float64, len(contributions))
	order := make([]string, 0, len(contributions))
	for i, name := range names {
		label := cleanFeatureLabel(name)
		if _, seen := byLabel[label]; !seen {
			order = append(order, label)
		}
		byLabel[label] = contributions[i]
	}

	entries := make(AttributionMap, 0, len(order))
	for _, label := range order {
		entries = append(entries, Attribution{Label: label, Value: round2(byLabel[label])})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return math.Abs(entries[i].Value) > math.Abs(entries[j].Value)
	})
	if len(entries) > maxAttributionEntries {
		entries = entries[:maxAttributionEntries]
	}
	return entries
}

// cleanFeatureLabel strips the encoder's column-group prefixes and turns
// underscores into spaces for display
func cleanFeatureLabel(name string) string {
	name = strings.TrimPrefix(name, "num__")
	name = strings.TrimPrefix(name, "cat__")
	return strings.ReplaceAll(name, "_", " ")
}
