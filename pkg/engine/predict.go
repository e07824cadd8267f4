package engine

import (
	"math"

	"github.com/properlytics/properlytics-go/pkg/ml"
)

// Predictor is the mandatory pipeline capability: a point estimate for one
// feature vector. Every loaded pipeline implements it.
type Predictor interface {
	Predict(v *ml.FeatureVector) (float64, error)
}

// Introspectable is the optional pipeline capability that exposes the
// preprocessing and model stages for attribution. Pipelines that do not
// implement it still serve point estimates; attribution degrades to empty.
type Introspectable interface {
	Stages() (*ml.Preprocessor, ml.Regressor)
}

// PredictPoint runs a point prediction and rounds it to two decimals.
// Pipeline failures surface as InferenceError, never as a silent default.
func PredictPoint(p Predictor, v *ml.FeatureVector) (float64, error) {
	price, err := p.Predict(v)
	if err != nil {
		return 0, &InferenceError{Err: err}
	}
	return round2(price), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
