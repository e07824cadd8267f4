package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Pipeline is one trained artifact: a preprocessing stage that encodes a
// FeatureVector into the dense row representation, and a model stage that
// maps that row to a price. Pipelines are loaded once and shared read-only
// across concurrent inference calls; nothing mutates them after load.
type Pipeline struct {
	ID           string    `json:"id"`
	PropertyType string    `json:"property_type"`
	TrainedAt    time.Time `json:"trained_at"`

	Preprocessing *Preprocessor `json:"-"`
	Model         Regressor     `json:"-"`
}

// pipelineEnvelope is the on-disk JSON form. The model stage is decoded
// according to its kind tag.
type pipelineEnvelope struct {
	ID            string          `json:"id"`
	PropertyType  string          `json:"property_type"`
	TrainedAt     time.Time       `json:"trained_at"`
	Preprocessing *Preprocessor   `json:"preprocessing"`
	ModelKind     string          `json:"model_kind"`
	Model         json.RawMessage `json:"model"`
}

// Predict runs the full pipeline for a single feature vector
func (p *Pipeline) Predict(v *FeatureVector) (float64, error) {
	if p.Preprocessing == nil || p.Model == nil {
		return 0, fmt.Errorf("pipeline has no trained stages")
	}
	row, err := p.Preprocessing.Transform(v)
	if err != nil {
		return 0, fmt.Errorf("preprocessing failed: %w", err)
	}
	pred, err := p.Model.PredictRow(row)
	if err != nil {
		return 0, fmt.Errorf("model prediction failed: %w", err)
	}
	return pred, nil
}

// Stages exposes the pipeline internals for attribution. Callers treat both
// stages as read-only.
func (p *Pipeline) Stages() (*Preprocessor, Regressor) {
	return p.Preprocessing, p.Model
}

// Save serializes the pipeline to a JSON artifact
func (p *Pipeline) Save(path string) error {
	if p.Model == nil {
		return fmt.Errorf("cannot save pipeline without a model stage")
	}
	modelJSON, err := json.Marshal(p.Model)
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	env := pipelineEnvelope{
		ID:            p.ID,
		PropertyType:  p.PropertyType,
		TrainedAt:     p.TrainedAt,
		Preprocessing: p.Preprocessing,
		ModelKind:     p.Model.Kind(),
		Model:         modelJSON,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize pipeline: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pipeline file: %w", err)
	}
	return nil
}

// LoadPipeline reads a serialized pipeline artifact from disk
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	var env pipelineEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline file: %w", err)
	}

	var model Regressor
	switch env.ModelKind {
	case "random_forest":
		forest := &RegressionForest{}
		if err := json.Unmarshal(env.Model, forest); err != nil {
			return nil, fmt.Errorf("failed to parse model stage: %w", err)
		}
		model = forest
	default:
		return nil, fmt.Errorf("unsupported model kind %q", env.ModelKind)
	}

	return &Pipeline{
		ID:            env.ID,
		PropertyType:  env.PropertyType,
		TrainedAt:     env.TrainedAt,
		Preprocessing: env.Preprocessing,
		Model:         model,
	}, nil
}
