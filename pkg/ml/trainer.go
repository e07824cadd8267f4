package ml

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TrainingSpec describes the fixed training procedure for one property
// type: the cleaned dataset, its column schema and the forest
// hyperparameters. Loaded from the YAML training config.
type TrainingSpec struct {
	Dataset         string   `yaml:"dataset"`
	Target          string   `yaml:"target"`
	Numeric         []string `yaml:"numeric"`
	Categorical     []string `yaml:"categorical"`
	Trees           int      `yaml:"trees"`
	MaxDepth        int      `yaml:"max_depth"`
	MinSamplesSplit int      `yaml:"min_samples_split"`
	MinSamplesLeaf  int      `yaml:"min_samples_leaf"`
	TestSplit       float64  `yaml:"test_split"`
	Seed            int64    `yaml:"seed"`
}

// Metrics holds the holdout evaluation of one training run
type Metrics struct {
	MAE              float64       `json:"MAE"`
	RMSE             float64       `json:"RMSE"`
	R2               float64       `json:"R2"`
	TrainingRows     int           `json:"training_rows"`
	ValidationRows   int           `json:"validation_rows"`
	TrainingDuration time.Duration `json:"training_duration"`
}

// Trainer runs the fixed training procedure for one property type
type Trainer struct {
	PropertyType string
	Spec         *TrainingSpec
}

// NewTrainer creates a trainer for the given property type and spec
func NewTrainer(propertyType string, spec *TrainingSpec) *Trainer {
	return &Trainer{
		PropertyType: propertyType,
		Spec:         spec,
	}
}

// Train loads the dataset, fits the preprocessing stage and the forest,
// and evaluates on a holdout split
func (t *Trainer) Train() (*Pipeline, *Metrics, error) {
	if t.Spec == nil {
		return nil, nil, fmt.Errorf("no training spec for %s", t.PropertyType)
	}
	start := time.Now()

	vectors, targets, err := t.loadDataset()
	if err != nil {
		return nil, nil, err
	}
	if len(vectors) < 10 {
		return nil, nil, fmt.Errorf("dataset %s has only %d usable rows", t.Spec.Dataset, len(vectors))
	}

	trainVecs, trainY, testVecs, testY := splitDataset(vectors, targets, t.Spec.TestSplit, t.Spec.Seed)

	prep := t.fitPreprocessor(trainVecs)
	trainX := make([][]float64, len(trainVecs))
	for i, v := range trainVecs {
		row, err := prep.Transform(v)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode training row %d: %w", i, err)
		}
		trainX[i] = row
	}

	forest := NewRegressionForest(t.Spec.Trees, t.Spec.MaxDepth, t.Spec.MinSamplesSplit, t.Spec.MinSamplesLeaf, t.Spec.Seed)
	if err := forest.Fit(trainX, trainY); err != nil {
		return nil, nil, fmt.Errorf("failed to train forest: %w", err)
	}

	pipeline := &Pipeline{
		ID:            uuid.New().String(),
		PropertyType:  t.PropertyType,
		TrainedAt:     time.Now().UTC(),
		Preprocessing: prep,
		Model:         forest,
	}

	metrics, err := evaluate(pipeline, testVecs, testY)
	if err != nil {
		return nil, nil, err
	}
	metrics.TrainingRows = len(trainVecs)
	metrics.ValidationRows = len(testVecs)
	metrics.TrainingDuration = time.Since(start)

	return pipeline, metrics, nil
}

// TrainAndSave trains, writes the pipeline artifact and the metrics report
func (t *Trainer) TrainAndSave(modelPath, reportPath string) (*Pipeline, *Metrics, error) {
	pipeline, metrics, err := t.Train()
	if err != nil {
		return nil, nil, err
	}
	if err := pipeline.Save(modelPath); err != nil {
		return nil, nil, err
	}
	report, err := json.MarshalIndent(metrics, "", "    ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to serialize metrics report: %w", err)
	}
	if err := os.WriteFile(reportPath, report, 0644); err != nil {
		return nil, nil, fmt.Errorf("failed to write metrics report: %w", err)
	}
	return pipeline, metrics, nil
}

// loadDataset reads the cleaned CSV and converts rows into feature vectors.
// Rows without a target value are dropped. Training-side normalization
// mirrors serving: floor numbers are bucketed, location text is lowercased.
func (t *Trainer) loadDataset() ([]*FeatureVector, []float64, error) {
	file, err := os.Open(t.Spec.Dataset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("dataset %s has no data rows", t.Spec.Dataset)
	}

	header := records[0]
	colIndex := make(map[string]int, len(header))
	for i, name := range header {
		colIndex[strings.TrimSpace(name)] = i
	}
	targetIdx, ok := colIndex[t.Spec.Target]
	if !ok {
		return nil, nil, fmt.Errorf("dataset %s is missing target column %q", t.Spec.Dataset, t.Spec.Target)
	}

	var vectors []*FeatureVector
	var targets []float64
	for _, record := range records[1:] {
		if targetIdx >= len(record) {
			continue
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(record[targetIdx]), 64)
		if err != nil || math.IsNaN(target) {
			continue
		}

		vec := NewFeatureVector()
		for _, name := range t.Spec.Numeric {
			idx, ok := colIndex[name]
			if !ok || idx >= len(record) {
				continue
			}
			val, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
			if err != nil {
				continue
			}
			vec.Set(name, val)
		}
		for _, name := range t.Spec.Categorical {
			idx, ok := colIndex[name]
			if !ok || idx >= len(record) {
				continue
			}
			val := normalizeTrainingValue(name, record[idx])
			if val == "" {
				continue
			}
			vec.Set(name, val)
		}

		vectors = append(vectors, vec)
		targets = append(targets, target)
	}
	return vectors, targets, nil
}

// normalizeTrainingValue applies the serving-side vocabulary rules to raw
// dataset cells so the fitted category tables match what inference produces
func normalizeTrainingValue(column, raw string) string {
	val := strings.TrimSpace(raw)
	switch column {
	case "floor":
		if floor, err := strconv.Atoi(val); err == nil {
			return FloorBucket(floor)
		}
		return val
	case "city", "district", "region":
		return strings.ToLower(val)
	default:
		return val
	}
}

// fitPreprocessor learns imputation values and category tables from the
// training split
func (t *Trainer) fitPreprocessor(vectors []*FeatureVector) *Preprocessor {
	numeric := make(map[string][]float64, len(t.Spec.Numeric))
	for _, name := range t.Spec.Numeric {
		col := make([]float64, len(vectors))
		for i, v := range vectors {
			if val, ok := v.Float(name); ok {
				col[i] = val
			} else {
				col[i] = math.NaN()
			}
		}
		numeric[name] = col
	}
	categorical := make(map[string][]string, len(t.Spec.Categorical))
	for _, name := range t.Spec.Categorical {
		col := make([]string, len(vectors))
		for i, v := range vectors {
			col[i], _ = v.Text(name)
		}
		categorical[name] = col
	}
	return FitPreprocessor(numeric, t.Spec.Numeric, categorical, t.Spec.Categorical)
}

// splitDataset shuffles deterministically and carves off the holdout set
func splitDataset(vectors []*FeatureVector, targets []float64, testSplit float64, seed int64) ([]*FeatureVector, []float64, []*FeatureVector, []float64) {
	if testSplit <= 0 || testSplit >= 1 {
		testSplit = 0.2
	}
	rng := rand.New(rand.NewSource(seed))
	perm := rng.Perm(len(vectors))

	testSize := int(float64(len(vectors)) * testSplit)
	if testSize < 1 {
		testSize = 1
	}

	var trainVecs, testVecs []*FeatureVector
	var trainY, testY []float64
	for i, idx := range perm {
		if i < testSize {
			testVecs = append(testVecs, vectors[idx])
			testY = append(testY, targets[idx])
		} else {
			trainVecs = append(trainVecs, vectors[idx])
			trainY = append(trainY, targets[idx])
		}
	}
	return trainVecs, trainY, testVecs, testY
}

// evaluate computes MAE, RMSE and R2 on the holdout split
func evaluate(pipeline *Pipeline, vectors []*FeatureVector, targets []float64) (*Metrics, error) {
	if len(vectors) == 0 {
		return &Metrics{}, nil
	}
	preds := make([]float64, len(vectors))
	for i, v := range vectors {
		pred, err := pipeline.Predict(v)
		if err != nil {
			return nil, fmt.Errorf("holdout prediction failed: %w", err)
		}
		preds[i] = pred
	}

	mean := meanOf(targets)
	var absSum, sqSum, totSum float64
	for i, target := range targets {
		diff := preds[i] - target
		absSum += math.Abs(diff)
		sqSum += diff * diff
		dev := target - mean
		totSum += dev * dev
	}

	n := float64(len(targets))
	r2 := 0.0
	if totSum > 0 {
		r2 = 1 - sqSum/totSum
	}
	return &Metrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}, nil
}
