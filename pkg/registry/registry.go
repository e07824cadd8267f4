package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/properlytics/properlytics-go/pkg/metadatastore"
	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
	"github.com/properlytics/properlytics-go/utils"
)

// Config wires a registry's directories, logging and optional bookkeeping
type Config struct {
	ModelDir  string
	ReportDir string
	Logger    *utils.Logger

	// Store, when set, records loaded generations and retrain runs
	Store *metadatastore.SQLiteStore

	// Training holds the fixed per-type training procedures used by
	// RetrainAndReload
	Training map[models.PropertyType]*ml.TrainingSpec
}

// Registry holds the three currently loaded pipelines, one slot per
// property type. Slots are replaced by atomic pointer swap, never mutated:
// in-flight requests holding the previous pipeline finish against it.
type Registry struct {
	modelDir  string
	reportDir string
	logger    *utils.Logger
	store     *metadatastore.SQLiteStore
	training  map[models.PropertyType]*ml.TrainingSpec

	slots map[models.PropertyType]*atomic.Pointer[ml.Pipeline]

	// retrainMu serializes RetrainAndReload; overlapping runs would
	// clobber each other's artifacts
	retrainMu sync.Mutex
}

// New creates an empty registry; all slots start unloaded
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = utils.NewLogger()
	}
	reportDir := cfg.ReportDir
	if reportDir == "" {
		reportDir = cfg.ModelDir
	}
	return &Registry{
		modelDir:  cfg.ModelDir,
		reportDir: reportDir,
		logger:    logger,
		store:     cfg.Store,
		training:  cfg.Training,
		slots: map[models.PropertyType]*atomic.Pointer[ml.Pipeline]{
			models.PropertyHouse: {},
			models.PropertyFlat:  {},
			models.PropertyPlot:  {},
		},
	}
}

// ArtifactPath returns the pipeline artifact path for a property type
func (r *Registry) ArtifactPath(t models.PropertyType) string {
	return filepath.Join(r.modelDir, string(t)+".json")
}

// ReportPath returns the metrics report path for a property type
func (r *Registry) ReportPath(t models.PropertyType) string {
	return filepath.Join(r.reportDir, string(t)+"_metrics.json")
}

// LoadAll reads the three pipeline artifacts from the model directory and
// replaces all slots. A missing or unreadable artifact logs and leaves that
// slot unloaded; the other types keep serving. Partial availability is
// acceptable.
func (r *Registry) LoadAll() {
	for _, t := range []models.PropertyType{models.PropertyHouse, models.PropertyFlat, models.PropertyPlot} {
		path := r.ArtifactPath(t)
		pipeline, err := ml.LoadPipeline(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				r.logger.Warn("model artifact missing, slot stays unloaded",
					utils.Component("registry"),
					utils.String("property_type", string(t)),
					utils.String("path", path))
			} else {
				r.logger.Error("failed to load model artifact", err,
					utils.Component("registry"),
					utils.String("property_type", string(t)))
			}
			r.slots[t].Store(nil)
			continue
		}

		// The flat forest is the heaviest; pin it to a single worker so
		// inference never oversubscribes the serving process. This runs
		// before the slot is published, so no request can observe the
		// pipeline without the setting.
		if t == models.PropertyFlat {
			if forest, ok := pipeline.Model.(*ml.RegressionForest); ok {
				forest.SetParallelism(1)
			}
		}

		r.slots[t].Store(pipeline)
		r.logger.Info("model loaded",
			utils.Component("registry"),
			utils.String("property_type", string(t)),
			utils.String("pipeline_id", pipeline.ID))
		r.recordGeneration(t, pipeline, path)
	}
}

// Pipeline returns the currently loaded pipeline for a property type, or
// models.ErrModelUnavailable when the slot is unloaded
func (r *Registry) Pipeline(t models.PropertyType) (*ml.Pipeline, error) {
	slot, ok := r.slots[t]
	if !ok {
		return nil, fmt.Errorf("unknown property type %q", t)
	}
	pipeline := slot.Load()
	if pipeline == nil {
		return nil, fmt.Errorf("%s: %w", t, models.ErrModelUnavailable)
	}
	return pipeline, nil
}

// Loaded reports the load state of every slot
func (r *Registry) Loaded() map[models.PropertyType]bool {
	out := make(map[models.PropertyType]bool, len(r.slots))
	for t, slot := range r.slots {
		out[t] = slot.Load() != nil
	}
	return out
}

// recordGeneration stores bookkeeping for a loaded pipeline, merging in the
// metrics report when one sits next to the artifact
func (r *Registry) recordGeneration(t models.PropertyType, pipeline *ml.Pipeline, path string) {
	if r.store == nil {
		return
	}
	gen := &metadatastore.ModelGeneration{
		ID:           pipeline.ID,
		PropertyType: string(t),
		Path:         path,
		TrainedAt:    pipeline.TrainedAt,
		LoadedAt:     time.Now().UTC(),
	}
	if report, err := os.ReadFile(r.ReportPath(t)); err == nil {
		var metrics ml.Metrics
		if err := json.Unmarshal(report, &metrics); err == nil {
			gen.MAE = metrics.MAE
			gen.RMSE = metrics.RMSE
			gen.R2 = metrics.R2
		}
	}
	if err := r.store.RecordGeneration(gen); err != nil {
		r.logger.Error("failed to record model generation", err,
			utils.Component("registry"),
			utils.String("property_type", string(t)))
	}
}
