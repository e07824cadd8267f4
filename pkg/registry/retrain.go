package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/properlytics/properlytics-go/pkg/metadatastore"
	"github.com/properlytics/properlytics-go/pkg/ml"
	"github.com/properlytics/properlytics-go/pkg/models"
	"github.com/properlytics/properlytics-go/utils"
)

// retrainOrder trains the cheapest model first so an early data problem
// surfaces before the long flat run
var retrainOrder = []models.PropertyType{models.PropertyPlot, models.PropertyHouse, models.PropertyFlat}

// RetrainAndReload retrains every property type that has a training spec,
// writes the new artifacts and metrics reports, then reloads all slots.
// The running process keeps serving the previous generation until the
// reload swaps the slots. Only one retrain runs at a time.
func (r *Registry) RetrainAndReload(ctx context.Context) error {
	r.retrainMu.Lock()
	defer r.retrainMu.Unlock()

	run := &metadatastore.RetrainRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	r.logger.Info("retrain started", utils.Component("registry"), utils.RequestID(run.ID))

	err := r.retrainAll(ctx)
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Status = "failed"
		run.Detail = err.Error()
		r.logger.Error("retrain failed", err, utils.Component("registry"), utils.RequestID(run.ID))
	} else {
		run.Status = "ok"
		r.logger.Info("retrain finished, models reloaded",
			utils.Component("registry"), utils.RequestID(run.ID))
	}
	if r.store != nil {
		if recErr := r.store.RecordRetrainRun(run); recErr != nil {
			r.logger.Error("failed to record retrain run", recErr, utils.Component("registry"))
		}
	}
	return err
}

func (r *Registry) retrainAll(ctx context.Context) error {
	if len(r.training) == 0 {
		return fmt.Errorf("no training specs configured")
	}
	for _, t := range retrainOrder {
		spec, ok := r.training[t]
		if !ok || spec == nil {
			r.logger.Warn("no training spec for property type, skipping",
				utils.Component("registry"), utils.String("property_type", string(t)))
			continue
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retrain aborted: %w", err)
		}
		trainer := ml.NewTrainer(string(t), spec)
		started := time.Now()
		pipeline, metrics, err := trainer.TrainAndSave(r.ArtifactPath(t), r.ReportPath(t))
		if err != nil {
			return fmt.Errorf("training %s model: %w", t, err)
		}
		r.logger.Info("model trained",
			utils.Component("registry"),
			utils.String("property_type", string(t)),
			utils.String("pipeline_id", pipeline.ID),
			utils.Float("mae", metrics.MAE),
			utils.String("duration", time.Since(started).Round(time.Millisecond).String()))
	}
	r.LoadAll()
	return nil
}
