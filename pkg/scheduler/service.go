package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/properlytics/properlytics-go/utils"
)

// Retrainer is the unit of work the scheduler drives
type Retrainer interface {
	RetrainAndReload(ctx context.Context) error
}

// Service runs the periodic model retrain on a cron schedule
type Service struct {
	retrainer Retrainer
	logger    *utils.Logger
	cron      *cron.Cron
	entry     cron.EntryID
}

// NewService creates a scheduler around a retrainer
func NewService(retrainer Retrainer, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &Service{
		retrainer: retrainer,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the retrain job and starts the cron loop. The schedule
// uses the standard five-field cron format.
func (s *Service) Start(schedule string) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid retrain schedule %q: %w", schedule, err)
	}
	entry, err := s.cron.AddFunc(schedule, s.runRetrain)
	if err != nil {
		return fmt.Errorf("failed to schedule retrain: %w", err)
	}
	s.entry = entry
	s.cron.Start()
	s.logger.Info("retrain scheduler started",
		utils.Component("scheduler"),
		utils.String("schedule", schedule))
	return nil
}

// Stop stops the cron loop and waits for a running retrain to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("retrain scheduler stopped", utils.Component("scheduler"))
}

// NextRun reports when the scheduled retrain fires next
func (s *Service) NextRun() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Service) runRetrain() {
	if err := s.retrainer.RetrainAndReload(context.Background()); err != nil {
		s.logger.Error("scheduled retrain failed", err, utils.Component("scheduler"))
	}
}
