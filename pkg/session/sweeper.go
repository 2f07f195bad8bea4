package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepRecorder receives the outcome of each sweep run
type SweepRecorder interface {
	RecordSessionSweep(removed int, err error)
}

// Sweeper runs Registry.Sweep on a cron schedule
type Sweeper struct {
	cron     *cron.Cron
	registry *Registry
	timeout  time.Duration
	logger   logrus.FieldLogger
	recorder SweepRecorder
}

// NewSweeper schedules registry sweeps. schedule accepts standard cron specs and descriptors like "@every 15m".
func NewSweeper(registry *Registry, schedule string, logger logrus.FieldLogger, recorder SweepRecorder) (*Sweeper, error) {
	s := &Sweeper{
		cron:     cron.New(),
		registry: registry,
		timeout:  time.Minute,
		logger:   logger.WithField("component", "session_sweeper"),
		recorder: recorder,
	}

	if _, err := s.cron.AddFunc(schedule, s.RunOnce); err != nil {
		return nil, fmt.Errorf("failed to schedule session sweep %q: %w", schedule, err)
	}
	return s, nil
}

// RunOnce performs a single sweep
func (s *Sweeper) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	removed, err := s.registry.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("session sweep failed")
	}
	if s.recorder != nil {
		s.recorder.RecordSessionSweep(removed, err)
	}
}

// Start begins running scheduled sweeps in the background
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("session sweeper started")
}

// Stop halts the scheduler and returns a context done when a running sweep finishes
func (s *Sweeper) Stop() context.Context {
	return s.cron.Stop()
}
