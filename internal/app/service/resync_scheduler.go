package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ResyncScheduler periodically regenerates the proxy configuration so that drift from
// missed trigger events heals without an administrative action.
type ResyncScheduler struct {
	regen    Regenerator
	schedule string
	logger   *zap.Logger
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
}

// NewResyncScheduler creates a scheduler for the standard cron expression schedule.
// An empty schedule disables it.
func NewResyncScheduler(regen Regenerator, schedule string, logger *zap.Logger) *ResyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResyncScheduler{
		regen:    regen,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start schedules resync cycles until ctx is done or Stop is called.
func (s *ResyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("resync schedule not configured, skipping scheduler")
		return nil
	}
	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid resync schedule %q: %w", s.schedule, err)
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("failed to schedule resync: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("resync scheduler started", zap.String("schedule", s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// RunOnce performs one resync cycle.
func (s *ResyncScheduler) RunOnce(ctx context.Context) {
	res, err := s.regen.RegenerateAndReload(ctx)
	if err != nil {
		s.logger.Error("scheduled resync failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled resync completed",
		zap.Bool("reloaded", res.Success),
		zap.String("message", res.Message),
	)
}

// Stop stops the scheduler and waits for a running cycle to finish.
func (s *ResyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("resync scheduler stopped")
	}
}

// IsRunning reports whether the scheduler is active.
func (s *ResyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
