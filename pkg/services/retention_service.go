package services

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chatflow-ai/chatflow/pkg/storage"
)

// RetentionService prunes old message logs on a cron schedule.
type RetentionService struct {
	messages storage.MessageStore
	cron     *cron.Cron
	schedule string
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewRetentionService creates a retention service that drops message logs
// older than maxAgeDays, running on the given cron schedule (e.g.
// "0 3 * * *" for 3am daily).
func NewRetentionService(messages storage.MessageStore, schedule string, maxAgeDays int, logger *zap.Logger) *RetentionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionService{
		messages: messages,
		cron:     cron.New(),
		schedule: schedule,
		maxAge:   time.Duration(maxAgeDays) * 24 * time.Hour,
		logger:   logger,
	}
}

// Start registers the prune job and starts the scheduler.
func (s *RetentionService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Prune); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.schedule, err)
	}
	s.cron.Start()
	s.logger.Info("message retention sweep scheduled",
		zap.String("schedule", s.schedule),
		zap.Duration("max_age", s.maxAge))
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *RetentionService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Prune drops message logs older than the retention window.
func (s *RetentionService) Prune() {
	cutoff := time.Now().UTC().Add(-s.maxAge)
	dropped, err := s.messages.DeleteMessagesBefore(cutoff)
	if err != nil {
		s.logger.Error("retention sweep failed", zap.Error(err))
		return
	}
	if dropped > 0 {
		s.logger.Info("retention sweep dropped messages",
			zap.Int("dropped", dropped), zap.Time("cutoff", cutoff))
	}
}
