package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/pkg/logger"
)

const (
	DefaultPreviewRebuildSpec = "*/10 * * * *"
	logCleanupSpec            = "30 3 * * *"
	logCleanupLock            = "log_cleanup"
)

// Scheduler runs the periodic maintenance jobs: preview rebuilds on every
// instance and a daily log cleanup on exactly one.
type Scheduler struct {
	cron      *cron.Cron
	gw        store.Gateway
	projector *PreviewProjector
	logs      *SystemLogService
	owner     string
	now       func() time.Time
}

func NewScheduler(gw store.Gateway, projector *PreviewProjector, logs *SystemLogService) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		gw:        gw,
		projector: projector,
		logs:      logs,
		owner:     uuid.NewString(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the jobs and starts the cron runner. An empty previewSpec
// uses DefaultPreviewRebuildSpec.
func (s *Scheduler) Start(previewSpec string) error {
	if previewSpec == "" {
		previewSpec = DefaultPreviewRebuildSpec
	}
	if _, err := s.cron.AddFunc(previewSpec, func() {
		s.RebuildPreviews(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule preview rebuild %q: %w", previewSpec, err)
	}
	if s.logs != nil {
		if _, err := s.cron.AddFunc(logCleanupSpec, func() {
			s.CleanupLogs(context.Background())
		}); err != nil {
			return fmt.Errorf("schedule log cleanup: %w", err)
		}
	}

	s.cron.Start()
	logger.Infof("[Scheduler] Started, preview rebuild: %s", previewSpec)
	return nil
}

// Stop halts the runner and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) RebuildPreviews(ctx context.Context) {
	n, err := s.projector.Rebuild(ctx)
	if err != nil {
		logger.Errorf("[Scheduler] Preview rebuild failed: %v", err)
		return
	}
	logger.Debug().Int("projects", n).Msg("[Scheduler] previews rebuilt")
}

// CleanupLogs applies log retention once per day across all instances. It
// reports whether this instance ran the cleanup.
func (s *Scheduler) CleanupLogs(ctx context.Context) bool {
	day := s.now().Format("2006-01-02")
	ok, err := s.gw.AcquireLock(ctx, logCleanupLock, day, s.owner, 23*time.Hour)
	if err != nil {
		logger.Errorf("[Scheduler] Acquire cleanup lock: %v", err)
		return false
	}
	if !ok {
		logger.Debug().Str("day", day).Msg("[Scheduler] log cleanup claimed by another instance")
		return false
	}
	s.logs.RunCleanup()
	return true
}
