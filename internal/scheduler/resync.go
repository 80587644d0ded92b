// Package scheduler runs the periodic full resync of the agent's session.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/reconciler"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule validates a five-field cron schedule string.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// CronDescription returns a human-readable description of a cron schedule.
func CronDescription(schedule string) string {
	switch schedule {
	case "*/5 * * * *":
		return "Every 5 minutes"
	case "*/15 * * * *":
		return "Every 15 minutes"
	case "*/30 * * * *":
		return "Every 30 minutes"
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	default:
		return "Custom schedule: " + schedule
	}
}

// Syncer runs one full sync of the active session.
type Syncer interface {
	Sync(ctx context.Context) (reconciler.SyncResult, error)
}

// ResyncScheduler periodically drains the queue and pulls fresh state, so
// changes made on other devices show up without a restart.
type ResyncScheduler struct {
	syncer   Syncer
	schedule string
	timeout  time.Duration
	log      zerolog.Logger

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewResyncScheduler creates a scheduler. Each run is bounded by timeout.
func NewResyncScheduler(syncer Syncer, schedule string, timeout time.Duration, log zerolog.Logger) *ResyncScheduler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &ResyncScheduler{
		syncer:   syncer,
		schedule: schedule,
		timeout:  timeout,
		log:      log.With().Str("component", "resync").Logger(),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start registers the job and starts the cron loop.
func (s *ResyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.runSync)
	if err != nil {
		return fmt.Errorf("failed to schedule resync job: %w", err)
	}
	s.entryID = entryID
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.log.Info().
		Str("schedule", s.schedule).
		Str("description", CronDescription(s.schedule)).
		Time("next_run", s.cron.Entry(entryID).Next).
		Msg("resync scheduler started")
	return nil
}

// Stop cancels a running sync and waits for the job to return.
func (s *ResyncScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	s.cron.Remove(s.entryID)
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.log.Info().Msg("resync scheduler stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *ResyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next resync will occur.
func (s *ResyncScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *ResyncScheduler) runSync() {
	s.mu.RLock()
	parent := s.ctx
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	start := time.Now()
	result, err := s.syncer.Sync(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("resync failed")
		return
	}
	if result.Skipped {
		s.log.Debug().Msg("resync skipped, another sync is running")
		return
	}
	s.log.Info().
		Int("drained", result.Drain.Succeeded).
		Bool("collections", result.CollectionsPulled).
		Bool("progress", result.ProgressPulled).
		Dur("duration", time.Since(start)).
		Msg("resync finished")
}
