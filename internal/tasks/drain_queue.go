package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/reconciler"
)

// DrainQueueTask replays one user's queued mutations against the remote store.
// Generation ties the task to the dispatcher epoch it was scheduled in; tasks
// from a cancelled epoch are acknowledged without draining. Zero means the
// task was enqueued by hand and always runs.
type DrainQueueTask struct {
	UserID     string `json:"user_id"`
	Generation uint64 `json:"generation"`
}

func (t DrainQueueTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "drain_sync_queue",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// DrainDispatcher is a reconciler.Trigger backed by durable backlite tasks.
// Drains scheduled before a crash run after restart.
type DrainDispatcher struct {
	client  *Client
	drainer reconciler.Drainer
	delay   time.Duration
	log     zerolog.Logger

	generation atomic.Uint64

	mu       sync.Mutex
	pending  map[string]bool
	inflight map[string]context.CancelFunc
}

// NewDrainDispatcher creates a dispatcher. Register its queue with
// client.Register(d.Queue()) before the client starts.
func NewDrainDispatcher(client *Client, drainer reconciler.Drainer, delay time.Duration, log zerolog.Logger) *DrainDispatcher {
	if delay <= 0 {
		delay = reconciler.DefaultDrainDelay
	}
	d := &DrainDispatcher{
		client:   client,
		drainer:  drainer,
		delay:    delay,
		log:      log,
		pending:  make(map[string]bool),
		inflight: make(map[string]context.CancelFunc),
	}
	d.generation.Store(1)
	return d
}

// Schedule enqueues a delayed drain for userID unless one is already pending.
func (d *DrainDispatcher) Schedule(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending[userID] {
		return
	}

	task := DrainQueueTask{UserID: userID, Generation: d.generation.Load()}
	if _, err := d.client.Add(task).Wait(d.delay).Save(); err != nil {
		d.log.Error().Err(err).Str("user_id", userID).Msg("failed to schedule drain task")
		return
	}
	d.pending[userID] = true
}

// Cancel invalidates every scheduled drain and aborts the running ones.
func (d *DrainDispatcher) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.generation.Add(1)
	for userID, cancel := range d.inflight {
		cancel()
		delete(d.inflight, userID)
	}
	d.pending = make(map[string]bool)
}

// Queue returns the backlite queue processing DrainQueueTask.
func (d *DrainDispatcher) Queue() backlite.Queue {
	return backlite.NewQueue(d.process)
}

func (d *DrainDispatcher) process(ctx context.Context, task DrainQueueTask) error {
	d.mu.Lock()
	delete(d.pending, task.UserID)
	if task.Generation != 0 && task.Generation != d.generation.Load() {
		d.mu.Unlock()
		d.log.Debug().Str("user_id", task.UserID).Msg("dropping drain from a cancelled session")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	d.inflight[task.UserID] = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inflight, task.UserID)
		d.mu.Unlock()
		cancel()
	}()

	result, err := d.drainer.Drain(ctx, task.UserID)
	if err != nil {
		return fmt.Errorf("drain queue for %s: %w", task.UserID, err)
	}
	if result.Failed > 0 {
		// Returning an error lets backlite retry with backoff.
		return fmt.Errorf("drain queue for %s: %d of %d mutations failed", task.UserID, result.Failed, result.Attempted)
	}

	d.log.Debug().
		Str("user_id", task.UserID).
		Int("drained", result.Succeeded).
		Bool("skipped", result.Skipped).
		Msg("drain task finished")
	return nil
}
