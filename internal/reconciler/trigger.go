package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultDrainDelay coalesces bursts of mutations into one drain.
const DefaultDrainDelay = 100 * time.Millisecond

// Trigger schedules a background drain of the queue for a user.
type Trigger interface {
	// Schedule asks for a drain soon. Calls made while one is pending coalesce.
	Schedule(userID string)
	// Cancel drops pending drains and aborts one in flight.
	Cancel()
}

// Drainer replays queued mutations for one user.
type Drainer interface {
	Drain(ctx context.Context, userID string) (DrainResult, error)
}

// NopTrigger never drains. One-shot commands use it and sync explicitly.
type NopTrigger struct{}

func (NopTrigger) Schedule(string) {}
func (NopTrigger) Cancel()         {}

// DelayedTrigger runs a drain on a timer after the first Schedule call.
type DelayedTrigger struct {
	drainer Drainer
	delay   time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// NewDelayedTrigger creates a trigger draining through d after delay.
func NewDelayedTrigger(d Drainer, delay time.Duration, log zerolog.Logger) *DelayedTrigger {
	if delay <= 0 {
		delay = DefaultDrainDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DelayedTrigger{
		drainer: d,
		delay:   delay,
		log:     log,
		pending: make(map[string]*time.Timer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (t *DelayedTrigger) Schedule(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.pending[userID]; ok {
		return
	}

	ctx := t.ctx
	t.running.Add(1)

	var timer *time.Timer
	timer = time.AfterFunc(t.delay, func() {
		defer t.running.Done()

		t.mu.Lock()
		if t.pending[userID] == timer {
			delete(t.pending, userID)
		}
		t.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := t.drainer.Drain(ctx, userID); err != nil {
			t.log.Warn().Err(err).Str("user_id", userID).Msg("scheduled drain failed")
		}
	})
	t.pending[userID] = timer
}

func (t *DelayedTrigger) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for userID, timer := range t.pending {
		if timer.Stop() {
			t.running.Done()
		}
		delete(t.pending, userID)
	}
	t.cancel()
	t.ctx, t.cancel = context.WithCancel(context.Background())
}

// Wait blocks until every started drain has returned.
func (t *DelayedTrigger) Wait() {
	t.running.Wait()
}
