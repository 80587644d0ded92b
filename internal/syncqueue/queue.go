// Package syncqueue is the durable, ordered log of mutations waiting to be
// replayed against the remote store.
//
// The whole queue is one JSON array under a single key. Entries are kept in
// insertion order and never deduplicated: two identical mutations replay twice.
package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/metrics"
)

// StorageKey is the key holding the queue in its kv namespace.
const StorageKey = "dict_v1_sync_queue"

// Queue serialises every read-modify-write of the stored array.
type Queue struct {
	mu    sync.Mutex
	store kv.Store
	now   func() time.Time
	newID func() string
	log   zerolog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides time.Now for item timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithLogger sets the queue logger.
func WithLogger(log zerolog.Logger) Option {
	return func(q *Queue) { q.log = log }
}

// New creates a queue persisted in store.
func New(store kv.Store, opts ...Option) *Queue {
	q := &Queue{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends a mutation for userID and returns the stored item.
func (q *Queue) Enqueue(ctx context.Context, userID string, m Mutation) (Item, error) {
	if m == nil {
		return Item{}, fmt.Errorf("nil mutation: %w", apperrors.ErrInvalidInput)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return Item{}, err
	}

	item := Item{
		ID:        q.newID(),
		UserID:    userID,
		Mutation:  m,
		Timestamp: q.now().UnixMilli(),
	}
	items = append(items, item)

	if err := q.save(ctx, items); err != nil {
		return Item{}, err
	}

	q.log.Debug().
		Str("id", item.ID).
		Str("user_id", userID).
		Str("action", string(m.Action())).
		Str("word", m.Target()).
		Msg("mutation queued")
	return item, nil
}

// PeekAll returns a snapshot of every queued item, oldest first.
func (q *Queue) PeekAll(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.load(ctx)
}

// Len returns the number of queued items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// RemoveAt deletes the item at index, shifting later items left.
// An out-of-range index is a no-op.
func (q *Queue) RemoveAt(ctx context.Context, index int) error {
	_, err := q.remove(ctx, index, "")
	return err
}

// RemoveIfMatch deletes the item at index only if its ID is id, and reports
// whether it did. A queue cleared or rewritten since the caller's snapshot is
// left alone.
func (q *Queue) RemoveIfMatch(ctx context.Context, index int, id string) (bool, error) {
	return q.remove(ctx, index, id)
}

func (q *Queue) remove(ctx context.Context, index int, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(items) {
		return false, nil
	}
	if id != "" && items[index].ID != id {
		return false, nil
	}

	items = append(items[:index], items[index+1:]...)
	return true, q.save(ctx, items)
}

// Clear drops every queued item.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear sync queue: %w", err)
	}
	metrics.QueueDepth.Set(0)
	return nil
}

// load reads the stored array. Entries that no longer decode are logged and
// dropped so one bad entry cannot wedge the queue.
func (q *Queue) load(ctx context.Context) ([]Item, error) {
	raw, err := q.store.Get(ctx, StorageKey)
	if errors.Is(err, apperrors.ErrNotFound) {
		return []Item{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read sync queue: %w", err)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		q.log.Error().Err(err).Msg("sync queue unreadable, starting empty")
		return []Item{}, nil
	}

	items := make([]Item, 0, len(entries))
	for i, entry := range entries {
		var item Item
		if err := json.Unmarshal(entry, &item); err != nil {
			q.log.Error().Err(err).Int("index", i).Msg("dropping unreadable sync queue entry")
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode sync queue: %w", err)
	}
	if err := q.store.Put(ctx, StorageKey, raw); err != nil {
		return fmt.Errorf("write sync queue: %w", err)
	}
	metrics.QueueDepth.Set(float64(len(items)))
	return nil
}
