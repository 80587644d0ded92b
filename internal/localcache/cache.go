// Package localcache keeps a short-lived per-user snapshot of collections and
// progress so a restarted agent can serve reads before the first sync.
//
// Every failure is logged and reported as a miss; nothing propagates to callers.
package localcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/entities"
)

const (
	keyPrefix  = "dict_"
	keyVersion = "v1"

	// DefaultMaxAge is how long a snapshot stays valid.
	DefaultMaxAge = time.Hour
)

// Kind names one cached list.
type Kind string

const (
	KindCollections Kind = "collections"
	KindProgress    Kind = "progress"
)

// Key builds the storage key for a user's snapshot of kind.
func Key(userID string, kind Kind) string {
	return userPrefix(userID) + string(kind)
}

func userPrefix(userID string) string {
	return keyPrefix + keyVersion + "_" + userID + "_"
}

// Cache stores timestamped JSON snapshots in a kv.Store.
type Cache struct {
	store  kv.Store
	maxAge time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxAge overrides DefaultMaxAge.
func WithMaxAge(maxAge time.Duration) Option {
	return func(c *Cache) {
		if maxAge > 0 {
			c.maxAge = maxAge
		}
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a Cache over store.
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		maxAge: DefaultMaxAge,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get decodes the snapshot into dst and reports whether it was present and fresh.
// Expired snapshots are deleted.
func (c *Cache) Get(ctx context.Context, userID string, kind Kind, dst any) bool {
	if userID == "" {
		return false
	}
	key := Key(userID, kind)

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			c.log.Warn().Err(err).Str("key", key).Msg("local state read failed")
		}
		return false
	}

	var entry entities.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("local state entry unreadable")
		return false
	}

	if c.now().UnixMilli()-entry.Timestamp > c.maxAge.Milliseconds() {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("expired local state delete failed")
		}
		return false
	}

	if err := json.Unmarshal(entry.Data, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("local state payload unreadable")
		return false
	}
	return true
}

// Set stores data stamped with the current time.
func (c *Cache) Set(ctx context.Context, userID string, kind Kind, data any) {
	if userID == "" {
		return
	}
	key := Key(userID, kind)

	payload, err := json.Marshal(data)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("local state encode failed")
		return
	}
	raw, err := json.Marshal(entities.CacheEntry{Data: payload, Timestamp: c.now().UnixMilli()})
	if err == nil {
		err = c.store.Put(ctx, key, raw)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("local state write failed")
	}
}

// Clear removes one snapshot.
func (c *Cache) Clear(ctx context.Context, userID string, kind Kind) {
	if userID == "" {
		return
	}
	if err := c.store.Delete(ctx, Key(userID, kind)); err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("local state clear failed")
	}
}

// ClearAll removes every snapshot belonging to userID.
func (c *Cache) ClearAll(ctx context.Context, userID string) {
	if userID == "" {
		return
	}

	keys, err := c.store.Keys(ctx, userPrefix(userID))
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", userID).Msg("local state listing failed")
		return
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("local state clear failed")
		}
	}
}
