// Package wordcache resolves dictionary words through three tiers: a bounded
// in-process map, the local durable store, and the content origin.
//
// Lower tiers never fail a lookup on their own: a storage error is logged and
// treated as a miss, and only the origin's answer decides ErrNotFound.
package wordcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/dictionary"
	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/metrics"
)

const (
	DefaultMemoryCapacity = 200
	DefaultSearchLimit    = 20
	DefaultPreloadPause   = 100 * time.Millisecond
)

// CommonWords is the default warm-up list for Preload.
var CommonWords = []string{"hello", "world", "love", "time", "good", "people", "year", "work", "make", "life"}

// CommonLetters and CommonGroupSize drive the default PreloadGroups warm-up.
var CommonLetters = []string{"a", "b", "c", "d", "e"}

const CommonGroupSize = 10

// Config tunes a Cache. Zero values fall back to the defaults above.
type Config struct {
	MemoryCapacity     int
	SearchDefaultLimit int
	PreloadPause       time.Duration
	Logger             zerolog.Logger
	Clock              func() time.Time
	Rand               *rand.Rand
}

// Stats reports entry counts per tier.
type Stats struct {
	Memory     int   `json:"memoryCache"`
	Persistent int64 `json:"persistentCache"`
	Total      int64 `json:"total"`
}

// Cache is safe for concurrent use.
type Cache struct {
	memory       *memoryTier
	store        kv.Store
	origin       dictionary.Origin
	log          zerolog.Logger
	now          func() time.Time
	searchLimit  int
	preloadPause time.Duration

	indexMu sync.Mutex
	index   *entities.DictionaryIndex

	randMu sync.Mutex
	rand   *rand.Rand
}

// New creates a cache over store (namespace "words") and origin.
func New(store kv.Store, origin dictionary.Origin, cfg Config) *Cache {
	if cfg.MemoryCapacity <= 0 {
		cfg.MemoryCapacity = DefaultMemoryCapacity
	}
	if cfg.SearchDefaultLimit <= 0 {
		cfg.SearchDefaultLimit = DefaultSearchLimit
	}
	if cfg.PreloadPause < 0 {
		cfg.PreloadPause = 0
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Cache{
		memory:       newMemoryTier(cfg.MemoryCapacity),
		store:        store,
		origin:       origin,
		log:          cfg.Logger,
		now:          cfg.Clock,
		searchLimit:  cfg.SearchDefaultLimit,
		preloadPause: cfg.PreloadPause,
		rand:         cfg.Rand,
	}
}

// Resolve returns the detail record for word, consulting memory, then the
// durable store, then the origin.
func (c *Cache) Resolve(ctx context.Context, word string) (*entities.WordRecord, error) {
	key := dictionary.Normalize(word)
	if key == "" {
		return nil, fmt.Errorf("empty word: %w", apperrors.ErrInvalidInput)
	}

	if record, ok := c.memory.get(key); ok {
		metrics.CacheLookupsTotal.WithLabelValues(metrics.TierMemory, metrics.OutcomeHit).Inc()
		return record, nil
	}

	if record, ok := c.readPersistent(ctx, key); ok {
		metrics.CacheLookupsTotal.WithLabelValues(metrics.TierPersistent, metrics.OutcomeHit).Inc()
		c.remember(key, record)
		return record, nil
	}

	record, err := c.origin.FetchWord(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues(metrics.TierOrigin, metrics.OutcomeMiss).Inc()
		return nil, err
	}
	metrics.CacheLookupsTotal.WithLabelValues(metrics.TierOrigin, metrics.OutcomeHit).Inc()

	c.writePersistent(ctx, key, record)
	c.remember(key, record)
	return record, nil
}

func (c *Cache) remember(key string, record *entities.WordRecord) {
	if evicted := c.memory.set(key, record); evicted > 0 {
		metrics.MemoryCacheEvictionsTotal.Add(float64(evicted))
	}
}

func (c *Cache) readPersistent(ctx context.Context, key string) (*entities.WordRecord, bool) {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			c.log.Warn().Err(err).Str("word", key).Msg("persistent word cache read failed")
		}
		return nil, false
	}

	var stored entities.StoredWord
	if err := json.Unmarshal(raw, &stored); err != nil {
		c.log.Warn().Err(err).Str("word", key).Msg("persistent word cache entry unreadable")
		return nil, false
	}
	return &stored.Data, true
}

func (c *Cache) writePersistent(ctx context.Context, key string, record *entities.WordRecord) {
	raw, err := json.Marshal(entities.StoredWord{
		Word:      key,
		Data:      *record,
		Timestamp: c.now().UnixMilli(),
	})
	if err == nil {
		err = c.store.Put(ctx, key, raw)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("word", key).Msg("persistent word cache write failed")
	}
}

// Index returns the search index, loading it from the origin on first use.
// A failed load is not remembered, so the next call retries.
func (c *Cache) Index(ctx context.Context) (*entities.DictionaryIndex, error) {
	c.indexMu.Lock()
	defer c.indexMu.Unlock()

	if c.index != nil {
		return c.index, nil
	}

	index, err := c.origin.FetchIndex(ctx)
	if err != nil {
		return nil, err
	}
	c.index = index
	return index, nil
}

// Search matches query against the index. A non-positive limit uses the default.
func (c *Cache) Search(ctx context.Context, query string, limit int) ([]entities.WordSummary, error) {
	if dictionary.Normalize(query) == "" {
		return []entities.WordSummary{}, nil
	}
	if limit <= 0 {
		limit = c.searchLimit
	}

	index, err := c.Index(ctx)
	if err != nil {
		return nil, err
	}
	return searchIndex(index.Words, query, limit), nil
}

// RandomSample returns count distinct index entries, or all of them when
// count exceeds the index size.
func (c *Cache) RandomSample(ctx context.Context, count int) ([]entities.WordSummary, error) {
	index, err := c.Index(ctx)
	if err != nil {
		return nil, err
	}

	c.randMu.Lock()
	defer c.randMu.Unlock()
	return sampleIndex(index.Words, count, c.rand.Intn), nil
}

// Preload resolves words one at a time, pausing between origin fetches.
// Words already in memory are skipped. It returns how many were resolved.
func (c *Cache) Preload(ctx context.Context, words []string) int {
	loaded := 0
	for _, word := range words {
		if ctx.Err() != nil {
			break
		}
		key := dictionary.Normalize(word)
		if key == "" || c.memory.has(key) {
			continue
		}
		if _, err := c.Resolve(ctx, key); err != nil {
			c.log.Debug().Err(err).Str("word", key).Msg("preload skipped word")
			continue
		}
		loaded++

		if c.preloadPause > 0 {
			select {
			case <-ctx.Done():
				return loaded
			case <-time.After(c.preloadPause):
			}
		}
	}
	return loaded
}

// PreloadGroups preloads the first perGroup index words starting with each
// of letters, in index order.
func (c *Cache) PreloadGroups(ctx context.Context, letters []string, perGroup int) (int, error) {
	index, err := c.Index(ctx)
	if err != nil {
		return 0, err
	}
	return c.Preload(ctx, groupWords(index.Words, letters, perGroup)), nil
}

// Stats counts entries per tier. A failing store reports zero persistent entries.
func (c *Cache) Stats(ctx context.Context) Stats {
	stats := Stats{Memory: c.memory.len()}

	if counter, ok := c.store.(interface {
		Count(ctx context.Context) (int64, error)
	}); ok {
		if n, err := counter.Count(ctx); err == nil {
			stats.Persistent = n
		}
	} else if keys, err := c.store.Keys(ctx, ""); err == nil {
		stats.Persistent = int64(len(keys))
	}

	stats.Total = int64(stats.Memory) + stats.Persistent
	return stats
}

// Reset drops the memory tier and the loaded index.
func (c *Cache) Reset() {
	c.memory.reset()

	c.indexMu.Lock()
	c.index = nil
	c.indexMu.Unlock()
}

// ClearPersistent wipes the durable tier.
func (c *Cache) ClearPersistent(ctx context.Context) error {
	if truncater, ok := c.store.(interface {
		Truncate(ctx context.Context) error
	}); ok {
		return truncater.Truncate(ctx)
	}

	keys, err := c.store.Keys(ctx, "")
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}
