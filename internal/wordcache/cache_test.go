package wordcache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/entities"
)

type fakeOrigin struct {
	mu          sync.Mutex
	words       map[string]entities.WordRecord
	index       *entities.DictionaryIndex
	offline     bool
	wordCalls   map[string]int
	indexCalls  int
	indexErrors int
}

func newFakeOrigin(words ...string) *fakeOrigin {
	o := &fakeOrigin{
		words:     make(map[string]entities.WordRecord),
		index:     &entities.DictionaryIndex{},
		wordCalls: make(map[string]int),
	}
	for _, w := range words {
		o.words[w] = entities.WordRecord{Word: w, ConciseDefinition: "def of " + w}
		o.index.Words = append(o.index.Words, entities.WordSummary{Word: w})
	}
	o.index.TotalWords = len(o.index.Words)
	return o
}

func (o *fakeOrigin) FetchIndex(ctx context.Context) (*entities.DictionaryIndex, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.indexCalls++
	if o.offline || o.indexErrors > 0 {
		if o.indexErrors > 0 {
			o.indexErrors--
		}
		return nil, apperrors.Remote(errors.New("network down"))
	}
	return o.index, nil
}

func (o *fakeOrigin) FetchWord(ctx context.Context, word string) (*entities.WordRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.wordCalls[word]++
	if o.offline {
		return nil, apperrors.Remote(errors.New("network down"))
	}
	record, ok := o.words[word]
	if !ok {
		return nil, fmt.Errorf("%s: %w", word, apperrors.ErrNotFound)
	}
	return &record, nil
}

func (o *fakeOrigin) calls(word string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.wordCalls[word]
}

func (o *fakeOrigin) setOffline(offline bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offline = offline
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(context.Context, string) ([]byte, error) {
	return nil, apperrors.ErrStorageFailure
}
func (brokenStore) Put(context.Context, string, []byte) error { return apperrors.ErrStorageFailure }
func (brokenStore) Delete(context.Context, string) error      { return apperrors.ErrStorageFailure }
func (brokenStore) Keys(context.Context, string) ([]string, error) {
	return nil, apperrors.ErrStorageFailure
}

func newTestCache(store kv.Store, origin *fakeOrigin, capacity int) *Cache {
	return New(store, origin, Config{
		MemoryCapacity: capacity,
		Logger:         zerolog.Nop(),
		Clock:          func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		Rand:           rand.New(rand.NewSource(42)),
	})
}

func TestResolve_OriginThenMemoryWithoutNetwork(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin("apple")
	cache := newTestCache(kv.NewMemoryStore(), origin, 10)

	record, err := cache.Resolve(ctx, " Apple ")
	require.NoError(t, err)
	assert.Equal(t, "def of apple", record.ConciseDefinition)

	origin.setOffline(true)

	again, err := cache.Resolve(ctx, "apple")
	require.NoError(t, err)
	assert.Equal(t, record, again)
	assert.Equal(t, 1, origin.calls("apple"))
}

func TestResolve_WritesThroughToPersistentTier(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	origin := newFakeOrigin("apple")

	_, err := newTestCache(store, origin, 10).Resolve(ctx, "apple")
	require.NoError(t, err)

	raw, err := store.Get(ctx, "apple")
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"word":"apple","data":{"word":"apple","concise_definition":"def of apple"},"timestamp":1700000000000}`,
		string(raw))

	// A fresh cache over the same store answers offline and promotes to memory.
	origin.setOffline(true)
	fresh := newTestCache(store, origin, 10)

	record, err := fresh.Resolve(ctx, "apple")
	require.NoError(t, err)
	assert.Equal(t, "def of apple", record.ConciseDefinition)
	assert.Equal(t, 1, fresh.Stats(ctx).Memory)
	assert.Equal(t, 1, origin.calls("apple"))
}

func TestResolve_BrokenStoreDegradesToOrigin(t *testing.T) {
	origin := newFakeOrigin("apple")
	cache := newTestCache(brokenStore{}, origin, 10)

	record, err := cache.Resolve(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, "apple", record.Word)
}

func TestResolve_NotFound(t *testing.T) {
	cache := newTestCache(kv.NewMemoryStore(), newFakeOrigin(), 10)

	_, err := cache.Resolve(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = cache.Resolve(context.Background(), "  ")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestResolve_OfflineMissPropagatesRemoteFailure(t *testing.T) {
	origin := newFakeOrigin("apple")
	origin.setOffline(true)

	_, err := newTestCache(kv.NewMemoryStore(), origin, 10).Resolve(context.Background(), "apple")
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)
}

func TestMemoryTier_FIFOEviction(t *testing.T) {
	ctx := context.Background()
	var words []string
	for i := 0; i < 201; i++ {
		words = append(words, fmt.Sprintf("w%03d", i))
	}
	origin := newFakeOrigin(words...)
	cache := newTestCache(brokenStore{}, origin, 200)

	for i, w := range words {
		_, err := cache.Resolve(ctx, w)
		require.NoError(t, err)
		if i == 199 {
			// Reading the oldest entry does not protect it from eviction.
			_, err := cache.Resolve(ctx, words[0])
			require.NoError(t, err)
		}
	}

	assert.Equal(t, 200, cache.memory.len())
	assert.False(t, cache.memory.has(words[0]))
	assert.True(t, cache.memory.has(words[1]))
	assert.True(t, cache.memory.has(words[200]))
}

func TestMemoryTier_OverwriteKeepsSlot(t *testing.T) {
	m := newMemoryTier(2)

	m.set("a", &entities.WordRecord{Word: "a"})
	m.set("b", &entities.WordRecord{Word: "b"})
	m.set("a", &entities.WordRecord{Word: "a", ConciseDefinition: "updated"})
	evicted := m.set("c", &entities.WordRecord{Word: "c"})

	assert.Equal(t, 1, evicted)
	assert.False(t, m.has("a"))
	assert.True(t, m.has("b"))
	assert.True(t, m.has("c"))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin("pineapple", "apples", "apple", "Apple", "grape", "applesauce")
	cache := newTestCache(kv.NewMemoryStore(), origin, 10)

	results, err := cache.Search(ctx, "APPLE", 0)
	require.NoError(t, err)

	var got []string
	for _, r := range results {
		got = append(got, r.Word)
	}
	assert.Equal(t, []string{"apple", "apples", "applesauce", "pineapple"}, got)

	limited, err := cache.Search(ctx, "apple", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
	assert.Equal(t, "apple", limited[0].Word)

	empty, err := cache.Search(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearch_IndexLoadedOnce(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin("apple")
	origin.indexErrors = 1
	cache := newTestCache(kv.NewMemoryStore(), origin, 10)

	_, err := cache.Search(ctx, "app", 5)
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)

	for i := 0; i < 3; i++ {
		_, err = cache.Search(ctx, "app", 5)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, origin.indexCalls)

	cache.Reset()
	_, err = cache.Search(ctx, "app", 5)
	require.NoError(t, err)
	assert.Equal(t, 3, origin.indexCalls)
}

func TestRandomSample(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(kv.NewMemoryStore(), newFakeOrigin("a", "b", "c", "d", "e"), 10)

	sample, err := cache.RandomSample(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, sample, 3)

	seen := map[string]bool{}
	for _, s := range sample {
		assert.False(t, seen[s.Word], "sample must not repeat %s", s.Word)
		seen[s.Word] = true
	}

	all, err := cache.RandomSample(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	none, err := cache.RandomSample(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPreloadStatsAndClear(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	origin := newFakeOrigin("hello", "world")
	cache := New(store, origin, Config{Logger: zerolog.Nop(), PreloadPause: time.Millisecond})

	loaded := cache.Preload(ctx, []string{"hello", "world", "missing", "hello"})
	assert.Equal(t, 2, loaded)
	assert.Equal(t, 1, origin.calls("hello"))

	stats := cache.Stats(ctx)
	assert.Equal(t, Stats{Memory: 2, Persistent: 2, Total: 4}, stats)

	require.NoError(t, cache.ClearPersistent(ctx))
	cache.Reset()
	assert.Equal(t, Stats{}, cache.Stats(ctx))
}

func TestGroupWords(t *testing.T) {
	words := []entities.WordSummary{
		{Word: "apple"}, {Word: "Banana"}, {Word: "apply"}, {Word: "bread"},
		{Word: "ant"}, {Word: "cherry"}, {Word: "zebra"},
	}

	assert.Equal(t, []string{"apple", "apply", "Banana", "bread"}, groupWords(words, []string{"a", "B"}, 2))
	assert.Equal(t, []string{"cherry"}, groupWords(words, []string{"c", "d"}, 10))
	assert.Empty(t, groupWords(words, []string{"a"}, 0))
}

func TestPreloadGroups(t *testing.T) {
	ctx := context.Background()
	origin := newFakeOrigin("apple", "apply", "ant", "bread", "zebra")
	cache := newTestCache(kv.NewMemoryStore(), origin, 10)

	loaded, err := cache.PreloadGroups(ctx, []string{"a", "b"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded)
	assert.Equal(t, 1, origin.calls("apple"))
	assert.Equal(t, 1, origin.calls("apply"))
	assert.Equal(t, 0, origin.calls("ant"))
	assert.Equal(t, 1, origin.calls("bread"))
	assert.Equal(t, 0, origin.calls("zebra"))

	origin.setOffline(true)
	cache.Reset()
	_, err = cache.PreloadGroups(ctx, CommonLetters, CommonGroupSize)
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)
}
