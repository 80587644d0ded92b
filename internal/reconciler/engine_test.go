package reconciler

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/localcache"
	"github.com/mrlokans/wordsync/internal/syncqueue"
)

var errOffline = errors.New("offline")

// fakeRemote is an in-memory remote.Store with a kill switch.
type fakeRemote struct {
	mu          sync.Mutex
	offline     bool
	failing     map[string]bool
	collections map[string]map[string]entities.CollectionItem
	progress    map[string]map[string]entities.ProgressRecord
	calls       []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		collections: make(map[string]map[string]entities.CollectionItem),
		progress:    make(map[string]map[string]entities.ProgressRecord),
	}
}

func (f *fakeRemote) setOffline(v bool) {
	f.mu.Lock()
	f.offline = v
	f.mu.Unlock()
}

func (f *fakeRemote) failWord(word string) {
	f.mu.Lock()
	f.failing = map[string]bool{word: true}
	f.mu.Unlock()
}

func (f *fakeRemote) record(call string) error {
	f.calls = append(f.calls, call)
	if f.offline || f.failing[call[strings.LastIndex(call, " ")+1:]] {
		return apperrors.Remote(errOffline)
	}
	return nil
}

func (f *fakeRemote) ListCollections(_ context.Context, userID string) ([]entities.CollectionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list-collections " + userID); err != nil {
		return nil, err
	}
	out := []entities.CollectionItem{}
	for _, c := range f.collections[userID] {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out, nil
}

func (f *fakeRemote) InsertCollection(_ context.Context, userID, word string) (*entities.CollectionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("insert " + userID + " " + word); err != nil {
		return nil, err
	}
	if f.collections[userID] == nil {
		f.collections[userID] = make(map[string]entities.CollectionItem)
	}
	item, ok := f.collections[userID][word]
	if !ok {
		item = entities.CollectionItem{Word: word, UserID: userID, CreatedAt: time.Unix(0, 0).UTC()}
		f.collections[userID][word] = item
	}
	return &item, nil
}

func (f *fakeRemote) DeleteCollection(_ context.Context, userID, word string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("delete " + userID + " " + word); err != nil {
		return err
	}
	delete(f.collections[userID], word)
	return nil
}

func (f *fakeRemote) ListProgress(_ context.Context, userID string) ([]entities.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("list-progress " + userID); err != nil {
		return nil, err
	}
	out := []entities.ProgressRecord{}
	for _, p := range f.progress[userID] {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRemote) UpsertProgress(_ context.Context, userID, word string, update entities.ProgressUpdate) (*entities.ProgressRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("upsert " + userID + " " + word); err != nil {
		return nil, err
	}
	if f.progress[userID] == nil {
		f.progress[userID] = make(map[string]entities.ProgressRecord)
	}
	record := update.Record(userID, word)
	f.progress[userID][word] = record
	return &record, nil
}

func (f *fakeRemote) hasCollection(userID, word string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[userID][word]
	return ok
}

type fixture struct {
	engine *Engine
	remote *fakeRemote
	queue  *syncqueue.Queue
	state  *localcache.Cache
	store  *kv.MemoryStore
	now    time.Time
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()

	f := &fixture{
		remote: newFakeRemote(),
		store:  kv.NewMemoryStore(),
		now:    time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	f.queue = syncqueue.New(f.store, syncqueue.WithClock(clock))
	f.state = localcache.New(f.store, localcache.WithClock(clock))
	f.engine = New(Config{
		Remote: f.remote,
		Queue:  f.queue,
		State:  f.state,
		Mode:   mode,
		Logger: zerolog.Nop(),
		Clock:  clock,
	})
	t.Cleanup(f.engine.Close)
	return f
}

func (f *fixture) signIn(t *testing.T, userID string) {
	t.Helper()
	require.NoError(t, f.engine.SignIn(context.Background(), userID))
	f.engine.WaitBackground()
}

func (f *fixture) queued(t *testing.T) []syncqueue.Item {
	t.Helper()
	items, err := f.queue.PeekAll(context.Background())
	require.NoError(t, err)
	return items
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeDirect, ParseMode("direct"))
	assert.Equal(t, ModeDirect, ParseMode("DIRECT"))
	assert.Equal(t, ModeOptimistic, ParseMode("optimistic"))
	assert.Equal(t, ModeOptimistic, ParseMode(""))
}

func TestMutationsRequireSignIn(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()

	assert.ErrorIs(t, f.engine.AddToCollection(ctx, "apple"), apperrors.ErrSignInRequired)
	assert.ErrorIs(t, f.engine.RemoveFromCollection(ctx, "apple"), apperrors.ErrSignInRequired)
	_, err := f.engine.ReviewWord(ctx, "apple", 5)
	assert.ErrorIs(t, err, apperrors.ErrSignInRequired)

	_, err = f.engine.Sync(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSignInRequired)
}

func TestSignInRejectsEmptyUser(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	assert.ErrorIs(t, f.engine.SignIn(context.Background(), ""), apperrors.ErrInvalidInput)
}

func TestOptimisticAdd_OfflineKeepsLocalStateAndQueue(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")
	f.remote.setOffline(true)

	require.NoError(t, f.engine.AddToCollection(ctx, " Apple "))

	assert.True(t, f.engine.IsCollected("apple"))
	items := f.queued(t)
	require.Len(t, items, 1)
	assert.Equal(t, "u1", items[0].UserID)
	assert.Equal(t, syncqueue.AddCollection{Word: "apple"}, items[0].Mutation)

	result, err := f.engine.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Failed)

	assert.True(t, f.engine.IsCollected("apple"), "failed drain must not roll back")
	assert.Len(t, f.queued(t), 1)

	var snapshot []entities.CollectionItem
	require.True(t, f.state.Get(ctx, "u1", localcache.KindCollections, &snapshot))
	require.Len(t, snapshot, 1)
	assert.Equal(t, "apple", snapshot[0].Word)
}

func TestOptimisticAdd_AlreadyCollectedIsNoop(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")

	require.NoError(t, f.engine.AddToCollection(ctx, "apple"))
	require.NoError(t, f.engine.AddToCollection(ctx, "APPLE"))

	assert.Len(t, f.engine.Collections(), 1)
	assert.Len(t, f.queued(t), 1)
}

func TestDrain_OnlyActiveUserEntries(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "A")

	for _, w := range []string{"one", "two", "three"} {
		require.NoError(t, f.engine.AddToCollection(ctx, w))
	}
	_, err := f.queue.Enqueue(ctx, "B", syncqueue.AddCollection{Word: "other"})
	require.NoError(t, err)

	result, err := f.engine.Drain(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Attempted: 3, Succeeded: 3}, result)

	items := f.queued(t)
	require.Len(t, items, 1)
	assert.Equal(t, "B", items[0].UserID)
	assert.True(t, f.remote.hasCollection("A", "three"))
	assert.False(t, f.remote.hasCollection("B", "other"))
}

func TestDrain_PartialFailureKeepsFailedEntries(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")

	for _, w := range []string{"apple", "pear", "plum"} {
		require.NoError(t, f.engine.AddToCollection(ctx, w))
	}
	f.remote.failWord("pear")

	result, err := f.engine.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, DrainResult{Attempted: 3, Succeeded: 2, Failed: 1}, result)

	items := f.queued(t)
	require.Len(t, items, 1)
	assert.Equal(t, syncqueue.AddCollection{Word: "pear"}, items[0].Mutation)
	assert.True(t, f.remote.hasCollection("u1", "plum"))
}

func TestDrain_SkippedForInactiveUser(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	f.signIn(t, "u1")

	result, err := f.engine.Drain(context.Background(), "u2")
	require.NoError(t, err)
	assert.True(t, result.Skipped)
}

func TestSync_SkippedWhileBusy(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	f.signIn(t, "u1")

	f.engine.busy.Store(true)
	result, err := f.engine.Sync(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	drained, err := f.engine.Drain(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, drained.Skipped)
	assert.True(t, f.engine.drainAgain.Load())
	f.engine.busy.Store(false)
}

func TestSync_PullsRemoteAndOverlaysPending(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()

	f.remote.collections["u1"] = map[string]entities.CollectionItem{
		"remote": {Word: "remote", UserID: "u1"},
	}
	f.signIn(t, "u1")
	assert.True(t, f.engine.IsCollected("remote"))

	f.remote.setOffline(true)
	require.NoError(t, f.engine.AddToCollection(ctx, "local"))
	f.remote.setOffline(false)

	// The queued add is replayed first, so the pull already sees it.
	result, err := f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, result.CollectionsPulled)
	assert.True(t, result.ProgressPulled)
	assert.Equal(t, 1, result.Drain.Succeeded)
	assert.True(t, f.engine.IsCollected("local"))
	assert.True(t, f.engine.IsCollected("remote"))
	assert.Empty(t, f.queued(t))
}

func TestSync_OfflineKeepsPreviousLists(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")

	require.NoError(t, f.engine.AddToCollection(ctx, "apple"))
	f.remote.setOffline(true)

	result, err := f.engine.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, result.CollectionsPulled)
	assert.Equal(t, 1, result.Drain.Failed)
	assert.True(t, f.engine.IsCollected("apple"))
}

func TestOverlay_RemoveAndProgress(t *testing.T) {
	next := time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC)
	collections := []entities.CollectionItem{{Word: "apple"}, {Word: "pear"}}
	progress := []entities.ProgressRecord{}

	collections, progress = overlay(collections, progress, syncqueue.Item{
		UserID:   "u1",
		Mutation: syncqueue.RemoveCollection{Word: "apple"},
	}, "u1")
	collections, progress = overlay(collections, progress, syncqueue.Item{
		UserID:   "u1",
		Mutation: syncqueue.UpdateProgress{Word: "pear", Progress: entities.ProgressUpdate{EaseFactor: 2.6, Interval: 1, Repetitions: 1, NextReview: next}},
	}, "u1")

	require.Len(t, collections, 1)
	assert.Equal(t, "pear", collections[0].Word)
	require.Len(t, progress, 1)
	assert.Equal(t, "u1", progress[0].UserID)
	assert.Equal(t, next, progress[0].NextReview)
}

func TestReviewWord_AppliesScheduleAndQueues(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")

	record, err := f.engine.ReviewWord(ctx, "apple", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, record.Interval)
	assert.Equal(t, 1, record.Repetitions)
	assert.InDelta(t, 2.6, record.EaseFactor, 1e-9)
	assert.Equal(t, f.now.AddDate(0, 0, 1), record.NextReview)
	require.NotNil(t, record.LastReviewed)

	record, err = f.engine.ReviewWord(ctx, "apple", 5)
	require.NoError(t, err)
	assert.Equal(t, 6, record.Interval)

	assert.True(t, f.engine.IsInProgress("apple"))
	assert.Len(t, f.engine.Progress(), 1)

	items := f.queued(t)
	require.Len(t, items, 2)
	update, ok := items[1].Mutation.(syncqueue.UpdateProgress)
	require.True(t, ok)
	assert.Equal(t, 6, update.Progress.Interval)

	stats := f.engine.Stats()
	assert.Equal(t, 1, stats.TotalWords)
	assert.Equal(t, 1, stats.LearnedToday)
	assert.Equal(t, 0, stats.DueWords)
}

func TestReviewWord_InvalidQuality(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	f.signIn(t, "u1")

	_, err := f.engine.ReviewWord(context.Background(), "apple", 6)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.False(t, f.engine.IsInProgress("apple"))
	assert.Empty(t, f.queued(t))
}

func TestDirectMode_FailureLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, ModeDirect)
	ctx := context.Background()
	f.signIn(t, "u1")
	f.remote.setOffline(true)

	err := f.engine.AddToCollection(ctx, "apple")
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)
	assert.False(t, f.engine.IsCollected("apple"))

	_, err = f.engine.ReviewWord(ctx, "apple", 4)
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)
	assert.False(t, f.engine.IsInProgress("apple"))

	assert.Empty(t, f.queued(t))
}

func TestDirectMode_SuccessWritesThrough(t *testing.T) {
	f := newFixture(t, ModeDirect)
	ctx := context.Background()
	f.signIn(t, "u1")

	require.NoError(t, f.engine.AddToCollection(ctx, "apple"))
	assert.True(t, f.remote.hasCollection("u1", "apple"))
	assert.True(t, f.engine.IsCollected("apple"))

	require.NoError(t, f.engine.RemoveFromCollection(ctx, "apple"))
	assert.False(t, f.remote.hasCollection("u1", "apple"))
	assert.False(t, f.engine.IsCollected("apple"))
	assert.Empty(t, f.queued(t))
}

func TestDirectMode_RemoveFailureKeepsWordCollected(t *testing.T) {
	f := newFixture(t, ModeDirect)
	ctx := context.Background()
	f.signIn(t, "u1")

	require.NoError(t, f.engine.AddToCollection(ctx, "apple"))
	f.remote.setOffline(true)

	err := f.engine.RemoveFromCollection(ctx, "apple")
	assert.ErrorIs(t, err, apperrors.ErrRemoteFailure)
	assert.True(t, f.engine.IsCollected("apple"))
	assert.True(t, f.remote.hasCollection("u1", "apple"))
	assert.Empty(t, f.queued(t))
}

func TestSignOut_ClearsSnapshotKeepsQueue(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")
	f.remote.setOffline(true)

	require.NoError(t, f.engine.AddToCollection(ctx, "apple"))
	f.engine.SignOut(ctx)

	assert.Equal(t, "", f.engine.UserID())
	assert.Empty(t, f.engine.Collections())
	var snapshot []entities.CollectionItem
	assert.False(t, f.state.Get(ctx, "u1", localcache.KindCollections, &snapshot))
	assert.Len(t, f.queued(t), 1)

	count, err := f.engine.PendingMutations(ctx)
	assert.ErrorIs(t, err, apperrors.ErrSignInRequired)
	assert.Zero(t, count)
}

func TestSignIn_RestoresSnapshotWhileOffline(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.state.Set(ctx, "u1", localcache.KindCollections, []entities.CollectionItem{{Word: "cached", UserID: "u1"}})
	f.remote.setOffline(true)

	f.signIn(t, "u1")

	assert.True(t, f.engine.IsCollected("cached"))
}

func TestDueWordsAndRefreshStats(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	ctx := context.Background()
	f.signIn(t, "u1")

	_, err := f.engine.ReviewWord(ctx, "apple", 5)
	require.NoError(t, err)
	_, err = f.engine.ReviewWord(ctx, "pear", 1)
	require.NoError(t, err)

	assert.Empty(t, f.engine.DueWords())

	f.now = f.now.Add(25 * time.Hour)
	assert.Equal(t, 0, f.engine.Stats().DueWords, "stats are cached until refreshed")
	assert.Equal(t, 2, f.engine.RefreshStats().DueWords)

	due := f.engine.DueWords()
	require.Len(t, due, 2)
}

func TestDictionaryNotConfigured(t *testing.T) {
	f := newFixture(t, ModeOptimistic)
	_, err := f.engine.Search(context.Background(), "app", 5)
	assert.Error(t, err)
	_, err = f.engine.WordDetail(context.Background(), "apple")
	assert.Error(t, err)
}
