// Package reconciler keeps a signed-in user's collections and review progress
// in memory, mutates them optimistically or directly, and reconciles them with
// the remote store through the durable sync queue.
//
// # Modes
//
// In optimistic mode a mutation updates memory and the local snapshot, appends
// to the queue and returns; a Trigger drains the queue shortly after. In direct
// mode the remote call happens first with the caller's context and local state
// changes only when it succeeds.
//
// # Sync
//
// A sync drains the active user's queue entries oldest first, pulls both lists
// from the remote and persists them locally. At most one drain or sync runs at
// a time. A sync requested meanwhile is skipped; a drain requested meanwhile is
// folded into the running one.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/dictionary"
	"github.com/mrlokans/wordsync/internal/entities"
	"github.com/mrlokans/wordsync/internal/localcache"
	"github.com/mrlokans/wordsync/internal/metrics"
	"github.com/mrlokans/wordsync/internal/remote"
	"github.com/mrlokans/wordsync/internal/srs"
	"github.com/mrlokans/wordsync/internal/syncqueue"
	"github.com/mrlokans/wordsync/internal/wordcache"
)

// Mode selects how mutations reach the remote store.
type Mode string

const (
	ModeOptimistic Mode = "optimistic"
	ModeDirect     Mode = "direct"
)

// ParseMode maps a config value to a Mode, defaulting to optimistic.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, string(ModeDirect)) {
		return ModeDirect
	}
	return ModeOptimistic
}

// Config wires an Engine. Remote, Queue and State are required.
type Config struct {
	Remote remote.Store
	Queue  *syncqueue.Queue
	State  *localcache.Cache
	Words  *wordcache.Cache
	Mode   Mode
	Logger zerolog.Logger
	Clock  func() time.Time
}

// DrainResult summarises one pass over the queue.
type DrainResult struct {
	Skipped   bool `json:"skipped"`
	Attempted int  `json:"attempted"`
	Succeeded int  `json:"succeeded"`
	Failed    int  `json:"failed"`
}

// SyncResult summarises a full sync cycle.
type SyncResult struct {
	Skipped           bool        `json:"skipped"`
	Drain             DrainResult `json:"drain"`
	CollectionsPulled bool        `json:"collectionsPulled"`
	ProgressPulled    bool        `json:"progressPulled"`
}

// Engine is the per-process session state. It is safe for concurrent use.
type Engine struct {
	remote remote.Store
	queue  *syncqueue.Queue
	state  *localcache.Cache
	words  *wordcache.Cache
	mode   Mode
	log    zerolog.Logger
	now    func() time.Time

	triggerMu sync.RWMutex
	trigger   Trigger

	mu          sync.RWMutex
	userID      string
	collections []entities.CollectionItem
	progress    []entities.ProgressRecord
	stats       entities.Stats

	// busy is held by whichever drain or sync is running.
	busy       atomic.Bool
	drainAgain atomic.Bool

	sessionMu     sync.Mutex
	sessionCtx    context.Context
	sessionCancel context.CancelFunc
	background    sync.WaitGroup
}

// New creates a signed-out engine. Until SetTrigger is called, optimistic
// mutations are drained only by explicit Sync or Drain calls.
func New(cfg Config) *Engine {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeOptimistic
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		remote:        cfg.Remote,
		queue:         cfg.Queue,
		state:         cfg.State,
		words:         cfg.Words,
		mode:          cfg.Mode,
		log:           cfg.Logger,
		now:           cfg.Clock,
		trigger:       NopTrigger{},
		collections:   []entities.CollectionItem{},
		progress:      []entities.ProgressRecord{},
		sessionCtx:    ctx,
		sessionCancel: cancel,
	}
}

// SetTrigger installs the scheduler for background drains.
func (e *Engine) SetTrigger(t Trigger) {
	if t == nil {
		t = NopTrigger{}
	}
	e.triggerMu.Lock()
	e.trigger = t
	e.triggerMu.Unlock()
}

func (e *Engine) currentTrigger() Trigger {
	e.triggerMu.RLock()
	defer e.triggerMu.RUnlock()
	return e.trigger
}

// Mode reports the configured mutation strategy.
func (e *Engine) Mode() Mode {
	return e.mode
}

// --- Session lifecycle ---

// SignIn makes userID the active user, loads its local snapshot and starts a
// full sync in the background.
func (e *Engine) SignIn(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("empty user id: %w", apperrors.ErrInvalidInput)
	}

	e.mu.Lock()
	changed := e.userID != userID
	if changed {
		e.userID = userID
		e.collections = []entities.CollectionItem{}
		e.progress = []entities.ProgressRecord{}
		e.stats = entities.Stats{}
	}
	e.mu.Unlock()

	if changed {
		e.loadSnapshot(ctx, userID)
		e.log.Info().Str("user_id", userID).Msg("signed in")
	}

	e.syncInBackground(userID)
	return nil
}

// SignOut clears the active user's snapshot and memory state and cancels
// pending drains. Queued mutations stay durable for the next sign-in.
func (e *Engine) SignOut(ctx context.Context) {
	e.currentTrigger().Cancel()
	e.resetSession()

	e.mu.Lock()
	userID := e.userID
	e.userID = ""
	e.collections = []entities.CollectionItem{}
	e.progress = []entities.ProgressRecord{}
	e.stats = entities.Stats{}
	e.mu.Unlock()

	if userID != "" {
		e.state.ClearAll(ctx, userID)
		e.log.Info().Str("user_id", userID).Msg("signed out")
	}
}

// Close cancels background work and waits for it to finish, including a
// drain the trigger already started.
func (e *Engine) Close() {
	trigger := e.currentTrigger()
	trigger.Cancel()
	if waiter, ok := trigger.(interface{ Wait() }); ok {
		waiter.Wait()
	}

	e.sessionMu.Lock()
	e.sessionCancel()
	e.sessionMu.Unlock()

	e.background.Wait()
}

// WaitBackground blocks until the syncs started by SignIn have returned.
func (e *Engine) WaitBackground() {
	e.background.Wait()
}

func (e *Engine) resetSession() {
	e.sessionMu.Lock()
	defer e.sessionMu.Unlock()

	e.sessionCancel()
	e.sessionCtx, e.sessionCancel = context.WithCancel(context.Background())
}

func (e *Engine) syncInBackground(userID string) {
	e.sessionMu.Lock()
	ctx := e.sessionCtx
	e.background.Add(1)
	e.sessionMu.Unlock()

	go func() {
		defer e.background.Done()
		if _, err := e.syncUser(ctx, userID); err != nil && ctx.Err() == nil {
			e.log.Warn().Err(err).Str("user_id", userID).Msg("background sync failed")
		}
	}()
}

func (e *Engine) loadSnapshot(ctx context.Context, userID string) {
	var collections []entities.CollectionItem
	var progress []entities.ProgressRecord
	hasCollections := e.state.Get(ctx, userID, localcache.KindCollections, &collections)
	hasProgress := e.state.Get(ctx, userID, localcache.KindProgress, &progress)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID != userID {
		return
	}
	if hasCollections && collections != nil {
		e.collections = collections
	}
	if hasProgress && progress != nil {
		e.progress = progress
	}
	e.stats = ComputeStats(e.progress, e.now())
}

// persist writes both lists to the local snapshot.
func (e *Engine) persist(ctx context.Context, userID string, collections []entities.CollectionItem, progress []entities.ProgressRecord) {
	e.state.Set(ctx, userID, localcache.KindCollections, collections)
	e.state.Set(ctx, userID, localcache.KindProgress, progress)
}

func (e *Engine) activeUser() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.userID == "" {
		return "", apperrors.ErrSignInRequired
	}
	return e.userID, nil
}

// UserID returns the signed-in user, or "" when signed out.
func (e *Engine) UserID() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.userID
}

// --- Mutations ---

// AddToCollection saves word for the active user. Adding a word that is
// already collected succeeds without any remote call.
func (e *Engine) AddToCollection(ctx context.Context, word string) error {
	word = dictionary.Normalize(word)
	if word == "" {
		return fmt.Errorf("empty word: %w", apperrors.ErrInvalidInput)
	}
	userID, err := e.activeUser()
	if err != nil {
		return err
	}
	if e.IsCollected(word) {
		return nil
	}

	item := entities.CollectionItem{Word: word, UserID: userID, CreatedAt: e.now()}

	if e.mode == ModeDirect {
		created, err := e.remote.InsertCollection(ctx, userID, word)
		if err != nil {
			return remoteError("add to collection", err)
		}
		item = *created
	}

	collections, progress, ok := e.update(userID, func() {
		if !containsWord(e.collections, word) {
			e.collections = append([]entities.CollectionItem{item}, e.collections...)
		}
	})
	if !ok {
		return apperrors.ErrSignInRequired
	}
	e.persist(ctx, userID, collections, progress)

	if e.mode == ModeOptimistic {
		e.enqueue(ctx, userID, syncqueue.AddCollection{Word: word})
	}
	return nil
}

// RemoveFromCollection drops word for the active user.
func (e *Engine) RemoveFromCollection(ctx context.Context, word string) error {
	word = dictionary.Normalize(word)
	if word == "" {
		return fmt.Errorf("empty word: %w", apperrors.ErrInvalidInput)
	}
	userID, err := e.activeUser()
	if err != nil {
		return err
	}

	if e.mode == ModeDirect {
		if err := e.remote.DeleteCollection(ctx, userID, word); err != nil {
			return remoteError("remove from collection", err)
		}
	}

	collections, progress, ok := e.update(userID, func() {
		kept := make([]entities.CollectionItem, 0, len(e.collections))
		for _, c := range e.collections {
			if c.Word != word {
				kept = append(kept, c)
			}
		}
		e.collections = kept
	})
	if !ok {
		return apperrors.ErrSignInRequired
	}
	e.persist(ctx, userID, collections, progress)

	if e.mode == ModeOptimistic {
		e.enqueue(ctx, userID, syncqueue.RemoveCollection{Word: word})
	}
	return nil
}

// ReviewWord records a review of word with quality 0..5 and returns the new
// progress record.
func (e *Engine) ReviewWord(ctx context.Context, word string, quality int) (entities.ProgressRecord, error) {
	word = dictionary.Normalize(word)
	if word == "" {
		return entities.ProgressRecord{}, fmt.Errorf("empty word: %w", apperrors.ErrInvalidInput)
	}
	userID, err := e.activeUser()
	if err != nil {
		return entities.ProgressRecord{}, err
	}

	now := e.now()
	current := entities.ProgressRecord{Word: word, UserID: userID}
	if existing, ok := e.progressFor(word); ok {
		current = existing
	}

	next, err := srs.NextState(srs.StateOf(current), quality, now)
	if err != nil {
		return entities.ProgressRecord{}, err
	}
	record := next.Apply(current, now)
	record.UserID = userID

	if e.mode == ModeDirect {
		saved, err := e.remote.UpsertProgress(ctx, userID, word, record.Update())
		if err != nil {
			return entities.ProgressRecord{}, remoteError("review word", err)
		}
		record = *saved
	}

	collections, progress, ok := e.update(userID, func() {
		for i := range e.progress {
			if e.progress[i].Word == word {
				e.progress[i] = record
				return
			}
		}
		e.progress = append(e.progress, record)
	})
	if !ok {
		return entities.ProgressRecord{}, apperrors.ErrSignInRequired
	}
	e.persist(ctx, userID, collections, progress)

	if e.mode == ModeOptimistic {
		e.enqueue(ctx, userID, syncqueue.UpdateProgress{Word: word, Progress: record.Update()})
	}
	return record, nil
}

// update applies fn to memory state if userID is still active, recomputes
// stats, and returns copies of both lists.
func (e *Engine) update(userID string, fn func()) ([]entities.CollectionItem, []entities.ProgressRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.userID != userID {
		return nil, nil, false
	}
	fn()
	e.stats = ComputeStats(e.progress, e.now())
	return cloneCollections(e.collections), cloneProgress(e.progress), true
}

// enqueue appends m and schedules a drain. A queue write failure is logged:
// the local change already happened and the next successful sync reconciles.
func (e *Engine) enqueue(ctx context.Context, userID string, m syncqueue.Mutation) {
	if _, err := e.queue.Enqueue(ctx, userID, m); err != nil {
		e.log.Error().Err(err).
			Str("user_id", userID).
			Str("action", string(m.Action())).
			Str("word", m.Target()).
			Msg("failed to queue mutation")
		return
	}
	e.currentTrigger().Schedule(userID)
}

// --- Drain and sync ---

// Drain replays the queued mutations of userID if userID is the active user.
// It is skipped when another drain or sync is running; a skipped drain marks
// the queue dirty and whichever run holds the engine drains once more.
func (e *Engine) Drain(ctx context.Context, userID string) (DrainResult, error) {
	if userID == "" || userID != e.UserID() {
		return DrainResult{Skipped: true}, nil
	}

	var total DrainResult
	for first := true; ; first = false {
		if !e.busy.CompareAndSwap(false, true) {
			e.drainAgain.Store(true)
			total.Skipped = first
			return total, nil
		}
		e.drainAgain.Store(false)
		result, err := e.drain(ctx, userID)
		e.busy.Store(false)

		total.Attempted += result.Attempted
		total.Succeeded += result.Succeeded
		total.Failed += result.Failed
		if err != nil || ctx.Err() != nil || !e.drainAgain.Load() {
			return total, err
		}
	}
}

// Sync runs a full cycle for the active user.
func (e *Engine) Sync(ctx context.Context) (SyncResult, error) {
	userID, err := e.activeUser()
	if err != nil {
		return SyncResult{}, err
	}
	return e.syncUser(ctx, userID)
}

func (e *Engine) syncUser(ctx context.Context, userID string) (SyncResult, error) {
	if !e.busy.CompareAndSwap(false, true) {
		metrics.SyncsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return SyncResult{Skipped: true}, nil
	}
	defer func() {
		e.busy.Store(false)
		if e.drainAgain.Load() {
			e.currentTrigger().Schedule(userID)
		}
	}()

	e.drainAgain.Store(false)
	drained, err := e.drain(ctx, userID)
	if err != nil {
		// A queue that cannot be read must not block pulling fresh state.
		e.log.Warn().Err(err).Str("user_id", userID).Msg("queue drain failed")
	}

	result := SyncResult{Drain: drained}
	collections, progress := e.pull(ctx, userID, &result)

	saved, savedProgress, ok := e.update(userID, func() {
		if collections != nil {
			e.collections = collections
		}
		if progress != nil {
			e.progress = progress
		}
	})
	if !ok {
		return result, nil
	}
	e.persist(ctx, userID, saved, savedProgress)

	outcome := metrics.OutcomeOK
	if !result.CollectionsPulled || !result.ProgressPulled || drained.Failed > 0 {
		outcome = metrics.OutcomePartial
	}
	metrics.SyncsTotal.WithLabelValues(outcome).Inc()

	e.log.Info().
		Str("user_id", userID).
		Int("drained", drained.Succeeded).
		Int("failed", drained.Failed).
		Bool("collections", result.CollectionsPulled).
		Bool("progress", result.ProgressPulled).
		Msg("sync finished")
	return result, nil
}

// drain must run with busy held. Entries are replayed in queue order; the
// successful ones are removed afterwards from the highest index down so the
// lower indices stay valid.
func (e *Engine) drain(ctx context.Context, userID string) (DrainResult, error) {
	items, err := e.queue.PeekAll(ctx)
	if err != nil {
		return DrainResult{}, err
	}

	var result DrainResult
	var done []int
	for i, item := range items {
		if item.UserID != userID {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		result.Attempted++
		action := string(item.Mutation.Action())
		if err := e.replay(ctx, item); err != nil {
			result.Failed++
			metrics.QueueEntriesDrainedTotal.WithLabelValues(action, metrics.OutcomeError).Inc()
			e.log.Warn().Err(err).
				Str("id", item.ID).
				Str("action", action).
				Str("word", item.Mutation.Target()).
				Msg("queued mutation failed, keeping it for the next sync")
			continue
		}
		metrics.QueueEntriesDrainedTotal.WithLabelValues(action, metrics.OutcomeOK).Inc()
		done = append(done, i)
	}

	for j := len(done) - 1; j >= 0; j-- {
		index := done[j]
		removed, err := e.queue.RemoveIfMatch(ctx, index, items[index].ID)
		if err != nil {
			return result, fmt.Errorf("remove drained entry %s: %w", items[index].ID, err)
		}
		if removed {
			result.Succeeded++
		}
	}
	return result, nil
}

func (e *Engine) replay(ctx context.Context, item syncqueue.Item) error {
	switch m := item.Mutation.(type) {
	case syncqueue.AddCollection:
		_, err := e.remote.InsertCollection(ctx, item.UserID, m.Word)
		return err
	case syncqueue.RemoveCollection:
		return e.remote.DeleteCollection(ctx, item.UserID, m.Word)
	case syncqueue.UpdateProgress:
		_, err := e.remote.UpsertProgress(ctx, item.UserID, m.Word, m.Progress)
		return err
	default:
		return fmt.Errorf("unsupported mutation %T", m)
	}
}

// pull fetches both lists concurrently. A list whose fetch fails comes back nil
// so the caller keeps the previous one. Mutations still queued for the user are
// laid over the fetched lists so optimistic changes survive the refresh.
func (e *Engine) pull(ctx context.Context, userID string, result *SyncResult) ([]entities.CollectionItem, []entities.ProgressRecord) {
	var (
		wg          sync.WaitGroup
		collections []entities.CollectionItem
		progress    []entities.ProgressRecord
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		items, err := e.remote.ListCollections(ctx, userID)
		if err != nil {
			e.log.Warn().Err(err).Str("user_id", userID).Msg("collections pull failed")
			return
		}
		if items == nil {
			items = []entities.CollectionItem{}
		}
		collections = items
	}()
	go func() {
		defer wg.Done()
		records, err := e.remote.ListProgress(ctx, userID)
		if err != nil {
			e.log.Warn().Err(err).Str("user_id", userID).Msg("progress pull failed")
			return
		}
		if records == nil {
			records = []entities.ProgressRecord{}
		}
		progress = records
	}()
	wg.Wait()

	result.CollectionsPulled = collections != nil
	result.ProgressPulled = progress != nil

	pending, err := e.queue.PeekAll(ctx)
	if err != nil {
		return collections, progress
	}
	for _, item := range pending {
		if item.UserID != userID {
			continue
		}
		collections, progress = overlay(collections, progress, item, userID)
	}
	return collections, progress
}

// overlay applies one pending mutation onto freshly pulled lists.
func overlay(collections []entities.CollectionItem, progress []entities.ProgressRecord, item syncqueue.Item, userID string) ([]entities.CollectionItem, []entities.ProgressRecord) {
	switch m := item.Mutation.(type) {
	case syncqueue.AddCollection:
		if collections != nil && !containsWord(collections, m.Word) {
			created := time.UnixMilli(item.Timestamp)
			collections = append([]entities.CollectionItem{{Word: m.Word, UserID: userID, CreatedAt: created}}, collections...)
		}
	case syncqueue.RemoveCollection:
		if collections != nil {
			kept := collections[:0:0]
			for _, c := range collections {
				if c.Word != m.Word {
					kept = append(kept, c)
				}
			}
			collections = kept
		}
	case syncqueue.UpdateProgress:
		if progress != nil {
			record := m.Progress.Record(userID, m.Word)
			replaced := false
			for i := range progress {
				if progress[i].Word == m.Word {
					progress[i] = record
					replaced = true
				}
			}
			if !replaced {
				progress = append(progress, record)
			}
		}
	}
	return collections, progress
}

// --- Reads ---

// IsCollected reports whether word is in the active user's collection.
func (e *Engine) IsCollected(word string) bool {
	word = dictionary.Normalize(word)
	e.mu.RLock()
	defer e.mu.RUnlock()
	return containsWord(e.collections, word)
}

// IsInProgress reports whether word has been reviewed at least once.
func (e *Engine) IsInProgress(word string) bool {
	_, ok := e.progressFor(dictionary.Normalize(word))
	return ok
}

func (e *Engine) progressFor(word string) (entities.ProgressRecord, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, p := range e.progress {
		if p.Word == word {
			return p, true
		}
	}
	return entities.ProgressRecord{}, false
}

// Collections returns a copy of the collection, newest first.
func (e *Engine) Collections() []entities.CollectionItem {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneCollections(e.collections)
}

// Progress returns a copy of every progress record.
func (e *Engine) Progress() []entities.ProgressRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneProgress(e.progress)
}

// DueWords returns the records due now, most overdue first.
func (e *Engine) DueWords() []entities.ProgressRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return dueWords(e.progress, e.now())
}

// Stats returns the counters as of the last mutation or pull.
func (e *Engine) Stats() entities.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// RefreshStats recomputes the counters against the current clock, so due
// counts advance without a mutation.
func (e *Engine) RefreshStats() entities.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats = ComputeStats(e.progress, e.now())
	return e.stats
}

// PendingMutations returns how many queued mutations belong to the active user.
func (e *Engine) PendingMutations(ctx context.Context) (int, error) {
	userID, err := e.activeUser()
	if err != nil {
		return 0, err
	}
	items, err := e.queue.PeekAll(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, item := range items {
		if item.UserID == userID {
			n++
		}
	}
	return n, nil
}

// --- Dictionary ---

var errNoDictionary = errors.New("dictionary not configured")

// Search looks query up in the dictionary index.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]entities.WordSummary, error) {
	if e.words == nil {
		return nil, errNoDictionary
	}
	return e.words.Search(ctx, query, limit)
}

// RandomWords draws count distinct words from the index.
func (e *Engine) RandomWords(ctx context.Context, count int) ([]entities.WordSummary, error) {
	if e.words == nil {
		return nil, errNoDictionary
	}
	return e.words.RandomSample(ctx, count)
}

// WordDetail resolves word through the tiered cache.
func (e *Engine) WordDetail(ctx context.Context, word string) (*entities.WordRecord, error) {
	if e.words == nil {
		return nil, errNoDictionary
	}
	return e.words.Resolve(ctx, word)
}

// --- helpers ---

func remoteError(op string, err error) error {
	if errors.Is(err, apperrors.ErrRemoteFailure) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrRemoteFailure, err)
}

func containsWord(items []entities.CollectionItem, word string) bool {
	for _, c := range items {
		if c.Word == word {
			return true
		}
	}
	return false
}

func cloneCollections(items []entities.CollectionItem) []entities.CollectionItem {
	out := make([]entities.CollectionItem, len(items))
	copy(out, items)
	return out
}

func cloneProgress(records []entities.ProgressRecord) []entities.ProgressRecord {
	out := make([]entities.ProgressRecord, len(records))
	copy(out, records)
	return out
}
