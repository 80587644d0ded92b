package tasks

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/wordsync/internal/reconciler"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(t.TempDir(), "test.db"), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func startClient(t *testing.T, client *Client) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	client.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		client.Stop(stopCtx)
		cancel()
	})
}

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "wordsync-tasks.db"), TasksDBPath(filepath.Join("data", "wordsync.db")))
}

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	client, err := NewClient(dbPath, DefaultConfig(), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = os.Stat(filepath.Join(tmpDir, "test-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")

	assert.NoError(t, client.Close())
}

func TestClientStartStop(t *testing.T) {
	client := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx), "stop should succeed gracefully")
}

type recordingDrainer struct {
	mu     sync.Mutex
	users  []string
	result reconciler.DrainResult
	done   chan struct{}
}

func (d *recordingDrainer) Drain(_ context.Context, userID string) (reconciler.DrainResult, error) {
	d.mu.Lock()
	d.users = append(d.users, userID)
	d.mu.Unlock()
	d.done <- struct{}{}
	return d.result, nil
}

func (d *recordingDrainer) calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.users...)
}

func TestDrainDispatcher_RunsScheduledDrain(t *testing.T) {
	client := newTestClient(t)
	drainer := &recordingDrainer{done: make(chan struct{}, 4)}
	dispatcher := NewDrainDispatcher(client, drainer, 10*time.Millisecond, zerolog.Nop())
	client.Register(dispatcher.Queue())
	startClient(t, client)

	dispatcher.Schedule("u1")
	dispatcher.Schedule("u1")

	select {
	case <-drainer.done:
	case <-time.After(5 * time.Second):
		t.Fatal("drain task was not executed within timeout")
	}
	assert.Equal(t, []string{"u1"}, drainer.calls())
}

func TestDrainDispatcher_CancelDropsStaleTasks(t *testing.T) {
	client := newTestClient(t)
	drainer := &recordingDrainer{done: make(chan struct{}, 4)}
	dispatcher := NewDrainDispatcher(client, drainer, 10*time.Millisecond, zerolog.Nop())

	err := dispatcher.process(context.Background(), DrainQueueTask{UserID: "u1", Generation: 1})
	require.NoError(t, err)
	require.Len(t, drainer.calls(), 1)
	<-drainer.done

	dispatcher.Cancel()
	err = dispatcher.process(context.Background(), DrainQueueTask{UserID: "u1", Generation: 1})
	require.NoError(t, err)
	assert.Len(t, drainer.calls(), 1, "task from a cancelled session must not drain")
}

func TestDrainDispatcher_FailedMutationsRetry(t *testing.T) {
	client := newTestClient(t)
	drainer := &recordingDrainer{
		done:   make(chan struct{}, 1),
		result: reconciler.DrainResult{Attempted: 2, Succeeded: 1, Failed: 1},
	}
	dispatcher := NewDrainDispatcher(client, drainer, 0, zerolog.Nop())

	err := dispatcher.process(context.Background(), DrainQueueTask{UserID: "u1"})
	assert.ErrorContains(t, err, "1 of 2 mutations failed")
}

type countingPreloader struct {
	words  chan []string
	groups chan []string
}

func (p *countingPreloader) Preload(_ context.Context, words []string) int {
	p.words <- words
	return len(words)
}

func (p *countingPreloader) PreloadGroups(_ context.Context, letters []string, perGroup int) (int, error) {
	p.groups <- letters
	return len(letters) * perGroup, nil
}

func TestPreloadWordsTask(t *testing.T) {
	client := newTestClient(t)
	preloader := &countingPreloader{words: make(chan []string, 1), groups: make(chan []string, 1)}
	client.Register(NewPreloadWordsQueue(preloader, zerolog.Nop()))
	startClient(t, client)

	ids, err := client.Add(PreloadWordsTask{Words: []string{"hello", "world"}}).Save()
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	select {
	case words := <-preloader.words:
		assert.Equal(t, []string{"hello", "world"}, words)
	case <-time.After(5 * time.Second):
		t.Fatal("preload task was not executed within timeout")
	}
}

func TestPreloadWordsTask_Groups(t *testing.T) {
	client := newTestClient(t)
	preloader := &countingPreloader{words: make(chan []string, 1), groups: make(chan []string, 1)}
	client.Register(NewPreloadWordsQueue(preloader, zerolog.Nop()))
	startClient(t, client)

	_, err := client.Add(PreloadWordsTask{Letters: []string{"a", "b"}, PerGroup: 10}).Save()
	require.NoError(t, err)

	select {
	case letters := <-preloader.groups:
		assert.Equal(t, []string{"a", "b"}, letters)
	case <-time.After(5 * time.Second):
		t.Fatal("group preload was not executed within timeout")
	}
	assert.Empty(t, <-preloader.words)
}

func TestDrainQueueTaskConfig(t *testing.T) {
	cfg := DrainQueueTask{}.Config()

	assert.Equal(t, "drain_sync_queue", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	assert.Equal(t, 2*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}

var _ backlite.Task = DrainQueueTask{}
