package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/config"
	"github.com/mrlokans/wordsync/internal/database"
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/dictionary"
	"github.com/mrlokans/wordsync/internal/entities"
	http_controllers "github.com/mrlokans/wordsync/internal/http"
	"github.com/mrlokans/wordsync/internal/localcache"
	"github.com/mrlokans/wordsync/internal/reconciler"
	"github.com/mrlokans/wordsync/internal/remote"
	"github.com/mrlokans/wordsync/internal/remote/restclient"
	"github.com/mrlokans/wordsync/internal/remote/sqlstore"
	"github.com/mrlokans/wordsync/internal/scheduler"
	"github.com/mrlokans/wordsync/internal/syncqueue"
	"github.com/mrlokans/wordsync/internal/tasks"
	"github.com/mrlokans/wordsync/internal/wordcache"
)

// Agent is the assembled offline-first engine and the stores behind it.
type Agent struct {
	Database *database.Database // nil when DATABASE_PATH is empty
	Remote   remote.Store
	Words    *wordcache.Cache
	Engine   *reconciler.Engine
	Tasks    *tasks.Client // nil unless StartWorkers ran with tasks enabled

	log          zerolog.Logger
	resync       *scheduler.ResyncScheduler
	preloads     sync.WaitGroup
	healthChecks map[string]http_controllers.HealthCheck
	closers      []func() error
}

// OpenAgent wires the local stores, the remote transport and the engine.
// No drain trigger is installed: long-running callers add one, one-shot
// commands sync explicitly.
func OpenAgent(cfg *config.Config, log zerolog.Logger) (*Agent, error) {
	a := &Agent{
		log:          log,
		healthChecks: make(map[string]http_controllers.HealthCheck),
	}

	wordStore, stateStore, queueStore, err := a.openLocalStores(cfg, log)
	if err != nil {
		return nil, err
	}

	a.Remote, err = a.openRemote(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}

	originURL := cfg.Origin.URL
	if originURL == "" {
		originURL = cfg.Remote.URL
	}
	origin := dictionary.NewHTTPOrigin(dictionary.HTTPOriginConfig{
		BaseURL:          originURL,
		Timeout:          cfg.Origin.Timeout,
		IndexMaxAttempts: cfg.Origin.IndexMaxAttempts,
		Logger:           log.With().Str("component", "origin").Logger(),
	})

	a.Words = wordcache.New(wordStore, origin, wordcache.Config{
		MemoryCapacity:     cfg.Cache.MemoryCapacity,
		SearchDefaultLimit: cfg.Origin.SearchDefaultLimit,
		PreloadPause:       cfg.Origin.PreloadPause,
		Logger:             log.With().Str("component", "wordcache").Logger(),
	})

	a.Engine = reconciler.New(reconciler.Config{
		Remote: a.Remote,
		Queue:  syncqueue.New(queueStore, syncqueue.WithLogger(log.With().Str("component", "syncqueue").Logger())),
		State: localcache.New(stateStore,
			localcache.WithMaxAge(cfg.Cache.StateMaxAge),
			localcache.WithLogger(log.With().Str("component", "localcache").Logger())),
		Words:  a.Words,
		Mode:   reconciler.ParseMode(cfg.Sync.Mode),
		Logger: log.With().Str("component", "reconciler").Logger(),
	})
	a.closers = append(a.closers, func() error {
		a.Engine.Close()
		return nil
	})

	return a, nil
}

func (a *Agent) openLocalStores(cfg *config.Config, log zerolog.Logger) (words, state, queue kv.Store, err error) {
	if cfg.Database.Path == "" {
		log.Warn().Msg("DATABASE_PATH is empty, local state will not survive a restart")
		return kv.NewMemoryStore(), kv.NewMemoryStore(), kv.NewMemoryStore(), nil
	}

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open local database: %w", err)
	}
	a.Database = db
	a.closers = append(a.closers, db.Close)

	return kv.NewRepository(db.DB, entities.NamespaceWords),
		kv.NewRepository(db.DB, entities.NamespaceState),
		kv.NewRepository(db.DB, entities.NamespaceQueue),
		nil
}

func (a *Agent) openRemote(cfg *config.Config) (remote.Store, error) {
	switch cfg.Remote.Transport {
	case config.RemoteTransportSQL:
		store, err := sqlstore.Open(cfg.Remote.DatabaseDriver, cfg.Remote.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open remote database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.healthChecks["remote_database"] = store.Ping
		return store, nil
	case config.RemoteTransportREST, "":
		return restclient.New(cfg.Remote.URL), nil
	default:
		return nil, fmt.Errorf("unknown remote transport %q", cfg.Remote.Transport)
	}
}

// StartWorkers installs the drain trigger and the periodic resync. Drains
// go through the durable task queue when it is enabled and a local database
// exists; otherwise an in-process timer coalesces them.
func (a *Agent) StartWorkers(ctx context.Context, cfg *config.Config) error {
	if cfg.Tasks.Enabled && a.Database != nil {
		taskCfg := tasks.DefaultConfig()
		taskCfg.Workers = cfg.Tasks.Workers
		taskCfg.MaxRetries = cfg.Tasks.MaxRetries
		taskCfg.TaskTimeout = cfg.Tasks.TaskTimeout
		taskCfg.ReleaseAfter = cfg.Tasks.ReleaseAfter
		taskCfg.CleanupInterval = cfg.Tasks.CleanupInterval
		taskCfg.RetentionDuration = cfg.Tasks.RetentionDuration

		client, err := tasks.NewClient(cfg.Database.Path, taskCfg, a.log)
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		dispatcher := tasks.NewDrainDispatcher(client, a.Engine, cfg.Sync.DrainDelay, a.log)
		client.Register(
			dispatcher.Queue(),
			tasks.NewPreloadWordsQueue(a.Words, a.log),
		)
		client.Start(ctx)
		a.Engine.SetTrigger(dispatcher)
		a.Tasks = client
		a.closers = append(a.closers, client.Close)
	} else {
		a.Engine.SetTrigger(reconciler.NewDelayedTrigger(a.Engine, cfg.Sync.DrainDelay, a.log))
	}

	if cfg.Sync.ResyncEnabled {
		a.resync = scheduler.NewResyncScheduler(a.Engine, cfg.Sync.ResyncSchedule, cfg.Tasks.TaskTimeout, a.log)
		if err := a.resync.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Preload warms the word cache, through the task queue when one is running.
// Without it the warm-up runs in the background until ctx is cancelled.
func (a *Agent) Preload(ctx context.Context, task tasks.PreloadWordsTask) {
	if a.Tasks == nil {
		process := tasks.PreloadWordsProcessor(a.Words, a.log)
		a.preloads.Add(1)
		go func() {
			defer a.preloads.Done()
			if err := process(ctx, task); err != nil {
				a.log.Warn().Err(err).Msg("word cache preload failed")
			}
		}()
		return
	}
	if _, err := a.Tasks.Add(task).Ctx(ctx).Save(); err != nil {
		a.log.Warn().Err(err).Msg("failed to enqueue preload task")
	}
}

// StopWorkers halts the resync job and lets running tasks finish.
func (a *Agent) StopWorkers(ctx context.Context) {
	if a.resync != nil {
		a.resync.Stop()
	}
	if a.Tasks != nil {
		a.Tasks.Stop(ctx)
	}
}

// RouterConfig exposes the agent over HTTP.
func (a *Agent) RouterConfig(version string) http_controllers.RouterConfig {
	routerCfg := http_controllers.RouterConfig{
		Database:     a.Database,
		Logger:       a.log,
		Version:      version,
		HealthChecks: a.healthChecks,
		Engine:       a.Engine,
	}
	if a.Tasks != nil {
		routerCfg.TaskClient = a.Tasks
	}
	return routerCfg
}

// SignInAndWait signs userID in and waits for the initial sync.
func (a *Agent) SignInAndWait(ctx context.Context, userID string) error {
	if err := a.Engine.SignIn(ctx, userID); err != nil {
		return err
	}
	a.Engine.WaitBackground()
	return nil
}

// Close releases everything OpenAgent opened, engine first. Cancel the
// context given to Preload before calling it.
func (a *Agent) Close() error {
	a.preloads.Wait()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
