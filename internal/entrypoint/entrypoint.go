package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/config"
	http_controllers "github.com/mrlokans/wordsync/internal/http"
	"github.com/mrlokans/wordsync/internal/logger"
	"github.com/mrlokans/wordsync/internal/remote/sqlstore"
	"github.com/mrlokans/wordsync/internal/tasks"
	"github.com/mrlokans/wordsync/internal/wordcache"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs router until SIGINT or SIGTERM, then shuts down within the
// configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, log zerolog.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	listenErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-listenErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Info().Dur("timeout", timeout).Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop background work first so no drain starts against a closing store.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("server exiting")
	return nil
}

// RunServer hosts the authoritative store and the dictionary files.
func RunServer(cfg *config.Config, version string) error {
	log := logger.New("wordsync-server", cfg.Global.LogLevel)
	log.Info().Str("version", version).Str("driver", cfg.Remote.DatabaseDriver).Msg("starting wordsync server")

	store, err := sqlstore.Open(cfg.Remote.DatabaseDriver, cfg.Remote.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("failed to open remote database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("error closing remote database")
		}
	}()

	if _, err := os.Stat(cfg.Remote.DictionaryDir); err != nil {
		log.Warn().Str("dir", cfg.Remote.DictionaryDir).Msg("dictionary directory is missing, /dictionary will return 404")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Logger:  log,
		Version: version,
		HealthChecks: map[string]http_controllers.HealthCheck{
			"remote_database": store.Ping,
		},
		RemoteStore:   store,
		DictionaryDir: cfg.Remote.DictionaryDir,
	})

	return Serve(router, cfg, log, nil)
}

// RunAgent runs the offline-first engine with its local HTTP API.
func RunAgent(cfg *config.Config, version string) error {
	log := logger.New("wordsync-agent", cfg.Global.LogLevel)
	log.Info().
		Str("version", version).
		Str("mode", cfg.Sync.Mode).
		Str("transport", cfg.Remote.Transport).
		Msg("starting wordsync agent")

	agent, err := OpenAgent(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := agent.Close(); err != nil {
			log.Error().Err(err).Msg("error closing agent")
		}
	}()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	if err := agent.StartWorkers(workerCtx, cfg); err != nil {
		return err
	}

	if cfg.Session.UserID != "" {
		if err := agent.Engine.SignIn(workerCtx, cfg.Session.UserID); err != nil {
			return fmt.Errorf("failed to sign in %q: %w", cfg.Session.UserID, err)
		}
	} else {
		log.Info().Msg("no USER_ID set, waiting for POST /api/session")
	}
	agent.Preload(workerCtx, tasks.PreloadWordsTask{
		Words:    wordcache.CommonWords,
		Letters:  wordcache.CommonLetters,
		PerGroup: wordcache.CommonGroupSize,
	})

	router := http_controllers.NewRouter(agent.RouterConfig(version))

	onShutdown := func(ctx context.Context) {
		agent.StopWorkers(ctx)
		cancelWorkers()
	}

	agentCfg := *cfg
	agentCfg.HTTP.Port = cfg.HTTP.AgentPort
	return Serve(router, &agentCfg, log, onShutdown)
}
