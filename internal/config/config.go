package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Remote
		Origin
		Sync
		Cache
		Tasks
		Session
	}

	HTTP struct {
		Port      int32 // `serve` listens here
		AgentPort int32 // `agent` listens here so both can run on one host
		Host      string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
		LogLevel                 string
	}
	Database struct {
		Path string
	}
	Remote struct {
		Transport      string // rest (via `serve`) or sql (agent opens the database itself)
		URL            string // Base URL of the remote REST API used by the agent
		DatabaseDriver string // sqlite3 or postgres
		DatabaseDSN    string
		DictionaryDir  string // Static dictionary files served under /dictionary
	}
	Origin struct {
		URL                string
		Timeout            time.Duration
		IndexMaxAttempts   int
		PreloadPause       time.Duration
		SearchDefaultLimit int
	}
	Sync struct {
		Mode           string // optimistic or direct
		DrainDelay     time.Duration
		ResyncEnabled  bool
		ResyncSchedule string // Cron format: "*/15 * * * *" = every 15 minutes
	}
	Cache struct {
		MemoryCapacity int
		StateMaxAge    time.Duration
	}
	Tasks struct {
		Enabled           bool
		Workers           int
		MaxRetries        int
		TaskTimeout       time.Duration
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		RetentionDuration time.Duration
	}
	Session struct {
		UserID string // Signed-in user for the agent; empty means signed out
	}
)

// IsDirect reports whether mutations go to the remote before touching local state.
func (s Sync) IsDirect() bool {
	return strings.EqualFold(s.Mode, SyncModeDirect)
}

// loadDotEnv loads .env (or ENV_FILE) into the process environment without
// overriding variables that are already set.
func loadDotEnv() {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func NewConfig() *Config {
	loadDotEnv()

	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("agent_port", 8189)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_path", DefaultDatabasePath)

	// Remote store defaults
	v.SetDefault("remote_transport", RemoteTransportREST)
	v.SetDefault("remote_url", "http://127.0.0.1:8188")
	v.SetDefault("remote_database_driver", "sqlite3")
	v.SetDefault("remote_database_dsn", DefaultRemoteDatabaseDSN)
	v.SetDefault("dictionary_dir", "./dictionary")

	// Content origin defaults
	v.SetDefault("origin_url", "http://127.0.0.1:8188")
	v.SetDefault("origin_timeout", "10s")
	v.SetDefault("origin_index_max_attempts", 3)
	v.SetDefault("origin_preload_pause", "100ms")
	v.SetDefault("search_default_limit", 20)

	// Sync defaults
	v.SetDefault("sync_mode", SyncModeOptimistic)
	v.SetDefault("sync_drain_delay", "100ms")
	v.SetDefault("sync_resync_enabled", true)
	v.SetDefault("sync_resync_schedule", "*/15 * * * *") // Every 15 minutes

	// Cache defaults
	v.SetDefault("cache_memory_capacity", 200)
	v.SetDefault("cache_state_max_age", "1h")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 1) // Drains must not overlap
	v.SetDefault("task_max_retries", 1)
	v.SetDefault("task_timeout", "2m")
	v.SetDefault("task_release_after", "5m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_retention_duration", "24h")

	return &Config{
		HTTP: HTTP{
			Port:      v.GetInt32("PORT"),
			AgentPort: v.GetInt32("AGENT_PORT"),
			Host:      v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
			LogLevel:                 v.GetString("LOG_LEVEL"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Remote: Remote{
			Transport:      v.GetString("REMOTE_TRANSPORT"),
			URL:            v.GetString("REMOTE_URL"),
			DatabaseDriver: v.GetString("REMOTE_DATABASE_DRIVER"),
			DatabaseDSN:    v.GetString("REMOTE_DATABASE_DSN"),
			DictionaryDir:  v.GetString("DICTIONARY_DIR"),
		},
		Origin: Origin{
			URL:                v.GetString("ORIGIN_URL"),
			Timeout:            v.GetDuration("ORIGIN_TIMEOUT"),
			IndexMaxAttempts:   v.GetInt("ORIGIN_INDEX_MAX_ATTEMPTS"),
			PreloadPause:       v.GetDuration("ORIGIN_PRELOAD_PAUSE"),
			SearchDefaultLimit: v.GetInt("SEARCH_DEFAULT_LIMIT"),
		},
		Sync: Sync{
			Mode:           v.GetString("SYNC_MODE"),
			DrainDelay:     v.GetDuration("SYNC_DRAIN_DELAY"),
			ResyncEnabled:  v.GetBool("SYNC_RESYNC_ENABLED"),
			ResyncSchedule: v.GetString("SYNC_RESYNC_SCHEDULE"),
		},
		Cache: Cache{
			MemoryCapacity: v.GetInt("CACHE_MEMORY_CAPACITY"),
			StateMaxAge:    v.GetDuration("CACHE_STATE_MAX_AGE"),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			MaxRetries:        v.GetInt("TASK_MAX_RETRIES"),
			TaskTimeout:       v.GetDuration("TASK_TIMEOUT"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Session: Session{
			UserID: v.GetString("USER_ID"),
		},
	}
}
