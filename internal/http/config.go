package http

import (
	"github.com/rs/zerolog"

	"github.com/mrlokans/wordsync/internal/database"
	"github.com/mrlokans/wordsync/internal/remote"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. The server process sets RemoteStore and
// DictionaryDir; the agent sets Engine and TaskClient.
type RouterConfig struct {
	// Core dependencies
	Database *database.Database
	Logger   zerolog.Logger

	// Application info
	Version string

	// Extra health probes keyed by name, e.g. the remote database
	HealthChecks map[string]HealthCheck

	// Authoritative store served under /api/users (server only)
	RemoteStore remote.Store

	// Directory served as the content origin under /dictionary (server only)
	DictionaryDir string

	// Agent learning session (agent only)
	Engine LearningEngine

	// Task queue client (optional)
	TaskClient TaskQueue
}
