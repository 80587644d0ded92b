package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the agent's local durable store
	DefaultDatabasePath = "./wordsync.db"

	// DefaultRemoteDatabaseDSN is the default DSN for the authoritative store served by `serve`
	DefaultRemoteDatabaseDSN = "./wordsync-remote.db"
)

// Sync modes
const (
	SyncModeOptimistic = "optimistic" // Mutate locally, queue, drain later (default)
	SyncModeDirect     = "direct"     // Call the remote first, mutate locally on success
)

// Remote transports used by the agent
const (
	RemoteTransportREST = "rest" // Talk to `wordsync serve` over HTTP (default)
	RemoteTransportSQL  = "sql"  // Open the authoritative database directly
)
