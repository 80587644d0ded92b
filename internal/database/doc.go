// Package database provides the local durable store used by the agent.
//
// # Architecture
//
// The store is a single sqlite file holding one namespaced key-value table:
//
//	database/
//	├── database.go      # Connection setup and migrations
//	└── kv/              # Namespaced key-value repository
//
// Three namespaces share the table:
//
//   - words: tier-2 dictionary cache, never expired
//   - state: per-user collections and progress snapshots with a TTL
//   - queue: the pending mutation log replayed against the remote
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase("./wordsync.db")
//
//	words := kv.NewRepository(db.DB, entities.NamespaceWords)
//	raw, err := words.Get(ctx, "apple")
//
// # Adding a New Namespace
//
//  1. Add a Namespace constant to internal/entities/kv.go
//  2. Construct kv.NewRepository(db.DB, entities.NamespaceX)
//  3. Depend on kv.Store rather than the concrete Repository
package database
