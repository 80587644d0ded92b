// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help code agents understand
// extension points and how to implement new functionality.
//
// # Interface Categories
//
// ## Storage Interfaces
//
//   - kv.Store: Namespaced key-value rows behind the word cache, the state
//     cache and the sync queue (internal/database/kv/repository.go)
//   - remote.Store: The authoritative per-user store (internal/remote/store.go)
//
// ## External Service Interfaces
//
//   - dictionary.Origin: Dictionary index and word documents (internal/dictionary/origin.go)
//
// ## Sync Interfaces
//
//   - syncqueue.Mutation: Closed set of queued changes (internal/syncqueue/mutation.go)
//   - reconciler.Trigger: Requests a drain soon after a mutation (internal/reconciler/trigger.go)
//   - reconciler.Drainer: Replays the queue of one user (internal/reconciler/trigger.go)
//   - scheduler.Syncer: Full drain and pull cycle (internal/scheduler/resync.go)
//
// ## HTTP Interfaces
//
//   - http.LearningEngine: What the agent API needs from the engine (internal/http/learning.go)
//   - http.TaskQueue: Task enqueue and status (internal/http/tasks.go)
//
// # Adding a New Remote Transport
//
// To let the agent talk to a different backend:
//
//  1. Implement remote.Store in a package under internal/remote/
//
//     type GRPCStore struct {
//         client pb.VocabularyClient
//     }
//
//     func (s *GRPCStore) ListCollections(ctx context.Context, userID string) ([]entities.CollectionItem, error) {
//         // Wrap transport failures with apperrors.Remote so the engine keeps
//         // the mutation queued.
//     }
//
//  2. Add a REMOTE_TRANSPORT value in internal/config/constants.go
//
//  3. Select it in Agent.openRemote (internal/entrypoint/agent.go)
//
//  4. Add a compile-time check to internal/interfaces/checks.go
//
// # Adding a New Queued Mutation
//
//  1. Add the variant and its Action in internal/syncqueue/mutation.go and
//     teach the item decoder about it
//  2. Replay it in Engine.replay and overlay it in overlay (internal/reconciler/engine.go)
//
// # Compile-Time Checks
//
// See checks.go for compile-time interface verification. These checks ensure
// concrete types implement their interfaces correctly.
package interfaces
