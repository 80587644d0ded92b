package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/wordsync/internal/database/kv"
	"github.com/mrlokans/wordsync/internal/dictionary"
	"github.com/mrlokans/wordsync/internal/http"
	"github.com/mrlokans/wordsync/internal/reconciler"
	"github.com/mrlokans/wordsync/internal/remote"
	"github.com/mrlokans/wordsync/internal/remote/restclient"
	"github.com/mrlokans/wordsync/internal/remote/sqlstore"
	"github.com/mrlokans/wordsync/internal/scheduler"
	"github.com/mrlokans/wordsync/internal/syncqueue"
	"github.com/mrlokans/wordsync/internal/tasks"
	"github.com/mrlokans/wordsync/internal/wordcache"
)

// =============================================================================
// Local Storage
// =============================================================================

// kv.Store implementations
var _ kv.Store = (*kv.Repository)(nil)
var _ kv.Store = (*kv.MemoryStore)(nil)

// =============================================================================
// Remote Store and Content Origin
// =============================================================================

// remote.Store implementations
var _ remote.Store = (*sqlstore.Store)(nil)
var _ remote.Store = (*restclient.Client)(nil)

// Origin implementations
var _ dictionary.Origin = (*dictionary.HTTPOrigin)(nil)

// =============================================================================
// Sync Engine
// =============================================================================

// Queue payloads
var _ syncqueue.Mutation = syncqueue.AddCollection{}
var _ syncqueue.Mutation = syncqueue.RemoveCollection{}
var _ syncqueue.Mutation = syncqueue.UpdateProgress{}

// Drain triggers
var _ reconciler.Trigger = reconciler.NopTrigger{}
var _ reconciler.Trigger = (*reconciler.DelayedTrigger)(nil)
var _ reconciler.Trigger = (*tasks.DrainDispatcher)(nil)

// The engine behind the triggers, the cron job and the HTTP API
var _ reconciler.Drainer = (*reconciler.Engine)(nil)
var _ scheduler.Syncer = (*reconciler.Engine)(nil)
var _ http.LearningEngine = (*reconciler.Engine)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ tasks.WordPreloader = (*wordcache.Cache)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
