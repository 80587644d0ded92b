// Package remote defines the authoritative per-user store the engine
// reconciles against. Conflict resolution is last writer wins.
package remote

import (
	"context"

	"github.com/mrlokans/wordsync/internal/entities"
)

// Store is the remote contract: fetch-all, insert, delete and upsert-by-key.
type Store interface {
	// ListCollections returns the user's collection, newest first.
	ListCollections(ctx context.Context, userID string) ([]entities.CollectionItem, error)
	// InsertCollection adds word. Inserting an existing word is not an error.
	InsertCollection(ctx context.Context, userID, word string) (*entities.CollectionItem, error)
	// DeleteCollection removes word. Deleting an absent word is not an error.
	DeleteCollection(ctx context.Context, userID, word string) error
	// ListProgress returns every progress record of the user.
	ListProgress(ctx context.Context, userID string) ([]entities.ProgressRecord, error)
	// UpsertProgress creates or overwrites the record for (userID, word).
	UpsertProgress(ctx context.Context, userID, word string, update entities.ProgressUpdate) (*entities.ProgressRecord, error)
}
