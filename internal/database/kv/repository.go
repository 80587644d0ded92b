// Package kv provides a namespaced key-value store over the local database.
//
// # Usage
//
//	queue := kv.NewRepository(db, entities.NamespaceQueue)
//	err := queue.Put(ctx, "dict_v1_sync_queue", payload)
//	raw, err := queue.Get(ctx, "dict_v1_sync_queue")
package kv

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/entities"
)

// Store is the durable key-value contract the caches and the queue depend on.
// Get returns an error matching apperrors.ErrNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Repository handles key-value rows within one namespace.
type Repository struct {
	db        *gorm.DB
	namespace string
}

// NewRepository creates a repository scoped to namespace.
func NewRepository(db *gorm.DB, namespace string) *Repository {
	return &Repository{db: db, namespace: namespace}
}

// Namespace returns the namespace this repository writes to.
func (r *Repository) Namespace() string {
	return r.namespace
}

// Get retrieves the value stored under key.
func (r *Repository) Get(ctx context.Context, key string) ([]byte, error) {
	var entry entities.KVEntry
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", r.namespace, key).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s/%s: %w", r.namespace, key, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %v: %w", r.namespace, key, err, apperrors.ErrStorageFailure)
	}
	return entry.Value, nil
}

// Put creates or replaces the value under key.
func (r *Repository) Put(ctx context.Context, key string, value []byte) error {
	entry := entities.KVEntry{
		Namespace: r.namespace,
		Key:       key,
		Value:     value,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("put %s/%s: %v: %w", r.namespace, key, err, apperrors.ErrStorageFailure)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (r *Repository) Delete(ctx context.Context, key string) error {
	err := r.db.WithContext(ctx).
		Where("namespace = ? AND key = ?", r.namespace, key).
		Delete(&entities.KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete %s/%s: %v: %w", r.namespace, key, err, apperrors.ErrStorageFailure)
	}
	return nil
}

// Keys lists keys starting with prefix in ascending order. An empty prefix lists all.
func (r *Repository) Keys(ctx context.Context, prefix string) ([]string, error) {
	query := r.db.WithContext(ctx).
		Model(&entities.KVEntry{}).
		Where("namespace = ?", r.namespace)
	if prefix != "" {
		// LIKE folds ASCII case in SQLite; compare the leading characters exactly.
		query = query.Where("substr(key, 1, ?) = ?", utf8.RuneCountInString(prefix), prefix)
	}

	var keys []string
	if err := query.Order("key ASC").Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("list %s/%s*: %v: %w", r.namespace, prefix, err, apperrors.ErrStorageFailure)
	}
	return keys, nil
}

// Count returns the number of rows in the namespace.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entities.KVEntry{}).
		Where("namespace = ?", r.namespace).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %v: %w", r.namespace, err, apperrors.ErrStorageFailure)
	}
	return count, nil
}

// Truncate removes every row in the namespace.
func (r *Repository) Truncate(ctx context.Context) error {
	err := r.db.WithContext(ctx).
		Where("namespace = ?", r.namespace).
		Delete(&entities.KVEntry{}).Error
	if err != nil {
		return fmt.Errorf("truncate %s: %v: %w", r.namespace, err, apperrors.ErrStorageFailure)
	}
	return nil
}

