// Package sqlstore implements remote.Store over Postgres or SQLite with sqlx.
//
// Queries use $N placeholders, which both lib/pq and go-sqlite3 accept, so one
// set of statements serves both drivers.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/entities"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS user_collections (
		user_id TEXT NOT NULL,
		word TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, word)
	)`,
	`CREATE TABLE IF NOT EXISTS user_progress (
		user_id TEXT NOT NULL,
		word TEXT NOT NULL,
		ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
		interval_days INTEGER NOT NULL DEFAULT 0,
		repetitions INTEGER NOT NULL DEFAULT 0,
		last_reviewed TIMESTAMP NULL,
		next_review TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, word)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_user_progress_next_review ON user_progress (user_id, next_review)`,
}

// Store is safe for concurrent use.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open connects to dsn with driver and creates the schema if needed.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite doesn't support multiple writers
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := New(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an existing connection. Call Migrate before first use.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize remote schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, for health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ListCollections(ctx context.Context, userID string) ([]entities.CollectionItem, error) {
	items := []entities.CollectionItem{}
	err := s.db.SelectContext(ctx, &items, `
		SELECT user_id, word, created_at FROM user_collections
		WHERE user_id = $1
		ORDER BY created_at DESC, word ASC
	`, userID)
	if err != nil {
		return nil, storageError("list collections", err)
	}
	return items, nil
}

func (s *Store) InsertCollection(ctx context.Context, userID, word string) (*entities.CollectionItem, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_collections (user_id, word, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, word) DO NOTHING
	`, userID, word, s.now().UTC())
	if err != nil {
		return nil, storageError("insert collection", err)
	}

	var item entities.CollectionItem
	err = s.db.GetContext(ctx, &item, `
		SELECT user_id, word, created_at FROM user_collections
		WHERE user_id = $1 AND word = $2
	`, userID, word)
	if err != nil {
		return nil, storageError("read collection", err)
	}
	return &item, nil
}

func (s *Store) DeleteCollection(ctx context.Context, userID, word string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM user_collections WHERE user_id = $1 AND word = $2", userID, word)
	if err != nil {
		return storageError("delete collection", err)
	}
	return nil
}

func (s *Store) ListProgress(ctx context.Context, userID string) ([]entities.ProgressRecord, error) {
	records := []entities.ProgressRecord{}
	err := s.db.SelectContext(ctx, &records, `
		SELECT user_id, word, ease_factor, interval_days, repetitions, last_reviewed, next_review
		FROM user_progress
		WHERE user_id = $1
		ORDER BY next_review ASC, word ASC
	`, userID)
	if err != nil {
		return nil, storageError("list progress", err)
	}
	return records, nil
}

// UpsertProgress stamps last_reviewed with the server clock when the update
// carries none.
func (s *Store) UpsertProgress(ctx context.Context, userID, word string, update entities.ProgressUpdate) (*entities.ProgressRecord, error) {
	now := s.now().UTC()
	lastReviewed := update.LastReviewed
	if lastReviewed == nil {
		lastReviewed = &now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_progress (user_id, word, ease_factor, interval_days, repetitions, last_reviewed, next_review, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, word) DO UPDATE SET
			ease_factor = excluded.ease_factor,
			interval_days = excluded.interval_days,
			repetitions = excluded.repetitions,
			last_reviewed = excluded.last_reviewed,
			next_review = excluded.next_review,
			updated_at = excluded.updated_at
	`, userID, word, update.EaseFactor, update.Interval, update.Repetitions, lastReviewed.UTC(), update.NextReview.UTC(), now)
	if err != nil {
		return nil, storageError("upsert progress", err)
	}

	var record entities.ProgressRecord
	err = s.db.GetContext(ctx, &record, `
		SELECT user_id, word, ease_factor, interval_days, repetitions, last_reviewed, next_review
		FROM user_progress
		WHERE user_id = $1 AND word = $2
	`, userID, word)
	if err != nil {
		return nil, storageError("read progress", err)
	}
	return &record, nil
}

func storageError(op string, err error) error {
	return fmt.Errorf("%s: %v: %w", op, err, apperrors.ErrStorageFailure)
}
