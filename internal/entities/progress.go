package entities

import (
	"time"
)

// DefaultEaseFactor is the SM-2 starting ease for a never-reviewed word.
const DefaultEaseFactor = 2.5

// MinEaseFactor is the floor the SM-2 update never goes below.
const MinEaseFactor = 1.3

// MasteredRepetitions is the repetition count at which a word counts as mastered.
const MasteredRepetitions = 5

// ProgressRecord is the review state of one word for one user.
// There is at most one record per (user, word).
type ProgressRecord struct {
	Word         string     `json:"word" db:"word"`
	UserID       string     `json:"user_id,omitempty" db:"user_id"`
	EaseFactor   float64    `json:"ease_factor" db:"ease_factor"`
	Interval     int        `json:"interval" db:"interval_days"`
	Repetitions  int        `json:"repetitions" db:"repetitions"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty" db:"last_reviewed"`
	NextReview   time.Time  `json:"next_review" db:"next_review"`
}

// IsDue reports whether the word should be reviewed at now.
func (p ProgressRecord) IsDue(now time.Time) bool {
	return !p.NextReview.After(now)
}

// IsMastered reports whether the word has been recalled enough times in a row.
func (p ProgressRecord) IsMastered() bool {
	return p.Repetitions >= MasteredRepetitions
}

// ProgressUpdate carries the fields written by an upsert-by-key on the remote.
type ProgressUpdate struct {
	EaseFactor   float64    `json:"ease_factor"`
	Interval     int        `json:"interval"`
	Repetitions  int        `json:"repetitions"`
	LastReviewed *time.Time `json:"last_reviewed,omitempty"`
	NextReview   time.Time  `json:"next_review"`
}

// Update extracts the upsert payload from a record.
func (p ProgressRecord) Update() ProgressUpdate {
	return ProgressUpdate{
		EaseFactor:   p.EaseFactor,
		Interval:     p.Interval,
		Repetitions:  p.Repetitions,
		LastReviewed: p.LastReviewed,
		NextReview:   p.NextReview,
	}
}

// Record builds the full record for word and user from an update.
func (u ProgressUpdate) Record(userID, word string) ProgressRecord {
	return ProgressRecord{
		Word:         word,
		UserID:       userID,
		EaseFactor:   u.EaseFactor,
		Interval:     u.Interval,
		Repetitions:  u.Repetitions,
		LastReviewed: u.LastReviewed,
		NextReview:   u.NextReview,
	}
}

// CollectionItem is a word the user saved to their collection.
type CollectionItem struct {
	Word      string    `json:"word" db:"word"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Stats is derived from progress on demand and never stored.
type Stats struct {
	TotalWords    int `json:"totalWords"`
	LearnedToday  int `json:"learnedToday"`
	DueWords      int `json:"dueWords"`
	MasteredWords int `json:"masteredWords"`
}
