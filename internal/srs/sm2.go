// Package srs implements the SuperMemo-2 review scheduler.
//
// NextState is a pure function: the same previous state, quality and clock
// reading always produce the same next state.
package srs

import (
	"fmt"
	"math"
	"time"

	"github.com/mrlokans/wordsync/internal/apperrors"
	"github.com/mrlokans/wordsync/internal/entities"
)

// Quality is the learner's self-rated recall for one review, 0 to 5.
type Quality int

const (
	// QualityBlackout means complete failure to recall.
	QualityBlackout Quality = 0
	// QualityIncorrect means wrong, but the word felt familiar.
	QualityIncorrect Quality = 1
	// QualityIncorrectRemembered means wrong, then remembered on seeing the answer.
	QualityIncorrectRemembered Quality = 2
	// QualityCorrectDifficult means correct with serious effort.
	QualityCorrectDifficult Quality = 3
	// QualityCorrectHesitation means correct after some hesitation.
	QualityCorrectHesitation Quality = 4
	// QualityPerfect means instant recall.
	QualityPerfect Quality = 5

	// PassThreshold is the lowest quality that counts as a successful recall.
	PassThreshold = QualityCorrectDifficult
)

// State is the schedulable part of a progress record.
type State struct {
	EaseFactor  float64
	Interval    int
	Repetitions int
	NextReview  time.Time
}

// StateOf extracts the scheduler state from a progress record.
func StateOf(p entities.ProgressRecord) State {
	return State{
		EaseFactor:  p.EaseFactor,
		Interval:    p.Interval,
		Repetitions: p.Repetitions,
		NextReview:  p.NextReview,
	}
}

// Apply writes s onto p and stamps the review time.
func (s State) Apply(p entities.ProgressRecord, reviewedAt time.Time) entities.ProgressRecord {
	p.EaseFactor = s.EaseFactor
	p.Interval = s.Interval
	p.Repetitions = s.Repetitions
	p.NextReview = s.NextReview
	p.LastReviewed = &reviewedAt
	return p
}

// Valid reports whether q is inside the 0..5 scale.
func (q Quality) Valid() bool {
	return q >= QualityBlackout && q <= QualityPerfect
}

// NextState computes the state after a review of the given quality at now.
// A zero EaseFactor in prev means a never-reviewed word.
func NextState(prev State, quality int, now time.Time) (State, error) {
	q := Quality(quality)
	if !q.Valid() {
		return State{}, fmt.Errorf("quality %d out of range [0,5]: %w", quality, apperrors.ErrInvalidInput)
	}

	ef := prev.EaseFactor
	if ef == 0 {
		ef = entities.DefaultEaseFactor
	}

	next := State{EaseFactor: ef}

	if q < PassThreshold {
		next.Repetitions = 0
		next.Interval = 1
	} else {
		miss := float64(QualityPerfect - q)
		next.EaseFactor = math.Max(entities.MinEaseFactor, ef+(0.1-miss*(0.08+miss*0.02)))
		next.Repetitions = prev.Repetitions + 1

		switch next.Repetitions {
		case 1:
			next.Interval = 1
		case 2:
			next.Interval = 6
		default:
			next.Interval = int(math.Round(float64(prev.Interval) * next.EaseFactor))
		}
	}

	next.NextReview = now.AddDate(0, 0, next.Interval)
	return next, nil
}
