package reconciler

import (
	"sort"
	"time"

	"github.com/mrlokans/wordsync/internal/entities"
)

// ComputeStats derives the dashboard counters from progress at now.
// "Today" starts at local midnight in now's location.
func ComputeStats(progress []entities.ProgressRecord, now time.Time) entities.Stats {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := entities.Stats{TotalWords: len(progress)}
	for _, p := range progress {
		if p.LastReviewed != nil && !p.LastReviewed.Before(midnight) {
			stats.LearnedToday++
		}
		if p.IsDue(now) {
			stats.DueWords++
		}
		if p.IsMastered() {
			stats.MasteredWords++
		}
	}
	return stats
}

// dueWords returns the records due at now, most overdue first.
func dueWords(progress []entities.ProgressRecord, now time.Time) []entities.ProgressRecord {
	due := make([]entities.ProgressRecord, 0)
	for _, p := range progress {
		if p.IsDue(now) {
			due = append(due, p)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextReview.Before(due[j].NextReview)
	})
	return due
}
