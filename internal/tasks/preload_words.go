package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog"
)

// WordPreloader warms the word cache.
type WordPreloader interface {
	Preload(ctx context.Context, words []string) int
	PreloadGroups(ctx context.Context, letters []string, perGroup int) (int, error)
}

// PreloadWordsTask fetches Words into the word cache so they resolve offline.
// With Letters set it also warms the first PerGroup index words of each letter.
type PreloadWordsTask struct {
	Words    []string `json:"words,omitempty"`
	Letters  []string `json:"letters,omitempty"`
	PerGroup int      `json:"per_group,omitempty"`
}

func (t PreloadWordsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "preload_words",
		MaxAttempts: 1,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: true,
		},
	}
}

// PreloadWordsProcessor creates a processor for cache warm-up.
func PreloadWordsProcessor(words WordPreloader, log zerolog.Logger) backlite.QueueProcessor[PreloadWordsTask] {
	return func(ctx context.Context, task PreloadWordsTask) error {
		loaded := words.Preload(ctx, task.Words)
		if len(task.Letters) > 0 {
			grouped, err := words.PreloadGroups(ctx, task.Letters, task.PerGroup)
			if err != nil {
				return fmt.Errorf("preload groups: %w", err)
			}
			loaded += grouped
		}
		log.Info().Int("loaded", loaded).Int("requested", len(task.Words)).Strs("letters", task.Letters).Msg("word cache preloaded")
		return ctx.Err()
	}
}

func NewPreloadWordsQueue(words WordPreloader, log zerolog.Logger) backlite.Queue {
	return backlite.NewQueue(PreloadWordsProcessor(words, log))
}
