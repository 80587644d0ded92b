package dictionary

import (
	"context"
	"strings"

	"github.com/mrlokans/wordsync/internal/entities"
)

// Origin is the content server holding the static dictionary.
type Origin interface {
	// FetchIndex loads the lightweight search index.
	FetchIndex(ctx context.Context) (*entities.DictionaryIndex, error)
	// FetchWord loads one word's detail document. A missing word returns
	// an error matching apperrors.ErrNotFound.
	FetchWord(ctx context.Context, word string) (*entities.WordRecord, error)
}

// Normalize lower-cases and trims a word so every tier agrees on the key.
func Normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
