package wordcache

import (
	"strings"

	"github.com/mrlokans/wordsync/internal/entities"
)

// searchIndex ranks exact matches first, then prefix matches, then substring
// matches, each group in index order.
func searchIndex(words []entities.WordSummary, query string, limit int) []entities.WordSummary {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || limit <= 0 {
		return []entities.WordSummary{}
	}

	var exact, prefix, contains []entities.WordSummary
	for _, item := range words {
		w := strings.ToLower(item.Word)
		switch {
		case w == q:
			exact = append(exact, item)
		case strings.HasPrefix(w, q):
			prefix = append(prefix, item)
		case strings.Contains(w, q):
			contains = append(contains, item)
		}
	}

	results := make([]entities.WordSummary, 0, limit)
	seen := make(map[string]struct{}, limit)
	for _, group := range [][]entities.WordSummary{exact, prefix, contains} {
		for _, item := range group {
			if len(results) >= limit {
				return results
			}
			key := strings.ToLower(item.Word)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, item)
		}
	}
	return results
}

// sampleIndex draws count distinct entries without replacement.
func sampleIndex(words []entities.WordSummary, count int, intn func(int) int) []entities.WordSummary {
	if count <= 0 || len(words) == 0 {
		return []entities.WordSummary{}
	}
	if count > len(words) {
		count = len(words)
	}

	pool := make([]entities.WordSummary, len(words))
	copy(pool, words)

	// Partial Fisher-Yates: the first count slots become the sample.
	for i := 0; i < count; i++ {
		j := i + intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:count]
}

// groupWords takes up to perGroup words starting with each letter, letter by
// letter, in index order.
func groupWords(words []entities.WordSummary, letters []string, perGroup int) []string {
	if perGroup <= 0 {
		return nil
	}

	var out []string
	for _, letter := range letters {
		letter = strings.ToLower(strings.TrimSpace(letter))
		if letter == "" {
			continue
		}
		taken := 0
		for _, item := range words {
			if taken == perGroup {
				break
			}
			if strings.HasPrefix(strings.ToLower(item.Word), letter) {
				out = append(out, item.Word)
				taken++
			}
		}
	}
	return out
}
