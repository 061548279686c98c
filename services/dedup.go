package services

import (
	"strings"

	"knowledge-engine/models"
	"knowledge-engine/utils"
)

// Deduplicator removes near-identical results from a candidate set.
// Duplicates are detected by hashing the lowercase, trimmed first 200
// characters of content, so near-duplicates with divergent openings slip
// through. First occurrence wins; order is preserved.
type Deduplicator struct{}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

func (d *Deduplicator) Dedup(results []models.SearchResult) []models.SearchResult {
	if len(results) == 0 {
		return results
	}

	seen := make(map[string]struct{}, len(results))
	out := make([]models.SearchResult, 0, len(results))

	for _, r := range results {
		key := utils.MD5Hex(contentFingerprint(r.Content))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

func contentFingerprint(content string) string {
	return truncateRunes(strings.ToLower(strings.TrimSpace(content)), 200)
}

// truncateRunes caps s at n characters without splitting a multi-byte rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
