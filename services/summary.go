package services

import (
	"fmt"
	"strings"

	"knowledge-engine/models"
)

// ContextSummarizer renders a one-line digest of a result set: count,
// topics, type breakdown and mean similarity.
type ContextSummarizer struct{}

func NewContextSummarizer() *ContextSummarizer {
	return &ContextSummarizer{}
}

func (cs *ContextSummarizer) Summarize(query string, results []models.SearchResult) string {
	if len(results) == 0 {
		return "No relevant context found for the query."
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("Found %d relevant sources for your query about %s.", len(results), query))

	if topics := distinctTopics(results, 3); len(topics) > 0 {
		parts = append(parts, fmt.Sprintf("Related topics include: %s.", strings.Join(topics, ", ")))
	}

	if typeSummary := typeBreakdown(results); typeSummary != "" {
		parts = append(parts, fmt.Sprintf("Sources include: %s.", typeSummary))
	}

	var sum float64
	for _, r := range results {
		sum += r.SimilarityScore
	}
	parts = append(parts, fmt.Sprintf("Average relevance score: %.2f", sum/float64(len(results))))

	return strings.Join(parts, " ")
}

// distinctTopics returns up to limit topics in first-seen order.
func distinctTopics(results []models.SearchResult, limit int) []string {
	seen := make(map[string]struct{})
	var topics []string
	for _, r := range results {
		topic := r.Metadata.Topic
		if topic == "" {
			continue
		}
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
		if len(topics) == limit {
			break
		}
	}
	return topics
}

// typeBreakdown counts results per content type, in first-seen order, with
// underscores humanized.
func typeBreakdown(results []models.SearchResult) string {
	counts := make(map[models.ContentType]int)
	var order []models.ContentType
	for _, r := range results {
		t := r.Metadata.Type
		if t == "" {
			t = "unknown"
		}
		if _, ok := counts[t]; !ok {
			order = append(order, t)
		}
		counts[t]++
	}

	parts := make([]string, 0, len(order))
	for _, t := range order {
		parts = append(parts, fmt.Sprintf("%d %s", counts[t], strings.ReplaceAll(string(t), "_", " ")))
	}
	return strings.Join(parts, ", ")
}
