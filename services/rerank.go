package services

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"knowledge-engine/models"
)

// typeBoosts are the default content-type multipliers. Unknown types get 1.0.
var typeBoosts = map[models.ContentType]float64{
	models.TypeResearchPaper:    1.20,
	models.TypeTechnicalReport:  1.10,
	models.TypeWikipediaArticle: 1.05,
	models.TypeNewsArticle:      1.00,
	models.TypeSummary:          0.95,
}

// Reranker rescales similarity with content-type, recency, length and
// title-match boosts. All boosts compose multiplicatively; ties keep their
// original relative order.
type Reranker struct {
	// ReferenceYear is matched as a substring of the stored date string.
	// A crude recency signal, kept for ranking compatibility; it is not
	// date arithmetic. Injectable so tests are not year-dependent.
	ReferenceYear string
}

func NewReranker() *Reranker {
	return &Reranker{ReferenceYear: strconv.Itoa(time.Now().Year())}
}

// Rerank returns results sorted descending by AdvancedScore.
func (r *Reranker) Rerank(query string, results []models.SearchResult) []models.SearchResult {
	if len(results) == 0 {
		return results
	}

	queryTerms := ExtractKeyTerms(query)

	out := make([]models.SearchResult, len(results))
	copy(out, results)
	for i := range out {
		out[i].AdvancedScore = r.score(queryTerms, out[i])
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AdvancedScore > out[j].AdvancedScore
	})
	return out
}

func (r *Reranker) score(queryTerms []string, result models.SearchResult) float64 {
	score := result.SimilarityScore

	if boost, ok := typeBoosts[result.Metadata.Type]; ok {
		score *= boost
	}

	if r.ReferenceYear != "" && strings.Contains(result.Metadata.Date, r.ReferenceYear) {
		score *= 1.10
	}

	switch length := len(result.Content); {
	case length > 2000:
		score *= 1.05
	case length < 500:
		score *= 0.95
	}

	title := strings.ToLower(result.Metadata.Title)
	matches := 0
	for _, term := range queryTerms {
		if strings.Contains(title, term) {
			matches++
		}
	}
	if matches > 0 {
		score *= 1 + 0.10*float64(matches)
	}

	return score
}
