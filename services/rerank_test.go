package services

import (
	"strings"
	"testing"

	"knowledge-engine/models"
)

func rankable(id string, contentType models.ContentType, score float64) models.SearchResult {
	return models.SearchResult{
		ChunkID:         id,
		Content:         strings.Repeat("x", 1000),
		SimilarityScore: score,
		Metadata: models.ChunkMetadata{
			Type: contentType,
			Date: "2020-01-15",
		},
	}
}

func TestRerankTypeBoostOrdering(t *testing.T) {
	r := &Reranker{ReferenceYear: "2031"}

	// Identical except type: research_paper must never rank below summary
	results := []models.SearchResult{
		rankable("summary", models.TypeSummary, 0.8),
		rankable("paper", models.TypeResearchPaper, 0.8),
	}

	ranked := r.Rerank("some query", results)

	if ranked[0].ChunkID != "paper" {
		t.Fatalf("expected research_paper first, got %s", ranked[0].ChunkID)
	}
	if ranked[0].AdvancedScore <= ranked[1].AdvancedScore {
		t.Fatalf("research_paper score %f should exceed summary score %f",
			ranked[0].AdvancedScore, ranked[1].AdvancedScore)
	}
}

func TestRerankRecencyBoost(t *testing.T) {
	r := &Reranker{ReferenceYear: "2030"}

	recent := rankable("recent", models.TypeNewsArticle, 0.7)
	recent.Metadata.Date = "2030-06-01"
	old := rankable("old", models.TypeNewsArticle, 0.7)
	old.Metadata.Date = "2019-06-01"

	ranked := r.Rerank("query", []models.SearchResult{old, recent})

	if ranked[0].ChunkID != "recent" {
		t.Fatalf("expected recent result first, got %s", ranked[0].ChunkID)
	}
}

func TestRerankLengthBoost(t *testing.T) {
	r := &Reranker{ReferenceYear: "2031"}

	long := rankable("long", models.TypeNewsArticle, 0.7)
	long.Content = strings.Repeat("x", 2500)
	short := rankable("short", models.TypeNewsArticle, 0.7)
	short.Content = strings.Repeat("x", 100)
	mid := rankable("mid", models.TypeNewsArticle, 0.7)

	ranked := r.Rerank("query", []models.SearchResult{short, mid, long})

	if ranked[0].ChunkID != "long" || ranked[2].ChunkID != "short" {
		t.Fatalf("unexpected length ordering: %s, %s, %s",
			ranked[0].ChunkID, ranked[1].ChunkID, ranked[2].ChunkID)
	}
}

func TestRerankTitleMatchBoost(t *testing.T) {
	r := &Reranker{ReferenceYear: "2031"}

	matched := rankable("matched", models.TypeNewsArticle, 0.7)
	matched.Metadata.Title = "Quantum Computing Advances"
	plain := rankable("plain", models.TypeNewsArticle, 0.7)
	plain.Metadata.Title = "Unrelated Report"

	ranked := r.Rerank("quantum computing research", []models.SearchResult{plain, matched})

	if ranked[0].ChunkID != "matched" {
		t.Fatalf("expected title-matched result first, got %s", ranked[0].ChunkID)
	}

	// Two distinct matched terms: multiplier is 1 + 0.1*2
	want := 0.7 * 1.2
	if diff := ranked[0].AdvancedScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("advanced score %f, want %f", ranked[0].AdvancedScore, want)
	}
}

func TestRerankStableTies(t *testing.T) {
	r := &Reranker{ReferenceYear: "2031"}

	results := []models.SearchResult{
		rankable("first", models.TypeNewsArticle, 0.6),
		rankable("second", models.TypeNewsArticle, 0.6),
		rankable("third", models.TypeNewsArticle, 0.6),
	}

	ranked := r.Rerank("query", results)

	want := []string{"first", "second", "third"}
	for i, id := range want {
		if ranked[i].ChunkID != id {
			t.Errorf("tie order changed at %d: got %s, want %s", i, ranked[i].ChunkID, id)
		}
	}
}

func TestRerankUnknownTypeNeutral(t *testing.T) {
	r := &Reranker{ReferenceYear: "2031"}

	custom := rankable("custom", models.ContentType("lab_notebook"), 0.8)
	news := rankable("news", models.TypeNewsArticle, 0.8)

	ranked := r.Rerank("query", []models.SearchResult{custom, news})

	if ranked[0].AdvancedScore != ranked[1].AdvancedScore {
		t.Fatalf("unknown type should score like news_article: %f vs %f",
			ranked[0].AdvancedScore, ranked[1].AdvancedScore)
	}
}
