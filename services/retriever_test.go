package services

import (
	"context"
	"strings"
	"testing"

	"knowledge-engine/models"
)

type countingObserver struct {
	calls       int
	lastTerms   []string
	lastResults int
}

func (o *countingObserver) TrackSearch(terms []string, resultCount int) {
	o.calls++
	o.lastTerms = terms
	o.lastResults = resultCount
}

func newTestRetriever(embedder *fakeEmbedder, index *fakeIndex, gatherer *fakeGatherer, observer SearchObserver) *Retriever {
	chunker := &TextChunker{ChunkSize: 1000, Overlap: 200}
	documents := NewDocumentService(chunker, embedder, index, nil)
	r := NewRetriever(embedder, index, nil, documents, nil, observer, nil, 5)
	if gatherer != nil {
		r.gatherer = gatherer
	}
	return r
}

func storedResult(id string, content string, similarity float64) models.SearchResult {
	return models.SearchResult{
		ChunkID:         id,
		Content:         content,
		Distance:        1 - similarity,
		SimilarityScore: similarity,
		Metadata: models.ChunkMetadata{
			DocumentID: id,
			Type:       models.TypeNewsArticle,
			Date:       "2020-01-01",
		},
	}
}

func TestRetrieveEmbeddingFailureIsFatal(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.fail = true
	index := &fakeIndex{}

	r := newTestRetriever(embedder, index, nil, nil)
	rctx := r.Retrieve(context.Background(), "some query", 3, true, true)

	if !rctx.Failed {
		t.Fatal("expected failure indicator")
	}
	if len(rctx.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(rctx.Results))
	}
	if rctx.TotalResultsFound != 0 {
		t.Fatalf("expected total 0, got %d", rctx.TotalResultsFound)
	}
}

func TestRetrieveIndexFailureIsFatal(t *testing.T) {
	embedder := newFakeEmbedder()
	index := &fakeIndex{failQuery: true}

	r := newTestRetriever(embedder, index, nil, nil)
	rctx := r.Retrieve(context.Background(), "some query", 3, false, false)

	if !rctx.Failed {
		t.Fatal("expected failure indicator when index is down")
	}
	if len(rctx.Results) != 0 {
		t.Fatalf("expected no results, got %d", len(rctx.Results))
	}
}

func TestRetrieveDedupAndRerankTopK(t *testing.T) {
	embedder := newFakeEmbedder()
	index := &fakeIndex{
		queryResults: []models.SearchResult{
			storedResult("a", "first unique passage about robotics and automation in factories", 0.9),
			storedResult("b", "second unique passage covering quantum algorithms in depth", 0.8),
			storedResult("c", "first unique passage about robotics and automation in factories", 0.9),
			storedResult("d", "third unique passage on climate adaptation strategies", 0.6),
			storedResult("e", "fourth unique passage describing protein folding research", 0.4),
			storedResult("f", "second unique passage covering quantum algorithms in depth", 0.8),
		},
	}
	observer := &countingObserver{}

	r := newTestRetriever(embedder, index, nil, observer)
	rctx := r.Retrieve(context.Background(), "robotics", 3, false, true)

	if rctx.Failed {
		t.Fatalf("unexpected failure: %s", rctx.FailureReason)
	}
	if rctx.TotalResultsFound != 6 {
		t.Fatalf("expected 6 raw candidates, got %d", rctx.TotalResultsFound)
	}
	if len(rctx.Results) != 3 {
		t.Fatalf("expected k=3 results, got %d", len(rctx.Results))
	}
	if !rctx.Reranked {
		t.Fatal("expected reranked flag")
	}

	// a, b, d are the three highest-scoring unique candidates
	gotIDs := []string{rctx.Results[0].ChunkID, rctx.Results[1].ChunkID, rctx.Results[2].ChunkID}
	wantIDs := []string{"a", "b", "d"}
	for i := range wantIDs {
		if gotIDs[i] != wantIDs[i] {
			t.Errorf("position %d: got %s, want %s", i, gotIDs[i], wantIDs[i])
		}
	}

	if observer.calls != 1 {
		t.Fatalf("expected 1 track call, got %d", observer.calls)
	}
	if observer.lastResults != 3 {
		t.Fatalf("observer saw %d results, want 3", observer.lastResults)
	}
}

func TestRetrieveExternalBackfill(t *testing.T) {
	embedder := newFakeEmbedder()
	index := &fakeIndex{
		queryResults: []models.SearchResult{
			storedResult("stored", "only one stored passage available here", 0.9),
		},
	}
	gatherer := &fakeGatherer{
		docs: []models.Document{
			{ID: "wiki_a", Title: "A", Content: "external article alpha with enough text", Type: models.TypeWikipediaArticle, Date: "2020-01-01"},
			{ID: "wiki_b", Title: "B", Content: "external article beta with enough text", Type: models.TypeWikipediaArticle, Date: "2020-01-01"},
		},
	}

	r := newTestRetriever(embedder, index, gatherer, nil)
	rctx := r.Retrieve(context.Background(), "query terms", 3, true, false)

	if rctx.Failed {
		t.Fatalf("unexpected failure: %s", rctx.FailureReason)
	}
	if rctx.ExternalSourcesUsed != 2 {
		t.Fatalf("expected 2 external candidates, got %d", rctx.ExternalSourcesUsed)
	}
	if len(rctx.Results) != 3 {
		t.Fatalf("expected 3 merged results, got %d", len(rctx.Results))
	}

	// External documents are persisted for future queries
	count, _ := index.Count(context.Background())
	if count == 0 {
		t.Fatal("expected external documents persisted to the index")
	}
}

func TestRetrieveExternalCandidateEmbeddingFailureSkipped(t *testing.T) {
	embedder := newFakeEmbedder()
	embedder.failFor["external article alpha with enough text"] = true
	index := &fakeIndex{}
	gatherer := &fakeGatherer{
		docs: []models.Document{
			{ID: "wiki_a", Title: "A", Content: "external article alpha with enough text", Type: models.TypeWikipediaArticle},
			{ID: "wiki_b", Title: "B", Content: "external article beta with enough text", Type: models.TypeWikipediaArticle},
		},
	}

	r := newTestRetriever(embedder, index, gatherer, nil)
	rctx := r.Retrieve(context.Background(), "query", 3, true, false)

	if rctx.Failed {
		t.Fatalf("per-candidate embedding failure must not fail the call: %s", rctx.FailureReason)
	}
	if rctx.ExternalSourcesUsed != 1 {
		t.Fatalf("expected the failing candidate dropped, got %d external", rctx.ExternalSourcesUsed)
	}
}

func TestRetrieveExternalLeadCutOnCharacterBoundary(t *testing.T) {
	embedder := newFakeEmbedder()

	// Two-byte characters put the 1000-byte mark inside a rune; a
	// byte-length cut would hand the embedder an invalid trailing byte.
	content := "x" + strings.Repeat("ü", 1200)
	embedder.failFor[content[:1000]] = true

	index := &fakeIndex{}
	gatherer := &fakeGatherer{
		docs: []models.Document{
			{ID: "wiki_u", Title: "U", Content: content, Type: models.TypeWikipediaArticle},
		},
	}

	r := newTestRetriever(embedder, index, gatherer, nil)
	rctx := r.Retrieve(context.Background(), "query", 3, true, false)

	if rctx.Failed {
		t.Fatalf("unexpected failure: %s", rctx.FailureReason)
	}
	if rctx.ExternalSourcesUsed != 1 {
		t.Fatalf("expected 1 external candidate from a character-safe lead, got %d", rctx.ExternalSourcesUsed)
	}

	var preview string
	for _, res := range rctx.Results {
		if res.ChunkID == "wiki_u" {
			preview = res.Metadata.ChunkText
		}
	}
	if want := "x" + strings.Repeat("ü", 499); preview != want {
		t.Fatalf("preview not cut on a character boundary: %d bytes", len(preview))
	}
}

func TestRetrieveExternalFetchFailureDegrades(t *testing.T) {
	embedder := newFakeEmbedder()
	index := &fakeIndex{
		queryResults: []models.SearchResult{
			storedResult("stored", "only one stored passage available here", 0.9),
		},
	}
	gatherer := &fakeGatherer{fail: true}

	r := newTestRetriever(embedder, index, gatherer, nil)
	rctx := r.Retrieve(context.Background(), "query", 3, true, false)

	if rctx.Failed {
		t.Fatal("external fetch failure must degrade, not fail the call")
	}
	if rctx.ExternalSourcesUsed != 0 {
		t.Fatalf("expected 0 external sources, got %d", rctx.ExternalSourcesUsed)
	}
	if len(rctx.Results) != 1 {
		t.Fatalf("expected the stored result only, got %d", len(rctx.Results))
	}
}
