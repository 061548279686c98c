package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"knowledge-engine/internal/config"
	"knowledge-engine/models"
)

func testMemoryConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		MemoryStateFile:       filepath.Join(t.TempDir(), "memory_state.json"),
		PopularityThreshold:   5,
		MaxContentAgeDays:     90,
		RefreshAfterHours:     24,
		CleanupAfterHours:     168,
		ConsolidateAfterHours: 720,
	}
}

func newTestEngine(t *testing.T, index *fakeIndex, gatherer *fakeGatherer) (*MemoryEngine, *fakeEmbedder) {
	t.Helper()
	embedder := newFakeEmbedder()
	chunker := &TextChunker{ChunkSize: 1000, Overlap: 200}
	documents := NewDocumentService(chunker, embedder, index, nil)

	cfg := testMemoryConfig(t)
	engine := NewMemoryEngine(cfg, index, nil, documents, nil)
	if gatherer != nil {
		engine.gatherer = gatherer
	}
	return engine, embedder
}

func TestTrackSearchPromotesPopularTopics(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeIndex{}, nil)

	for i := 0; i < 4; i++ {
		engine.TrackSearch([]string{"quantum"}, 1)
	}
	if len(engine.Stats().PopularTopics) != 0 {
		t.Fatal("term promoted before reaching threshold")
	}

	engine.TrackSearch([]string{"quantum"}, 1)
	stats := engine.Stats()
	if len(stats.PopularTopics) != 1 || stats.PopularTopics[0] != "quantum" {
		t.Fatalf("expected quantum promoted, got %v", stats.PopularTopics)
	}

	// Monotonic: more tracking never demotes
	for i := 0; i < 20; i++ {
		engine.TrackSearch([]string{"quantum", "other"}, 0)
	}
	if len(engine.Stats().PopularTopics) < 1 {
		t.Fatal("popular topic was demoted by tracking")
	}
}

func TestTrackSearchIgnoresShortTerms(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeIndex{}, nil)

	for i := 0; i < 10; i++ {
		engine.TrackSearch([]string{"ai", "gpu"}, 1)
	}

	if n := engine.Stats().SearchPatternsTracked; n != 0 {
		t.Fatalf("short terms should not be tracked, got %d patterns", n)
	}
}

func TestUpdateDocumentIfChangedChecksumStability(t *testing.T) {
	index := &fakeIndex{}
	engine, _ := newTestEngine(t, index, nil)

	doc := models.Document{
		ID:      "doc1",
		Title:   "Original Title",
		Content: "original content body for checksum testing",
		Author:  "Author",
		Date:    "2025-01-01",
		Type:    models.TypeResearchPaper,
	}

	if _, err := engine.TrackAndAdd(context.Background(), doc); err != nil {
		t.Fatalf("track and add failed: %v", err)
	}
	addsAfterInsert := index.adds

	// Identical content: no index mutation
	updated, err := engine.UpdateDocumentIfChanged(context.Background(), doc)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated {
		t.Fatal("identical content must not trigger a reindex")
	}
	if index.deletes != 0 {
		t.Fatalf("identical content caused %d deletes", index.deletes)
	}

	// One character changed: exactly one delete + reinsert
	doc.Content = "Original content body for checksum testing"
	updated, err = engine.UpdateDocumentIfChanged(context.Background(), doc)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !updated {
		t.Fatal("changed content must trigger a reindex")
	}
	if index.deletes != 1 {
		t.Fatalf("expected exactly 1 delete, got %d", index.deletes)
	}
	if index.adds != addsAfterInsert+1 {
		t.Fatalf("expected one reinsert, adds went %d -> %d", addsAfterInsert, index.adds)
	}
}

func TestCleanupOutdated(t *testing.T) {
	index := &fakeIndex{}
	engine, _ := newTestEngine(t, index, nil)

	now := time.Now()
	ages := []int{10, 45, 91, 120, 200}
	for i, age := range ages {
		date := now.AddDate(0, 0, -age).Format("2006-01-02")
		index.chunks = append(index.chunks, models.Chunk{
			ChunkID: models.ChunkID("doc"+string(rune('a'+i)), 0),
			Text:    "content",
			Metadata: models.ChunkMetadata{
				DocumentID: "doc" + string(rune('a'+i)),
				Date:       date,
			},
		})
	}
	// Unparseable date: never removed by age-based cleanup
	index.chunks = append(index.chunks, models.Chunk{
		ChunkID:  "weird_chunk_0",
		Text:     "content",
		Metadata: models.ChunkMetadata{DocumentID: "weird", Date: "sometime in spring"},
	})

	removed, err := engine.CleanupOutdated(context.Background(), 90)
	if err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 documents removed, got %d", removed)
	}

	remaining, _ := index.AllChunks(context.Background())
	if len(remaining) != 3 {
		t.Fatalf("expected 3 chunks left (2 young + 1 undated), got %d", len(remaining))
	}
	for _, ch := range remaining {
		if ch.Metadata.DocumentID == "docc" || ch.Metadata.DocumentID == "docd" || ch.Metadata.DocumentID == "doce" {
			t.Errorf("outdated document %s survived cleanup", ch.Metadata.DocumentID)
		}
	}
}

func TestConsolidateDuplicates(t *testing.T) {
	index := &fakeIndex{}
	engine, _ := newTestEngine(t, index, nil)

	index.chunks = []models.Chunk{
		{ChunkID: "a_chunk_0", Text: "identical text"},
		{ChunkID: "b_chunk_0", Text: "unique text one"},
		{ChunkID: "c_chunk_0", Text: "identical text"},
		{ChunkID: "d_chunk_0", Text: "identical text"},
		{ChunkID: "e_chunk_0", Text: "unique text two"},
	}

	removed, err := engine.ConsolidateDuplicates(context.Background())
	if err != nil {
		t.Fatalf("consolidation failed: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 duplicate chunks removed, got %d", removed)
	}

	remaining, _ := index.AllChunks(context.Background())
	if len(remaining) != 3 {
		t.Fatalf("expected 3 chunks after consolidation, got %d", len(remaining))
	}
	// First occurrence survives
	if remaining[0].ChunkID != "a_chunk_0" {
		t.Errorf("expected first duplicate kept, got %s", remaining[0].ChunkID)
	}
}

func TestRefreshPopularContentAddsAndUpdates(t *testing.T) {
	index := &fakeIndex{}
	gatherer := &fakeGatherer{
		docs: []models.Document{
			{ID: "wiki_new", Title: "New", Content: "fresh article content", Author: "W", Type: models.TypeWikipediaArticle},
		},
	}
	engine, _ := newTestEngine(t, index, gatherer)

	// Promote a topic so refresh has something to do
	for i := 0; i < 5; i++ {
		engine.TrackSearch([]string{"fusion"}, 1)
	}

	refreshed := engine.RefreshPopularContent(context.Background())
	if refreshed != 1 {
		t.Fatalf("expected 1 document added, got %d", refreshed)
	}
	if gatherer.calls != 1 {
		t.Fatalf("expected 1 gather call, got %d", gatherer.calls)
	}

	// Same content again: checksum unchanged, nothing to do
	refreshed = engine.RefreshPopularContent(context.Background())
	if refreshed != 0 {
		t.Fatalf("unchanged content re-added, refreshed=%d", refreshed)
	}
}

func TestRefreshPopularContentTopicFailureContinues(t *testing.T) {
	index := &fakeIndex{}
	gatherer := &fakeGatherer{fail: true}
	engine, _ := newTestEngine(t, index, gatherer)

	for i := 0; i < 5; i++ {
		engine.TrackSearch([]string{"fusion"}, 1)
	}

	// Must not panic or error out; failure is logged and skipped
	if refreshed := engine.RefreshPopularContent(context.Background()); refreshed != 0 {
		t.Fatalf("expected 0 refreshed on gather failure, got %d", refreshed)
	}
}

func TestRunCycleThresholds(t *testing.T) {
	index := &fakeIndex{}
	gatherer := &fakeGatherer{}
	engine, _ := newTestEngine(t, index, gatherer)

	base := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return base }

	// Fresh state: nothing due
	engine.state.LastUpdateTime = base.Add(-1 * time.Hour)
	engine.RunCycle(context.Background())
	if !engine.state.LastUpdateTime.Equal(base.Add(-1 * time.Hour)) {
		t.Fatal("cycle ran before the refresh threshold")
	}

	// Past the refresh threshold: refresh fires and stamps the state
	engine.state.LastUpdateTime = base.Add(-25 * time.Hour)
	engine.RunCycle(context.Background())
	if !engine.state.LastUpdateTime.Equal(base) {
		t.Fatal("refresh did not stamp last update time")
	}

	// Past the cleanup threshold: outdated content goes too
	index.chunks = []models.Chunk{
		{ChunkID: "old_chunk_0", Text: "stale", Metadata: models.ChunkMetadata{
			DocumentID: "old",
			Date:       base.AddDate(0, 0, -120).Format("2006-01-02"),
		}},
	}
	engine.state.LastUpdateTime = base.Add(-200 * time.Hour)
	engine.RunCycle(context.Background())

	remaining, _ := index.AllChunks(context.Background())
	if len(remaining) != 0 {
		t.Fatalf("cleanup threshold passed but %d outdated chunks remain", len(remaining))
	}
}

func TestMemoryStatePersistenceRoundTrip(t *testing.T) {
	cfg := testMemoryConfig(t)
	index := &fakeIndex{}
	embedder := newFakeEmbedder()
	chunker := &TextChunker{ChunkSize: 1000, Overlap: 200}
	documents := NewDocumentService(chunker, embedder, index, nil)

	engine := NewMemoryEngine(cfg, index, nil, documents, nil)
	doc := models.Document{ID: "persisted", Title: "T", Content: "some content", Author: "A"}
	if _, err := engine.TrackAndAdd(context.Background(), doc); err != nil {
		t.Fatalf("track and add failed: %v", err)
	}

	// A fresh engine on the same state file sees the tracked document
	reloaded := NewMemoryEngine(cfg, index, nil, documents, nil)
	if reloaded.Stats().TrackedDocuments != 1 {
		t.Fatalf("expected 1 tracked document after reload, got %d", reloaded.Stats().TrackedDocuments)
	}

	updated, err := reloaded.UpdateDocumentIfChanged(context.Background(), doc)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated {
		t.Fatal("reloaded checksum should match identical content")
	}
}

func TestMemoryStateCorruptFileDefaults(t *testing.T) {
	cfg := testMemoryConfig(t)
	if err := os.WriteFile(cfg.MemoryStateFile, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	index := &fakeIndex{}
	embedder := newFakeEmbedder()
	chunker := &TextChunker{ChunkSize: 1000, Overlap: 200}
	documents := NewDocumentService(chunker, embedder, index, nil)

	fresh := NewMemoryEngine(cfg, index, nil, documents, nil)
	stats := fresh.Stats()
	if stats.TrackedDocuments != 0 || stats.SearchPatternsTracked != 0 {
		t.Fatalf("corrupt state file should default to empty, got %+v", stats)
	}
}
