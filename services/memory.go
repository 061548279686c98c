package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"knowledge-engine/internal/aggregator"
	"knowledge-engine/internal/config"
	"knowledge-engine/internal/logger"
	"knowledge-engine/internal/telemetry"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/models"
	"knowledge-engine/utils"
)

// MemoryEngine keeps the index fresh without manual curation. It tracks
// per-document content checksums, counts search terms to find popular
// topics, and runs refresh, cleanup and consolidation on a background
// schedule.
//
// All MemoryState mutation plus the follow-up persist happens under one
// mutex; the vector index is its own serialization domain and concurrent
// deletes of the same document are tolerated as no-ops.
type MemoryEngine struct {
	mu    sync.Mutex
	state *models.MemoryState

	statePath string
	index     vectorindex.Store
	gatherer  aggregator.Gatherer
	documents *DocumentService
	metrics   *telemetry.Metrics

	popularityThreshold   int
	maxContentAgeDays     int
	refreshAfterHours     float64
	cleanupAfterHours     float64
	consolidateAfterHours float64

	// now is injectable for cycle-threshold tests
	now func() time.Time

	backgroundActive func() bool
}

func NewMemoryEngine(
	cfg *config.Config,
	index vectorindex.Store,
	gatherer aggregator.Gatherer,
	documents *DocumentService,
	metrics *telemetry.Metrics,
) *MemoryEngine {
	me := &MemoryEngine{
		state:                 models.NewMemoryState(),
		statePath:             cfg.MemoryStateFile,
		index:                 index,
		gatherer:              gatherer,
		documents:             documents,
		metrics:               metrics,
		popularityThreshold:   cfg.PopularityThreshold,
		maxContentAgeDays:     cfg.MaxContentAgeDays,
		refreshAfterHours:     cfg.RefreshAfterHours,
		cleanupAfterHours:     cfg.CleanupAfterHours,
		consolidateAfterHours: cfg.ConsolidateAfterHours,
		now:                   time.Now,
	}
	me.loadState()
	return me
}

// Checksum fingerprints the fields whose change warrants a reindex.
func Checksum(doc models.Document) string {
	return utils.MD5Hex(doc.Title + doc.Content + doc.Author)
}

// TrackSearch counts query terms and promotes any term that reaches the
// popularity threshold. Promotion is monotonic; nothing here ever demotes
// a topic.
func (me *MemoryEngine) TrackSearch(terms []string, resultCount int) {
	me.mu.Lock()
	defer me.mu.Unlock()

	for _, term := range terms {
		if len(term) <= 3 {
			continue
		}
		me.state.SearchPatterns[term]++
		if me.state.SearchPatterns[term] >= me.popularityThreshold && !me.isPopularLocked(term) {
			me.state.PopularTopics = append(me.state.PopularTopics, term)
			logger.Info("Term promoted to popular topic", "term", term, "count", me.state.SearchPatterns[term])
		}
	}

	// Persist periodically rather than on every query
	if len(me.state.SearchPatterns)%10 == 0 {
		me.saveStateLocked()
	}
}

func (me *MemoryEngine) isPopularLocked(term string) bool {
	for _, t := range me.state.PopularTopics {
		if t == term {
			return true
		}
	}
	return false
}

// TrackAndAdd ingests a document and records its checksum so later
// refreshes can detect changes.
func (me *MemoryEngine) TrackAndAdd(ctx context.Context, doc models.Document) (int, error) {
	landed, err := me.documents.IngestDocument(ctx, doc)
	if err != nil {
		return 0, err
	}
	if landed == 0 {
		return 0, nil
	}

	me.mu.Lock()
	me.state.DocumentChecksums[doc.ID] = Checksum(doc)
	me.saveStateLocked()
	me.mu.Unlock()

	return landed, nil
}

// UpdateDocumentIfChanged reindexes a tracked document only when its
// checksum differs from the stored one. Returns whether a reindex happened.
func (me *MemoryEngine) UpdateDocumentIfChanged(ctx context.Context, doc models.Document) (bool, error) {
	if doc.ID == "" {
		return false, fmt.Errorf("%w: missing document id", models.ErrMalformedDocument)
	}

	newChecksum := Checksum(doc)

	me.mu.Lock()
	oldChecksum, tracked := me.state.DocumentChecksums[doc.ID]
	me.mu.Unlock()

	if tracked && oldChecksum == newChecksum {
		return false, nil
	}

	logger.Info("Document changed, reindexing", "document_id", doc.ID)
	landed, err := me.documents.ReplaceDocument(ctx, doc)
	if err != nil {
		return false, err
	}
	if landed == 0 {
		return false, nil
	}

	me.mu.Lock()
	me.state.DocumentChecksums[doc.ID] = newChecksum
	me.saveStateLocked()
	me.mu.Unlock()

	return true, nil
}

// RefreshPopularContent pulls fresh external content for up to 3 popular
// topics. Per-topic failures are logged and the loop continues. Returns
// how many documents were added or updated.
func (me *MemoryEngine) RefreshPopularContent(ctx context.Context) int {
	me.mu.Lock()
	topics := make([]string, 0, 3)
	for _, t := range me.state.PopularTopics {
		topics = append(topics, t)
		if len(topics) == 3 {
			break
		}
	}
	me.mu.Unlock()

	refreshed := 0
	if len(topics) == 0 {
		logger.Debug("No popular topics to refresh yet")
	} else {
		logger.Info("Refreshing popular topics", "topics", topics)
		for _, topic := range topics {
			n, err := me.RefreshTopic(ctx, topic)
			if err != nil {
				logger.Warn("Topic refresh failed", "topic", topic, "error", err)
				continue
			}
			refreshed += n
		}
	}

	me.mu.Lock()
	me.state.LastUpdateTime = me.now()
	me.saveStateLocked()
	me.mu.Unlock()

	logger.Info("Popular content refresh completed", "documents", refreshed)
	return refreshed
}

// RefreshTopic fetches external content for one topic and folds it into
// the index, adding unseen documents and reindexing changed ones.
func (me *MemoryEngine) RefreshTopic(ctx context.Context, topic string) (int, error) {
	if me.gatherer == nil {
		return 0, nil
	}

	docs, err := me.gatherer.Gather(ctx, topic)
	if err != nil {
		return 0, err
	}

	refreshed := 0
	for _, doc := range docs {
		me.mu.Lock()
		_, tracked := me.state.DocumentChecksums[doc.ID]
		me.mu.Unlock()

		if !tracked {
			if landed, err := me.TrackAndAdd(ctx, doc); err != nil {
				logger.Warn("Failed to add refreshed document", "document_id", doc.ID, "error", err)
			} else if landed > 0 {
				refreshed++
			}
			continue
		}

		if updated, err := me.UpdateDocumentIfChanged(ctx, doc); err != nil {
			logger.Warn("Failed to update refreshed document", "document_id", doc.ID, "error", err)
		} else if updated {
			refreshed++
		}
	}
	return refreshed, nil
}

// CleanupOutdated deletes every document whose metadata date parses and is
// older than maxAgeDays. Unparseable dates are never deleted by this path.
func (me *MemoryEngine) CleanupOutdated(ctx context.Context, maxAgeDays int) (int, error) {
	chunks, err := me.index.AllChunks(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := me.now().AddDate(0, 0, -maxAgeDays)
	outdated := make(map[string]struct{})

	for _, chunk := range chunks {
		dateStr := chunk.Metadata.Date
		if dateStr == "" || chunk.Metadata.DocumentID == "" {
			continue
		}
		docDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if docDate.Before(cutoff) {
			outdated[chunk.Metadata.DocumentID] = struct{}{}
		}
	}

	removed := 0
	for docID := range outdated {
		if _, err := me.index.DeleteByDocumentID(ctx, docID); err != nil {
			logger.Warn("Failed to delete outdated document", "document_id", docID, "error", err)
			continue
		}
		removed++

		me.mu.Lock()
		delete(me.state.DocumentChecksums, docID)
		me.mu.Unlock()
	}

	if removed > 0 {
		me.mu.Lock()
		me.saveStateLocked()
		me.mu.Unlock()

		if me.metrics != nil {
			me.metrics.RecordEviction(removed, "outdated")
		}
		logger.Info("Cleanup completed", "documents_removed", removed)
	}
	return removed, nil
}

// ConsolidateDuplicates deletes every chunk after the first with identical
// text. Exact-match only; the query-time deduplicator is a separate,
// prefix-based mechanism.
func (me *MemoryEngine) ConsolidateDuplicates(ctx context.Context) (int, error) {
	chunks, err := me.index.AllChunks(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(chunks))
	var duplicates []string
	for _, chunk := range chunks {
		hash := utils.MD5Hex(chunk.Text)
		if _, dup := seen[hash]; dup {
			duplicates = append(duplicates, chunk.ChunkID)
			continue
		}
		seen[hash] = struct{}{}
	}

	if len(duplicates) == 0 {
		return 0, nil
	}

	removed, err := me.index.DeleteChunks(ctx, duplicates)
	if err != nil {
		return 0, err
	}

	if me.metrics != nil {
		me.metrics.RecordEviction(int(removed), "duplicate")
	}
	logger.Info("Consolidation removed duplicate chunks", "chunks_removed", removed)
	return int(removed), nil
}

// RunCycle is one scheduler wake. It compares hours since the last update
// against the refresh, cleanup and consolidation thresholds; several may
// fire in one wake. Errors are logged and never stop the schedule.
func (me *MemoryEngine) RunCycle(ctx context.Context) {
	start := me.now()

	me.mu.Lock()
	elapsed := start.Sub(me.state.LastUpdateTime).Hours()
	me.mu.Unlock()

	if elapsed < me.refreshAfterHours {
		return
	}

	logger.Info("Running scheduled memory cycle", "hours_since_update", elapsed)
	me.RefreshPopularContent(ctx)

	if elapsed >= me.cleanupAfterHours {
		if _, err := me.CleanupOutdated(ctx, me.maxContentAgeDays); err != nil {
			logger.Error("Scheduled cleanup failed", "error", err)
		}
	}

	if elapsed >= me.consolidateAfterHours {
		if _, err := me.ConsolidateDuplicates(ctx); err != nil {
			logger.Error("Scheduled consolidation failed", "error", err)
		}
	}

	if me.metrics != nil {
		me.metrics.RecordMemoryCycle(time.Since(start).Seconds())
	}
}

// Stats snapshots the engine's state for the stats endpoint.
func (me *MemoryEngine) Stats() models.MemoryStats {
	me.mu.Lock()
	defer me.mu.Unlock()

	terms := make([]models.TermCount, 0, len(me.state.SearchPatterns))
	for term, count := range me.state.SearchPatterns {
		terms = append(terms, models.TermCount{Term: term, Count: count})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})
	if len(terms) > 5 {
		terms = terms[:5]
	}

	popular := make([]string, len(me.state.PopularTopics))
	copy(popular, me.state.PopularTopics)

	active := false
	if me.backgroundActive != nil {
		active = me.backgroundActive()
	}

	return models.MemoryStats{
		TrackedDocuments:      len(me.state.DocumentChecksums),
		SearchPatternsTracked: len(me.state.SearchPatterns),
		PopularTopics:         popular,
		HoursSinceLastUpdate:  me.now().Sub(me.state.LastUpdateTime).Hours(),
		BackgroundActive:      active,
		TopSearchTerms:        terms,
	}
}

// loadState reads the persisted state file. Absent or unreadable files
// leave the fresh in-memory state authoritative.
func (me *MemoryEngine) loadState() {
	data, err := os.ReadFile(me.statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Could not load memory state", "path", me.statePath,
				"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		}
		return
	}

	var state models.MemoryState
	if err := json.Unmarshal(data, &state); err != nil {
		logger.Warn("Could not parse memory state", "path", me.statePath,
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		return
	}

	state.Normalize()
	me.state = &state
	logger.Info("Loaded memory state",
		"tracked_documents", len(state.DocumentChecksums),
		"search_patterns", len(state.SearchPatterns))
}

// saveStateLocked writes the state file atomically (temp file + rename).
// Callers must hold me.mu. Failures are logged; in-memory state stays
// authoritative.
func (me *MemoryEngine) saveStateLocked() {
	data, err := json.MarshalIndent(me.state, "", "  ")
	if err != nil {
		logger.Warn("Could not encode memory state",
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		return
	}

	dir := filepath.Dir(me.statePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Warn("Could not create state directory", "dir", dir,
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		return
	}

	tmp, err := os.CreateTemp(dir, ".memory_state-*.json")
	if err != nil {
		logger.Warn("Could not create temp state file",
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		return
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		logger.Warn("Could not write memory state",
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		logger.Warn("Could not close memory state file",
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
		return
	}

	if err := os.Rename(tmp.Name(), me.statePath); err != nil {
		os.Remove(tmp.Name())
		logger.Warn("Could not replace memory state file",
			"error", fmt.Errorf("%w: %v", models.ErrStatePersistenceFailed, err))
	}
}
