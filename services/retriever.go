package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledge-engine/internal/ai"
	"knowledge-engine/internal/aggregator"
	"knowledge-engine/internal/logger"
	"knowledge-engine/internal/telemetry"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/models"
)

// SearchObserver receives search traffic for popularity tracking. The
// memory engine implements it; tests use a no-op.
type SearchObserver interface {
	TrackSearch(terms []string, resultCount int)
}

// Retriever runs the full query pipeline: embed, over-fetch from the
// index, backfill from external sources when thin, dedup, rerank and
// summarize.
type Retriever struct {
	embedder   ai.Embedder
	index      vectorindex.Store
	gatherer   aggregator.Gatherer
	documents  *DocumentService
	dedup      *Deduplicator
	reranker   *Reranker
	summarizer *ContextSummarizer
	cache      *RetrievalCache
	observer   SearchObserver
	metrics    *telemetry.Metrics

	defaultK int
}

func NewRetriever(
	embedder ai.Embedder,
	index vectorindex.Store,
	gatherer aggregator.Gatherer,
	documents *DocumentService,
	cache *RetrievalCache,
	observer SearchObserver,
	metrics *telemetry.Metrics,
	defaultK int,
) *Retriever {
	if defaultK <= 0 {
		defaultK = 5
	}
	return &Retriever{
		embedder:   embedder,
		index:      index,
		gatherer:   gatherer,
		documents:  documents,
		dedup:      NewDeduplicator(),
		reranker:   NewReranker(),
		summarizer: NewContextSummarizer(),
		cache:      cache,
		observer:   observer,
		metrics:    metrics,
		defaultK:   defaultK,
	}
}

// Retrieve answers one query. A failed query embedding or index query
// yields an empty context with Failed set rather than an error; per-item
// failures during external backfill are dropped silently.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, includeExternal, rerank bool) *models.RetrievalContext {
	tracer := otel.Tracer("retriever")
	ctx, span := tracer.Start(ctx, "retriever.retrieve")
	defer span.End()

	if k <= 0 {
		k = r.defaultK
	}
	span.SetAttributes(
		attribute.Int("retrieval.k", k),
		attribute.Bool("retrieval.external", includeExternal),
		attribute.Bool("retrieval.rerank", rerank),
	)

	start := time.Now()
	defer func() {
		if r.metrics != nil {
			r.metrics.RecordSearch(time.Since(start).Seconds(), includeExternal, k)
		}
	}()

	if cached, ok := r.cache.Get(ctx, query, k, includeExternal, rerank); ok {
		span.SetAttributes(attribute.Bool("retrieval.cache_hit", true))
		r.track(query, len(cached.Results))
		return cached
	}

	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logger.Error("Query embedding failed", "query", query, "error", err)
		return failedContext(query, "embedding unavailable for query")
	}

	initial, err := r.index.Query(ctx, queryVector, k*2)
	if err != nil {
		logger.Error("Index query failed", "query", query, "error", err)
		return failedContext(query, "vector index unavailable")
	}

	var external []models.SearchResult
	if includeExternal && len(initial) < k {
		external = r.fetchExternal(ctx, query, queryVector)
	}

	all := append(initial, external...)
	deduped := r.dedup.Dedup(all)

	var final []models.SearchResult
	reranked := false
	if rerank && len(deduped) > k {
		final = r.reranker.Rerank(query, deduped)[:k]
		reranked = true
	} else {
		final = deduped
		if len(final) > k {
			final = final[:k]
		}
	}

	rctx := &models.RetrievalContext{
		Query:               query,
		Results:             final,
		ContextSummary:      r.summarizer.Summarize(query, final),
		TotalResultsFound:   len(all),
		ExternalSourcesUsed: len(external),
		Reranked:            reranked,
	}

	r.cache.Set(ctx, k, includeExternal, rerank, rctx)
	r.track(query, len(final))
	return rctx
}

// fetchExternal gathers fresh documents for the query's key terms, scores
// them against the query vector and persists them so future queries hit
// the index directly. All failures degrade to fewer candidates.
func (r *Retriever) fetchExternal(ctx context.Context, query string, queryVector []float32) []models.SearchResult {
	if r.gatherer == nil {
		return nil
	}

	topic := strings.Join(ExtractKeyTerms(query), " ")
	if topic == "" {
		topic = query
	}

	docs, err := r.gatherer.Gather(ctx, topic)
	if err != nil {
		logger.Warn("External content fetch failed", "topic", topic, "error", err)
		return nil
	}
	if len(docs) == 0 {
		return nil
	}

	if r.documents != nil {
		landed := r.documents.IngestBatch(ctx, docs)
		logger.Info("Persisted external documents", "topic", topic, "documents", len(landed))
	}

	var results []models.SearchResult
	for _, doc := range docs {
		lead := truncateRunes(doc.Content, 1000)

		vector, err := r.embedder.Embed(ctx, lead)
		if err != nil {
			logger.Debug("Skipping external candidate, embedding failed", "document_id", doc.ID, "error", err)
			continue
		}

		similarity := ai.CosineSimilarity(queryVector, vector)
		preview := truncateRunes(doc.Content, 500)

		results = append(results, models.SearchResult{
			ChunkID: doc.ID,
			Content: doc.Content,
			Metadata: models.ChunkMetadata{
				DocumentID:     doc.ID,
				Title:          doc.Title,
				Author:         doc.Author,
				Date:           doc.Date,
				Topic:          doc.Topic,
				Type:           doc.Type,
				SourceURL:      doc.SourceURL,
				ChunkText:      preview,
				ExternalSource: true,
			},
			Distance:        1 - similarity,
			SimilarityScore: similarity,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].SimilarityScore > results[j].SimilarityScore
	})
	return results
}

func (r *Retriever) track(query string, resultCount int) {
	if r.observer == nil {
		return
	}
	r.observer.TrackSearch(ExtractKeyTerms(query), resultCount)
}

func failedContext(query, reason string) *models.RetrievalContext {
	return &models.RetrievalContext{
		Query:          query,
		Results:        []models.SearchResult{},
		ContextSummary: "No relevant context found for the query.",
		Failed:         true,
		FailureReason:  reason,
	}
}
