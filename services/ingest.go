package services

import (
	"context"
	"fmt"

	"knowledge-engine/internal/ai"
	"knowledge-engine/internal/logger"
	"knowledge-engine/internal/telemetry"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/models"
)

// DocumentService turns raw documents into embedded chunks in the vector
// index. Per-chunk failures (embedding or index write) skip the chunk and
// continue; the caller learns how many chunks actually landed.
type DocumentService struct {
	chunker  *TextChunker
	embedder ai.Embedder
	index    vectorindex.Store
	metrics  *telemetry.Metrics
}

func NewDocumentService(chunker *TextChunker, embedder ai.Embedder, index vectorindex.Store, metrics *telemetry.Metrics) *DocumentService {
	return &DocumentService{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		metrics:  metrics,
	}
}

// IngestDocument validates, chunks, embeds and stores one document.
// Returns the number of chunks written.
func (ds *DocumentService) IngestDocument(ctx context.Context, doc models.Document) (int, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	chunks := ds.chunker.Chunk(doc.Content)
	landed := 0

	for i, text := range chunks {
		chunkID := models.ChunkID(doc.ID, i)

		vector, err := ds.embedder.Embed(ctx, text)
		if err != nil {
			logger.Warn("Skipping chunk, embedding failed", "chunk_id", chunkID, "error", err)
			if ds.metrics != nil {
				ds.metrics.RecordEmbeddingCall(false)
			}
			continue
		}
		if ds.metrics != nil {
			ds.metrics.RecordEmbeddingCall(true)
		}

		chunk := models.Chunk{
			ChunkID:   chunkID,
			Text:      text,
			Embedding: vector,
			Metadata:  chunkMetadata(doc, i, text),
		}

		if err := ds.index.Add(ctx, chunk); err != nil {
			logger.Warn("Skipping chunk, index write failed", "chunk_id", chunkID, "error", err)
			continue
		}
		landed++
	}

	if ds.metrics != nil && landed > 0 {
		ds.metrics.RecordIngest(landed, string(doc.Type))
	}

	logger.Info("Document ingested", "document_id", doc.ID, "chunks_written", landed, "chunks_total", len(chunks))
	return landed, nil
}

// ReplaceDocument deletes a document's chunks and re-ingests it. Used by
// the memory engine when a tracked document's content changes.
func (ds *DocumentService) ReplaceDocument(ctx context.Context, doc models.Document) (int, error) {
	if err := doc.Validate(); err != nil {
		return 0, err
	}

	removed, err := ds.index.DeleteByDocumentID(ctx, doc.ID)
	if err != nil {
		return 0, fmt.Errorf("replace document %s: %w", doc.ID, err)
	}
	logger.Debug("Removed stale chunks before reinsert", "document_id", doc.ID, "removed", removed)

	return ds.IngestDocument(ctx, doc)
}

// IngestBatch ingests documents independently. A malformed document is
// skipped without affecting its batch siblings.
func (ds *DocumentService) IngestBatch(ctx context.Context, docs []models.Document) map[string]int {
	landed := make(map[string]int, len(docs))
	for _, doc := range docs {
		n, err := ds.IngestDocument(ctx, doc)
		if err != nil {
			logger.Warn("Batch document rejected", "document_id", doc.ID, "error", err)
			continue
		}
		landed[doc.ID] = n
	}
	return landed
}

func chunkMetadata(doc models.Document, index int, text string) models.ChunkMetadata {
	preview := truncateRunes(text, 500)
	return models.ChunkMetadata{
		DocumentID: doc.ID,
		ChunkIndex: index,
		Title:      doc.Title,
		Author:     doc.Author,
		Date:       doc.Date,
		Topic:      doc.Topic,
		Type:       doc.Type,
		SourceURL:  doc.SourceURL,
		ChunkText:  preview,
	}
}
