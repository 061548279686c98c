package models

import (
	"fmt"
	"strings"
)

// ContentType tags the origin/kind of a document. Unknown values are
// accepted at the API boundary as user-defined types; the reranker only
// boosts the recognized ones.
type ContentType string

const (
	TypeResearchPaper    ContentType = "research_paper"
	TypeNewsArticle      ContentType = "news_article"
	TypeTechnicalReport  ContentType = "technical_report"
	TypeSummary          ContentType = "summary"
	TypeWikipediaArticle ContentType = "wikipedia_article"
	TypeWebPage          ContentType = "web_page"
)

// KnownContentTypes lists the content types with defined ranking behavior.
func KnownContentTypes() []ContentType {
	return []ContentType{
		TypeResearchPaper,
		TypeNewsArticle,
		TypeTechnicalReport,
		TypeSummary,
		TypeWikipediaArticle,
		TypeWebPage,
	}
}

// Document is the unit of ingestion. Content is raw text; chunking and
// embedding happen downstream.
type Document struct {
	ID        string      `json:"id" bson:"id"`
	Title     string      `json:"title" bson:"title"`
	Content   string      `json:"content" bson:"content"`
	Author    string      `json:"author" bson:"author"`
	Date      string      `json:"date" bson:"date"` // ISO form, e.g. 2025-03-14
	Topic     string      `json:"topic" bson:"topic"`
	Type      ContentType `json:"type" bson:"type"`
	SourceURL string      `json:"source_url,omitempty" bson:"source_url,omitempty"`
}

// Validate rejects documents the pipeline cannot ingest.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: missing document id", ErrMalformedDocument)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("%w: empty content for document %s", ErrMalformedDocument, d.ID)
	}
	return nil
}

// ChunkMetadata is carried alongside every stored chunk so search results
// can be ranked and summarized without a second lookup.
type ChunkMetadata struct {
	DocumentID     string      `json:"document_id" bson:"document_id"`
	ChunkIndex     int         `json:"chunk_index" bson:"chunk_index"`
	Title          string      `json:"title" bson:"title"`
	Author         string      `json:"author" bson:"author"`
	Date           string      `json:"date" bson:"date"`
	Topic          string      `json:"topic" bson:"topic"`
	Type           ContentType `json:"type" bson:"type"`
	SourceURL      string      `json:"source_url,omitempty" bson:"source_url,omitempty"`
	ChunkText      string      `json:"chunk_text" bson:"chunk_text"` // first 500 chars, preview
	ExternalSource bool        `json:"external_source,omitempty" bson:"external_source,omitempty"`
}

// Chunk is the atomic unit of embedding and storage.
type Chunk struct {
	ChunkID   string        `json:"chunk_id" bson:"chunk_id"`
	Text      string        `json:"text" bson:"text"`
	Embedding []float32     `json:"embedding,omitempty" bson:"vector,omitempty"`
	Metadata  ChunkMetadata `json:"metadata" bson:"metadata"`
}

// ChunkID builds the canonical chunk identifier for a document ordinal.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// SearchResult is one retrieval candidate. Distance is the index's native
// dissimilarity; SimilarityScore is always 1 - distance.
type SearchResult struct {
	ChunkID         string        `json:"chunk_id"`
	Content         string        `json:"content"`
	Metadata        ChunkMetadata `json:"metadata"`
	Distance        float64       `json:"distance"`
	SimilarityScore float64       `json:"similarity_score"`
	AdvancedScore   float64       `json:"advanced_score,omitempty"`
}

// RetrievalContext is the full answer to one retrieve call. It is owned by
// the caller for the duration of the request and never persisted.
type RetrievalContext struct {
	Query               string         `json:"query"`
	Results             []SearchResult `json:"results"`
	ContextSummary      string         `json:"context_summary"`
	TotalResultsFound   int            `json:"total_results_found"`
	ExternalSourcesUsed int            `json:"external_sources_used"`
	Reranked            bool           `json:"reranked"`
	Failed              bool           `json:"failed,omitempty"`
	FailureReason       string         `json:"failure_reason,omitempty"`
}
