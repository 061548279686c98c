// Package aggregator fetches external documents to backfill thin retrieval
// results. Every fetch failure degrades to fewer documents rather than an
// error reaching the caller's hot path.
package aggregator

import (
	"context"
	"regexp"
	"strings"
	"time"

	"knowledge-engine/internal/logger"
	"knowledge-engine/models"
)

// Gatherer produces external documents for a topic.
type Gatherer interface {
	Gather(ctx context.Context, topic string) ([]models.Document, error)
}

type articleFetcher interface {
	FetchArticle(ctx context.Context, title string) (*models.Document, error)
}

type pageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*models.Document, error)
}

// Articles shorter than this are treated as summary stubs and enriched
// from their source page.
const fullTextThreshold = 600

// Aggregator gathers Wikipedia articles for a query and its related
// terms, pulling the full source page when the article text is a stub.
type Aggregator struct {
	wiki    articleFetcher
	pages   pageFetcher
	timeout time.Duration
	maxDocs int
}

func New(timeout time.Duration, maxDocs int) *Aggregator {
	if maxDocs <= 0 {
		maxDocs = 3
	}
	return &Aggregator{
		wiki:    NewWikipediaClient(timeout),
		pages:   NewWebPageFetcher(timeout),
		timeout: timeout,
		maxDocs: maxDocs,
	}
}

// Gather fetches up to maxDocs documents for topic. Individual article
// failures are logged and skipped; the error is non-nil only when nothing
// could be fetched at all.
func (a *Aggregator) Gather(ctx context.Context, topic string) ([]models.Document, error) {
	titles := append([]string{topic}, RelatedTerms(topic)...)

	var docs []models.Document
	var lastErr error
	for _, title := range titles {
		if len(docs) >= a.maxDocs {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		doc, err := a.wiki.FetchArticle(ctx, title)
		if err != nil {
			logger.Debug("External fetch skipped", "title", title, "error", err)
			lastErr = err
			continue
		}
		a.enrich(ctx, doc)
		docs = append(docs, *doc)
	}

	if len(docs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return docs, nil
}

// enrich replaces a stub article's text with the readable text of its
// source page. A page fetch failure keeps the stub.
func (a *Aggregator) enrich(ctx context.Context, doc *models.Document) {
	if a.pages == nil || doc.SourceURL == "" || len(doc.Content) >= fullTextThreshold {
		return
	}

	page, err := a.pages.Fetch(ctx, doc.SourceURL)
	if err != nil {
		logger.Debug("Full page fetch skipped", "url", doc.SourceURL, "error", err)
		return
	}
	if len(page.Content) > len(doc.Content) {
		doc.Content = page.Content
		doc.Topic = ExtractTopic(page.Content)
	}
}

var topicWordRe = regexp.MustCompile(`\b[a-z]+\b`)

// knownTopics are checked first when classifying content.
var knownTopics = []string{
	"artificial intelligence", "machine learning", "climate change",
	"renewable energy", "space exploration", "quantum computing",
	"biotechnology", "cybersecurity", "blockchain", "robotics",
}

// ExtractTopic guesses the dominant topic of a text. It prefers a known
// topic phrase, then falls back to the most frequent long word of the
// opening paragraph.
func ExtractTopic(content string) string {
	lower := strings.ToLower(content)
	for _, topic := range knownTopics {
		if strings.Contains(lower, topic) {
			return topic
		}
	}

	firstParagraph := lower
	if idx := strings.Index(firstParagraph, "\n"); idx >= 0 {
		firstParagraph = firstParagraph[:idx]
	}
	if len(firstParagraph) > 500 {
		firstParagraph = firstParagraph[:500]
	}

	freq := make(map[string]int)
	for _, word := range topicWordRe.FindAllString(firstParagraph, -1) {
		if len(word) > 4 {
			freq[word]++
		}
	}

	best, bestCount := "", 0
	for word, count := range freq {
		if count > bestCount || (count == bestCount && word < best) {
			best, bestCount = word, count
		}
	}
	if best == "" {
		return "general"
	}
	return best
}
