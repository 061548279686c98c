package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	SearchCounter       metric.Int64Counter
	SearchDuration      metric.Float64Histogram
	ChunksIngested      metric.Int64Counter
	EmbeddingCalls      metric.Int64Counter
	MemoryCycleDuration metric.Float64Histogram
	ChunksEvicted       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledge-engine")

	searchCounter, err := meter.Int64Counter(
		"retrieval.searches.total",
		metric.WithDescription("Total retrieval requests"),
	)
	if err != nil {
		return nil, err
	}

	searchDuration, err := meter.Float64Histogram(
		"retrieval.search.duration",
		metric.WithDescription("Retrieval pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksIngested, err := meter.Int64Counter(
		"ingest.chunks.total",
		metric.WithDescription("Total chunks written to the vector index"),
	)
	if err != nil {
		return nil, err
	}

	embeddingCalls, err := meter.Int64Counter(
		"embedding.calls.total",
		metric.WithDescription("Total embedding provider calls"),
	)
	if err != nil {
		return nil, err
	}

	memoryCycleDuration, err := meter.Float64Histogram(
		"memory.cycle.duration",
		metric.WithDescription("Memory engine cycle duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksEvicted, err := meter.Int64Counter(
		"memory.chunks.evicted",
		metric.WithDescription("Chunks removed by cleanup and consolidation"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		SearchCounter:       searchCounter,
		SearchDuration:      searchDuration,
		ChunksIngested:      chunksIngested,
		EmbeddingCalls:      embeddingCalls,
		MemoryCycleDuration: memoryCycleDuration,
		ChunksEvicted:       chunksEvicted,
	}, nil
}

// RecordSearch records one retrieval request
func (m *Metrics) RecordSearch(duration float64, external bool, resultCount int) {
	attrs := []attribute.KeyValue{
		attribute.Bool("retrieval.external", external),
		attribute.Int("retrieval.results", resultCount),
	}

	m.SearchCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.SearchDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIngest records chunks written for one document
func (m *Metrics) RecordIngest(chunks int, docType string) {
	attrs := []attribute.KeyValue{
		attribute.String("document.type", docType),
	}

	m.ChunksIngested.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
}

// RecordEmbeddingCall records one embedding provider call
func (m *Metrics) RecordEmbeddingCall(success bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("embedding.success", success),
	}

	m.EmbeddingCalls.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordMemoryCycle records one background maintenance cycle
func (m *Metrics) RecordMemoryCycle(duration float64) {
	m.MemoryCycleDuration.Record(context.Background(), duration)
}

// RecordEviction records chunks removed by maintenance
func (m *Metrics) RecordEviction(count int, reason string) {
	attrs := []attribute.KeyValue{
		attribute.String("eviction.reason", reason),
	}

	m.ChunksEvicted.Add(context.Background(), int64(count), metric.WithAttributes(attrs...))
}
