package ai

import (
	"context"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"knowledge-engine/internal/config"
	"knowledge-engine/models"
)

// Embedder maps text to a fixed-length vector. Implementations may fail or
// be unavailable; callers decide whether that is fatal.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingClient is the Gemini-backed Embedder. Calls go through a
// client-side rate limiter and a circuit breaker so a degraded provider
// fails fast instead of stalling the retrieval path.
type EmbeddingClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewEmbeddingClient(cfg *config.Config) (*EmbeddingClient, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	rpm := cfg.EmbeddingRPM
	if rpm <= 0 {
		rpm = 100
	}
	limiter := rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), rpm/10+1)

	return &EmbeddingClient{
		client:  client,
		model:   cfg.GoogleEmbeddingsModel,
		timeout: cfg.EmbeddingTimeout,
		breaker: breaker,
		limiter: limiter,
	}, nil
}

// Embed returns the embedding vector for text. Failures and timeouts are
// wrapped as models.ErrEmbeddingUnavailable.
func (ec *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	tracer := otel.Tracer("embedding-client")
	ctx, span := tracer.Start(ctx, "embedding.embed")
	defer span.End()

	span.SetAttributes(
		attribute.Int("embedding.text_length", len(text)),
		attribute.String("embedding.model", ec.model),
	)

	if err := ec.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("embedding.rate_limited", true))
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}

	if ec.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ec.timeout)
		defer cancel()
	}

	// Newlines hurt embedding quality on most providers
	cleaned := strings.ReplaceAll(text, "\n", " ")

	result, err := ec.breaker.Execute(func() (interface{}, error) {
		model := ec.client.EmbeddingModel(ec.model)
		resp, err := model.EmbedContent(ctx, genai.Text(cleaned))
		if err != nil {
			return nil, err
		}
		if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return resp.Embedding.Values, nil
	})
	if err != nil {
		span.SetAttributes(attribute.Bool("embedding.error", true))
		return nil, fmt.Errorf("%w: %v", models.ErrEmbeddingUnavailable, err)
	}

	span.SetAttributes(attribute.Bool("embedding.success", true))
	return result.([]float32), nil
}

// Close releases the underlying Gemini client.
func (ec *EmbeddingClient) Close() error {
	if ec.client != nil {
		return ec.client.Close()
	}
	return nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 when either vector has zero norm or lengths differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
