package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"knowledge-engine/internal/aggregator"
	"knowledge-engine/internal/ai"
	"knowledge-engine/internal/config"
	"knowledge-engine/internal/logger"
	"knowledge-engine/internal/queue"
	"knowledge-engine/internal/telemetry"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics init failed, continuing without metrics", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(context.Background())

	embedder, err := ai.NewEmbeddingClient(cfg)
	if err != nil {
		log.Fatal("Failed to initialize embedding client:", err)
	}
	defer embedder.Close()

	index := vectorindex.NewIndex(mongoClient, cfg)

	var gatherer aggregator.Gatherer
	if cfg.ExternalContentEnabled {
		gatherer = aggregator.New(cfg.ExternalContentTimeout, 3)
	}

	chunker := services.NewTextChunker(cfg)
	documents := services.NewDocumentService(chunker, embedder, index, metrics)
	engine := services.NewMemoryEngine(cfg, index, gatherer, documents, metrics)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 7,
				"low":     3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(documents, engine)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestDocument, processor.HandleIngestDocument)
	mux.HandleFunc(queue.TaskRefreshTopic, processor.HandleRefreshTopic)

	logger.Info("Starting ingestion worker", "redis", redisOpt.Addr, "concurrency", 10)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
