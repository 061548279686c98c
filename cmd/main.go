package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"knowledge-engine/internal/aggregator"
	"knowledge-engine/internal/ai"
	"knowledge-engine/internal/config"
	"knowledge-engine/internal/logger"
	"knowledge-engine/internal/telemetry"
	"knowledge-engine/internal/vectorindex"
	"knowledge-engine/middleware"
	"knowledge-engine/routes"
	"knowledge-engine/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is best-effort; the engine runs without a collector
	shutdownTracer, err := telemetry.InitTracer("knowledge-engine")
	if err != nil {
		logger.Warn("Tracer init failed, continuing without tracing", "error", err)
	} else {
		defer shutdownTracer()
	}

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics init failed, continuing without metrics", "error", err)
	}

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()

	// Redis backs the retrieval cache and the API rate limiter
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

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
	cache := services.NewRetrievalCache(rdb, cfg.CacheTTL)
	retriever := services.NewRetriever(embedder, index, gatherer, documents, cache, engine, metrics, cfg.TopKResults)

	scheduler := services.NewMemoryScheduler(engine, cfg.SchedulerInterval)
	if err := scheduler.Start(); err != nil {
		log.Fatal("Failed to start memory scheduler:", err)
	}
	defer scheduler.Stop()

	// Async ingestion goes through the worker
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Tracing())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.RateLimit(rdb, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	routes.SetupSearchRoutes(router, retriever)
	routes.SetupDocumentRoutes(router, engine, index, asynqClient)
	routes.SetupStatsRoutes(router, engine, index, asynqClient)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
