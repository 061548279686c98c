package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Embeddings configuration
	GeminiAPIKey          string
	GoogleEmbeddingsModel string
	EmbeddingTimeout      time.Duration
	EmbeddingRPM          int

	// Vector index
	ChunkCollection  string
	VectorIndexName  string
	VectorDimensions int

	// Chunking / retrieval
	ChunkSize    int
	ChunkOverlap int
	TopKResults  int

	// Memory engine
	MemoryStateFile       string
	PopularityThreshold   int
	SchedulerInterval     time.Duration
	RefreshAfterHours     float64
	CleanupAfterHours     float64
	ConsolidateAfterHours float64
	MaxContentAgeDays     int

	// External content
	ExternalContentEnabled bool
	ExternalContentTimeout time.Duration

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Retrieval cache
	CacheTTL time.Duration

	// API rate limiting
	RateLimitReqs   int
	RateLimitWindow int
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/knowledge_engine"),
		DBName:   getEnv("DB_NAME", "knowledge_engine"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		GeminiAPIKey:          getEnv("GEMINI_API_KEY", ""),
		GoogleEmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbeddingTimeout:      time.Duration(getEnvInt("EMBEDDING_TIMEOUT_SECONDS", 30)) * time.Second,
		EmbeddingRPM:          getEnvInt("EMBEDDING_RPM", 100),

		ChunkCollection:  getEnv("CHUNK_COLLECTION", "knowledge_chunks"),
		VectorIndexName:  getEnv("MONGODB_VECTOR_INDEX", "knowledge_chunks_vector"),
		VectorDimensions: getEnvInt("VECTOR_DIM", 768),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		TopKResults:  getEnvInt("TOP_K_RESULTS", 5),

		MemoryStateFile:       getEnv("MEMORY_STATE_FILE", "./data/memory_state.json"),
		PopularityThreshold:   getEnvInt("POPULARITY_THRESHOLD", 5),
		SchedulerInterval:     time.Duration(getEnvInt("SCHEDULER_INTERVAL_MINUTES", 60)) * time.Minute,
		RefreshAfterHours:     getEnvFloat64("REFRESH_AFTER_HOURS", 24),
		CleanupAfterHours:     getEnvFloat64("CLEANUP_AFTER_HOURS", 168),
		ConsolidateAfterHours: getEnvFloat64("CONSOLIDATE_AFTER_HOURS", 720),
		MaxContentAgeDays:     getEnvInt("MAX_CONTENT_AGE_DAYS", 90),

		ExternalContentEnabled: getEnvBool("ENABLE_EXTERNAL_CONTENT", true),
		ExternalContentTimeout: time.Duration(getEnvInt("EXTERNAL_CONTENT_TIMEOUT", 10)) * time.Second,

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CacheTTL: time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("CHUNK_SIZE must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
