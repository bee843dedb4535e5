package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string

	// BlobBackend selects "local" or "s3".
	BlobBackend  string
	StorageRoot  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	MaxFileSize int64

	ChunkSize    int
	ChunkOverlap int

	// EmbedBackend selects "gemini" or "random".
	EmbedBackend     string
	AIAPIKey         string
	EmbedModel       string
	EmbedDim         int
	EmbedConcurrency int
	EmbedMaxAttempts int

	// VectorBackend selects "qdrant" or "memory".
	VectorBackend      string
	VectorDBURL        string
	VectorDBAPIKey     string
	VectorDBCollection string

	Workers int
}

// LoadConfig loads the environment variables and returns the config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		BlobBackend:  getEnv("BLOB_BACKEND", "local"),
		StorageRoot:  getEnv("STORAGE_ROOT", "uploads"),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),
		BucketName:   getEnv("BUCKET_NAME", "docpipe-docs"),

		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 10*1024*1024),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 500),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 50),

		EmbedBackend:     getEnv("EMBED_BACKEND", "gemini"),
		AIAPIKey:         getEnv("GEMINI_API_KEY", ""),
		EmbedModel:       getEnv("EMBED_MODEL", "text-embedding-004"),
		EmbedDim:         getEnvInt("EMBED_DIM", 768),
		EmbedConcurrency: getEnvInt("EMBED_CONCURRENCY", 4),
		EmbedMaxAttempts: getEnvInt("EMBED_MAX_ATTEMPTS", 3),

		VectorBackend:      getEnv("VECTOR_BACKEND", "qdrant"),
		VectorDBURL:        getEnv("VECTOR_DB_URL", "http://localhost:6333"),
		VectorDBAPIKey:     getEnv("VECTOR_DB_API_KEY", ""),
		VectorDBCollection: getEnv("VECTOR_DB_COLLECTION", "documents"),

		Workers: getEnvInt("INGEST_WORKERS", 2),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.EmbedBackend == "gemini" && cfg.AIAPIKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
