package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Documents  DocumentStoreConfig
	Storage    StorageConfig
	Extraction ExtractionConfig
	Embedding  EmbeddingConfig
	VectorDB   VectorDBConfig
	LLM        LLMConfig
	Pipeline   PipelineConfig
	Events     EventsConfig
	Auth       AuthConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Host string
	Port int `validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int `validate:"min=1"`
	MinConns       int `validate:"min=0"`
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type DocumentStoreConfig struct {
	Provider            string `validate:"oneof=postgres badger firestore"`
	BadgerPath          string
	BadgerInMemory      bool
	FirestoreProject    string
	FirestoreCollection string
}

type StorageConfig struct {
	Provider    string `validate:"oneof=supabase gcs"`
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type ExtractionConfig struct {
	// Providers is the registration order; the first extractor that supports an input wins.
	Providers []string `validate:"min=1,dive,oneof=file storage url"`
	URLRate   float64  `validate:"min=0"`
}

type EmbeddingConfig struct {
	Provider    string `validate:"oneof=openai ollama gemini langchain"`
	Model       string
	BaseURL     string
	BatchSize   int     `validate:"min=1"`
	Concurrency int     `validate:"min=1"`
	RPS         float64 `validate:"min=0"`
}

type VectorDBConfig struct {
	Provider string `validate:"oneof=pgvector badger memory"`
}

type LLMConfig struct {
	Provider     string `validate:"oneof=openai anthropic ollama gemini"`
	Model        string
	MaxRetries   int `validate:"min=0"`
	OpenAIKey    string
	AnthropicKey string
	GeminiKey    string
	OllamaURL    string
}

type PipelineConfig struct {
	ChunkSize       int           `validate:"min=1"`
	ChunkOverlap    int           `validate:"min=0,ltfield=ChunkSize"`
	TopK            int           `validate:"min=1"`
	ProviderTimeout time.Duration `validate:"min=1ms"`
	IngestBatchSize int           `validate:"min=1"`
}

type EventsConfig struct {
	SigningSecret string
	DedupTTL      time.Duration
	Dispatch      string `validate:"oneof=queue inline"`
	PoolSize      int    `validate:"min=1"`
}

type AuthConfig struct {
	JWTSecret string
}

type WorkerConfig struct {
	Concurrency int `validate:"min=1"`
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	embedBatch, err := getEnvInt("EMBEDDING_BATCH_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_BATCH_SIZE: %w", err)
	}

	embedConcurrency, err := getEnvInt("EMBEDDING_CONCURRENCY", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_CONCURRENCY: %w", err)
	}

	embedRPS, err := getEnvFloat("EMBEDDING_RPS", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_RPS: %w", err)
	}

	urlRate, err := getEnvFloat("EXTRACTION_URL_RPS", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_URL_RPS: %w", err)
	}

	maxRetries, err := getEnvInt("LLM_MAX_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid LLM_MAX_RETRIES: %w", err)
	}

	chunkSize, err := getEnvInt("CHUNK_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_SIZE: %w", err)
	}

	chunkOverlap, err := getEnvInt("CHUNK_OVERLAP", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP: %w", err)
	}

	topK, err := getEnvInt("RETRIEVAL_TOP_K", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid RETRIEVAL_TOP_K: %w", err)
	}

	timeout, err := getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid PROVIDER_TIMEOUT: %w", err)
	}

	ingestBatch, err := getEnvInt("INGEST_BATCH_SIZE", 64)
	if err != nil {
		return nil, fmt.Errorf("invalid INGEST_BATCH_SIZE: %w", err)
	}

	dedupTTL, err := getEnvDuration("EVENTS_DEDUP_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENTS_DEDUP_TTL: %w", err)
	}

	poolSize, err := getEnvInt("EVENTS_POOL_SIZE", 8)
	if err != nil {
		return nil, fmt.Errorf("invalid EVENTS_POOL_SIZE: %w", err)
	}

	workerConcurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	badgerInMemory, err := getEnvBool("BADGER_IN_MEMORY", false)
	if err != nil {
		return nil, fmt.Errorf("invalid BADGER_IN_MEMORY: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Log: LogConfig{
			Level: strings.ToLower(getEnv("LOG_LEVEL", "info")),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Documents: DocumentStoreConfig{
			Provider:            getEnv("DOCUMENT_STORE", "postgres"),
			BadgerPath:          getEnv("BADGER_PATH", "data/badger"),
			BadgerInMemory:      badgerInMemory,
			FirestoreProject:    getEnv("FIRESTORE_PROJECT_ID", ""),
			FirestoreCollection: getEnv("FIRESTORE_COLLECTION", "documents"),
		},
		Storage: StorageConfig{
			Provider:    getEnv("STORAGE_PROVIDER", "supabase"),
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
		},
		Extraction: ExtractionConfig{
			Providers: getEnvList("EXTRACTION_PROVIDERS", []string{"file", "storage", "url"}),
			URLRate:   urlRate,
		},
		Embedding: EmbeddingConfig{
			Provider:    getEnv("EMBEDDING_PROVIDER", "openai"),
			Model:       getEnv("EMBEDDING_MODEL", ""),
			BaseURL:     getEnv("EMBEDDING_BASE_URL", ""),
			BatchSize:   embedBatch,
			Concurrency: embedConcurrency,
			RPS:         embedRPS,
		},
		VectorDB: VectorDBConfig{
			Provider: getEnv("VECTORDB_PROVIDER", "pgvector"),
		},
		LLM: LLMConfig{
			Provider:     getEnv("LLM_PROVIDER", "openai"),
			Model:        getEnv("LLM_MODEL", "gpt-4o-mini"),
			MaxRetries:   maxRetries,
			OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
			AnthropicKey: getEnv("ANTHROPIC_API_KEY", ""),
			GeminiKey:    getEnv("GEMINI_API_KEY", ""),
			OllamaURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
		},
		Pipeline: PipelineConfig{
			ChunkSize:       chunkSize,
			ChunkOverlap:    chunkOverlap,
			TopK:            topK,
			ProviderTimeout: timeout,
			IngestBatchSize: ingestBatch,
		},
		Events: EventsConfig{
			SigningSecret: getEnv("EVENTS_SIGNING_SECRET", ""),
			DedupTTL:      dedupTTL,
			Dispatch:      getEnv("EVENTS_DISPATCH", "queue"),
			PoolSize:      poolSize,
		},
		Worker: WorkerConfig{
			Concurrency: workerConcurrency,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks field constraints and the env vars each selected provider needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var missing []string
	needsPostgres := c.Documents.Provider == "postgres" || c.VectorDB.Provider == "pgvector"
	if needsPostgres && c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Documents.Provider == "firestore" && c.Documents.FirestoreProject == "" {
		missing = append(missing, "FIRESTORE_PROJECT_ID")
	}
	for _, p := range []string{c.LLM.Provider, c.Embedding.Provider} {
		switch p {
		case "openai":
			if c.LLM.OpenAIKey == "" {
				missing = append(missing, "OPENAI_API_KEY")
			}
		case "anthropic":
			if c.LLM.AnthropicKey == "" {
				missing = append(missing, "ANTHROPIC_API_KEY")
			}
		case "gemini":
			if c.LLM.GeminiKey == "" {
				missing = append(missing, "GEMINI_API_KEY")
			}
		case "langchain":
			if c.Embedding.BaseURL == "" {
				missing = append(missing, "EMBEDDING_BASE_URL")
			}
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(dedupe(missing), ", "))
	}
	return nil
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
