package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/rodneygagnon/qckstrt/internal/api/handlers"
	"github.com/rodneygagnon/qckstrt/internal/cache"
	"github.com/rodneygagnon/qckstrt/internal/config"
	"github.com/rodneygagnon/qckstrt/internal/database"
	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/embedding"
	"github.com/rodneygagnon/qckstrt/internal/events"
	"github.com/rodneygagnon/qckstrt/internal/extraction"
	"github.com/rodneygagnon/qckstrt/internal/guardrails"
	"github.com/rodneygagnon/qckstrt/internal/ingestion"
	"github.com/rodneygagnon/qckstrt/internal/llm"
	"github.com/rodneygagnon/qckstrt/internal/queue"
	"github.com/rodneygagnon/qckstrt/internal/rag"
	"github.com/rodneygagnon/qckstrt/internal/storage"
	"github.com/rodneygagnon/qckstrt/internal/vectorstore"
	"github.com/rodneygagnon/qckstrt/pkg/chunker"
)

const maxQueryLength = 4000

// App holds every long-lived component built from one Config. The API, the
// worker and the CLI all start from New.
type App struct {
	Config       *config.Config
	Documents    *document.Service
	Pipeline     *ingestion.Pipeline
	Adapter      *events.Adapter
	Dispatcher   events.Dispatcher
	Orchestrator *rag.Orchestrator
	Verifier     events.Verifier
	Checks       map[string]handlers.Check

	pool    *pgxpool.Pool
	kv      *badger.DB
	redis   *redis.Client
	closers []func() error
	logger  *slog.Logger
}

func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		Config: cfg,
		Checks: make(map[string]handlers.Check),
		logger: slog.Default().With("component", "app"),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	docStore, err := a.documentStore(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := a.vectorStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Documents = document.NewService(docStore, vectors)

	registry, err := a.extractors(ctx)
	if err != nil {
		return nil, err
	}

	gw, err := llm.NewGateway(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm gateway: %w", err)
	}
	embedder, err := a.embedder(gw)
	if err != nil {
		return nil, err
	}

	a.Pipeline, err = ingestion.NewPipeline(docStore, registry, embedder, vectors, ingestion.Config{
		Chunking: chunker.ChunkOptions{
			ChunkSize:    cfg.Pipeline.ChunkSize,
			ChunkOverlap: cfg.Pipeline.ChunkOverlap,
		},
		ProviderTimeout: cfg.Pipeline.ProviderTimeout,
		BatchSize:       cfg.Pipeline.IngestBatchSize,
		DefaultBucket:   cfg.Storage.Bucket,
	})
	if err != nil {
		return nil, err
	}

	redisUp := a.connectRedis(ctx)

	switch cfg.Events.Dispatch {
	case "queue":
		if !redisUp {
			return nil, errors.New("queue dispatch requires redis")
		}
		client := queue.NewClient(cfg.Redis)
		a.closers = append(a.closers, client.Close)
		a.Dispatcher = client
	default:
		a.Dispatcher = events.NewInlineDispatcher(a.Pipeline)
	}

	var dedup events.Deduper = events.NewMemoryDeduper(cfg.Events.DedupTTL)
	var queryCache rag.EmbeddingCache
	if redisUp {
		dedup = events.NewRedisDeduper(cache.NewCache(a.redis, "qckstrt:event:"), cfg.Events.DedupTTL)
		queryCache = cache.NewCache(a.redis, "qckstrt:query:")
	}

	a.Adapter, err = events.NewAdapter(docStore, a.Documents, a.Dispatcher, dedup, cfg.Events.PoolSize)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { a.Adapter.Release(); return nil })

	a.Verifier = events.NewVerifier(cfg.Events.SigningSecret)
	if !a.Verifier.Enabled() {
		a.logger.Warn("EVENTS_SIGNING_SECRET is empty, storage notifications are not verified")
	}

	a.Orchestrator = rag.NewOrchestrator(embedder, vectors, gw, rag.Options{
		DefaultTopK: cfg.Pipeline.TopK,
		Timeout:     cfg.Pipeline.ProviderTimeout,
		Cache:       queryCache,
		Guard:       guardrails.Default(maxQueryLength),
	})

	a.logger.Info("app ready",
		"document_store", cfg.Documents.Provider,
		"vector_store", cfg.VectorDB.Provider,
		"extractors", registry.Names(),
		"embedding_provider", cfg.Embedding.Provider,
		"llm_provider", cfg.LLM.Provider,
		"dispatch", cfg.Events.Dispatch,
	)
	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *App) Close() error {
	var errList []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errList = append(errList, err)
		}
	}
	a.closers = nil
	return errors.Join(errList...)
}

func (a *App) postgres(ctx context.Context) (*pgxpool.Pool, error) {
	if a.pool != nil {
		return a.pool, nil
	}
	pool, err := database.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })
	a.Checks["postgres"] = pool.Ping

	if err := database.RunMigrations(ctx, pool, a.Config.Database.MigrationsPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	a.pool = pool
	return pool, nil
}

func (a *App) badger() (*badger.DB, error) {
	if a.kv != nil {
		return a.kv, nil
	}
	db, err := database.OpenBadger(a.Config.Documents.BadgerPath, a.Config.Documents.BadgerInMemory)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	a.Checks["badger"] = func(context.Context) error {
		if db.IsClosed() {
			return errors.New("badger closed")
		}
		return nil
	}
	a.kv = db
	return db, nil
}

func (a *App) documentStore(ctx context.Context) (document.Store, error) {
	cfg := a.Config.Documents
	switch cfg.Provider {
	case "badger":
		db, err := a.badger()
		if err != nil {
			return nil, err
		}
		return document.NewBadgerStore(db), nil
	case "firestore":
		client, err := firestore.NewClient(ctx, cfg.FirestoreProject)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		return document.NewFirestoreStore(client, cfg.FirestoreCollection), nil
	default:
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return document.NewPostgresStore(pool), nil
	}
}

func (a *App) vectorStore(ctx context.Context) (vectorstore.Store, error) {
	switch a.Config.VectorDB.Provider {
	case "badger":
		db, err := a.badger()
		if err != nil {
			return nil, err
		}
		return vectorstore.NewBadgerStore(db), nil
	case "memory":
		return vectorstore.NewMemoryStore(), nil
	default:
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewPgVectorStore(pool), nil
	}
}

func (a *App) objectStorage(ctx context.Context) (storage.Storage, error) {
	cfg := a.Config.Storage
	if cfg.Provider == "gcs" {
		s, err := storage.NewGCSStorage(ctx)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	}
	return storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey), nil
}

// extractors registers extractors in configured order; that order is the
// selection priority.
func (a *App) extractors(ctx context.Context) (*extraction.Registry, error) {
	registry := extraction.NewRegistry()
	for _, name := range a.Config.Extraction.Providers {
		switch name {
		case "file":
			registry.Register(extraction.NewFileExtractor())
		case "storage":
			store, err := a.objectStorage(ctx)
			if err != nil {
				return nil, err
			}
			registry.Register(extraction.NewObjectExtractor(store))
		case "url":
			registry.Register(extraction.NewURLExtractor(a.Config.Extraction.URLRate))
		default:
			return nil, fmt.Errorf("unknown extractor %q", name)
		}
	}
	return registry, nil
}

func (a *App) embedder(gw llm.Gateway) (embedding.Embedder, error) {
	cfg := a.Config.Embedding
	if cfg.Provider == "langchain" {
		return embedding.NewLangChainEmbedder(cfg.BaseURL, a.Config.LLM.OpenAIKey, cfg.Model)
	}
	return embedding.NewService(gw, embedding.Options{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		BatchSize:   cfg.BatchSize,
		Concurrency: cfg.Concurrency,
		RPS:         cfg.RPS,
	}), nil
}

// connectRedis reports whether redis answered a ping. Without it the app
// falls back to in-process dedup and no query cache.
func (a *App) connectRedis(ctx context.Context) bool {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return false
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		a.logger.Warn("redis unavailable, using in-memory dedup", "error", err)
		rdb.Close()
		return false
	}
	a.closers = append(a.closers, rdb.Close)
	a.Checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	a.redis = rdb
	return true
}
