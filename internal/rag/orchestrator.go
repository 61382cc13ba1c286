package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/embedding"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/guardrails"
	"github.com/rodneygagnon/qckstrt/internal/llm"
	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/vectorstore"
)

const (
	DefaultTopK = 5
	MaxTopK     = 50

	systemPrompt = `You are a helpful AI assistant. Answer the user's question based on the provided context.
If the context doesn't contain enough information, say so. Cite the sources you used as [Source N],
where N is the number of the context chunk.`
)

var (
	ErrEmptyQuery    = errors.New("query is required")
	ErrQueryRejected = errors.New("query rejected")
)

// QueryGuard screens a question before any provider is called.
type QueryGuard interface {
	Check(ctx context.Context, text string) (*guardrails.Result, error)
}

// EmbeddingCache stores query vectors between identical questions.
type EmbeddingCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Request struct {
	Query string       `json:"query"`
	Scope models.Scope `json:"scope"`
	TopK  int          `json:"topK,omitempty"`
}

type Source struct {
	DocumentID uuid.UUID `json:"documentId"`
	Content    string    `json:"content"`
	Score      float64   `json:"score"`
}

type Answer struct {
	Answer   string    `json:"answer"`
	Sources  []Source  `json:"sources"`
	Grounded bool      `json:"grounded"`
	Provider string    `json:"provider,omitempty"`
	Model    string    `json:"model,omitempty"`
	Usage    llm.Usage `json:"usage"`
}

type Options struct {
	DefaultTopK int
	Timeout     time.Duration
	Cache       EmbeddingCache
	CacheTTL    time.Duration
	Guard       QueryGuard
}

// Orchestrator answers a question from the caller's own documents: embed the
// query, search within scope, keep the best chunk per document, then make one
// generation call.
type Orchestrator struct {
	embedder  embedding.Embedder
	vectors   vectorstore.Store
	generator llm.Generator
	opts      Options
	logger    *slog.Logger
}

func NewOrchestrator(embedder embedding.Embedder, vectors vectorstore.Store, generator llm.Generator, opts Options) *Orchestrator {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = DefaultTopK
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Orchestrator{
		embedder:  embedder,
		vectors:   vectors,
		generator: generator,
		opts:      opts,
		logger:    slog.Default().With("component", "rag"),
	}
}

func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Answer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if req.Scope.Empty() {
		return nil, errs.VectorDB("query", vectorstore.ErrUnscopedQuery)
	}
	if o.opts.Guard != nil {
		res, err := o.opts.Guard.Check(ctx, query)
		if err != nil {
			return nil, err
		}
		if !res.Allowed {
			o.logger.Warn("query rejected", "reason", res.Reason, "flags", res.Flags)
			return nil, fmt.Errorf("%w: %s", ErrQueryRejected, res.Reason)
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = o.opts.DefaultTopK
	}
	topK = min(topK, MaxTopK)

	vector, err := o.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := o.search(ctx, vector, topK, req.Scope)
	if err != nil {
		return nil, err
	}
	sources := dedupByDocument(matches)

	genCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()
	gen, err := o.generator.Generate(genCtx, buildMessages(query, sources), llm.Options{})
	if err != nil {
		return nil, errs.Wrap(errs.KindLLM, "generate", err)
	}

	o.logger.Info("question answered",
		"sources", len(sources),
		"provider", gen.Provider,
		"total_tokens", gen.Usage.TotalTokens,
	)

	return &Answer{
		Answer:   gen.Text,
		Sources:  sources,
		Grounded: len(sources) > 0,
		Provider: gen.Provider,
		Model:    gen.Model,
		Usage:    gen.Usage,
	}, nil
}

func (o *Orchestrator) embedQuery(ctx context.Context, query string) ([]float32, error) {
	sum := sha256.Sum256([]byte(query))
	key := "query-embedding:" + hex.EncodeToString(sum[:])

	if o.opts.Cache != nil {
		var cached []float32
		if err := o.opts.Cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
			return cached, nil
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()
	vector, err := embedding.EmbedSingle(embedCtx, o.embedder, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "embed query", err)
	}

	if o.opts.Cache != nil {
		if err := o.opts.Cache.Set(ctx, key, vector, o.opts.CacheTTL); err != nil {
			o.logger.Warn("failed to cache query embedding", "error", err)
		}
	}
	return vector, nil
}

func (o *Orchestrator) search(ctx context.Context, vector []float32, topK int, scope models.Scope) ([]vectorstore.Match, error) {
	searchCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	matches, err := o.vectors.Query(searchCtx, vector, topK, vectorstore.Filter{
		UserID:   scope.UserID,
		TenantID: scope.TenantID,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindVectorDB, "query", err)
	}
	return matches, nil
}

// dedupByDocument keeps the best-scoring chunk of each document. matches must
// already be sorted by descending score.
func dedupByDocument(matches []vectorstore.Match) []Source {
	sources := make([]Source, 0, len(matches))
	seen := make(map[uuid.UUID]bool, len(matches))
	for _, m := range matches {
		if seen[m.DocumentID] {
			continue
		}
		seen[m.DocumentID] = true
		sources = append(sources, Source{DocumentID: m.DocumentID, Content: m.Content, Score: m.Score})
	}
	return sources
}

func buildMessages(query string, sources []Source) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", buildContext(sources), query)},
	}
}

func buildContext(sources []Source) string {
	if len(sources) == 0 {
		return "(no relevant documents found)\n"
	}
	var sb strings.Builder
	for i, s := range sources {
		fmt.Fprintf(&sb, "[Source %d] (score: %.3f)\n%s\n\n", i+1, s.Score, s.Content)
	}
	return sb.String()
}
