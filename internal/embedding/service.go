package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/llm"
)

// Embedder maps texts to vectors. The result has one vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedSingle embeds one text through e.
func EmbedSingle(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errs.Embedding("embed single", fmt.Errorf("no embedding returned"))
	}
	return vectors[0], nil
}

type Options struct {
	Provider    string
	Model       string
	BatchSize   int
	Concurrency int
	// RPS caps micro-batch requests per second; zero disables throttling.
	RPS float64
}

// Service embeds through the LLM gateway in concurrent micro-batches.
type Service struct {
	gateway     llm.Gateway
	provider    string
	model       string
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
	logger      *slog.Logger
}

func NewService(gw llm.Gateway, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	s := &Service{
		gateway:     gw,
		provider:    opts.Provider,
		model:       opts.Model,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		logger:      slog.Default().With("component", "embedding"),
	}
	if opts.RPS > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RPS), max(int(opts.RPS), 1))
	}
	return s
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		g.Go(func() error {
			return s.embedBatch(gctx, texts[start:end], out[start:end])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "embed", err)
	}

	if err := checkDimensions(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) embedBatch(ctx context.Context, batch []string, dst [][]float32) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
		Provider: s.provider,
		Model:    s.model,
		Input:    batch,
	})
	if err != nil {
		return err
	}
	if len(resp.Embeddings) != len(batch) {
		return errs.Embedding("embed batch",
			fmt.Errorf("provider returned %d vectors for %d inputs", len(resp.Embeddings), len(batch)))
	}

	copy(dst, resp.Embeddings)
	s.logger.Debug("embedded batch", "size", len(batch), "provider", resp.Provider)
	return nil
}

func checkDimensions(vectors [][]float32) error {
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return errs.Embedding("check dimensions", fmt.Errorf("empty vector at %d", i))
		}
		if dim == -1 {
			dim = len(v)
			continue
		}
		if len(v) != dim {
			return errs.Embedding("check dimensions",
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim))
		}
	}
	return nil
}
