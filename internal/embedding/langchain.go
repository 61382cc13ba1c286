package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rodneygagnon/qckstrt/internal/errs"
)

// LangChainEmbedder talks to any OpenAI-compatible embedding endpoint
// (vLLM, LM Studio, llama.cpp server) through langchaingo.
type LangChainEmbedder struct {
	embedder embeddings.Embedder
	logger   *slog.Logger
}

func NewLangChainEmbedder(baseURL, token, model string) (*LangChainEmbedder, error) {
	if token == "" {
		// Local servers accept any token.
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}

	return &LangChainEmbedder{
		embedder: embedder,
		logger:   slog.Default().With("component", "langchain-embedder"),
	}, nil
}

func (e *LangChainEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "error", err)
		return nil, errs.Embedding("langchain embed", err)
	}
	if len(vectors) != len(texts) {
		return nil, errs.Embedding("langchain embed",
			fmt.Errorf("got %d vectors for %d inputs", len(vectors), len(texts)))
	}
	return vectors, nil
}
