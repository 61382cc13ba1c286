package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rodneygagnon/qckstrt/internal/config"
	"github.com/rodneygagnon/qckstrt/internal/errs"
)

type gateway struct {
	providers       map[string]Provider
	defaultProvider string
	defaultModel    string
	maxRetries      int
	baseBackoff     time.Duration
	logger          *slog.Logger
}

// NewGateway registers every provider that has credentials in cfg.
func NewGateway(ctx context.Context, cfg config.LLMConfig) (Gateway, error) {
	var providers []Provider
	if cfg.OpenAIKey != "" {
		providers = append(providers, NewOpenAIProvider(cfg.OpenAIKey))
	}
	if cfg.AnthropicKey != "" {
		providers = append(providers, NewAnthropicProvider(cfg.AnthropicKey))
	}
	if cfg.GeminiKey != "" {
		gemini, err := NewGeminiProvider(ctx, cfg.GeminiKey)
		if err != nil {
			return nil, err
		}
		providers = append(providers, gemini)
	}
	if cfg.OllamaURL != "" {
		providers = append(providers, NewOllamaProvider(cfg.OllamaURL))
	}

	g := NewGatewayWithProviders(cfg.Provider, cfg.Model, cfg.MaxRetries, providers...)
	if _, err := g.Provider(cfg.Provider); err != nil {
		return nil, err
	}
	return g, nil
}

func NewGatewayWithProviders(defaultProvider, defaultModel string, maxRetries int, providers ...Provider) Gateway {
	g := &gateway{
		providers:       make(map[string]Provider, len(providers)),
		defaultProvider: defaultProvider,
		defaultModel:    defaultModel,
		maxRetries:      maxRetries,
		baseBackoff:     500 * time.Millisecond,
		logger:          slog.Default().With("component", "llm-gateway"),
	}
	for _, p := range providers {
		g.providers[p.Name()] = p
	}
	return g
}

func (g *gateway) Provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return p, nil
}

func (g *gateway) Generate(ctx context.Context, messages []Message, opts Options) (*Generation, error) {
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}

	resp, err := g.Chat(ctx, ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, errs.LLM("generate", err)
	}

	return &Generation{
		Text:     resp.Content,
		Provider: resp.Provider,
		Model:    resp.Model,
		Usage: Usage{
			InputTokens:  resp.InputTokens,
			OutputTokens: resp.OutputTokens,
			TotalTokens:  resp.TotalTokens,
			CostUSD:      resp.CostUSD,
			LatencyMs:    resp.LatencyMs,
		},
	}, nil
}

// Chat sends req to the named provider, or the configured one, retrying with
// backoff. A failing provider is never swapped for another.
func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}
	return g.chatWithRetry(ctx, providerName, req)
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * g.baseBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			g.logger.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := p.ChatCompletion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr)
}

func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.Provider(providerName)
	if err != nil {
		return nil, err
	}

	return p.GenerateEmbedding(ctx, req)
}
