package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rodneygagnon/qckstrt/internal/errs"
)

type fakeProvider struct {
	name      string
	failFirst int
	calls     int
	lastReq   ChatRequest
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failFirst {
		return nil, errors.New("upstream unavailable")
	}
	return &ChatResponse{
		Provider:     f.name,
		Model:        req.Model,
		Content:      "answer from " + f.name,
		InputTokens:  10,
		OutputTokens: 5,
		TotalTokens:  15,
	}, nil
}

func (f *fakeProvider) GenerateEmbedding(_ context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	out := make([][]float32, len(req.Input))
	for i := range req.Input {
		out[i] = []float32{float32(i), 1}
	}
	return &EmbeddingResponse{Provider: f.name, Embeddings: out}, nil
}

func newTestGateway(retries int, providers ...Provider) *gateway {
	g := NewGatewayWithProviders("primary", "model-a", retries, providers...).(*gateway)
	g.baseBackoff = time.Millisecond
	return g
}

func TestGenerateUsesDefaults(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	g := newTestGateway(0, primary)

	gen, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "answer from primary", gen.Text)
	assert.Equal(t, "model-a", gen.Model)
	assert.Equal(t, 15, gen.Usage.TotalTokens)
	assert.Equal(t, "model-a", primary.lastReq.Model)
}

func TestChatRetriesBeforeSucceeding(t *testing.T) {
	primary := &fakeProvider{name: "primary", failFirst: 2}
	g := newTestGateway(2, primary)

	resp, err := g.Chat(context.Background(), ChatRequest{Model: "model-a"})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Provider)
	assert.Equal(t, 3, primary.calls)
}

func TestChatNeverSwitchesProvider(t *testing.T) {
	primary := &fakeProvider{name: "primary", failFirst: 10}
	other := &fakeProvider{name: "other"}
	g := newTestGateway(1, primary, other)

	_, err := g.Generate(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, Options{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindLLM))
	assert.Equal(t, 2, primary.calls)
	assert.Zero(t, other.calls)
}

func TestGenerateFailureIsLLMError(t *testing.T) {
	primary := &fakeProvider{name: "primary", failFirst: 10}
	g := newTestGateway(0, primary)

	_, err := g.Generate(context.Background(), nil, Options{})
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.KindLLM))
}

func TestChatStopsRetryingWhenContextDone(t *testing.T) {
	primary := &fakeProvider{name: "primary", failFirst: 10}
	g := newTestGateway(5, primary)
	g.baseBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Chat(ctx, ChatRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, primary.calls)
}

func TestUnknownProvider(t *testing.T) {
	g := newTestGateway(0)
	_, err := g.Embed(context.Background(), EmbeddingRequest{Provider: "nope"})
	assert.ErrorContains(t, err, "not configured")
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.005+0.015, CalculateCost("gpt-4o", 1000, 1000), 1e-9)
	assert.Zero(t, CalculateCost("unknown", 1000, 1000))
}
