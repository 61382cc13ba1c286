package events

import (
	"context"

	"github.com/google/uuid"
)

// Runner is the pipeline as seen by the inline dispatcher.
type Runner interface {
	StartExtraction(ctx context.Context, id uuid.UUID) error
	StartEmbedding(ctx context.Context, id uuid.UUID) error
}

// InlineDispatcher runs stages on the caller's goroutine.
type InlineDispatcher struct {
	runner Runner
}

func NewInlineDispatcher(r Runner) *InlineDispatcher {
	return &InlineDispatcher{runner: r}
}

func (d *InlineDispatcher) DispatchExtraction(ctx context.Context, id uuid.UUID) error {
	return d.runner.StartExtraction(ctx, id)
}

func (d *InlineDispatcher) DispatchEmbedding(ctx context.Context, id uuid.UUID) error {
	return d.runner.StartEmbedding(ctx, id)
}
