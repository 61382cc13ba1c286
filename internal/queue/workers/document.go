package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/queue"
)

// Pipeline is the part of the ingestion pipeline the workers drive.
type Pipeline interface {
	StartExtraction(ctx context.Context, id uuid.UUID) error
	StartEmbedding(ctx context.Context, id uuid.UUID) error
}

type DocumentWorker struct {
	pipeline Pipeline
	logger   *slog.Logger
}

func NewDocumentWorker(p Pipeline) *DocumentWorker {
	return &DocumentWorker{
		pipeline: p,
		logger:   slog.Default().With("component", "document-worker"),
	}
}

func (w *DocumentWorker) Register(r *queue.HandlersRegistry) {
	r.Register(queue.TypeDocumentExtract, asynq.HandlerFunc(w.ProcessExtract))
	r.Register(queue.TypeDocumentEmbed, asynq.HandlerFunc(w.ProcessEmbed))
}

func (w *DocumentWorker) ProcessExtract(ctx context.Context, t *asynq.Task) error {
	id, err := documentID(t)
	if err != nil {
		return err
	}
	w.logger.Info("processing extraction task", "document_id", id)
	return w.outcome(id, w.pipeline.StartExtraction(ctx, id))
}

func (w *DocumentWorker) ProcessEmbed(ctx context.Context, t *asynq.Task) error {
	id, err := documentID(t)
	if err != nil {
		return err
	}
	w.logger.Info("processing embedding task", "document_id", id)
	return w.outcome(id, w.pipeline.StartEmbedding(ctx, id))
}

func documentID(t *asynq.Task) (uuid.UUID, error) {
	var payload queue.DocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	id, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse document ID: %v: %w", err, asynq.SkipRetry)
	}
	return id, nil
}

// outcome maps pipeline errors onto asynq retry semantics. Conflicts are stale
// tasks; stage failures are already recorded on the document and are retried
// by re-submitting the creation event, not by the queue.
func (w *DocumentWorker) outcome(id uuid.UUID, err error) error {
	if err == nil {
		return nil
	}

	switch errs.KindOf(err) {
	case errs.KindConflict:
		w.logger.Info("stale task skipped", "document_id", id, "error", err)
		return nil
	case errs.KindNotFound:
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	case errs.KindExtraction, errs.KindEmbedding, errs.KindVectorDB:
		w.logger.Warn("pipeline stage failed", "document_id", id, "error", err)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
