package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/embedding"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/extraction"
	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/vectorstore"
	"github.com/rodneygagnon/qckstrt/pkg/chunker"
	"github.com/rodneygagnon/qckstrt/pkg/tokenizer"
)

const maxFailureReason = 500

var ErrEmptyText = errors.New("no text extracted")

type Config struct {
	Chunking        chunker.ChunkOptions
	ProviderTimeout time.Duration
	// BatchSize is the number of chunks embedded and written per round trip.
	BatchSize     int
	DefaultBucket string
}

// Pipeline moves one document at a time through extraction and embedding.
// Runs for different documents share nothing but the stores.
type Pipeline struct {
	docs       document.Store
	extractors *extraction.Registry
	embedder   embedding.Embedder
	vectors    vectorstore.Store
	cfg        Config
	logger     *slog.Logger
}

func NewPipeline(docs document.Store, extractors *extraction.Registry, embedder embedding.Embedder, vectors vectorstore.Store, cfg Config) (*Pipeline, error) {
	if err := cfg.Chunking.Validate(); err != nil {
		return nil, fmt.Errorf("chunking options: %w", err)
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}

	return &Pipeline{
		docs:       docs,
		extractors: extractors,
		embedder:   embedder,
		vectors:    vectors,
		cfg:        cfg,
		logger:     slog.Default().With("component", "pipeline"),
	}, nil
}

// StartExtraction runs the extraction stage and, on success, the embedding stage.
// A document not in Pending or ExtractionFailed yields a ConflictError and no
// provider is called. Stage failures are recorded on the document and returned.
func (p *Pipeline) StartExtraction(ctx context.Context, id uuid.UUID) error {
	doc, err := p.docs.Transition(ctx, id, models.Transition{To: models.StatusExtractionStarted})
	if err != nil {
		return err
	}
	log := p.logger.With("document_id", id, "locator", doc.SourceLocator)
	log.Info("extraction started")

	text, err := p.extract(ctx, doc)
	if err != nil {
		log.Warn("extraction failed", "error", err)
		return p.fail(ctx, id, models.StatusExtractionFailed, err)
	}

	if _, err := p.docs.Transition(ctx, id, models.Transition{
		To:            models.StatusExtractionComplete,
		ExtractedText: text,
	}); err != nil {
		log.Warn("failed to record extracted text", "error", err)
		return p.fail(ctx, id, models.StatusExtractionFailed, fmt.Errorf("record extraction: %w", err))
	}
	log.Info("extraction complete", "chars", utf8.RuneCountInString(text))

	return p.StartEmbedding(ctx, id)
}

func (p *Pipeline) extract(ctx context.Context, doc *models.Document) (string, error) {
	in := extraction.ParseInput(doc.SourceLocator, p.cfg.DefaultBucket)
	extractor, err := p.extractors.Select(in)
	if err != nil {
		return "", err
	}

	res, err := callWithTimeout(ctx, p.cfg.ProviderTimeout, func(ctx context.Context) (*extraction.Result, error) {
		return extractor.ExtractText(ctx, in)
	})
	if err != nil {
		return "", errs.Wrap(errs.KindExtraction, extractor.Name(), err)
	}
	if strings.TrimSpace(res.Text) == "" {
		return "", errs.Extraction(extractor.Name(), ErrEmptyText)
	}
	return res.Text, nil
}

// StartEmbedding chunks the extracted text, embeds it in batches and writes one
// record per chunk. It accepts ExtractionComplete documents and EmbeddingFailed
// ones being retried. Any failure removes every record of the document.
func (p *Pipeline) StartEmbedding(ctx context.Context, id uuid.UUID) error {
	doc, err := p.docs.Transition(ctx, id, models.Transition{To: models.StatusEmbeddingStarted})
	if err != nil {
		return err
	}
	log := p.logger.With("document_id", id)
	log.Info("embedding started")

	count, err := p.embed(ctx, doc)
	if err != nil {
		log.Warn("embedding failed, rolling back", "error", err)
		if rbErr := p.rollback(ctx, id); rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
		}
		return p.fail(ctx, id, models.StatusEmbeddingFailed, err)
	}

	// Refused when the source was removed mid-run; the records must not outlive it.
	if _, err := p.docs.Transition(ctx, id, models.Transition{To: models.StatusComplete}); err != nil {
		log.Warn("failed to record completion, rolling back", "error", err)
		if rbErr := p.rollback(ctx, id); rbErr != nil {
			log.Error("rollback failed", "error", rbErr)
		}
		return p.fail(ctx, id, models.StatusEmbeddingFailed, fmt.Errorf("record embedding: %w", err))
	}
	log.Info("embedding complete", "records", count)
	return nil
}

func (p *Pipeline) embed(ctx context.Context, doc *models.Document) (int, error) {
	// Records from an earlier failed or interrupted attempt.
	if err := p.rollback(ctx, doc.ID); err != nil {
		return 0, err
	}

	var text string
	if doc.ExtractedText != nil {
		text = *doc.ExtractedText
	}
	chunks, err := chunker.Chunk(text, p.cfg.Chunking)
	if err != nil {
		return 0, errs.Embedding("chunk", err)
	}

	written := 0
	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		batch := chunks[start:min(start+p.cfg.BatchSize, len(chunks))]

		contents := make([]string, len(batch))
		for i, c := range batch {
			contents[i] = c.Content
		}

		vectors, err := callWithTimeout(ctx, p.cfg.ProviderTimeout, func(ctx context.Context) ([][]float32, error) {
			return p.embedder.Embed(ctx, contents)
		})
		if err != nil {
			return written, errs.Wrap(errs.KindEmbedding, "embed chunks", err)
		}
		if len(vectors) != len(batch) {
			return written, errs.Embedding("embed chunks",
				fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
		}

		records := make([]vectorstore.Record, len(batch))
		for i, c := range batch {
			records[i] = newRecord(doc, c, vectors[i])
		}

		// Awaited even past the deadline so a rollback never runs ahead of the write.
		writeCtx, cancel := context.WithTimeout(ctx, p.cfg.ProviderTimeout)
		err = p.vectors.Upsert(writeCtx, records)
		cancel()
		if err != nil {
			return written, errs.Wrap(errs.KindVectorDB, "write records", err)
		}
		written += len(records)
	}
	return written, nil
}

func newRecord(doc *models.Document, c chunker.TextChunk, vector []float32) vectorstore.Record {
	return vectorstore.Record{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		UserID:     doc.UserID,
		TenantID:   doc.TenantID,
		ChunkIndex: c.Index,
		Content:    c.Content,
		Vector:     vector,
		Metadata: map[string]any{
			"source":      doc.ID.String(),
			"locator":     doc.SourceLocator,
			"chunk_index": c.Index,
			"start":       c.Start,
			"end":         c.End,
			"token_count": tokenizer.CountTokens(c.Content),
		},
	}
}

// rollback deletes every record of a document. It runs even when ctx is done so
// a cancelled run does not leave a partial index behind.
func (p *Pipeline) rollback(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ProviderTimeout)
	defer cancel()

	if err := p.vectors.Delete(ctx, vectorstore.DeleteRequest{
		Filter: vectorstore.Filter{DocumentID: id},
	}); err != nil {
		return errs.Wrap(errs.KindVectorDB, "delete records", err)
	}
	return nil
}

// fail records a failure state and returns the stage error.
func (p *Pipeline) fail(ctx context.Context, id uuid.UUID, to models.Status, stageErr error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ProviderTimeout)
	defer cancel()

	if _, err := p.docs.Transition(ctx, id, models.Transition{
		To:            to,
		FailureReason: FailureReason(stageErr),
	}); err != nil {
		p.logger.Error("failed to record failure", "document_id", id, "status", to, "error", err)
		return errors.Join(stageErr, err)
	}
	return stageErr
}

// FailureReason renders err as "<Kind>: <cause>" without operation detail.
func FailureReason(err error) string {
	var e *errs.Error
	reason := err.Error()
	if errors.As(err, &e) && e.Err != nil {
		reason = fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if utf8.RuneCountInString(reason) > maxFailureReason {
		reason = string([]rune(reason)[:maxFailureReason])
	}
	return reason
}
