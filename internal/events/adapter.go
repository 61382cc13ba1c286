package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeRemoved    Outcome = "removed"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeIgnored    Outcome = "ignored"
)

// Dispatcher starts pipeline stages, in-process or through a queue.
type Dispatcher interface {
	DispatchExtraction(ctx context.Context, documentID uuid.UUID) error
	DispatchEmbedding(ctx context.Context, documentID uuid.UUID) error
}

// Remover flags a document whose source is gone and drops its records.
type Remover interface {
	MarkRemoved(ctx context.Context, documentID uuid.UUID) error
}

type Result struct {
	Event   models.PipelineEvent `json:"event"`
	Outcome Outcome              `json:"outcome"`
	Err     error                `json:"-"`
	Error   string               `json:"error,omitempty"`
}

type Adapter struct {
	docs       document.Store
	remover    Remover
	dispatcher Dispatcher
	dedup      Deduper
	pool       *ants.Pool
	logger     *slog.Logger
}

func NewAdapter(docs document.Store, remover Remover, dispatcher Dispatcher, dedup Deduper, poolSize int) (*Adapter, error) {
	if poolSize <= 0 {
		poolSize = 8
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create event pool: %w", err)
	}
	return &Adapter{
		docs:       docs,
		remover:    remover,
		dispatcher: dispatcher,
		dedup:      dedup,
		pool:       pool,
		logger:     slog.Default().With("component", "events"),
	}, nil
}

func (a *Adapter) Release() {
	a.pool.Release()
}

func relevant(ev models.PipelineEvent) bool {
	if ev.Source != models.EventSourceNotification && ev.Source != models.EventSourceStorageObject {
		return false
	}
	if ev.Status != "" && ev.Status != models.EventStatusSucceeded {
		return false
	}
	if ev.NamePrefix != models.EventObjectCreated && ev.NamePrefix != models.EventObjectRemoved {
		return false
	}
	return ev.ObjectLocator != ""
}

// Handle processes one event. Irrelevant events are ignored, repeated event
// ids and stale transitions are reported as duplicates. A claim on the event
// id is released when handling fails so a redelivery is processed.
func (a *Adapter) Handle(ctx context.Context, ev models.PipelineEvent) (Outcome, error) {
	log := a.logger.With("event_id", ev.EventID, "locator", ev.ObjectLocator, "name_prefix", ev.NamePrefix)

	if !relevant(ev) {
		log.Debug("event ignored", "source", ev.Source, "status", ev.Status)
		return OutcomeIgnored, nil
	}

	if ev.EventID != "" && a.dedup != nil {
		claimed, err := a.dedup.Claim(ctx, ev.EventID)
		if err != nil {
			// The status precondition still guards the pipeline.
			log.Warn("dedup unavailable", "error", err)
		} else if !claimed {
			log.Info("duplicate event discarded")
			return OutcomeDuplicate, nil
		}
	}

	var (
		outcome Outcome
		err     error
	)
	switch ev.NamePrefix {
	case models.EventObjectCreated:
		outcome, err = a.created(ctx, ev)
	case models.EventObjectRemoved:
		outcome, err = a.removed(ctx, ev)
	}

	if err != nil {
		if ev.EventID != "" && a.dedup != nil {
			if relErr := a.dedup.Release(context.WithoutCancel(ctx), ev.EventID); relErr != nil {
				log.Warn("failed to release event claim", "error", relErr)
			}
		}
		log.Error("event handling failed", "error", err)
		return outcome, err
	}

	log.Info("event handled", "outcome", outcome)
	return outcome, nil
}

func (a *Adapter) resolve(ctx context.Context, locator string) (*models.Document, error) {
	var lastErr error
	for _, candidate := range locatorCandidates(locator) {
		doc, err := a.docs.GetByLocator(ctx, candidate)
		if err == nil {
			return doc, nil
		}
		if !errs.IsNotFound(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (a *Adapter) created(ctx context.Context, ev models.PipelineEvent) (Outcome, error) {
	doc, err := a.resolve(ctx, ev.ObjectLocator)
	if err != nil {
		return "", err
	}

	if doc.DeletionRequested {
		// The source was removed; a late creation event must not resurrect it.
		return OutcomeIgnored, nil
	}

	var dispatchErr error
	switch doc.Status {
	case models.StatusPending, models.StatusExtractionFailed:
		dispatchErr = a.dispatcher.DispatchExtraction(ctx, doc.ID)
	case models.StatusEmbeddingFailed:
		dispatchErr = a.dispatcher.DispatchEmbedding(ctx, doc.ID)
	default:
		return OutcomeDuplicate, nil
	}

	switch {
	case dispatchErr == nil:
		return OutcomeDispatched, nil
	case errs.IsConflict(dispatchErr):
		return OutcomeDuplicate, nil
	case stageFailure(dispatchErr):
		// Recorded on the document; redelivery would not help.
		a.logger.Warn("pipeline stage failed", "document_id", doc.ID, "error", dispatchErr)
		return OutcomeDispatched, nil
	default:
		return "", fmt.Errorf("dispatch document %s: %w", doc.ID, dispatchErr)
	}
}

func stageFailure(err error) bool {
	switch errs.KindOf(err) {
	case errs.KindExtraction, errs.KindEmbedding, errs.KindVectorDB:
		return true
	}
	return false
}

func (a *Adapter) removed(ctx context.Context, ev models.PipelineEvent) (Outcome, error) {
	doc, err := a.resolve(ctx, ev.ObjectLocator)
	if errs.IsNotFound(err) {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	if err := a.remover.MarkRemoved(ctx, doc.ID); err != nil {
		return "", fmt.Errorf("remove document %s: %w", doc.ID, err)
	}
	return OutcomeRemoved, nil
}

// HandleBatch processes events on the worker pool. Events for the same locator
// run in arrival order on one worker; results keep the input order.
func (a *Adapter) HandleBatch(ctx context.Context, evs []models.PipelineEvent) []Result {
	results := make([]Result, len(evs))

	groups := make(map[string][]int)
	var order []string
	for i, ev := range evs {
		if _, ok := groups[ev.ObjectLocator]; !ok {
			order = append(order, ev.ObjectLocator)
		}
		groups[ev.ObjectLocator] = append(groups[ev.ObjectLocator], i)
	}

	var wg sync.WaitGroup
	for _, locator := range order {
		idxs := groups[locator]
		run := func() {
			for _, i := range idxs {
				outcome, err := a.Handle(ctx, evs[i])
				results[i] = Result{Event: evs[i], Outcome: outcome, Err: err}
				if err != nil {
					results[i].Error = err.Error()
				}
			}
		}

		wg.Add(1)
		if err := a.pool.Submit(func() {
			defer wg.Done()
			run()
		}); err != nil {
			// Pool closed or overloaded: run on the caller's goroutine.
			a.logger.Warn("event pool submit failed, running inline", "error", err)
			run()
			wg.Done()
		}
	}
	wg.Wait()
	return results
}
