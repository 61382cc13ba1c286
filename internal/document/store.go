package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

// ErrSourceRemoved is wrapped in the ConflictError returned when a transition
// would start or finish a run for a document flagged by MarkDeletionRequested.
var ErrSourceRemoved = errors.New("source object was removed")

// Store persists document records. Transition is the only way status changes
// and is a single atomic conditional update in every implementation: a record
// whose status is not a valid predecessor is left untouched and a ConflictError
// is returned. Documents flagged as removed refuse transitions for which
// models.NeedsSource is true.
type Store interface {
	Create(ctx context.Context, doc *models.Document) error
	Get(ctx context.Context, id uuid.UUID) (*models.Document, error)
	GetByLocator(ctx context.Context, locator string) (*models.Document, error)
	List(ctx context.Context, scope models.Scope) ([]*models.Document, error)
	Transition(ctx context.Context, id uuid.UUID, t models.Transition) (*models.Document, error)
	MarkDeletionRequested(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

func checkTransition(t models.Transition) error {
	if !t.To.Valid() || len(models.Predecessors(t.To)) == 0 {
		return errs.Conflict("transition", fmt.Errorf("no transition leads to %s", t.To))
	}
	return nil
}

// checkCurrent validates t against the stored state of doc.
func checkCurrent(doc *models.Document, t models.Transition) error {
	if !models.CanTransition(doc.Status, t.To) {
		return conflict(doc.ID, doc.Status, t.To)
	}
	if doc.DeletionRequested && models.NeedsSource(t.To) {
		return removed(doc.ID, t.To)
	}
	return nil
}

// statusLabels renders statuses the way they are persisted.
func statusLabels(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = st.String()
	}
	return out
}

func removed(id uuid.UUID, to models.Status) error {
	return errs.Conflict("transition", fmt.Errorf("document %s -> %s: %w", id, to, ErrSourceRemoved))
}

func conflict(id uuid.UUID, from, to models.Status) error {
	return errs.Conflict("transition", fmt.Errorf("document %s: %s -> %s not allowed", id, from, to))
}

func notFound(op string, key any) error {
	return errs.NotFound(op, fmt.Errorf("document %v not found", key))
}

func inScope(doc *models.Document, scope models.Scope) bool {
	if scope.UserID != uuid.Nil && doc.UserID != scope.UserID {
		return false
	}
	if scope.TenantID != uuid.Nil && doc.TenantID != scope.TenantID {
		return false
	}
	return true
}
