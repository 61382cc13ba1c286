package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
	"github.com/rodneygagnon/qckstrt/internal/vectorstore"
)

var (
	ErrMissingLocator = errors.New("source locator is required")
	ErrMissingUser    = errors.New("user id is required")
)

type Service struct {
	store   Store
	vectors vectorstore.Store
	logger  *slog.Logger
}

func NewService(store Store, vectors vectorstore.Store) *Service {
	return &Service{
		store:   store,
		vectors: vectors,
		logger:  slog.Default().With("component", "document"),
	}
}

type RegisterRequest struct {
	SourceLocator string    `json:"sourceLocator" validate:"required"`
	UserID        uuid.UUID `json:"userId"`
	TenantID      uuid.UUID `json:"tenantId,omitempty"`
}

// Register creates a Pending record for a source locator. Locators are unique.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.Document, error) {
	locator := strings.TrimSpace(req.SourceLocator)
	if locator == "" {
		return nil, ErrMissingLocator
	}
	if req.UserID == uuid.Nil {
		return nil, ErrMissingUser
	}

	now := time.Now().UTC()
	doc := &models.Document{
		ID:            uuid.New(),
		UserID:        req.UserID,
		TenantID:      req.TenantID,
		SourceLocator: locator,
		Status:        models.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return nil, err
	}

	s.logger.Info("document registered", "document_id", doc.ID, "locator", locator)
	return doc, nil
}

// Get returns a document visible to scope. Documents outside the scope are
// reported as not found.
func (s *Service) Get(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !inScope(doc, scope) {
		return nil, notFound("get document", id)
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, scope models.Scope) ([]*models.Document, error) {
	if scope.Empty() {
		return nil, errs.NotFound("list documents", fmt.Errorf("scope is empty"))
	}
	return s.store.List(ctx, scope)
}

// Delete removes a document's embedding records, then the record itself.
func (s *Service) Delete(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	if _, err := s.Get(ctx, scope, id); err != nil {
		return err
	}

	if err := s.vectors.Delete(ctx, vectorstore.DeleteRequest{
		Filter: vectorstore.Filter{DocumentID: id},
	}); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("document deleted", "document_id", id)
	return nil
}

// MarkRemoved flags a document whose source object was removed and cascades
// the delete to its embedding records. Status is left as is.
func (s *Service) MarkRemoved(ctx context.Context, id uuid.UUID) error {
	if err := s.store.MarkDeletionRequested(ctx, id); err != nil {
		return err
	}
	if err := s.vectors.Delete(ctx, vectorstore.DeleteRequest{
		Filter: vectorstore.Filter{DocumentID: id},
	}); err != nil {
		return fmt.Errorf("delete embeddings: %w", err)
	}
	return nil
}

// Store exposes the underlying store to the pipeline and event adapter.
func (s *Service) Store() Store { return s.store }
