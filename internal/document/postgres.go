package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

const documentColumns = `id, user_id, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid),
	source_locator, status, extracted_text, failure_reason, deletion_requested, created_at, updated_at`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var doc models.Document
	var status string
	err := row.Scan(&doc.ID, &doc.UserID, &doc.TenantID, &doc.SourceLocator, &status,
		&doc.ExtractedText, &doc.FailureReason, &doc.DeletionRequested, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if doc.Status, err = models.ParseStatus(status); err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	return &doc, nil
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	var tenantID any
	if doc.TenantID != uuid.Nil {
		tenantID = doc.TenantID
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (id, user_id, tenant_id, source_locator, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.UserID, tenantID, doc.SourceLocator, doc.Status.String(), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errs.Conflict("create document", fmt.Errorf("locator %q already registered", doc.SourceLocator))
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("get document", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) GetByLocator(ctx context.Context, locator string) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE source_locator = $1", locator))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("get document by locator", locator)
	}
	if err != nil {
		return nil, fmt.Errorf("get document by locator: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context, scope models.Scope) ([]*models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE ($1::uuid IS NULL OR user_id = $1) AND ($2::uuid IS NULL OR tenant_id = $2)
		 ORDER BY created_at DESC`,
		nullable(scope.UserID), nullable(scope.TenantID),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*models.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func nullable(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

// transitionSet renders the SET clause for t. Column ownership mirrors Transition.Apply.
func transitionSet(t models.Transition) (string, []any) {
	switch t.To {
	case models.StatusExtractionStarted:
		return "extracted_text = NULL, failure_reason = NULL", nil
	case models.StatusExtractionComplete:
		return "extracted_text = $4", []any{t.ExtractedText}
	case models.StatusEmbeddingStarted:
		return "failure_reason = NULL", nil
	case models.StatusExtractionFailed, models.StatusEmbeddingFailed:
		return "failure_reason = $4", []any{t.FailureReason}
	}
	return "", nil
}

func (s *PostgresStore) Transition(ctx context.Context, id uuid.UUID, t models.Transition) (*models.Document, error) {
	if err := checkTransition(t); err != nil {
		return nil, err
	}

	set, extra := transitionSet(t)
	sql := `UPDATE documents SET status = $2, updated_at = now()`
	if set != "" {
		sql += ", " + set
	}
	sql += ` WHERE id = $1 AND status = ANY($3)`
	if models.NeedsSource(t.To) {
		sql += ` AND NOT deletion_requested`
	}
	sql += ` RETURNING ` + documentColumns

	args := append([]any{id, t.To.String(), statusLabels(models.Predecessors(t.To))}, extra...)
	doc, err := scanDocument(s.db.QueryRow(ctx, sql, args...))
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("transition document: %w", err)
	}

	// Nothing updated: the row is gone, its status is not a predecessor, or its
	// source was removed.
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if err := checkCurrent(current, t); err != nil {
		return nil, err
	}
	return nil, conflict(id, current.Status, t.To)
}

func (s *PostgresStore) MarkDeletionRequested(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		"UPDATE documents SET deletion_requested = TRUE, updated_at = $2 WHERE id = $1", id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark deletion requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("mark deletion requested", id)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("delete document", id)
	}
	return nil
}
