package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/rodneygagnon/qckstrt/internal/errs"
)

type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func nullableUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func (s *PgVectorStore) Upsert(ctx context.Context, records []Record) error {
	if err := validateRecords(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		metadata := r.Metadata
		if metadata == nil {
			metadata = map[string]any{}
		}
		batch.Queue(
			`INSERT INTO embeddings (id, document_id, user_id, tenant_id, chunk_index, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET content = $6, embedding = $7, metadata = $8`,
			r.ID, r.DocumentID, r.UserID, nullableUUID(r.TenantID), r.ChunkIndex, r.Content,
			pgvector.NewVector(r.Vector), metadata,
		)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return errs.VectorDB("upsert", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errs.VectorDB("upsert", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return errs.VectorDB("upsert", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// whereClause renders filter as SQL predicates starting at placeholder $next.
func whereClause(filter Filter, next int) (string, []any) {
	var preds []string
	var args []any
	add := func(col string, id uuid.UUID) {
		if id == uuid.Nil {
			return
		}
		preds = append(preds, fmt.Sprintf("%s = $%d", col, next))
		args = append(args, id)
		next++
	}
	add("user_id", filter.UserID)
	add("tenant_id", filter.TenantID)
	add("document_id", filter.DocumentID)
	return strings.Join(preds, " AND "), args
}

func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Match, error) {
	if err := validateQuery(vector, topK, filter); err != nil {
		return nil, err
	}

	where, args := whereClause(filter, 3)
	sql := fmt.Sprintf(
		`SELECT id, document_id, user_id, COALESCE(tenant_id, '00000000-0000-0000-0000-000000000000'::uuid),
		        chunk_index, content, metadata, 1 - (embedding <=> $1) AS score
		 FROM embeddings
		 WHERE %s
		 ORDER BY embedding <=> $1, document_id, chunk_index
		 LIMIT $2`, where)

	rows, err := s.db.Query(ctx, sql, append([]any{pgvector.NewVector(vector), topK}, args...)...)
	if err != nil {
		return nil, errs.VectorDB("query", err)
	}
	defer rows.Close()

	matches := make([]Match, 0, topK)
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.DocumentID, &m.UserID, &m.TenantID,
			&m.ChunkIndex, &m.Content, &m.Metadata, &m.Score); err != nil {
			return nil, errs.VectorDB("query", fmt.Errorf("scan match: %w", err))
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.VectorDB("query", err)
	}
	return matches, nil
}

func (s *PgVectorStore) Delete(ctx context.Context, req DeleteRequest) error {
	if err := validateDelete(req); err != nil {
		return err
	}

	if len(req.IDs) > 0 {
		if _, err := s.db.Exec(ctx, "DELETE FROM embeddings WHERE id = ANY($1)", req.IDs); err != nil {
			return errs.VectorDB("delete", err)
		}
		return nil
	}

	where, args := whereClause(req.Filter, 1)
	if _, err := s.db.Exec(ctx, "DELETE FROM embeddings WHERE "+where, args...); err != nil {
		return errs.VectorDB("delete", err)
	}
	return nil
}
