package vectorstore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/errs"
)

var (
	ErrUnscopedQuery  = errors.New("query requires a user or tenant scope")
	ErrUnscopedDelete = errors.New("delete requires ids or a filter")
)

func validateQuery(vector []float32, topK int, filter Filter) error {
	if !filter.Scoped() {
		return errs.VectorDB("query", ErrUnscopedQuery)
	}
	if len(vector) == 0 {
		return errs.VectorDB("query", errors.New("empty query vector"))
	}
	if topK <= 0 {
		return errs.VectorDB("query", fmt.Errorf("topK must be positive, got %d", topK))
	}
	return nil
}

func validateDelete(req DeleteRequest) error {
	if len(req.IDs) == 0 && req.Filter.empty() {
		return errs.VectorDB("delete", ErrUnscopedDelete)
	}
	return nil
}

func validateRecords(records []Record) error {
	for i, r := range records {
		if r.ID == uuid.Nil || r.DocumentID == uuid.Nil || r.UserID == uuid.Nil {
			return errs.VectorDB("upsert", fmt.Errorf("record %d is missing an id", i))
		}
		if len(r.Vector) == 0 {
			return errs.VectorDB("upsert", fmt.Errorf("record %d has no vector", i))
		}
	}
	return nil
}
