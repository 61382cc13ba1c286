package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/rag"
)

func TestStatusFor(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want int
	}{
		{document.ErrMissingLocator, http.StatusBadRequest},
		{rag.ErrEmptyQuery, http.StatusBadRequest},
		{errs.NotFound("get", cause), http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", errs.Conflict("create", cause)), http.StatusConflict},
		{errs.LLM("generate", cause), http.StatusBadGateway},
		{errs.Embedding("embed", cause), http.StatusBadGateway},
		{errs.VectorDB("query", cause), http.StatusBadGateway},
		{cause, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestWriteErrorIncludesKind(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errs.NotFound("get document", errors.New("missing")))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"NotFoundError: get document: missing","kind":"NotFoundError"}`, rec.Body.String())
}
