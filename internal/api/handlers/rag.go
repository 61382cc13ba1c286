package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rodneygagnon/qckstrt/internal/rag"
	"github.com/rodneygagnon/qckstrt/internal/tenant"
)

type Asker interface {
	Ask(ctx context.Context, req rag.Request) (*rag.Answer, error)
}

type RAGHandler struct {
	orchestrator Asker
}

func NewRAGHandler(o Asker) *RAGHandler {
	return &RAGHandler{orchestrator: o}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"topK,omitempty"`
}

// Query answers from the caller's documents. The scope always comes from the
// token, never from the request body.
func (h *RAGHandler) Query(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenant.ScopeFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing scope")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		writeMessage(w, http.StatusBadRequest, "query required")
		return
	}

	resp, err := h.orchestrator.Ask(r.Context(), rag.Request{Query: req.Query, Scope: scope, TopK: req.TopK})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
