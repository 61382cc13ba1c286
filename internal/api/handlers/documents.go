package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/tenant"
)

type DocumentHandler struct {
	svc *document.Service
}

func NewDocumentHandler(svc *document.Service) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type registerRequest struct {
	SourceLocator string `json:"sourceLocator"`
}

// Register records a source locator for the caller. Ingestion starts when the
// storage notification for the object arrives.
func (h *DocumentHandler) Register(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenant.ScopeFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing scope")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.svc.Register(r.Context(), document.RegisterRequest{
		SourceLocator: req.SourceLocator,
		UserID:        scope.UserID,
		TenantID:      scope.TenantID,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenant.ScopeFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing scope")
		return
	}

	docs, err := h.svc.List(r.Context(), scope)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenant.ScopeFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing scope")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	doc, err := h.svc.Get(r.Context(), scope, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, ok := tenant.ScopeFromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "missing scope")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid document ID")
		return
	}

	if err := h.svc.Delete(r.Context(), scope, id); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
