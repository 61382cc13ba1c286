package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rodneygagnon/qckstrt/internal/document"
	"github.com/rodneygagnon/qckstrt/internal/errs"
	"github.com/rodneygagnon/qckstrt/internal/rag"
	"github.com/rodneygagnon/qckstrt/internal/vectorstore"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps validation errors and the error taxonomy onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, document.ErrMissingLocator),
		errors.Is(err, document.ErrMissingUser),
		errors.Is(err, rag.ErrEmptyQuery),
		errors.Is(err, rag.ErrQueryRejected),
		errors.Is(err, vectorstore.ErrUnscopedQuery):
		return http.StatusBadRequest
	}

	switch errs.KindOf(err) {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindLLM, errs.KindEmbedding, errs.KindVectorDB, errs.KindExtraction:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := map[string]string{"error": err.Error()}
	if kind := errs.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, status, body)
}
