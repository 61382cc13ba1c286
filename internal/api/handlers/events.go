package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	"github.com/rodneygagnon/qckstrt/internal/events"
	"github.com/rodneygagnon/qckstrt/internal/models"
)

const maxNotificationBytes = 1 << 20

type EventAdapter interface {
	Handle(ctx context.Context, ev models.PipelineEvent) (events.Outcome, error)
	HandleBatch(ctx context.Context, evs []models.PipelineEvent) []events.Result
}

type EventHandler struct {
	adapter  EventAdapter
	verifier events.Verifier
	logger   *slog.Logger
}

func NewEventHandler(adapter EventAdapter, verifier events.Verifier) *EventHandler {
	return &EventHandler{
		adapter:  adapter,
		verifier: verifier,
		logger:   slog.Default().With("component", "events-http"),
	}
}

// readVerified reads the body and checks its signature. The body is restored
// so later decoders can read it again.
func (h *EventHandler) readVerified(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBytes+1))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	if len(body) > maxNotificationBytes {
		writeMessage(w, http.StatusRequestEntityTooLarge, "notification too large")
		return nil, false
	}
	if err := h.verifier.Verify(body, r.Header.Get(events.SignatureHeader)); err != nil {
		writeMessage(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return body, true
}

// Storage accepts a JSON notification: one event, an array of events, or an
// S3-style Records document. A 500 asks the notifier to redeliver; events
// already handled come back as duplicates.
func (h *EventHandler) Storage(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readVerified(w, r)
	if !ok {
		return
	}

	evs, err := events.ParseNotification(body)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	results := h.adapter.HandleBatch(r.Context(), evs)
	status := http.StatusOK
	for _, res := range results {
		if res.Err != nil {
			status = http.StatusInternalServerError
			h.logger.Error("event handling failed",
				"event_id", res.Event.EventID,
				"locator", res.Event.ObjectLocator,
				"error", res.Err,
			)
		}
	}

	writeJSON(w, status, map[string]interface{}{"results": results, "count": len(results)})
}

// CloudEvent accepts a GCS object event in either the binary or structured
// CloudEvents HTTP binding.
func (h *EventHandler) CloudEvent(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.readVerified(w, r); !ok {
		return
	}

	ce, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid cloudevent: "+err.Error())
		return
	}

	ev, err := events.FromCloudEvent(*ce)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.adapter.Handle(r.Context(), ev)
	if err != nil {
		h.logger.Error("cloudevent handling failed", "event_id", ev.EventID, "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, events.Result{Event: ev, Outcome: outcome})
}
