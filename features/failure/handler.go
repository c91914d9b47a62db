package failure

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/middleware"
	"reelsync/backend/internal/worker"
)

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.InfoContext(ctx, "listing failed events")

	items, err := h.service.List(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to list failed events", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to list failed events", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []FailedEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"data": items,
		"meta": map[string]int{"count": len(items)},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")

	slog.InfoContext(ctx, "retrying failed event", "id", id)

	if err := h.service.Retry(ctx, id); err != nil {
		slog.ErrorContext(ctx, "failed to retry event", "id", id, "error", err)
		switch {
		case errors.Is(err, event.ErrNotFound):
			h.writeError(ctx, w, "NOT_FOUND", "failed event not found", http.StatusNotFound)
		case errors.Is(err, event.ErrMalformedPayload):
			h.writeError(ctx, w, "UNPROCESSABLE", err.Error(), http.StatusUnprocessableEntity)
		case errors.Is(err, event.ErrDuplicate):
			h.writeError(ctx, w, "CONFLICT", "event was already processed", http.StatusConflict)
		case errors.Is(err, worker.ErrQueueFull):
			h.writeError(ctx, w, "UNAVAILABLE", "task queue is full", http.StatusServiceUnavailable)
		default:
			h.writeError(ctx, w, "INTERNAL_ERROR", err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": "event resubmitted"}); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
		"correlationId": middleware.GetCorrelationID(ctx),
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode error response", "error", err)
	}
}
