package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/middleware"
)

type LedgerRepo interface {
	CountByCategory(ctx context.Context) (map[event.Category]int, error)
}

type PendingRepo interface {
	Count(ctx context.Context) (int, error)
}

type FailureRepo interface {
	Count(ctx context.Context) (int, error)
}

type Handler struct {
	ledger   LedgerRepo
	pending  PendingRepo
	failures FailureRepo
}

func NewHandler(l LedgerRepo, p PendingRepo, f FailureRepo) *Handler {
	return &Handler{ledger: l, pending: p, failures: f}
}

type StatsResponse struct {
	Processed    int                    `json:"processed"`
	ByCategory   map[event.Category]int `json:"by_category"`
	Pending      int                    `json:"pending"`
	FailedEvents int                    `json:"failed_events"`
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.InfoContext(ctx, "getting stats")

	byCategory, err := h.ledger.CountByCategory(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count processed events", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count processed events", http.StatusInternalServerError)
		return
	}

	pCount, err := h.pending.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count pending annotations", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count pending annotations", http.StatusInternalServerError)
		return
	}

	fCount, err := h.failures.Count(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count failed events", "error", err)
		h.writeError(ctx, w, "INTERNAL_ERROR", "failed to count failed events", http.StatusInternalServerError)
		return
	}

	total := 0
	for _, n := range byCategory {
		total += n
	}
	if byCategory == nil {
		byCategory = map[event.Category]int{}
	}

	resp := StatsResponse{
		Processed:    total,
		ByCategory:   byCategory,
		Pending:      pCount,
		FailedEvents: fCount,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": resp}); err != nil {
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
		slog.Error("failed to encode error response", "error", err)
	}
}
