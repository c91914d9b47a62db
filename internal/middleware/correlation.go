package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type key int

const (
	CorrelationKey key = iota
	SenderKey
	EventKey
)

// UnknownCorrelationID is reported for contexts that never passed through
// CorrelationID or WithEvent.
const UnknownCorrelationID = "unknown"

func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Correlation-ID")
		if id == "" {
			id = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), CorrelationKey, id)
		w.Header().Set("X-Correlation-ID", id)

		slog.Info("request received", "method", r.Method, "path", r.URL.Path, "correlation_id", id) // #nosec G706 -- r.URL.Path is parsed by Go's net/http
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		slog.Info("request completed", "method", r.Method, "path", r.URL.Path, "correlation_id", id, "duration", time.Since(start)) // #nosec G706
	})
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationKey).(string); ok {
		return id
	}
	return UnknownCorrelationID
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationKey, id)
}

// WithEvent tags ctx for a background handler with the correlation id of the
// originating request, the event's external id and its sender.
func WithEvent(ctx context.Context, correlationID, externalID, senderID string) context.Context {
	ctx = context.WithValue(ctx, CorrelationKey, correlationID)
	ctx = context.WithValue(ctx, EventKey, externalID)
	return context.WithValue(ctx, SenderKey, senderID)
}

func GetExternalID(ctx context.Context) string {
	id, _ := ctx.Value(EventKey).(string)
	return id
}

func GetSenderID(ctx context.Context) string {
	id, _ := ctx.Value(SenderKey).(string)
	return id
}
