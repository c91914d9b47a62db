package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"reelsync/backend/internal/event"
	"reelsync/backend/internal/router"
)

const (
	maxBodyBytes  = 1 << 20
	eventReceived = "EVENT_RECEIVED"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, e event.InboundEvent) router.Decision
}

type Handler struct {
	dispatcher  Dispatcher
	verifyToken string
}

func NewHandler(d Dispatcher, verifyToken string) *Handler {
	return &Handler{dispatcher: d, verifyToken: verifyToken}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.Verify(w, r)
	case http.MethodPost:
		h.Receive(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Verify answers the platform's subscription handshake by echoing
// hub.challenge when hub.verify_token matches.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if h.verifyToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		slog.WarnContext(ctx, "webhook verification rejected", "mode", q.Get("hub.mode"))
		http.Error(w, "Invalid verify_token", http.StatusForbidden)
		return
	}

	slog.InfoContext(ctx, "webhook verified", "mode", q.Get("hub.mode"))
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, challenge)
}

// Receive acknowledges every well-formed notification. Processing happens in
// the background and its outcome is never reflected in the response.
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		slog.WarnContext(ctx, "failed to read webhook body", "error", err)
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}

	e, err := Decode(body)
	if err != nil {
		slog.WarnContext(ctx, "malformed webhook payload", "error", err)
		msg := "Malformed payload"
		if errors.Is(err, ErrUnexpectedObject) {
			msg = "Invalid object type"
		}
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	dec := h.dispatcher.Dispatch(ctx, e)
	if dec.Outcome == router.Reject && dec.Reason == router.ReasonMalformedPayload {
		http.Error(w, "Malformed payload", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, eventReceived)
}
