package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCorrelationID(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(CorrelationKey).(string)
		if !ok || id == "" {
			t.Error("correlation id missing from context")
		}
	}))

	req := httptest.NewRequest("POST", "/webhook", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Correlation-ID") == "" {
		t.Error("header missing")
	}
}

func TestCorrelationID_KeepsIncomingHeader(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetCorrelationID(r.Context()); got != "abc" {
			t.Errorf("expected abc, got %s", got)
		}
	}))

	req := httptest.NewRequest("POST", "/webhook", nil)
	req.Header.Set("X-Correlation-ID", "abc")
	handler.ServeHTTP(httptest.NewRecorder(), req)
}

func TestWithEvent(t *testing.T) {
	ctx := WithEvent(context.Background(), "req-1", "mid-1", "u1")
	if got := GetCorrelationID(ctx); got != "req-1" {
		t.Errorf("expected req-1, got %s", got)
	}
	if got := GetExternalID(ctx); got != "mid-1" {
		t.Errorf("expected mid-1, got %s", got)
	}
	if got := GetSenderID(ctx); got != "u1" {
		t.Errorf("expected u1, got %s", got)
	}
	if got := GetCorrelationID(context.Background()); got != "unknown" {
		t.Errorf("expected unknown, got %s", got)
	}
}
