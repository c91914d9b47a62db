package webhook_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"reelsync/backend/features/webhook"
	"reelsync/backend/internal/event"
	"reelsync/backend/internal/router"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, e event.InboundEvent) router.Decision {
	args := m.Called(ctx, e)
	return args.Get(0).(router.Decision)
}

const textBody = `{"object":"instagram","entry":[{"time":1700000000000,"messaging":[{"sender":{"id":"u1"},"message":{"mid":"mid-1","text":"hello"}}]}]}`

func TestHandler_Verify(t *testing.T) {
	h := webhook.NewHandler(new(MockDispatcher), "secret")

	t.Run("Match", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=secret&hub.challenge=12345", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "12345", w.Body.String())
	})

	t.Run("Mismatch", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=wrong&hub.challenge=12345", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NotContains(t, w.Body.String(), "12345")
	})

	t.Run("NoTokenConfigured", func(t *testing.T) {
		h := webhook.NewHandler(new(MockDispatcher), "")
		req := httptest.NewRequest(http.MethodGet, "/webhook?hub.verify_token=&hub.challenge=1", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestHandler_Receive(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		decision   *router.Decision
		wantStatus int
		wantBody   string
	}{
		{
			name:       "Accepted",
			body:       textBody,
			decision:   &router.Decision{Outcome: router.Accept, Route: router.RouteAnnotation},
			wantStatus: http.StatusOK,
			wantBody:   "EVENT_RECEIVED",
		},
		{
			name:       "Duplicate",
			body:       textBody,
			decision:   &router.Decision{Outcome: router.Duplicate},
			wantStatus: http.StatusOK,
			wantBody:   "EVENT_RECEIVED",
		},
		{
			name:       "Self message",
			body:       textBody,
			decision:   &router.Decision{Outcome: router.Reject, Reason: router.ReasonSelfMessage},
			wantStatus: http.StatusOK,
			wantBody:   "EVENT_RECEIVED",
		},
		{
			name:       "Rejected as malformed",
			body:       textBody,
			decision:   &router.Decision{Outcome: router.Reject, Reason: router.ReasonMalformedPayload},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Wrong object",
			body:       `{"object":"page"}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Invalid object type",
		},
		{
			name:       "Missing messaging",
			body:       `{"object":"instagram","entry":[{}]}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Malformed payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := new(MockDispatcher)
			if tt.decision != nil {
				d.On("Dispatch", mock.Anything, mock.MatchedBy(func(e event.InboundEvent) bool {
					return e.ExternalID == "mid-1" && e.SenderID == "u1"
				})).Return(*tt.decision)
			}
			h := webhook.NewHandler(d, "secret")

			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			if tt.decision == nil {
				d.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
			} else {
				d.AssertExpectations(t)
			}
		})
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := webhook.NewHandler(new(MockDispatcher), "secret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/webhook", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET, POST", w.Header().Get("Allow"))
}

func TestHandler_BodyTooLarge(t *testing.T) {
	h := webhook.NewHandler(new(MockDispatcher), "secret")
	big := strings.Repeat("a", (1<<20)+1)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(big)))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
