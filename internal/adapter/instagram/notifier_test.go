package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reelsync/backend/internal/credential"
	"reelsync/backend/internal/event"
)

type graphRecorder struct {
	mu       sync.Mutex
	requests []sendRequest
	times    []time.Time
	auth     []string
}

func newGraphServer(t *testing.T, status int) (*httptest.Server, *graphRecorder) {
	rec := &graphRecorder{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages", r.URL.Path)
		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		rec.mu.Lock()
		rec.requests = append(rec.requests, req)
		rec.times = append(rec.times, time.Now())
		rec.auth = append(rec.auth, r.Header.Get("Authorization"))
		rec.mu.Unlock()

		w.WriteHeader(status)
		w.Write([]byte(`{"recipient_id":"u1","message_id":"m"}`))
	}))
	t.Cleanup(ts.Close)
	return ts, rec
}

func staticCreds() credential.Source {
	return credential.Static{Credential: event.Credential{AccessToken: "tok"}}
}

func TestNotifier_NotifyChunksAndPaces(t *testing.T) {
	ts, rec := newGraphServer(t, http.StatusOK)
	n := NewNotifier(Config{BaseURL: ts.URL, ChunkSize: 10, ChunkDelay: 20 * time.Millisecond}, staticCreds(), ts.Client())

	err := n.Notify(context.Background(), "u1", strings.Repeat("x", 25))
	require.NoError(t, err)

	require.Len(t, rec.requests, 3)
	assert.Equal(t, strings.Repeat("x", 10), rec.requests[0].Message.Text)
	assert.Equal(t, strings.Repeat("x", 5), rec.requests[2].Message.Text)
	assert.Equal(t, "u1", rec.requests[0].Recipient.ID)
	assert.Equal(t, "Bearer tok", rec.auth[0])
	for i := 1; i < len(rec.times); i++ {
		assert.GreaterOrEqual(t, rec.times[i].Sub(rec.times[i-1]), 15*time.Millisecond)
	}
}

func TestNotifier_React(t *testing.T) {
	ts, rec := newGraphServer(t, http.StatusOK)
	n := NewNotifier(Config{BaseURL: ts.URL}, staticCreds(), ts.Client())

	require.NoError(t, n.React(context.Background(), "u1", "mid-1", ""))
	require.Len(t, rec.requests, 1)
	assert.Equal(t, "react", rec.requests[0].SenderAction)
	assert.Equal(t, "mid-1", rec.requests[0].Payload["message_id"])
	assert.Equal(t, ReactionLove, rec.requests[0].Payload["reaction"])
	assert.Nil(t, rec.requests[0].Message)
}

func TestNotifier_SendMedia(t *testing.T) {
	ts, rec := newGraphServer(t, http.StatusOK)
	n := NewNotifier(Config{BaseURL: ts.URL + "/"}, staticCreds(), ts.Client())

	require.NoError(t, n.SendMedia(context.Background(), "u1", "https://cdn/l1"))
	require.Len(t, rec.requests, 1)
	require.NotNil(t, rec.requests[0].Message.Attachment)
	assert.Equal(t, "https://cdn/l1", rec.requests[0].Message.Attachment.Payload["url"])
}

func TestNotifier_ExpiredCredential(t *testing.T) {
	ts, rec := newGraphServer(t, http.StatusOK)
	creds := credential.Static{Credential: event.Credential{AccessToken: "tok", ExpiresAt: time.Now().Add(-time.Hour)}}
	n := NewNotifier(Config{BaseURL: ts.URL}, creds, ts.Client())

	err := n.Notify(context.Background(), "u1", "hello")
	assert.ErrorIs(t, err, ErrCredentialExpired)
	assert.Empty(t, rec.requests)
}

func TestNotifier_MissingCredential(t *testing.T) {
	ts, rec := newGraphServer(t, http.StatusOK)
	n := NewNotifier(Config{BaseURL: ts.URL}, credential.Static{}, ts.Client())

	err := n.React(context.Background(), "u1", "mid", ReactionLove)
	assert.ErrorIs(t, err, event.ErrNotFound)
	assert.Empty(t, rec.requests)
}

func TestNotifier_APIErrors(t *testing.T) {
	t.Run("server error is transient", func(t *testing.T) {
		ts, _ := newGraphServer(t, http.StatusBadGateway)
		n := NewNotifier(Config{BaseURL: ts.URL}, staticCreds(), ts.Client())
		err := n.Notify(context.Background(), "u1", "hello")
		assert.ErrorIs(t, err, event.ErrTransient)
	})

	t.Run("client error is not", func(t *testing.T) {
		ts, _ := newGraphServer(t, http.StatusBadRequest)
		n := NewNotifier(Config{BaseURL: ts.URL}, staticCreds(), ts.Client())
		err := n.Notify(context.Background(), "u1", "hello")
		require.Error(t, err)
		assert.NotErrorIs(t, err, event.ErrTransient)
		assert.Contains(t, err.Error(), "status 400")
	})
}

func TestNotifier_EmptyBodySendsNothing(t *testing.T) {
	ts, rec := newGraphServer(t, http.StatusOK)
	n := NewNotifier(Config{BaseURL: ts.URL}, staticCreds(), ts.Client())
	assert.NoError(t, n.Notify(context.Background(), "u1", "   "))
	assert.Empty(t, rec.requests)
}
