package gemini_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"reelsync/backend/internal/adapter/gemini"
)

func TestEmbedder_Embed(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float32{0.1, 0.2, 0.3},
			},
		})
	}))
	defer ts.Close()

	embedder := gemini.NewEmbedder("test-key", "", option.WithEndpoint(ts.URL))
	defer embedder.Close()

	vec, err := embedder.Embed(context.Background(), "dog doing a trick")
	require.NoError(t, err)
	if assert.Len(t, vec, 3) {
		assert.Equal(t, float32(0.1), vec[0])
	}
}

func TestEmbedder_MissingAPIKey(t *testing.T) {
	embedder := gemini.NewEmbedder("", "")

	vec, err := embedder.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, gemini.ErrMissingAPIKey)
	assert.Nil(t, vec)
}
