package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var ErrMissingAPIKey = errors.New("gemini api key not configured")

// clientHolder lazily creates one genai client and shares it between the
// embedder and the captioner.
type clientHolder struct {
	apiKey string
	opts   []option.ClientOption

	mu     sync.RWMutex
	client *genai.Client
}

func newClientHolder(apiKey string, opts []option.ClientOption) *clientHolder {
	return &clientHolder{apiKey: apiKey, opts: opts}
}

func (h *clientHolder) get(ctx context.Context) (*genai.Client, error) {
	if h.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	h.mu.RLock()
	if h.client != nil {
		defer h.mu.RUnlock()
		return h.client, nil
	}
	h.mu.RUnlock()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Double check
	if h.client != nil {
		return h.client, nil
	}

	opts := append([]option.ClientOption{option.WithAPIKey(h.apiKey)}, h.opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	h.client = client
	return client, nil
}

func (h *clientHolder) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.client == nil {
		return nil
	}
	err := h.client.Close()
	if err != nil {
		slog.Warn("failed to close genai client", "error", err)
	}
	h.client = nil
	return err
}
