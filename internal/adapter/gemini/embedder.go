package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const DefaultEmbeddingModel = "gemini-embedding-001"

type Embedder struct {
	holder *clientHolder
	model  string
}

func NewEmbedder(apiKey, model string, opts ...option.ClientOption) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{holder: newClientHolder(apiKey, opts), model: model}
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	client, err := e.holder.get(ctx)
	if err != nil {
		return nil, err
	}

	res, err := client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, classify(err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}
	return res.Embedding.Values, nil
}

func (e *Embedder) Close() error {
	return e.holder.Close()
}
