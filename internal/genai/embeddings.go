// Package genai provides embedding support for the in-memory RAG store.
package genai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
)

// DefaultEmbeddingModel is used when no embedding model is configured.
const DefaultEmbeddingModel = "nvidia/nv-embedqa-e5-v5"

// EmbedTexts returns one embedding vector per input text, preserving order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := c.embeddingModel
	if model == "" {
		model = DefaultEmbeddingModel
	}

	embedCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.embeddings.New(embedCtx, openai.EmbeddingNewParams{
		Model: model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	vectors := make([][]float64, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	slog.Debug("genai.EmbedTexts: embedded texts", "provider", c.name, "model", model, "count", len(vectors))
	return vectors, nil
}
