package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finkg/backend/pkg/ai"

	"github.com/openai/openai-go/v3"
)

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model.
//
// Blank input yields a zero vector of the configured dimension without
// calling the API.
//
// Example:
//
//	embedding, err := client.GenerateEmbedding(ctx, []byte("share buyback"))
//	if err != nil {
//		log.Fatal(err)
//	}
func (c *GraphOpenAIClient) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if len(strings.TrimSpace(string(input))) == 0 {
		return make([]float32, ai.EmbeddingDimensions), nil
	}
	if c.EmbeddingClient == nil {
		return nil, errors.New("embedding client is not configured")
	}

	rCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.reqLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.reqLock.Release(1)

	body := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(string(input))},
		Model: c.embeddingModel,
	}

	start := time.Now()
	response, err := c.EmbeddingClient.Embeddings.New(rCtx, body)
	if err != nil {
		return nil, err
	}
	c.modifyMetrics(ai.ModelMetrics{
		InputTokens: int(response.Usage.PromptTokens),
		TotalTokens: int(response.Usage.TotalTokens),
		DurationMs:  time.Since(start).Milliseconds(),
	})

	if len(response.Data) != 1 {
		return nil, fmt.Errorf("unexpected embedding result size: got %d want 1", len(response.Data))
	}

	raw := response.Data[0].Embedding
	out := make([]float32, 0, len(raw))
	for _, v := range raw {
		out = append(out, float32(v))
	}
	return ai.FitDimensions(out), nil
}
