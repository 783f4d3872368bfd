// Package embedding generates text embeddings via OpenAI.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
)

const (
	// Model is the embedding model; its dimension must match
	// storage.VectorDimension.
	Model = "text-embedding-3-small"

	// Dimension is the vector size produced by Model.
	Dimension = 1536

	// DefaultBatchSize balances requests-per-minute against tokens-per-minute
	// rate limits. OpenAI accepts up to 2048 inputs per request.
	DefaultBatchSize = 500
)

// Client generates embeddings in batches with exponential backoff on rate
// limit errors.
type Client struct {
	api       openai.Client
	batchSize int
}

// NewClient reads OPENAI_API_KEY from the environment and returns a ready
// embedding client. batchSize <= 0 selects DefaultBatchSize.
func NewClient(batchSize int) (*Client, error) {
	if os.Getenv("OPENAI_API_KEY") == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Client{
		api:       openai.NewClient(),
		batchSize: batchSize,
	}, nil
}

// GenerateEmbeddings embeds the given texts, preserving input order.
func (c *Client) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	var all [][]float32

	for i := 0; i < len(texts); i += c.batchSize {
		end := min(i+c.batchSize, len(texts))
		vectors, err := c.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		all = append(all, vectors...)
	}

	return all, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.GenerateEmbeddings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatch embeds one batch, retrying with exponential backoff on HTTP 429.
// Other API errors are permanent and fail immediately.
func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: Model,
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return vectors, nil
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
