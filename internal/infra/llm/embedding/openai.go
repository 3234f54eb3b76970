// Package embedding implements the EmbeddingClient (C10): a throttled,
// order-preserving wrapper around an OpenAI-compatible embeddings endpoint.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"

	"github.com/vigilfeed/vigilfeed/internal/resilience/circuitbreaker"
	"github.com/vigilfeed/vigilfeed/internal/resilience/retry"
)

const (
	// DefaultModel matches the dimension recorded in the embedding schema
	// (vector(1536) columns in article_embeddings / knowledge_documents).
	DefaultModel   = "text-embedding-3-small"
	defaultThrottle = 200 * time.Millisecond
)

// Client wraps openai.Client's embeddings endpoint with a minimum-interval
// throttle between calls, and reorders batch responses into request order.
type Client struct {
	client         *openai.Client
	model          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config

	mu       sync.Mutex
	throttle time.Duration
	lastCall time.Time
}

type Option func(*Client)

func WithModel(model string) Option {
	return func(c *Client) { c.model = model }
}

func WithThrottle(d time.Duration) Option {
	return func(c *Client) { c.throttle = d }
}

func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		client:         openai.NewClient(apiKey),
		model:          DefaultModel,
		circuitBreaker: circuitbreaker.New(circuitbreaker.OpenAIAPIConfig()),
		retryConfig:    retry.AIAPIConfig(),
		throttle:       defaultThrottle,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// EmbedText embeds a single piece of text. An empty text is invalid.
func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embedding: text must not be empty")
	}
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds a set of texts, preserving input order in the output
// regardless of the order the provider's response lists them in. Empty
// texts are passed through as empty vectors at their original position,
// without being sent to the provider.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("embedding: texts must not be empty")
	}

	nonEmpty := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, t := range texts {
		if t != "" {
			nonEmpty = append(nonEmpty, t)
			positions = append(positions, i)
		}
	}

	result := make([][]float32, len(texts))
	if len(nonEmpty) == 0 {
		return result, nil
	}

	c.throttleCall()

	var resp openai.EmbeddingResponse
	retryErr := retry.WithBackoff(ctx, c.retryConfig, func() error {
		cbResult, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: nonEmpty,
				Model: openai.EmbeddingModel(c.model),
			})
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) {
				slog.WarnContext(ctx, "embedding api circuit breaker open, request rejected",
					slog.String("service", "embedding-api"))
				return fmt.Errorf("embedding api unavailable: circuit breaker open")
			}
			return err
		}
		resp = cbResult.(openai.EmbeddingResponse)
		return nil
	})
	if retryErr != nil {
		return nil, fmt.Errorf("embedding batch failed after retries: %w", retryErr)
	}

	if len(resp.Data) != len(nonEmpty) {
		return nil, fmt.Errorf("embedding: provider returned %d vectors for %d inputs", len(resp.Data), len(nonEmpty))
	}

	// Provider responses are not guaranteed to preserve request order; each
	// embedding object carries an Index field back into the request slice.
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(positions) {
			return nil, fmt.Errorf("embedding: response index %d out of range", d.Index)
		}
		result[positions[d.Index]] = d.Embedding
	}

	return result, nil
}

func (c *Client) throttleCall() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.throttle - time.Since(c.lastCall); wait > 0 {
		time.Sleep(wait)
	}
	c.lastCall = time.Now()
}
