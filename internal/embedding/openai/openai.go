package openai

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"pdfqa/internal/domain"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	client     *goopenai.Client
	model      string
	dimension  int
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	Dimension  int
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key in env %s", domain.ErrConfig, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = string(goopenai.SmallEmbedding3)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: embedding dimension must be positive", domain.ErrConfig)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	oc := goopenai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		client:     goopenai.NewClientWithConfig(oc),
		model:      cfg.Model,
		dimension:  cfg.Dimension,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Name identifies the model and dimension so an index built with one model is
// never queried with another.
func (c *Client) Name() string { return "openai-" + c.model + "-" + strconv.Itoa(c.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	req := goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(c.model),
	}
	// Only the text-embedding-3 family accepts a requested size.
	if strings.HasPrefix(c.model, "text-embedding-3") {
		req.Dimensions = c.dimension
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, retryDelay(c.retryDelay, attempt)); err != nil {
				return nil, err
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		resp, err := c.client.CreateEmbeddings(reqCtx, req)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			if !retryable(err) {
				break
			}
			continue
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			lastErr = fmt.Errorf("attempt %d: no embedding returned", attempt+1)
			continue
		}

		v32 := resp.Data[0].Embedding
		if len(v32) != c.dimension {
			return nil, fmt.Errorf("%w: model %s returned %d values, expected %d", domain.ErrDimensionMismatch, c.model, len(v32), c.dimension)
		}
		v := make([]float64, len(v32))
		for i, x := range v32 {
			v[i] = float64(x)
		}
		return v, nil
	}
	return nil, fmt.Errorf("openai embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	// transport errors
	return true
}

// retryDelay is exponential backoff capped at 5s with up to 25% jitter either way.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 16 {
		attempt = 16
	}
	d := base << (attempt - 1)
	if d > 5*time.Second || d <= 0 {
		d = 5 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
