package embedding

import (
	"context"
	"fmt"
	"time"

	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/embedding/lexical"
	"pdfqa/internal/embedding/openai"
	"pdfqa/internal/embedding/placeholder"
)

const defaultMaxRetries = 3

// Embedder converts free text into a numeric vector representation.
// The dimension is fixed at construction and Embed is deterministic for a
// given configuration. Name identifies backend and dimension so that an index
// can refuse vectors from a different embedder.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// New builds the embedder selected by cfg.Backend.
func New(cfg config.EmbedderConfig) (Embedder, error) {
	switch cfg.Backend {
	case config.BackendPlaceholder, "":
		e, err := placeholder.NewEmbedder(cfg.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		return e, nil
	case config.BackendLexical:
		e, err := lexical.NewEmbedder(cfg.Dimension)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrConfig, err)
		}
		return e, nil
	case config.BackendOpenAI, config.BackendRealModel:
		oc := cfg.OpenAI
		if oc == nil {
			oc = &config.OpenAIEmbedderConfig{}
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    oc.BaseURL,
			APIKeyEnv:  oc.APIKeyEnv,
			Model:      oc.Model,
			Dimension:  cfg.Dimension,
			Timeout:    time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries: maxRetries(oc.MaxRetries),
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedder backend %q", domain.ErrConfig, cfg.Backend)
	}
}

// maxRetries resolves an unset retry count to the client default. An explicit
// zero is kept.
func maxRetries(n *int) int {
	if n == nil {
		return defaultMaxRetries
	}
	return *n
}

// EmbedAll embeds texts in order and checks every vector against emb.Dimension().
func EmbedAll(ctx context.Context, emb Embedder, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vec, err := emb.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		if len(vec) != emb.Dimension() {
			return nil, fmt.Errorf("%w: embedder %s returned %d values for text %d, expected %d", domain.ErrDimensionMismatch, emb.Name(), len(vec), i, emb.Dimension())
		}
		vectors[i] = vec
	}
	return vectors, nil
}
