// Package placeholder provides an embedder that carries no meaning: every text
// maps to a pseudo-random unit vector seeded from its hash.
package placeholder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
)

// DefaultDimension is the embedder dimension when none is configured.
const DefaultDimension = 768

// Embedder produces deterministic pseudo-random vectors.
type Embedder struct {
	dim int
}

// NewEmbedder creates a placeholder embedder of the given dimension.
func NewEmbedder(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, errors.New("placeholder embedder dimension must be positive")
	}
	return &Embedder{dim: dimension}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "placeholder-" + strconv.Itoa(e.dim) }

// Dimension returns the embedding dimension.
func (e *Embedder) Dimension() int { return e.dim }

// Embed returns the unit vector for text. Identical text gives an identical vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float64, error) {
	sum := sha256.Sum256([]byte(text))
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[0:8]), binary.LittleEndian.Uint64(sum[8:16])))

	vec := make([]float64, e.dim)
	norm := 0.0
	for i := range vec {
		v := rng.NormFloat64()
		vec[i] = v
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}
