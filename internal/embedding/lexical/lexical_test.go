package lexical

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	emb, err := NewEmbedder(512)
	require.NoError(t, err)

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := emb.Embed(ctx, "The battery capacity is 40 Ah.")
		require.NoError(t, err)
		b, err := emb.Embed(ctx, "The battery capacity is 40 Ah.")
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.Len(t, a, 512)
		assert.InDelta(t, 1.0, math.Sqrt(dot(a, a)), 1e-9)
	})

	t.Run("shared terms score higher than unrelated text", func(t *testing.T) {
		q, _ := emb.Embed(ctx, "battery capacity")
		related, _ := emb.Embed(ctx, "The battery capacity is rated at 40 Ah at 28V.")
		unrelated, _ := emb.Embed(ctx, "Thermal blankets cover the radiator panels.")
		assert.Greater(t, dot(q, related), dot(q, unrelated))
	})

	t.Run("stopwords only yields the zero vector", func(t *testing.T) {
		v, err := emb.Embed(ctx, "what is the")
		require.NoError(t, err)
		assert.Equal(t, 0.0, dot(v, v))
	})

	t.Run("case is ignored", func(t *testing.T) {
		a, _ := emb.Embed(ctx, "Solar Array")
		b, _ := emb.Embed(ctx, "solar array")
		assert.Equal(t, a, b)
	})

	t.Run("name and dimension", func(t *testing.T) {
		assert.Equal(t, "lexical-512", emb.Name())
		assert.Equal(t, 512, emb.Dimension())
	})

	t.Run("rejects non-positive dimension", func(t *testing.T) {
		_, err := NewEmbedder(-1)
		assert.Error(t, err)
	})
}
