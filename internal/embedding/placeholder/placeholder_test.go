package placeholder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedder(t *testing.T) {
	ctx := context.Background()
	emb, err := NewEmbedder(DefaultDimension)
	require.NoError(t, err)

	t.Run("same text gives the same vector", func(t *testing.T) {
		a, err := emb.Embed(ctx, "What is the battery capacity?")
		require.NoError(t, err)
		b, err := emb.Embed(ctx, "What is the battery capacity?")
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("separate instances agree", func(t *testing.T) {
		other, err := NewEmbedder(DefaultDimension)
		require.NoError(t, err)
		a, _ := emb.Embed(ctx, "thermal limits")
		b, _ := other.Embed(ctx, "thermal limits")
		assert.Equal(t, a, b)
	})

	t.Run("different text gives a different vector", func(t *testing.T) {
		a, _ := emb.Embed(ctx, "alpha")
		b, _ := emb.Embed(ctx, "beta")
		assert.NotEqual(t, a, b)
	})

	t.Run("vectors have the declared dimension and unit length", func(t *testing.T) {
		v, err := emb.Embed(ctx, "")
		require.NoError(t, err)
		require.Len(t, v, DefaultDimension)
		norm := 0.0
		for _, x := range v {
			norm += x * x
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
	})

	t.Run("name carries the dimension", func(t *testing.T) {
		assert.Equal(t, "placeholder-768", emb.Name())
		assert.Equal(t, DefaultDimension, emb.Dimension())
	})

	t.Run("rejects non-positive dimension", func(t *testing.T) {
		_, err := NewEmbedder(0)
		assert.Error(t, err)
	})
}
