package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHugotProvider(t *testing.T) {
	// Note: HugotProvider downloads the model on first use
	if testing.Short() {
		t.Skip("Skipping HugotProvider test in short mode (requires model download)")
	}

	provider, err := NewHugotProvider("sentence-transformers/all-MiniLM-L6-v2")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Close())
	}()

	t.Run("Generate embedding for text", func(t *testing.T) {
		response, err := provider.Embed(context.Background(), "Class 4 impact-resistant shingles protect against hail")
		require.NoError(t, err)
		assert.Len(t, response.Vector, 384, "all-MiniLM-L6-v2 produces 384-dimensional embeddings")
		assert.Greater(t, response.TotalTokens, 0)
	})

	t.Run("Same text produces same embedding", func(t *testing.T) {
		first, err := provider.Embed(context.Background(), "Ice dams form at the eaves")
		require.NoError(t, err)
		second, err := provider.Embed(context.Background(), "Ice dams form at the eaves")
		require.NoError(t, err)
		assert.Equal(t, first.Vector, second.Vector)
	})

	t.Run("Related texts are closer than unrelated ones", func(t *testing.T) {
		query, err := provider.Embed(context.Background(), "hail damage shingles")
		require.NoError(t, err)
		related, err := provider.Embed(context.Background(), "Class 4 impact-resistant shingles protect against hail")
		require.NoError(t, err)
		unrelated, err := provider.Embed(context.Background(), "Our office is open on weekdays")
		require.NoError(t, err)
		assert.Greater(t, dot(query.Vector, related.Vector), dot(query.Vector, unrelated.Vector))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := provider.Embed(ctx, "text")
		assert.Error(t, err)
	})
}
