package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabaseConfiguration(t *testing.T) {
	t.Run("Reads configuration from env", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "55432")

		config, err := NewDatabaseConfiguration()
		require.NoError(t, err)
		assert.Equal(t, "localhost", config.Host)
		assert.Equal(t, "55432", config.Port)
		assert.Equal(t, "public", config.Schema)
		assert.Contains(t, config.DSN(), "port=55432")
		assert.Contains(t, config.DSN(), "sslmode=disable")
	})

	t.Run("Missing credentials fail fast", func(t *testing.T) {
		SetTestDatabaseConfigEnvs(t, "55432")
		t.Setenv("DB_PASSWORD", "")
		t.Setenv("DB_HOST", "")

		_, err := NewDatabaseConfiguration()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingConfig)
		assert.Contains(t, err.Error(), "DB_HOST")
		assert.Contains(t, err.Error(), "DB_PASSWORD")
	})

	t.Run("Nil configuration is rejected", func(t *testing.T) {
		_, err := NewDatabase("test", nil, nil)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "database configuration is nil")
	})
}

func TestNewProviderConfiguration(t *testing.T) {
	t.Run("OpenAI requires an api key", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", ProviderOpenAI)
		t.Setenv("OPENAI_API_KEY", "")

		_, err := NewProviderConfiguration()
		assert.ErrorIs(t, err, ErrMissingConfig)
		assert.Contains(t, err.Error(), "OPENAI_API_KEY")
	})

	t.Run("OpenAI defaults", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", "")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("EMBEDDING_DIM", "")

		config, err := NewProviderConfiguration()
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, config.Provider)
		assert.Equal(t, 1536, config.EmbeddingDim)
		assert.True(t, config.HasCompletion())
	})

	t.Run("Hash provider with custom dimension", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", ProviderHash)
		t.Setenv("OPENAI_API_KEY", "")
		t.Setenv("EMBEDDING_DIM", "64")

		config, err := NewProviderConfiguration()
		require.NoError(t, err)
		assert.Equal(t, 64, config.EmbeddingDim)
		assert.False(t, config.HasCompletion())
	})

	t.Run("Invalid dimension", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", ProviderHash)
		t.Setenv("EMBEDDING_DIM", "abc")

		_, err := NewProviderConfiguration()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "EMBEDDING_DIM")
	})

	t.Run("Unknown provider", func(t *testing.T) {
		t.Setenv("EMBEDDING_PROVIDER", "cohere")

		_, err := NewProviderConfiguration()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "unknown EMBEDDING_PROVIDER")
	})
}

func TestEmbeddingDimension(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "")

	dim, err := EmbeddingDimension(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, 1536, dim)

	dim, err = EmbeddingDimension(ProviderLocal)
	require.NoError(t, err)
	assert.Equal(t, 384, dim)

	t.Setenv("EMBEDDING_DIM", "768")
	dim, err = EmbeddingDimension(ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, 768, dim, "Expected EMBEDDING_DIM to win without credentials")

	_, err = EmbeddingDimension("cohere")
	assert.Error(t, err)
}
