package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/siherrmann/roofrag/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderErrorClassification(t *testing.T) {
	t.Run("Rate limited", func(t *testing.T) {
		err := fmt.Errorf("wrapped: %w", &ProviderError{StatusCode: http.StatusTooManyRequests, Message: "slow down"})
		assert.True(t, IsRateLimited(err))
		assert.False(t, IsFatal(err))
		assert.False(t, IsPayloadTooLarge(err))
	})

	t.Run("Payload too large by status or message", func(t *testing.T) {
		assert.True(t, IsPayloadTooLarge(&ProviderError{StatusCode: http.StatusRequestEntityTooLarge}))
		assert.True(t, IsPayloadTooLarge(&ProviderError{StatusCode: http.StatusBadRequest, Message: "This model's maximum context length is 8192 tokens"}))
	})

	t.Run("Fatal credentials", func(t *testing.T) {
		assert.True(t, IsFatal(&ProviderError{StatusCode: http.StatusUnauthorized}))
		assert.True(t, IsFatal(&ProviderError{StatusCode: http.StatusForbidden}))
	})

	t.Run("Plain errors are not classified", func(t *testing.T) {
		err := errors.New("connection reset")
		assert.False(t, IsRateLimited(err))
		assert.False(t, IsFatal(err))
		assert.False(t, IsPayloadTooLarge(err))
	})

	t.Run("Error message", func(t *testing.T) {
		assert.Equal(t, "provider returned status 500: oops", (&ProviderError{StatusCode: 500, Message: "oops"}).Error())
		assert.Equal(t, "provider error: empty", (&ProviderError{Message: "empty"}).Error())
	})
}

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *helper.ProviderConfiguration {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &helper.ProviderConfiguration{
		Provider:       helper.ProviderOpenAI,
		APIKey:         "test-key",
		BaseURL:        server.URL + "/v1",
		EmbeddingModel: "text-embedding-3-small",
		EmbeddingDim:   3,
	}
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("Embed returns vector and usage", func(t *testing.T) {
		config := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "text-embedding-3-small", body["model"])
			assert.Equal(t, float64(3), body["dimensions"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-3-small","usage":{"prompt_tokens":4,"total_tokens":4}}`))
		})

		provider, err := NewOpenAIProvider(config)
		require.NoError(t, err)

		response, err := provider.Embed(context.Background(), "hail damage shingles")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, response.Vector)
		assert.Equal(t, 4, response.TotalTokens)
	})

	t.Run("API errors keep their status code", func(t *testing.T) {
		config := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
		})

		provider, err := NewOpenAIProvider(config)
		require.NoError(t, err)

		_, err = provider.Embed(context.Background(), "text")
		require.Error(t, err)
		assert.True(t, IsRateLimited(err), "Expected a rate limit error, got %v", err)
	})

	t.Run("Unauthorized is fatal", func(t *testing.T) {
		config := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`))
		})

		provider, err := NewOpenAIProvider(config)
		require.NoError(t, err)

		_, err = provider.Embed(context.Background(), "text")
		assert.True(t, IsFatal(err), "Expected a fatal error, got %v", err)
	})

	t.Run("Missing API key", func(t *testing.T) {
		_, err := NewOpenAIProvider(&helper.ProviderConfiguration{Provider: helper.ProviderOpenAI})
		assert.ErrorIs(t, err, helper.ErrMissingConfig)
	})
}

func TestHashProvider(t *testing.T) {
	provider := NewHashProvider(64)
	ctx := context.Background()

	embed := func(text string) []float32 {
		response, err := provider.Embed(ctx, text)
		require.NoError(t, err)
		return response.Vector
	}

	t.Run("Deterministic and normalized", func(t *testing.T) {
		a := embed("Ice dams form in winter")
		b := embed("Ice dams form in winter")
		assert.Equal(t, a, b)
		assert.Len(t, a, 64)

		var norm float64
		for _, v := range a {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("Shared words increase similarity", func(t *testing.T) {
		query := embed("hail damage shingles")
		related := embed("Class 4 impact-resistant shingles protect against hail")
		unrelated := embed("Gutter cleaning schedule for autumn")
		assert.Greater(t, dot(query, related), dot(query, unrelated))
	})

	t.Run("Text without words", func(t *testing.T) {
		vector := embed("?!")
		assert.Equal(t, float32(1), vector[0])
	})

	t.Run("Default dimensions", func(t *testing.T) {
		assert.Equal(t, 384, NewHashProvider(0).Dimensions())
	})
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
