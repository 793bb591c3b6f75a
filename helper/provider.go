package helper

import (
	"fmt"
	"os"
	"strconv"
)

// Embedding provider kinds.
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"
	ProviderHash   = "hash"
)

// ProviderConfiguration selects and configures the embedding and completion providers.
type ProviderConfiguration struct {
	Provider       string
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	ChatModel      string
	EmbeddingDim   int
	LocalModel     string
}

// NewProviderConfiguration reads the provider configuration from the environment.
func NewProviderConfiguration() (*ProviderConfiguration, error) {
	config := &ProviderConfiguration{
		Provider:       getEnvDefault("EMBEDDING_PROVIDER", ProviderOpenAI),
		APIKey:         os.Getenv("OPENAI_API_KEY"),
		BaseURL:        os.Getenv("OPENAI_BASE_URL"),
		EmbeddingModel: getEnvDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
		ChatModel:      getEnvDefault("CHAT_MODEL", "gpt-4o-mini"),
		LocalModel:     getEnvDefault("LOCAL_EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
	}

	if config.Provider == ProviderOpenAI && config.APIKey == "" {
		return nil, NewMissingConfigError("OPENAI_API_KEY")
	}

	dim, err := EmbeddingDimension(config.Provider)
	if err != nil {
		return nil, err
	}
	config.EmbeddingDim = dim

	return config, nil
}

// EmbeddingDimension returns EMBEDDING_DIM or the default dimension of the provider.
// It needs no credentials, so store-only commands can size the table.
func EmbeddingDimension(provider string) (int, error) {
	var dim int
	switch provider {
	case ProviderOpenAI:
		dim = 1536
	case ProviderLocal, ProviderHash:
		dim = 384
	default:
		return 0, NewError("configuration", fmt.Errorf("unknown EMBEDDING_PROVIDER %q (use openai, local or hash)", provider))
	}

	if v := os.Getenv("EMBEDDING_DIM"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return 0, NewError("configuration", fmt.Errorf("EMBEDDING_DIM must be a positive integer, got %q", v))
		}
		dim = parsed
	}
	return dim, nil
}

// HasCompletion reports whether a chat completion backend is configured.
func (c *ProviderConfiguration) HasCompletion() bool {
	return c.APIKey != ""
}
