package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/siherrmann/roofrag/helper"
)

// OpenAIProvider embeds text with an OpenAI compatible embeddings endpoint.
type OpenAIProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIClient creates a go-openai client honoring OPENAI_BASE_URL.
func NewOpenAIClient(config *helper.ProviderConfiguration) (*openai.Client, error) {
	if config == nil {
		return nil, fmt.Errorf("provider configuration is nil")
	}
	if config.APIKey == "" {
		return nil, helper.NewMissingConfigError("OPENAI_API_KEY")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig), nil
}

// NewOpenAIProvider creates an embedding provider for config.EmbeddingModel.
func NewOpenAIProvider(config *helper.ProviderConfiguration) (*OpenAIProvider, error) {
	client, err := NewOpenAIClient(config)
	if err != nil {
		return nil, err
	}

	provider := &OpenAIProvider{
		client: client,
		model:  openai.EmbeddingModel(config.EmbeddingModel),
	}
	// Only the text-embedding-3 family accepts a requested dimension.
	if strings.HasPrefix(config.EmbeddingModel, "text-embedding-3") {
		provider.dimensions = config.EmbeddingDim
	}
	return provider, nil
}

func (p *OpenAIProvider) Embed(ctx context.Context, text string) (*EmbeddingResponse, error) {
	response, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      p.model,
		Dimensions: p.dimensions,
	})
	if err != nil {
		return nil, openAIError(err)
	}
	if len(response.Data) == 0 {
		return nil, &ProviderError{Message: "no embedding returned"}
	}

	return &EmbeddingResponse{
		Vector:      response.Data[0].Embedding,
		TotalTokens: response.Usage.TotalTokens,
	}, nil
}

// openAIError maps go-openai errors to a ProviderError carrying the HTTP status.
func openAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var requestErr *openai.RequestError
	if errors.As(err, &requestErr) {
		return &ProviderError{StatusCode: requestErr.HTTPStatusCode, Message: requestErr.Error(), Err: err}
	}
	return err
}
