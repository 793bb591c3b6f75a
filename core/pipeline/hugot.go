package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
)

// HugotProvider embeds text locally with a sentence transformer ONNX model.
// The default all-MiniLM-L6-v2 model produces 384-dimensional embeddings.
type HugotProvider struct {
	mu      sync.Mutex
	run     func(texts []string) ([][]float32, error)
	destroy func() error
}

// NewHugotProvider downloads the model if needed and starts a hugot Go session.
func NewHugotProvider(modelName string) (*HugotProvider, error) {
	modelPath, err := helper.PrepareModel(modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "roofrag-embedder",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &HugotProvider{
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		destroy: session.Destroy,
	}, nil
}

// Embed runs the pipeline on a single text. Calls are serialized on the session.
func (p *HugotProvider) Embed(ctx context.Context, text string) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	embeddings, err := p.run([]string{text})
	if err != nil {
		return nil, &ProviderError{Message: fmt.Sprintf("failed to generate embedding: %v", err), Err: err}
	}
	if len(embeddings) == 0 {
		return nil, &ProviderError{Message: "no embedding generated"}
	}

	return &EmbeddingResponse{
		Vector:      embeddings[0],
		TotalTokens: model.EstimateTokens(text),
	}, nil
}

// Close destroys the hugot session
func (p *HugotProvider) Close() error {
	if p.destroy == nil {
		return nil
	}
	return p.destroy()
}
