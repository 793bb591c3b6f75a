package pipeline

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/siherrmann/roofrag/model"
)

// HashProvider is a deterministic bag-of-words embedder for demo mode and tests.
// Each lowercased word is hashed into one signed bucket and the vector is L2 normalized.
type HashProvider struct {
	dimensions int
}

func NewHashProvider(dimensions int) *HashProvider {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashProvider{dimensions: dimensions}
}

func (p *HashProvider) Dimensions() int {
	return p.dimensions
}

func (p *HashProvider) Embed(ctx context.Context, text string) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, p.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vector[sum%uint64(p.dimensions)] += sign
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	} else {
		// Texts without words still need a usable direction.
		vector[0] = 1
	}

	return &EmbeddingResponse{Vector: vector, TotalTokens: model.EstimateTokens(text)}, nil
}
