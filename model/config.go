package model

import (
	"fmt"
	"time"
)

// Similarity thresholds for real and synthetic embeddings.
const (
	DefaultSimilarityThreshold = 0.75
	DemoSimilarityThreshold    = 0.1
)

// ChunkerConfig represents configuration for the token chunker
type ChunkerConfig struct {
	ChunkSize        int `json:"chunk_size"`        // Maximum tokens of new content per chunk
	Overlap          int `json:"overlap"`           // Token slack for sentences carried over from the previous chunk
	OverlapSentences int `json:"overlap_sentences"` // Trailing sentences carried over, 1 or 2
}

// DefaultChunkerConfig returns a sensible default configuration
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:        700,
		Overlap:          100,
		OverlapSentences: 2,
	}
}

func (c ChunkerConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must not be negative")
	}
	if c.OverlapSentences < 0 || c.OverlapSentences > 2 {
		return fmt.Errorf("overlap sentences must be between 0 and 2")
	}
	return nil
}

// EmbedderConfig represents configuration for the embedding generator
type EmbedderConfig struct {
	BatchSize         int           `json:"batch_size"`
	Concurrency       int           `json:"concurrency"` // Parallel calls inside a batch, capped at BatchSize
	BatchDelay        time.Duration `json:"batch_delay"`
	MaxRetries        int           `json:"max_retries"` // Attempts per chunk
	BaseDelay         time.Duration `json:"base_delay"`
	RateLimitCooldown time.Duration `json:"rate_limit_cooldown"`
	RequestTimeout    time.Duration `json:"request_timeout"`
	MaxChars          int           `json:"max_chars"`
	RequestsPerSecond float64       `json:"requests_per_second"` // 0 disables pacing
	CostPer1KTokens   float64       `json:"cost_per_1k_tokens"`
}

// DefaultEmbedderConfig returns a sensible default configuration
func DefaultEmbedderConfig() EmbedderConfig {
	return EmbedderConfig{
		BatchSize:         20,
		Concurrency:       5,
		BatchDelay:        time.Second,
		MaxRetries:        3,
		BaseDelay:         2 * time.Second,
		RateLimitCooldown: 60 * time.Second,
		RequestTimeout:    30 * time.Second,
		MaxChars:          32000,
		RequestsPerSecond: 0,
		CostPer1KTokens:   0.00002,
	}
}

func (c EmbedderConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("max chars must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// UploadConfig represents configuration for the batched store writer
type UploadConfig struct {
	BatchSize      int           `json:"batch_size"`
	MaxRetries     int           `json:"max_retries"`
	RetryDelay     time.Duration `json:"retry_delay"`
	BatchDelay     time.Duration `json:"batch_delay"`
	RequestTimeout time.Duration `json:"request_timeout"`
}

// DefaultUploadConfig returns a sensible default configuration
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		BatchSize:      50,
		MaxRetries:     3,
		RetryDelay:     time.Second,
		BatchDelay:     200 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
	}
}

func (c UploadConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	return nil
}

// SearchOptions represents configuration for a similarity search
type SearchOptions struct {
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxResults          int     `json:"max_results"`
	FilterCategory      string  `json:"filter_category,omitempty"`
	FilterUrgency       string  `json:"filter_urgency,omitempty"`
}

// DefaultSearchOptions returns a sensible default configuration
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MaxResults:          5,
	}
}

func (o SearchOptions) Validate() error {
	if o.SimilarityThreshold < -1 || o.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be between -1 and 1, got %v", o.SimilarityThreshold)
	}
	if o.MaxResults <= 0 {
		return fmt.Errorf("max results must be positive, got %d", o.MaxResults)
	}
	if o.FilterCategory != "" && !IsCategory(o.FilterCategory) {
		return fmt.Errorf("unknown category filter %q", o.FilterCategory)
	}
	if o.FilterUrgency != "" && !IsUrgency(o.FilterUrgency) {
		return fmt.Errorf("unknown urgency filter %q", o.FilterUrgency)
	}
	return nil
}
