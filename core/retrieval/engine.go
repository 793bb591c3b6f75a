package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/metrics"
	"github.com/siherrmann/roofrag/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/siherrmann/roofrag/core/retrieval")

// VectorStore persists knowledge records and answers similarity queries.
// database.KnowledgeDBHandler and MemoryStore implement it.
type VectorStore interface {
	Dimension() int
	UpsertRecords(ctx context.Context, records []*model.KnowledgeRecord) (*model.UpsertResult, error)
	SelectBySimilarity(ctx context.Context, embedding []float32, options model.SearchOptions) ([]*model.SearchResult, error)
	SelectStats(ctx context.Context) (*model.Stats, error)
}

// Engine validates search requests and runs them against a vector store
type Engine struct {
	store   VectorStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates a new retrieval engine
func NewEngine(store VectorStore, logger *slog.Logger) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is nil")
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &Engine{store: store, logger: logger}, nil
}

// SetMetrics sets the metrics the engine reports to
func (e *Engine) SetMetrics(m *metrics.Metrics) {
	e.metrics = m
}

// Store returns the underlying vector store
func (e *Engine) Store() VectorStore {
	return e.store
}

// Search returns the records most similar to embedding, best first.
// Malformed vectors or options are rejected with ErrInvalidQuery before the store is queried.
func (e *Engine) Search(ctx context.Context, embedding []float32, options model.SearchOptions) ([]*model.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Search", trace.WithAttributes(
		attribute.Float64("search.threshold", options.SimilarityThreshold),
		attribute.Int("search.max_results", options.MaxResults),
		attribute.String("search.filter_category", options.FilterCategory),
		attribute.String("search.filter_urgency", options.FilterUrgency),
	))
	defer span.End()

	start := time.Now()
	results, err := e.search(ctx, embedding, options)
	e.metrics.ObserveSearch(err, len(results), time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("search.results", len(results)))
	e.logger.Debug("Searched knowledge", "results", len(results), "elapsed", time.Since(start).String())
	return results, nil
}

func (e *Engine) search(ctx context.Context, embedding []float32, options model.SearchOptions) ([]*model.SearchResult, error) {
	if err := ValidateQueryVector(embedding, e.store.Dimension()); err != nil {
		return nil, err
	}
	if err := options.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidQuery, err)
	}

	results, err := e.store.SelectBySimilarity(ctx, embedding, options)
	if err != nil {
		return nil, helper.NewError("search", err)
	}
	return results, nil
}

// Stats returns the aggregate view of the store
func (e *Engine) Stats(ctx context.Context) (*model.Stats, error) {
	ctx, span := tracer.Start(ctx, "Engine.Stats")
	defer span.End()

	stats, err := e.store.SelectStats(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, helper.NewError("stats", err)
	}
	return stats, nil
}

// ValidateQueryVector rejects vectors that cannot be compared by cosine similarity.
func ValidateQueryVector(embedding []float32, dimension int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: query vector is empty", model.ErrInvalidQuery)
	}
	if len(embedding) != dimension {
		return fmt.Errorf("%w: query vector has %d dimensions, expected %d", model.ErrInvalidQuery, len(embedding), dimension)
	}
	var norm float64
	for _, v := range embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: query vector contains NaN or Inf", model.ErrInvalidQuery)
		}
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return fmt.Errorf("%w: query vector has zero length", model.ErrInvalidQuery)
	}
	return nil
}
