package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/metrics"
	"github.com/siherrmann/roofrag/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Generator embeds chunks in sequential batches with bounded parallelism inside a batch.
type Generator struct {
	provider EmbeddingProvider
	config   model.EmbedderConfig
	limiter  *rate.Limiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewGenerator creates a new embedding generator
func NewGenerator(provider EmbeddingProvider, config model.EmbedderConfig, logger *slog.Logger) (*Generator, error) {
	if provider == nil {
		return nil, fmt.Errorf("embedding provider is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedder configuration: %w", err)
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}

	generator := &Generator{
		provider: provider,
		config:   config,
		logger:   logger,
		sleep:    sleepContext,
	}
	if config.RequestsPerSecond > 0 {
		generator.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return generator, nil
}

// SetMetrics sets the metrics the generator reports to
func (g *Generator) SetMetrics(m *metrics.Metrics) {
	g.metrics = m
}

// Embed embeds all chunks. Chunks that exhaust their retries are reported in
// the Failed list and do not stop the run. An error is only returned for
// failures that affect every chunk: cancellation or rejected credentials.
// The report is returned in both cases.
func (g *Generator) Embed(ctx context.Context, chunks []*model.Chunk) (*model.EmbedReport, error) {
	report := &model.EmbedReport{
		RunID:      uuid.NewString(),
		Embeddings: []*model.Embedding{},
		Failed:     []*model.FailedChunk{},
		Outcomes:   []model.EmbedOutcome{},
	}

	concurrency := max(1, min(g.config.Concurrency, g.config.BatchSize))
	batchCount := (len(chunks) + g.config.BatchSize - 1) / g.config.BatchSize

	g.logger.Info("Embedding chunks", "run_id", report.RunID, "chunks", len(chunks), "batches", batchCount)

	for b := 0; b < batchCount; b++ {
		if b > 0 && g.config.BatchDelay > 0 {
			if err := g.sleep(ctx, g.config.BatchDelay); err != nil {
				return g.finish(report), helper.NewError("embed", err)
			}
		}

		start := b * g.config.BatchSize
		batch := chunks[start:min(start+g.config.BatchSize, len(chunks))]
		outcomes := make([]model.EmbedOutcome, len(batch))

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(concurrency)
		for i, chunk := range batch {
			eg.Go(func() error {
				outcome, err := g.embedText(egCtx, chunk.ID, BuildEmbeddingText(chunk, g.config.MaxChars))
				outcomes[i] = outcome
				return err
			})
		}
		err := eg.Wait()

		for i, outcome := range outcomes {
			if outcome.Status != "" {
				fold(report, batch[i], outcome)
			}
		}

		g.logger.Info("Embedded batch", "run_id", report.RunID, "batch", b+1, "of", batchCount, "succeeded", report.Succeeded, "failed", len(report.Failed))

		if err != nil {
			return g.finish(report), helper.NewError(fmt.Sprintf("embed batch %d", b+1), err)
		}
	}

	return g.finish(report), nil
}

// EmbedQuery embeds a search query with the same retry behaviour as chunks.
func (g *Generator) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", model.ErrInvalidQuery)
	}

	outcome, err := g.embedText(ctx, "query", truncateTail(query, g.config.MaxChars))
	g.metrics.ObserveEmbedding(string(outcome.Status), outcome.Calls, outcome.Tokens)
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	if outcome.Status != model.OutcomeSucceeded {
		return nil, helper.NewError("embed query", errors.New(outcome.Error))
	}
	return outcome.Embedding.Vector, nil
}

// embedText runs the retry loop for one text. Payload rejections trigger one
// halving of the text that does not count as an attempt. The returned error
// is non-nil only for failures that must abort the whole run.
func (g *Generator) embedText(ctx context.Context, id string, text string) (model.EmbedOutcome, error) {
	outcome := model.EmbedOutcome{ChunkID: id, Status: model.OutcomeFailed}
	truncated := false

	for attempt := 1; attempt <= g.config.MaxRetries; {
		if err := ctx.Err(); err != nil {
			outcome.Error = err.Error()
			return outcome, err
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				outcome.Error = err.Error()
				return outcome, err
			}
		}

		outcome.Calls++
		response, err := g.call(ctx, text)
		if err == nil {
			outcome.Status = model.OutcomeSucceeded
			outcome.Attempts = attempt
			outcome.Tokens = response.TotalTokens
			outcome.Error = ""
			outcome.Embedding = &model.Embedding{ChunkID: id, Vector: response.Vector, Tokens: response.TotalTokens}
			return outcome, nil
		}

		outcome.Error = err.Error()
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		if IsFatal(err) {
			outcome.Attempts = attempt
			return outcome, err
		}
		if IsPayloadTooLarge(err) && !truncated {
			truncated = true
			outcome.Truncated = true
			text = truncateTail(text, utf8.RuneCountInString(text)/2)
			g.logger.Warn("Payload too large, retrying truncated", "id", id, "chars", utf8.RuneCountInString(text))
			continue
		}

		outcome.Attempts = attempt
		if attempt == g.config.MaxRetries {
			break
		}

		delay := g.config.BaseDelay * time.Duration(attempt)
		if IsRateLimited(err) {
			delay = g.config.RateLimitCooldown
		}
		g.logger.Warn("Embedding failed, retrying", "id", id, "attempt", attempt, "delay", delay.String(), "error", err)
		if err := g.sleep(ctx, delay); err != nil {
			return outcome, err
		}
		attempt++
	}

	g.logger.Error("Embedding failed after retries", "id", id, "attempts", outcome.Attempts, "error", outcome.Error)
	return outcome, nil
}

// call runs a single provider request under RequestTimeout.
func (g *Generator) call(ctx context.Context, text string) (*EmbeddingResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.config.RequestTimeout)
	defer cancel()

	response, err := g.provider.Embed(callCtx, text)
	if err != nil {
		return nil, err
	}
	if len(response.Vector) == 0 {
		return nil, &ProviderError{Message: "provider returned an empty embedding"}
	}
	for _, v := range response.Vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, &ProviderError{Message: "provider returned a non-finite embedding"}
		}
	}
	return response, nil
}

func (g *Generator) finish(report *model.EmbedReport) *model.EmbedReport {
	report.EstimatedCost = float64(report.TotalTokens) / 1000 * g.config.CostPer1KTokens
	for _, outcome := range report.Outcomes {
		g.metrics.ObserveEmbedding(string(outcome.Status), outcome.Calls, outcome.Tokens)
	}
	g.logger.Info("Embedding finished",
		"run_id", report.RunID,
		"succeeded", report.Succeeded,
		"failed", len(report.Failed),
		"api_calls", report.APICalls,
		"total_tokens", report.TotalTokens,
		"estimated_cost_usd", report.EstimatedCost,
	)
	return report
}

// fold adds one outcome to the report totals.
func fold(report *model.EmbedReport, chunk *model.Chunk, outcome model.EmbedOutcome) {
	report.Outcomes = append(report.Outcomes, outcome)
	report.APICalls += outcome.Calls
	report.TotalTokens += outcome.Tokens
	if outcome.Status == model.OutcomeSucceeded {
		report.Succeeded++
		report.Embeddings = append(report.Embeddings, outcome.Embedding)
		return
	}
	report.Failed = append(report.Failed, &model.FailedChunk{
		Chunk:    chunk,
		Error:    outcome.Error,
		Attempts: outcome.Attempts,
	})
}

// BuildEmbeddingText prefixes the chunk content with its title, category and
// non-default urgency, cut to maxChars characters.
func BuildEmbeddingText(chunk *model.Chunk, maxChars int) string {
	var b strings.Builder
	if chunk.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", chunk.Title)
	}
	if chunk.Metadata.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", chunk.Metadata.Category)
	}
	if chunk.Metadata.Urgency != "" && chunk.Metadata.Urgency != model.UrgencyNormal {
		fmt.Fprintf(&b, "Urgency: %s\n", chunk.Metadata.Urgency)
	}
	if b.Len() > 0 {
		b.WriteString("\n")
	}
	b.WriteString(chunk.Content)
	return truncateTail(b.String(), maxChars)
}

// truncateTail keeps the first maxChars runes of text.
func truncateTail(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}
	return string([]rune(text)[:maxChars])
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
