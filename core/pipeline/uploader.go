package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/metrics"
	"github.com/siherrmann/roofrag/model"
)

// RecordWriter upserts records on their id, all or nothing per call.
type RecordWriter interface {
	UpsertRecords(ctx context.Context, records []*model.KnowledgeRecord) (*model.UpsertResult, error)
}

// Uploader writes records in batches, retrying a failed batch as a whole.
type Uploader struct {
	writer  RecordWriter
	config  model.UploadConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewUploader creates a new batched uploader
func NewUploader(writer RecordWriter, config model.UploadConfig, logger *slog.Logger) (*Uploader, error) {
	if writer == nil {
		return nil, fmt.Errorf("record writer is nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid upload configuration: %w", err)
	}
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &Uploader{
		writer: writer,
		config: config,
		logger: logger,
		sleep:  sleepContext,
	}, nil
}

// SetMetrics sets the metrics the uploader reports to
func (u *Uploader) SetMetrics(m *metrics.Metrics) {
	u.metrics = m
}

// Upload writes all records. Batches that exhaust their retries are
// reported as failed, the remaining batches are still written.
// Only cancellation aborts the run.
func (u *Uploader) Upload(ctx context.Context, records []*model.KnowledgeRecord) (*model.UploadReport, error) {
	report := &model.UploadReport{
		RunID:         uuid.NewString(),
		Batches:       []model.BatchOutcome{},
		FailedBatches: []*model.FailedBatch{},
	}

	batchCount := (len(records) + u.config.BatchSize - 1) / u.config.BatchSize
	u.logger.Info("Uploading records", "run_id", report.RunID, "records", len(records), "batches", batchCount)

	for b := 0; b < batchCount; b++ {
		if b > 0 && u.config.BatchDelay > 0 {
			if err := u.sleep(ctx, u.config.BatchDelay); err != nil {
				return report, helper.NewError("upload", err)
			}
		}

		start := b * u.config.BatchSize
		batch := records[start:min(start+u.config.BatchSize, len(records))]

		outcome, err := u.uploadBatch(ctx, b, batch)
		report.Batches = append(report.Batches, outcome)
		u.metrics.ObserveUploadBatch(string(outcome.Status), outcome.Inserted, outcome.Duplicates)
		if outcome.Status == model.OutcomeSucceeded {
			report.Inserted += outcome.Inserted
			report.Duplicates += outcome.Duplicates
		} else {
			report.FailedBatches = append(report.FailedBatches, &model.FailedBatch{
				Index:    b,
				Records:  batch,
				Error:    outcome.Error,
				Attempts: outcome.Attempts,
			})
		}
		if err != nil {
			return report, helper.NewError(fmt.Sprintf("upload batch %d", b+1), err)
		}
	}

	u.logger.Info("Upload finished",
		"run_id", report.RunID,
		"inserted", report.Inserted,
		"duplicates", report.Duplicates,
		"failed_batches", len(report.FailedBatches),
	)
	return report, nil
}

func (u *Uploader) uploadBatch(ctx context.Context, index int, batch []*model.KnowledgeRecord) (model.BatchOutcome, error) {
	outcome := model.BatchOutcome{Index: index, Status: model.OutcomeFailed}

	for attempt := 1; attempt <= u.config.MaxRetries; attempt++ {
		outcome.Attempts = attempt

		callCtx, cancel := context.WithTimeout(ctx, u.config.RequestTimeout)
		result, err := u.writer.UpsertRecords(callCtx, batch)
		cancel()
		if err == nil {
			outcome.Status = model.OutcomeSucceeded
			outcome.Inserted = result.Inserted
			outcome.Duplicates = result.Duplicates
			outcome.Error = ""
			return outcome, nil
		}

		outcome.Error = err.Error()
		if ctx.Err() != nil {
			return outcome, ctx.Err()
		}
		if errors.Is(err, model.ErrInvalidRecord) || attempt == u.config.MaxRetries {
			break
		}

		delay := u.config.RetryDelay * time.Duration(attempt)
		u.logger.Warn("Upload batch failed, retrying", "batch", index+1, "attempt", attempt, "delay", delay.String(), "error", err)
		if err := u.sleep(ctx, delay); err != nil {
			return outcome, err
		}
	}

	u.logger.Error("Upload batch failed", "batch", index+1, "attempts", outcome.Attempts, "error", outcome.Error)
	return outcome, nil
}
