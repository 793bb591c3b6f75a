package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter keeps records by id and fails batches selected by failBatch.
type fakeWriter struct {
	mu        sync.Mutex
	records   map[string]*model.KnowledgeRecord
	calls     int
	failBatch func(call int, records []*model.KnowledgeRecord) error
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{records: map[string]*model.KnowledgeRecord{}}
}

func (w *fakeWriter) UpsertRecords(ctx context.Context, records []*model.KnowledgeRecord) (*model.UpsertResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.failBatch != nil {
		if err := w.failBatch(w.calls, records); err != nil {
			return nil, err
		}
	}
	result := &model.UpsertResult{}
	for _, record := range records {
		if _, ok := w.records[record.ID]; ok {
			result.Duplicates++
		} else {
			result.Inserted++
		}
		w.records[record.ID] = record
	}
	return result, nil
}

func testRecords(n int) []*model.KnowledgeRecord {
	records := make([]*model.KnowledgeRecord, n)
	for i := range records {
		records[i] = &model.KnowledgeRecord{ID: fmt.Sprintf("rec_%d", i), Content: "content", Embedding: []float32{1, 0}}
	}
	return records
}

func newTestUploader(t *testing.T, writer RecordWriter, batchSize int) (*Uploader, *sleepRecorder) {
	config := model.DefaultUploadConfig()
	config.BatchSize = batchSize
	uploader, err := NewUploader(writer, config, helper.NewLogger(0))
	require.NoError(t, err, "Expected NewUploader to not return an error")

	recorder := &sleepRecorder{}
	uploader.sleep = recorder.sleep
	return uploader, recorder
}

func TestUploaderUpload(t *testing.T) {
	t.Run("Upload in batches", func(t *testing.T) {
		writer := newFakeWriter()
		uploader, recorder := newTestUploader(t, writer, 50)

		report, err := uploader.Upload(context.Background(), testRecords(120))
		require.NoError(t, err)
		assert.Equal(t, 120, report.Inserted)
		assert.Equal(t, 0, report.Duplicates)
		assert.Len(t, report.Batches, 3)
		assert.Empty(t, report.FailedBatches)
		assert.Equal(t, 3, writer.calls)
		assert.Len(t, recorder.recorded(), 2)
	})

	t.Run("Upload twice is idempotent", func(t *testing.T) {
		writer := newFakeWriter()
		uploader, _ := newTestUploader(t, writer, 50)

		_, err := uploader.Upload(context.Background(), testRecords(10))
		require.NoError(t, err)
		report, err := uploader.Upload(context.Background(), testRecords(10))
		require.NoError(t, err)
		assert.Equal(t, 0, report.Inserted)
		assert.Equal(t, 10, report.Duplicates)
		assert.Len(t, writer.records, 10)
	})

	t.Run("Failed batch is retried as a whole", func(t *testing.T) {
		writer := newFakeWriter()
		writer.failBatch = func(call int, records []*model.KnowledgeRecord) error {
			if call == 1 {
				return errors.New("connection reset")
			}
			return nil
		}
		uploader, recorder := newTestUploader(t, writer, 50)

		report, err := uploader.Upload(context.Background(), testRecords(5))
		require.NoError(t, err)
		assert.Equal(t, 5, report.Inserted)
		assert.Equal(t, 2, report.Batches[0].Attempts)
		assert.Equal(t, []time.Duration{time.Second}, recorder.recorded())
	})

	t.Run("Exhausted batch is recorded and the rest continues", func(t *testing.T) {
		writer := newFakeWriter()
		writer.failBatch = func(call int, records []*model.KnowledgeRecord) error {
			if records[0].ID == "rec_0" {
				return errors.New("deadlock detected")
			}
			return nil
		}
		uploader, recorder := newTestUploader(t, writer, 2)

		report, err := uploader.Upload(context.Background(), testRecords(5))
		require.NoError(t, err)
		require.Len(t, report.FailedBatches, 1)
		assert.Equal(t, 0, report.FailedBatches[0].Index)
		assert.Equal(t, 3, report.FailedBatches[0].Attempts)
		assert.Len(t, report.FailedBatches[0].Records, 2)
		assert.Equal(t, 3, report.Inserted)
		assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 200 * time.Millisecond, 200 * time.Millisecond}, recorder.recorded())
	})

	t.Run("Invalid records are not retried", func(t *testing.T) {
		writer := newFakeWriter()
		writer.failBatch = func(int, []*model.KnowledgeRecord) error {
			return fmt.Errorf("%w: wrong dimension", model.ErrInvalidRecord)
		}
		uploader, _ := newTestUploader(t, writer, 50)

		report, err := uploader.Upload(context.Background(), testRecords(3))
		require.NoError(t, err)
		require.Len(t, report.FailedBatches, 1)
		assert.Equal(t, 1, report.FailedBatches[0].Attempts)
		assert.Equal(t, 1, writer.calls)
	})

	t.Run("Cancelled context aborts", func(t *testing.T) {
		writer := newFakeWriter()
		writer.failBatch = func(int, []*model.KnowledgeRecord) error { return errors.New("timeout") }
		uploader, _ := newTestUploader(t, writer, 50)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		report, err := uploader.Upload(ctx, testRecords(3))
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Len(t, report.FailedBatches, 1)
	})

	t.Run("Nil writer", func(t *testing.T) {
		_, err := NewUploader(nil, model.DefaultUploadConfig(), nil)
		assert.Error(t, err)
	})
}
