package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/siherrmann/roofrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(id string, category model.Category, urgency model.Urgency, embedding ...float32) *model.KnowledgeRecord {
	return &model.KnowledgeRecord{
		ID:        id,
		Content:   "Content of " + id,
		Title:     "Title of " + id,
		Embedding: embedding,
		Tokens:    12,
		Metadata: model.ChunkMetadata{
			Category:    category,
			Urgency:     urgency,
			Season:      []model.Season{model.SeasonYearRound},
			ServiceType: model.ServiceBoth,
			Complexity:  model.ComplexityBasic,
			Source:      id + ".md",
		},
	}
}

func TestNewKnowledgeDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewKnowledgeDBHandler", func(t *testing.T) {
		handler, err := NewKnowledgeDBHandler(database, testDim, true)
		assert.NoError(t, err, "Expected NewKnowledgeDBHandler to not return an error")
		require.NotNil(t, handler, "Expected NewKnowledgeDBHandler to return a non-nil instance")
		assert.Equal(t, testDim, handler.Dimension())
	})

	t.Run("Invalid call NewKnowledgeDBHandler with nil database", func(t *testing.T) {
		_, err := NewKnowledgeDBHandler(nil, testDim, false)
		assert.Error(t, err, "Expected error when creating KnowledgeDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call NewKnowledgeDBHandler with dimension mismatch", func(t *testing.T) {
		_, err := NewKnowledgeDBHandler(database, testDim*2, false)
		assert.Error(t, err, "Expected error when the table dimension differs")
		assert.Contains(t, err.Error(), "4-dimensional")
	})

	t.Run("Invalid call NewKnowledgeDBHandler with zero dimension", func(t *testing.T) {
		_, err := NewKnowledgeDBHandler(database, 0, false)
		assert.Error(t, err)
	})
}

func TestKnowledgeUpsertRecords(t *testing.T) {
	handler := initHandler(t)
	ctx := context.Background()

	t.Run("Upsert new records", func(t *testing.T) {
		result, err := handler.UpsertRecords(ctx, []*model.KnowledgeRecord{
			testRecord("doc_0", model.CategoryInstallation, model.UrgencyNormal, 1, 0, 0, 0),
			testRecord("doc_1", model.CategoryMaterials, model.UrgencyNormal, 0, 1, 0, 0),
		})
		require.NoError(t, err, "Expected UpsertRecords to not return an error")
		assert.Equal(t, 2, result.Inserted)
		assert.Equal(t, 0, result.Duplicates)
	})

	t.Run("Upsert same ids overwrites without duplicating", func(t *testing.T) {
		before, err := handler.SelectRecord(ctx, "doc_0")
		require.NoError(t, err)

		updated := testRecord("doc_0", model.CategoryEmergency, model.UrgencyEmergency, 0, 0, 1, 0)
		updated.Content = "Updated content"

		result, err := handler.UpsertRecords(ctx, []*model.KnowledgeRecord{updated})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 1, result.Duplicates)

		record, err := handler.SelectRecord(ctx, "doc_0")
		require.NoError(t, err)
		assert.Equal(t, "Updated content", record.Content)
		assert.Equal(t, model.CategoryEmergency, record.Metadata.Category)
		assert.Equal(t, []float32{0, 0, 1, 0}, record.Embedding)
		assert.True(t, before.CreatedAt.Equal(record.CreatedAt), "Expected the creation time to be kept")

		stats, err := handler.SelectStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.TotalChunks, "Expected record count to equal distinct ids")
	})

	t.Run("Upsert empty batch", func(t *testing.T) {
		result, err := handler.UpsertRecords(ctx, nil)
		assert.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
	})

	t.Run("Upsert record with wrong dimension rejects the batch", func(t *testing.T) {
		_, err := handler.UpsertRecords(ctx, []*model.KnowledgeRecord{
			testRecord("doc_2", model.CategoryInstallation, model.UrgencyNormal, 1, 1, 1, 1),
			testRecord("doc_3", model.CategoryInstallation, model.UrgencyNormal, 1, 1),
		})
		assert.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidRecord))

		_, err = handler.SelectRecord(ctx, "doc_2")
		assert.True(t, IsNotFound(err), "Expected no partial write")
	})
}

func TestKnowledgeSelectAndDelete(t *testing.T) {
	handler := initHandler(t)
	ctx := context.Background()

	_, err := handler.UpsertRecords(ctx, []*model.KnowledgeRecord{
		testRecord("gutter_0", model.CategoryMaintenance, model.UrgencyNormal, 1, 0, 0, 0),
	})
	require.NoError(t, err)

	record, err := handler.SelectRecord(ctx, "gutter_0")
	require.NoError(t, err)
	assert.Equal(t, "Title of gutter_0", record.Title)
	assert.Equal(t, []model.Season{model.SeasonYearRound}, record.Metadata.Season)
	assert.False(t, record.CreatedAt.IsZero())

	err = handler.DeleteRecord(ctx, "gutter_0")
	require.NoError(t, err)

	_, err = handler.SelectRecord(ctx, "gutter_0")
	assert.True(t, IsNotFound(err), "Expected deleted record to be gone")
}

func TestKnowledgeSelectBySimilarity(t *testing.T) {
	handler := initHandler(t)
	ctx := context.Background()

	_, err := handler.UpsertRecords(ctx, []*model.KnowledgeRecord{
		testRecord("exact", model.CategoryInstallation, model.UrgencyNormal, 1, 0, 0, 0),
		testRecord("close", model.CategoryEmergency, model.UrgencyEmergency, 0.9, 0.1, 0, 0),
		testRecord("far", model.CategoryInstallation, model.UrgencyNormal, 0, 0, 0, 1),
	})
	require.NoError(t, err)

	query := []float32{1, 0, 0, 0}

	t.Run("Results are ordered and above threshold", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, query, model.SearchOptions{SimilarityThreshold: 0.5, MaxResults: 5})
		require.NoError(t, err)
		require.Len(t, results, 2, "Expected the orthogonal record to be filtered out")
		assert.Equal(t, "exact", results[0].Record.ID)
		assert.Equal(t, "close", results[1].Record.ID)
		assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
		assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
		assert.Equal(t, model.CategoryInstallation, results[0].Record.Metadata.Category)
	})

	t.Run("Max results limits output", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, query, model.SearchOptions{SimilarityThreshold: -1, MaxResults: 1})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "exact", results[0].Record.ID)
	})

	t.Run("Filter by category", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, query, model.SearchOptions{SimilarityThreshold: -1, MaxResults: 5, FilterCategory: string(model.CategoryEmergency)})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "close", results[0].Record.ID)
	})

	t.Run("Filter by urgency", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, query, model.SearchOptions{SimilarityThreshold: -1, MaxResults: 5, FilterUrgency: string(model.UrgencyNormal)})
		require.NoError(t, err)
		require.Len(t, results, 2)
		for _, result := range results {
			assert.Equal(t, model.UrgencyNormal, result.Record.Metadata.Urgency)
		}
	})

	t.Run("Threshold above every similarity returns empty", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, []float32{0, 0, 1, 0}, model.SearchOptions{SimilarityThreshold: 0.5, MaxResults: 5})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("Wrong query dimension", func(t *testing.T) {
		_, err := handler.SelectBySimilarity(ctx, []float32{1, 0}, model.DefaultSearchOptions())
		assert.Error(t, err)
		assert.True(t, errors.Is(err, model.ErrInvalidQuery))
	})
}

func TestKnowledgeSelectBySimilarityThroughIndex(t *testing.T) {
	handler := initHandler(t)
	ctx := context.Background()

	// One connection so the planner settings below apply to every query.
	handler.db.Instance.SetMaxOpenConns(1)
	_, err := handler.db.Instance.ExecContext(ctx, `SET enable_seqscan = off;`)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = handler.db.Instance.ExecContext(context.Background(), `RESET enable_seqscan;`)
	})

	records := []*model.KnowledgeRecord{}
	for i := 0; i < 60; i++ {
		records = append(records, testRecord(fmt.Sprintf("near_%02d", i), model.CategoryInstallation, model.UrgencyNormal, 1, float32(i)/100, 0, 0))
	}
	records = append(records,
		testRecord("gutter_0", model.CategoryMaintenance, model.UrgencyNormal, 1, 1, 0, 0),
		testRecord("gutter_1", model.CategoryMaintenance, model.UrgencyNormal, 1, 1, 1, 0),
		testRecord("gutter_2", model.CategoryMaintenance, model.UrgencyNormal, 1, 1, 1, 1),
	)
	_, err = handler.UpsertRecords(ctx, records)
	require.NoError(t, err)

	query := []float32{1, 0, 0, 0}

	t.Run("Filter matches rows beyond the nearest candidates", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, query, model.SearchOptions{SimilarityThreshold: 0.1, MaxResults: 5, FilterCategory: string(model.CategoryMaintenance)})
		require.NoError(t, err)
		require.Len(t, results, 3, "Expected every maintenance record despite 60 closer installation records")
		assert.Equal(t, "gutter_0", results[0].Record.ID)
		assert.Equal(t, "gutter_1", results[1].Record.ID)
		assert.Equal(t, "gutter_2", results[2].Record.ID)
	})

	t.Run("Unfiltered results stay ordered", func(t *testing.T) {
		results, err := handler.SelectBySimilarity(ctx, query, model.SearchOptions{SimilarityThreshold: 0.1, MaxResults: 10})
		require.NoError(t, err)
		require.Len(t, results, 10)
		assert.Equal(t, "near_00", results[0].Record.ID)
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Similarity, results[i].Similarity)
		}
	})
}

func TestKnowledgeSelectStats(t *testing.T) {
	handler := initHandler(t)
	ctx := context.Background()

	t.Run("Empty table", func(t *testing.T) {
		stats, err := handler.SelectStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.TotalChunks)
		assert.Equal(t, int64(0), stats.TotalTokens)
		assert.Empty(t, stats.CategoryDistribution)
	})

	t.Run("Distributions", func(t *testing.T) {
		winter := testRecord("ice_0", model.CategoryMaintenance, model.UrgencyHigh, 0, 1, 0, 0)
		winter.Metadata.Season = []model.Season{model.SeasonWinter, model.SeasonFall}
		_, err := handler.UpsertRecords(ctx, []*model.KnowledgeRecord{
			testRecord("a", model.CategoryInstallation, model.UrgencyNormal, 1, 0, 0, 0),
			testRecord("b", model.CategoryInstallation, model.UrgencyEmergency, 1, 1, 0, 0),
			winter,
		})
		require.NoError(t, err)

		stats, err := handler.SelectStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalChunks)
		assert.Equal(t, int64(36), stats.TotalTokens)
		assert.Equal(t, int64(2), stats.CategoryDistribution[model.CategoryInstallation])
		assert.Equal(t, int64(1), stats.CategoryDistribution[model.CategoryMaintenance])
		assert.Equal(t, int64(1), stats.UrgencyDistribution[model.UrgencyEmergency])
		assert.Equal(t, int64(1), stats.UrgencyDistribution[model.UrgencyHigh])
		assert.Equal(t, int64(2), stats.SeasonDistribution[model.SeasonYearRound])
		assert.Equal(t, int64(1), stats.SeasonDistribution[model.SeasonWinter])
	})
}
