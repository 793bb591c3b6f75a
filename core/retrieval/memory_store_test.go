package retrieval

import (
	"context"
	"testing"

	"github.com/siherrmann/roofrag/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	t.Run("Insert then overwrite by id", func(t *testing.T) {
		result, err := store.UpsertRecords(ctx, hailRecords())
		require.NoError(t, err)
		assert.Equal(t, 3, result.Inserted)
		assert.Equal(t, 0, result.Duplicates)

		first, ok := store.SelectRecord("hail_0")
		require.True(t, ok)

		updated := knowledgeRecord("hail_0", "Impact rated shingles resist hail", model.CategoryMaterials, model.UrgencyNormal, 1, 0, 0)
		result, err = store.UpsertRecords(ctx, []*model.KnowledgeRecord{updated})
		require.NoError(t, err)
		assert.Equal(t, 0, result.Inserted)
		assert.Equal(t, 1, result.Duplicates)
		assert.Equal(t, 3, store.Len())

		second, ok := store.SelectRecord("hail_0")
		require.True(t, ok)
		assert.Equal(t, "Impact rated shingles resist hail", second.Content)
		assert.Equal(t, first.CreatedAt, second.CreatedAt, "Expected the creation time to be kept")
	})

	t.Run("Invalid record rejects the whole batch", func(t *testing.T) {
		batch := []*model.KnowledgeRecord{
			knowledgeRecord("new_0", "Fresh record", model.CategoryGeneral, model.UrgencyNormal, 0, 0, 1),
			knowledgeRecord("new_1", "Short vector", model.CategoryGeneral, model.UrgencyNormal, 0, 1),
		}
		_, err := store.UpsertRecords(ctx, batch)
		assert.ErrorIs(t, err, model.ErrInvalidRecord)
		_, ok := store.SelectRecord("new_0")
		assert.False(t, ok)

		_, err = store.UpsertRecords(ctx, []*model.KnowledgeRecord{{Embedding: []float32{1, 0, 0}}})
		assert.ErrorIs(t, err, model.ErrInvalidRecord)
	})

	t.Run("Stored embedding is a copy", func(t *testing.T) {
		record := knowledgeRecord("copy_0", "Copied", model.CategoryGeneral, model.UrgencyNormal, 0, 1, 0)
		_, err := store.UpsertRecords(ctx, []*model.KnowledgeRecord{record})
		require.NoError(t, err)
		record.Embedding[1] = 5

		stored, ok := store.SelectRecord("copy_0")
		require.True(t, ok)
		assert.Equal(t, []float32{0, 1, 0}, stored.Embedding)
	})

	t.Run("Delete", func(t *testing.T) {
		store.DeleteRecord("copy_0")
		_, ok := store.SelectRecord("copy_0")
		assert.False(t, ok)
	})
}

func TestMemoryStoreSearch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)
	_, err := store.UpsertRecords(ctx, hailRecords())
	require.NoError(t, err)

	t.Run("Results carry no embedding", func(t *testing.T) {
		results, err := store.SelectBySimilarity(ctx, hailQuery, model.SearchOptions{SimilarityThreshold: -1, MaxResults: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, result := range results {
			assert.Nil(t, result.Record.Embedding)
		}
	})

	t.Run("Equal similarity is ordered by id", func(t *testing.T) {
		tied := NewMemoryStore(2)
		_, err := tied.UpsertRecords(ctx, []*model.KnowledgeRecord{
			knowledgeRecord("b", "B", model.CategoryGeneral, model.UrgencyNormal, 1, 0),
			knowledgeRecord("a", "A", model.CategoryGeneral, model.UrgencyNormal, 2, 0),
		})
		require.NoError(t, err)

		results, err := tied.SelectBySimilarity(ctx, []float32{1, 0}, model.SearchOptions{SimilarityThreshold: 0, MaxResults: 2})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].Record.ID)
		assert.Equal(t, "b", results[1].Record.ID)
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := store.SelectBySimilarity(cancelled, hailQuery, model.DefaultSearchOptions())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStoreStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(3)

	stats, err := store.SelectStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalChunks)
	assert.Empty(t, stats.CategoryDistribution)

	records := hailRecords()
	records[1].Metadata.Season = []model.Season{model.SeasonFall, model.SeasonSpring}
	_, err = store.UpsertRecords(ctx, records)
	require.NoError(t, err)

	stats, err = store.SelectStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalChunks)

	var tokens int64
	for _, record := range records {
		tokens += int64(record.Tokens)
	}
	assert.Equal(t, tokens, stats.TotalTokens)
	assert.Equal(t, int64(1), stats.CategoryDistribution[model.CategoryMaterials])
	assert.Equal(t, int64(1), stats.CategoryDistribution[model.CategoryMaintenance])
	assert.Equal(t, int64(1), stats.UrgencyDistribution[model.UrgencyEmergency])
	assert.Equal(t, int64(2), stats.SeasonDistribution[model.SeasonYearRound])
	assert.Equal(t, int64(1), stats.SeasonDistribution[model.SeasonFall])
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{2, 4, 6}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 0}))
}
