package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMetadata_Value(t *testing.T) {
	t.Run("Value produces JSON with the wire keys", func(t *testing.T) {
		m := ChunkMetadata{
			Category:    CategoryMaterials,
			Urgency:     UrgencyNormal,
			Season:      []Season{SeasonSpring, SeasonSummer},
			ServiceType: ServiceResidential,
			Complexity:  ComplexityBasic,
			ChunkIndex:  2,
		}

		value, err := m.Value()
		require.NoError(t, err)

		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(value.([]byte), &result))
		assert.Equal(t, "materials", result["category"])
		assert.Equal(t, "residential", result["serviceType"])
		assert.Equal(t, float64(2), result["chunk_index"])
		assert.Equal(t, []interface{}{"spring", "summer"}, result["season"])
		assert.NotContains(t, result, "location", "Empty location should be omitted")
	})
}

func TestChunkMetadata_Scan(t *testing.T) {
	t.Run("Scan from bytes", func(t *testing.T) {
		var m ChunkMetadata
		err := m.Scan([]byte(`{"category":"emergency","urgency":"emergency","season":["winter"],"chunk_index":4}`))

		require.NoError(t, err)
		assert.Equal(t, CategoryEmergency, m.Category)
		assert.Equal(t, UrgencyEmergency, m.Urgency)
		assert.Equal(t, []Season{SeasonWinter}, m.Season)
		assert.Equal(t, 4, m.ChunkIndex)
	})

	t.Run("Scan from string", func(t *testing.T) {
		var m ChunkMetadata
		require.NoError(t, m.Scan(`{"category":"pricing"}`))
		assert.Equal(t, CategoryPricing, m.Category)
	})

	t.Run("Scan nil resets metadata", func(t *testing.T) {
		m := ChunkMetadata{Category: CategoryClimate}
		require.NoError(t, m.Scan(nil))
		assert.Equal(t, ChunkMetadata{}, m)
	})

	t.Run("Scan invalid type", func(t *testing.T) {
		var m ChunkMetadata
		err := m.Scan(42)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "type assertion to []byte failed")
	})

	t.Run("Scan invalid JSON", func(t *testing.T) {
		var m ChunkMetadata
		assert.Error(t, m.Scan([]byte(`{invalid`)))
	})
}

func TestChunkMetadata_Merge(t *testing.T) {
	base := ChunkMetadata{
		Category:    CategoryGeneral,
		Urgency:     UrgencyNormal,
		Season:      []Season{SeasonYearRound},
		ServiceType: ServiceBoth,
		Complexity:  ComplexityBasic,
	}

	t.Run("Empty override keeps classifier output", func(t *testing.T) {
		assert.Equal(t, base, base.Merge(ChunkMetadata{}))
	})

	t.Run("Non-empty fields override", func(t *testing.T) {
		merged := base.Merge(ChunkMetadata{Category: CategoryCommercial, Season: []Season{SeasonFall}, Location: "Austin"})

		assert.Equal(t, CategoryCommercial, merged.Category)
		assert.Equal(t, []Season{SeasonFall}, merged.Season)
		assert.Equal(t, "Austin", merged.Location)
		assert.Equal(t, UrgencyNormal, merged.Urgency)
		assert.True(t, merged.HasSeason(SeasonFall))
		assert.False(t, merged.HasSeason(SeasonYearRound))
	})
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
	assert.Equal(t, 600, EstimateTokens(string(make([]byte, 2400))))
	assert.Equal(t, 1, EstimateTokens("ü€"), "Runes are counted, not bytes")
}

func TestTaxonomy(t *testing.T) {
	assert.True(t, IsCategory("materials"))
	assert.False(t, IsCategory("gutters"))
	assert.True(t, IsUrgency("informational"))
	assert.False(t, IsUrgency(""))
}

func TestNewKnowledgeRecord(t *testing.T) {
	chunk := &Chunk{ID: "guide_0", Content: "Text.", Title: "Guide", Tokens: 2, Metadata: ChunkMetadata{Category: CategoryPricing}}
	record := NewKnowledgeRecord(chunk, &Embedding{ChunkID: "guide_0", Vector: []float32{1, 0}})

	assert.Equal(t, "guide_0", record.ID)
	assert.Equal(t, []float32{1, 0}, record.Embedding)
	assert.Equal(t, chunk, record.Chunk())
}
