package retrieval

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/siherrmann/roofrag/model"
)

// MemoryStore is an in-process VectorStore used in demo mode and tests.
// Search is a linear scan ranked by cosine similarity.
type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	records   map[string]*model.KnowledgeRecord
}

func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		dimension: dimension,
		records:   map[string]*model.KnowledgeRecord{},
	}
}

func (s *MemoryStore) Dimension() int {
	return s.dimension
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// UpsertRecords stores all records or none of them.
func (s *MemoryStore) UpsertRecords(ctx context.Context, records []*model.KnowledgeRecord) (*model.UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, record := range records {
		if record == nil || record.ID == "" {
			return nil, fmt.Errorf("%w: record id is empty", model.ErrInvalidRecord)
		}
		if len(record.Embedding) != s.dimension {
			return nil, fmt.Errorf("%w: record %s has %d dimensions, expected %d", model.ErrInvalidRecord, record.ID, len(record.Embedding), s.dimension)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &model.UpsertResult{}
	now := time.Now()
	for _, record := range records {
		stored := *record
		stored.Embedding = append([]float32(nil), record.Embedding...)
		if existing, ok := s.records[record.ID]; ok {
			stored.CreatedAt = existing.CreatedAt
			result.Duplicates++
		} else {
			stored.CreatedAt = now
			result.Inserted++
		}
		s.records[record.ID] = &stored
	}
	return result, nil
}

// SelectRecord retrieves a record by ID
func (s *MemoryStore) SelectRecord(id string) (*model.KnowledgeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, false
	}
	copied := *record
	return &copied, true
}

func (s *MemoryStore) DeleteRecord(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

func (s *MemoryStore) SelectBySimilarity(ctx context.Context, embedding []float32, options model.SearchOptions) ([]*model.SearchResult, error) {
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, expected %d", model.ErrInvalidQuery, len(embedding), s.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := []*model.SearchResult{}
	for _, record := range s.records {
		if options.FilterCategory != "" && string(record.Metadata.Category) != options.FilterCategory {
			continue
		}
		if options.FilterUrgency != "" && string(record.Metadata.Urgency) != options.FilterUrgency {
			continue
		}
		similarity := cosineSimilarity(embedding, record.Embedding)
		if similarity < options.SimilarityThreshold {
			continue
		}
		copied := *record
		copied.Embedding = nil
		results = append(results, &model.SearchResult{Record: &copied, Similarity: similarity})
	}
	s.mu.RUnlock()

	slices.SortFunc(results, func(a, b *model.SearchResult) int {
		if a.Similarity != b.Similarity {
			if a.Similarity > b.Similarity {
				return -1
			}
			return 1
		}
		if a.Record.ID < b.Record.ID {
			return -1
		}
		if a.Record.ID > b.Record.ID {
			return 1
		}
		return 0
	})
	if options.MaxResults > 0 && len(results) > options.MaxResults {
		results = results[:options.MaxResults]
	}
	return results, nil
}

func (s *MemoryStore) SelectStats(ctx context.Context) (*model.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &model.Stats{
		CategoryDistribution: map[model.Category]int64{},
		UrgencyDistribution:  map[model.Urgency]int64{},
		SeasonDistribution:   map[model.Season]int64{},
	}
	for _, record := range s.records {
		stats.TotalChunks++
		stats.TotalTokens += int64(record.Tokens)

		category := record.Metadata.Category
		if category == "" {
			category = model.CategoryGeneral
		}
		stats.CategoryDistribution[category]++

		urgency := record.Metadata.Urgency
		if urgency == "" {
			urgency = model.UrgencyNormal
		}
		stats.UrgencyDistribution[urgency]++

		for _, season := range record.Metadata.Season {
			stats.SeasonDistribution[season]++
		}
	}
	return stats, nil
}

// cosineSimilarity calculates the cosine similarity between two embedding vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
