package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
	loadSql "github.com/siherrmann/roofrag/sql"
)

const queryTimeout = 15 * time.Second

// KnowledgeDBHandlerFunctions defines the interface for knowledge record database operations.
type KnowledgeDBHandlerFunctions interface {
	Dimension() int
	UpsertRecords(ctx context.Context, records []*model.KnowledgeRecord) (*model.UpsertResult, error)
	SelectRecord(ctx context.Context, id string) (*model.KnowledgeRecord, error)
	DeleteRecord(ctx context.Context, id string) error
	SelectBySimilarity(ctx context.Context, embedding []float32, options model.SearchOptions) ([]*model.SearchResult, error)
	SelectStats(ctx context.Context) (*model.Stats, error)
}

// KnowledgeDBHandler handles knowledge record database operations
type KnowledgeDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewKnowledgeDBHandler creates a new knowledge database handler.
// It loads the knowledge SQL functions and creates the table for the given embedding dimension.
// If force is true, it will reload the SQL functions even if they already exist.
func NewKnowledgeDBHandler(db *helper.Database, embeddingDim int, force bool) (*KnowledgeDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	knowledgeDbHandler := &KnowledgeDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadKnowledgeSql(knowledgeDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load knowledge sql", err)
	}

	err = knowledgeDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized KnowledgeDBHandler", "embedding_dim", embeddingDim)

	return knowledgeDbHandler, nil
}

// CreateTable creates the 'knowledge_records' table in the database.
// If the table already exists it verifies that its embedding dimension matches.
func (h *KnowledgeDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_knowledge($1);`, h.embeddingDim)
	if err != nil {
		return helper.NewError("init knowledge table", err)
	}

	var dim int
	err = h.db.Instance.QueryRowContext(ctx, `SELECT knowledge_dimension();`).Scan(&dim)
	if err != nil {
		return helper.NewError("read embedding dimension", err)
	}
	if dim != h.embeddingDim {
		return fmt.Errorf("knowledge_records stores %d-dimensional embeddings but the provider produces %d; set EMBEDDING_DIM or recreate the table", dim, h.embeddingDim)
	}

	h.db.Logger.Info("Checked/created table knowledge_records")

	return nil
}

// Dimension returns the embedding dimension of the table
func (h *KnowledgeDBHandler) Dimension() int {
	return h.embeddingDim
}

// UpsertRecords writes all records in one transaction, overwriting existing ids.
func (h *KnowledgeDBHandler) UpsertRecords(ctx context.Context, records []*model.KnowledgeRecord) (*model.UpsertResult, error) {
	result := &model.UpsertResult{}
	if len(records) == 0 {
		return result, nil
	}

	for _, record := range records {
		if err := h.validateRecord(record); err != nil {
			return nil, err
		}
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, record := range records {
		var id string
		var inserted bool
		err := tx.QueryRowContext(
			ctx,
			`SELECT * FROM upsert_knowledge_record($1, $2, $3, $4, $5, $6)`,
			record.ID,
			record.Content,
			record.Title,
			pgvector.NewVector(record.Embedding),
			record.Tokens,
			record.Metadata,
		).Scan(&id, &inserted)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("upsert record %s", record.ID), err)
		}

		if inserted {
			result.Inserted++
		} else {
			result.Duplicates++
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, helper.NewError("commit transaction", err)
	}

	return result, nil
}

// SelectRecord retrieves a record by ID
func (h *KnowledgeDBHandler) SelectRecord(ctx context.Context, id string) (*model.KnowledgeRecord, error) {
	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM select_knowledge_record($1)`,
		id,
	)

	record := &model.KnowledgeRecord{}
	var embedding pgvector.Vector
	err := row.Scan(
		&record.ID,
		&record.Content,
		&record.Title,
		&embedding,
		&record.Tokens,
		&record.Metadata,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	record.Embedding = embedding.Slice()

	return record, nil
}

// DeleteRecord deletes a record by ID
func (h *KnowledgeDBHandler) DeleteRecord(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT delete_knowledge_record($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectBySimilarity performs cosine similarity search.
// Category and urgency filters are applied before ranking.
func (h *KnowledgeDBHandler) SelectBySimilarity(ctx context.Context, embedding []float32, options model.SearchOptions) ([]*model.SearchResult, error) {
	if len(embedding) != h.embeddingDim {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, expected %d", model.ErrInvalidQuery, len(embedding), h.embeddingDim)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM match_knowledge($1, $2, $3, $4, $5)`,
		pgvector.NewVector(embedding),
		options.SimilarityThreshold,
		options.MaxResults,
		nullString(options.FilterCategory),
		nullString(options.FilterUrgency),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	results := []*model.SearchResult{}
	for rows.Next() {
		record := &model.KnowledgeRecord{}
		result := &model.SearchResult{Record: record}
		err := rows.Scan(
			&record.ID,
			&record.Content,
			&record.Title,
			&record.Tokens,
			&record.Metadata,
			&record.CreatedAt,
			&result.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, result)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectStats aggregates chunk, token, category, urgency and season counts.
func (h *KnowledgeDBHandler) SelectStats(ctx context.Context) (*model.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	stats := &model.Stats{
		CategoryDistribution: map[model.Category]int64{},
		UrgencyDistribution:  map[model.Urgency]int64{},
		SeasonDistribution:   map[model.Season]int64{},
	}

	var categoriesJSON, urgenciesJSON []byte
	err := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM knowledge_stats()`).Scan(
		&stats.TotalChunks,
		&stats.TotalTokens,
		&categoriesJSON,
		&urgenciesJSON,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	if err := json.Unmarshal(categoriesJSON, &stats.CategoryDistribution); err != nil {
		return nil, helper.NewError("unmarshaling category distribution", err)
	}
	if err := json.Unmarshal(urgenciesJSON, &stats.UrgencyDistribution); err != nil {
		return nil, helper.NewError("unmarshaling urgency distribution", err)
	}

	seasons := []string{
		string(model.SeasonSpring),
		string(model.SeasonSummer),
		string(model.SeasonFall),
		string(model.SeasonWinter),
		string(model.SeasonYearRound),
	}
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM count_knowledge_by_season($1)`, pq.Array(seasons))
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	for rows.Next() {
		var season string
		var count int64
		if err := rows.Scan(&season, &count); err != nil {
			return nil, helper.NewError("scan", err)
		}
		if count > 0 {
			stats.SeasonDistribution[model.Season(season)] = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return stats, nil
}

func (h *KnowledgeDBHandler) validateRecord(record *model.KnowledgeRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("%w: record id is empty", model.ErrInvalidRecord)
	}
	if len(record.Embedding) != h.embeddingDim {
		return fmt.Errorf("%w: record %s has %d dimensions, expected %d", model.ErrInvalidRecord, record.ID, len(record.Embedding), h.embeddingDim)
	}
	for _, v := range record.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: record %s has a non-finite embedding value", model.ErrInvalidRecord, record.ID)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
