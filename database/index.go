package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/roofrag/helper"
)

const (
	IndexHNSW    = "hnsw"
	IndexIVFFlat = "ivfflat"
)

// IndexOptions holds the build parameters of the vector index.
// Zero values fall back to the pgvector defaults.
//   - HNSW: M (default 16), EfConstruction (default 64)
//   - IVFFlat: Lists (default 100)
type IndexOptions struct {
	M              int `json:"m,omitempty"`
	EfConstruction int `json:"efConstruction,omitempty"`
	Lists          int `json:"lists,omitempty"`
}

// ChangeIndexType rebuilds the embedding index of knowledge_records as HNSW or IVFFlat.
func (h *KnowledgeDBHandler) ChangeIndexType(ctx context.Context, indexType string, options IndexOptions) error {
	createIndexSQL, err := indexStatement(indexType, options)
	if err != nil {
		return helper.NewError("change index type", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `DROP INDEX IF EXISTS idx_knowledge_embedding;`)
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = tx.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit transaction", err)
	}

	h.db.Logger.Info("Rebuilt vector index", "type", indexType, "options", options)

	return nil
}

func indexStatement(indexType string, options IndexOptions) (string, error) {
	switch indexType {
	case IndexHNSW:
		m := 16
		efConstruction := 64
		if options.M > 0 {
			m = options.M
		}
		if options.EfConstruction > 0 {
			efConstruction = options.EfConstruction
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_knowledge_embedding ON knowledge_records USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			m, efConstruction,
		), nil
	case IndexIVFFlat:
		lists := 100
		if options.Lists > 0 {
			lists = options.Lists
		}
		return fmt.Sprintf(
			`CREATE INDEX idx_knowledge_embedding ON knowledge_records USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			lists,
		), nil
	default:
		return "", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType)
	}
}
