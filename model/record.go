package model

import "time"

// Embedding is the vector of one chunk.
type Embedding struct {
	ChunkID string    `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	Tokens  int       `json:"tokens"`
}

// KnowledgeRecord is the persisted row of the vector store
type KnowledgeRecord struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Title     string        `json:"title"`
	Embedding []float32     `json:"embedding,omitempty"`
	Tokens    int           `json:"tokens"`
	Metadata  ChunkMetadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
}

// NewKnowledgeRecord joins a chunk with its embedding.
func NewKnowledgeRecord(chunk *Chunk, embedding *Embedding) *KnowledgeRecord {
	record := &KnowledgeRecord{
		ID:       chunk.ID,
		Content:  chunk.Content,
		Title:    chunk.Title,
		Tokens:   chunk.Tokens,
		Metadata: chunk.Metadata,
	}
	if embedding != nil {
		record.Embedding = embedding.Vector
	}
	return record
}

// Chunk returns the chunk part of the record.
func (r *KnowledgeRecord) Chunk() *Chunk {
	return &Chunk{
		ID:       r.ID,
		Content:  r.Content,
		Title:    r.Title,
		Tokens:   r.Tokens,
		Metadata: r.Metadata,
	}
}
