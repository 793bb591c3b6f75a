package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
)

// Pipeline chains chunking, embedding and uploading
type Pipeline struct {
	Chunker   *Chunker
	Generator *Generator
	Uploader  *Uploader
	logger    *slog.Logger
}

// NewPipeline creates a new processing pipeline
func NewPipeline(chunker *Chunker, generator *Generator, uploader *Uploader, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = helper.NewLogger(slog.LevelInfo)
	}
	return &Pipeline{
		Chunker:   chunker,
		Generator: generator,
		Uploader:  uploader,
		logger:    logger,
	}
}

// ChunkAll chunks every document of the source in order.
// It returns the chunks and the number of documents read.
func (p *Pipeline) ChunkAll(source model.DocumentSource) ([]*model.Chunk, int, error) {
	if p.Chunker == nil {
		return nil, 0, fmt.Errorf("chunker is nil")
	}

	chunks := []*model.Chunk{}
	documents := 0
	for doc, err := range source {
		if err != nil {
			return nil, documents, helper.NewError("read document", err)
		}
		documentChunks, err := p.Chunker.Chunk(doc)
		if err != nil {
			return nil, documents, helper.NewError(fmt.Sprintf("chunk %s", doc.Source), err)
		}
		documents++
		chunks = append(chunks, documentChunks...)
		p.logger.Debug("Chunked document", "source", doc.Source, "chunks", len(documentChunks))
	}

	p.logger.Info("Chunked documents", "documents", documents, "chunks", len(chunks))
	return chunks, documents, nil
}

// Records joins chunks with their embeddings. Chunks without an embedding are skipped.
func Records(chunks []*model.Chunk, embeddings []*model.Embedding) []*model.KnowledgeRecord {
	byID := make(map[string]*model.Embedding, len(embeddings))
	for _, embedding := range embeddings {
		byID[embedding.ChunkID] = embedding
	}

	records := make([]*model.KnowledgeRecord, 0, len(embeddings))
	for _, chunk := range chunks {
		if embedding, ok := byID[chunk.ID]; ok {
			records = append(records, model.NewKnowledgeRecord(chunk, embedding))
		}
	}
	return records
}

// Run chunks, embeds and uploads a document source. Failed chunks and
// batches are reported, the report is returned even when a step aborts.
func (p *Pipeline) Run(ctx context.Context, source model.DocumentSource) (*model.IngestReport, error) {
	if p.Generator == nil || p.Uploader == nil {
		return nil, fmt.Errorf("pipeline needs a generator and an uploader")
	}

	chunks, documents, err := p.ChunkAll(source)
	report := &model.IngestReport{Documents: documents, Chunks: len(chunks)}
	if err != nil {
		return report, err
	}

	report.Embed, err = p.Generator.Embed(ctx, chunks)
	if err != nil {
		return report, err
	}

	report.Upload, err = p.Uploader.Upload(ctx, Records(chunks, report.Embed.Embeddings))
	if err != nil {
		return report, err
	}

	return report, nil
}
