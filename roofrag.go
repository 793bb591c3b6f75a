package roofrag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/siherrmann/roofrag/core/pipeline"
	"github.com/siherrmann/roofrag/core/retrieval"
	"github.com/siherrmann/roofrag/database"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/metrics"
	"github.com/siherrmann/roofrag/model"
	loadSql "github.com/siherrmann/roofrag/sql"
)

// Options configures the components of a KnowledgeBase
type Options struct {
	Chunker   model.ChunkerConfig
	Embedder  model.EmbedderConfig
	Upload    model.UploadConfig
	Assistant retrieval.AssistantConfig
	Keywords  pipeline.KeywordTable
	Logger    *slog.Logger
	Metrics   *metrics.Metrics // Created when nil
}

// DefaultOptions returns the default configuration of every component
func DefaultOptions() Options {
	return Options{
		Chunker:   model.DefaultChunkerConfig(),
		Embedder:  model.DefaultEmbedderConfig(),
		Upload:    model.DefaultUploadConfig(),
		Assistant: retrieval.DefaultAssistantConfig(),
		Keywords:  pipeline.DefaultKeywordTable(),
	}
}

// KnowledgeBase owns the ingestion pipeline, the vector store and the assistant
type KnowledgeBase struct {
	DB        *helper.Database // Nil for in-memory stores
	Store     retrieval.VectorStore
	Pipeline  *pipeline.Pipeline
	Engine    *retrieval.Engine
	Assistant *retrieval.Assistant
	Metrics   *metrics.Metrics

	provider pipeline.EmbeddingProvider
	log      *slog.Logger
}

// New connects to Postgres, loads the knowledge functions and wires the
// configured embedding provider. A chat completer is used when an API key is set.
func New(dbConfig *helper.DatabaseConfiguration, providerConfig *helper.ProviderConfiguration, options Options) (*KnowledgeBase, error) {
	if providerConfig == nil {
		return nil, helper.NewError("provider configuration validation", fmt.Errorf("provider configuration is nil"))
	}
	logger := options.logger()

	db, err := helper.NewDatabase("roofrag", dbConfig, logger)
	if err != nil {
		return nil, err
	}
	if err := loadSql.Init(db.Instance); err != nil {
		_ = db.Close()
		return nil, helper.NewError("initialize database extensions", err)
	}

	knowledge, err := database.NewKnowledgeDBHandler(db, providerConfig.EmbeddingDim, false)
	if err != nil {
		_ = db.Close()
		return nil, helper.NewError("create knowledge handler", err)
	}

	provider, err := NewEmbeddingProvider(providerConfig)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	var completer retrieval.Completer
	if providerConfig.HasCompletion() {
		client, err := pipeline.NewOpenAIClient(providerConfig)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		completer = retrieval.NewOpenAICompleter(client, providerConfig.ChatModel)
	}

	kb, err := NewWithStore(knowledge, provider, completer, options)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	kb.DB = db
	return kb, nil
}

// NewDemo runs on an in-memory store and the hashing provider. No
// credentials or database are needed and answers are composed from sources.
func NewDemo(options Options) (*KnowledgeBase, error) {
	provider := pipeline.NewHashProvider(0)
	if options.Assistant.Search.SimilarityThreshold == model.DefaultSimilarityThreshold {
		options.Assistant.Search.SimilarityThreshold = model.DemoSimilarityThreshold
	}
	options.Embedder.RequestsPerSecond = 0
	options.Embedder.BatchDelay = 0
	options.Upload.BatchDelay = 0
	return NewWithStore(retrieval.NewMemoryStore(provider.Dimensions()), provider, nil, options)
}

// NewWithStore wires the components around an existing store and provider.
// The completer is optional.
func NewWithStore(store retrieval.VectorStore, provider pipeline.EmbeddingProvider, completer retrieval.Completer, options Options) (*KnowledgeBase, error) {
	if store == nil {
		return nil, helper.NewError("knowledge base validation", fmt.Errorf("vector store is nil"))
	}
	if provider == nil {
		return nil, helper.NewError("knowledge base validation", fmt.Errorf("embedding provider is nil"))
	}
	logger := options.logger()
	m := options.Metrics
	if m == nil {
		m = metrics.New()
	}

	chunker, err := pipeline.NewChunker(options.Chunker, options.Keywords)
	if err != nil {
		return nil, helper.NewError("create chunker", err)
	}
	generator, err := pipeline.NewGenerator(provider, options.Embedder, logger)
	if err != nil {
		return nil, helper.NewError("create generator", err)
	}
	generator.SetMetrics(m)
	uploader, err := pipeline.NewUploader(store, options.Upload, logger)
	if err != nil {
		return nil, helper.NewError("create uploader", err)
	}
	uploader.SetMetrics(m)

	engine, err := retrieval.NewEngine(store, logger)
	if err != nil {
		return nil, helper.NewError("create engine", err)
	}
	engine.SetMetrics(m)

	assistant, err := retrieval.NewAssistant(engine, generator, completer, options.Assistant, logger)
	if err != nil {
		return nil, helper.NewError("create assistant", err)
	}
	assistant.SetMetrics(m)

	return &KnowledgeBase{
		Store:     store,
		Pipeline:  pipeline.NewPipeline(chunker, generator, uploader, logger),
		Engine:    engine,
		Assistant: assistant,
		Metrics:   m,
		provider:  provider,
		log:       logger,
	}, nil
}

// NewEmbeddingProvider creates the provider selected by the configuration
func NewEmbeddingProvider(config *helper.ProviderConfiguration) (pipeline.EmbeddingProvider, error) {
	switch config.Provider {
	case helper.ProviderOpenAI:
		provider, err := pipeline.NewOpenAIProvider(config)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case helper.ProviderLocal:
		provider, err := pipeline.NewHugotProvider(config.LocalModel)
		if err != nil {
			return nil, err
		}
		return provider, nil
	case helper.ProviderHash:
		return pipeline.NewHashProvider(config.EmbeddingDim), nil
	default:
		return nil, helper.NewError("create embedding provider", fmt.Errorf("unknown provider %q", config.Provider))
	}
}

// Ingest chunks, embeds and uploads every document of the source
func (kb *KnowledgeBase) Ingest(ctx context.Context, source model.DocumentSource) (*model.IngestReport, error) {
	report, err := kb.Pipeline.Run(ctx, source)
	if err != nil {
		return report, helper.NewError("ingest", err)
	}

	kb.log.Info("Ingested documents",
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.Chunks),
		slog.Int("embedded", report.Embed.Succeeded),
		slog.Int("failed_chunks", len(report.Embed.Failed)),
		slog.Int("inserted", report.Upload.Inserted),
		slog.Int("duplicates", report.Upload.Duplicates),
	)
	return report, nil
}

// Search embeds the query text and returns the most similar records
func (kb *KnowledgeBase) Search(ctx context.Context, query string, options model.SearchOptions) ([]*model.SearchResult, error) {
	embedding, err := kb.Pipeline.Generator.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return kb.Engine.Search(ctx, embedding, options)
}

// Answer responds to a user message
func (kb *KnowledgeBase) Answer(ctx context.Context, request model.QueryRequest) (*model.QueryResponse, error) {
	return kb.Assistant.Answer(ctx, request)
}

// Stats returns the aggregate view of the stored knowledge
func (kb *KnowledgeBase) Stats(ctx context.Context) (*model.Stats, error) {
	return kb.Engine.Stats(ctx)
}

// Close releases the embedding provider and the database connection
func (kb *KnowledgeBase) Close() error {
	var errs []error
	if closer, ok := kb.provider.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if kb.DB != nil {
		errs = append(errs, kb.DB.Close())
	}
	return errors.Join(errs...)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	return slog.New(helper.NewPrettyHandler(os.Stdout, opts))
}
