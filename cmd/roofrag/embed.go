package main

import (
	"io"
	"time"

	"github.com/siherrmann/roofrag"
	"github.com/siherrmann/roofrag/core/pipeline"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
	"github.com/spf13/cobra"
)

var (
	embedIn          string
	embedOut         string
	embedFailed      string
	embedFromFailed  bool
	embedBatchSize   int
	embedConcurrency int
	embedRetries     int
	embedBatchDelay  time.Duration
	embedRPS         float64
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for chunks",
	Long: `Embeds the chunks of --in with the configured provider (EMBEDDING_PROVIDER)
and writes chunk records with their vectors to --out. Chunks that still fail
after their retries are written to --failed; re-run with --from-failed to
embed only those and merge them into --out.`,
	Args: cobra.NoArgs,
	RunE: runEmbed,
}

func init() {
	defaults := model.DefaultEmbedderConfig()
	embedCmd.Flags().StringVarP(&embedIn, "in", "i", "chunks.json", "chunks file")
	embedCmd.Flags().StringVarP(&embedOut, "out", "o", "embeddings.json", "output file")
	embedCmd.Flags().StringVar(&embedFailed, "failed", "failed_chunks.json", "file for chunks that could not be embedded")
	embedCmd.Flags().BoolVar(&embedFromFailed, "from-failed", false, "retry the chunks of --failed and merge them into --out")
	embedCmd.Flags().IntVar(&embedBatchSize, "batch-size", defaults.BatchSize, "chunks per batch")
	embedCmd.Flags().IntVar(&embedConcurrency, "concurrency", defaults.Concurrency, "parallel requests inside a batch")
	embedCmd.Flags().IntVar(&embedRetries, "retries", defaults.MaxRetries, "attempts per chunk")
	embedCmd.Flags().DurationVar(&embedBatchDelay, "batch-delay", defaults.BatchDelay, "pause between batches")
	embedCmd.Flags().Float64Var(&embedRPS, "rps", defaults.RequestsPerSecond, "maximum requests per second, 0 is unlimited")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	chunks, err := embedInput()
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		cmd.Println("No chunks to embed.")
		return nil
	}

	providerConfig, err := helper.NewProviderConfiguration()
	if err != nil {
		return err
	}
	provider, err := roofrag.NewEmbeddingProvider(providerConfig)
	if err != nil {
		return err
	}
	if closer, ok := provider.(io.Closer); ok {
		defer closer.Close()
	}

	config := model.DefaultEmbedderConfig()
	config.BatchSize = embedBatchSize
	config.Concurrency = embedConcurrency
	config.MaxRetries = embedRetries
	config.BatchDelay = embedBatchDelay
	config.RequestsPerSecond = embedRPS
	generator, err := pipeline.NewGenerator(provider, config, logger)
	if err != nil {
		return err
	}

	report, runErr := generator.Embed(cmd.Context(), chunks)
	if report == nil {
		return runErr
	}

	records := pipeline.Records(chunks, report.Embeddings)
	if embedFromFailed && fileExists(embedOut) {
		existing, err := readJSON[[]*model.KnowledgeRecord](embedOut)
		if err != nil {
			return err
		}
		records = mergeRecords(existing, records)
	}
	if err := writeJSON(embedOut, records); err != nil {
		return err
	}
	if err := writeJSON(embedFailed, report.Failed); err != nil {
		return err
	}

	cmd.Printf("Embedded %d of %d chunks -> %s\n", report.Succeeded, len(chunks), embedOut)
	cmd.Printf("API calls: %d, tokens: %d, estimated cost: $%.4f\n", report.APICalls, report.TotalTokens, report.EstimatedCost)
	if len(report.Failed) > 0 {
		cmd.Printf("%d chunks failed -> %s (re-run with --from-failed)\n", len(report.Failed), embedFailed)
	}
	return runErr
}

func embedInput() ([]*model.Chunk, error) {
	if !embedFromFailed {
		return readJSON[[]*model.Chunk](embedIn)
	}

	failed, err := readJSON[[]*model.FailedChunk](embedFailed)
	if err != nil {
		return nil, err
	}
	chunks := make([]*model.Chunk, 0, len(failed))
	for _, f := range failed {
		if f != nil && f.Chunk != nil {
			chunks = append(chunks, f.Chunk)
		}
	}
	return chunks, nil
}

// mergeRecords overlays updates on existing by id, keeping the order of existing.
func mergeRecords(existing []*model.KnowledgeRecord, updates []*model.KnowledgeRecord) []*model.KnowledgeRecord {
	byID := make(map[string]*model.KnowledgeRecord, len(updates))
	for _, record := range updates {
		byID[record.ID] = record
	}

	merged := make([]*model.KnowledgeRecord, 0, len(existing)+len(updates))
	for _, record := range existing {
		if update, ok := byID[record.ID]; ok {
			merged = append(merged, update)
			delete(byID, record.ID)
			continue
		}
		merged = append(merged, record)
	}
	for _, record := range updates {
		if _, ok := byID[record.ID]; ok {
			merged = append(merged, record)
		}
	}
	return merged
}
