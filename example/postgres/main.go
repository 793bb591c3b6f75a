package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/roofrag"
	"github.com/siherrmann/roofrag/database"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
)

const sampleContent = `# Metal roofs
Standing seam metal roofs last 40 to 70 years and shed snow easily.
They reflect heat in summer, which lowers cooling costs. Metal panels can dent in severe hail.

# Installation
A metal roof is installed over a synthetic underlayment. Panels are fastened with concealed clips so they can expand with heat.
Most installations take two to four days for a typical home.`

func main() {
	ctx := context.Background()

	// Start a pgvector PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(ctx)

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	// The hashing provider keeps the example offline, switch to
	// helper.NewProviderConfiguration() for OpenAI or local ONNX embeddings
	providerConfig := &helper.ProviderConfiguration{
		Provider:     helper.ProviderHash,
		EmbeddingDim: 384,
	}

	options := roofrag.DefaultOptions()
	options.Embedder.BatchDelay = 0
	options.Upload.BatchDelay = 0
	kb, err := roofrag.New(dbConfig, providerConfig, options)
	if err != nil {
		log.Fatalf("Failed to create knowledge base: %v", err)
	}
	defer kb.Close()

	doc := &model.Document{
		Source:   "materials/metal-roofs.md",
		Title:    "Metal roofs",
		Content:  sampleContent,
		Metadata: model.ChunkMetadata{Location: "Colorado"},
	}

	fmt.Println("Ingesting document...")
	report, err := kb.Ingest(ctx, model.Documents(doc))
	if err != nil {
		log.Fatalf("Failed to ingest document: %v", err)
	}
	fmt.Printf("Inserted %d chunks, %d failed\n", report.Upload.Inserted, len(report.Embed.Failed))

	// Ingesting again overwrites the records by id
	report, err = kb.Ingest(ctx, model.Documents(doc))
	if err != nil {
		log.Fatalf("Failed to re-ingest document: %v", err)
	}
	fmt.Printf("Re-ingest: %d inserted, %d overwritten\n", report.Upload.Inserted, report.Upload.Duplicates)

	// Switch to an IVFFlat index, small lists for a small table
	knowledge, ok := kb.Store.(*database.KnowledgeDBHandler)
	if ok {
		if err := knowledge.ChangeIndexType(ctx, database.IndexIVFFlat, database.IndexOptions{Lists: 1}); err != nil {
			log.Fatalf("Failed to change index: %v", err)
		}
		fmt.Println("Switched to an IVFFlat index")
	}

	search := model.DefaultSearchOptions()
	search.SimilarityThreshold = model.DemoSimilarityThreshold
	search.FilterCategory = string(model.CategoryMaterials)
	results, err := kb.Search(ctx, "How long does a metal roof last?", search)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}
	fmt.Printf("\nFound %d results:\n", len(results))
	for i, result := range results {
		fmt.Printf("  [%d] %.4f %s (%s)\n", i+1, result.Similarity, result.Record.Title, result.Record.Metadata.Location)
	}

	stats, err := kb.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	fmt.Printf("\nKnowledge base: %d chunks, %d tokens, categories %v\n", stats.TotalChunks, stats.TotalTokens, stats.CategoryDistribution)

	fmt.Println("\nPostgres example completed successfully!")
}
