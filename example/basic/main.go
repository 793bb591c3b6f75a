package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/roofrag"
	"github.com/siherrmann/roofrag/model"
)

var sampleDocuments = []*model.Document{
	{
		Source: "materials/impact-resistant-shingles.md",
		Title:  "Impact resistant shingles",
		Content: `# Impact resistant shingles
Class 4 impact resistant shingles are tested by dropping steel balls from a height of twenty feet.
They resist hail far better than standard three-tab shingles. Many insurers lower premiums for homes with Class 4 shingles.

# Lifespan
Architectural shingles typically last 25 to 30 years. Impact resistant shingles often carry a 50 year warranty.`,
	},
	{
		Source: "maintenance/gutter-cleaning.md",
		Title:  "Gutter cleaning",
		Content: `Clean your gutters at least twice a year, in spring and in fall.
Clogged gutters push water under the shingles and rot the roof deck. Check the downspouts after every heavy storm.`,
	},
	{
		Source: "emergency/roof-leaks.md",
		Title:  "What to do when your roof leaks",
		Content: `If your roof is leaking, move furniture and electronics away from the leak immediately.
Place a bucket under the drip and relieve pooling water in the ceiling. Cover the damaged area with a tarp once it is safe.
Call our emergency line for a same-day repair.`,
	},
}

func main() {
	ctx := context.Background()

	// In-memory knowledge base with the hashing provider, no database or API key needed
	kb, err := roofrag.NewDemo(roofrag.DefaultOptions())
	if err != nil {
		log.Fatalf("Failed to create knowledge base: %v", err)
	}
	defer kb.Close()

	fmt.Println("Ingesting documents...")
	report, err := kb.Ingest(ctx, model.Documents(sampleDocuments...))
	if err != nil {
		log.Fatalf("Failed to ingest documents: %v", err)
	}
	fmt.Printf("Ingested %d documents into %d chunks\n", report.Documents, report.Chunks)

	// Search directly
	options := model.DefaultSearchOptions()
	options.SimilarityThreshold = model.DemoSimilarityThreshold
	results, err := kb.Search(ctx, "Which shingles resist hail?", options)
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	fmt.Printf("\nFound %d results:\n", len(results))
	for i, result := range results {
		fmt.Printf("\n--- Result %d ---\n", i+1)
		fmt.Printf("Similarity: %.4f\n", result.Similarity)
		fmt.Printf("Title: %s\n", result.Record.Title)
		fmt.Printf("Category: %s\n", result.Record.Metadata.Category)
		fmt.Printf("Content: %s\n", result.Record.Content)
	}

	// Ask the assistant
	for _, message := range []string{
		"Who are you?",
		"My roof is leaking, please help immediately",
		"How often should I clean my gutters?",
	} {
		response, err := kb.Answer(ctx, model.QueryRequest{Message: message, SessionID: "basic-example"})
		if err != nil {
			log.Fatalf("Failed to answer %q: %v", message, err)
		}
		fmt.Printf("\n> %s\n[%s/%s, %d sources]\n%s\n", message, response.Metadata.Topic, response.Metadata.Urgency, response.Metadata.SourcesUsed, response.Response)
	}

	fmt.Println("\nBasic example completed successfully!")
}
