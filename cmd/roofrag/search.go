package main

import (
	"encoding/json"
	"strings"

	"github.com/siherrmann/roofrag"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
	"github.com/spf13/cobra"
)

var (
	searchThreshold float64
	searchLimit     int
	searchCategory  string
	searchUrgency   string
	searchJSON      bool
)

// sampleQueries cover the main categories when test-search runs without arguments.
var sampleQueries = []string{
	"What roofing material is best for hail?",
	"My roof is leaking, what should I do right now?",
	"How often should gutters be cleaned?",
	"How much does a new roof cost?",
	"Which flat roof membranes work for commercial buildings?",
}

var searchCmd = &cobra.Command{
	Use:   "test-search [query...]",
	Short: "Run similarity searches against the vector store",
	Long: `Embeds each query and prints the closest knowledge records with their
similarity, category and urgency. Without arguments a set of sample roofing
questions is searched.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Float64VarP(&searchThreshold, "threshold", "t", model.DefaultSimilarityThreshold, "minimum cosine similarity")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results per query")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "only return chunks of this category")
	searchCmd.Flags().StringVar(&searchUrgency, "urgency", "", "only return chunks of this urgency")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	queries := args
	if len(queries) == 0 {
		queries = sampleQueries
	}
	options := model.SearchOptions{
		SimilarityThreshold: searchThreshold,
		MaxResults:          searchLimit,
		FilterCategory:      searchCategory,
		FilterUrgency:       searchUrgency,
	}
	if err := options.Validate(); err != nil {
		return err
	}

	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return err
	}
	providerConfig, err := helper.NewProviderConfiguration()
	if err != nil {
		return err
	}
	kbOptions := roofrag.DefaultOptions()
	kbOptions.Logger = newLogger()
	kb, err := roofrag.New(dbConfig, providerConfig, kbOptions)
	if err != nil {
		return err
	}
	defer kb.Close()

	all := map[string][]*model.SearchResult{}
	for _, query := range queries {
		results, err := kb.Search(cmd.Context(), query, options)
		if err != nil {
			return err
		}
		all[query] = results
		if !searchJSON {
			printResults(cmd, query, results)
		}
	}

	if searchJSON {
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
	}
	return nil
}

func printResults(cmd *cobra.Command, query string, results []*model.SearchResult) {
	cmd.Printf("Query: %s\n", query)
	if len(results) == 0 {
		cmd.Println("  No results above the threshold.")
		cmd.Println()
		return
	}
	for i, result := range results {
		record := result.Record
		cmd.Printf("  [%d] %s (%.3f) %s/%s\n", i+1, record.Title, result.Similarity, record.Metadata.Category, record.Metadata.Urgency)
		cmd.Printf("      %s\n", snippet(record.Content, 160))
	}
	cmd.Println()
}

func snippet(content string, maxChars int) string {
	content = strings.Join(strings.Fields(content), " ")
	runes := []rune(content)
	if len(runes) <= maxChars {
		return content
	}
	return string(runes[:maxChars]) + "..."
}
