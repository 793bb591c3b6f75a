package main

import (
	"encoding/json"

	"github.com/siherrmann/roofrag/model"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show knowledge base statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	dim, err := storeDimension()
	if err != nil {
		return err
	}
	db, handler, err := openStore(newLogger(), dim)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := handler.SelectStats(cmd.Context())
	if err != nil {
		return err
	}
	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}

	printStats(cmd, stats)
	return nil
}

func printStats(cmd *cobra.Command, stats *model.Stats) {
	cmd.Printf("Chunks: %d\n", stats.TotalChunks)
	cmd.Printf("Tokens: %d\n", stats.TotalTokens)

	categories := map[string]int64{}
	for category, count := range stats.CategoryDistribution {
		categories[string(category)] = count
	}
	printDistribution(cmd, "Categories", categories)

	urgencies := map[string]int64{}
	for urgency, count := range stats.UrgencyDistribution {
		urgencies[string(urgency)] = count
	}
	printDistribution(cmd, "Urgency", urgencies)

	seasons := map[string]int64{}
	for season, count := range stats.SeasonDistribution {
		seasons[string(season)] = count
	}
	printDistribution(cmd, "Seasons", seasons)
}
