package main

import (
	"github.com/siherrmann/roofrag/database"
	"github.com/spf13/cobra"
)

var (
	indexType           string
	indexM              int
	indexEfConstruction int
	indexLists          int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Switch the vector index of the knowledge table",
	Long: `Drops and recreates the embedding index. hnsw gives the best recall and
builds slower, ivfflat builds fast but should be created after the data is
uploaded.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexType, "type", database.IndexHNSW, "index type: hnsw or ivfflat")
	indexCmd.Flags().IntVar(&indexM, "m", 16, "hnsw: connections per layer")
	indexCmd.Flags().IntVar(&indexEfConstruction, "ef-construction", 64, "hnsw: candidate list size while building")
	indexCmd.Flags().IntVar(&indexLists, "lists", 100, "ivfflat: number of lists")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	dim, err := storeDimension()
	if err != nil {
		return err
	}
	db, handler, err := openStore(newLogger(), dim)
	if err != nil {
		return err
	}
	defer db.Close()

	options := database.IndexOptions{M: indexM, EfConstruction: indexEfConstruction, Lists: indexLists}
	if err := handler.ChangeIndexType(cmd.Context(), indexType, options); err != nil {
		return err
	}
	cmd.Printf("Recreated the embedding index as %s\n", indexType)
	return nil
}
