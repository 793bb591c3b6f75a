package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/siherrmann/roofrag/core/pipeline"
	"github.com/siherrmann/roofrag/model"
	"github.com/spf13/cobra"
)

var (
	chunkDocs       string
	chunkOut        string
	chunkExtensions []string
	chunkSize       int
	chunkOverlap    int
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split documents into classified chunks",
	Long: `Reads every document below --docs, splits it into sentence aligned chunks
with overlap, tags each chunk with category, urgency, season, service type,
complexity and location, and writes the chunks to --out.`,
	Args: cobra.NoArgs,
	RunE: runChunk,
}

func init() {
	defaults := model.DefaultChunkerConfig()
	chunkCmd.Flags().StringVar(&chunkDocs, "docs", "docs", "directory with the source documents")
	chunkCmd.Flags().StringVarP(&chunkOut, "out", "o", "chunks.json", "output file")
	chunkCmd.Flags().StringSliceVar(&chunkExtensions, "ext", []string{".md", ".txt"}, "file extensions to read")
	chunkCmd.Flags().IntVar(&chunkSize, "chunk-size", defaults.ChunkSize, "maximum tokens of new content per chunk")
	chunkCmd.Flags().IntVar(&chunkOverlap, "overlap", defaults.Overlap, "token slack for sentences carried over")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	config := model.DefaultChunkerConfig()
	config.ChunkSize = chunkSize
	config.Overlap = chunkOverlap
	chunker, err := pipeline.NewChunker(config, pipeline.DefaultKeywordTable())
	if err != nil {
		return err
	}

	extensions := make([]string, 0, len(chunkExtensions))
	for _, ext := range chunkExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extensions = append(extensions, ext)
	}

	p := pipeline.NewPipeline(chunker, nil, nil, logger)
	chunks, documents, err := p.ChunkAll(model.DirectorySource(chunkDocs, extensions...))
	if err != nil {
		return err
	}
	if err := writeJSON(chunkOut, chunks); err != nil {
		return err
	}

	cmd.Printf("Chunked %d documents into %d chunks -> %s\n", documents, len(chunks), chunkOut)
	printDistribution(cmd, "Categories", categoryCounts(chunks))
	return nil
}

func categoryCounts(chunks []*model.Chunk) map[string]int64 {
	counts := map[string]int64{}
	for _, chunk := range chunks {
		counts[string(chunk.Metadata.Category)]++
	}
	return counts
}

func printDistribution(cmd *cobra.Command, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	cmd.Printf("%s:\n", title)
	for _, key := range keys {
		cmd.Printf("  %-14s %s\n", key, fmt.Sprint(counts[key]))
	}
}
