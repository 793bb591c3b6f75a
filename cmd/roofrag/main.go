package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/roofrag/database"
	"github.com/siherrmann/roofrag/helper"
	loadSql "github.com/siherrmann/roofrag/sql"
	"github.com/spf13/cobra"
)

var (
	envFiles []string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:   "roofrag",
	Short: "Roofing knowledge base tooling",
	Long: `roofrag chunks roofing documents, embeds the chunks, uploads them to
Postgres with pgvector and answers questions grounded on the stored knowledge.

The offline steps exchange JSON files and can be re-run independently:
  chunk -> chunks.json -> embed -> embeddings.json -> upload`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return helper.LoadEnv(envFiles...)
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env", nil, ".env files to load (default ./.env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	if verbose {
		return helper.NewLogger(slog.LevelDebug)
	}
	return helper.NewLogger(slog.LevelInfo)
}

// openStore connects to the configured database and prepares the knowledge table.
func openStore(logger *slog.Logger, embeddingDim int) (*helper.Database, *database.KnowledgeDBHandler, error) {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return nil, nil, err
	}
	db, err := helper.NewDatabase("roofrag", dbConfig, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := loadSql.Init(db.Instance); err != nil {
		_ = db.Close()
		return nil, nil, helper.NewError("initialize database extensions", err)
	}
	handler, err := database.NewKnowledgeDBHandler(db, embeddingDim, false)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, handler, nil
}

// storeDimension sizes the knowledge table without requiring provider credentials.
func storeDimension() (int, error) {
	provider := os.Getenv("EMBEDDING_PROVIDER")
	if provider == "" {
		provider = helper.ProviderOpenAI
	}
	return helper.EmbeddingDimension(provider)
}
