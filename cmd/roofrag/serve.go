package main

import (
	"github.com/siherrmann/roofrag"
	"github.com/siherrmann/roofrag/helper"
	"github.com/siherrmann/roofrag/model"
	"github.com/siherrmann/roofrag/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr      string
	serveDemo      bool
	serveDocs      string
	serveCompany   string
	serveEmergency string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the RAG query API",
	Long: `Serves POST /api/rag, GET /api/knowledge/stats, /healthz and /metrics.

With --demo the knowledge base runs in memory on the hashing provider and the
documents of --docs are ingested at startup. No database or API key is needed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	defaults := roofrag.DefaultOptions().Assistant
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false, "run in memory with the hashing provider")
	serveCmd.Flags().StringVar(&serveDocs, "docs", "docs", "documents to ingest in demo mode")
	serveCmd.Flags().StringVar(&serveCompany, "company", defaults.CompanyName, "company name used in responses")
	serveCmd.Flags().StringVar(&serveEmergency, "emergency-contact", defaults.EmergencyContact, "call to action for emergencies")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := newLogger()
	options := roofrag.DefaultOptions()
	options.Logger = logger
	options.Assistant.CompanyName = serveCompany
	options.Assistant.EmergencyContact = serveEmergency

	kb, err := newServeKnowledgeBase(cmd, options)
	if err != nil {
		return err
	}
	defer kb.Close()

	return server.New(kb.Assistant, kb.Engine, kb.Metrics, logger).ListenAndServe(cmd.Context(), serveAddr)
}

func newServeKnowledgeBase(cmd *cobra.Command, options roofrag.Options) (*roofrag.KnowledgeBase, error) {
	if !serveDemo {
		dbConfig, err := helper.NewDatabaseConfiguration()
		if err != nil {
			return nil, err
		}
		providerConfig, err := helper.NewProviderConfiguration()
		if err != nil {
			return nil, err
		}
		return roofrag.New(dbConfig, providerConfig, options)
	}

	kb, err := roofrag.NewDemo(options)
	if err != nil {
		return nil, err
	}
	report, err := kb.Ingest(cmd.Context(), model.DirectorySource(serveDocs, ".md", ".txt"))
	if err != nil {
		_ = kb.Close()
		return nil, err
	}
	cmd.Printf("Demo knowledge base: %d documents, %d chunks\n", report.Documents, report.Chunks)
	return kb, nil
}
