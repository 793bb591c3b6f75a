package main

import (
	"fmt"
	"time"

	"github.com/siherrmann/roofrag/core/pipeline"
	"github.com/siherrmann/roofrag/model"
	"github.com/spf13/cobra"
)

var (
	uploadIn         string
	uploadFailed     string
	uploadFromFailed bool
	uploadBatchSize  int
	uploadRetries    int
	uploadBatchDelay time.Duration
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upsert embedded chunks into the vector store",
	Long: `Writes the records of --in to the knowledge_records table in batches.
Records are upserted on their id, so re-running an upload overwrites instead
of duplicating. Batches that still fail after their retries are written to
--failed; re-run with --from-failed to upload only those.`,
	Args: cobra.NoArgs,
	RunE: runUpload,
}

func init() {
	defaults := model.DefaultUploadConfig()
	uploadCmd.Flags().StringVarP(&uploadIn, "in", "i", "embeddings.json", "embeddings file")
	uploadCmd.Flags().StringVar(&uploadFailed, "failed", "failed_uploads.json", "file for batches that could not be written")
	uploadCmd.Flags().BoolVar(&uploadFromFailed, "from-failed", false, "retry the batches of --failed")
	uploadCmd.Flags().IntVar(&uploadBatchSize, "batch-size", defaults.BatchSize, "records per batch")
	uploadCmd.Flags().IntVar(&uploadRetries, "retries", defaults.MaxRetries, "attempts per batch")
	uploadCmd.Flags().DurationVar(&uploadBatchDelay, "batch-delay", defaults.BatchDelay, "pause between batches")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	logger := newLogger()

	records, err := uploadInput()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("No records to upload.")
		return nil
	}

	dim := len(records[0].Embedding)
	if dim == 0 {
		return fmt.Errorf("record %s has no embedding", records[0].ID)
	}
	db, handler, err := openStore(logger, dim)
	if err != nil {
		return err
	}
	defer db.Close()

	config := model.DefaultUploadConfig()
	config.BatchSize = uploadBatchSize
	config.MaxRetries = uploadRetries
	config.BatchDelay = uploadBatchDelay
	uploader, err := pipeline.NewUploader(handler, config, logger)
	if err != nil {
		return err
	}

	report, runErr := uploader.Upload(cmd.Context(), records)
	if report == nil {
		return runErr
	}
	if err := writeJSON(uploadFailed, report.FailedBatches); err != nil {
		return err
	}

	cmd.Printf("Uploaded %d records: %d inserted, %d overwritten\n", report.Inserted+report.Duplicates, report.Inserted, report.Duplicates)
	if len(report.FailedBatches) > 0 {
		cmd.Printf("%d batches failed -> %s (re-run with --from-failed)\n", len(report.FailedBatches), uploadFailed)
	}
	return runErr
}

func uploadInput() ([]*model.KnowledgeRecord, error) {
	if !uploadFromFailed {
		return readJSON[[]*model.KnowledgeRecord](uploadIn)
	}

	failed, err := readJSON[[]*model.FailedBatch](uploadFailed)
	if err != nil {
		return nil, err
	}
	records := []*model.KnowledgeRecord{}
	for _, batch := range failed {
		if batch != nil {
			records = append(records, batch.Records...)
		}
	}
	return records, nil
}
