package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/pkg/tasks"
)

var processAllCmd = &cobra.Command{
	Use:   "process-all",
	Short: "Process every registered document",
	Long: `Syncs PDFs from paths.raw_pdfs into object storage, then extracts,
parses, chunks and indexes every registered document. A failing document is
reported and skipped.`,
	Args: cobra.NoArgs,
	RunE: runProcessAll,
}

var processSingleCmd = &cobra.Command{
	Use:   "process-single [document-id]",
	Short: "Process one registered document",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcessSingle,
}

func init() {
	rootCmd.AddCommand(processAllCmd, processSingleCmd)
}

func runProcessAll(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if _, err := application.SyncRawFiles(ctx); err != nil {
		return err
	}
	start := time.Now()
	results := application.Processor.ProcessAll(ctx)
	failed := pipeline.Failed(results)

	for _, id := range application.Registry.AllDocumentIDs() {
		if err := results[id]; err != nil {
			cmd.Printf("❌ %s: %v\n", id, err)
		} else {
			cmd.Printf("✅ %s\n", id)
		}
	}
	cmd.Printf("Pipeline: %d/%d documents traités en %s\n", len(results)-len(failed), len(results), time.Since(start).Round(time.Millisecond))
	if len(failed) > 0 {
		return fmt.Errorf("%d document(s) en échec: %v", len(failed), failed)
	}
	return nil
}

func runProcessSingle(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if _, err := application.SyncRawFiles(ctx); err != nil {
		return err
	}
	if err := application.Processor.Process(ctx, tasks.IngestTask{DocumentID: args[0], RequestedBy: "cli"}); err != nil {
		return err
	}
	cmd.Printf("✅ %s traité\n", args[0])
	return nil
}
