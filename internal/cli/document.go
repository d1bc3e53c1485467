package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"pizzeria-rag-go/internal/pipeline"
	"pizzeria-rag-go/pkg/tasks"
)

var (
	addDocumentID  string
	addDescription string
)

var addCmd = &cobra.Command{
	Use:   "add [pdf-path]",
	Short: "Register a new menu PDF and process it",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List registered documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := json.MarshalIndent(application.Registry.List(), "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addDocumentID, "id", "", "document id (derived from the file name when empty)")
	addCmd.Flags().StringVar(&addDescription, "description", "", `description, "Name - tagline"`)
	rootCmd.AddCommand(addCmd, documentsCmd)
}

// syncQueue 命令行中直接同步处理任务。
type syncQueue struct {
	processor tasks.TaskProcessor
}

func (q syncQueue) Enqueue(ctx context.Context, task tasks.IngestTask) error {
	return q.processor.Process(ctx, task)
}

func (syncQueue) Close() error { return nil }

func runAdd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	intake := pipeline.NewIntake(application.Registry, application.Objects, syncQueue{processor: application.Processor})
	info, err := intake.Submit(cmd.Context(), pipeline.Upload{
		FileName:    args[0],
		Data:        data,
		DocumentID:  addDocumentID,
		Description: addDescription,
		RequestedBy: "cli",
	})
	if err != nil {
		return err
	}
	cmd.Printf("✅ %s ajouté (%s)\n", info.DocumentID, info.Description)
	return nil
}
