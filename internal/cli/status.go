package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pizzeria-rag-go/pkg/hash"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show model reachability and collection statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		status := application.RAG.SystemStatus(cmd.Context())
		cmd.Println("System Status:")
		cmd.Printf("  Chat model: %s\n", mark(status.ModelReachable))
		cmd.Printf("  Embeddings: %s\n", mark(status.EmbeddingsReachable))
		cmd.Printf("  Vector Store (%s) Collections: %d\n", status.CollectionStats.Backend, status.CollectionStats.TotalCollections)
		cmd.Printf("  Total Documents in Vector Store: %d\n", status.CollectionStats.TotalDocuments)
		cmd.Println("  Document Status:")
		for _, id := range application.Registry.AllDocumentIDs() {
			doc := status.Documents[id]
			line := fmt.Sprintf("    %s: PDF %s | JSON %s | %s", id, mark(doc.PDFExists), mark(doc.ProcessedExists), doc.Description)
			if cs, ok := status.CollectionStats.Collections[id]; ok && cs.Error == "" {
				line += fmt.Sprintf(" | %d chunks", cs.DocumentCount)
			}
			cmd.Println(line)
		}
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:         "hash-password [password]",
	Short:       "Print a bcrypt hash for auth.operators (reads stdin when no argument is given)",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{skipAppAnnotation: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		password := ""
		if len(args) == 1 {
			password = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if password == "" {
			return fmt.Errorf("password is empty")
		}
		hashed, err := hash.HashPassword(password)
		if err != nil {
			return err
		}
		cmd.Println(hashed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, hashPasswordCmd)
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
