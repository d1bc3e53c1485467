package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pizzeria-rag-go/internal/model"
)

var (
	askDocuments []string
	askAllergens []string
	askSession   string
	askJSON      bool

	searchLimit int
	searchJSON  bool

	testDocument string
)

// sampleQuestions 用于 test 命令的冒烟测试。
var sampleQuestions = []string{
	"Quelles pizzas avez-vous au menu?",
	"Quel est le prix de la pizza Margherita?",
	"Avez-vous des pizzas végétariennes?",
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed menus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the vector collections",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run sample questions against the system",
	Args:  cobra.NoArgs,
	RunE:  runTest,
}

var toolCmd = &cobra.Command{
	Use:   "tool [name] [query]",
	Short: "Run a retrieval tool (pizza_search, allergen_check, ingredient_lookup, nutrition_info)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := application.Toolset.Run(cmd.Context(), args[0], strings.Join(args[1:], " "))
		if err != nil {
			return err
		}
		cmd.Println(res.Text)
		return nil
	},
}

func init() {
	askCmd.Flags().StringSliceVarP(&askDocuments, "document", "d", nil, "restrict to these document ids")
	askCmd.Flags().StringSliceVarP(&askAllergens, "allergen", "a", nil, "user allergens (extracted from the question when omitted)")
	askCmd.Flags().StringVar(&askSession, "session", "", "conversation session id")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full result as JSON")

	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 5, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")

	testCmd.Flags().StringVarP(&testDocument, "document", "d", "", "restrict to one document id")

	rootCmd.AddCommand(askCmd, searchCmd, testCmd, toolCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	res, err := application.RAG.AnswerQuestion(cmd.Context(), model.AskRequest{
		Question:      strings.Join(args, " "),
		DocumentIDs:   askDocuments,
		UserAllergens: askAllergens,
		SessionID:     askSession,
	})
	if err != nil {
		return err
	}
	if askJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Println(res.Answer)
	if len(res.CompaniesFound) > 0 {
		cmd.Printf("\nSources: %s\n", strings.Join(res.CompaniesFound, ", "))
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	resp, err := application.Store.Search(cmd.Context(), args[0], nil, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if len(resp.Results) == 0 {
		cmd.Println("Aucun résultat.")
		return nil
	}
	for i, r := range resp.Results {
		cmd.Printf("[%d] %s p.%d (%.3f) %s\n", i+1, r.DocumentName, r.Metadata.PageOrSection, r.Distance, truncate(r.Content, 120))
	}
	return nil
}

func runTest(cmd *cobra.Command, _ []string) error {
	var docs []string
	if testDocument != "" {
		docs = []string{testDocument}
	}
	success, withContext := 0, 0
	for _, q := range sampleQuestions {
		res, err := application.RAG.AnswerQuestion(cmd.Context(), model.AskRequest{Question: q, DocumentIDs: docs})
		if err != nil {
			return err
		}
		status, ctxStatus := "❌", "📭"
		if res.Status == "success" {
			success++
			status = "✅"
		}
		if res.HasContext {
			withContext++
			ctxStatus = "📄"
		}
		cmd.Printf("%s %s %s\n", status, ctxStatus, q)
	}
	cmd.Printf("Test Results: %d/%d successful\n", success, len(sampleQuestions))
	cmd.Printf("Tests with context: %d/%d\n", withContext, len(sampleQuestions))
	if success != len(sampleQuestions) {
		return fmt.Errorf("%d test(s) failed", len(sampleQuestions)-success)
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
