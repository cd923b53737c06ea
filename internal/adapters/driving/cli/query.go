package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a question against a sector",
	Long: `Retrieves the fragments most similar to the question and generates an answer
from them. Follow-up questions continue the user's latest conversation unless
--conversation selects another one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

var (
	queryUser          string
	querySector        string
	queryConversation  string
	queryLimit         int
	queryMinSimilarity float64
)

func init() {
	queryCmd.Flags().StringVarP(&queryUser, "user", "u", "", "User asking the question (required)")
	queryCmd.Flags().StringVarP(&querySector, "sector", "s", "", "Sector to search (required)")
	queryCmd.Flags().StringVar(&queryConversation, "conversation", "", "Conversation to continue")
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 0, "Maximum fragments to retrieve (0 uses the default)")
	queryCmd.Flags().Float64Var(&queryMinSimilarity, "min-similarity", 0, "Similarity threshold between 0 and 1")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Query == nil {
		return errors.New("query service not configured")
	}
	if queryUser == "" || querySector == "" {
		return errors.New("--user and --sector are required")
	}

	req := domain.QueryRequest{
		UserID:         queryUser,
		SectorID:       querySector,
		Question:       strings.Join(args, " "),
		ConversationID: queryConversation,
		Options:        domain.RetrievalOptions{Limit: queryLimit},
	}
	if cmd.Flags().Changed("min-similarity") {
		threshold := queryMinSimilarity
		req.Options.MinSimilarity = &threshold
	}

	resp, err := deps.Query.Query(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, resp)
	}

	cmd.Println(resp.ResponseText)
	cmd.Println()
	if len(resp.Sources) > 0 {
		cmd.Println("Sources:")
		for i, c := range resp.Sources {
			cmd.Printf("  [%d] %s #%d (%.3f)\n", i+1, c.SourceID, c.Position, c.Similarity)
			cmd.Printf("      %s\n", preview(c.Content, 100))
		}
		cmd.Println()
	}
	cmd.Printf("Conversation: %s\n", resp.ConversationID)
	return nil
}

// preview flattens whitespace and cuts s to at most n runes
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
