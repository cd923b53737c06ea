package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var conversationCmd = &cobra.Command{
	Use:   "conversation",
	Short: "Inspect conversations",
}

var conversationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a user's conversations in a sector",
	Args:  cobra.NoArgs,
	RunE:  runConversationList,
}

var conversationHistoryCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "Print the latest messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runConversationHistory,
}

var (
	conversationUser   string
	conversationSector string
	historyLimit       int
)

func init() {
	conversationListCmd.Flags().StringVarP(&conversationUser, "user", "u", "", "User owning the conversations (required)")
	conversationListCmd.Flags().StringVarP(&conversationSector, "sector", "s", "", "Sector of the conversations (required)")
	conversationHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "Messages to show (0 shows all)")

	conversationCmd.AddCommand(conversationListCmd)
	conversationCmd.AddCommand(conversationHistoryCmd)
	rootCmd.AddCommand(conversationCmd)
}

func runConversationList(cmd *cobra.Command, _ []string) error {
	if deps == nil || deps.Conversations == nil {
		return errors.New("conversation service not configured")
	}
	if conversationUser == "" || conversationSector == "" {
		return errors.New("--user and --sector are required")
	}

	convs, err := deps.Conversations.ListByUser(cmd.Context(), conversationUser, conversationSector)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, convs)
	}
	if len(convs) == 0 {
		cmd.Println("No conversations found")
		return nil
	}

	for _, c := range convs {
		cmd.Printf("  %s  %d messages  updated %s\n", c.ID, len(c.Messages), c.UpdatedAt.Format(timeLayout))
	}
	cmd.Printf("\nTotal: %d conversations\n", len(convs))
	return nil
}

func runConversationHistory(cmd *cobra.Command, args []string) error {
	if deps == nil || deps.Conversations == nil {
		return errors.New("conversation service not configured")
	}

	messages, err := deps.Conversations.History(cmd.Context(), args[0], historyLimit)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if jsonOutput {
		return printJSON(cmd, messages)
	}
	if len(messages) == 0 {
		cmd.Println("No messages")
		return nil
	}

	for _, m := range messages {
		cmd.Printf("[%s] %s:\n%s\n\n", m.CreatedAt.Format(timeLayout), m.Role, m.Content)
	}
	return nil
}
