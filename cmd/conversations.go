package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/config"
	"github.com/meetnote/meetnote/internal/database"
	"github.com/meetnote/meetnote/internal/log"
)

var convSessionID string

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List stored conversations",
	RunE:  runConversations,
}

func init() {
	conversationsCmd.Flags().StringVar(&convSessionID, "session", "local", "meeting session id")
	rootCmd.AddCommand(conversationsCmd)
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		return err
	}

	store := chat.NewStore(db, log.NewNop())
	conversations, err := store.ListConversations(ctx, convSessionID)
	if err != nil {
		return fmt.Errorf("listing conversations: %w", err)
	}

	if len(conversations) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	for _, conv := range conversations {
		name := conv.Name
		if name == "" {
			name = "(unnamed)"
		}
		messages, err := store.ListMessages(ctx, conv.ID)
		if err != nil {
			return fmt.Errorf("listing messages: %w", err)
		}
		fmt.Printf("%s  %s  %d messages  updated %s\n",
			conv.ID, name, len(messages),
			conv.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
