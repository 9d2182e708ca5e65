package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meetnote/meetnote/internal/app"
	"github.com/meetnote/meetnote/internal/chat"
	"github.com/meetnote/meetnote/internal/config"
	"github.com/meetnote/meetnote/internal/conversation"
	"github.com/meetnote/meetnote/internal/generate"
	"github.com/meetnote/meetnote/internal/log"
	"github.com/meetnote/meetnote/internal/presentation"
)

var (
	chatSessionID string
	chatUserID    string
	chatVerbose   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat",
	RunE:  runChat,
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, rootCmd} {
		c.Flags().StringVar(&chatSessionID, "session", "local", "meeting session id the chat is scoped to")
		c.Flags().StringVar(&chatUserID, "user", "local", "user id owning the conversations")
		c.Flags().BoolVarP(&chatVerbose, "verbose", "v", false, "enable debug logging")
	}
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelWarn
	if chatVerbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("closing application", "error", err)
		}
	}()

	indicator := presentation.New(func(visible bool) {
		if visible {
			fmt.Print("(thinking...)\n")
		}
	})
	defer indicator.Close()

	if _, err := a.Sync.Refresh(ctx, chatSessionID); err != nil {
		logger.Warn("loading conversations", "error", err)
	}
	replayMessages(a.Sync.Messages())

	fmt.Println("meetnote chat. Type /help for commands, Ctrl+D to exit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye.")
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if handleCommand(ctx, a, input) {
				break
			}
			continue
		}

		sendTurn(ctx, a, indicator, input)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading input: %w", err)
	}
	return nil
}

// sendTurn runs one blocking chat turn, printing chunks as they stream.
func sendTurn(ctx context.Context, a *app.App, indicator *presentation.Reconciler, input string) {
	indicator.Update(presentation.State{Status: generate.StatusSubmitted})

	var printedAny bool
	err := a.Sync.Send(ctx, input, conversation.SendOptions{
		SessionID:    chatSessionID,
		UserID:       chatUserID,
		LicenseValid: a.Config.LicenseKey != "",
		OnChunk: func(chunk generate.Chunk) {
			switch {
			case chunk.Text != "":
				fmt.Print(chunk.Text)
				printedAny = true
				indicator.Update(presentation.State{
					Status: generate.StatusStreaming,
					Parts:  []chat.Part{chat.NewTextPart(chunk.Text)},
				})
			case chunk.ToolCall != nil:
				fmt.Printf("\n[%s: %s]\n", chunk.ToolCall.Name, chunk.ToolCall.State)
				indicator.Update(presentation.State{
					Status: generate.StatusStreaming,
					Parts:  []chat.Part{chat.NewToolCallPart(*chunk.ToolCall)},
				})
			case chunk.ErrorText != "":
				fmt.Fprintf(os.Stderr, "\nError: %s\n", chunk.ErrorText)
			}
		},
	})

	indicator.Update(presentation.State{Status: a.Transport.Status()})

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if printedAny {
		fmt.Println()
	}
}

// handleCommand handles slash commands; returns true to exit.
func handleCommand(ctx context.Context, a *app.App, input string) bool {
	parts := strings.Fields(input)
	switch parts[0] {
	case "/help":
		fmt.Println("Commands:")
		fmt.Println("  /new           start a new conversation")
		fmt.Println("  /list          list conversations for this session")
		fmt.Println("  /switch <id>   switch to a conversation")
		fmt.Println("  /exit          quit")
		fmt.Println()

	case "/new":
		if err := a.Sync.Select(ctx, ""); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		} else {
			fmt.Println("Started a new conversation.")
		}

	case "/list":
		summaries, err := a.Sync.Refresh(ctx, chatSessionID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		if len(summaries) == 0 {
			fmt.Println("No conversations yet.")
			break
		}
		for _, s := range summaries {
			marker := " "
			if s.Conversation.ID == a.Sync.Selected() {
				marker = "*"
			}
			preview := s.Preview
			if preview == "" {
				preview = "(empty)"
			}
			fmt.Printf("%s %s  %s  %s\n", marker, s.Conversation.ID,
				s.LastActivity.Local().Format("2006-01-02 15:04"), preview)
		}

	case "/switch":
		if len(parts) < 2 {
			fmt.Println("Usage: /switch <conversation-id>")
			break
		}
		if err := a.Sync.Select(ctx, parts[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
		replayMessages(a.Sync.Messages())

	case "/exit", "/quit":
		fmt.Println("Goodbye.")
		return true

	default:
		fmt.Printf("Unknown command: %s (try /help)\n", parts[0])
	}
	return false
}

// replayMessages prints an existing conversation transcript.
func replayMessages(messages []chat.Message) {
	for _, m := range messages {
		switch m.Role {
		case chat.RoleUser:
			fmt.Printf("> %s\n", m.TextContent())
		case chat.RoleAssistant:
			fmt.Println(m.TextContent())
			for _, p := range m.Parts {
				if p.Tool != nil {
					fmt.Printf("[%s: %s]\n", p.Tool.Name, p.Tool.State)
				}
			}
		}
	}
	if len(messages) > 0 {
		fmt.Println()
	}
}
