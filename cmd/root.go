// Package cmd implements the meetnote command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "meetnote",
	Short: "Meetnote - chat with your meeting notes",
	Long: `Meetnote is an AI chat assistant grounded in your meeting notes.
It answers questions about past sessions, participants, and calendar
events, and can search and edit notes through tools.

Running meetnote without arguments starts an interactive chat.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
