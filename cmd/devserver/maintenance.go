package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ai-commands/internal/app"
)

// withApp opens the service quietly for a one-shot command.
func withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(cmd.Context(), cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	return errors.Join(fn(a), a.Close())
}

func newTokensCmd() *cobra.Command {
	tokensCmd := &cobra.Command{Use: "tokens", Short: "Token window operations"}

	var userID string
	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Empty a user's token window without recording a chat turn",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user required")
			}
			return withApp(cmd, func(a *app.App) error {
				st, err := a.Commands.ResetTokens(cmd.Context(), userID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(os.Stdout, "%s: %d tokens available, window ends %s\n",
					userID, st.Remaining, humanize.Time(st.NextReset))
				return nil
			})
		},
	}
	resetCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = resetCmd.MarkFlagRequired("user")
	tokensCmd.AddCommand(resetCmd)

	return tokensCmd
}

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{Use: "history", Short: "Chat history operations"}

	var userID string
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a user's chat history",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return fmt.Errorf("--user required")
			}
			return withApp(cmd, func(a *app.App) error {
				reply, err := a.Commands.ClearHistory(cmd.Context(), userID)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(os.Stdout, reply.Message)
				return nil
			})
		},
	}
	clearCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	_ = clearCmd.MarkFlagRequired("user")
	historyCmd.AddCommand(clearCmd)

	return historyCmd
}
