package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/gophersearch/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionShowCmd, sessionClearCmd)
}

// withStore opens the configured conversation store for a one-off command.
func withStore(fn func(ctx context.Context, store types.ConversationStore) error) error {
	cfg := loadConfig()
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(context.Background(), store)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversations",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store types.ConversationStore) error {
			list, err := store.ListSessions(ctx)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					s.ID,
					s.Title,
					s.TurnCount,
					s.UpdatedAt.Format("2006-01-02 15:04:05"),
				)
			}
			return w.Flush()
		})
	},
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a conversation's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store types.ConversationStore) error {
			id := types.SessionID(args[0])
			if _, err := store.GetSession(ctx, id); err != nil {
				if errors.Is(err, types.ErrSessionNotFound) {
					return fmt.Errorf("session not found: %s", args[0])
				}
				return err
			}
			turns, err := store.ListTurns(ctx, id)
			if err != nil {
				return fmt.Errorf("list turns: %w", err)
			}
			for _, t := range turns {
				fmt.Fprintf(os.Stdout, "[%s] %s\n%s\n\n", t.At.Format("15:04:05"), t.Role, t.Content)
			}
			return nil
		})
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id|all>",
	Short: "Delete a conversation or all conversations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store types.ConversationStore) error {
			if args[0] != "all" {
				if err := store.DeleteSession(ctx, types.SessionID(args[0])); err != nil {
					if errors.Is(err, types.ErrSessionNotFound) {
						return fmt.Errorf("session not found: %s", args[0])
					}
					return fmt.Errorf("delete session: %w", err)
				}
				fmt.Fprintf(os.Stdout, "Session %s cleared.\n", args[0])
				return nil
			}

			list, err := store.ListSessions(ctx)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			for _, s := range list {
				if err := store.DeleteSession(ctx, s.ID); err != nil {
					return fmt.Errorf("delete session %s: %w", s.ID, err)
				}
			}
			fmt.Printf("All sessions cleared (%d).\n", len(list))
			return nil
		})
	},
}
