package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/gophersearch/internal/runtime"
	"github.com/user/gophersearch/internal/types"
)

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().String("session", "", "conversation id to continue")
	askCmd.Flags().BoolP("quiet", "q", false, "hide progress messages")
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask one question and stream the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		sessionID, _ := cmd.Flags().GetString("session")
		quiet, _ := cmd.Flags().GetBool("quiet")

		a, err := buildApp(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		errOut := cmd.ErrOrStderr()
		emit := runtime.EmitterFunc(func(_ context.Context, ev runtime.Event) error {
			switch ev.Type {
			case runtime.EventNewSession:
				fmt.Fprintf(errOut, "session %s\n", ev.SessionID)
			case runtime.EventThink:
				if !quiet {
					fmt.Fprintf(errOut, "» %s\n", ev.Text)
				}
			case runtime.EventChunk:
				fmt.Fprint(out, ev.Text)
			case runtime.EventStreamEnd:
				fmt.Fprintln(out)
			case runtime.EventError:
				fmt.Fprintln(errOut, ev.Text)
			}
			return nil
		})

		sess, err := a.orch.Open(ctx, types.SessionID(sessionID), emit)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}
		defer sess.Close()

		_, err = sess.HandleTurn(ctx, strings.Join(args, " "))
		var te *runtime.TurnError
		if errors.As(err, &te) {
			return errors.New("turn failed")
		}
		return err
	},
}
