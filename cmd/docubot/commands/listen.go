package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docubot-be/internal/bootstrap"
)

var (
	listenUser string
	listenFor  time.Duration
)

func NewListenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listen --user <id>",
		Short: "Run a capture loop for a user",
		Long: `Start listening for the user, wait for --for or Ctrl-C, then stop.

Capture ticks are written to the capture log.

Examples:
  docubot listen --user alice --for 5s`,
		Args: cobra.NoArgs,
		RunE: runListen,
	}

	cmd.Flags().StringVarP(&listenUser, "user", "u", "", "User id to listen for")
	cmd.Flags().DurationVar(&listenFor, "for", 0, "Stop after this long (0 waits for interrupt)")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runListen(cmd *cobra.Command, args []string) error {
	if listenFor < 0 {
		return fmt.Errorf("--for must not be negative")
	}

	ctx := cmd.Context()
	return withContainer(ctx, func(c *bootstrap.Container) error {
		if err := c.Start(ctx); err != nil {
			return err
		}

		res, err := c.ConversationService.Start(ctx, listenUser)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "● %s %s\n", res.UserID, res.State)

		wait := ctx
		if listenFor > 0 {
			var cancel context.CancelFunc
			wait, cancel = context.WithTimeout(ctx, listenFor)
			defer cancel()
		}
		<-wait.Done()

		stopCtx, cancel := context.WithTimeout(context.Background(), c.Config.Listening.StopTimeout)
		defer cancel()
		res, err = c.ConversationService.End(stopCtx, listenUser)
		if err != nil {
			return err
		}
		color.New(color.FgYellow).Fprintf(cmd.OutOrStdout(), "○ %s %s\n", res.UserID, res.State)
		return nil
	})
}
