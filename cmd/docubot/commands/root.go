package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"docubot-be/internal/bootstrap"
	"docubot-be/internal/config"
)

var (
	configPath   string
	outputFormat string
)

// NewRootCmd builds the docubot command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docubot",
		Short: "Per-user document question answering",
		Long: `docubot indexes a user's PDF, Word and text documents and answers
questions from them with a language model.

Settings come from .env, an optional YAML file and the environment.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("DOCUBOT_CONFIG", configPath)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")

	cmd.AddCommand(
		NewServeCmd(),
		NewIngestCmd(),
		NewAskCmd(),
		NewListenCmd(),
	)
	return cmd
}

func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd().ExecuteContext(ctx)
}

// withContainer loads config, builds the container and closes it after fn.
func withContainer(ctx context.Context, fn func(c *bootstrap.Container) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	container, err := bootstrap.NewContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer container.Close(context.Background())

	return fn(container)
}

func validateFormat() error {
	if outputFormat != "text" && outputFormat != "json" {
		return fmt.Errorf("invalid format %q (want text or json)", outputFormat)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
