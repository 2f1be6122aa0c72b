package commands

import (
	"github.com/spf13/cobra"

	"docubot-be/internal/config"
	"docubot-be/internal/server"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context(), cfg)
		},
	}
}
