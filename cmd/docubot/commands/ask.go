package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docubot-be/internal/bootstrap"
	"docubot-be/internal/dto"
)

var (
	askUser        string
	askShowContext bool
)

func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask --user <id> <question>",
		Short: "Ask a question against a user's documents",
		Long: `Retrieve the closest passages from the user's store and answer with the
configured language model.

Examples:
  docubot ask --user alice "How long do refunds take?"
  docubot ask --user alice --context --format json "shipping times"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAsk,
	}

	cmd.Flags().StringVarP(&askUser, "user", "u", "", "User id owning the store")
	cmd.Flags().BoolVar(&askShowContext, "context", false, "Print the retrieved passages")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}

	return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
		res, err := c.ChatService.Ask(cmd.Context(), &dto.AskRequest{
			UserID: askUser,
			Query:  strings.Join(args, " "),
		})
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), res)
		}

		out := cmd.OutOrStdout()
		if askShowContext {
			for i, p := range res.Passages {
				color.New(color.FgCyan).Fprintf(out, "[%d] %.4f %s\n", i+1, p.Distance, p.Source)
				fmt.Fprintf(out, "    %s\n", p.Text)
			}
			if len(res.Passages) == 0 {
				color.New(color.FgYellow).Fprintln(out, "(no passages retrieved)")
			}
			fmt.Fprintln(out)
		}

		if res.Fallback {
			color.New(color.FgRed).Fprintln(out, res.Answer)
			return nil
		}
		fmt.Fprintln(out, res.Answer)
		return nil
	})
}
