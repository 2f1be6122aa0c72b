package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"docubot-be/internal/bootstrap"
	"docubot-be/internal/dto"
)

var ingestUser string

func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest --user <id> <file>...",
		Short: "Index documents into a user's store",
		Long: `Extract, embed and index one or more .pdf, .docx or .txt files.

Examples:
  docubot ingest --user alice handbook.pdf faq.txt`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	cmd.Flags().StringVarP(&ingestUser, "user", "u", "", "User id owning the store")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	if err := validateFormat(); err != nil {
		return err
	}

	return withContainer(cmd.Context(), func(c *bootstrap.Container) error {
		results := make([]*dto.IndexDocumentResponse, 0, len(args))
		for _, path := range args {
			res, err := indexFile(cmd, c, path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results = append(results, res)

			if outputFormat == "text" {
				color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "✓ %s", res.Filename)
				fmt.Fprintf(cmd.OutOrStdout(), "  +%d passages (total %d, dim %d)\n", res.Passages, res.Total, res.Dimension)
			}
		}

		if outputFormat == "json" {
			return writeJSON(cmd.OutOrStdout(), results)
		}
		return nil
	})
}

func indexFile(cmd *cobra.Command, c *bootstrap.Container, path string) (*dto.IndexDocumentResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return c.DocumentService.Index(cmd.Context(), ingestUser, path, f)
}
