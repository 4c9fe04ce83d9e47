package cmd

import (
	"fmt"

	"github.com/agentic-research/fieldmap/internal/ingest"
	"github.com/spf13/cobra"
)

func newMappingCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mapping [db]",
		Short: "Print the latest mapping persisted by 'index --db'",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, version, err := ingest.LoadLatestMapping(args[0])
			if err != nil {
				return err
			}
			root.logger.Debug("loaded mapping", "db", args[0], "version", version)
			fmt.Fprintf(cmd.OutOrStdout(), "# version %d\n", version)
			return writeMapping(cmd.OutOrStdout(), def)
		},
	}
}
