package cli

import (
	"github.com/spf13/cobra"

	"github.com/jkemi/plipsql"
)

func newParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse SQL",
		Short: "Show the rewritten query and the positions of each :name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfig(cmd.Context())
			dialect, err := cfg.ResolveDialect()
			if err != nil {
				return err
			}
			pq := plipsql.New(dialect, plipsql.Config{Logger: newLogger(cfg, cmd)}).Parse(args[0])
			return renderParsed(cmd.OutOrStdout(), pq, cfg.Format)
		},
	}
}
