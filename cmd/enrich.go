package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <lead-id>...",
	Short: "Enrich up to 50 stored leads and print the batch summary",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnricher(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		summary, err := env.Runner.EnrichBatch(ctx, args)
		if err != nil {
			return eris.Wrap(err, "enrich batch")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)
}
