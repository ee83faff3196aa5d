package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReplayCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Insert records from fallback files into the document store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.toolLogger()
			if err != nil {
				return err
			}
			feedback := openFeedback(cmd.Context(), cfg, log)
			defer feedback.Close()

			n, err := feedback.service.ReplayFallback(cmd.Context())
			if err != nil {
				return fmt.Errorf("replay after %d record(s): %w", n, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Replayed %d record(s) from %s\n", n, cfg.Store.FallbackDir)
			return nil
		},
	}
}
