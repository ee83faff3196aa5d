package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicecapture/internal/config"
)

func newInitConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "init-config [path]",
		Short:       "Write a sample configuration file",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "config.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", path)
			fmt.Fprintln(cmd.OutOrStdout(), "Set llm.api_key (or OPENAI_API_KEY) before running serve.")
			return nil
		},
	}
}
