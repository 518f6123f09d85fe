package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tixlyctl",
		Short:         "Inspect and submit Tixly sales reports",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newParseCommand())
	rootCmd.AddCommand(newHashCommand())
	rootCmd.AddCommand(newScoreCommand())
	rootCmd.AddCommand(newSubmitCommand())

	return rootCmd
}
