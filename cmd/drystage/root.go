package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var logFormatFlag string

	ctx := newCommandContext(&configFlag, &logLevelFlag, &logFormatFlag)

	rootCmd := &cobra.Command{
		Use:           "drystage",
		Short:         "Run and inspect the fibonacci export pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "Log format (text, json)")

	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newStagesCommand())
	rootCmd.AddCommand(newConfigsCommand(ctx))

	return rootCmd
}
