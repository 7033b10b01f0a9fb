package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var serverFlag string
	var dataDirFlag string

	ctx := newCommandContext(&serverFlag, &dataDirFlag)

	rootCmd := &cobra.Command{
		Use:           "capture",
		Short:         "Queue video links for product extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Server base URL (env "+serverEnv+")")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Directory for the device id and offline queue (env "+dataDirEnv+")")

	rootCmd.AddCommand(newAddCommand(ctx))
	rootCmd.AddCommand(newFlushCommand(ctx))
	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newClearCommand(ctx))
	rootCmd.AddCommand(newDropCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newDeviceCommand(ctx))

	return rootCmd
}
