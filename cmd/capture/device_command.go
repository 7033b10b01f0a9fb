package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeviceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print this installation's device id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := ctx.deviceID(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
