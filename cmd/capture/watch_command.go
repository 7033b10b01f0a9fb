package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"thirdcoast.systems/haul/internal/offline"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Flush whenever the server becomes reachable (SIGUSR1 forces a flush)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return ctx.withQueue(runCtx, func(q *offline.Queue) error {
				w := offline.NewWatcher(q, ctx.submitter(), interval)

				foreground := make(chan os.Signal, 1)
				signal.Notify(foreground, syscall.SIGUSR1)
				defer signal.Stop(foreground)
				go forwardForeground(runCtx, foreground, w)

				fmt.Fprintf(cmd.OutOrStdout(), "Watching %s every %s\n", ctx.server(), interval)
				return w.Run(runCtx)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "Reachability probe interval")
	return cmd
}

func forwardForeground(ctx context.Context, sig <-chan os.Signal, w *offline.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			w.Foreground()
		}
	}
}
