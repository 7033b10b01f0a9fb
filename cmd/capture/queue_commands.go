package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"thirdcoast.systems/haul/internal/offline"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var noFlush bool
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Queue a link and try to deliver it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deviceID, err := ctx.deviceID(cmd.Context())
			if err != nil {
				return err
			}
			return ctx.withQueue(cmd.Context(), func(q *offline.Queue) error {
				entry, err := q.Enqueue(cmd.Context(), args[0], deviceID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued #%d %s\n", entry.ID, entry.URL)
				if noFlush {
					return nil
				}

				res, err := q.Flush(cmd.Context())
				if err != nil {
					// the entry stays queued for the next flush
					fmt.Fprintln(cmd.OutOrStdout(), describeFlushError(err))
					return nil
				}
				printFlush(cmd, res)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&noFlush, "no-flush", false, "Only queue locally")
	return cmd
}

func newFlushCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Submit every queued link to the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *offline.Queue) error {
				res, err := q.Flush(cmd.Context())
				if err != nil {
					fmt.Fprintln(cmd.OutOrStdout(), describeFlushError(err))
					return fmt.Errorf("flush: %w (queue kept)", err)
				}
				printFlush(cmd, res)
				return nil
			})
		},
	}
}

func printFlush(cmd *cobra.Command, res offline.FlushResult) {
	out := cmd.OutOrStdout()
	switch {
	case res.Skipped:
		fmt.Fprintln(out, "Flush already running")
	case res.Submitted == 0:
		fmt.Fprintln(out, "Nothing to flush")
	default:
		fmt.Fprintf(out, "Submitted %d (%d already known)\n", res.Submitted, res.Duplicates)
	}
}

// describeFlushError names the entry a failed flush stopped at. An entry the
// server rejects blocks every later flush, so the message says how to drop it.
func describeFlushError(err error) string {
	var entryErr *offline.EntryError
	if !errors.As(err, &entryErr) {
		return fmt.Sprintf("Server unavailable, kept offline: %v", err)
	}
	e := entryErr.Entry
	if entryErr.Rejected() {
		return fmt.Sprintf("Entry #%d %s was rejected: %v\nIt blocks the queue; remove it with: capture drop %d",
			e.ID, e.URL, entryErr.Err, e.ID)
	}
	return fmt.Sprintf("Server unavailable at entry #%d, kept offline: %v", e.ID, entryErr.Err)
}

func newDropCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <id>",
		Short: "Remove one queued link without submitting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return ctx.withQueue(cmd.Context(), func(q *offline.Queue) error {
				dropped, err := q.Drop(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !dropped {
					return fmt.Errorf("no queued entry #%d", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dropped #%d\n", id)
				return nil
			})
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show links waiting to be delivered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *offline.Queue) error {
				entries, err := q.PeekAll(cmd.Context())
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, e := range entries {
					rows = append(rows, []string{
						strconv.FormatInt(e.ID, 10),
						e.URL,
						humanize.Time(e.EnqueuedAt),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "URL", "Queued"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued link without submitting it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQueue(cmd.Context(), func(q *offline.Queue) error {
				entries, err := q.PeekAll(cmd.Context())
				if err != nil {
					return err
				}
				if err := q.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s entries\n", humanize.Comma(int64(len(entries))))
				return nil
			})
		},
	}
}
