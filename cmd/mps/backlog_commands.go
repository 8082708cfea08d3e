package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mps/internal/ipc"
)

func newBacklogCommand(ctx *commandContext) *cobra.Command {
	backlogCmd := &cobra.Command{
		Use:   "backlog",
		Short: "Inspect and replay queued scrobbles",
	}

	var listStatuses []string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List queued scrobbles",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BacklogList(listStatuses)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Entries) == 0 {
					fmt.Fprintln(stdout, "Backlog is empty")
					return nil
				}
				rows := make([][]string, 0, len(resp.Entries))
				for _, entry := range resp.Entries {
					rows = append(rows, []string{
						fmt.Sprintf("%d", entry.ID),
						entry.Title,
						entry.Status,
						fmt.Sprintf("%d", entry.AttemptCount),
						entry.LastErrorKind,
						entry.FirstFailedAt,
					})
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"ID", "Title", "Status", "Attempts", "Last Error", "First Failed"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				fmt.Fprintln(stdout)
				return nil
			})
		},
	}
	listCmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (pending, dead)")

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Replay queued scrobbles now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BacklogProcess()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Attempted == 0 {
					fmt.Fprintln(stdout, "Backlog is empty")
					return nil
				}
				fmt.Fprintf(stdout, "Delivered %d of %d queued scrobbles\n", resp.Processed, resp.Attempted)
				if resp.Dead > 0 {
					fmt.Fprintf(stdout, "%d entries exhausted their retries and were moved to the dead-letter state\n", resp.Dead)
				}
				if resp.Failed && resp.Processed < resp.Attempted {
					fmt.Fprintln(stdout, "Some entries could not be delivered; they remain queued")
				}
				return nil
			})
		},
	}

	clearDeadCmd := &cobra.Command{
		Use:   "clear-dead",
		Short: "Discard dead-letter entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.BacklogClearDead()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d dead entries\n", resp.Removed)
				return nil
			})
		},
	}

	backlogCmd.AddCommand(listCmd)
	backlogCmd.AddCommand(processCmd)
	backlogCmd.AddCommand(clearDeadCmd)
	return backlogCmd
}
