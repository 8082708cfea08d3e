package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mps/internal/ipc"
	"mps/internal/settings"
)

func newThresholdCommand(ctx *commandContext) *cobra.Command {
	thresholdCmd := &cobra.Command{
		Use:   "threshold",
		Short: "View or change the watch-completion threshold",
	}

	getCmd := &cobra.Command{
		Use:   "get",
		Short: "Show the active threshold",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := ctx.withClient(func(client *ipc.Client) error {
				resp, cerr := client.ThresholdGet()
				if cerr != nil {
					return cerr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Threshold: %d%%\n", resp.Threshold)
				return nil
			})
			if err == nil {
				return nil
			}
			// Daemon offline: read the settings file directly.
			cfg := ctx.configValue()
			if cfg == nil {
				return err
			}
			store, serr := settings.Open(cfg.SettingsPath())
			if serr != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Threshold: %d%% (daemon not running)\n", store.Threshold())
			return nil
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <percent>",
		Short: "Set the threshold (1-100)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid threshold %q: expected a whole number", args[0])
			}
			if value < 1 || value > 100 {
				return settings.ErrInvalidThreshold
			}

			cerr := ctx.withClient(func(client *ipc.Client) error {
				_, callErr := client.ThresholdSet(value)
				return callErr
			})
			if cerr == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Threshold set to %d%%\n", value)
				return nil
			}

			// Daemon offline: persist directly; the daemon picks the change
			// up from the settings file on next start or via the watcher.
			cfg := ctx.configValue()
			if cfg == nil {
				return cerr
			}
			store, serr := settings.Open(cfg.SettingsPath())
			if serr != nil {
				return cerr
			}
			if serr := store.SetThreshold(value); serr != nil {
				return serr
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Threshold set to %d%% (daemon not running)\n", value)
			return nil
		},
	}

	answerCmd := &cobra.Command{
		Use:   "answer <percent>",
		Short: "Answer a pending threshold prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid threshold %q: expected a whole number", args[0])
			}
			return ctx.withClient(func(client *ipc.Client) error {
				if _, cerr := client.ThresholdAnswer(value); cerr != nil {
					return cerr
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Answered prompt with %d%%\n", value)
				return nil
			})
		},
	}

	thresholdCmd.AddCommand(getCmd)
	thresholdCmd.AddCommand(setCmd)
	thresholdCmd.AddCommand(answerCmd)
	return thresholdCmd
}
