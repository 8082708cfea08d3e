package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mps/internal/credentials"
	"mps/internal/simkl"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in to Simkl with a pin code",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()

			timeout := time.Duration(cfg.Simkl.RequestTimeout) * time.Second
			client := simkl.NewClient(cfg.Simkl.BaseURL, cfg.Simkl.ClientID, "", nil, timeout)

			code, err := client.RequestPin(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Visit %s and enter code: %s\n", code.VerificationURL, code.UserCode)
			fmt.Fprintln(stdout, "Waiting for authorization...")

			token, err := client.WaitForPin(cmd.Context(), code)
			if err != nil {
				return err
			}

			authed := simkl.NewClient(cfg.Simkl.BaseURL, cfg.Simkl.ClientID, token, nil, timeout)
			userID := ""
			if userSettings, serr := authed.GetUserSettings(cmd.Context()); serr == nil {
				userID = userSettings.UserID
			}

			provider := credentials.NewProvider(cfg.Simkl.ClientID, cfg.Paths.DataDir)
			if err := provider.StoreToken(token, userID); err != nil {
				return fmt.Errorf("store credentials: %w", err)
			}

			if userID != "" {
				fmt.Fprintf(stdout, "Signed in (user %s)\n", userID)
			} else {
				fmt.Fprintln(stdout, "Signed in")
			}
			fmt.Fprintln(stdout, "Restart the daemon with `mps restart` to pick up the new credentials.")
			return nil
		},
	}

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			provider := credentials.NewProvider(cfg.Simkl.ClientID, cfg.Paths.DataDir)
			if err := provider.Clear(); err != nil {
				return fmt.Errorf("clear credentials: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed")
			return nil
		},
	}

	authCmd.AddCommand(logoutCmd)
	return authCmd
}
