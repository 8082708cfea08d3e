package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mps/internal/daemonctl"
	"mps/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scrobbler daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.ResolveDaemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.EnsureStarted(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}

			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintln(stdout, "Monitoring started")
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Monitoring already running")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Message) != "" {
					fmt.Fprintln(stdout, result.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop monitoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.Stop(ctx.socketPath(), 5*time.Second)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if !result.StopAcknowledged {
				fmt.Fprintln(stdout, "Stop request sent")
				return nil
			}
			fmt.Fprintln(stdout, "Monitoring stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart monitoring",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonctl.ResolveDaemonExecutable()
			if err != nil {
				return err
			}

			result, err := daemonctl.Restart(
				ctx.socketPath(),
				exe,
				daemonctl.LaunchOptions{ConfigPath: ctx.configPath()},
				5*time.Second,
				10*time.Second,
			)
			if err != nil {
				return err
			}

			if result.WasRunning {
				fmt.Fprintln(stdout, "Monitoring stopped")
			}

			switch result.Start.State {
			case daemonctl.StartStateStarted, daemonctl.StartStateAlreadyRunning:
				fmt.Fprintln(stdout, "Monitoring restarted")
			case daemonctl.StartStateRequested:
				if strings.TrimSpace(result.Start.Message) != "" {
					fmt.Fprintln(stdout, result.Start.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Start request sent")
			}
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show scrobbler and backlog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(ctx.socketPath(), cfg)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Scrobbler Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range buildStatusLines(statusResp) {
				fmt.Fprintln(stdout, renderStatusLine(line.label, line.kind, line.detail, colorize))
			}

			if len(statusResp.Sessions) > 0 {
				fmt.Fprintln(stdout)
				for _, line := range renderSectionHeader("Active Sessions", colorize) {
					fmt.Fprintln(stdout, line)
				}
				fmt.Fprint(stdout, renderTable(
					[]string{"Title", "Watched", "Duration", "Progress", "State"},
					buildSessionRows(statusResp.Sessions),
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft},
				))
				fmt.Fprintln(stdout)
			}
			return nil
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

type statusLine struct {
	label  string
	kind   statusKind
	detail string
}

func buildStatusLines(resp *ipc.StatusResponse) []statusLine {
	lines := make([]statusLine, 0, 6)

	switch {
	case resp.EngineState == "error":
		lines = append(lines, statusLine{"Monitoring", statusError, resp.Detail})
	case resp.Running:
		lines = append(lines, statusLine{"Monitoring", statusOK, "Running"})
	default:
		lines = append(lines, statusLine{"Monitoring", statusWarn, "Not running (run `mps start`)"})
	}

	lines = append(lines, statusLine{"Threshold", statusInfo, fmt.Sprintf("%d%%", resp.Threshold)})

	if resp.LastScrobbled != "" {
		detail := resp.LastScrobbled
		if !resp.LastScrobbledAt.IsZero() {
			detail = fmt.Sprintf("%s (%s)", detail, resp.LastScrobbledAt.Local().Format("2006-01-02 15:04"))
		}
		lines = append(lines, statusLine{"Last Scrobble", statusOK, detail})
	} else {
		lines = append(lines, statusLine{"Last Scrobble", statusInfo, "None yet"})
	}

	switch {
	case resp.BacklogPending > 0:
		lines = append(lines, statusLine{"Backlog", statusWarn, fmt.Sprintf("%d pending", resp.BacklogPending)})
	default:
		lines = append(lines, statusLine{"Backlog", statusOK, "Empty"})
	}
	if resp.BacklogDead > 0 {
		lines = append(lines, statusLine{"Dead Letters", statusError, fmt.Sprintf("%d (run `mps backlog clear-dead` to discard)", resp.BacklogDead)})
	}

	return lines
}

func buildSessionRows(sessions []ipc.SessionInfo) [][]string {
	rows := make([][]string, 0, len(sessions))
	for _, session := range sessions {
		progress := "unknown"
		if session.TotalSeconds > 0 {
			progress = fmt.Sprintf("%.0f%%", 100*session.WatchedSeconds/session.TotalSeconds)
		}
		rows = append(rows, []string{
			session.Title,
			formatSeconds(session.WatchedSeconds),
			formatSeconds(session.TotalSeconds),
			progress,
			session.State,
		})
	}
	return rows
}

func formatSeconds(value float64) string {
	if value <= 0 {
		return "-"
	}
	d := time.Duration(value) * time.Second
	return d.Truncate(time.Second).String()
}
