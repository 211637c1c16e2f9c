package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pricewatch/internal/api"
	"pricewatch/internal/daemonctl"
	"pricewatch/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "daemon",
		Aliases: []string{"serve"},
		Short:   "Run the daemon in the foreground (scheduled sweeps and webhook API)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: ctx.logLevel()})
		},
	}
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			pid, err := daemonctl.StopProcess(daemonrun.PIDPath(cfg), timeout)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Daemon stopped (pid %d)\n", pid)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for the daemon to exit")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := daemonctl.FromConfig(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			status, err := client.Status(cmd.Context())
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				if jsonOutput {
					return writeJSON(cmd, api.DaemonStatus{Running: false})
				}
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			fmt.Fprint(out, renderStatus(status, shouldColorize(out)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderStatus(status *api.DaemonStatus, colorize bool) string {
	rows := [][]string{
		{"Running", yesNo(status.Running)},
		{"PID", fmt.Sprintf("%d", status.PID)},
		{"Store", status.StoreDriver},
		{"Items", formatCount(status.Items)},
		{"Subscribers", formatCount(status.Trackers)},
		{"Sweep in flight", yesNo(status.SweepInFlight)},
	}
	if status.NextSweepAt != "" {
		rows = append(rows, []string{"Next sweep", status.NextSweepAt})
	}
	if status.StoreError != "" {
		rows = append(rows, []string{"Store error", status.StoreError})
	}
	if last := status.LastSweep; last != nil {
		rows = append(rows,
			[]string{"Last sweep", last.RunID},
			[]string{"Last sweep finished", last.FinishedAt},
			[]string{"Last sweep checked", formatCount(last.Checked)},
			[]string{"Last sweep notified", formatCount(last.Notified)},
			[]string{"Last sweep updated", formatCount(last.Updated)},
		)
		if last.Error != "" {
			rows = append(rows, []string{"Last sweep error", last.Error})
		}
	}
	if repair := status.LastRepair; repair != nil {
		rows = append(rows, []string{"Last repair writes", formatCount(repair.DocumentsWritten)})
		if repair.Error != "" {
			rows = append(rows, []string{"Last repair error", repair.Error})
		}
	}
	return renderTable([]string{"Field", "Value"}, rows, nil, colorize) + "\n"
}
