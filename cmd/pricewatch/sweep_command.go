package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pricewatch/internal/config"
	"pricewatch/internal/daemonctl"
	"pricewatch/internal/daemonrun"
	"pricewatch/internal/pricing"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	var viaDaemon bool
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-price every tracked item and announce drops",
		Long: "Runs a sweep in this process, holding the sweep lock so it never overlaps a " +
			"daemon sweep. With --via-daemon the running daemon performs the sweep instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if viaDaemon {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				client, err := daemonctl.FromConfig(cfg)
				if err != nil {
					return err
				}
				runID, err := client.TriggerSweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Sweep %s started by daemon\n", runID)
				return nil
			}

			return ctx.withComponents(cmd.Context(), true, func(cfg *config.Config, c *daemonrun.Components) error {
				release, err := pricing.AcquireSweepLock(cfg.SweepLockPath())
				if err != nil {
					return err
				}
				defer release()

				report, err := c.Engine.RunSweep(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, report)
				}
				fmt.Fprint(out, renderSweepReport(report, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&viaDaemon, "via-daemon", false, "Ask the running daemon to sweep")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderSweepReport(report pricing.Report, colorize bool) string {
	var b strings.Builder
	if len(report.Results) > 0 {
		rows := make([][]string, 0, len(report.Results))
		for _, result := range report.Results {
			detail := string(result.Notification)
			if result.Error != "" {
				detail = result.Error
			}
			rows = append(rows, []string{
				result.ItemID,
				truncateText(result.Title, 40),
				result.StoredPrice,
				result.FetchedPrice,
				string(result.Outcome),
				truncateText(detail, 60),
			})
		}
		b.WriteString(renderTable(
			[]string{"Item", "Title", "Stored", "Fetched", "Outcome", "Detail"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
			colorize,
		))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Sweep %s: %s items, %s checked, %s skipped, %s mismatched, %s updated, %s notified",
		report.RunID,
		formatCount(report.Items),
		formatCount(report.Checked),
		formatCount(report.Skipped),
		formatCount(report.Mismatched),
		formatCount(report.Updated),
		formatCount(report.Notified),
	)
	if report.Duplicates > 0 {
		fmt.Fprintf(&b, ", %s duplicate", formatCount(report.Duplicates))
	}
	if report.NotifyFailed > 0 {
		fmt.Fprintf(&b, ", %s notify failed", formatCount(report.NotifyFailed))
	}
	if report.WriteFailed > 0 {
		fmt.Fprintf(&b, ", %s write failed", formatCount(report.WriteFailed))
	}
	fmt.Fprintf(&b, " in %s\n", report.Duration().Round(time.Millisecond))
	return b.String()
}
