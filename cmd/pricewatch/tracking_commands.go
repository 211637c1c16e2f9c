package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pricewatch/internal/api"
	"pricewatch/internal/config"
	"pricewatch/internal/daemonrun"
	"pricewatch/internal/tracking"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "track <item-id|product-url> <subscriber>",
		Short: "Subscribe a user to an item's price",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), true, func(_ *config.Config, c *daemonrun.Components) error {
				if err := c.Manager.TrackItem(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				itemID, err := tracking.ParseItemID(args[0])
				if err != nil {
					itemID = args[0]
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Now tracking %s for %s\n", itemID, strings.TrimSpace(args[1]))
				return nil
			})
		},
	}
}

func newUnfollowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "unfollow <subscriber>",
		Short: "Remove a subscriber from every item it follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), false, func(_ *config.Config, c *daemonrun.Components) error {
				result, err := c.Manager.RemoveSubscriber(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.FromRemoveResult(result))
				}
				out := cmd.OutOrStdout()
				if !result.Found {
					fmt.Fprintf(out, "%s is not tracking anything\n", result.SubscriberID)
					return nil
				}
				fmt.Fprintf(out, "Removed %s: %s released, %s deleted\n",
					result.SubscriberID,
					formatCount(len(result.Released)),
					formatCount(len(result.Deleted)),
				)
				for _, failure := range result.Failed {
					fmt.Fprintf(out, "  failed %s: %s\n", failure.ItemID, failure.Error)
				}
				if len(result.Failed) > 0 {
					return fmt.Errorf("%d item(s) could not be released; run unfollow again", len(result.Failed))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newRepairCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Reconcile items and trackers that disagree",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), false, func(_ *config.Config, c *daemonrun.Components) error {
				report, repairErr := c.Manager.Repair(cmd.Context())
				summary := api.FromRepairReport(report)
				if repairErr != nil {
					summary.Error = repairErr.Error()
				}
				if jsonOutput {
					if err := writeJSON(cmd, summary); err != nil {
						return err
					}
					return repairErr
				}
				out := cmd.OutOrStdout()
				if !report.Changed() && repairErr == nil && len(report.Unreadable) == 0 {
					fmt.Fprintln(out, "Items and trackers already agree")
					return nil
				}
				rows := [][]string{
					{"Tracker links added", formatCount(report.TrackerLinksAdded)},
					{"Trackers created", formatCount(report.TrackersCreated)},
					{"Dangling entries dropped", formatCount(report.DanglingDropped)},
					{"Stale entries dropped", formatCount(report.StaleLinksDropped)},
					{"Items deleted", formatCount(report.ItemsDeleted)},
					{"Trackers deleted", formatCount(report.TrackersDeleted)},
					{"Documents written", formatCount(report.DocumentsWritten)},
				}
				fmt.Fprintln(out, renderTable([]string{"Fix", "Count"}, rows,
					[]columnAlignment{alignLeft, alignRight}, shouldColorize(out)))
				for _, doc := range report.Unreadable {
					fmt.Fprintf(out, "  unreadable: %s\n", doc)
				}
				for _, failure := range report.Failures {
					fmt.Fprintf(out, "  failed: %s\n", failure)
				}
				return repairErr
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newItemsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List tracked items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), false, func(_ *config.Config, c *daemonrun.Components) error {
				items, err := c.Manager.ListItems(cmd.Context())
				if err != nil {
					return err
				}
				views := api.FromItems(items)
				if jsonOutput {
					return writeJSON(cmd, api.ItemListResponse{Items: views})
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No items tracked")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, item := range views {
					rows = append(rows, []string{
						item.ID,
						truncateText(item.Title, 50),
						item.Price,
						formatCount(len(item.Subscribers)),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Item", "Title", "Price", "Followers"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight}, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newTrackersCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "trackers",
		Short: "List subscribers and the items they follow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withComponents(cmd.Context(), false, func(_ *config.Config, c *daemonrun.Components) error {
				trackers, err := c.Manager.ListTrackers(cmd.Context())
				if err != nil {
					return err
				}
				views := api.FromTrackers(trackers)
				if jsonOutput {
					return writeJSON(cmd, api.TrackerListResponse{Trackers: views})
				}
				out := cmd.OutOrStdout()
				if len(views) == 0 {
					fmt.Fprintln(out, "No subscribers")
					return nil
				}
				rows := make([][]string, 0, len(views))
				for _, tracker := range views {
					rows = append(rows, []string{
						tracker.SubscriberID,
						formatCount(len(tracker.Items)),
						truncateText(strings.Join(tracker.Items, ", "), 70),
					})
				}
				fmt.Fprintln(out, renderTable([]string{"Subscriber", "Items", "Following"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft}, shouldColorize(out)))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
