package api

import (
	"time"

	"pricewatch/internal/pricing"
	"pricewatch/internal/store"
	"pricewatch/internal/tracking"
)

// FromItem converts a stored item to its API representation.
func FromItem(item *store.Item) Item {
	if item == nil {
		return Item{}
	}
	subs := item.SubscriberIDs()
	if subs == nil {
		subs = []string{}
	}
	return Item{
		ID:              item.ID,
		Title:           item.Title,
		Price:           item.Price,
		PrimaryBookID:   item.PrimaryBookID,
		SecondaryBookID: item.SecondaryBookID,
		Subscribers:     subs,
	}
}

// FromItems converts a listing, preserving order.
func FromItems(items []*store.Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, FromItem(item))
	}
	return out
}

// FromTracker converts a stored tracker to its API representation.
func FromTracker(tracker *store.Tracker) Tracker {
	if tracker == nil {
		return Tracker{}
	}
	ids := tracker.ItemIDs()
	if ids == nil {
		ids = []string{}
	}
	return Tracker{SubscriberID: tracker.SubscriberID, Items: ids}
}

// FromTrackers converts a listing, preserving order.
func FromTrackers(trackers []*store.Tracker) []Tracker {
	out := make([]Tracker, 0, len(trackers))
	for _, tracker := range trackers {
		if tracker == nil {
			continue
		}
		out = append(out, FromTracker(tracker))
	}
	return out
}

// FromReport drops the per-item results and keeps the counters.
func FromReport(report pricing.Report) SweepSummary {
	return SweepSummary{
		RunID:        report.RunID,
		StartedAt:    FormatTime(report.StartedAt),
		FinishedAt:   FormatTime(report.FinishedAt),
		DurationMS:   report.Duration().Milliseconds(),
		Items:        report.Items,
		Checked:      report.Checked,
		Skipped:      report.Skipped,
		Mismatched:   report.Mismatched,
		Notified:     report.Notified,
		Duplicates:   report.Duplicates,
		NotifyFailed: report.NotifyFailed,
		Updated:      report.Updated,
		WriteFailed:  report.WriteFailed,
	}
}

// FromRepairReport converts a repair report.
func FromRepairReport(report tracking.RepairReport) RepairSummary {
	return RepairSummary{
		TrackerLinksAdded: report.TrackerLinksAdded,
		TrackersCreated:   report.TrackersCreated,
		DanglingDropped:   report.DanglingDropped,
		StaleLinksDropped: report.StaleLinksDropped,
		ItemsDeleted:      report.ItemsDeleted,
		TrackersDeleted:   report.TrackersDeleted,
		DocumentsWritten:  report.DocumentsWritten,
		Unreadable:        report.Unreadable,
		Failures:          report.Failures,
	}
}

// FromRemoveResult converts an unfollow result. Slices are never null.
func FromRemoveResult(result tracking.RemoveResult) UnfollowResponse {
	resp := UnfollowResponse{
		SubscriberID: result.SubscriberID,
		Found:        result.Found,
		Released:     append([]string{}, result.Released...),
		Deleted:      append([]string{}, result.Deleted...),
	}
	for _, failure := range result.Failed {
		resp.Failed = append(resp.Failed, ItemFailure{ItemID: failure.ItemID, Error: failure.Error})
	}
	return resp
}

// FormatTime renders t in the API timestamp format; the zero time is empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
