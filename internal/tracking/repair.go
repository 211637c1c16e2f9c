package tracking

import (
	"context"
	"fmt"
	"slices"

	"pricewatch/internal/logging"
	"pricewatch/internal/services"
	"pricewatch/internal/store"
)

// RepairReport counts the fixes a Repair pass applied.
type RepairReport struct {
	TrackerLinksAdded int      `json:"tracker_links_added"`
	TrackersCreated   int      `json:"trackers_created"`
	DanglingDropped   int      `json:"dangling_dropped"`
	StaleLinksDropped int      `json:"stale_links_dropped"`
	ItemsDeleted      int      `json:"items_deleted"`
	TrackersDeleted   int      `json:"trackers_deleted"`
	DocumentsWritten  int      `json:"documents_written"`
	Unreadable        []string `json:"unreadable,omitempty"`
	Failures          []string `json:"failures,omitempty"`
}

// Changed reports whether the pass modified anything.
func (r RepairReport) Changed() bool {
	return r.DocumentsWritten > 0 || r.ItemsDeleted > 0 || r.TrackersDeleted > 0
}

// Repair makes items and trackers agree:
//   - an item follower missing from the tracker is added to the tracker
//   - a tracker entry for a missing item is dropped
//   - a tracker entry for an item lacking the follower is dropped, since the
//     item side is written first when tracking and last when unfollowing
//   - items without followers and trackers without items are deleted
//
// Documents that cannot be decoded are reported and left alone, as are links
// pointing at them. Each document is written independently; failures are
// collected and the pass continues.
func (m *Manager) Repair(ctx context.Context) (RepairReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var report RepairReport
	logger := logging.WithContext(ctx, m.logger)

	items, badItems, err := m.store.ScanItems(ctx)
	if err != nil {
		return report, fmt.Errorf("list items: %w", err)
	}
	trackers, badTrackers, err := m.store.ScanTrackers(ctx)
	if err != nil {
		return report, fmt.Errorf("list trackers: %w", err)
	}
	unreadableItems := make(map[string]bool, len(badItems))
	for _, doc := range badItems {
		unreadableItems[doc.Key] = true
		report.Unreadable = append(report.Unreadable, store.CollectionItems+"/"+doc.Key)
		logger.Warn("item unreadable; leaving it alone", logging.String(logging.FieldItemID, doc.Key), logging.Error(doc.Err))
	}
	unreadableTrackers := make(map[string]bool, len(badTrackers))
	for _, doc := range badTrackers {
		unreadableTrackers[doc.Key] = true
		report.Unreadable = append(report.Unreadable, store.CollectionTrackers+"/"+doc.Key)
		logger.Warn("tracker unreadable; leaving it alone", logging.String(logging.FieldSubscriberID, doc.Key), logging.Error(doc.Err))
	}

	itemsByID := make(map[string]*store.Item, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}
	trackersByID := make(map[string]*store.Tracker, len(trackers))
	for _, tracker := range trackers {
		trackersByID[tracker.SubscriberID] = tracker
	}
	dirtyTrackers := map[string]bool{}

	for _, tracker := range trackers {
		for _, itemID := range tracker.ItemIDs() {
			if unreadableItems[itemID] {
				continue
			}
			item, ok := itemsByID[itemID]
			if !ok {
				tracker.Untrack(itemID)
				dirtyTrackers[tracker.SubscriberID] = true
				report.DanglingDropped++
				continue
			}
			if !item.HasTracker(tracker.SubscriberID) {
				tracker.Untrack(itemID)
				dirtyTrackers[tracker.SubscriberID] = true
				report.StaleLinksDropped++
			}
		}
	}

	for _, item := range items {
		for _, subscriberID := range item.SubscriberIDs() {
			if unreadableTrackers[subscriberID] {
				continue
			}
			tracker, ok := trackersByID[subscriberID]
			if !ok {
				tracker = &store.Tracker{SubscriberID: subscriberID, Tracking: map[string]bool{}}
				trackersByID[subscriberID] = tracker
				report.TrackersCreated++
			}
			if !tracker.IsTracking(item.ID) {
				tracker.Track(item.ID)
				dirtyTrackers[subscriberID] = true
				report.TrackerLinksAdded++
			}
		}
	}

	for _, item := range items {
		if !item.Orphaned() {
			continue
		}
		if err := m.store.DeleteItem(ctx, item.ID); err != nil {
			report.Failures = append(report.Failures, fmt.Sprintf("delete item %s: %v", item.ID, err))
			continue
		}
		report.ItemsDeleted++
	}

	subscriberIDs := make([]string, 0, len(trackersByID))
	for id := range trackersByID {
		subscriberIDs = append(subscriberIDs, id)
	}
	slices.Sort(subscriberIDs)
	for _, id := range subscriberIDs {
		tracker := trackersByID[id]
		switch {
		case tracker.Empty():
			if err := m.store.DeleteTracker(ctx, id); err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("delete tracker %s: %v", id, err))
				continue
			}
			report.TrackersDeleted++
		case dirtyTrackers[id]:
			if err := m.store.PutTracker(ctx, tracker); err != nil {
				report.Failures = append(report.Failures, fmt.Sprintf("put tracker %s: %v", id, err))
				continue
			}
			report.DocumentsWritten++
		}
	}

	attrs := []logging.Attr{
		logging.Int("items", len(items)),
		logging.Int("trackers", len(trackers)),
		logging.Int("dangling_dropped", report.DanglingDropped),
		logging.Int("tracker_links_added", report.TrackerLinksAdded),
		logging.Int("stale_links_dropped", report.StaleLinksDropped),
		logging.Int("unreadable", len(report.Unreadable)),
		logging.Int("items_deleted", report.ItemsDeleted),
		logging.Int("trackers_deleted", report.TrackersDeleted),
	}
	if len(report.Failures) > 0 {
		logger.Warn("repair finished with failures", append(logging.Args(attrs...), logging.Int("failures", len(report.Failures)))...)
		return report, services.Wrap(services.ErrStoreWrite, "tracking", "repair",
			fmt.Sprintf("%d document writes failed", len(report.Failures)), nil)
	}
	if report.Changed() {
		logger.Info("repair applied fixes", logging.Args(attrs...)...)
	} else {
		logger.Debug("repair found nothing to fix", logging.Args(attrs...)...)
	}
	return report, nil
}
