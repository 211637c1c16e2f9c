package store

import (
	"slices"
	"strings"
)

// Item is a tracked product. Price is the last observed price in canonical
// decimal form ("17.00"). Trackers maps subscriber ids to true.
type Item struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Price           string          `json:"price"`
	PrimaryBookID   string          `json:"primary_book_id,omitempty"`
	SecondaryBookID string          `json:"secondary_book_id,omitempty"`
	Trackers        map[string]bool `json:"trackers"`
}

// BookID returns the enrichment identifier for the item, preferring the
// primary (ISBN-10) form.
func (i *Item) BookID() string {
	if i == nil {
		return ""
	}
	if id := strings.TrimSpace(i.PrimaryBookID); id != "" {
		return id
	}
	return strings.TrimSpace(i.SecondaryBookID)
}

// HasTracker reports whether subscriberID follows the item.
func (i *Item) HasTracker(subscriberID string) bool {
	return i != nil && i.Trackers[subscriberID]
}

// AddTracker records subscriberID as a follower.
func (i *Item) AddTracker(subscriberID string) {
	if i.Trackers == nil {
		i.Trackers = make(map[string]bool)
	}
	i.Trackers[subscriberID] = true
}

// RemoveTracker drops subscriberID from the followers.
func (i *Item) RemoveTracker(subscriberID string) {
	delete(i.Trackers, subscriberID)
}

// Orphaned reports whether nobody follows the item anymore.
func (i *Item) Orphaned() bool {
	return i == nil || len(i.SubscriberIDs()) == 0
}

// SubscriberIDs returns the follower ids in sorted order.
func (i *Item) SubscriberIDs() []string {
	return sortedKeys(i.Trackers)
}

// Tracker is the subscriber side of the relationship.
type Tracker struct {
	SubscriberID string          `json:"subscriber_id"`
	Tracking     map[string]bool `json:"tracking"`
}

// IsTracking reports whether the tracker follows itemID.
func (t *Tracker) IsTracking(itemID string) bool {
	return t != nil && t.Tracking[itemID]
}

// Track records itemID as followed.
func (t *Tracker) Track(itemID string) {
	if t.Tracking == nil {
		t.Tracking = make(map[string]bool)
	}
	t.Tracking[itemID] = true
}

// Untrack drops itemID.
func (t *Tracker) Untrack(itemID string) {
	delete(t.Tracking, itemID)
}

// Empty reports whether the tracker follows nothing.
func (t *Tracker) Empty() bool {
	return t == nil || len(t.ItemIDs()) == 0
}

// ItemIDs returns the followed item ids in sorted order.
func (t *Tracker) ItemIDs() []string {
	return sortedKeys(t.Tracking)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
