package testsupport

import (
	"context"
	"testing"

	"pricewatch/internal/config"
	"pricewatch/internal/store"
)

// MustOpenStore opens a SQLite-backed repository for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Repository {
	t.Helper()

	repo, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

// SeedItem stores an item followed by the given subscribers.
func SeedItem(t testing.TB, repo *store.Repository, id, title, price string, subscribers ...string) *store.Item {
	t.Helper()

	item := &store.Item{ID: id, Title: title, Price: price, Trackers: map[string]bool{}}
	for _, sub := range subscribers {
		item.AddTracker(sub)
	}
	if err := repo.PutItem(context.Background(), item); err != nil {
		t.Fatalf("PutItem %s: %v", id, err)
	}
	return item
}

// SeedTracker stores a tracker following the given items.
func SeedTracker(t testing.TB, repo *store.Repository, subscriberID string, itemIDs ...string) *store.Tracker {
	t.Helper()

	tracker := &store.Tracker{SubscriberID: subscriberID, Tracking: map[string]bool{}}
	for _, id := range itemIDs {
		tracker.Track(id)
	}
	if err := repo.PutTracker(context.Background(), tracker); err != nil {
		t.Fatalf("PutTracker %s: %v", subscriberID, err)
	}
	return tracker
}

// MustGetItem loads an item or fails the test.
func MustGetItem(t testing.TB, repo *store.Repository, id string) *store.Item {
	t.Helper()

	item, err := repo.GetItem(context.Background(), id)
	if err != nil {
		t.Fatalf("GetItem %s: %v", id, err)
	}
	return item
}
