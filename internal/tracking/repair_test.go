package tracking_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"pricewatch/internal/services"
	"pricewatch/internal/store"
	"pricewatch/internal/testsupport"
)

func TestRepairConvergesOneSidedRelationships(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Item lists alice, alice has no tracker at all.
	testsupport.SeedItem(t, h.repo, "B00ITEMONL", "Item only", "10.00", "alice")
	// bob tracks a deleted item and an item that does not list him.
	testsupport.SeedItem(t, h.repo, "B00LACKING", "Lacking", "10.00", "carol")
	testsupport.SeedTracker(t, h.repo, "carol", "B00LACKING")
	testsupport.SeedTracker(t, h.repo, "bob", "B00DELETED", "B00LACKING")
	// Orphans on both sides.
	testsupport.SeedItem(t, h.repo, "B00ORPHAN1", "Orphan", "10.00")
	testsupport.SeedTracker(t, h.repo, "dave")

	report, err := h.manager.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if report.TrackersCreated != 1 || report.TrackerLinksAdded != 1 || report.DanglingDropped != 1 ||
		report.StaleLinksDropped != 1 || report.ItemsDeleted != 1 || report.TrackersDeleted != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}

	alice, err := h.repo.GetTracker(ctx, "alice")
	if err != nil || !alice.IsTracking("B00ITEMONL") {
		t.Fatalf("alice tracker not created: %+v %v", alice, err)
	}
	// Both of bob's entries were one-sided, so his tracker goes away.
	if _, err := h.repo.GetTracker(ctx, "bob"); !store.IsNotFound(err) {
		t.Fatalf("bob's tracker should be deleted, got %v", err)
	}
	lacking := testsupport.MustGetItem(t, h.repo, "B00LACKING")
	if !slices.Equal(lacking.SubscriberIDs(), []string{"carol"}) {
		t.Fatalf("unexpected followers: %v", lacking.SubscriberIDs())
	}
	if _, err := h.repo.GetItem(ctx, "B00ORPHAN1"); !store.IsNotFound(err) {
		t.Fatalf("orphan item should be deleted, got %v", err)
	}
	if _, err := h.repo.GetTracker(ctx, "dave"); !store.IsNotFound(err) {
		t.Fatalf("empty tracker should be deleted, got %v", err)
	}

	second, err := h.manager.Repair(ctx)
	if err != nil {
		t.Fatalf("second Repair: %v", err)
	}
	if second.Changed() {
		t.Fatalf("second pass should be a no-op, got %+v", second)
	}
}

func TestRepairReportsWriteFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testsupport.SeedItem(t, h.repo, "B00ITEMONL", "Item only", "10.00", "alice")
	h.store.failTrackerPut = true

	report, err := h.manager.Repair(ctx)
	if err == nil {
		t.Fatal("expected error when writes fail")
	}
	if len(report.Failures) != 1 {
		t.Fatalf("unexpected failures: %v", report.Failures)
	}
}

func TestRepairAfterFailedTrackerDeleteKeepsUnfollow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testsupport.SeedItem(t, h.repo, "B00SHARED1", "Shared", "10.00", "alice", "bob")
	testsupport.SeedTracker(t, h.repo, "alice", "B00SHARED1")
	testsupport.SeedTracker(t, h.repo, "bob", "B00SHARED1")

	h.store.failTrackerDelete = true
	_, err := h.manager.RemoveSubscriber(ctx, "alice")
	if !errors.Is(err, services.ErrStoreWrite) {
		t.Fatalf("expected ErrStoreWrite, got %v", err)
	}
	h.store.failTrackerDelete = false

	report, err := h.manager.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if report.StaleLinksDropped != 1 || report.TrackersDeleted != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	item := testsupport.MustGetItem(t, h.repo, "B00SHARED1")
	if !slices.Equal(item.SubscriberIDs(), []string{"bob"}) {
		t.Fatalf("alice must stay unsubscribed, got %v", item.SubscriberIDs())
	}
	if _, err := h.repo.GetTracker(ctx, "alice"); !store.IsNotFound(err) {
		t.Fatalf("alice's tracker should be gone, got %v", err)
	}
}

func TestRepairWaitsForInFlightUnfollow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testsupport.SeedItem(t, h.repo, "B00SHARED1", "Shared", "10.00", "alice", "bob")
	testsupport.SeedTracker(t, h.repo, "alice", "B00SHARED1")
	testsupport.SeedTracker(t, h.repo, "bob", "B00SHARED1")

	entered := make(chan struct{})
	resume := make(chan struct{})
	var once sync.Once
	h.store.beforeTrackerDelete = func() {
		once.Do(func() {
			close(entered)
			<-resume
		})
	}

	unfollowDone := make(chan error, 1)
	go func() {
		_, err := h.manager.RemoveSubscriber(ctx, "alice")
		unfollowDone <- err
	}()
	<-entered

	repairDone := make(chan error, 1)
	go func() {
		_, err := h.manager.Repair(ctx)
		repairDone <- err
	}()
	select {
	case <-repairDone:
		t.Fatal("repair ran while an unfollow was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(resume)
	if err := <-unfollowDone; err != nil {
		t.Fatalf("RemoveSubscriber: %v", err)
	}
	if err := <-repairDone; err != nil {
		t.Fatalf("Repair: %v", err)
	}

	item := testsupport.MustGetItem(t, h.repo, "B00SHARED1")
	if !slices.Equal(item.SubscriberIDs(), []string{"bob"}) {
		t.Fatalf("unexpected followers: %v", item.SubscriberIDs())
	}
	if _, err := h.repo.GetTracker(ctx, "alice"); !store.IsNotFound(err) {
		t.Fatalf("alice's tracker should be gone, got %v", err)
	}
}

func TestRepairLeavesUnreadableDocumentsAlone(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	testsupport.SeedTracker(t, h.repo, "alice", "B00BAD0001")
	if err := h.repo.Documents().Set(ctx, store.CollectionItems, "B00BAD0001", []byte(`{"price": 12}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	report, err := h.manager.Repair(ctx)
	if err != nil {
		t.Fatalf("Repair: %v", err)
	}
	if len(report.Unreadable) != 1 || report.DanglingDropped != 0 || report.Changed() {
		t.Fatalf("unexpected report: %+v", report)
	}
	alice, err := h.repo.GetTracker(ctx, "alice")
	if err != nil || !alice.IsTracking("B00BAD0001") {
		t.Fatalf("link to unreadable item should be kept: %+v %v", alice, err)
	}
}
