package store_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"pricewatch/internal/config"
	"pricewatch/internal/store"
	"pricewatch/internal/testsupport"
)

func TestSQLiteDocumentsRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	docs, err := store.OpenSQLite(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })
	exerciseDocuments(t, docs)
}

func TestPostgresDocumentsRoundTrip(t *testing.T) {
	dsn := os.Getenv("PRICEWATCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PRICEWATCH_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	docs, err := store.OpenPostgres(ctx, dsn, 2)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	t.Cleanup(func() { _ = docs.Close() })

	for _, collection := range []string{"test-a", "test-b"} {
		existing, err := docs.List(ctx, collection)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		for _, doc := range existing {
			_ = docs.Remove(ctx, collection, doc.Key)
		}
	}
	exerciseDocuments(t, docs)
}

func exerciseDocuments(t *testing.T, docs store.Documents) {
	t.Helper()
	ctx := context.Background()

	if _, err := docs.Get(ctx, "test-a", "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := docs.Remove(ctx, "test-a", "missing"); err != nil {
		t.Fatalf("Remove of missing key should succeed, got %v", err)
	}

	if err := docs.Set(ctx, "test-a", "k2", []byte(`{"n":2}`)); err != nil {
		t.Fatalf("Set k2: %v", err)
	}
	if err := docs.Set(ctx, "test-a", "k1", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("Set k1: %v", err)
	}
	if err := docs.Set(ctx, "test-b", "k1", []byte(`{"n":9}`)); err != nil {
		t.Fatalf("Set other collection: %v", err)
	}
	if err := docs.Set(ctx, "test-a", "k1", []byte(`{"n":3}`)); err != nil {
		t.Fatalf("overwrite k1: %v", err)
	}

	raw, err := docs.Get(ctx, "test-a", "k1")
	if err != nil {
		t.Fatalf("Get k1: %v", err)
	}
	if string(raw) != `{"n":3}` && string(raw) != `{"n": 3}` {
		t.Fatalf("unexpected value %q", raw)
	}

	list, err := docs.List(ctx, "test-a")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Key != "k1" || list[1].Key != "k2" {
		t.Fatalf("unexpected listing: %+v", list)
	}

	if err := docs.Remove(ctx, "test-a", "k1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := docs.Get(ctx, "test-a", "k1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if _, err := docs.Get(ctx, "test-b", "k1"); err != nil {
		t.Fatalf("collections should be independent: %v", err)
	}
}

func TestRepositoryItemsAndTrackers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	item := &store.Item{
		ID:              "B00ITEM001",
		Title:           "The Book",
		Price:           "20.00",
		PrimaryBookID:   "0000000001",
		SecondaryBookID: "9780000000001",
	}
	item.AddTracker("alice")
	item.AddTracker("bob")
	if err := repo.PutItem(ctx, item); err != nil {
		t.Fatalf("PutItem: %v", err)
	}

	got, err := repo.GetItem(ctx, "B00ITEM001")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Title != "The Book" || got.Price != "20.00" || got.BookID() != "0000000001" {
		t.Fatalf("unexpected item: %+v", got)
	}
	if subs := got.SubscriberIDs(); len(subs) != 2 || subs[0] != "alice" || subs[1] != "bob" {
		t.Fatalf("unexpected subscribers: %v", subs)
	}

	if _, err := repo.GetTracker(ctx, "nobody"); !store.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	testsupport.SeedTracker(t, repo, "alice", "B00ITEM001")
	trackers, err := repo.ListTrackers(ctx)
	if err != nil {
		t.Fatalf("ListTrackers: %v", err)
	}
	if len(trackers) != 1 || !trackers[0].IsTracking("B00ITEM001") {
		t.Fatalf("unexpected trackers: %+v", trackers)
	}

	if err := repo.DeleteItem(ctx, "B00ITEM001"); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	items, err := repo.ListItems(ctx)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items, got %d", len(items))
	}
}

func TestRepositoryKeyIsAuthoritative(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := repo.Documents().Set(ctx, store.CollectionItems, "B00KEY0001", []byte(`{"id":"OTHER","title":"x","price":"1.00"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	item, err := repo.GetItem(ctx, "B00KEY0001")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.ID != "B00KEY0001" {
		t.Fatalf("expected key id, got %q", item.ID)
	}
	if item.Trackers == nil {
		t.Fatal("expected trackers map to be initialized")
	}
}

func TestScanSeparatesUnreadableDocuments(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedItem(t, repo, "B00GOOD001", "Good", "20.00", "alice")
	if err := repo.Documents().Set(ctx, store.CollectionItems, "B00BAD0001", []byte(`{"price": 12}`)); err != nil {
		t.Fatalf("Set item: %v", err)
	}
	testsupport.SeedTracker(t, repo, "alice", "B00GOOD001")
	if err := repo.Documents().Set(ctx, store.CollectionTrackers, "mallory", []byte(`not json`)); err != nil {
		t.Fatalf("Set tracker: %v", err)
	}

	items, unreadable, err := repo.ScanItems(ctx)
	if err != nil {
		t.Fatalf("ScanItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != "B00GOOD001" {
		t.Fatalf("unexpected items: %+v", items)
	}
	if len(unreadable) != 1 || unreadable[0].Key != "B00BAD0001" || unreadable[0].Err == nil {
		t.Fatalf("unexpected unreadable items: %+v", unreadable)
	}
	listed, err := repo.ListItems(ctx)
	if err != nil || len(listed) != 1 {
		t.Fatalf("ListItems should skip unreadable documents: %d %v", len(listed), err)
	}

	trackers, badTrackers, err := repo.ScanTrackers(ctx)
	if err != nil {
		t.Fatalf("ScanTrackers: %v", err)
	}
	if len(trackers) != 1 || len(badTrackers) != 1 || badTrackers[0].Key != "mallory" {
		t.Fatalf("unexpected trackers: %+v unreadable: %+v", trackers, badTrackers)
	}
}

func TestFalseFlagsDoNotCountAsFollowers(t *testing.T) {
	item := &store.Item{Trackers: map[string]bool{"alice": false}}
	if !item.Orphaned() {
		t.Fatal("item with only false flags should be orphaned")
	}
	tracker := &store.Tracker{Tracking: map[string]bool{"B00ITEM001": false}}
	if !tracker.Empty() {
		t.Fatal("tracker with only false flags should be empty")
	}
	item.AddTracker("bob")
	if item.Orphaned() {
		t.Fatal("item with a follower is not orphaned")
	}
}

func TestBookIDFallsBackToSecondary(t *testing.T) {
	item := &store.Item{SecondaryBookID: "9780000000002"}
	if item.BookID() != "9780000000002" {
		t.Fatalf("unexpected book id %q", item.BookID())
	}
	if (&store.Item{}).BookID() != "" {
		t.Fatal("expected empty book id")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Store.Driver = "mongo"
	if _, err := store.Open(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	cfg.Store.Driver = config.DriverSQLite
	repo, err := store.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	_ = repo.Close()
}
