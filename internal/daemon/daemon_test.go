package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"pricewatch/internal/api"
	"pricewatch/internal/daemon"
	"pricewatch/internal/pricing"
	"pricewatch/internal/services"
	"pricewatch/internal/services/iteminfo"
	"pricewatch/internal/testsupport"
	"pricewatch/internal/tracking"
)

type staticItems map[string]*iteminfo.Info

func (s staticItems) Fetch(_ context.Context, id string) (*iteminfo.Info, error) {
	info, ok := s[id]
	if !ok {
		return nil, services.Wrap(services.ErrUpstreamFetch, "test", "fetch", id, nil)
	}
	copied := *info
	return &copied, nil
}

type gatedSweeper struct {
	release chan struct{}
	done    chan string
}

func newGatedSweeper() *gatedSweeper {
	return &gatedSweeper{release: make(chan struct{}), done: make(chan string, 4)}
}

func (g *gatedSweeper) RunSweepWithID(_ context.Context, runID string) (pricing.Report, error) {
	<-g.release
	g.done <- runID
	now := time.Now()
	return pricing.Report{RunID: runID, StartedAt: now, FinishedAt: now, Items: 1, Checked: 1}, nil
}

func newDaemon(t *testing.T, sweeper daemon.Sweeper) *daemon.Daemon {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	repo := testsupport.MustOpenStore(t, cfg)
	mgr, err := tracking.NewManager(tracking.Deps{
		Store: repo,
		Items: staticItems{"B000000001": {ID: "B000000001", Title: "A Book", Price: "20.00"}},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(cfg, daemon.Deps{Sweeper: sweeper, Subscriptions: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		_ = d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t, newGatedSweeper())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.NextSweepAt.IsZero() {
		t.Fatal("expected next sweep time to be scheduled")
	}
	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonLockIsExclusive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	repo := testsupport.MustOpenStore(t, cfg)
	mgr, err := tracking.NewManager(tracking.Deps{Store: repo, Items: staticItems{}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	first, err := daemon.New(cfg, daemon.Deps{Sweeper: newGatedSweeper(), Subscriptions: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	second, err := daemon.New(cfg, daemon.Deps{Sweeper: newGatedSweeper(), Subscriptions: mgr})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second daemon to be refused")
	}
}

func TestTriggerSweepRefusesOverlap(t *testing.T) {
	sweeper := newGatedSweeper()
	d := newDaemon(t, sweeper)

	runID, err := d.TriggerSweep()
	if err != nil {
		t.Fatalf("TriggerSweep: %v", err)
	}
	if _, err := d.TriggerSweep(); !errors.Is(err, services.ErrSweepInFlight) {
		t.Fatalf("expected ErrSweepInFlight, got %v", err)
	}
	if !d.Status(context.Background()).SweepInFlight {
		t.Fatal("expected sweep in flight")
	}

	close(sweeper.release)
	select {
	case got := <-sweeper.done:
		if got != runID {
			t.Fatalf("expected run %s, got %s", runID, got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweep did not finish")
	}

	deadline := time.Now().Add(5 * time.Second)
	for d.Status(context.Background()).SweepInFlight {
		if time.Now().After(deadline) {
			t.Fatal("sweep lock not released")
		}
		time.Sleep(10 * time.Millisecond)
	}
	status := d.Status(context.Background())
	if status.LastSweep == nil || status.LastSweep.RunID != runID {
		t.Fatalf("expected last sweep %s, got %+v", runID, status.LastSweep)
	}
	if _, err := d.TriggerSweep(); err != nil {
		t.Fatalf("expected a new sweep to start after release, got %v", err)
	}
}

func TestWebhooksOverHTTP(t *testing.T) {
	d := newDaemon(t, newGatedSweeper())
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()
	base := "http://" + d.Addr()

	body, _ := json.Marshal(api.TrackRequest{Item: "https://example.com/dp/B000000001/", Subscriber: "amy"})
	resp, err := http.Post(base+"/hooks/track", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST track: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = http.Post(base+"/hooks/track", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST track again: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate, got %d", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/items")
	if err != nil {
		t.Fatalf("GET items: %v", err)
	}
	defer resp.Body.Close()
	var items api.ItemListResponse
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		t.Fatalf("decode items: %v", err)
	}
	if len(items.Items) != 1 || items.Items[0].ID != "B000000001" || items.Items[0].Price != "20.00" {
		t.Fatalf("unexpected items: %+v", items.Items)
	}
	if len(items.Items[0].Subscribers) != 1 || items.Items[0].Subscribers[0] != "amy" {
		t.Fatalf("unexpected subscribers: %v", items.Items[0].Subscribers)
	}
}
