package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pricewatch/internal/api"
	"pricewatch/internal/pricing"
	"pricewatch/internal/services"
	"pricewatch/internal/store"
	"pricewatch/internal/testsupport"
	"pricewatch/internal/tracking"
)

type subscriptionsStub struct {
	trackErr  error
	tracked   []string
	remove    tracking.RemoveResult
	removeErr error
	repair    tracking.RepairReport
	repairErr error
	items     []*store.Item
	trackers  []*store.Tracker
	listErr   error
}

func (s *subscriptionsStub) TrackItem(_ context.Context, itemRef, subscriberID string) error {
	if s.trackErr != nil {
		return s.trackErr
	}
	s.tracked = append(s.tracked, itemRef+"|"+subscriberID)
	return nil
}

func (s *subscriptionsStub) RemoveSubscriber(context.Context, string) (tracking.RemoveResult, error) {
	return s.remove, s.removeErr
}

func (s *subscriptionsStub) Repair(context.Context) (tracking.RepairReport, error) {
	return s.repair, s.repairErr
}

func (s *subscriptionsStub) ListItems(context.Context) ([]*store.Item, error) {
	return s.items, s.listErr
}

func (s *subscriptionsStub) ListTrackers(context.Context) ([]*store.Tracker, error) {
	return s.trackers, s.listErr
}

type sweepStub struct{}

func (sweepStub) RunSweepWithID(_ context.Context, runID string) (pricing.Report, error) {
	return pricing.Report{RunID: runID}, nil
}

func newTestHandler(t *testing.T, subs *subscriptionsStub) (http.Handler, *Daemon) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, Deps{Sweeper: sweepStub{}, Subscriptions: subs})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	srv := &apiServer{daemon: d}
	return srv.routes(), d
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestTrackWebhookStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		kind   string
	}{
		{name: "created", body: `{"item":"B000000001","subscriber":"amy"}`, status: http.StatusCreated},
		{name: "already tracking", err: services.Wrap(services.ErrAlreadyTracking, "tracking", "track", "", nil), body: `{"item":"B000000001","subscriber":"amy"}`, status: http.StatusConflict, kind: "already_tracking"},
		{name: "upstream", err: services.Wrap(services.ErrUpstreamFetch, "iteminfo", "fetch", "", errors.New("boom")), body: `{"item":"B000000001","subscriber":"amy"}`, status: http.StatusBadGateway, kind: "upstream_fetch_failed"},
		{name: "validation", err: services.Wrap(services.ErrValidation, "tracking", "track", "", nil), body: `{"item":"","subscriber":"amy"}`, status: http.StatusBadRequest, kind: "validation"},
		{name: "malformed body", body: `{"item":`, status: http.StatusBadRequest, kind: "validation"},
		{name: "empty body", body: ``, status: http.StatusBadRequest, kind: "validation"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(t, &subscriptionsStub{trackErr: tc.err})
			w := serve(h, http.MethodPost, "/hooks/track", tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, w.Code, w.Body.String())
			}
			if tc.kind == "" {
				return
			}
			var resp api.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Kind != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, resp.Kind)
			}
		})
	}
}

func TestTrackWebhookReportsParsedItemID(t *testing.T) {
	subs := &subscriptionsStub{}
	h, _ := newTestHandler(t, subs)
	w := serve(h, http.MethodPost, "/hooks/track", `{"item":"https://shop.example/dp/B000000001?ref=x","subscriber":" amy "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	var resp api.TrackResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ItemID != "B000000001" || resp.Subscriber != "amy" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestSweepWebhookAcceptsThenConflicts(t *testing.T) {
	h, d := newTestHandler(t, &subscriptionsStub{})
	release, err := pricing.AcquireSweepLock(d.cfg.SweepLockPath())
	if err != nil {
		t.Fatalf("AcquireSweepLock: %v", err)
	}
	w := serve(h, http.MethodPost, "/hooks/sweep", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while lock held, got %d", w.Code)
	}
	release()

	w = serve(h, http.MethodPost, "/hooks/sweep", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.SweepAccepted
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID == "" {
		t.Fatal("expected run id")
	}
	d.sweeps.Wait()
}

func TestUnfollowWebhookReturnsResult(t *testing.T) {
	subs := &subscriptionsStub{remove: tracking.RemoveResult{
		SubscriberID: "amy",
		Found:        true,
		Released:     []string{"B000000001"},
		Deleted:      []string{"B000000002"},
	}}
	h, _ := newTestHandler(t, subs)
	w := serve(h, http.MethodPost, "/hooks/unfollow", `{"subscriber":"amy"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.UnfollowResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Found || len(resp.Released) != 1 || len(resp.Deleted) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRepairWebhookRecordsReport(t *testing.T) {
	subs := &subscriptionsStub{repair: tracking.RepairReport{ItemsDeleted: 2, DocumentsWritten: 1}}
	h, d := newTestHandler(t, subs)
	w := serve(h, http.MethodPost, "/hooks/repair", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.RepairSummary
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.ItemsDeleted != 2 || resp.DocumentsWritten != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if status := d.Status(context.Background()); status.LastRepair == nil || status.LastRepair.ItemsDeleted != 2 {
		t.Fatalf("expected repair recorded in status, got %+v", status.LastRepair)
	}
}

func TestStatusEndpointCountsRecords(t *testing.T) {
	subs := &subscriptionsStub{
		items:    []*store.Item{{ID: "B000000001"}, {ID: "B000000002"}},
		trackers: []*store.Tracker{{SubscriberID: "amy"}},
	}
	h, _ := newTestHandler(t, subs)
	w := serve(h, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp api.DaemonStatus
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Items != 2 || resp.Trackers != 1 || resp.StoreDriver != "sqlite" {
		t.Fatalf("unexpected status: %+v", resp)
	}
}

func TestListEndpointsSurfaceStoreErrors(t *testing.T) {
	subs := &subscriptionsStub{listErr: errors.New("disk gone")}
	h, _ := newTestHandler(t, subs)
	for _, path := range []string{"/api/items", "/api/trackers"} {
		w := serve(h, http.MethodGet, path, "")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d", path, w.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, &subscriptionsStub{})
	cases := map[string]string{
		"/hooks/sweep":    http.MethodGet,
		"/hooks/track":    http.MethodGet,
		"/hooks/unfollow": http.MethodGet,
		"/hooks/repair":   http.MethodGet,
		"/api/status":     http.MethodPost,
		"/api/items":      http.MethodPost,
		"/api/trackers":   http.MethodDelete,
	}
	for path, method := range cases {
		w := serve(h, method, path, "")
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", method, path, w.Code)
		}
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	h, _ := newTestHandler(t, &subscriptionsStub{})
	req := httptest.NewRequest(http.MethodGet, "/api/items", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected echoed request id, got %q", got)
	}

	w = serve(h, http.MethodGet, "/api/items", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{services.ErrValidation, http.StatusBadRequest},
		{services.ErrAlreadyTracking, http.StatusConflict},
		{services.ErrSweepInFlight, http.StatusConflict},
		{services.ErrUpstreamFetch, http.StatusBadGateway},
		{services.ErrNotFound, http.StatusNotFound},
		{services.ErrStoreWrite, http.StatusServiceUnavailable},
		{fmt.Errorf("wrapped: %w", services.ErrAlreadyTracking), http.StatusConflict},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
