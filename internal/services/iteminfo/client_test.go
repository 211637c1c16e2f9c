package iteminfo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pricewatch/internal/services"
)

func TestFetchDecodesCanonicalFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/B00TEST001" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != "pricewatch-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"B00TEST001","title":"Dune","price":"17.00","primary_book_id":"0441013597","secondary_book_id":"9780441013593"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/items/", "pricewatch-test", time.Second, nil)
	info, err := client.Fetch(context.Background(), "B00TEST001")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.ID != "B00TEST001" || info.Title != "Dune" || info.Price != "17.00" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.PrimaryBookID != "0441013597" || info.SecondaryBookID != "9780441013593" {
		t.Fatalf("unexpected book ids: %+v", info)
	}
}

func TestFetchAcceptsLegacyFieldsAndNumericPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"asin":"B00LEGACY1","title":"Old","price":19.5,"isbn13":"9780000000000"}`))
	}))
	defer server.Close()

	info, err := NewClient(server.URL+"/", "", time.Second, nil).Fetch(context.Background(), "B00LEGACY1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if info.ID != "B00LEGACY1" || info.Price != "19.5" || info.SecondaryBookID != "9780000000000" || info.PrimaryBookID != "" {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestFetchFailuresAreUpstreamErrors(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusServiceUnavailable) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{not json`)) }},
		{"missing id", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"title":"x","price":"1.00"}`)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(tc.handler)
			defer server.Close()
			_, err := NewClient(server.URL+"/", "", time.Second, nil).Fetch(context.Background(), "B00FAIL001")
			if !errors.Is(err, services.ErrUpstreamFetch) {
				t.Fatalf("expected ErrUpstreamFetch, got %v", err)
			}
		})
	}
}

func TestFetchTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := NewClient(server.URL+"/", "", 50*time.Millisecond, nil).Fetch(context.Background(), "B00SLOW001")
	if !errors.Is(err, services.ErrUpstreamFetch) {
		t.Fatalf("expected ErrUpstreamFetch on timeout, got %v", err)
	}
}

func TestFetchRequiresConfiguration(t *testing.T) {
	_, err := NewClient("", "", time.Second, nil).Fetch(context.Background(), "B00TEST001")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	_, err = NewClient("http://example.invalid/", "", time.Second, nil).Fetch(context.Background(), " ")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
