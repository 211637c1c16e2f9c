package iteminfo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pricewatch/internal/config"
	"pricewatch/internal/services"
)

const maxBodyBytes = 1 << 20

// HTTPDoer describes the HTTP client used by the fetcher.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher returns current product details for an item id.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (*Info, error)
}

// Info is the current state of a product. Price is the raw decimal text the
// service reported; callers parse and validate it.
type Info struct {
	ID              string
	Title           string
	Price           string
	PrimaryBookID   string
	SecondaryBookID string
}

// Client calls GET <baseURL><id>.
type Client struct {
	baseURL   string
	userAgent string
	client    HTTPDoer
}

// NewClient constructs a client. A nil doer uses an http.Client with timeout.
func NewClient(baseURL, userAgent string, timeout time.Duration, doer HTTPDoer) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:   strings.TrimSpace(baseURL),
		userAgent: strings.TrimSpace(userAgent),
		client:    doer,
	}
}

// NewFromConfig builds a client from the sources section.
func NewFromConfig(cfg *config.Config) *Client {
	return NewClient(cfg.Sources.ItemInfoURL, cfg.Sources.UserAgent, cfg.SourceTimeout(), nil)
}

// Fetch requests the product info for id. Any transport failure, non-200
// status or undecodable body is reported as an upstream fetch failure.
func (c *Client) Fetch(ctx context.Context, id string) (*Info, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "iteminfo", "fetch", "item id is required", nil)
	}
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "iteminfo", "fetch", "item_info_url is not configured", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(id), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "iteminfo", "build request", id, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "iteminfo", "request", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "iteminfo", "read body", id, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrUpstreamFetch, "iteminfo", "request",
			fmt.Sprintf("%s: status %d: %s", id, resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	info, err := decode(body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "iteminfo", "decode", id, err)
	}
	return info, nil
}

type payload struct {
	ID              string          `json:"id"`
	ASIN            string          `json:"asin"`
	Title           string          `json:"title"`
	Price           json.RawMessage `json:"price"`
	PrimaryBookID   string          `json:"primary_book_id"`
	ISBN10          string          `json:"isbn10"`
	SecondaryBookID string          `json:"secondary_book_id"`
	ISBN13          string          `json:"isbn13"`
}

func decode(body []byte) (*Info, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	price, err := rawText(p.Price)
	if err != nil {
		return nil, fmt.Errorf("price: %w", err)
	}
	info := &Info{
		ID:              firstNonEmpty(p.ID, p.ASIN),
		Title:           strings.TrimSpace(p.Title),
		Price:           price,
		PrimaryBookID:   firstNonEmpty(p.PrimaryBookID, p.ISBN10),
		SecondaryBookID: firstNonEmpty(p.SecondaryBookID, p.ISBN13),
	}
	if info.ID == "" {
		return nil, errors.New("response has no item id")
	}
	return info, nil
}

// rawText accepts a JSON string or number and returns its text.
func rawText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
