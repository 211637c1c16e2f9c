package bookinfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
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

// Fetcher returns enrichment data for a book id.
type Fetcher interface {
	Fetch(ctx context.Context, bookID string) (*Book, error)
}

// Book holds enrichment data. Rating is kept as reported ("4.27"). Counts are
// nil when the service omits them.
type Book struct {
	Author           string
	Rating           string
	ToRead           *int64
	CurrentlyReading *int64
}

// Client calls GET <baseURL><bookID>.
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

// NewFromConfig builds a client from the sources section. It returns nil when
// no book info endpoint is configured.
func NewFromConfig(cfg *config.Config) *Client {
	if strings.TrimSpace(cfg.Sources.BookInfoURL) == "" {
		return nil
	}
	return NewClient(cfg.Sources.BookInfoURL, cfg.Sources.UserAgent, cfg.SourceTimeout(), nil)
}

func (c *Client) Fetch(ctx context.Context, bookID string) (*Book, error) {
	bookID = strings.TrimSpace(bookID)
	if bookID == "" {
		return nil, services.Wrap(services.ErrValidation, "bookinfo", "fetch", "book id is required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+url.PathEscape(bookID), nil)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "bookinfo", "build request", bookID, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "bookinfo", "request", bookID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "bookinfo", "read body", bookID, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, services.Wrap(services.ErrUpstreamFetch, "bookinfo", "request",
			fmt.Sprintf("%s: status %d", bookID, resp.StatusCode), nil)
	}

	book, err := decode(body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "bookinfo", "decode", bookID, err)
	}
	return book, nil
}

type payload struct {
	AuthorName            string          `json:"authorName"`
	Author                string          `json:"author"`
	AverageRating         json.RawMessage `json:"averageRating"`
	AvgRating             json.RawMessage `json:"avgRating"`
	ToReadCount           json.RawMessage `json:"toReadCount"`
	ToRead                json.RawMessage `json:"toRead"`
	CurrentlyReadingCount json.RawMessage `json:"currentlyReadingCount"`
	CurrentlyReading      json.RawMessage `json:"currentlyReading"`
}

func decode(body []byte) (*Book, error) {
	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	book := &Book{Author: strings.TrimSpace(p.AuthorName)}
	if book.Author == "" {
		book.Author = strings.TrimSpace(p.Author)
	}
	if book.Author == "" {
		return nil, fmt.Errorf("response has no author")
	}

	rating, err := firstText(p.AverageRating, p.AvgRating)
	if err != nil {
		return nil, fmt.Errorf("rating: %w", err)
	}
	book.Rating = rating

	if book.ToRead, err = firstCount(p.ToReadCount, p.ToRead); err != nil {
		return nil, fmt.Errorf("to-read count: %w", err)
	}
	if book.CurrentlyReading, err = firstCount(p.CurrentlyReadingCount, p.CurrentlyReading); err != nil {
		return nil, fmt.Errorf("currently-reading count: %w", err)
	}
	return book, nil
}

func firstText(values ...json.RawMessage) (string, error) {
	for _, raw := range values {
		text, err := rawText(raw)
		if err != nil {
			return "", err
		}
		if text != "" {
			return text, nil
		}
	}
	return "", nil
}

// Counts may arrive as "12,345", "12345" or 12345.
func firstCount(values ...json.RawMessage) (*int64, error) {
	text, err := firstText(values...)
	if err != nil || text == "" {
		return nil, err
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(text, ",", ""), 10, 64)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("negative count %d", n)
	}
	return &n, nil
}

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
