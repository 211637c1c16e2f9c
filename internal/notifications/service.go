package notifications

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"pricewatch/internal/config"
)

const (
	userAgent = "pricewatch/0.1"
	// dedupCapacity bounds how many recent messages are remembered.
	dedupCapacity = 4096
)

// ErrDuplicate reports that an identical message was already published within
// the dedup window.
var ErrDuplicate = errors.New("duplicate notification")

// Sender publishes a message to the public feed.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Service is the notification surface used by the CLI and daemon.
type Service interface {
	Sender
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		recent:   newDedup(time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second),
	}
}

// newDedup returns nil when window is not positive, disabling deduplication.
func newDedup(window time.Duration) *expirable.LRU[[32]byte, struct{}] {
	if window <= 0 {
		return nil
	}
	return expirable.NewLRU[[32]byte, struct{}](dedupCapacity, nil, window)
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client

	mu     sync.Mutex
	recent *expirable.LRU[[32]byte, struct{}]
}

func (n *ntfyService) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("notification text is empty")
	}
	key := sha256.Sum256([]byte(text))
	if !n.reserve(key) {
		return ErrDuplicate
	}
	err := n.send(ctx, payload{
		title:   "Price drop",
		message: text,
		tags:    []string{"pricewatch", "price_drop"},
	})
	if err != nil {
		n.release(key)
	}
	return err
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "pricewatch - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"pricewatch", "test"},
		priority: "low",
	})
}

// reserve records key as sent unless it was sent within the window.
func (n *ntfyService) reserve(key [32]byte) bool {
	if n.recent == nil {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.recent.Peek(key); ok {
		return false
	}
	n.recent.Add(key, struct{}{})
	return true
}

func (n *ntfyService) release(key [32]byte) {
	if n.recent == nil {
		return
	}
	n.mu.Lock()
	n.recent.Remove(key)
	n.mu.Unlock()
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Send(context.Context, string) error      { return nil }
func (noopService) TestNotification(context.Context) error { return nil }
