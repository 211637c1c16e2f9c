package testsupport

import (
	"path/filepath"
	"testing"

	"pricewatch/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Store.Driver = config.DriverSQLite
	cfgVal.Store.SQLitePath = filepath.Join(base, "data", "tracking.db")
	cfgVal.Sources.ItemInfoURL = "http://127.0.0.1:0/items/"
	cfgVal.Sources.BookInfoURL = ""
	cfgVal.Notifications.NtfyTopic = ""
	cfgVal.Notifications.AffiliateTag = ""
	cfgVal.API.Bind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithItemInfoURL points the item-info client at url.
func WithItemInfoURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.ItemInfoURL = url
	}
}

// WithBookInfoURL points the book-info client at url.
func WithBookInfoURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources.BookInfoURL = url
	}
}

// WithNtfyTopic sets the notification topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
