package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"pricewatch/internal/config"
)

func TestLoadDefaultConfigUsesEnvAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PRICEWATCH_ITEM_INFO_URL", "https://info.example/item?id=")
	t.Setenv("PRICEWATCH_NTFY_TOPIC", "https://ntfy.example/drops")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "pricewatch")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Store.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Store.Driver)
	}
	if cfg.Store.SQLitePath != filepath.Join(wantData, "tracking.db") {
		t.Fatalf("unexpected sqlite path: %q", cfg.Store.SQLitePath)
	}
	if cfg.Sources.ItemInfoURL != "https://info.example/item?id=" {
		t.Fatalf("expected item info url from env, got %q", cfg.Sources.ItemInfoURL)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/drops" {
		t.Fatalf("expected ntfy topic from env, got %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Sweep.DropThresholdPercent != 10 {
		t.Fatalf("unexpected drop threshold: %d", cfg.Sweep.DropThresholdPercent)
	}
	if cfg.ItemInterval().Seconds() != 5 {
		t.Fatalf("unexpected item interval: %s", cfg.ItemInterval())
	}
	if err := cfg.ValidateSources(); err != nil {
		t.Fatalf("ValidateSources: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "pricewatch.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
		} `toml:"paths"`
		Sources struct {
			ItemInfoURL string `toml:"item_info_url"`
		} `toml:"sources"`
		Sweep struct {
			ItemIntervalSeconds  int `toml:"item_interval_seconds"`
			DropThresholdPercent int `toml:"drop_threshold_percent"`
		} `toml:"sweep"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Sources.ItemInfoURL = " https://custom.example/item/ "
	custom.Sweep.ItemIntervalSeconds = 2
	custom.Sweep.DropThresholdPercent = 25
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Sources.ItemInfoURL != "https://custom.example/item/" {
		t.Fatalf("expected trimmed item info url, got %q", cfg.Sources.ItemInfoURL)
	}
	if cfg.Paths.DataDir != filepath.Join(tempDir, "data") {
		t.Fatalf("unexpected data dir: %q", cfg.Paths.DataDir)
	}
	if cfg.Store.SQLitePath != filepath.Join(tempDir, "data", "tracking.db") {
		t.Fatalf("expected sqlite path under data dir, got %q", cfg.Store.SQLitePath)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, ".local", "share", "pricewatch", "logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	if cfg.Sweep.ItemIntervalSeconds != 2 || cfg.Sweep.DropThresholdPercent != 25 {
		t.Fatalf("unexpected sweep config: %+v", cfg.Sweep)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}
	if cfg.Notifications.CurrencySymbol != "£" {
		t.Fatalf("expected default currency symbol, got %q", cfg.Notifications.CurrencySymbol)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "unknown driver",
			mutate: func(c *config.Config) { c.Store.Driver = "mongo" },
			want:   "store.driver",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *config.Config) {
				c.Store.Driver = config.DriverPostgres
				c.Store.PostgresDSN = ""
			},
			want: "store.postgres_dsn",
		},
		{
			name:   "threshold out of range",
			mutate: func(c *config.Config) { c.Sweep.DropThresholdPercent = 100 },
			want:   "sweep.drop_threshold_percent",
		},
		{
			name:   "url template without placeholder",
			mutate: func(c *config.Config) { c.Notifications.ProductURLTemplate = "https://shop.example/" },
			want:   "product_url_template",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "tracking.db")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in error, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateSourcesRequiresItemInfoURL(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateSources(); err == nil {
		t.Fatal("expected error when item info url missing")
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample file to exist")
	}
	if cfg.API.Bind != "127.0.0.1:7390" {
		t.Fatalf("unexpected api bind: %q", cfg.API.Bind)
	}
}
