package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Store selects and configures the tracking store backend.
type Store struct {
	Driver           string `toml:"driver"`
	SQLitePath       string `toml:"sqlite_path"`
	PostgresDSN      string `toml:"postgres_dsn"`
	PostgresMaxConns int    `toml:"postgres_max_conns"`
}

// Sources contains the upstream item-info and book-info service endpoints.
// Identifiers are appended verbatim to the configured URLs.
type Sources struct {
	ItemInfoURL    string `toml:"item_info_url"`
	BookInfoURL    string `toml:"book_info_url"`
	RequestTimeout int    `toml:"request_timeout"`
	UserAgent      string `toml:"user_agent"`
}

// Notifications contains configuration for the public ntfy feed and message
// formatting.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
	CurrencySymbol     string `toml:"currency_symbol"`
	ProductURLTemplate string `toml:"product_url_template"`
	AffiliateTag       string `toml:"affiliate_tag"`
	MaxLength          int    `toml:"max_length"`
}

// Sweep contains configuration for price sweeps.
type Sweep struct {
	ItemIntervalSeconds     int  `toml:"item_interval_seconds"`
	ScheduleIntervalMinutes int  `toml:"schedule_interval_minutes"`
	DropThresholdPercent    int  `toml:"drop_threshold_percent"`
	RepairBeforeSweep       bool `toml:"repair_before_sweep"`
}

// API contains configuration for the webhook HTTP server.
type API struct {
	Bind string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for pricewatch.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Store: sqlite or postgres document store
//   - Sources: item-info and book-info service endpoints
//   - Notifications: ntfy feed and message formatting
//   - Sweep: pacing, scheduling, and drop threshold
//   - API: webhook server bind address
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Store         Store         `toml:"store"`
	Sources       Sources       `toml:"sources"`
	Notifications Notifications `toml:"notifications"`
	Sweep         Sweep         `toml:"sweep"`
	API           API           `toml:"api"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/pricewatch/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("pricewatch.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon and CLI operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Store.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(c.Store.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	return nil
}

// SweepLockPath returns the lock file that serializes sweeps across processes.
func (c *Config) SweepLockPath() string {
	return filepath.Join(c.Paths.DataDir, "sweep.lock")
}

// DaemonLockPath returns the lock file that enforces a single daemon instance.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.DataDir, "pricewatchd.lock")
}

// ItemInterval is the pacing gap between consecutive item checks in a sweep.
func (c *Config) ItemInterval() time.Duration {
	return time.Duration(c.Sweep.ItemIntervalSeconds) * time.Second
}

// ScheduleInterval is the period between daemon-triggered sweeps.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Sweep.ScheduleIntervalMinutes) * time.Minute
}

// SourceTimeout is the per-request timeout applied to upstream fetches.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Sources.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
