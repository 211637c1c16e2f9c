package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeSources()
	c.normalizeNotifications()
	c.normalizeSweep()
	c.normalizeLogging()
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case "", "sqlite3", DriverSQLite:
		c.Store.Driver = DriverSQLite
	case "postgresql", "pg", DriverPostgres:
		c.Store.Driver = DriverPostgres
	}

	var err error
	if strings.TrimSpace(c.Store.SQLitePath) == "" {
		c.Store.SQLitePath = filepath.Join(c.Paths.DataDir, defaultSQLiteFile)
	}
	if c.Store.SQLitePath, err = expandPath(c.Store.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}

	c.Store.PostgresDSN = strings.TrimSpace(c.Store.PostgresDSN)
	if c.Store.PostgresDSN == "" {
		if value, ok := os.LookupEnv("PRICEWATCH_POSTGRES_DSN"); ok {
			c.Store.PostgresDSN = strings.TrimSpace(value)
		}
	}
	if c.Store.PostgresMaxConns <= 0 {
		c.Store.PostgresMaxConns = defaultPostgresMaxConns
	}
	return nil
}

func (c *Config) normalizeSources() {
	c.Sources.ItemInfoURL = strings.TrimSpace(c.Sources.ItemInfoURL)
	if c.Sources.ItemInfoURL == "" {
		if value, ok := os.LookupEnv("PRICEWATCH_ITEM_INFO_URL"); ok {
			c.Sources.ItemInfoURL = strings.TrimSpace(value)
		}
	}
	c.Sources.BookInfoURL = strings.TrimSpace(c.Sources.BookInfoURL)
	if c.Sources.BookInfoURL == "" {
		if value, ok := os.LookupEnv("PRICEWATCH_BOOK_INFO_URL"); ok {
			c.Sources.BookInfoURL = strings.TrimSpace(value)
		}
	}
	if c.Sources.RequestTimeout <= 0 {
		c.Sources.RequestTimeout = defaultSourceRequestTimeout
	}
	c.Sources.UserAgent = strings.TrimSpace(c.Sources.UserAgent)
	if c.Sources.UserAgent == "" {
		c.Sources.UserAgent = defaultUserAgent
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("PRICEWATCH_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	c.Notifications.AffiliateTag = strings.TrimSpace(c.Notifications.AffiliateTag)
	if c.Notifications.AffiliateTag == "" {
		if value, ok := os.LookupEnv("PRICEWATCH_AFFILIATE_TAG"); ok {
			c.Notifications.AffiliateTag = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = 0
	}
	c.Notifications.CurrencySymbol = strings.TrimSpace(c.Notifications.CurrencySymbol)
	c.Notifications.ProductURLTemplate = strings.TrimSpace(c.Notifications.ProductURLTemplate)
	if c.Notifications.ProductURLTemplate == "" {
		c.Notifications.ProductURLTemplate = defaultProductURLTemplate
	}
	if c.Notifications.MaxLength <= 0 {
		c.Notifications.MaxLength = defaultMaxMessageLength
	}
}

func (c *Config) normalizeSweep() {
	if c.Sweep.ItemIntervalSeconds < 0 {
		c.Sweep.ItemIntervalSeconds = 0
	}
	if c.Sweep.ScheduleIntervalMinutes <= 0 {
		c.Sweep.ScheduleIntervalMinutes = defaultScheduleIntervalMinutes
	}
	if c.Sweep.DropThresholdPercent == 0 {
		c.Sweep.DropThresholdPercent = defaultDropThresholdPercent
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
