package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateSweep(); err != nil {
		return err
	}
	return nil
}

// ValidateSources reports whether the upstream endpoints needed for sweeps and
// tracking requests are configured. Listing and unfollow commands work without
// them, so Load does not enforce this.
func (c *Config) ValidateSources() error {
	if c.Sources.ItemInfoURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/pricewatch/config.toml"
		}
		return fmt.Errorf("sources.item_info_url is required. Set PRICEWATCH_ITEM_INFO_URL or edit %s (create with 'pricewatch config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			return errors.New("store.sqlite_path must be set when store.driver is sqlite")
		}
	case DriverPostgres:
		if c.Store.PostgresDSN == "" {
			return errors.New("store.postgres_dsn must be set when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver: unsupported value %q (want sqlite or postgres)", c.Store.Driver)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.Count(c.Notifications.ProductURLTemplate, "%s") != 1 {
		return errors.New("notifications.product_url_template must contain exactly one %s placeholder")
	}
	if c.Notifications.MaxLength < 40 {
		return errors.New("notifications.max_length must be at least 40")
	}
	return nil
}

func (c *Config) validateSweep() error {
	if c.Sweep.DropThresholdPercent < 1 || c.Sweep.DropThresholdPercent > 99 {
		return errors.New("sweep.drop_threshold_percent must be between 1 and 99")
	}
	if c.Sweep.ItemIntervalSeconds < 0 {
		return errors.New("sweep.item_interval_seconds must be zero or positive")
	}
	if c.Sweep.ScheduleIntervalMinutes < 0 {
		return errors.New("sweep.schedule_interval_minutes must be zero (disabled) or positive")
	}
	return nil
}
