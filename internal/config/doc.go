// Package config loads, normalizes, and validates pricewatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// PRICEWATCH_ITEM_INFO_URL and PRICEWATCH_NTFY_TOPIC. The Config type
// centralizes every knob the daemon and CLI need: store backend, upstream
// service endpoints, notification formatting, and sweep pacing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
