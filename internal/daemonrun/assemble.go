package daemonrun

import (
	"context"
	"fmt"
	"log/slog"

	"pricewatch/internal/config"
	"pricewatch/internal/notifications"
	"pricewatch/internal/pacing"
	"pricewatch/internal/pricing"
	"pricewatch/internal/services/bookinfo"
	"pricewatch/internal/services/iteminfo"
	"pricewatch/internal/store"
	"pricewatch/internal/tracking"
)

// Components are the long-lived collaborators shared by the daemon and the
// one-shot CLI commands.
type Components struct {
	Repo     *store.Repository
	Engine   *pricing.Engine
	Manager  *tracking.Manager
	Notifier notifications.Service
}

// Assemble opens the store and wires the sweep engine and subscription
// manager from cfg. Callers own the returned Components and must Close them.
func Assemble(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	repo, err := store.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	items := iteminfo.NewFromConfig(cfg)
	notifier := notifications.NewService(cfg)
	engine, err := pricing.NewEngine(pricing.Deps{
		Store:                repo,
		Items:                items,
		Books:                bookFetcher(cfg),
		Notifier:             notifier,
		Pacer:                pacing.New(cfg.ItemInterval(), pacing.RealClock{}),
		Composer:             pricing.NewComposer(cfg.Notifications),
		DropThresholdPercent: cfg.Sweep.DropThresholdPercent,
		Logger:               logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("build sweep engine: %w", err)
	}
	manager, err := tracking.NewManager(tracking.Deps{
		Store:  repo,
		Items:  items,
		Logger: logger,
	})
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("build subscription manager: %w", err)
	}

	return &Components{
		Repo:     repo,
		Engine:   engine,
		Manager:  manager,
		Notifier: notifier,
	}, nil
}

// bookFetcher returns nil when no book info endpoint is configured, so the
// engine sees an unset interface rather than a nil client.
func bookFetcher(cfg *config.Config) bookinfo.Fetcher {
	client := bookinfo.NewFromConfig(cfg)
	if client == nil {
		return nil
	}
	return client
}

// Close releases the store.
func (c *Components) Close() error {
	if c == nil || c.Repo == nil {
		return nil
	}
	return c.Repo.Close()
}
