package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"pricewatch/internal/logging"
	"pricewatch/internal/pricing"
	"pricewatch/internal/services"
	"pricewatch/internal/services/iteminfo"
	"pricewatch/internal/store"
)

// Store is the repository surface the manager needs.
type Store interface {
	GetItem(ctx context.Context, id string) (*store.Item, error)
	PutItem(ctx context.Context, item *store.Item) error
	DeleteItem(ctx context.Context, id string) error
	ListItems(ctx context.Context) ([]*store.Item, error)
	ScanItems(ctx context.Context) ([]*store.Item, []store.UnreadableDocument, error)
	GetTracker(ctx context.Context, subscriberID string) (*store.Tracker, error)
	PutTracker(ctx context.Context, tracker *store.Tracker) error
	DeleteTracker(ctx context.Context, subscriberID string) error
	ListTrackers(ctx context.Context) ([]*store.Tracker, error)
	ScanTrackers(ctx context.Context) ([]*store.Tracker, []store.UnreadableDocument, error)
}

// Deps are the collaborators of a Manager.
type Deps struct {
	Store  Store
	Items  iteminfo.Fetcher
	Logger *slog.Logger
}

// Manager handles subscription requests. TrackItem, RemoveSubscriber and
// Repair run one at a time so a repair pass never observes a half-finished
// unfollow.
type Manager struct {
	store  Store
	items  iteminfo.Fetcher
	logger *slog.Logger

	mu sync.Mutex
}

// NewManager validates deps and constructs a manager.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Store == nil {
		return nil, errors.New("tracking: store is required")
	}
	if deps.Items == nil {
		return nil, errors.New("tracking: item info fetcher is required")
	}
	return &Manager{
		store:  deps.Store,
		items:  deps.Items,
		logger: logging.NewComponentLogger(deps.Logger, "tracking"),
	}, nil
}

var productKeyPattern = regexp.MustCompile(`/([A-Za-z0-9]{10})(?:[/? ]|$)`)

// ParseItemID accepts a bare item id or a product URL and returns the item id.
func ParseItemID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", services.Wrap(services.ErrValidation, "tracking", "parse item", "item id is required", nil)
	}
	if !strings.Contains(ref, "/") {
		return ref, nil
	}
	match := productKeyPattern.FindStringSubmatch(ref)
	if match == nil {
		return "", services.Wrap(services.ErrValidation, "tracking", "parse item",
			fmt.Sprintf("no product id in %q", ref), nil)
	}
	return match[1], nil
}

// TrackItem subscribes subscriberID to itemRef (an item id or product URL).
// It fails with ErrAlreadyTracking when the subscriber's tracker already
// lists the item, and with ErrUpstreamFetch when a new item cannot be fetched.
func (m *Manager) TrackItem(ctx context.Context, itemRef, subscriberID string) error {
	itemID, err := ParseItemID(itemRef)
	if err != nil {
		return err
	}
	subscriberID = strings.TrimSpace(subscriberID)
	if subscriberID == "" {
		return services.Wrap(services.ErrValidation, "tracking", "track", "subscriber id is required", nil)
	}
	ctx = services.WithSubscriberID(services.WithItemID(ctx, itemID), subscriberID)
	logger := logging.WithContext(ctx, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()

	tracker, err := m.loadTracker(ctx, subscriberID)
	if err != nil {
		return err
	}
	if tracker.IsTracking(itemID) {
		return services.Wrap(services.ErrAlreadyTracking, "tracking", "track",
			fmt.Sprintf("%s already tracks %s", subscriberID, itemID), nil)
	}

	item, err := m.store.GetItem(ctx, itemID)
	switch {
	case store.IsNotFound(err):
		item, err = m.newItem(ctx, itemID)
		if err != nil {
			return err
		}
		logger.Info("tracking new item", logging.String("title", item.Title), logging.String("price", item.Price))
	case err != nil:
		return fmt.Errorf("load item %s: %w", itemID, err)
	}

	item.AddTracker(subscriberID)
	if err := m.store.PutItem(ctx, item); err != nil {
		return services.Wrap(services.ErrStoreWrite, "tracking", "put item", itemID, err)
	}

	tracker.Track(itemID)
	if err := m.store.PutTracker(ctx, tracker); err != nil {
		logger.Error("tracker write failed after item write; relationship is one-sided until repaired", logging.Error(err))
		return services.Wrap(services.ErrStoreWrite, "tracking", "put tracker", subscriberID, err)
	}

	logger.Info("subscriber now tracking item", logging.Int("followers", len(item.Trackers)))
	return nil
}

func (m *Manager) loadTracker(ctx context.Context, subscriberID string) (*store.Tracker, error) {
	tracker, err := m.store.GetTracker(ctx, subscriberID)
	if store.IsNotFound(err) {
		return &store.Tracker{SubscriberID: subscriberID, Tracking: map[string]bool{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load tracker %s: %w", subscriberID, err)
	}
	return tracker, nil
}

func (m *Manager) newItem(ctx context.Context, itemID string) (*store.Item, error) {
	info, err := m.items.Fetch(ctx, itemID)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "tracking", "fetch item", itemID, err)
	}
	price, err := pricing.ParsePrice(info.Price)
	if err == nil && price <= 0 {
		err = fmt.Errorf("price %q is not positive", info.Price)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamFetch, "tracking", "fetch item", itemID, err)
	}
	return &store.Item{
		ID:              itemID,
		Title:           info.Title,
		Price:           price.String(),
		PrimaryBookID:   info.PrimaryBookID,
		SecondaryBookID: info.SecondaryBookID,
		Trackers:        map[string]bool{},
	}, nil
}

// ItemFailure records an item that could not be released.
type ItemFailure struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

// RemoveResult describes what RemoveSubscriber changed.
type RemoveResult struct {
	SubscriberID string        `json:"subscriber_id"`
	Found        bool          `json:"found"`
	Released     []string      `json:"released,omitempty"`
	Deleted      []string      `json:"deleted,omitempty"`
	Failed       []ItemFailure `json:"failed,omitempty"`
}

// RemoveSubscriber drops subscriberID from every item it follows, deleting
// items left without followers, then deletes the tracker. Items are handled
// independently. When some items fail, the tracker is kept listing only
// those items so a repeat request can finish the job.
func (m *Manager) RemoveSubscriber(ctx context.Context, subscriberID string) (RemoveResult, error) {
	subscriberID = strings.TrimSpace(subscriberID)
	result := RemoveResult{SubscriberID: subscriberID}
	if subscriberID == "" {
		return result, services.Wrap(services.ErrValidation, "tracking", "remove", "subscriber id is required", nil)
	}
	ctx = services.WithSubscriberID(ctx, subscriberID)
	logger := logging.WithContext(ctx, m.logger)

	m.mu.Lock()
	defer m.mu.Unlock()

	tracker, err := m.store.GetTracker(ctx, subscriberID)
	if store.IsNotFound(err) {
		logger.Info("no tracker for subscriber; nothing to remove")
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("load tracker %s: %w", subscriberID, err)
	}
	result.Found = true

	for _, itemID := range tracker.ItemIDs() {
		deleted, err := m.releaseItem(ctx, itemID, subscriberID)
		if err != nil {
			logger.Warn("release item failed", logging.String(logging.FieldItemID, itemID), logging.Error(err))
			result.Failed = append(result.Failed, ItemFailure{ItemID: itemID, Error: err.Error()})
			continue
		}
		tracker.Untrack(itemID)
		if deleted {
			result.Deleted = append(result.Deleted, itemID)
		} else {
			result.Released = append(result.Released, itemID)
		}
	}

	if len(result.Failed) > 0 {
		if err := m.store.PutTracker(ctx, tracker); err != nil {
			return result, services.Wrap(services.ErrStoreWrite, "tracking", "put tracker", subscriberID, err)
		}
		logger.Warn("subscriber partially removed", logging.Int("failed", len(result.Failed)))
		return result, nil
	}

	if err := m.store.DeleteTracker(ctx, subscriberID); err != nil {
		return result, services.Wrap(services.ErrStoreWrite, "tracking", "delete tracker", subscriberID, err)
	}
	logger.Info("subscriber removed",
		logging.Int("released", len(result.Released)),
		logging.Int("deleted", len(result.Deleted)),
	)
	return result, nil
}

// releaseItem removes subscriberID from the item, deleting it when no
// followers remain. A missing item counts as deleted.
func (m *Manager) releaseItem(ctx context.Context, itemID, subscriberID string) (bool, error) {
	item, err := m.store.GetItem(ctx, itemID)
	if store.IsNotFound(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	item.RemoveTracker(subscriberID)
	if item.Orphaned() {
		if err := m.store.DeleteItem(ctx, itemID); err != nil {
			return false, services.Wrap(services.ErrStoreWrite, "tracking", "delete item", itemID, err)
		}
		return true, nil
	}
	if err := m.store.PutItem(ctx, item); err != nil {
		return false, services.Wrap(services.ErrStoreWrite, "tracking", "put item", itemID, err)
	}
	return false, nil
}

// ListItems returns all tracked items ordered by id.
func (m *Manager) ListItems(ctx context.Context) ([]*store.Item, error) {
	return m.store.ListItems(ctx)
}

// ListTrackers returns all trackers ordered by subscriber id.
func (m *Manager) ListTrackers(ctx context.Context) ([]*store.Tracker, error) {
	return m.store.ListTrackers(ctx)
}
