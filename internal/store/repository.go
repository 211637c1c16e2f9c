package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Repository provides typed access to items and trackers.
type Repository struct {
	docs Documents
}

// NewRepository wraps a document backend.
func NewRepository(docs Documents) *Repository {
	return &Repository{docs: docs}
}

// Documents exposes the underlying backend.
func (r *Repository) Documents() Documents {
	return r.docs
}

// Close releases the backend.
func (r *Repository) Close() error {
	if r == nil || r.docs == nil {
		return nil
	}
	return r.docs.Close()
}

// GetItem loads the item stored under id. Missing items return an error
// matching ErrNotFound.
func (r *Repository) GetItem(ctx context.Context, id string) (*Item, error) {
	raw, err := r.docs.Get(ctx, CollectionItems, id)
	if err != nil {
		return nil, err
	}
	item, err := decodeItem(id, raw)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// PutItem replaces the stored item.
func (r *Repository) PutItem(ctx context.Context, item *Item) error {
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return errors.New("put item: id is required")
	}
	if item.Trackers == nil {
		item.Trackers = map[string]bool{}
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", item.ID, err)
	}
	return r.docs.Set(ctx, CollectionItems, item.ID, raw)
}

// DeleteItem removes the item stored under id.
func (r *Repository) DeleteItem(ctx context.Context, id string) error {
	return r.docs.Remove(ctx, CollectionItems, id)
}

// UnreadableDocument is a stored document that could not be decoded.
type UnreadableDocument struct {
	Key string
	Err error
}

// ScanItems returns every decodable item ordered by id, and separately the
// documents that failed to decode.
func (r *Repository) ScanItems(ctx context.Context) ([]*Item, []UnreadableDocument, error) {
	docs, err := r.docs.List(ctx, CollectionItems)
	if err != nil {
		return nil, nil, err
	}
	items := make([]*Item, 0, len(docs))
	var unreadable []UnreadableDocument
	for _, doc := range docs {
		item, err := decodeItem(doc.Key, doc.Value)
		if err != nil {
			unreadable = append(unreadable, UnreadableDocument{Key: doc.Key, Err: err})
			continue
		}
		items = append(items, item)
	}
	return items, unreadable, nil
}

// ListItems returns all decodable items ordered by id.
func (r *Repository) ListItems(ctx context.Context) ([]*Item, error) {
	items, _, err := r.ScanItems(ctx)
	return items, err
}

// GetTracker loads the tracker stored under subscriberID. Missing trackers
// return an error matching ErrNotFound.
func (r *Repository) GetTracker(ctx context.Context, subscriberID string) (*Tracker, error) {
	raw, err := r.docs.Get(ctx, CollectionTrackers, subscriberID)
	if err != nil {
		return nil, err
	}
	return decodeTracker(subscriberID, raw)
}

// PutTracker replaces the stored tracker.
func (r *Repository) PutTracker(ctx context.Context, tracker *Tracker) error {
	if tracker == nil || strings.TrimSpace(tracker.SubscriberID) == "" {
		return errors.New("put tracker: subscriber id is required")
	}
	if tracker.Tracking == nil {
		tracker.Tracking = map[string]bool{}
	}
	raw, err := json.Marshal(tracker)
	if err != nil {
		return fmt.Errorf("encode tracker %s: %w", tracker.SubscriberID, err)
	}
	return r.docs.Set(ctx, CollectionTrackers, tracker.SubscriberID, raw)
}

// DeleteTracker removes the tracker stored under subscriberID.
func (r *Repository) DeleteTracker(ctx context.Context, subscriberID string) error {
	return r.docs.Remove(ctx, CollectionTrackers, subscriberID)
}

// ScanTrackers is ScanItems for trackers, ordered by subscriber id.
func (r *Repository) ScanTrackers(ctx context.Context) ([]*Tracker, []UnreadableDocument, error) {
	docs, err := r.docs.List(ctx, CollectionTrackers)
	if err != nil {
		return nil, nil, err
	}
	trackers := make([]*Tracker, 0, len(docs))
	var unreadable []UnreadableDocument
	for _, doc := range docs {
		tracker, err := decodeTracker(doc.Key, doc.Value)
		if err != nil {
			unreadable = append(unreadable, UnreadableDocument{Key: doc.Key, Err: err})
			continue
		}
		trackers = append(trackers, tracker)
	}
	return trackers, unreadable, nil
}

// ListTrackers returns all decodable trackers ordered by subscriber id.
func (r *Repository) ListTrackers(ctx context.Context) ([]*Tracker, error) {
	trackers, _, err := r.ScanTrackers(ctx)
	return trackers, err
}

// IsNotFound reports whether err marks a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// The document key is authoritative for the id.
func decodeItem(key string, raw []byte) (*Item, error) {
	var item Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", key, err)
	}
	item.ID = key
	if item.Trackers == nil {
		item.Trackers = map[string]bool{}
	}
	return &item, nil
}

func decodeTracker(key string, raw []byte) (*Tracker, error) {
	var tracker Tracker
	if err := json.Unmarshal(raw, &tracker); err != nil {
		return nil, fmt.Errorf("decode tracker %s: %w", key, err)
	}
	tracker.SubscriberID = key
	if tracker.Tracking == nil {
		tracker.Tracking = map[string]bool{}
	}
	return &tracker, nil
}
