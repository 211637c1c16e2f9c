package store

import (
	"context"
	"errors"
	"fmt"

	"pricewatch/internal/config"
)

// Collection names.
const (
	CollectionItems    = "items"
	CollectionTrackers = "trackers"
)

// ErrNotFound reports that no document exists for the requested key.
var ErrNotFound = errors.New("document not found")

// Document is a raw JSON document with its key.
type Document struct {
	Key   string
	Value []byte
}

// Documents is the key/value contract shared by every backend. Set replaces
// the whole document. Remove of a missing key is not an error. List returns
// documents ordered by key.
type Documents interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Set(ctx context.Context, collection, key string, value []byte) error
	Remove(ctx context.Context, collection, key string) error
	List(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Open selects the backend named by cfg.Store.Driver and returns a typed
// repository over it.
func Open(ctx context.Context, cfg *config.Config) (*Repository, error) {
	if cfg == nil {
		return nil, errors.New("store: config is required")
	}
	var (
		docs Documents
		err  error
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite, "":
		docs, err = OpenSQLite(ctx, cfg)
	case config.DriverPostgres:
		docs, err = OpenPostgres(ctx, cfg.Store.PostgresDSN, cfg.Store.PostgresMaxConns)
	default:
		return nil, fmt.Errorf("store: unsupported driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	return NewRepository(docs), nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
