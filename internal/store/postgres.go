package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

// PostgresStore keeps documents in a JSONB table behind a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects a pool to dsn and ensures the documents table exists.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*PostgresStore, error) {
	ctx = ensureContext(ctx)
	pool, err := connectPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func connectPool(ctx context.Context, dsn string, maxConns int) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = int32(maxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Close closes the connection pool.
func (p *PostgresStore) Close() error {
	if p != nil && p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// Get returns the raw document stored under key.
func (p *PostgresStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	var value string
	err := p.pool.QueryRow(ensureContext(ctx),
		"SELECT value::text FROM pricewatch_documents WHERE collection = $1 AND key = $2",
		collection, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	return []byte(value), nil
}

// Set upserts the document stored under key.
func (p *PostgresStore) Set(ctx context.Context, collection, key string, value []byte) error {
	_, err := p.pool.Exec(ensureContext(ctx),
		`INSERT INTO pricewatch_documents (collection, key, value, updated_at) VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (collection, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		collection, key, string(value),
	)
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, key, err)
	}
	return nil
}

// Remove deletes the document stored under key.
func (p *PostgresStore) Remove(ctx context.Context, collection, key string) error {
	_, err := p.pool.Exec(ensureContext(ctx),
		"DELETE FROM pricewatch_documents WHERE collection = $1 AND key = $2",
		collection, key,
	)
	if err != nil {
		return fmt.Errorf("remove %s/%s: %w", collection, key, err)
	}
	return nil
}

// List returns every document in collection ordered by key.
func (p *PostgresStore) List(ctx context.Context, collection string) ([]Document, error) {
	rows, err := p.pool.Query(ensureContext(ctx),
		"SELECT key, value::text FROM pricewatch_documents WHERE collection = $1 ORDER BY key",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, Document{Key: key, Value: []byte(value)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return docs, nil
}
