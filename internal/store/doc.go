// Package store persists tracked items and their subscribers as JSON
// documents.
//
// Two collections exist: items keyed by product id and trackers keyed by
// subscriber id. The relationship between them is stored on both sides and
// each document write is atomic on its own; there are no multi-document
// transactions. Callers that mutate both sides are responsible for ordering
// the writes and tolerating partial failure (see the tracking package's
// repair pass).
//
// Documents is the backend contract. SQLite (modernc, default) and
// PostgreSQL (pgx pool) implementations are provided, and Repository layers
// typed Item/Tracker access on top of either one.
package store
