// Package services defines shared utilities consumed by the pricing engine,
// the subscription manager and the external HTTP integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, item IDs, subscriber IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (upstream fetch, already tracking, store write) with errors.Is.
//
// The HTTP clients for the item-info and book-info services live in
// subpackages and report every failure wrapped in ErrUpstreamFetch.
package services
