// Package daemon coordinates the long-running pricewatch process.
//
// It wires the sweep engine and the subscription manager into a single
// lifecycle with flock-based locking to prevent multiple instances. A ticker
// starts a sweep every schedule interval, optionally preceded by a repair
// pass, and the webhook API lets external callers trigger sweeps, subscribe,
// unsubscribe, and inspect state.
//
// Sweeps always take the cross-process sweep lock, so a CLI sweep and a
// daemon sweep never overlap; a trigger that finds the lock held is refused
// with services.ErrSweepInFlight (HTTP 409).
//
// Keep orchestration logic here: pricing and tracking rules live in their
// own packages while the daemon focuses on startup, shutdown, scheduling, and
// HTTP transport.
package daemon
