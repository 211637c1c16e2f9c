// Package pacing spreads work across time at a fixed interval.
//
// A Pacer hands out strictly increasing start offsets (interval, 2×interval,
// ...) from a single-token rate limiter and waits for them on an injectable
// Clock, so sweeps can be tested without sleeping.
package pacing
