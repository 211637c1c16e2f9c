// Package api defines wire-format types and converters for the daemon's HTTP
// API. It translates store records and sweep/repair reports into
// transport-friendly DTOs so clients never couple to internal types.
//
// # Key Types
//
// Item, Tracker: the two sides of a subscription as seen by clients.
//
// TrackRequest, UnfollowRequest: webhook bodies.
//
// SweepAccepted, SweepSummary, RepairSummary, UnfollowResponse: webhook replies.
//
// DaemonStatus: running state, last sweep and repair, and store counts.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds in
// UTC. List fields are always arrays, never null.
package api
