// Package tracking manages the many-to-many relationship between items and
// the subscribers that follow them.
//
// The relationship is stored on both sides (Item.Trackers and
// Tracker.Tracking) and every write is a separate document write. TrackItem
// writes the item before the tracker so an interrupted request is completed
// by repeating it; Repair restores agreement after any other partial failure.
package tracking
