// Package notifications publishes price-drop announcements to a public ntfy
// feed.
//
// The ntfy implementation posts the message text to the configured topic and
// suppresses identical messages sent within the dedup window, returning
// ErrDuplicate in that case. When no topic is configured a no-op Service is
// returned so sweeps can run without a feed.
package notifications
