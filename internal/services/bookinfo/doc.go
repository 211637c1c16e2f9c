// Package bookinfo fetches reader statistics (author, rating, want-to-read
// and currently-reading counts) used to enrich price-drop notifications.
package bookinfo
