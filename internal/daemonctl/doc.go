// Package daemonctl lets CLI commands talk to a running pricewatch daemon:
// an HTTP client for the webhook API and pid-file based process control.
package daemonctl
