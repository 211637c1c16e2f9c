// Package main hosts the pricewatch CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon in the foreground, performs
// one-shot sweeps and subscription changes directly against the store, and
// queries a running daemon over its HTTP API. It centralizes configuration
// resolution and logger setup so subcommands can focus on output.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
