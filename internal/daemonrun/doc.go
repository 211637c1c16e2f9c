// Package daemonrun assembles the pricewatch runtime: it opens the store,
// builds the sweep engine and subscription manager, and runs the daemon
// until a termination signal arrives.
package daemonrun
