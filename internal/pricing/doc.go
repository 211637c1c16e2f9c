// Package pricing runs price sweeps over every tracked item.
//
// A sweep lists the items, assigns each a paced start offset, re-fetches the
// current price, announces qualifying drops and refreshes the stored price
// baseline whenever it changed. Prices are handled as integer minor units so
// the drop rule is exact. Failures are scoped to the item they occur on; the
// only error RunSweep returns is a failure to list items.
//
// Sweeps are serialized across processes with a lock file (AcquireSweepLock);
// the engine itself tolerates concurrent sweeps.
package pricing
