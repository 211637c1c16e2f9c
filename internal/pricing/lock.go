package pricing

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"pricewatch/internal/services"
)

// AcquireSweepLock takes the cross-process sweep lock at path. It fails with
// ErrSweepInFlight when another sweep holds it. The returned func releases
// the lock.
func AcquireSweepLock(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrSweepInFlight, "pricing", "lock", path, nil)
	}
	return func() { _ = lock.Unlock() }, nil
}
