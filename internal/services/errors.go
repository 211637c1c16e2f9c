package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUpstreamFetch   = errors.New("upstream fetch failed")
	ErrAlreadyTracking = errors.New("already tracking")
	ErrStoreWrite      = errors.New("store write failed")
	ErrValidation      = errors.New("validation error")
	ErrConfiguration   = errors.New("configuration error")
	ErrNotFound        = errors.New("not found")
	ErrSweepInFlight   = errors.New("sweep already in flight")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUpstreamFetch
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short machine-readable classification for err. Unknown errors
// are reported as "internal".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrAlreadyTracking):
		return "already_tracking"
	case errors.Is(err, ErrUpstreamFetch):
		return "upstream_fetch_failed"
	case errors.Is(err, ErrStoreWrite):
		return "store_write_failed"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrSweepInFlight):
		return "sweep_in_flight"
	default:
		return "internal"
	}
}

// MarkerForKind is the inverse of Kind. It returns nil for "internal" and
// unknown kinds.
func MarkerForKind(kind string) error {
	switch kind {
	case "already_tracking":
		return ErrAlreadyTracking
	case "upstream_fetch_failed":
		return ErrUpstreamFetch
	case "store_write_failed":
		return ErrStoreWrite
	case "validation":
		return ErrValidation
	case "configuration":
		return ErrConfiguration
	case "not_found":
		return ErrNotFound
	case "sweep_in_flight":
		return ErrSweepInFlight
	default:
		return nil
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
