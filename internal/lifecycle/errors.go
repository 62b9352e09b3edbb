package lifecycle

import (
	"errors"
	"fmt"

	"github.com/example/ride-assist/internal/driver"
)

// Domain-rule violations. A rejected transition leaves every partition
// and aggregate unchanged.
var (
	ErrInvalidState       = errors.New("ride is not in the expected state")
	ErrDriverUnavailable  = errors.New("driver is not available")
	ErrNoActiveRide       = errors.New("no active ride for driver")
	ErrNoRideToRate       = errors.New("no ride awaiting rating")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateContact   = errors.New("phone number already registered")
	ErrUnratedRide        = errors.New("passenger has an unrated ride awaiting rating")
	ErrDriverOnRide       = errors.New("driver is on an active ride")

	// ErrDuplicateUsername surfaces the registry's own sentinel.
	ErrDuplicateUsername = driver.ErrDuplicateUsername
)

// ValidationError reports an empty or out-of-range input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return e.Field + " is required"
}

// StorageError wraps a persistence gateway failure. The in-memory state
// is left as it was before the failed operation.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage: " + e.Op + ": " + e.Err.Error() }
func (e *StorageError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
