package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Gateway error kinds. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write lost (already completed, already owned).
	ErrConflict = errors.New("conflict")
	// ErrUnavailable is returned for any network, driver, or timeout failure.
	ErrUnavailable = errors.New("store unavailable")
)

// classify maps a GORM/driver error onto the gateway error kinds.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict), errors.Is(err, ErrUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		// Timeouts and cancellations land here too.
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
}
