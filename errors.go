package billing

import (
	"errors"
	"fmt"

	"github.com/civicledger/billing/household"
	"github.com/civicledger/billing/mirror"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("billing: not found")
	ErrAlreadyExists = errors.New("billing: already exists")
	ErrInvalidInput  = errors.New("billing: invalid input")
	ErrConflict      = errors.New("billing: concurrent modification")

	// Fee schedule errors
	ErrUnknownFeeType  = errors.New("billing: unknown fee type")
	ErrUnknownCategory = errors.New("billing: unknown fee category")
	ErrInvalidFeeValue = errors.New("billing: fee value must be positive")
	ErrInvalidPeriod   = errors.New("billing: invalid billing period")

	// Utility payment errors
	ErrRecordNotFound   = errors.New("billing: payment record not found")
	ErrDuplicateRecord  = errors.New("billing: payment record already exists")
	ErrEntryNotFound    = errors.New("billing: payment entry not found")
	ErrInvalidAmount    = errors.New("billing: payment amount must be positive")
	ErrRecordHasEntries = errors.New("billing: record still has payment entries")

	// Transaction errors
	ErrTransactionNotFound = errors.New("billing: transaction not found")
	ErrInvalidKind         = errors.New("billing: invalid transaction kind")

	// Mirror errors
	ErrChainUnavailable = errors.New("billing: mirror chain unavailable")
	ErrMirrorQueueFull  = errors.New("billing: mirror queue full")

	// Store errors
	ErrStoreNotReady   = errors.New("billing: store not ready")
	ErrStoreClosed     = errors.New("billing: store is closed")
	ErrMigrationFailed = errors.New("billing: migration failed")
)

// ErrHouseholdNotFound is returned when a household ID does not resolve
// against the directory. It aliases household.ErrNotFound so directory
// implementations and engine callers agree on one sentinel.
var ErrHouseholdNotFound = household.ErrNotFound

// ErrMirrorNotRegistered aliases mirror.ErrNotRegistered for callers that
// only import the root package.
var ErrMirrorNotRegistered = mirror.ErrNotRegistered

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("billing: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrHouseholdNotFound)
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsRetryable reports whether the operation that produced err can be
// retried as-is. Version conflicts and a temporarily unreachable mirror
// chain are retryable; validation and not-found errors are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrChainUnavailable)
}
