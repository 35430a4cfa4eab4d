package interfaces

import "errors"

var (
	// ErrNotFound indicates a referenced account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate indicates an account with the same id already exists.
	ErrDuplicate = errors.New("account already exists")
	// ErrInsufficientFunds indicates the source balance, re-derived under
	// lock, is below the requested amount. Definitive, not retryable.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConflict indicates a lock-wait timeout or serialization failure.
	// The whole operation may be retried from scratch.
	ErrConflict = errors.New("concurrent transaction conflict")
	// ErrStorage wraps unexpected persistence failures. Fatal for the
	// current operation.
	ErrStorage = errors.New("storage failure")
)
