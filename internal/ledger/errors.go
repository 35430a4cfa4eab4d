package ledger

import "errors"

// Validation errors are reported before any lock attempt and never touch
// storage.
var (
	ErrInvalidAmount    = errors.New("amount must be a positive decimal")
	ErrInvalidCurrency  = errors.New("currency must be a 3-letter code")
	ErrMissingAccount   = errors.New("account id is required")
	ErrSameAccount      = errors.New("source and destination accounts must differ")
	ErrCurrencyMismatch = errors.New("currency does not match account currency")
	ErrAccountNotActive = errors.New("account is not active")
)

var validationErrs = []error{
	ErrInvalidAmount,
	ErrInvalidCurrency,
	ErrMissingAccount,
	ErrSameAccount,
	ErrCurrencyMismatch,
	ErrAccountNotActive,
}

// IsValidation reports whether err is a malformed-input rejection, as opposed
// to a business or storage failure.
func IsValidation(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
