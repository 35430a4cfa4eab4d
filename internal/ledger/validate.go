package ledger

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

func validateAmount(amount decimal.Decimal) error {
	if amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	return nil
}

func validateCurrency(currency string) error {
	if !currencyPattern.MatchString(currency) {
		return fmt.Errorf("%w: got %q", ErrInvalidCurrency, currency)
	}
	return nil
}

// validateTransfer runs every structural check before any lock is taken.
func validateTransfer(sourceID, destinationID string, amount decimal.Decimal, currency string) error {
	if sourceID == "" || destinationID == "" {
		return ErrMissingAccount
	}
	if sourceID == destinationID {
		return ErrSameAccount
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	return validateCurrency(currency)
}

func validateSingleLeg(accountID string, amount decimal.Decimal, currency string) error {
	if accountID == "" {
		return ErrMissingAccount
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	return validateCurrency(currency)
}
