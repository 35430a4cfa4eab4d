package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind distinguishes the two sides of a double-entry pair. A credit
// increases the account's derived balance, a debit decreases it.
type EntryKind string

const (
	EntryDebit  EntryKind = "debit"
	EntryCredit EntryKind = "credit"
)

// LedgerEntry is one immutable record of a balance movement for one account.
// Amount is always stored positive; the kind carries the sign. Entries are
// only ever appended, never updated or deleted.
type LedgerEntry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	TransactionID string          `json:"transaction_id"`
	Kind          EntryKind       `json:"kind"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Signed returns the entry's contribution to the derived balance.
func (e LedgerEntry) Signed() decimal.Decimal {
	if e.Kind == EntryDebit {
		return e.Amount.Neg()
	}
	return e.Amount
}
