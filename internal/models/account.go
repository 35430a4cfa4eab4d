package models

import "time"

type AccountStatus string

const (
	AccountActive AccountStatus = "active"
	AccountClosed AccountStatus = "closed"
)

// Account identifies a holder of funds. Currency is fixed at creation and is
// never mutated by a transfer; balances are derived from ledger entries, not
// stored here.
type Account struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Type      string        `json:"type"`
	Currency  string        `json:"currency"`
	Status    AccountStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}
