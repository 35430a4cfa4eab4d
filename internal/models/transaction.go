package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeTransfer   TransactionType = "transfer"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
)

type TransactionStatus string

const (
	StatusCompleted TransactionStatus = "completed"
	// StatusFailed is part of the schema for audit trails but is never
	// persisted today: rejected attempts leave no trace.
	StatusFailed TransactionStatus = "failed"
)

// Transaction is the audit envelope for one funds movement. For a transfer
// both account ids are set and distinct; a deposit has only a destination,
// a withdrawal only a source.
type Transaction struct {
	ID                   string            `json:"id"`
	Type                 TransactionType   `json:"type"`
	SourceAccountID      string            `json:"source_account_id,omitempty"`
	DestinationAccountID string            `json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	Status               TransactionStatus `json:"status"`
	CreatedAt            time.Time         `json:"created_at"`
}
