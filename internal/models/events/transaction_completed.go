package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionCompleted is published after a transaction commits. It is
// emitted post-commit only; a rejected attempt never produces an event.
type TransactionCompleted struct {
	TransactionID        string          `json:"transaction_id"`
	Type                 string          `json:"type"`
	SourceAccountID      string          `json:"source_account_id,omitempty"`
	DestinationAccountID string          `json:"destination_account_id,omitempty"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	OccurredAt           time.Time       `json:"occurred_at"`
}
