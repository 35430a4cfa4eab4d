package interfaces

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/account-ledger-service/internal/models"
)

// LedgerStore is the persistence boundary for accounts, ledger entries and
// transaction records. Entries and transactions are append-only: no
// implementation exposes an update or delete operation.
type LedgerStore interface {
	CreateAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, accountID string) (models.Account, error)

	// Balance derives the account's balance by folding its ledger entries.
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// EntriesByAccount returns one page of the account's entries, newest
	// first, plus the total entry count for the account. Re-querying with
	// the same limit/offset and no intervening writes returns identical
	// results.
	EntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, int64, error)

	// BeginTransfer opens the atomic unit a funds movement runs in. All
	// writes staged on the returned TransferTx become visible together on
	// Commit, or not at all.
	BeginTransfer(ctx context.Context) (TransferTx, error)
}

// TransferTx is one in-flight funds movement. Lock acquisition, the balance
// re-read and all writes happen against the same storage transaction, so the
// balance seen after locking cannot be invalidated by a concurrent movement.
type TransferTx interface {
	// LockAccount takes an exclusive row-level lock on the account and
	// returns its current row. Lock waits are bounded by the store's
	// configured timeout; expiry surfaces as ErrConflict.
	LockAccount(ctx context.Context, accountID string) (models.Account, error)

	// Balance folds the account's entries as seen by this transaction.
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)

	SaveTransaction(ctx context.Context, tx models.Transaction) error
	SaveEntry(ctx context.Context, entry models.LedgerEntry) error

	Commit() error
	Rollback() error
}
