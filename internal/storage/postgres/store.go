// Package postgres implements the ledger store on postgres via database/sql
// and lib/pq. Funds movements run in serializable transactions with
// row-level FOR UPDATE locks; amounts live in NUMERIC columns and are
// scanned straight into decimals, so no float ever touches a balance.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/account-ledger-service/internal/models"
)

type PostgresLedgerStore struct {
	db          *sql.DB
	lockTimeout time.Duration
}

func NewPostgresLedgerStore(db *sql.DB, lockTimeout time.Duration) *PostgresLedgerStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &PostgresLedgerStore{
		db:          db,
		lockTimeout: lockTimeout,
	}
}

func (p *PostgresLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	const query = `INSERT INTO accounts (id, user_id, type, currency, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.UserID, account.Type, account.Currency, account.Status, account.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (p *PostgresLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	const query = `SELECT id, user_id, type, currency, status, created_at
	FROM accounts WHERE id = $1`

	return scanAccount(p.db.QueryRowContext(ctx, query, accountID), accountID)
}

// Balance folds the account's entries in SQL: credits add, debits subtract.
const balanceQuery = `SELECT COALESCE(SUM(CASE WHEN kind = 'credit' THEN amount ELSE -amount END), 0)
	FROM ledger_entries WHERE account_id = $1`

func (p *PostgresLedgerStore) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := p.db.QueryRowContext(ctx, balanceQuery, accountID).Scan(&balance); err != nil {
		return decimal.Zero, mapError(err)
	}
	return balance, nil
}

func (p *PostgresLedgerStore) EntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, int64, error) {
	const countQuery = `SELECT COUNT(*) FROM ledger_entries WHERE account_id = $1`
	const pageQuery = `SELECT id, account_id, transaction_id, kind, amount, currency, created_at
	FROM ledger_entries
	WHERE account_id = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2 OFFSET $3`

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := p.db.QueryRowContext(ctx, countQuery, accountID).Scan(&total); err != nil {
		return nil, 0, mapError(err)
	}

	rows, err := p.db.QueryContext(ctx, pageQuery, accountID, limit, offset)
	if err != nil {
		return nil, 0, mapError(err)
	}
	defer rows.Close()

	entries := make([]models.LedgerEntry, 0, limit)
	for rows.Next() {
		var entry models.LedgerEntry
		var kind string
		if err := rows.Scan(&entry.ID, &entry.AccountID, &entry.TransactionID,
			&kind, &entry.Amount, &entry.Currency, &entry.CreatedAt); err != nil {
			return nil, 0, mapError(err)
		}
		entry.Kind = models.EntryKind(kind)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapError(err)
	}
	return entries, total, nil
}

// BeginTransfer opens a serializable transaction with a bounded lock wait.
// Serializable keeps one in-flight movement from validating against a
// balance snapshot another movement invalidates.
func (p *PostgresLedgerStore) BeginTransfer(ctx context.Context) (interfaces.TransferTx, error) {
	dbTx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapError(err)
	}

	// lock_timeout cannot be a bind parameter; the value is a configured
	// duration, not user input.
	stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", p.lockTimeout.Milliseconds())
	if _, err := dbTx.ExecContext(ctx, stmt); err != nil {
		_ = dbTx.Rollback()
		return nil, mapError(err)
	}
	return &transferTx{tx: dbTx}, nil
}

type transferTx struct {
	tx *sql.Tx
}

func (t *transferTx) LockAccount(ctx context.Context, accountID string) (models.Account, error) {
	const query = `SELECT id, user_id, type, currency, status, created_at
	FROM accounts WHERE id = $1 FOR UPDATE`

	return scanAccount(t.tx.QueryRowContext(ctx, query, accountID), accountID)
}

func (t *transferTx) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := t.tx.QueryRowContext(ctx, balanceQuery, accountID).Scan(&balance); err != nil {
		return decimal.Zero, mapError(err)
	}
	return balance, nil
}

func (t *transferTx) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	const query = `INSERT INTO transactions (id, type, source_account_id, destination_account_id, amount, currency, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.ExecContext(ctx, query,
		tx.ID, tx.Type, nullable(tx.SourceAccountID), nullable(tx.DestinationAccountID),
		tx.Amount, tx.Currency, tx.Status, tx.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (t *transferTx) SaveEntry(ctx context.Context, entry models.LedgerEntry) error {
	const query = `INSERT INTO ledger_entries (id, account_id, transaction_id, kind, amount, currency, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := t.tx.ExecContext(ctx, query,
		entry.ID, entry.AccountID, entry.TransactionID, entry.Kind,
		entry.Amount, entry.Currency, entry.CreatedAt)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (t *transferTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

func (t *transferTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return mapError(err)
	}
	return nil
}

func scanAccount(row *sql.Row, accountID string) (models.Account, error) {
	var account models.Account
	var status string
	err := row.Scan(&account.ID, &account.UserID, &account.Type,
		&account.Currency, &status, &account.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrNotFound, accountID)
	}
	if err != nil {
		return models.Account{}, mapError(err)
	}
	account.Status = models.AccountStatus(status)
	return account, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// mapError translates driver failures into the store error taxonomy.
// Serialization failures, deadlocks and lock-wait timeouts are retryable
// conflicts; everything else is an opaque storage failure.
func mapError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", interfaces.ErrConflict, pqErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", interfaces.ErrDuplicate, pqErr.Message)
		}
	}
	return fmt.Errorf("%w: %v", interfaces.ErrStorage, err)
}

var _ interfaces.LedgerStore = (*PostgresLedgerStore)(nil)
