// Package ledger owns the only write path for funds movement. Every
// movement is recorded as double-entry ledger rows derived from an
// append-only log; balances are always computed from the log, never stored.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/account-ledger-service/internal/models"
	"github.com/sheikh-saqib/account-ledger-service/internal/models/events"
	"github.com/sheikh-saqib/account-ledger-service/pkg/metrics"
)

// TopicTransactionCompleted is the event topic for committed transactions.
const TopicTransactionCompleted = "transaction_completed"

// Ledger coordinates validation, locking and the atomic write of a funds
// movement. All cross-invocation coordination is pushed down to the store's
// locking; the service itself holds no mutable state.
type Ledger struct {
	store     interfaces.LedgerStore
	publisher interfaces.EventPublisher
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewLedger wires the service. publisher and collector may be nil; logger
// defaults to a no-op logger.
func NewLedger(store interfaces.LedgerStore, publisher interfaces.EventPublisher, collector *metrics.Collector, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		store:     store,
		publisher: publisher,
		collector: collector,
		logger:    logger,
	}
}

// CreateAccount registers a new account with a fixed currency. Balances
// start at zero: an account with no entries has no funds.
func (l *Ledger) CreateAccount(ctx context.Context, userID, accountType, currency string) (models.Account, error) {
	if userID == "" {
		return models.Account{}, fmt.Errorf("%w: user id", ErrMissingAccount)
	}
	if err := validateCurrency(currency); err != nil {
		return models.Account{}, err
	}

	account := models.Account{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      accountType,
		Currency:  currency,
		Status:    models.AccountActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.store.CreateAccount(ctx, account); err != nil {
		return models.Account{}, err
	}

	l.collector.IncAccountsCreated()
	l.logger.Info("account created",
		zap.String("account_id", account.ID),
		zap.String("currency", account.Currency))
	return account, nil
}

// GetAccount looks up an account by id.
func (l *Ledger) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	if accountID == "" {
		return models.Account{}, ErrMissingAccount
	}
	return l.store.GetAccount(ctx, accountID)
}

// GetBalance derives the account's current balance from its ledger entries.
func (l *Ledger) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if accountID == "" {
		return decimal.Zero, ErrMissingAccount
	}
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return decimal.Zero, err
	}
	return l.store.Balance(ctx, accountID)
}

// GetLedger returns one page of the account's entries, newest first, plus
// the total entry count.
func (l *Ledger) GetLedger(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, int64, error) {
	if accountID == "" {
		return nil, 0, ErrMissingAccount
	}
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, 0, err
	}
	return l.store.EntriesByAccount(ctx, accountID, limit, offset)
}

// CreateTransfer moves amount from the source account to the destination
// account, or fails with no visible effect. Locks on the two account rows
// are always requested in lexicographic id order, whichever direction the
// transfer runs, so two transfers over the same pair can never deadlock.
func (l *Ledger) CreateTransfer(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal, currency string) (record models.Transaction, err error) {
	start := time.Now()
	defer func() {
		l.collector.ObserveTransaction(string(models.TypeTransfer), outcomeFor(err), time.Since(start))
	}()

	if err = validateTransfer(sourceID, destinationID, amount, currency); err != nil {
		return models.Transaction{}, err
	}

	tx, err := l.store.BeginTransfer(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	defer l.rollbackOnError(tx, &err)

	first, second := sourceID, destinationID
	if second < first {
		first, second = second, first
	}
	locked := make(map[string]models.Account, 2)
	for _, id := range []string{first, second} {
		var account models.Account
		if account, err = tx.LockAccount(ctx, id); err != nil {
			return models.Transaction{}, err
		}
		locked[id] = account
	}

	if err = checkAccount(locked[sourceID], currency); err != nil {
		return models.Transaction{}, err
	}
	if err = checkAccount(locked[destinationID], currency); err != nil {
		return models.Transaction{}, err
	}

	// The balance read must happen after the locks: a snapshot taken
	// earlier could be invalidated by a transfer committing in between.
	var balance decimal.Decimal
	if balance, err = tx.Balance(ctx, sourceID); err != nil {
		return models.Transaction{}, err
	}
	if balance.LessThan(amount) {
		err = fmt.Errorf("%w: balance %s, requested %s", interfaces.ErrInsufficientFunds, balance, amount)
		return models.Transaction{}, err
	}

	now := time.Now().UTC()
	record = models.Transaction{
		ID:                   uuid.NewString(),
		Type:                 models.TypeTransfer,
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Currency:             currency,
		Status:               models.StatusCompleted,
		CreatedAt:            now,
	}
	if err = tx.SaveTransaction(ctx, record); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.SaveEntry(ctx, newEntry(sourceID, record.ID, models.EntryDebit, amount, currency, now)); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.SaveEntry(ctx, newEntry(destinationID, record.ID, models.EntryCredit, amount, currency, now)); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Transaction{}, err
	}

	l.collector.AddEntriesAppended(2)
	l.logger.Info("transfer committed",
		zap.String("transaction_id", record.ID),
		zap.String("source_account_id", sourceID),
		zap.String("destination_account_id", destinationID),
		zap.String("amount", amount.String()),
		zap.String("currency", currency))
	l.publishCompleted(ctx, record)
	return record, nil
}

// CreateDeposit credits amount to the account as a single-entry transaction
// with no source account.
func (l *Ledger) CreateDeposit(ctx context.Context, accountID string, amount decimal.Decimal, currency string) (record models.Transaction, err error) {
	start := time.Now()
	defer func() {
		l.collector.ObserveTransaction(string(models.TypeDeposit), outcomeFor(err), time.Since(start))
	}()

	if err = validateSingleLeg(accountID, amount, currency); err != nil {
		return models.Transaction{}, err
	}

	tx, err := l.store.BeginTransfer(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	defer l.rollbackOnError(tx, &err)

	var account models.Account
	if account, err = tx.LockAccount(ctx, accountID); err != nil {
		return models.Transaction{}, err
	}
	if err = checkAccount(account, currency); err != nil {
		return models.Transaction{}, err
	}

	now := time.Now().UTC()
	record = models.Transaction{
		ID:                   uuid.NewString(),
		Type:                 models.TypeDeposit,
		DestinationAccountID: accountID,
		Amount:               amount,
		Currency:             currency,
		Status:               models.StatusCompleted,
		CreatedAt:            now,
	}
	if err = tx.SaveTransaction(ctx, record); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.SaveEntry(ctx, newEntry(accountID, record.ID, models.EntryCredit, amount, currency, now)); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Transaction{}, err
	}

	l.collector.AddEntriesAppended(1)
	l.logger.Info("deposit committed",
		zap.String("transaction_id", record.ID),
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()))
	l.publishCompleted(ctx, record)
	return record, nil
}

// CreateWithdrawal debits amount from the account, subject to the same
// non-negative balance rule as a transfer.
func (l *Ledger) CreateWithdrawal(ctx context.Context, accountID string, amount decimal.Decimal, currency string) (record models.Transaction, err error) {
	start := time.Now()
	defer func() {
		l.collector.ObserveTransaction(string(models.TypeWithdrawal), outcomeFor(err), time.Since(start))
	}()

	if err = validateSingleLeg(accountID, amount, currency); err != nil {
		return models.Transaction{}, err
	}

	tx, err := l.store.BeginTransfer(ctx)
	if err != nil {
		return models.Transaction{}, err
	}
	defer l.rollbackOnError(tx, &err)

	var account models.Account
	if account, err = tx.LockAccount(ctx, accountID); err != nil {
		return models.Transaction{}, err
	}
	if err = checkAccount(account, currency); err != nil {
		return models.Transaction{}, err
	}

	var balance decimal.Decimal
	if balance, err = tx.Balance(ctx, accountID); err != nil {
		return models.Transaction{}, err
	}
	if balance.LessThan(amount) {
		err = fmt.Errorf("%w: balance %s, requested %s", interfaces.ErrInsufficientFunds, balance, amount)
		return models.Transaction{}, err
	}

	now := time.Now().UTC()
	record = models.Transaction{
		ID:              uuid.NewString(),
		Type:            models.TypeWithdrawal,
		SourceAccountID: accountID,
		Amount:          amount,
		Currency:        currency,
		Status:          models.StatusCompleted,
		CreatedAt:       now,
	}
	if err = tx.SaveTransaction(ctx, record); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.SaveEntry(ctx, newEntry(accountID, record.ID, models.EntryDebit, amount, currency, now)); err != nil {
		return models.Transaction{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Transaction{}, err
	}

	l.collector.AddEntriesAppended(1)
	l.logger.Info("withdrawal committed",
		zap.String("transaction_id", record.ID),
		zap.String("account_id", accountID),
		zap.String("amount", amount.String()))
	l.publishCompleted(ctx, record)
	return record, nil
}

func (l *Ledger) rollbackOnError(tx interfaces.TransferTx, err *error) {
	if *err == nil {
		return
	}
	if rbErr := tx.Rollback(); rbErr != nil {
		l.logger.Warn("rollback failed", zap.Error(rbErr))
	}
}

func (l *Ledger) publishCompleted(ctx context.Context, record models.Transaction) {
	if l.publisher == nil {
		return
	}
	event := events.TransactionCompleted{
		TransactionID:        record.ID,
		Type:                 string(record.Type),
		SourceAccountID:      record.SourceAccountID,
		DestinationAccountID: record.DestinationAccountID,
		Amount:               record.Amount,
		Currency:             record.Currency,
		OccurredAt:           record.CreatedAt,
	}
	// The transaction already committed; a publish failure is logged, not
	// surfaced.
	if err := l.publisher.Publish(ctx, TopicTransactionCompleted, event); err != nil {
		l.logger.Warn("failed to publish transaction event",
			zap.String("transaction_id", record.ID),
			zap.Error(err))
	}
}

func checkAccount(account models.Account, currency string) error {
	if account.Status != models.AccountActive {
		return fmt.Errorf("%w: account %s is %s", ErrAccountNotActive, account.ID, account.Status)
	}
	if account.Currency != currency {
		return fmt.Errorf("%w: account %s holds %s", ErrCurrencyMismatch, account.ID, account.Currency)
	}
	return nil
}

func newEntry(accountID, transactionID string, kind models.EntryKind, amount decimal.Decimal, currency string, at time.Time) models.LedgerEntry {
	return models.LedgerEntry{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		TransactionID: transactionID,
		Kind:          kind,
		Amount:        amount,
		Currency:      currency,
		CreatedAt:     at,
	}
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeCompleted
	case IsValidation(err):
		return metrics.OutcomeRejectedInput
	case errors.Is(err, interfaces.ErrNotFound):
		return metrics.OutcomeRejectedNotFound
	case errors.Is(err, interfaces.ErrInsufficientFunds):
		return metrics.OutcomeRejectedFunds
	case errors.Is(err, interfaces.ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeStorageError
	}
}
