// Package memory implements the ledger store in process memory. It mirrors
// the postgres store's locking contract with per-account timed locks and
// staged writes, which makes conflict and atomicity behavior testable
// without a database.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/account-ledger-service/internal/models"
)

const defaultLockTimeout = 3 * time.Second

type accountState struct {
	account models.Account
	// lock is a one-slot channel used as the account's row lock, so
	// acquisition can be bounded by a timeout and by ctx.
	lock chan struct{}
}

type MemoryLedgerStore struct {
	mu           sync.Mutex
	accounts     map[string]*accountState
	entries      map[string][]models.LedgerEntry // per account, append order
	transactions map[string]models.Transaction
	lockTimeout  time.Duration
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		accounts:     make(map[string]*accountState),
		entries:      make(map[string][]models.LedgerEntry),
		transactions: make(map[string]models.Transaction),
		lockTimeout:  defaultLockTimeout,
	}
}

// SetLockTimeout bounds how long LockAccount waits on a contended account.
func (m *MemoryLedgerStore) SetLockTimeout(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockTimeout = d
}

func (m *MemoryLedgerStore) CreateAccount(ctx context.Context, account models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[account.ID]; exists {
		return fmt.Errorf("%w: %s", interfaces.ErrDuplicate, account.ID)
	}
	m.accounts[account.ID] = &accountState{
		account: account,
		lock:    make(chan struct{}, 1),
	}
	return nil
}

func (m *MemoryLedgerStore) GetAccount(ctx context.Context, accountID string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.accounts[accountID]
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrNotFound, accountID)
	}
	return state.account, nil
}

// Balance folds the account's committed entries: credits add, debits
// subtract, starting from zero.
func (m *MemoryLedgerStore) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	balance := decimal.Zero
	for _, entry := range m.entries[accountID] {
		balance = balance.Add(entry.Signed())
	}
	return balance, nil
}

func (m *MemoryLedgerStore) EntriesByAccount(ctx context.Context, accountID string, limit, offset int) ([]models.LedgerEntry, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := m.entries[accountID]
	total := int64(len(all))

	// Newest first: entries are appended in commit order.
	newest := make([]models.LedgerEntry, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		newest = append(newest, all[i])
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(newest) {
		return []models.LedgerEntry{}, total, nil
	}
	newest = newest[offset:]
	if limit > 0 && limit < len(newest) {
		newest = newest[:limit]
	}
	return newest, total, nil
}

func (m *MemoryLedgerStore) BeginTransfer(ctx context.Context) (interfaces.TransferTx, error) {
	return &transferTx{store: m}, nil
}

// transferTx stages writes and holds the account locks it acquired until
// Commit or Rollback. Commit applies every staged write under the store
// mutex, so they become visible together.
type transferTx struct {
	store          *MemoryLedgerStore
	locked         []string
	pendingTxs     []models.Transaction
	pendingEntries []models.LedgerEntry
	done           bool
}

func (t *transferTx) LockAccount(ctx context.Context, accountID string) (models.Account, error) {
	t.store.mu.Lock()
	state, ok := t.store.accounts[accountID]
	timeout := t.store.lockTimeout
	t.store.mu.Unlock()
	if !ok {
		return models.Account{}, fmt.Errorf("%w: %s", interfaces.ErrNotFound, accountID)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case state.lock <- struct{}{}:
	case <-ctx.Done():
		return models.Account{}, fmt.Errorf("%w: %v", interfaces.ErrConflict, ctx.Err())
	case <-timer.C:
		return models.Account{}, fmt.Errorf("%w: lock wait timeout on account %s", interfaces.ErrConflict, accountID)
	}
	t.locked = append(t.locked, accountID)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return state.account, nil
}

func (t *transferTx) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	// Writers lock an account before appending to it, so while this tx
	// holds the lock the committed entries for the account are stable.
	return t.store.Balance(ctx, accountID)
}

func (t *transferTx) SaveTransaction(ctx context.Context, tx models.Transaction) error {
	if tx.Amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("%w: non-positive transaction amount", interfaces.ErrStorage)
	}
	t.pendingTxs = append(t.pendingTxs, tx)
	return nil
}

func (t *transferTx) SaveEntry(ctx context.Context, entry models.LedgerEntry) error {
	if entry.Amount.Cmp(decimal.Zero) <= 0 {
		return fmt.Errorf("%w: non-positive entry amount", interfaces.ErrStorage)
	}
	if entry.Kind != models.EntryDebit && entry.Kind != models.EntryCredit {
		return fmt.Errorf("%w: unknown entry kind %q", interfaces.ErrStorage, entry.Kind)
	}
	t.pendingEntries = append(t.pendingEntries, entry)
	return nil
}

func (t *transferTx) Commit() error {
	if t.done {
		return fmt.Errorf("%w: transaction already finished", interfaces.ErrStorage)
	}

	t.store.mu.Lock()
	for _, tx := range t.pendingTxs {
		t.store.transactions[tx.ID] = tx
	}
	for _, entry := range t.pendingEntries {
		t.store.entries[entry.AccountID] = append(t.store.entries[entry.AccountID], entry)
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

func (t *transferTx) Rollback() error {
	if t.done {
		return nil
	}
	t.pendingTxs = nil
	t.pendingEntries = nil
	t.finish()
	return nil
}

func (t *transferTx) finish() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, id := range t.locked {
		if state, ok := t.store.accounts[id]; ok {
			<-state.lock
		}
	}
	t.locked = nil
	t.done = true
}

// Transaction returns a committed transaction record, for tests.
func (m *MemoryLedgerStore) Transaction(id string) (models.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[id]
	return tx, ok
}

var _ interfaces.LedgerStore = (*MemoryLedgerStore)(nil)
