package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/account-ledger-service/internal/models"
	"github.com/sheikh-saqib/account-ledger-service/internal/storage/memory"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []any
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// newFundedLedger returns a service over a memory store with two USD
// accounts, the first funded with the given opening balance via a deposit.
func newFundedLedger(t *testing.T, opening string) (*Ledger, *memory.MemoryLedgerStore, models.Account, models.Account) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()
	service := NewLedger(store, nil, nil, nil)

	source, err := service.CreateAccount(ctx, "11111111-1111-1111-1111-111111111111", "checking", "USD")
	require.NoError(t, err)
	destination, err := service.CreateAccount(ctx, "22222222-2222-2222-2222-222222222222", "checking", "USD")
	require.NoError(t, err)

	if opening != "" {
		_, err = service.CreateDeposit(ctx, source.ID, dec(t, opening), "USD")
		require.NoError(t, err)
	}
	return service, store, source, destination
}

func TestCreateTransferSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, store, source, destination := newFundedLedger(t, "100.00")

	record, err := service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "40.00"), "USD")
	require.NoError(t, err)

	assert.Equal(t, models.TypeTransfer, record.Type)
	assert.Equal(t, models.StatusCompleted, record.Status)
	assert.Equal(t, source.ID, record.SourceAccountID)
	assert.Equal(t, destination.ID, record.DestinationAccountID)
	assert.True(t, record.Amount.Equal(dec(t, "40.00")))

	sourceBalance, err := service.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, sourceBalance.Equal(dec(t, "60.00")), "source balance %s", sourceBalance)

	destBalance, err := service.GetBalance(ctx, destination.ID)
	require.NoError(t, err)
	assert.True(t, destBalance.Equal(dec(t, "40.00")), "destination balance %s", destBalance)

	stored, ok := store.Transaction(record.ID)
	require.True(t, ok)
	assert.Equal(t, models.StatusCompleted, stored.Status)
}

// Every committed transfer produces exactly one debit on the source and one
// credit on the destination, with equal amounts and the same transaction id.
func TestTransferPairingInvariant(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")

	record, err := service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "25.50"), "USD")
	require.NoError(t, err)

	sourceEntries, _, err := service.GetLedger(ctx, source.ID, 10, 0)
	require.NoError(t, err)
	destEntries, _, err := service.GetLedger(ctx, destination.ID, 10, 0)
	require.NoError(t, err)

	var debits, credits []models.LedgerEntry
	for _, e := range sourceEntries {
		if e.TransactionID == record.ID {
			debits = append(debits, e)
		}
	}
	for _, e := range destEntries {
		if e.TransactionID == record.ID {
			credits = append(credits, e)
		}
	}

	require.Len(t, debits, 1)
	require.Len(t, credits, 1)
	assert.Equal(t, models.EntryDebit, debits[0].Kind)
	assert.Equal(t, models.EntryCredit, credits[0].Kind)
	assert.True(t, debits[0].Amount.Equal(credits[0].Amount))
	assert.Equal(t, debits[0].Currency, credits[0].Currency)
}

func TestCreateTransferInsufficientFunds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")

	_, err := service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "100.50"), "USD")
	require.ErrorIs(t, err, interfaces.ErrInsufficientFunds)

	// A rejected transfer leaves both ledgers byte-for-byte unchanged.
	sourceBalance, err := service.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, sourceBalance.Equal(dec(t, "100.00")))

	destBalance, err := service.GetBalance(ctx, destination.ID)
	require.NoError(t, err)
	assert.True(t, destBalance.IsZero())

	_, sourceTotal, err := service.GetLedger(ctx, source.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sourceTotal, "only the opening deposit")

	_, destTotal, err := service.GetLedger(ctx, destination.ID, 10, 0)
	require.NoError(t, err)
	assert.Zero(t, destTotal)
}

func TestCreateTransferSelfTransferRejected(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, _ := newFundedLedger(t, "100.00")

	_, err := service.CreateTransfer(ctx, source.ID, source.ID, dec(t, "10.00"), "USD")
	require.ErrorIs(t, err, ErrSameAccount)
	assert.True(t, IsValidation(err))
}

func TestCreateTransferValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")

	cases := []struct {
		name     string
		source   string
		dest     string
		amount   string
		currency string
		want     error
	}{
		{"zero amount", source.ID, destination.ID, "0", "USD", ErrInvalidAmount},
		{"negative amount", source.ID, destination.ID, "-5.00", "USD", ErrInvalidAmount},
		{"malformed currency", source.ID, destination.ID, "10.00", "usd", ErrInvalidCurrency},
		{"long currency", source.ID, destination.ID, "10.00", "USDT", ErrInvalidCurrency},
		{"missing source", "", destination.ID, "10.00", "USD", ErrMissingAccount},
		{"missing destination", source.ID, "", "10.00", "USD", ErrMissingAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateTransfer(ctx, tc.source, tc.dest, dec(t, tc.amount), tc.currency)
			require.ErrorIs(t, err, tc.want)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestCreateTransferUnknownAccount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, _ := newFundedLedger(t, "100.00")

	_, err := service.CreateTransfer(ctx, source.ID, "00000000-0000-0000-0000-000000000000", dec(t, "10.00"), "USD")
	require.ErrorIs(t, err, interfaces.ErrNotFound)

	balance, err := service.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(t, "100.00")))
}

func TestCreateTransferCurrencyMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()
	service := NewLedger(store, nil, nil, nil)

	usd, err := service.CreateAccount(ctx, "11111111-1111-1111-1111-111111111111", "checking", "USD")
	require.NoError(t, err)
	eur, err := service.CreateAccount(ctx, "22222222-2222-2222-2222-222222222222", "checking", "EUR")
	require.NoError(t, err)
	_, err = service.CreateDeposit(ctx, usd.ID, dec(t, "50.00"), "USD")
	require.NoError(t, err)

	_, err = service.CreateTransfer(ctx, usd.ID, eur.ID, dec(t, "10.00"), "USD")
	require.ErrorIs(t, err, ErrCurrencyMismatch)
}

// Scenario: balance 100, two concurrent 60.00 transfers to different
// destinations. Exactly one commits; the loser sees the committed debit once
// it acquires the lock and is rejected, so the balance never goes negative.
func TestConcurrentTransfersExactlyOneSucceeds(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")

	third, err := service.CreateAccount(ctx, "33333333-3333-3333-3333-333333333333", "checking", "USD")
	require.NoError(t, err)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for _, dest := range []string{destination.ID, third.ID} {
		wg.Add(1)
		go func(destID string) {
			defer wg.Done()
			_, err := service.CreateTransfer(ctx, source.ID, destID, dec(t, "60.00"), "USD")
			results <- err
		}(dest)
	}
	wg.Wait()
	close(results)

	var succeeded, rejected int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
			rejected++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	balance, err := service.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(t, "40.00")), "final source balance %s", balance)
	assert.False(t, balance.IsNegative())
}

// Transfers over the same pair in opposite directions always request locks
// in the same order, so a storm of them cannot deadlock and the total is
// conserved.
func TestOpposingTransfersConserveTotal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, a, b := newFundedLedger(t, "100.00")
	_, err := service.CreateDeposit(ctx, b.ID, dec(t, "100.00"), "USD")
	require.NoError(t, err)

	const rounds = 20
	var wg sync.WaitGroup
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = service.CreateTransfer(ctx, a.ID, b.ID, dec(t, "1.00"), "USD")
		}()
		go func() {
			defer wg.Done()
			_, _ = service.CreateTransfer(ctx, b.ID, a.ID, dec(t, "1.00"), "USD")
		}()
	}
	wg.Wait()

	balanceA, err := service.GetBalance(ctx, a.ID)
	require.NoError(t, err)
	balanceB, err := service.GetBalance(ctx, b.ID)
	require.NoError(t, err)

	assert.True(t, balanceA.Add(balanceB).Equal(dec(t, "200.00")),
		"total %s", balanceA.Add(balanceB))
	assert.False(t, balanceA.IsNegative())
	assert.False(t, balanceB.IsNegative())
}

// balance(A) must always equal the fold over A's full ledger.
func TestBalanceMatchesLedgerFold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")

	for i := 0; i < 5; i++ {
		_, err := service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "7.25"), "USD")
		require.NoError(t, err)
	}
	_, err := service.CreateWithdrawal(ctx, source.ID, dec(t, "10.00"), "USD")
	require.NoError(t, err)

	for _, id := range []string{source.ID, destination.ID} {
		entries, total, err := service.GetLedger(ctx, id, 100, 0)
		require.NoError(t, err)
		require.Equal(t, int64(len(entries)), total)

		folded := decimal.Zero
		for _, e := range entries {
			folded = folded.Add(e.Signed())
		}

		balance, err := service.GetBalance(ctx, id)
		require.NoError(t, err)
		assert.True(t, balance.Equal(folded), "account %s: balance %s fold %s", id, balance, folded)
	}
}

func TestGetLedgerRestartableRead(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")
	_, err := service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "5.00"), "USD")
	require.NoError(t, err)

	first, firstTotal, err := service.GetLedger(ctx, source.ID, 1, 0)
	require.NoError(t, err)
	second, secondTotal, err := service.GetLedger(ctx, source.ID, 1, 0)
	require.NoError(t, err)

	assert.Equal(t, firstTotal, secondTotal)
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestGetLedgerPagination(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, destination := newFundedLedger(t, "100.00")

	var ids []string
	for i := 1; i <= 3; i++ {
		record, err := service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, fmt.Sprintf("%d.00", i)), "USD")
		require.NoError(t, err)
		ids = append(ids, record.ID)
	}

	// Newest first: page 0 is the last transfer's debit.
	page, total, err := service.GetLedger(ctx, source.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total, "opening deposit plus three debits")
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].TransactionID)

	page, _, err = service.GetLedger(ctx, source.ID, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].TransactionID)
	assert.Equal(t, ids[0], page[1].TransactionID)

	page, total, err = service.GetLedger(ctx, source.ID, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Empty(t, page)
}

func TestCreateDeposit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, _ := newFundedLedger(t, "")

	record, err := service.CreateDeposit(ctx, source.ID, dec(t, "15.00"), "USD")
	require.NoError(t, err)
	assert.Equal(t, models.TypeDeposit, record.Type)
	assert.Empty(t, record.SourceAccountID)
	assert.Equal(t, source.ID, record.DestinationAccountID)

	entries, total, err := service.GetLedger(ctx, source.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, models.EntryCredit, entries[0].Kind)
}

func TestCreateWithdrawal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	service, _, source, _ := newFundedLedger(t, "30.00")

	record, err := service.CreateWithdrawal(ctx, source.ID, dec(t, "12.50"), "USD")
	require.NoError(t, err)
	assert.Equal(t, models.TypeWithdrawal, record.Type)
	assert.Equal(t, source.ID, record.SourceAccountID)
	assert.Empty(t, record.DestinationAccountID)

	balance, err := service.GetBalance(ctx, source.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec(t, "17.50")))

	_, err = service.CreateWithdrawal(ctx, source.ID, dec(t, "100.00"), "USD")
	require.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
}

func TestEventPublishedOnlyOnCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()
	publisher := &capturingPublisher{}
	service := NewLedger(store, publisher, nil, nil)

	source, err := service.CreateAccount(ctx, "11111111-1111-1111-1111-111111111111", "checking", "USD")
	require.NoError(t, err)
	destination, err := service.CreateAccount(ctx, "22222222-2222-2222-2222-222222222222", "checking", "USD")
	require.NoError(t, err)

	_, err = service.CreateDeposit(ctx, source.ID, dec(t, "20.00"), "USD")
	require.NoError(t, err)
	require.Equal(t, 1, publisher.count())

	_, err = service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "50.00"), "USD")
	require.ErrorIs(t, err, interfaces.ErrInsufficientFunds)
	assert.Equal(t, 1, publisher.count(), "rejected transfer must not publish")

	_, err = service.CreateTransfer(ctx, source.ID, destination.ID, dec(t, "10.00"), "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, publisher.count())
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	t.Parallel()
	service, _, _, _ := newFundedLedger(t, "")

	_, err := service.GetBalance(context.Background(), "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestCreateAccountValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.NewMemoryLedgerStore()
	service := NewLedger(store, nil, nil, nil)

	_, err := service.CreateAccount(ctx, "", "checking", "USD")
	require.ErrorIs(t, err, ErrMissingAccount)

	_, err = service.CreateAccount(ctx, "11111111-1111-1111-1111-111111111111", "checking", "dollars")
	require.ErrorIs(t, err, ErrInvalidCurrency)
}
