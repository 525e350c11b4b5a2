package ledgersvc

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
)

// txSwappingRepo hands out a different repository when bound to a
// transaction, mirroring how the real repository swaps queriers.
type txSwappingRepo struct {
	*MockLedgerRepo
	txRepo ledger.Repository
}

func (r *txSwappingRepo) WithTx(tx pgx.Tx) ledger.Repository { return r.txRepo }

func TestBalanceCalculator_AccountBalance(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("balance is credits minus debits", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		calc := NewBalanceCalculator(logger, repo)

		repo.On("SumByEntryType", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return(ledger.EntrySums{
				Credits: decimal.RequireFromString("250.00"),
				Debits:  decimal.RequireFromString("100.50"),
			}, nil).Once()

		balance, err := calc.AccountBalance(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equal(decimal.RequireFromString("149.50")))
		assert.False(t, balance.Degraded)
	})

	t.Run("negative balance is valid output", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		calc := NewBalanceCalculator(logger, repo)

		repo.On("SumByEntryType", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return(ledger.EntrySums{
				Credits: decimal.RequireFromString("90.00"),
				Debits:  decimal.RequireFromString("135.00"),
			}, nil).Once()

		balance, err := calc.AccountBalance(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equal(decimal.RequireFromString("-45.00")))
	})

	t.Run("aggregation failure falls back to row scan, marked degraded", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		calc := NewBalanceCalculator(logger, repo)

		repo.On("SumByEntryType", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return(ledger.EntrySums{}, errors.New("aggregation timeout")).Once()
		repo.On("ListByAccount", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return([]*ledger.Entry{
				{EntryType: ledger.EntryTypeCredit, Amount: decimal.RequireFromString("90.00")},
				{EntryType: ledger.EntryTypeCredit, Amount: decimal.RequireFromString("60.00")},
				{EntryType: ledger.EntryTypeDebit, Amount: decimal.RequireFromString("25.00")},
			}, nil).Once()

		balance, err := calc.AccountBalance(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		require.NoError(t, err)
		assert.True(t, balance.Amount.Equal(decimal.RequireFromString("125.00")))
		assert.True(t, balance.Degraded)
		repo.AssertExpectations(t)
	})

	t.Run("fallback bypasses a transaction binding", func(t *testing.T) {
		poolRepo := &MockLedgerRepo{}
		txRepo := &MockLedgerRepo{}
		calc := NewBalanceCalculator(logger, &txSwappingRepo{MockLedgerRepo: poolRepo, txRepo: txRepo}).WithTx(nil)

		txRepo.On("SumByEntryType", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return(ledger.EntrySums{}, errors.New("tx aborted")).Once()
		poolRepo.On("ListByAccount", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return([]*ledger.Entry{
				{EntryType: ledger.EntryTypeCredit, Amount: decimal.RequireFromString("40.00")},
			}, nil).Once()

		balance, err := calc.AccountBalance(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		require.NoError(t, err)
		assert.True(t, balance.Degraded)
		assert.True(t, balance.Amount.Equal(decimal.RequireFromString("40.00")))
		txRepo.AssertNotCalled(t, "ListByAccount", ctx, ledger.AccountTypeProviderBalance, "prov-1")
	})

	t.Run("both paths failing is an error", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		calc := NewBalanceCalculator(logger, repo)

		repo.On("SumByEntryType", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return(ledger.EntrySums{}, errors.New("aggregation timeout")).Once()
		repo.On("ListByAccount", ctx, ledger.AccountTypeProviderBalance, "prov-1").
			Return(nil, errors.New("db down")).Once()

		_, err := calc.AccountBalance(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		assert.Error(t, err)
	})
}

func TestLiquidityGuard_VerifyFunds(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	bankSums := func(credits, debits string) ledger.EntrySums {
		return ledger.EntrySums{
			Credits: decimal.RequireFromString(credits),
			Debits:  decimal.RequireFromString(debits),
		}
	}

	t.Run("exact balance covers the transfer", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		guard := NewLiquidityGuard(logger, NewBalanceCalculator(logger, repo))

		repo.On("SumByEntryType", ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID).
			Return(bankSums("500.00", "400.00"), nil).Once()

		ok, available, err := guard.VerifyFunds(ctx, decimal.RequireFromString("100.00"))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, available.Equal(decimal.RequireFromString("100.00")))
	})

	t.Run("one cent short fails the check", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		guard := NewLiquidityGuard(logger, NewBalanceCalculator(logger, repo))

		repo.On("SumByEntryType", ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID).
			Return(bankSums("500.00", "400.00"), nil).Once()

		ok, _, err := guard.VerifyFunds(ctx, decimal.RequireFromString("100.01"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("fails closed when the balance cannot be computed", func(t *testing.T) {
		repo := &MockLedgerRepo{}
		guard := NewLiquidityGuard(logger, NewBalanceCalculator(logger, repo))

		repo.On("SumByEntryType", ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID).
			Return(ledger.EntrySums{}, errors.New("aggregation timeout")).Once()
		repo.On("ListByAccount", ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID).
			Return(nil, errors.New("db down")).Once()

		ok, _, err := guard.VerifyFunds(ctx, decimal.RequireFromString("10.00"))
		assert.Error(t, err)
		assert.False(t, ok)
	})
}
