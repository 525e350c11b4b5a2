package ledgersvc

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
)

type MockPaymentRepo struct {
	mock.Mock
}

func (m *MockPaymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Payment), args.Error(1)
}

func (m *MockPaymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status payment.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockPaymentRepo) SumAmountByStatuses(ctx context.Context, statuses []payment.Status) (decimal.Decimal, error) {
	args := m.Called(ctx, statuses)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPaymentRepo) WithTx(tx pgx.Tx) payment.Repository {
	args := m.Called(tx)
	return args.Get(0).(payment.Repository)
}

type MockRefundRepo struct {
	mock.Mock
}

func (m *MockRefundRepo) Create(ctx context.Context, r *refund.Refund) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepo) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*refund.Refund, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*refund.Refund), args.Error(1)
}

func (m *MockRefundRepo) ListByStatusOlderThan(ctx context.Context, status refund.Status, cutoff time.Time, limit int) ([]*refund.Refund, error) {
	args := m.Called(ctx, status, cutoff, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*refund.Refund), args.Error(1)
}

func (m *MockRefundRepo) SumAmountByPaymentID(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRefundRepo) SumCompletedAmount(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockRefundRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status refund.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRefundRepo) WithTx(tx pgx.Tx) refund.Repository {
	args := m.Called(tx)
	return args.Get(0).(refund.Repository)
}

func TestInvariantChecker_Check(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	sums := func(credits, debits string) ledger.EntrySums {
		return ledger.EntrySums{
			Credits: decimal.RequireFromString(credits),
			Debits:  decimal.RequireFromString(debits),
		}
	}
	d := decimal.RequireFromString

	setup := func() (*MockLedgerRepo, *MockPaymentRepo, *MockRefundRepo, *MockRecorder, *InvariantChecker) {
		entries := &MockLedgerRepo{}
		payments := &MockPaymentRepo{}
		refunds := &MockRefundRepo{}
		recorder := &MockRecorder{}
		checker := NewInvariantChecker(logger, entries, payments, refunds, recorder)
		return entries, payments, refunds, recorder, checker
	}

	t.Run("balanced books pass", func(t *testing.T) {
		entries, payments, refunds, recorder, checker := setup()

		// One 100.00 payment settled: 90.00 escrow, 10.00 fee. Escrow
		// later released: provider debited, bank credited.
		entries.On("SumAccountType", ctx, ledger.AccountTypeProviderBalance).Return(sums("90.00", "90.00"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypePlatformRevenue).Return(sums("10.00", "0"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypeBankAccount).Return(sums("90.00", "0"), nil).Once()
		payments.On("SumAmountByStatuses", ctx, mock.Anything).Return(d("100.00"), nil).Once()
		refunds.On("SumCompletedAmount", ctx).Return(decimal.Zero, nil).Once()
		recorder.On("RecordInvariantReport", ctx, mock.Anything).Return(nil).Once()

		report, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.True(t, report.Valid)
		assert.True(t, report.Discrepancy.IsZero())
	})

	t.Run("missing posting is reported with its discrepancy", func(t *testing.T) {
		entries, payments, refunds, recorder, checker := setup()

		// Platform fee entry never landed: ledger short by 10.00.
		entries.On("SumAccountType", ctx, ledger.AccountTypeProviderBalance).Return(sums("90.00", "0"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypePlatformRevenue).Return(sums("0", "0"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypeBankAccount).Return(sums("0", "0"), nil).Once()
		payments.On("SumAmountByStatuses", ctx, mock.Anything).Return(d("100.00"), nil).Once()
		refunds.On("SumCompletedAmount", ctx).Return(decimal.Zero, nil).Once()
		recorder.On("RecordInvariantReport", ctx, mock.Anything).Return(nil).Once()

		report, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.False(t, report.Valid)
		assert.True(t, report.Discrepancy.Equal(d("-10.00")))
	})

	t.Run("refund reduces the expected total", func(t *testing.T) {
		entries, payments, refunds, recorder, checker := setup()

		// 100.00 payment then a 50.00 refund: 45.00 debited from the
		// provider, 5.00 from platform revenue.
		entries.On("SumAccountType", ctx, ledger.AccountTypeProviderBalance).Return(sums("90.00", "45.00"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypePlatformRevenue).Return(sums("10.00", "5.00"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypeBankAccount).Return(sums("0", "0"), nil).Once()
		payments.On("SumAmountByStatuses", ctx, mock.Anything).Return(d("100.00"), nil).Once()
		refunds.On("SumCompletedAmount", ctx).Return(d("50.00"), nil).Once()
		recorder.On("RecordInvariantReport", ctx, mock.Anything).Return(nil).Once()

		report, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.True(t, report.Valid)
	})

	t.Run("sub-cent drift stays within tolerance", func(t *testing.T) {
		entries, payments, refunds, recorder, checker := setup()

		entries.On("SumAccountType", ctx, ledger.AccountTypeProviderBalance).Return(sums("90.01", "0"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypePlatformRevenue).Return(sums("10.00", "0"), nil).Once()
		entries.On("SumAccountType", ctx, ledger.AccountTypeBankAccount).Return(sums("0", "0"), nil).Once()
		payments.On("SumAmountByStatuses", ctx, mock.Anything).Return(d("100.00"), nil).Once()
		refunds.On("SumCompletedAmount", ctx).Return(decimal.Zero, nil).Once()
		recorder.On("RecordInvariantReport", ctx, mock.Anything).Return(nil).Once()

		report, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.True(t, report.Valid)
	})

	t.Run("archive failure does not fail the check", func(t *testing.T) {
		entries, payments, refunds, recorder, checker := setup()

		entries.On("SumAccountType", ctx, mock.Anything).Return(sums("0", "0"), nil).Times(3)
		payments.On("SumAmountByStatuses", ctx, mock.Anything).Return(decimal.Zero, nil).Once()
		refunds.On("SumCompletedAmount", ctx).Return(decimal.Zero, nil).Once()
		recorder.On("RecordInvariantReport", ctx, mock.Anything).Return(errors.New("mongo down")).Once()

		report, err := checker.Check(ctx)
		require.NoError(t, err)
		assert.True(t, report.Valid)
	})

	t.Run("unreadable totals are an error", func(t *testing.T) {
		entries, _, _, _, checker := setup()

		entries.On("SumAccountType", ctx, ledger.AccountTypeProviderBalance).
			Return(ledger.EntrySums{}, errors.New("db down")).Once()

		_, err := checker.Check(ctx)
		assert.Error(t, err)
	})
}
