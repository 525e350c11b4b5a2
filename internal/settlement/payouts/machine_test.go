package payouts

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/booking"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/provider"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
)

type fakeTxRunner struct{}

func (fakeTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type countingTxRunner struct {
	calls int
}

func (r *countingTxRunner) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	r.calls++
	return fn(nil)
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) Create(ctx context.Context, entry *ledger.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepo) FindMatching(ctx context.Context, key ledger.MatchKey) (*ledger.Entry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) ListByAccount(ctx context.Context, accountType ledger.AccountType, accountID string) ([]*ledger.Entry, error) {
	args := m.Called(ctx, accountType, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) ListByReference(ctx context.Context, refType ledger.ReferenceType, refID string) ([]*ledger.Entry, error) {
	args := m.Called(ctx, refType, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) SumByEntryType(ctx context.Context, accountType ledger.AccountType, accountID string) (ledger.EntrySums, error) {
	args := m.Called(ctx, accountType, accountID)
	return args.Get(0).(ledger.EntrySums), args.Error(1)
}

func (m *MockLedgerRepo) SumAccountType(ctx context.Context, accountType ledger.AccountType) (ledger.EntrySums, error) {
	args := m.Called(ctx, accountType)
	return args.Get(0).(ledger.EntrySums), args.Error(1)
}

func (m *MockLedgerRepo) FindDuplicates(ctx context.Context, refType ledger.ReferenceType, refID string) ([]ledger.DuplicateGroup, error) {
	args := m.Called(ctx, refType, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.DuplicateGroup), args.Error(1)
}

func (m *MockLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository {
	return m
}

type MockPayoutRepo struct {
	mock.Mock
}

func (m *MockPayoutRepo) Create(ctx context.Context, p *payout.Payout) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockPayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Payout), args.Error(1)
}

func (m *MockPayoutRepo) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*payout.Payout, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payout.Payout), args.Error(1)
}

func (m *MockPayoutRepo) ListByStatus(ctx context.Context, status payout.Status, limit int) ([]*payout.Payout, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*payout.Payout), args.Error(1)
}

func (m *MockPayoutRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status payout.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockPayoutRepo) RecordAttempt(ctx context.Context, id uuid.UUID, attempts int, status payout.Status) error {
	args := m.Called(ctx, id, attempts, status)
	return args.Error(0)
}

func (m *MockPayoutRepo) SetTransferResult(ctx context.Context, id uuid.UUID, transferCode, gatewayRef string, status payout.Status) error {
	args := m.Called(ctx, id, transferCode, gatewayRef, status)
	return args.Error(0)
}

func (m *MockPayoutRepo) WithTx(tx pgx.Tx) payout.Repository {
	return m
}

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
	return m
}

type MockBookingRepo struct {
	mock.Mock
}

func (m *MockBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.Booking), args.Error(1)
}

func (m *MockBookingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status booking.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockBookingRepo) WithTx(tx pgx.Tx) booking.Repository {
	return m
}

type MockProviderRepo struct {
	mock.Mock
}

func (m *MockProviderRepo) GetByID(ctx context.Context, id string) (*provider.Provider, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Provider), args.Error(1)
}

func (m *MockProviderRepo) SetRecipientCode(ctx context.Context, id, recipientCode string) error {
	args := m.Called(ctx, id, recipientCode)
	return args.Error(0)
}

func (m *MockProviderRepo) WithTx(tx pgx.Tx) provider.Repository {
	return m
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateRecipient(ctx context.Context, params gateway.RecipientParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) CreateTransfer(ctx context.Context, params gateway.TransferParams) (*gateway.TransferResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResult), args.Error(1)
}

func (m *MockGateway) FetchTransfer(ctx context.Context, transferCode string) (*gateway.TransferResult, error) {
	args := m.Called(ctx, transferCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.TransferResult), args.Error(1)
}

func (m *MockGateway) ProcessRefund(ctx context.Context, params gateway.RefundParams) (*gateway.RefundResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.RefundResult), args.Error(1)
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	entries   *MockLedgerRepo
	payouts   *MockPayoutRepo
	payments  *MockPaymentRepo
	bookings  *MockBookingRepo
	providers *MockProviderRepo
	gw        *MockGateway
	machine   *TransferMachine
}

func newFixture() *fixture {
	logger := slog.Default()
	entries := &MockLedgerRepo{}
	payoutRepo := &MockPayoutRepo{}
	payments := &MockPaymentRepo{}
	bookings := &MockBookingRepo{}
	providers := &MockProviderRepo{}
	gw := &MockGateway{}

	writer := ledgersvc.NewEntryWriter(logger, entries, nil)
	guard := ledgersvc.NewLiquidityGuard(logger, ledgersvc.NewBalanceCalculator(logger, entries))

	cfg := config.PayoutRetryConfig{
		MaxAttempts:       3,
		BaseDelay:         time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          5 * time.Millisecond,
	}

	return &fixture{
		entries:   entries,
		payouts:   payoutRepo,
		payments:  payments,
		bookings:  bookings,
		providers: providers,
		gw:        gw,
		machine:   NewTransferMachine(logger, fakeTxRunner{}, payoutRepo, payments, bookings, providers, writer, guard, gw, cfg),
	}
}

func failedPayout(attempts int) *payout.Payout {
	p := payout.NewPayout(uuid.New(), "prov-1", d("90.00"))
	p.Status = payout.StatusFailed
	p.Attempts = attempts
	p.RecipientCode = "RCP_x"
	return p
}

// expectBankBalance makes the liquidity guard see the given available funds.
func (f *fixture) expectBankBalance(ctx context.Context, available string) *mock.Call {
	return f.entries.On("SumByEntryType", ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID).
		Return(ledger.EntrySums{Credits: d(available)}, nil)
}

func TestTransferMachine_ScheduleTransferRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("fails once then succeeds within the budget", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(0)
		pay := &payment.Payment{ID: p.PaymentID, BookingID: uuid.New(), Status: payment.StatusEscrow}

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.expectBankBalance(ctx, "500.00")
		f.payouts.On("RecordAttempt", ctx, p.ID, 1, payout.StatusProcessing).Return(nil).Once()
		f.gw.On("CreateTransfer", ctx, mock.Anything).
			Return(nil, &gateway.Error{Op: "createTransfer", StatusCode: 503}).Once()
		f.payouts.On("RecordAttempt", ctx, p.ID, 1, payout.StatusFailed).Return(nil).Once()

		f.payouts.On("RecordAttempt", ctx, p.ID, 2, payout.StatusProcessing).Return(nil).Once()
		f.gw.On("CreateTransfer", ctx, mock.MatchedBy(func(params gateway.TransferParams) bool {
			return params.Reference == p.ID.String() && params.Amount.Equal(d("90.00"))
		})).Return(&gateway.TransferResult{
			TransferCode: "TRF_ok",
			GatewayRef:   p.ID.String(),
			Status:       gateway.TransferStatusSuccess,
		}, nil).Once()
		f.payouts.On("SetTransferResult", ctx, p.ID, "TRF_ok", p.ID.String(), payout.StatusCompleted).Return(nil).Once()
		f.payments.On("UpdateStatus", ctx, p.PaymentID, payment.StatusReleased).Return(nil).Once()
		f.payments.On("GetByID", ctx, p.PaymentID).Return(pay, nil).Once()
		f.bookings.On("UpdateStatus", ctx, pay.BookingID, booking.StatusCompleted).Return(nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		require.NoError(t, err)
		f.payouts.AssertExpectations(t)
		f.gw.AssertExpectations(t)
	})

	t.Run("exhausts the budget and fails permanently", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(0)

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.expectBankBalance(ctx, "500.00")
		f.payouts.On("RecordAttempt", ctx, p.ID, mock.Anything, payout.StatusProcessing).Return(nil).Times(3)
		f.gw.On("CreateTransfer", ctx, mock.Anything).
			Return(nil, &gateway.Error{Op: "createTransfer", StatusCode: 503}).Times(3)
		f.payouts.On("RecordAttempt", ctx, p.ID, mock.Anything, payout.StatusFailed).Return(nil).Times(3)
		f.payouts.On("UpdateStatus", ctx, p.ID, payout.StatusFailed).Return(nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		assert.ErrorIs(t, err, payout.ErrBudgetExhausted)
		f.gw.AssertNumberOfCalls(t, "CreateTransfer", 3)
	})

	t.Run("already exhausted budget reports exhaustion without an attempt", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(3) // budget fully spent

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.payouts.On("UpdateStatus", ctx, p.ID, payout.StatusFailed).Return(nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		assert.ErrorIs(t, err, payout.ErrBudgetExhausted)
		f.gw.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
		f.payouts.AssertNotCalled(t, "RecordAttempt", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("resumes a partially spent budget", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(2) // one attempt left

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.expectBankBalance(ctx, "500.00")
		f.payouts.On("RecordAttempt", ctx, p.ID, 3, payout.StatusProcessing).Return(nil).Once()
		f.gw.On("CreateTransfer", ctx, mock.Anything).
			Return(nil, &gateway.Error{Op: "createTransfer", StatusCode: 503}).Once()
		f.payouts.On("RecordAttempt", ctx, p.ID, 3, payout.StatusFailed).Return(nil).Once()
		f.payouts.On("UpdateStatus", ctx, p.ID, payout.StatusFailed).Return(nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		require.Error(t, err)
		f.gw.AssertNumberOfCalls(t, "CreateTransfer", 1)
	})

	t.Run("non-failed payout is not retryable", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(0)
		p.Status = payout.StatusProcessing

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		assert.ErrorIs(t, err, payout.ErrNotRetryable)
	})

	t.Run("second concurrent loop for the same payout is rejected", func(t *testing.T) {
		f := newFixture()
		id := uuid.New()

		require.True(t, f.machine.acquire(id))
		defer f.machine.release(id)

		err := f.machine.ScheduleTransferRetry(ctx, id)
		assert.ErrorIs(t, err, payout.ErrRetryInFlight)
	})

	t.Run("funds check shares the attempt authorization transaction", func(t *testing.T) {
		f := newFixture()
		runner := &countingTxRunner{}
		f.machine.db = runner
		p := failedPayout(2) // one attempt left
		pay := &payment.Payment{ID: p.PaymentID, BookingID: uuid.New(), Status: payment.StatusEscrow}

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.expectBankBalance(ctx, "500.00")
		f.payouts.On("RecordAttempt", ctx, p.ID, 3, payout.StatusProcessing).Return(nil).Once()
		f.gw.On("CreateTransfer", ctx, mock.Anything).Return(&gateway.TransferResult{
			TransferCode: "TRF_ok",
			GatewayRef:   p.ID.String(),
			Status:       gateway.TransferStatusSuccess,
		}, nil).Once()
		f.payouts.On("SetTransferResult", ctx, p.ID, "TRF_ok", p.ID.String(), payout.StatusCompleted).Return(nil).Once()
		f.payments.On("UpdateStatus", ctx, p.PaymentID, payment.StatusReleased).Return(nil).Once()
		f.payments.On("GetByID", ctx, p.PaymentID).Return(pay, nil).Once()
		f.bookings.On("UpdateStatus", ctx, pay.BookingID, booking.StatusCompleted).Return(nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		require.NoError(t, err)
		// One transaction authorizes the attempt with the funds check, a
		// second records the transfer outcome.
		assert.Equal(t, 2, runner.calls)
	})

	t.Run("liquidity shortfall spends the attempt without a gateway call", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(2)

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.entries.On("SumByEntryType", ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID).
			Return(ledger.EntrySums{Credits: d("89.99")}, nil).Once()
		f.payouts.On("RecordAttempt", ctx, p.ID, 3, payout.StatusProcessing).Return(nil).Once()
		f.payouts.On("RecordAttempt", ctx, p.ID, 3, payout.StatusFailed).Return(nil).Once()
		f.payouts.On("UpdateStatus", ctx, p.ID, payout.StatusFailed).Return(nil).Once()

		err := f.machine.ScheduleTransferRetry(ctx, p.ID)
		require.Error(t, err)
		f.gw.AssertNotCalled(t, "CreateTransfer", mock.Anything, mock.Anything)
	})
}

func TestTransferMachine_InitiatePayout(t *testing.T) {
	ctx := context.Background()

	t.Run("existing payout is returned untouched", func(t *testing.T) {
		f := newFixture()
		existing := failedPayout(1)

		f.payouts.On("GetByPaymentID", ctx, existing.PaymentID).Return(existing, nil).Once()

		got, err := f.machine.InitiatePayout(ctx, existing.PaymentID)
		require.NoError(t, err)
		assert.Equal(t, existing.ID, got.ID)
		f.payouts.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.entries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("non-escrowed payment is rejected", func(t *testing.T) {
		f := newFixture()
		pay := &payment.Payment{ID: uuid.New(), Status: payment.StatusReleased}

		f.payouts.On("GetByPaymentID", ctx, pay.ID).Return(nil, nil).Once()
		f.payments.On("GetByID", ctx, pay.ID).Return(pay, nil).Once()

		_, err := f.machine.InitiatePayout(ctx, pay.ID)
		assert.ErrorIs(t, err, ErrPaymentNotEscrowed)
	})

	t.Run("escrow release posts provider debit and bank credit then transfers", func(t *testing.T) {
		f := newFixture()
		pay := &payment.Payment{
			ID:           uuid.New(),
			BookingID:    uuid.New(),
			ProviderID:   "prov-1",
			Amount:       d("100.00"),
			EscrowAmount: d("90.00"),
			PlatformFee:  d("10.00"),
			Status:       payment.StatusEscrow,
		}

		f.payouts.On("GetByPaymentID", ctx, pay.ID).Return(nil, nil).Once()
		f.payments.On("GetByID", ctx, pay.ID).Return(pay, nil)
		f.payouts.On("Create", ctx, mock.MatchedBy(func(p *payout.Payout) bool {
			return p.Amount.Equal(d("90.00")) && p.Status == payout.StatusPending
		})).Return(nil).Once()

		f.entries.On("FindMatching", ctx, mock.Anything).Return(nil, nil).Twice()
		f.entries.On("Create", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.AccountType == ledger.AccountTypeProviderBalance && e.EntryType == ledger.EntryTypeDebit && e.Amount.Equal(d("90.00"))
		})).Return(nil).Once()
		f.entries.On("Create", ctx, mock.MatchedBy(func(e *ledger.Entry) bool {
			return e.AccountType == ledger.AccountTypeBankAccount && e.EntryType == ledger.EntryTypeCredit && e.Amount.Equal(d("90.00"))
		})).Return(nil).Once()

		f.providers.On("GetByID", ctx, "prov-1").
			Return(&provider.Provider{ID: "prov-1", RecipientCode: "RCP_x"}, nil).Once()
		f.payouts.On("RecordAttempt", ctx, mock.Anything, 1, payout.StatusProcessing).Return(nil).Once()
		f.expectBankBalance(ctx, "90.00")
		f.gw.On("CreateTransfer", ctx, mock.Anything).
			Return(&gateway.TransferResult{TransferCode: "TRF_1", Status: gateway.TransferStatusPending}, nil).Once()
		f.payouts.On("SetTransferResult", ctx, mock.Anything, "TRF_1", "", payout.StatusProcessing).Return(nil).Once()
		f.payments.On("UpdateStatus", ctx, pay.ID, payment.StatusReleased).Return(nil).Once()
		f.bookings.On("UpdateStatus", ctx, pay.BookingID, booking.StatusCompleted).Return(nil).Once()
		f.payouts.On("GetByID", ctx, mock.Anything).
			Return(&payout.Payout{Status: payout.StatusProcessing, TransferCode: "TRF_1"}, nil).Once()

		got, err := f.machine.InitiatePayout(ctx, pay.ID)
		require.NoError(t, err)
		assert.Equal(t, payout.StatusProcessing, got.Status)
		assert.Equal(t, "TRF_1", got.TransferCode)
		f.entries.AssertExpectations(t)
	})
}

func TestTransferMachine_ConfirmAndFail(t *testing.T) {
	ctx := context.Background()

	t.Run("confirmation completes a processing payout", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(1)
		p.Status = payout.StatusProcessing

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.payouts.On("UpdateStatus", ctx, p.ID, payout.StatusCompleted).Return(nil).Once()

		require.NoError(t, f.machine.ConfirmTransfer(ctx, p.ID))
		f.payouts.AssertExpectations(t)
	})

	t.Run("confirmation of a completed payout is a no-op", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(1)
		p.Status = payout.StatusCompleted

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()

		require.NoError(t, f.machine.ConfirmTransfer(ctx, p.ID))
		f.payouts.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("gateway failure event re-arms the retry loop", func(t *testing.T) {
		f := newFixture()
		p := failedPayout(1)
		p.Status = payout.StatusProcessing

		f.payouts.On("GetByID", ctx, p.ID).Return(p, nil).Once()
		f.payouts.On("UpdateStatus", ctx, p.ID, payout.StatusFailed).Return(nil).Once()

		require.NoError(t, f.machine.FailTransfer(ctx, p.ID))
	})
}

func TestTransferMachine_Backoff(t *testing.T) {
	f := newFixture()

	assert.Equal(t, time.Millisecond, f.machine.backoff(1))
	assert.Equal(t, 2*time.Millisecond, f.machine.backoff(2))
	assert.Equal(t, 4*time.Millisecond, f.machine.backoff(3))
	// Capped at the configured maximum.
	assert.Equal(t, 5*time.Millisecond, f.machine.backoff(4))
}
