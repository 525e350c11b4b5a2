// Package payouts drives escrow releases through the external gateway: a
// payout walks PENDING -> PROCESSING -> {COMPLETED, FAILED}, with a bounded
// exponential-backoff retry loop for failed transfers.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/booking"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/provider"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
)

var (
	// ErrPaymentNotEscrowed is returned when a payout is requested for a
	// payment whose funds are not held in escrow.
	ErrPaymentNotEscrowed = errors.New("payment is not in escrow")

	// ErrInsufficientFunds is returned when the bank account balance does
	// not cover the transfer.
	ErrInsufficientFunds = errors.New("insufficient bank balance for transfer")
)

// TxRunner executes a function inside one database transaction.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// AttemptResult is the outcome of one transfer attempt.
type AttemptResult struct {
	Success      bool
	TransferCode string
	Err          error
}

// TransferMachine owns all payout mutations. Retry loops are single-flight
// per payout ID; the attempt counter is persisted so a restarted process
// resumes its remaining budget instead of starting a fresh one.
type TransferMachine struct {
	db        TxRunner
	payouts   payout.Repository
	payments  payment.Repository
	bookings  booking.Repository
	providers provider.Repository
	writer    *ledgersvc.EntryWriter
	guard     *ledgersvc.LiquidityGuard
	gateway   gateway.Client
	retryCfg  config.PayoutRetryConfig
	logger    *slog.Logger

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
}

func NewTransferMachine(
	logger *slog.Logger,
	db TxRunner,
	payouts payout.Repository,
	payments payment.Repository,
	bookings booking.Repository,
	providers provider.Repository,
	writer *ledgersvc.EntryWriter,
	guard *ledgersvc.LiquidityGuard,
	gw gateway.Client,
	retryCfg config.PayoutRetryConfig,
) *TransferMachine {
	return &TransferMachine{
		db:        db,
		payouts:   payouts,
		payments:  payments,
		bookings:  bookings,
		providers: providers,
		writer:    writer,
		guard:     guard,
		gateway:   gw,
		retryCfg:  retryCfg,
		logger:    logger,
		inflight:  make(map[uuid.UUID]struct{}),
	}
}

// InitiatePayout releases a payment's escrow: it creates the payout record,
// posts the release entries (provider debit, bank credit), and runs the first
// transfer attempt. Calling it again for the same payment returns the
// existing payout untouched.
func (m *TransferMachine) InitiatePayout(ctx context.Context, paymentID uuid.UUID) (*payout.Payout, error) {
	existing, err := m.payouts.GetByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		m.logger.Info("Payout already exists for payment, skipping initiation",
			"payment_id", paymentID.String(),
			"payout_id", existing.ID.String(),
			"status", existing.Status,
		)
		return existing, nil
	}

	pay, err := m.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if pay.Status != payment.StatusEscrow {
		return nil, ErrPaymentNotEscrowed
	}

	p := payout.NewPayout(pay.ID, pay.ProviderID, pay.EscrowAmount)

	err = m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := m.payouts.WithTx(tx).Create(ctx, p); err != nil {
			return err
		}

		txWriter := m.writer.WithTx(tx)
		if _, _, err := txWriter.CreateEntry(ctx, ledger.NewEntryParams{
			AccountType:   ledger.AccountTypeProviderBalance,
			AccountID:     pay.ProviderID,
			EntryType:     ledger.EntryTypeDebit,
			Amount:        p.Amount,
			ReferenceType: ledger.ReferenceTypePayout,
			ReferenceID:   p.ID.String(),
			Description:   "escrow release",
			Metadata:      map[string]string{"payment_id": pay.ID.String()},
		}); err != nil {
			return err
		}
		if _, _, err := txWriter.CreateEntry(ctx, ledger.NewEntryParams{
			AccountType:   ledger.AccountTypeBankAccount,
			AccountID:     ledger.BankMainAccountID,
			EntryType:     ledger.EntryTypeCredit,
			Amount:        p.Amount,
			ReferenceType: ledger.ReferenceTypePayout,
			ReferenceID:   p.ID.String(),
			Description:   "escrow release to bank",
			Metadata:      map[string]string{"payment_id": pay.ID.String()},
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record escrow release: %w", err)
	}

	result, err := m.RetryFailedTransfer(ctx, p)
	if err != nil {
		return nil, err
	}
	if !result.Success {
		// First attempt failed; the payout is FAILED and eligible for
		// ScheduleTransferRetry.
		m.logger.Warn("Initial transfer attempt failed",
			"payout_id", p.ID.String(),
			"error", result.Err,
		)
	}

	return m.payouts.GetByID(ctx, p.ID)
}

// RetryFailedTransfer performs exactly one transfer attempt for the payout.
// It does not sleep and does not check the retry budget; ScheduleTransferRetry
// owns both.
func (m *TransferMachine) RetryFailedTransfer(ctx context.Context, p *payout.Payout) (*AttemptResult, error) {
	recipientCode, err := m.resolveRecipient(ctx, p)
	if err != nil {
		return nil, err
	}

	attempts := p.Attempts + 1

	// The attempt record and the funds check share one transaction, so the
	// balance read reflects exactly the ledger state the gateway call is
	// authorized against.
	var (
		available decimal.Decimal
		guardErr  error
	)
	txErr := m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := m.payouts.WithTx(tx).RecordAttempt(ctx, p.ID, attempts, payout.StatusProcessing); err != nil {
			return err
		}
		ok, avail, err := m.guard.WithTx(tx).VerifyFunds(ctx, p.Amount)
		if err != nil {
			guardErr = err
			return err
		}
		available = avail
		if !ok {
			return ErrInsufficientFunds
		}
		return nil
	})
	switch {
	case guardErr != nil:
		// Guard failed closed; the attempt is spent.
		p.Attempts = attempts
		m.markAttemptFailed(ctx, p.ID, attempts)
		return &AttemptResult{Success: false, Err: guardErr}, nil
	case errors.Is(txErr, ErrInsufficientFunds):
		m.logger.Warn("Transfer blocked by liquidity guard",
			"payout_id", p.ID.String(),
			"requested", p.Amount.String(),
			"available", available.String(),
			"attempt", attempts,
		)
		p.Attempts = attempts
		m.markAttemptFailed(ctx, p.ID, attempts)
		return &AttemptResult{Success: false, Err: ErrInsufficientFunds}, nil
	case txErr != nil:
		return nil, txErr
	}
	p.Attempts = attempts

	// Reference is the payout ID: the gateway deduplicates by it, so a
	// re-submitted transfer cannot move money twice.
	result, err := m.gateway.CreateTransfer(ctx, gateway.TransferParams{
		RecipientCode: recipientCode,
		Amount:        p.Amount,
		Reference:     p.ID.String(),
		Reason:        "service payout",
	})
	if err != nil {
		m.logger.Warn("Transfer attempt failed",
			"payout_id", p.ID.String(),
			"attempt", attempts,
			"error", err,
		)
		m.markAttemptFailed(ctx, p.ID, attempts)
		return &AttemptResult{Success: false, Err: err}, nil
	}

	// A gateway that settles the transfer synchronously skips the
	// PROCESSING wait; otherwise the transfer confirmation event finishes
	// the job.
	newStatus := payout.StatusProcessing
	if result.Status == gateway.TransferStatusSuccess {
		newStatus = payout.StatusCompleted
	}

	err = m.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := m.payouts.WithTx(tx).SetTransferResult(ctx, p.ID, result.TransferCode, result.GatewayRef, newStatus); err != nil {
			return err
		}
		if err := m.payments.WithTx(tx).UpdateStatus(ctx, p.PaymentID, payment.StatusReleased); err != nil {
			return err
		}
		pay, err := m.payments.WithTx(tx).GetByID(ctx, p.PaymentID)
		if err != nil {
			return err
		}
		return m.bookings.WithTx(tx).UpdateStatus(ctx, pay.BookingID, booking.StatusCompleted)
	})
	if err != nil {
		return nil, fmt.Errorf("transfer created but local state update failed: %w", err)
	}

	m.logger.Info("Transfer created",
		"payout_id", p.ID.String(),
		"transfer_code", result.TransferCode,
		"status", newStatus,
		"attempt", attempts,
	)

	return &AttemptResult{Success: true, TransferCode: result.TransferCode}, nil
}

// ScheduleTransferRetry runs the bounded retry loop for a FAILED payout.
// The loop is single-flight per payout ID and resumes the persisted attempt
// counter, so a crash mid-loop never grants a fresh budget.
func (m *TransferMachine) ScheduleTransferRetry(ctx context.Context, payoutID uuid.UUID) error {
	if !m.acquire(payoutID) {
		return payout.ErrRetryInFlight
	}
	defer m.release(payoutID)

	p, err := m.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return err
	}
	if p.Status != payout.StatusFailed {
		return payout.ErrNotRetryable
	}

	maxAttempts := m.retryCfg.MaxAttempts
	for p.Attempts < maxAttempts {
		attempt := p.Attempts + 1

		result, err := m.RetryFailedTransfer(ctx, p)
		if err != nil {
			return err
		}
		if result.Success {
			return nil
		}

		if p.Attempts >= maxAttempts {
			break
		}

		delay := m.backoff(attempt)
		m.logger.Info("Waiting before next transfer attempt",
			"payout_id", payoutID.String(),
			"attempt", attempt,
			"delay", delay.String(),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}

	if err := m.payouts.UpdateStatus(ctx, payoutID, payout.StatusFailed); err != nil {
		return err
	}
	m.logger.Error("Payout permanently failed after exhausting retries",
		"payout_id", payoutID.String(),
		"attempts", p.Attempts,
	)
	return fmt.Errorf("payout %s after %d attempts: %w", payoutID, p.Attempts, payout.ErrBudgetExhausted)
}

// ConfirmTransfer finalizes a PROCESSING payout once the gateway reports the
// transfer settled.
func (m *TransferMachine) ConfirmTransfer(ctx context.Context, payoutID uuid.UUID) error {
	p, err := m.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return err
	}
	if p.Status != payout.StatusProcessing {
		m.logger.Info("Ignoring transfer confirmation for non-processing payout",
			"payout_id", payoutID.String(),
			"status", p.Status,
		)
		return nil
	}
	return m.payouts.UpdateStatus(ctx, payoutID, payout.StatusCompleted)
}

// FailTransfer moves a PROCESSING payout to FAILED after the gateway reports
// the transfer reversed or failed; the payout becomes eligible for the retry
// loop.
func (m *TransferMachine) FailTransfer(ctx context.Context, payoutID uuid.UUID) error {
	p, err := m.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return err
	}
	if p.Status != payout.StatusProcessing {
		m.logger.Info("Ignoring transfer failure for non-processing payout",
			"payout_id", payoutID.String(),
			"status", p.Status,
		)
		return nil
	}
	return m.payouts.UpdateStatus(ctx, payoutID, payout.StatusFailed)
}

// markAttemptFailed records a spent attempt as FAILED so the persisted budget
// keeps counting it even though the gateway call never authorized.
func (m *TransferMachine) markAttemptFailed(ctx context.Context, id uuid.UUID, attempts int) {
	if err := m.payouts.RecordAttempt(ctx, id, attempts, payout.StatusFailed); err != nil {
		m.logger.Error("Failed to mark payout attempt failed", "payout_id", id.String(), "error", err)
	}
}

func (m *TransferMachine) resolveRecipient(ctx context.Context, p *payout.Payout) (string, error) {
	if p.RecipientCode != "" {
		return p.RecipientCode, nil
	}

	prov, err := m.providers.GetByID(ctx, p.ProviderID)
	if err != nil {
		return "", err
	}
	if prov.RecipientCode != "" {
		p.RecipientCode = prov.RecipientCode
		return prov.RecipientCode, nil
	}

	code, err := m.gateway.CreateRecipient(ctx, gateway.RecipientParams{
		Name:          prov.Name,
		AccountNumber: prov.AccountNumber,
		BankCode:      prov.BankCode,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create transfer recipient: %w", err)
	}
	if err := m.providers.SetRecipientCode(ctx, prov.ID, code); err != nil {
		return "", err
	}

	p.RecipientCode = code
	return code, nil
}

// backoff computes base * multiplier^(attempt-1), capped at the configured
// maximum.
func (m *TransferMachine) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(m.retryCfg.BaseDelay) * math.Pow(m.retryCfg.BackoffMultiplier, float64(attempt-1)))
	if delay > m.retryCfg.MaxDelay {
		delay = m.retryCfg.MaxDelay
	}
	return delay
}

func (m *TransferMachine) acquire(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inflight[id]; busy {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

func (m *TransferMachine) release(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
