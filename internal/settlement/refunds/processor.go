// Package refunds issues full and partial refunds: gateway reversal first,
// then proportional ledger debits, then status updates. The gateway call is
// the point of no return; nothing touches the ledger before it succeeds.
package refunds

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
)

// TxRunner executes a function inside one database transaction.
// *persistence.PostgresDB satisfies it; tests substitute a pass-through.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// ProcessRefundParams carries one refund request.
type ProcessRefundParams struct {
	PaymentID   uuid.UUID
	Amount      decimal.Decimal
	Reason      string
	InitiatedBy string
}

// Processor drives the refund flow end to end.
type Processor struct {
	db       TxRunner
	payments payment.Repository
	refunds  refund.Repository
	writer   *ledgersvc.EntryWriter
	balances *ledgersvc.BalanceCalculator
	gateway  gateway.Client
	logger   *slog.Logger
}

func NewProcessor(
	logger *slog.Logger,
	db TxRunner,
	payments payment.Repository,
	refunds refund.Repository,
	writer *ledgersvc.EntryWriter,
	balances *ledgersvc.BalanceCalculator,
	gw gateway.Client,
) *Processor {
	return &Processor{
		db:       db,
		payments: payments,
		refunds:  refunds,
		writer:   writer,
		balances: balances,
		gateway:  gw,
		logger:   logger,
	}
}

// ProcessRefund executes one refund. The gateway reversal happens before any
// local write, so a gateway failure leaves no partial state. A crash after
// the ledger debits but before the status updates leaves the refund in
// PROCESSING for the reconciliation sweep to finish.
func (p *Processor) ProcessRefund(ctx context.Context, params ProcessRefundParams) (*refund.Refund, error) {
	pay, err := p.payments.GetByID(ctx, params.PaymentID)
	if err != nil {
		return nil, err
	}
	if err := pay.Refundable(); err != nil {
		return nil, err
	}

	amount := params.Amount.Round(2)
	if amount.Sign() <= 0 {
		return nil, refund.ErrInvalidAmount
	}
	if amount.GreaterThan(pay.Amount) {
		return nil, refund.ErrExceedsPayment
	}

	// Cap across prior refunds: the sum of all refunds against one payment
	// never exceeds the original amount.
	refundedSoFar, err := p.refunds.SumAmountByPaymentID(ctx, params.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to total prior refunds: %w", err)
	}
	if refundedSoFar.Add(amount).GreaterThan(pay.Amount) {
		return nil, refund.ErrExceedsPayment
	}

	gwResult, err := p.gateway.ProcessRefund(ctx, gateway.RefundParams{
		GatewayRef: pay.GatewayRef,
		Amount:     amount,
		Reason:     params.Reason,
	})
	if err != nil {
		p.logger.Error("Gateway refund failed, aborting with no ledger writes",
			"payment_id", params.PaymentID.String(),
			"amount", amount.String(),
			"error", err,
		)
		return nil, err
	}

	rec := refund.NewRefund(params.PaymentID, amount, params.Reason, gwResult.RefundID, params.InitiatedBy)
	if err := p.refunds.Create(ctx, rec); err != nil {
		return nil, err
	}

	providerDebit, feeDebit := splitRefund(pay, amount)

	err = p.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txWriter := p.writer.WithTx(tx)

		if providerDebit.Sign() > 0 {
			_, _, err := txWriter.CreateEntry(ctx, ledger.NewEntryParams{
				AccountType:   ledger.AccountTypeProviderBalance,
				AccountID:     pay.ProviderID,
				EntryType:     ledger.EntryTypeDebit,
				Amount:        providerDebit,
				ReferenceType: ledger.ReferenceTypeRefund,
				ReferenceID:   rec.ID.String(),
				Description:   "refund of escrowed funds",
				Metadata:      map[string]string{"payment_id": pay.ID.String()},
			})
			if err != nil {
				return err
			}
		}

		if feeDebit.Sign() > 0 {
			_, _, err := txWriter.CreateEntry(ctx, ledger.NewEntryParams{
				AccountType:   ledger.AccountTypePlatformRevenue,
				AccountID:     ledger.PlatformAccountID,
				EntryType:     ledger.EntryTypeDebit,
				Amount:        feeDebit,
				ReferenceType: ledger.ReferenceTypeRefund,
				ReferenceID:   rec.ID.String(),
				Description:   "refund of platform fee",
				Metadata:      map[string]string{"payment_id": pay.ID.String()},
			})
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to post refund ledger entries: %w", err)
	}

	// A refund after the escrow was already paid out drives the provider
	// negative. That is deliberate debt, offset against future payouts.
	if balance, balErr := p.balances.ProviderBalance(ctx, pay.ProviderID); balErr != nil {
		p.logger.Warn("Could not read provider balance after refund", "provider_id", pay.ProviderID, "error", balErr)
	} else if balance.Amount.Sign() < 0 {
		p.logger.Warn("Refund drove provider balance negative",
			"provider_id", pay.ProviderID,
			"balance", balance.Amount.String(),
			"refund_id", rec.ID.String(),
		)
	}

	err = p.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := p.payments.WithTx(tx).UpdateStatus(ctx, pay.ID, payment.StatusRefunded); err != nil {
			return err
		}
		return p.refunds.WithTx(tx).UpdateStatus(ctx, rec.ID, refund.StatusCompleted)
	})
	if err != nil {
		// Ledger debits are already durable; the sweep completes the
		// statuses later.
		p.logger.Error("Refund posted but status update failed, leaving refund PROCESSING",
			"refund_id", rec.ID.String(),
			"payment_id", pay.ID.String(),
			"error", err,
		)
		return rec, nil
	}

	rec.Status = refund.StatusCompleted
	p.logger.Info("Refund completed",
		"refund_id", rec.ID.String(),
		"payment_id", pay.ID.String(),
		"amount", amount.String(),
		"provider_debit", providerDebit.String(),
		"fee_debit", feeDebit.String(),
	)

	return rec, nil
}

// splitRefund derives the proportional escrow/fee split. The fee share is
// the remainder after rounding the escrow share, so the two always sum to
// exactly the refund amount.
func splitRefund(pay *payment.Payment, amount decimal.Decimal) (providerDebit, feeDebit decimal.Decimal) {
	if pay.Amount.Sign() <= 0 {
		return amount, decimal.Zero
	}
	ratio := amount.Div(pay.Amount)
	providerDebit = pay.EscrowAmount.Mul(ratio).Round(2)
	feeDebit = amount.Sub(providerDebit)
	return providerDebit, feeDebit
}
