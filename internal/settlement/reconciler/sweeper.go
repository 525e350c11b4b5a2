// Package reconciler re-derives settlement record statuses from ledger and
// gateway state. The ledger is authoritative: a refund whose debit postings
// exist is complete regardless of what the status column says, and a
// processing payout is resolved by asking the gateway what happened to the
// transfer.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/config"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/gateway"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/settlement/ledgersvc"
)

// TxRunner runs a function inside a database transaction.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// TransferResolver finalizes or fails a processing payout. Implemented by the
// payout transfer state machine.
type TransferResolver interface {
	ConfirmTransfer(ctx context.Context, payoutID uuid.UUID) error
	FailTransfer(ctx context.Context, payoutID uuid.UUID) error
}

// Sweeper periodically repairs stuck settlement records and runs the
// accounting invariant check.
type Sweeper struct {
	db       TxRunner
	entries  ledger.Repository
	payments payment.Repository
	refunds  refund.Repository
	payouts  payout.Repository
	resolver TransferResolver
	gateway  gateway.Client
	checker  *ledgersvc.InvariantChecker
	cfg      config.ReconcilerConfig
	logger   *slog.Logger
}

func NewSweeper(
	logger *slog.Logger,
	cfg config.ReconcilerConfig,
	db TxRunner,
	entries ledger.Repository,
	payments payment.Repository,
	refunds refund.Repository,
	payouts payout.Repository,
	resolver TransferResolver,
	gatewayClient gateway.Client,
	checker *ledgersvc.InvariantChecker,
) *Sweeper {
	return &Sweeper{
		db:       db,
		entries:  entries,
		payments: payments,
		refunds:  refunds,
		payouts:  payouts,
		resolver: resolver,
		gateway:  gatewayClient,
		checker:  checker,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run blocks, sweeping on the configured intervals until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	sweepTicker := time.NewTicker(s.cfg.SweepInterval)
	defer sweepTicker.Stop()
	invariantTicker := time.NewTicker(s.cfg.InvariantInterval)
	defer invariantTicker.Stop()

	s.logger.Info("Reconciliation sweeper started",
		"sweep_interval", s.cfg.SweepInterval.String(),
		"invariant_interval", s.cfg.InvariantInterval.String(),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reconciliation sweeper stopped")
			return
		case <-sweepTicker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("Reconciliation sweep failed", "error", err)
			}
		case <-invariantTicker.C:
			s.RunInvariantCheck(ctx)
		}
	}
}

// SweepOnce runs one repair pass over stuck refunds and payouts. Failures on
// individual records are logged and do not stop the pass; an error is
// returned only when a batch could not be listed at all.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	if err := s.sweepRefunds(ctx); err != nil {
		return fmt.Errorf("refund sweep: %w", err)
	}
	if err := s.sweepPayouts(ctx); err != nil {
		return fmt.Errorf("payout sweep: %w", err)
	}
	return nil
}

// sweepRefunds completes refunds stuck in PROCESSING past the grace period
// whose ledger debits already exist. The debits are the commit point: once
// they are on the books the refund happened, and only the status columns are
// behind.
func (s *Sweeper) sweepRefunds(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.RefundGracePeriod)
	stuck, err := s.refunds.ListByStatusOlderThan(ctx, refund.StatusProcessing, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, r := range stuck {
		posted, err := s.entries.ListByReference(ctx, ledger.ReferenceTypeRefund, r.ID.String())
		if err != nil {
			s.logger.Error("Failed to read ledger postings for stuck refund",
				"refund_id", r.ID.String(),
				"error", err,
			)
			continue
		}
		if len(posted) == 0 {
			s.logger.Warn("Refund stuck in PROCESSING with no ledger postings, leaving for manual review",
				"refund_id", r.ID.String(),
				"payment_id", r.PaymentID.String(),
				"age", time.Since(r.CreatedAt).String(),
			)
			continue
		}

		rec := r
		err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
			if err := s.refunds.WithTx(tx).UpdateStatus(ctx, rec.ID, refund.StatusCompleted); err != nil {
				return err
			}
			return s.payments.WithTx(tx).UpdateStatus(ctx, rec.PaymentID, payment.StatusRefunded)
		})
		if err != nil {
			s.logger.Error("Failed to complete swept refund",
				"refund_id", rec.ID.String(),
				"error", err,
			)
			continue
		}
		s.logger.Info("Completed stuck refund from ledger state",
			"refund_id", rec.ID.String(),
			"payment_id", rec.PaymentID.String(),
			"postings", len(posted),
		)
	}
	return nil
}

// sweepPayouts resolves payouts stuck in PROCESSING by fetching the transfer
// from the gateway. Payouts without a transfer code crashed before the
// gateway call and stay with the retry machinery.
func (s *Sweeper) sweepPayouts(ctx context.Context) error {
	stuck, err := s.payouts.ListByStatus(ctx, payout.StatusProcessing, s.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, p := range stuck {
		if p.TransferCode == "" {
			continue
		}

		res, err := s.gateway.FetchTransfer(ctx, p.TransferCode)
		if err != nil {
			s.logger.Error("Failed to fetch transfer for stuck payout",
				"payout_id", p.ID.String(),
				"transfer_code", p.TransferCode,
				"error", err,
			)
			continue
		}

		switch res.Status {
		case gateway.TransferStatusSuccess:
			if err := s.resolver.ConfirmTransfer(ctx, p.ID); err != nil {
				s.logger.Error("Failed to confirm swept payout",
					"payout_id", p.ID.String(),
					"error", err,
				)
				continue
			}
			s.logger.Info("Confirmed stuck payout from gateway state",
				"payout_id", p.ID.String(),
				"transfer_code", p.TransferCode,
			)
		case gateway.TransferStatusFailed:
			if err := s.resolver.FailTransfer(ctx, p.ID); err != nil {
				s.logger.Error("Failed to fail swept payout",
					"payout_id", p.ID.String(),
					"error", err,
				)
				continue
			}
			s.logger.Info("Failed stuck payout from gateway state",
				"payout_id", p.ID.String(),
				"transfer_code", p.TransferCode,
			)
		default:
			// Still in flight at the gateway, nothing to repair yet.
		}
	}
	return nil
}

// RunInvariantCheck runs the accounting invariant check and logs the outcome.
// The checker itself archives the report.
func (s *Sweeper) RunInvariantCheck(ctx context.Context) {
	report, err := s.checker.Check(ctx)
	if err != nil {
		s.logger.Error("Invariant check failed to run", "error", err)
		return
	}
	if !report.Valid {
		s.logger.Error("Accounting invariant violated",
			"discrepancy", report.Discrepancy.String(),
			"provider_balances", report.TotalProviderBalances.String(),
			"platform_revenue", report.PlatformRevenue.String(),
			"bank_balance", report.BankBalance.String(),
			"total_payments", report.TotalPayments.String(),
			"total_refunds", report.TotalRefunds.String(),
		)
		return
	}
	s.logger.Info("Accounting invariant holds",
		"total_payments", report.TotalPayments.String(),
		"total_refunds", report.TotalRefunds.String(),
	)
}
