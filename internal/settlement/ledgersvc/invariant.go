package ledgersvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/audit"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
)

// invariantTolerance absorbs accumulated rounding from 2-decimal amounts.
var invariantTolerance = decimal.RequireFromString("0.01")

// InvariantChecker cross-checks ledger totals against the payment system of
// record:
//
//	providerBalances + platformRevenue + bankBalance == totalPayments - totalRefunds
//
// A violation means money was created or destroyed somewhere; the check only
// detects, it never corrects.
type InvariantChecker struct {
	entries  ledger.Repository
	payments payment.Repository
	refunds  refund.Repository
	audit    audit.Recorder
	logger   *slog.Logger
}

func NewInvariantChecker(
	logger *slog.Logger,
	entries ledger.Repository,
	payments payment.Repository,
	refunds refund.Repository,
	recorder audit.Recorder,
) *InvariantChecker {
	return &InvariantChecker{
		entries:  entries,
		payments: payments,
		refunds:  refunds,
		audit:    recorder,
		logger:   logger,
	}
}

// Check runs the accounting invariant and archives the report. The report is
// returned even when the invariant fails; the error is reserved for not being
// able to compute it.
func (c *InvariantChecker) Check(ctx context.Context) (*audit.InvariantReport, error) {
	providerSums, err := c.entries.SumAccountType(ctx, ledger.AccountTypeProviderBalance)
	if err != nil {
		return nil, fmt.Errorf("failed to total provider balances: %w", err)
	}
	revenueSums, err := c.entries.SumAccountType(ctx, ledger.AccountTypePlatformRevenue)
	if err != nil {
		return nil, fmt.Errorf("failed to total platform revenue: %w", err)
	}
	bankSums, err := c.entries.SumAccountType(ctx, ledger.AccountTypeBankAccount)
	if err != nil {
		return nil, fmt.Errorf("failed to total bank balance: %w", err)
	}

	// Settled money only. PENDING and FAILED payments never produced
	// ledger entries, so they stay out of the right-hand side.
	totalPayments, err := c.payments.SumAmountByStatuses(ctx, []payment.Status{
		payment.StatusEscrow,
		payment.StatusReleased,
		payment.StatusRefunded,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to total payments: %w", err)
	}

	totalRefunds, err := c.refunds.SumCompletedAmount(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to total refunds: %w", err)
	}

	provider := providerSums.Balance()
	revenue := revenueSums.Balance()
	bank := bankSums.Balance()

	actual := provider.Add(revenue).Add(bank)
	expected := totalPayments.Sub(totalRefunds)
	discrepancy := actual.Sub(expected).Round(2)

	report := &audit.InvariantReport{
		Valid:                 discrepancy.Abs().LessThanOrEqual(invariantTolerance),
		Discrepancy:           discrepancy,
		TotalProviderBalances: provider,
		PlatformRevenue:       revenue,
		BankBalance:           bank,
		TotalPayments:         totalPayments,
		TotalRefunds:          totalRefunds,
		CheckedAt:             time.Now(),
	}

	if !report.Valid {
		c.logger.Error("Accounting invariant violated",
			"discrepancy", discrepancy.String(),
			"provider_balances", provider.String(),
			"platform_revenue", revenue.String(),
			"bank_balance", bank.String(),
			"total_payments", totalPayments.String(),
			"total_refunds", totalRefunds.String(),
		)
	}

	if c.audit != nil {
		if err := c.audit.RecordInvariantReport(ctx, report); err != nil {
			c.logger.Warn("Failed to archive invariant report", "error", err)
		}
	}

	return report, nil
}
