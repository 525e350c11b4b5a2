package ledgersvc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
)

// Balance is a derived account balance. Degraded marks balances computed by
// the row-scan fallback after the grouped aggregation failed.
type Balance struct {
	AccountType  ledger.AccountType `json:"account_type"`
	AccountID    string             `json:"account_id"`
	Amount       decimal.Decimal    `json:"amount"`
	Credits      decimal.Decimal    `json:"credits"`
	Debits       decimal.Decimal    `json:"debits"`
	Degraded     bool               `json:"degraded,omitempty"`
	CalculatedAt time.Time          `json:"calculated_at"`
}

// BalanceCalculator derives balances from ledger entries at read time.
// Balances are never stored, so every read reflects exactly what the entries
// say.
type BalanceCalculator struct {
	entries ledger.Repository
	// fallback stays pool-bound even when the calculator is rebound to a
	// transaction; a tx client that just failed cannot serve the row scan.
	fallback ledger.Repository
	logger   *slog.Logger
}

func NewBalanceCalculator(logger *slog.Logger, entries ledger.Repository) *BalanceCalculator {
	return &BalanceCalculator{
		entries:  entries,
		fallback: entries,
		logger:   logger,
	}
}

// WithTx rebinds the calculator to a transaction so a balance read can share
// the isolation scope of a pending write. The degraded fallback keeps the
// original binding.
func (c *BalanceCalculator) WithTx(tx pgx.Tx) *BalanceCalculator {
	return &BalanceCalculator{
		entries:  c.entries.WithTx(tx),
		fallback: c.fallback,
		logger:   c.logger,
	}
}

// AccountBalance computes one account's balance as credits minus debits.
// The grouped aggregation is tried first; when it fails the calculator falls
// back to listing the account's entries and summing rows, marking the result
// degraded. A negative balance is valid output (provider debt after a refund
// of released funds).
func (c *BalanceCalculator) AccountBalance(ctx context.Context, accountType ledger.AccountType, accountID string) (*Balance, error) {
	sums, err := c.entries.SumByEntryType(ctx, accountType, accountID)
	if err == nil {
		return &Balance{
			AccountType:  accountType,
			AccountID:    accountID,
			Amount:       sums.Balance(),
			Credits:      sums.Credits,
			Debits:       sums.Debits,
			CalculatedAt: time.Now(),
		}, nil
	}

	c.logger.Warn("Grouped balance aggregation failed, falling back to row scan",
		"account_type", accountType,
		"account_id", accountID,
		"error", err,
	)

	entries, listErr := c.fallback.ListByAccount(ctx, accountType, accountID)
	if listErr != nil {
		return nil, fmt.Errorf("balance fallback failed for %s/%s: %w", accountType, accountID, listErr)
	}

	var credits, debits decimal.Decimal
	for _, e := range entries {
		switch e.EntryType {
		case ledger.EntryTypeCredit:
			credits = credits.Add(e.Amount)
		case ledger.EntryTypeDebit:
			debits = debits.Add(e.Amount)
		}
	}

	return &Balance{
		AccountType:  accountType,
		AccountID:    accountID,
		Amount:       credits.Sub(debits).Round(2),
		Credits:      credits,
		Debits:       debits,
		Degraded:     true,
		CalculatedAt: time.Now(),
	}, nil
}

// ProviderBalance is shorthand for the provider escrow account balance.
func (c *BalanceCalculator) ProviderBalance(ctx context.Context, providerID string) (*Balance, error) {
	return c.AccountBalance(ctx, ledger.AccountTypeProviderBalance, providerID)
}

// BankBalance is shorthand for the platform's main bank account balance.
func (c *BalanceCalculator) BankBalance(ctx context.Context) (*Balance, error) {
	return c.AccountBalance(ctx, ledger.AccountTypeBankAccount, ledger.BankMainAccountID)
}
