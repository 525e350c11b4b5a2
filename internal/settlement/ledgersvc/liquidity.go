package ledgersvc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// LiquidityGuard gates outbound transfers on the derived bank account
// balance. It fails closed: when the balance cannot be computed the transfer
// does not proceed.
type LiquidityGuard struct {
	balances *BalanceCalculator
	logger   *slog.Logger
}

func NewLiquidityGuard(logger *slog.Logger, balances *BalanceCalculator) *LiquidityGuard {
	return &LiquidityGuard{
		balances: balances,
		logger:   logger,
	}
}

// WithTx rebinds the guard to a transaction so the funds check holds for the
// transfer about to be recorded in the same scope.
func (g *LiquidityGuard) WithTx(tx pgx.Tx) *LiquidityGuard {
	return &LiquidityGuard{
		balances: g.balances.WithTx(tx),
		logger:   g.logger,
	}
}

// VerifyFunds reports whether the bank account covers amount. Equality
// passes; a shortfall of one cent does not.
func (g *LiquidityGuard) VerifyFunds(ctx context.Context, amount decimal.Decimal) (bool, decimal.Decimal, error) {
	balance, err := g.balances.BankBalance(ctx)
	if err != nil {
		return false, decimal.Zero, fmt.Errorf("liquidity check failed: %w", err)
	}

	sufficient := balance.Amount.GreaterThanOrEqual(amount.Round(2))
	if !sufficient {
		g.logger.Warn("Insufficient liquidity for transfer",
			"requested", amount.String(),
			"available", balance.Amount.String(),
		)
	}

	return sufficient, balance.Amount, nil
}
