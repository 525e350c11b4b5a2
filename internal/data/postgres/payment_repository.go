package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payment"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
)

// PaymentRepository implements the payment.Repository interface for PostgreSQL
type PaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &PaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction.
func (r *PaymentRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &PaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByID retrieves a payment by its ID
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `
		SELECT id, booking_id, provider_id, amount, escrow_amount, platform_fee, status, gateway_ref, created_at, updated_at
		FROM payments
		WHERE id = $1
	`

	var p payment.Payment
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.BookingID,
		&p.ProviderID,
		&p.Amount,
		&p.EscrowAmount,
		&p.PlatformFee,
		&p.Status,
		&p.GatewayRef,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPaymentNotFound{PaymentID: id}
		}
		r.logger.Error("Failed to get payment", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &p, nil
}

// UpdateStatus moves a payment to the given lifecycle status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status payment.Status) error {
	query := `
		UPDATE payments
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update payment status", "id", id.String(), "status", status, "error", err)
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payment.ErrPaymentNotFound{PaymentID: id}
	}

	return nil
}

// SumAmountByStatuses totals payment amounts over the given statuses.
func (r *PaymentRepository) SumAmountByStatuses(ctx context.Context, statuses []payment.Status) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE status = ANY($1)
	`

	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var total decimal.Decimal
	err := r.querier.QueryRow(ctx, query, values).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum payment amounts", "statuses", values, "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum payment amounts: %w", err)
	}

	return total, nil
}
