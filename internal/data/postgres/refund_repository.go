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

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/refund"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
)

// RefundRepository implements the refund.Repository interface for PostgreSQL
type RefundRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewRefundRepository creates a new PostgreSQL refund repository.
func NewRefundRepository(logger *slog.Logger, db *persistence.PostgresDB) refund.Repository {
	return &RefundRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction.
func (r *RefundRepository) WithTx(tx pgx.Tx) refund.Repository {
	return &RefundRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new refund record.
func (r *RefundRepository) Create(ctx context.Context, rf *refund.Refund) error {
	query := `
		INSERT INTO refunds (id, payment_id, amount, reason, status, gateway_refund_id, initiated_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		rf.ID,
		rf.PaymentID,
		rf.Amount,
		rf.Reason,
		rf.Status,
		rf.GatewayRefundID,
		rf.InitiatedBy,
		rf.CreatedAt,
		rf.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create refund", "payment_id", rf.PaymentID.String(), "error", err)
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

// GetByID retrieves a refund by its ID
func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	query := selectRefund + ` WHERE id = $1`

	rf, err := scanRefund(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refund.ErrRefundNotFound{RefundID: id}
		}
		r.logger.Error("Failed to get refund", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}

	return rf, nil
}

// ListByPaymentID retrieves all refunds against one payment, oldest first.
func (r *RefundRepository) ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*refund.Refund, error) {
	query := selectRefund + ` WHERE payment_id = $1 ORDER BY created_at ASC`

	rows, err := r.querier.Query(ctx, query, paymentID)
	if err != nil {
		r.logger.Error("Failed to list refunds by payment", "payment_id", paymentID.String(), "error", err)
		return nil, fmt.Errorf("failed to list refunds by payment: %w", err)
	}
	defer rows.Close()

	return collectRefunds(rows)
}

// ListByStatusOlderThan returns refunds in the given status created before the
// cutoff, oldest first.
func (r *RefundRepository) ListByStatusOlderThan(ctx context.Context, status refund.Status, cutoff time.Time, limit int) ([]*refund.Refund, error) {
	query := selectRefund + ` WHERE status = $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`

	rows, err := r.querier.Query(ctx, query, status, cutoff, limit)
	if err != nil {
		r.logger.Error("Failed to list refunds by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list refunds by status: %w", err)
	}
	defer rows.Close()

	return collectRefunds(rows)
}

// SumAmountByPaymentID totals processing and completed refunds against one
// payment.
func (r *RefundRepository) SumAmountByPaymentID(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE payment_id = $1
	`

	var total decimal.Decimal
	err := r.querier.QueryRow(ctx, query, paymentID).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum refund amounts", "payment_id", paymentID.String(), "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum refund amounts: %w", err)
	}

	return total, nil
}

// SumCompletedAmount totals all completed refunds.
func (r *RefundRepository) SumCompletedAmount(ctx context.Context) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE status = $1
	`

	var total decimal.Decimal
	err := r.querier.QueryRow(ctx, query, refund.StatusCompleted).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum completed refund amounts", "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum completed refund amounts: %w", err)
	}

	return total, nil
}

// UpdateStatus moves a refund to the given lifecycle status.
func (r *RefundRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status refund.Status) error {
	query := `
		UPDATE refunds
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update refund status", "id", id.String(), "status", status, "error", err)
		return fmt.Errorf("failed to update refund status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return refund.ErrRefundNotFound{RefundID: id}
	}

	return nil
}

const selectRefund = `
	SELECT id, payment_id, amount, reason, status, gateway_refund_id, initiated_by, created_at, updated_at
	FROM refunds`

func scanRefund(row rowScanner) (*refund.Refund, error) {
	var rf refund.Refund
	err := row.Scan(
		&rf.ID,
		&rf.PaymentID,
		&rf.Amount,
		&rf.Reason,
		&rf.Status,
		&rf.GatewayRefundID,
		&rf.InitiatedBy,
		&rf.CreatedAt,
		&rf.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rf, nil
}

func collectRefunds(rows pgx.Rows) ([]*refund.Refund, error) {
	var refunds []*refund.Refund
	for rows.Next() {
		rf, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, rf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate refunds: %w", err)
	}
	return refunds, nil
}
