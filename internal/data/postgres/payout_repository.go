package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/payout"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
)

// PayoutRepository implements the payout.Repository interface for PostgreSQL
type PayoutRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPayoutRepository creates a new PostgreSQL payout repository.
func NewPayoutRepository(logger *slog.Logger, db *persistence.PostgresDB) payout.Repository {
	return &PayoutRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction.
func (r *PayoutRepository) WithTx(tx pgx.Tx) payout.Repository {
	return &PayoutRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new payout record. The unique constraint on payment_id
// guarantees at most one payout per payment.
func (r *PayoutRepository) Create(ctx context.Context, p *payout.Payout) error {
	query := `
		INSERT INTO payouts (id, payment_id, provider_id, amount, status, transfer_code, gateway_ref, recipient_code, attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		p.ID,
		p.PaymentID,
		p.ProviderID,
		p.Amount,
		p.Status,
		p.TransferCode,
		p.GatewayRef,
		p.RecipientCode,
		p.Attempts,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payout", "payment_id", p.PaymentID.String(), "error", err)
		return fmt.Errorf("failed to create payout: %w", err)
	}

	return nil
}

// GetByID retrieves a payout by its ID
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	query := selectPayout + ` WHERE id = $1`

	p, err := r.scanPayout(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrPayoutNotFound{PayoutID: id}
		}
		r.logger.Error("Failed to get payout", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}

	return p, nil
}

// GetByPaymentID retrieves the payout created for a payment.
// Returns (nil, nil) when the payment has no payout yet.
func (r *PayoutRepository) GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*payout.Payout, error) {
	query := selectPayout + ` WHERE payment_id = $1`

	p, err := r.scanPayout(r.querier.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get payout by payment", "payment_id", paymentID.String(), "error", err)
		return nil, fmt.Errorf("failed to get payout by payment: %w", err)
	}

	return p, nil
}

// ListByStatus retrieves payouts in the given status, oldest first.
func (r *PayoutRepository) ListByStatus(ctx context.Context, status payout.Status, limit int) ([]*payout.Payout, error) {
	query := selectPayout + ` WHERE status = $1 ORDER BY created_at ASC LIMIT $2`

	rows, err := r.querier.Query(ctx, query, status, limit)
	if err != nil {
		r.logger.Error("Failed to list payouts by status", "status", status, "error", err)
		return nil, fmt.Errorf("failed to list payouts by status: %w", err)
	}
	defer rows.Close()

	var payouts []*payout.Payout
	for rows.Next() {
		p, err := r.scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payouts: %w", err)
	}

	return payouts, nil
}

// UpdateStatus moves a payout to the given state.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status payout.Status) error {
	query := `
		UPDATE payouts
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update payout status", "id", id.String(), "status", status, "error", err)
		return fmt.Errorf("failed to update payout status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payout.ErrPayoutNotFound{PayoutID: id}
	}

	return nil
}

// RecordAttempt persists the attempt counter and the status the attempt moved
// the payout into; a restarted worker resumes from this counter.
func (r *PayoutRepository) RecordAttempt(ctx context.Context, id uuid.UUID, attempts int, status payout.Status) error {
	query := `
		UPDATE payouts
		SET attempts = $1, status = $2, updated_at = $3
		WHERE id = $4
	`

	tag, err := r.querier.Exec(ctx, query, attempts, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to record payout attempt", "id", id.String(), "attempts", attempts, "error", err)
		return fmt.Errorf("failed to record payout attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payout.ErrPayoutNotFound{PayoutID: id}
	}

	return nil
}

// SetTransferResult stores the gateway-assigned transfer identifiers alongside
// the new status.
func (r *PayoutRepository) SetTransferResult(ctx context.Context, id uuid.UUID, transferCode, gatewayRef string, status payout.Status) error {
	query := `
		UPDATE payouts
		SET transfer_code = $1, gateway_ref = $2, status = $3, updated_at = $4
		WHERE id = $5
	`

	tag, err := r.querier.Exec(ctx, query, transferCode, gatewayRef, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to set payout transfer result", "id", id.String(), "status", status, "error", err)
		return fmt.Errorf("failed to set payout transfer result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payout.ErrPayoutNotFound{PayoutID: id}
	}

	return nil
}

const selectPayout = `
	SELECT id, payment_id, provider_id, amount, status, transfer_code, gateway_ref, recipient_code, attempts, created_at, updated_at
	FROM payouts`

func (r *PayoutRepository) scanPayout(row rowScanner) (*payout.Payout, error) {
	var p payout.Payout
	err := row.Scan(
		&p.ID,
		&p.PaymentID,
		&p.ProviderID,
		&p.Amount,
		&p.Status,
		&p.TransferCode,
		&p.GatewayRef,
		&p.RecipientCode,
		&p.Attempts,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
