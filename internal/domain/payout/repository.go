package payout

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository persists payout records.
type Repository interface {
	Create(ctx context.Context, p *Payout) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	GetByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Payout, error)
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Payout, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error

	// RecordAttempt persists the attempt counter together with the status
	// the attempt moved the payout into.
	RecordAttempt(ctx context.Context, id uuid.UUID, attempts int, status Status) error

	// SetTransferResult stores the gateway-assigned transfer identifiers
	// alongside the new status.
	SetTransferResult(ctx context.Context, id uuid.UUID, transferCode, gatewayRef string, status Status) error

	WithTx(tx pgx.Tx) Repository
}

// ErrPayoutNotFound indicates a missing payout record.
type ErrPayoutNotFound struct {
	PayoutID uuid.UUID
}

func (e ErrPayoutNotFound) Error() string {
	return "payout not found: " + e.PayoutID.String()
}

// Is matches any ErrPayoutNotFound when the target carries a nil ID.
func (e ErrPayoutNotFound) Is(target error) bool {
	t, ok := target.(ErrPayoutNotFound)
	if !ok {
		return false
	}
	return t.PayoutID == uuid.Nil || t.PayoutID == e.PayoutID
}
