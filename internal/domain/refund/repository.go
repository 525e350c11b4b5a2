package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository persists refund records.
type Repository interface {
	Create(ctx context.Context, r *Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*Refund, error)
	ListByPaymentID(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error)

	// ListByStatusOlderThan returns refunds in the given status created
	// before the cutoff. Used by the reconciliation sweep.
	ListByStatusOlderThan(ctx context.Context, status Status, cutoff time.Time, limit int) ([]*Refund, error)

	// SumAmountByPaymentID totals processing and completed refunds against
	// one payment; the running total backs the cross-refund cap.
	SumAmountByPaymentID(ctx context.Context, paymentID uuid.UUID) (decimal.Decimal, error)

	// SumCompletedAmount totals all completed refunds. Used by the
	// accounting invariant check.
	SumCompletedAmount(ctx context.Context) (decimal.Decimal, error)

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	WithTx(tx pgx.Tx) Repository
}

// ErrRefundNotFound indicates a missing refund record.
type ErrRefundNotFound struct {
	RefundID uuid.UUID
}

func (e ErrRefundNotFound) Error() string {
	return "refund not found: " + e.RefundID.String()
}

// Is matches any ErrRefundNotFound when the target carries a nil ID.
func (e ErrRefundNotFound) Is(target error) bool {
	t, ok := target.(ErrRefundNotFound)
	if !ok {
		return false
	}
	return t.RefundID == uuid.Nil || t.RefundID == e.RefundID
}
