package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository reads payments and moves their status. Creation belongs to the
// booking system of record.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error

	// SumAmountByStatuses totals payment amounts over the given statuses.
	// Used by the accounting invariant check.
	SumAmountByStatuses(ctx context.Context, statuses []Status) (decimal.Decimal, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrPaymentNotFound indicates a missing payment record.
type ErrPaymentNotFound struct {
	PaymentID uuid.UUID
}

func (e ErrPaymentNotFound) Error() string {
	return "payment not found: " + e.PaymentID.String()
}

// Is matches any ErrPaymentNotFound when the target carries a nil ID.
func (e ErrPaymentNotFound) Is(target error) bool {
	t, ok := target.(ErrPaymentNotFound)
	if !ok {
		return false
	}
	return t.PaymentID == uuid.Nil || t.PaymentID == e.PaymentID
}
