// Package payment models the payment records owned by the booking system of
// record. The settlement engine reads payments and moves their status, but
// never creates them; how money enters the system is the checkout side's
// concern.
package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyRefunded = errors.New("payment is already refunded")
	ErrNotRefundable   = errors.New("payment is not in a refundable state")
)

// Status is the settlement-relevant payment lifecycle.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusEscrow   Status = "ESCROW"
	StatusReleased Status = "RELEASED"
	StatusRefunded Status = "REFUNDED"
	StatusFailed   Status = "FAILED"
)

// Payment is a charge collected for a booking. Amount = EscrowAmount +
// PlatformFee; EscrowAmount is held on behalf of the provider until the job
// completes.
type Payment struct {
	ID           uuid.UUID       `json:"id"`
	BookingID    uuid.UUID       `json:"booking_id"`
	ProviderID   string          `json:"provider_id"`
	Amount       decimal.Decimal `json:"amount"`
	EscrowAmount decimal.Decimal `json:"escrow_amount"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
	Status       Status          `json:"status"`
	GatewayRef   string          `json:"gateway_ref"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Refundable reports whether a refund may be issued against this payment.
// Only escrowed or released payments qualify.
func (p *Payment) Refundable() error {
	switch p.Status {
	case StatusRefunded:
		return ErrAlreadyRefunded
	case StatusEscrow, StatusReleased:
		return nil
	default:
		return ErrNotRefundable
	}
}
