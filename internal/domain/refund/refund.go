// Package refund models full and partial reversals of collected payments.
// Multiple partial refunds may exist for one payment as long as their sum
// stays within the original amount.
package refund

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount  = errors.New("refund amount must be positive")
	ErrExceedsPayment = errors.New("refund amount exceeds refundable payment amount")
)

// Status is the refund lifecycle. A refund stuck in PROCESSING is picked up
// by the reconciliation sweep.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
)

// Refund is one reversal against a payment.
type Refund struct {
	ID              uuid.UUID       `json:"id"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	Status          Status          `json:"status"`
	GatewayRefundID string          `json:"gateway_refund_id,omitempty"`
	InitiatedBy     string          `json:"initiated_by"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewRefund builds a processing refund referencing the gateway's refund ID.
func NewRefund(paymentID uuid.UUID, amount decimal.Decimal, reason, gatewayRefundID, initiatedBy string) *Refund {
	now := time.Now()
	return &Refund{
		ID:              uuid.New(),
		PaymentID:       paymentID,
		Amount:          amount.Round(2),
		Reason:          reason,
		Status:          StatusProcessing,
		GatewayRefundID: gatewayRefundID,
		InitiatedBy:     initiatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
