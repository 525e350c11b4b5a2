// Package payout models transfers of escrowed funds from the platform to a
// provider's external account. Payout records are mutated only by the
// transfer state machine.
package payout

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotRetryable is returned when a retry loop is requested for a
	// payout that is not in FAILED status.
	ErrNotRetryable = errors.New("payout is not in a retryable state")

	// ErrRetryInFlight is returned when a retry loop is already running
	// for the payout.
	ErrRetryInFlight = errors.New("payout retry already in flight")

	// ErrBudgetExhausted is returned when a payout has spent its whole
	// attempt budget. Retrying the same request cannot succeed; the payout
	// stays FAILED until it is resolved out of band.
	ErrBudgetExhausted = errors.New("payout retry budget exhausted")
)

// Status is the transfer state machine's state.
// PENDING -> PROCESSING -> {COMPLETED, FAILED}; COMPLETED and FAILED are
// terminal, though FAILED payouts may re-enter the machine through the
// bounded retry loop.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Payout is a single escrow release toward a provider. Attempts is persisted
// so a restarted process resumes the retry budget instead of starting over.
type Payout struct {
	ID            uuid.UUID       `json:"id"`
	PaymentID     uuid.UUID       `json:"payment_id"`
	ProviderID    string          `json:"provider_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        Status          `json:"status"`
	TransferCode  string          `json:"transfer_code,omitempty"`
	GatewayRef    string          `json:"gateway_ref,omitempty"`
	RecipientCode string          `json:"recipient_code,omitempty"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewPayout builds a pending payout for a payment's escrow amount.
func NewPayout(paymentID uuid.UUID, providerID string, amount decimal.Decimal) *Payout {
	now := time.Now()
	return &Payout{
		ID:         uuid.New(),
		PaymentID:  paymentID,
		ProviderID: providerID,
		Amount:     amount.Round(2),
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
