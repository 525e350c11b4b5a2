// Package shared holds the event contract exchanged between the booking
// system of record and the settlement worker.
package shared

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEventType = errors.New("invalid settlement event type")

// EventType names a settlement-relevant booking transition or gateway
// callback.
type EventType string

const (
	// EventPaymentReceived fires when a charge settles into escrow.
	EventPaymentReceived EventType = "PAYMENT_RECEIVED"
	// EventJobCompleted fires when the provider finishes the job and
	// escrow should be released.
	EventJobCompleted EventType = "JOB_COMPLETED"
	// EventPayoutRetryRequested asks the engine to re-drive a failed
	// payout through the transfer retry loop.
	EventPayoutRetryRequested EventType = "PAYOUT_RETRY_REQUESTED"
	// EventTransferConfirmed is the gateway's confirmation that a
	// transfer landed.
	EventTransferConfirmed EventType = "TRANSFER_CONFIRMED"
	// EventTransferFailed is the gateway's notification that an accepted
	// transfer later bounced.
	EventTransferFailed EventType = "TRANSFER_FAILED"
)

// SettlementEvent is the Kafka message driving the settlement worker.
// Delivery is at-least-once; every consumer path must be idempotent.
type SettlementEvent struct {
	EventID       uuid.UUID `json:"event_id"`
	Type          EventType `json:"type"`
	BookingID     uuid.UUID `json:"booking_id,omitempty"`
	PaymentID     uuid.UUID `json:"payment_id,omitempty"`
	PayoutID      uuid.UUID `json:"payout_id,omitempty"`
	TransferCode  string    `json:"transfer_code,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Validate checks the event names a known type and carries the ID its type
// requires.
func (e *SettlementEvent) Validate() error {
	switch e.Type {
	case EventPaymentReceived, EventJobCompleted:
		if e.PaymentID == uuid.Nil {
			return errors.New("payment_id is required for " + string(e.Type))
		}
	case EventPayoutRetryRequested, EventTransferConfirmed, EventTransferFailed:
		if e.PayoutID == uuid.Nil {
			return errors.New("payout_id is required for " + string(e.Type))
		}
	default:
		return ErrInvalidEventType
	}
	return nil
}
