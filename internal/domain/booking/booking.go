// Package booking carries the slice of the booking lifecycle the settlement
// engine needs: the status transitions that trigger settlement side effects.
// The full booking lifecycle (creation, scheduling) is owned elsewhere.
package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the booking state as seen by settlement.
type Status string

const (
	StatusConfirmed       Status = "CONFIRMED"
	StatusPaymentReceived Status = "PAYMENT_RECEIVED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
)

// Valid reports whether s is a known booking status.
func (s Status) Valid() bool {
	switch s {
	case StatusConfirmed, StatusPaymentReceived, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Booking is a service engagement between a client and a provider.
type Booking struct {
	ID          uuid.UUID `json:"id"`
	ClientID    string    `json:"client_id"`
	ProviderID  string    `json:"provider_id"`
	ServiceName string    `json:"service_name"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
