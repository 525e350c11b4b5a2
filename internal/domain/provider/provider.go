// Package provider holds the payout-relevant slice of service provider
// records: the bank details and gateway recipient code needed to create
// transfers.
package provider

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Provider is a service provider eligible for payouts.
type Provider struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	AccountNumber string    `json:"account_number"`
	BankCode      string    `json:"bank_code"`
	RecipientCode string    `json:"recipient_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Repository reads providers and stores gateway recipient codes once they
// have been created.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Provider, error)
	SetRecipientCode(ctx context.Context, id, recipientCode string) error
	WithTx(tx pgx.Tx) Repository
}

// ErrProviderNotFound indicates a missing provider record.
type ErrProviderNotFound struct {
	ProviderID string
}

func (e ErrProviderNotFound) Error() string {
	return "provider not found: " + e.ProviderID
}

// Is matches any ErrProviderNotFound when the target carries an empty ID.
func (e ErrProviderNotFound) Is(target error) bool {
	t, ok := target.(ErrProviderNotFound)
	if !ok {
		return false
	}
	return t.ProviderID == "" || t.ProviderID == e.ProviderID
}
