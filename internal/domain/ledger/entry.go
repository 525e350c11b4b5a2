// Package ledger defines the append-only record of signed monetary movements.
// Balances are always derived from entries at read time and are never stored,
// so there is no cached figure that can drift from the entries themselves.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("entry amount must be positive")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrInvalidEntryType   = errors.New("invalid entry type")
)

// AccountType identifies which class of account an entry moves money in.
type AccountType string

const (
	AccountTypeProviderBalance AccountType = "PROVIDER_BALANCE"
	AccountTypePlatformRevenue AccountType = "PLATFORM_REVENUE"
	AccountTypeBankAccount     AccountType = "BANK_ACCOUNT"
)

// Well-known singleton account IDs.
const (
	PlatformAccountID = "PLATFORM"
	BankMainAccountID = "BANK_MAIN"
)

// EntryType is the sign of a movement.
type EntryType string

const (
	EntryTypeCredit EntryType = "CREDIT"
	EntryTypeDebit  EntryType = "DEBIT"
)

// ReferenceType names the business event that caused an entry.
type ReferenceType string

const (
	ReferenceTypePayment ReferenceType = "PAYMENT"
	ReferenceTypePayout  ReferenceType = "PAYOUT"
	ReferenceTypeRefund  ReferenceType = "REFUND"
)

// Entry is an immutable ledger record. Entries are never updated or deleted;
// a logical reversal is a new entry of the opposite sign against the same
// account.
type Entry struct {
	ID            uuid.UUID         `json:"id"`
	AccountType   AccountType       `json:"account_type"`
	AccountID     string            `json:"account_id"`
	EntryType     EntryType         `json:"entry_type"`
	Amount        decimal.Decimal   `json:"amount"`
	ReferenceType ReferenceType     `json:"reference_type"`
	ReferenceID   string            `json:"reference_id"`
	Description   string            `json:"description,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// NewEntryParams carries the caller-supplied fields for a new entry.
type NewEntryParams struct {
	AccountType   AccountType
	AccountID     string
	EntryType     EntryType
	Amount        decimal.Decimal
	ReferenceType ReferenceType
	ReferenceID   string
	Description   string
	Metadata      map[string]string
}

// NewEntry validates the parameters and builds an entry with the amount
// rounded to 2 decimal places. Zero and negative amounts are rejected.
func NewEntry(p NewEntryParams) (*Entry, error) {
	switch p.AccountType {
	case AccountTypeProviderBalance, AccountTypePlatformRevenue, AccountTypeBankAccount:
	default:
		return nil, ErrInvalidAccountType
	}
	switch p.EntryType {
	case EntryTypeCredit, EntryTypeDebit:
	default:
		return nil, ErrInvalidEntryType
	}

	amount := p.Amount.Round(2)
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	return &Entry{
		ID:            uuid.New(),
		AccountType:   p.AccountType,
		AccountID:     p.AccountID,
		EntryType:     p.EntryType,
		Amount:        amount,
		ReferenceType: p.ReferenceType,
		ReferenceID:   p.ReferenceID,
		Description:   p.Description,
		Metadata:      p.Metadata,
		CreatedAt:     time.Now(),
	}, nil
}

// MatchKey is the idempotency tuple used to detect duplicate postings. Two
// entries with the same key represent the same posting for the same business
// event.
type MatchKey struct {
	AccountType   AccountType
	AccountID     string
	EntryType     EntryType
	Amount        decimal.Decimal
	ReferenceType ReferenceType
	ReferenceID   string
}

// Key returns the entry's idempotency tuple.
func (e *Entry) Key() MatchKey {
	return MatchKey{
		AccountType:   e.AccountType,
		AccountID:     e.AccountID,
		EntryType:     e.EntryType,
		Amount:        e.Amount,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
	}
}
