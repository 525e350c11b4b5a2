package ledger

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EntrySums holds the grouped aggregation of entries for one account.
type EntrySums struct {
	Credits decimal.Decimal
	Debits  decimal.Decimal
}

// Balance returns credits minus debits, rounded to 2 decimal places. The
// result may legitimately be negative for provider accounts (debt).
func (s EntrySums) Balance() decimal.Decimal {
	return s.Credits.Sub(s.Debits).Round(2)
}

// DuplicateGroup describes a set of entries sharing the same
// (account type, account ID, entry type) for one reference. Count > 1 is a
// detected double-posting.
type DuplicateGroup struct {
	AccountType AccountType
	AccountID   string
	EntryType   EntryType
	Count       int64
}

// Repository manages ledger entry persistence. Implementations must be usable
// both against a connection pool and inside a caller-supplied transaction via
// WithTx, so the duplicate pre-check and the insert share the caller's
// isolation scope.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	FindMatching(ctx context.Context, key MatchKey) (*Entry, error)
	ListByAccount(ctx context.Context, accountType AccountType, accountID string) ([]*Entry, error)
	ListByReference(ctx context.Context, refType ReferenceType, refID string) ([]*Entry, error)

	// SumByEntryType runs the grouped aggregation for one account.
	SumByEntryType(ctx context.Context, accountType AccountType, accountID string) (EntrySums, error)

	// SumAccountType aggregates across every account of the given type.
	SumAccountType(ctx context.Context, accountType AccountType) (EntrySums, error)

	// FindDuplicates groups a reference's entries by account and entry type
	// and returns groups with more than one entry.
	FindDuplicates(ctx context.Context, refType ReferenceType, refID string) ([]DuplicateGroup, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrDuplicateEntry indicates the storage-level uniqueness constraint on the
// idempotency tuple rejected an insert. Callers treat this as the
// existing-entry case.
type ErrDuplicateEntry struct {
	Key MatchKey
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate ledger entry for " + string(e.Key.ReferenceType) + ":" + e.Key.ReferenceID
}

// Is matches any ErrDuplicateEntry regardless of key.
func (e ErrDuplicateEntry) Is(target error) bool {
	_, ok := target.(ErrDuplicateEntry)
	return ok
}
