// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the settlement engine.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// LedgerRepository implements the ledger.Repository interface for PostgreSQL
type LedgerRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing the duplicate
// pre-check and the insert to share one isolation scope.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends a new ledger entry. A unique index on the idempotency tuple
// backs up the application-level duplicate check; violations are mapped to
// ledger.ErrDuplicateEntry.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, account_type, account_id, entry_type, amount, reference_type, reference_id, description, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	var metadata []byte
	if entry.Metadata != nil {
		var err error
		metadata, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal entry metadata: %w", err)
		}
	}

	_, err := r.querier.Exec(ctx, query,
		entry.ID,
		entry.AccountType,
		entry.AccountID,
		entry.EntryType,
		entry.Amount,
		entry.ReferenceType,
		entry.ReferenceID,
		entry.Description,
		metadata,
		entry.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ledger.ErrDuplicateEntry{Key: entry.Key()}
		}
		r.logger.Error("Failed to create ledger entry", "reference_id", entry.ReferenceID, "error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// FindMatching looks up an existing entry by its idempotency tuple.
// Returns (nil, nil) when no matching entry exists.
func (r *LedgerRepository) FindMatching(ctx context.Context, key ledger.MatchKey) (*ledger.Entry, error) {
	query := `
		SELECT id, account_type, account_id, entry_type, amount, reference_type, reference_id, description, metadata, created_at
		FROM ledger_entries
		WHERE account_type = $1 AND account_id = $2 AND entry_type = $3 AND amount = $4 AND reference_type = $5 AND reference_id = $6
		LIMIT 1
	`

	row := r.querier.QueryRow(ctx, query,
		key.AccountType,
		key.AccountID,
		key.EntryType,
		key.Amount,
		key.ReferenceType,
		key.ReferenceID,
	)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find matching ledger entry", "reference_id", key.ReferenceID, "error", err)
		return nil, fmt.Errorf("failed to find matching ledger entry: %w", err)
	}

	return entry, nil
}

// ListByAccount retrieves all entries for one account, oldest first.
func (r *LedgerRepository) ListByAccount(ctx context.Context, accountType ledger.AccountType, accountID string) ([]*ledger.Entry, error) {
	query := `
		SELECT id, account_type, account_id, entry_type, amount, reference_type, reference_id, description, metadata, created_at
		FROM ledger_entries
		WHERE account_type = $1 AND account_id = $2
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, accountType, accountID)
	if err != nil {
		r.logger.Error("Failed to list ledger entries by account", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to list ledger entries by account: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// ListByReference retrieves all entries posted for one business event.
func (r *LedgerRepository) ListByReference(ctx context.Context, refType ledger.ReferenceType, refID string) ([]*ledger.Entry, error) {
	query := `
		SELECT id, account_type, account_id, entry_type, amount, reference_type, reference_id, description, metadata, created_at
		FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at ASC
	`

	rows, err := r.querier.Query(ctx, query, refType, refID)
	if err != nil {
		r.logger.Error("Failed to list ledger entries by reference", "reference_id", refID, "error", err)
		return nil, fmt.Errorf("failed to list ledger entries by reference: %w", err)
	}
	defer rows.Close()

	return collectEntries(rows)
}

// SumByEntryType runs the grouped credit/debit aggregation for one account.
// The database does the summing so the balance read stays O(1) in transferred
// rows regardless of entry count.
func (r *LedgerRepository) SumByEntryType(ctx context.Context, accountType ledger.AccountType, accountID string) (ledger.EntrySums, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0),
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0)
		FROM ledger_entries
		WHERE account_type = $1 AND account_id = $2
	`

	var sums ledger.EntrySums
	err := r.querier.QueryRow(ctx, query, accountType, accountID).Scan(&sums.Credits, &sums.Debits)
	if err != nil {
		r.logger.Error("Failed to sum ledger entries", "account_id", accountID, "error", err)
		return ledger.EntrySums{}, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	return sums, nil
}

// SumAccountType aggregates credits and debits across every account of the
// given type.
func (r *LedgerRepository) SumAccountType(ctx context.Context, accountType ledger.AccountType) (ledger.EntrySums, error) {
	query := `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'CREDIT'), 0),
			COALESCE(SUM(amount) FILTER (WHERE entry_type = 'DEBIT'), 0)
		FROM ledger_entries
		WHERE account_type = $1
	`

	var sums ledger.EntrySums
	err := r.querier.QueryRow(ctx, query, accountType).Scan(&sums.Credits, &sums.Debits)
	if err != nil {
		r.logger.Error("Failed to sum ledger entries by account type", "account_type", accountType, "error", err)
		return ledger.EntrySums{}, fmt.Errorf("failed to sum ledger entries by account type: %w", err)
	}

	return sums, nil
}

// FindDuplicates groups a reference's entries by account and entry type and
// returns the groups with more than one entry.
func (r *LedgerRepository) FindDuplicates(ctx context.Context, refType ledger.ReferenceType, refID string) ([]ledger.DuplicateGroup, error) {
	query := `
		SELECT account_type, account_id, entry_type, COUNT(*)
		FROM ledger_entries
		WHERE reference_type = $1 AND reference_id = $2
		GROUP BY account_type, account_id, entry_type
		HAVING COUNT(*) > 1
	`

	rows, err := r.querier.Query(ctx, query, refType, refID)
	if err != nil {
		r.logger.Error("Failed to find duplicate ledger entries", "reference_id", refID, "error", err)
		return nil, fmt.Errorf("failed to find duplicate ledger entries: %w", err)
	}
	defer rows.Close()

	var groups []ledger.DuplicateGroup
	for rows.Next() {
		var g ledger.DuplicateGroup
		if err := rows.Scan(&g.AccountType, &g.AccountID, &g.EntryType, &g.Count); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicate groups: %w", err)
	}

	return groups, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*ledger.Entry, error) {
	var (
		entry    ledger.Entry
		amount   decimal.Decimal
		metadata []byte
	)
	err := row.Scan(
		&entry.ID,
		&entry.AccountType,
		&entry.AccountID,
		&entry.EntryType,
		&amount,
		&entry.ReferenceType,
		&entry.ReferenceID,
		&entry.Description,
		&metadata,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Amount = amount
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entry metadata: %w", err)
		}
	}
	return &entry, nil
}

func collectEntries(rows pgx.Rows) ([]*ledger.Entry, error) {
	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}
	return entries, nil
}
