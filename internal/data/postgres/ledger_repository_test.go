package postgres

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/ledger"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testEntry() *ledger.Entry {
	now := time.Now()
	return &ledger.Entry{
		ID:            uuid.New(),
		AccountType:   ledger.AccountTypeProviderBalance,
		AccountID:     "prov-1",
		EntryType:     ledger.EntryTypeCredit,
		Amount:        decimal.RequireFromString("90.00"),
		ReferenceType: ledger.ReferenceTypePayment,
		ReferenceID:   uuid.NewString(),
		Description:   "escrow hold",
		CreatedAt:     now,
	}
}

func TestLedgerRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	entry := testEntry()

	query := `
		INSERT INTO ledger_entries \(id, account_type, account_id, entry_type, amount, reference_type, reference_id, description, metadata, created_at\)
		VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7, \$8, \$9, \$10\)
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(entry.ID, entry.AccountType, entry.AccountID, entry.EntryType, entry.Amount, entry.ReferenceType, entry.ReferenceID, entry.Description, []byte(nil), entry.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, entry)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate entry", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(entry.ID, entry.AccountType, entry.AccountID, entry.EntryType, entry.Amount, entry.ReferenceType, entry.ReferenceID, entry.Description, []byte(nil), entry.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: uniqueViolation})

		err := repo.Create(ctx, entry)
		assert.ErrorIs(t, err, ledger.ErrDuplicateEntry{})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(entry.ID, entry.AccountType, entry.AccountID, entry.EntryType, entry.Amount, entry.ReferenceType, entry.ReferenceID, entry.Description, []byte(nil), entry.CreatedAt).
			WillReturnError(expectedErr)

		err := repo.Create(ctx, entry)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create ledger entry")
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_FindMatching(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	entry := testEntry()
	key := entry.Key()

	query := `
		SELECT id, account_type, account_id, entry_type, amount, reference_type, reference_id, description, metadata, created_at
		FROM ledger_entries
		WHERE account_type = \$1 AND account_id = \$2 AND entry_type = \$3 AND amount = \$4 AND reference_type = \$5 AND reference_id = \$6
		LIMIT 1
	`

	t.Run("found", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"id", "account_type", "account_id", "entry_type", "amount", "reference_type", "reference_id", "description", "metadata", "created_at"}).
			AddRow(entry.ID, entry.AccountType, entry.AccountID, entry.EntryType, entry.Amount, entry.ReferenceType, entry.ReferenceID, entry.Description, []byte(nil), entry.CreatedAt)

		mock.ExpectQuery(query).
			WithArgs(key.AccountType, key.AccountID, key.EntryType, key.Amount, key.ReferenceType, key.ReferenceID).
			WillReturnRows(rows)

		found, err := repo.FindMatching(ctx, key)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, entry.ID, found.ID)
		assert.True(t, entry.Amount.Equal(found.Amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found returns nil, nil", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(key.AccountType, key.AccountID, key.EntryType, key.Amount, key.ReferenceType, key.ReferenceID).
			WillReturnError(pgx.ErrNoRows)

		found, err := repo.FindMatching(ctx, key)
		assert.NoError(t, err)
		assert.Nil(t, found)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_SumByEntryType(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}

	query := `
		SELECT
			COALESCE\(SUM\(amount\) FILTER \(WHERE entry_type = 'CREDIT'\), 0\),
			COALESCE\(SUM\(amount\) FILTER \(WHERE entry_type = 'DEBIT'\), 0\)
		FROM ledger_entries
		WHERE account_type = \$1 AND account_id = \$2
	`

	t.Run("returns grouped sums", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"credits", "debits"}).
			AddRow(decimal.RequireFromString("150.00"), decimal.RequireFromString("40.50"))

		mock.ExpectQuery(query).
			WithArgs(ledger.AccountTypeProviderBalance, "prov-1").
			WillReturnRows(rows)

		sums, err := repo.SumByEntryType(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		require.NoError(t, err)
		assert.True(t, sums.Credits.Equal(decimal.RequireFromString("150.00")))
		assert.True(t, sums.Debits.Equal(decimal.RequireFromString("40.50")))
		assert.True(t, sums.Balance().Equal(decimal.RequireFromString("109.50")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure", func(t *testing.T) {
		expectedErr := errors.New("db error")
		mock.ExpectQuery(query).
			WithArgs(ledger.AccountTypeProviderBalance, "prov-1").
			WillReturnError(expectedErr)

		_, err := repo.SumByEntryType(ctx, ledger.AccountTypeProviderBalance, "prov-1")
		assert.Error(t, err)
		assert.ErrorIs(t, err, expectedErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerRepository_FindDuplicates(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &LedgerRepository{querier: mock, logger: logger}
	refID := uuid.NewString()

	query := `
		SELECT account_type, account_id, entry_type, COUNT\(\*\)
		FROM ledger_entries
		WHERE reference_type = \$1 AND reference_id = \$2
		GROUP BY account_type, account_id, entry_type
		HAVING COUNT\(\*\) > 1
	`

	t.Run("reports groups with more than one entry", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"account_type", "account_id", "entry_type", "count"}).
			AddRow(ledger.AccountTypeProviderBalance, "prov-1", ledger.EntryTypeCredit, int64(2))

		mock.ExpectQuery(query).
			WithArgs(ledger.ReferenceTypePayment, refID).
			WillReturnRows(rows)

		groups, err := repo.FindDuplicates(ctx, ledger.ReferenceTypePayment, refID)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Equal(t, int64(2), groups[0].Count)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clean reference yields no groups", func(t *testing.T) {
		rows := pgxmock.NewRows([]string{"account_type", "account_id", "entry_type", "count"})

		mock.ExpectQuery(query).
			WithArgs(ledger.ReferenceTypePayment, refID).
			WillReturnRows(rows)

		groups, err := repo.FindDuplicates(ctx, ledger.ReferenceTypePayment, refID)
		require.NoError(t, err)
		assert.Empty(t, groups)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
