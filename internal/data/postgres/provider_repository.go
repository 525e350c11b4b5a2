package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Molemo21/ConnectSA-k9-sub017/internal/domain/provider"
	"github.com/Molemo21/ConnectSA-k9-sub017/internal/platform/persistence"
)

// ProviderRepository implements the provider.Repository interface for PostgreSQL
type ProviderRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewProviderRepository creates a new PostgreSQL provider repository.
func NewProviderRepository(logger *slog.Logger, db *persistence.PostgresDB) provider.Repository {
	return &ProviderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction.
func (r *ProviderRepository) WithTx(tx pgx.Tx) provider.Repository {
	return &ProviderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByID retrieves a provider by its ID
func (r *ProviderRepository) GetByID(ctx context.Context, id string) (*provider.Provider, error) {
	query := `
		SELECT id, name, account_number, bank_code, recipient_code, created_at, updated_at
		FROM providers
		WHERE id = $1
	`

	var p provider.Provider
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.AccountNumber,
		&p.BankCode,
		&p.RecipientCode,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, provider.ErrProviderNotFound{ProviderID: id}
		}
		r.logger.Error("Failed to get provider", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}

	return &p, nil
}

// SetRecipientCode stores the gateway recipient code for a provider so it is
// created at most once.
func (r *ProviderRepository) SetRecipientCode(ctx context.Context, id, recipientCode string) error {
	query := `
		UPDATE providers
		SET recipient_code = $1, updated_at = $2
		WHERE id = $3
	`

	tag, err := r.querier.Exec(ctx, query, recipientCode, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to set provider recipient code", "id", id, "error", err)
		return fmt.Errorf("failed to set provider recipient code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return provider.ErrProviderNotFound{ProviderID: id}
	}

	return nil
}
