// Package postgres provides the PostgreSQL implementation of the
// credential repository. The ledger owns balance arithmetic; this layer
// only persists the authoritative state it is handed.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/platform/persistence"
)

// CredentialRepository implements credential.Repository for PostgreSQL
type CredentialRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewCredentialRepository creates a new PostgreSQL credential repository.
func NewCredentialRepository(logger *slog.Logger, db *persistence.PostgresDB) credential.Repository {
	return &CredentialRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new credential
func (r *CredentialRepository) Create(ctx context.Context, cred *credential.Credential) error {
	query := `
		INSERT INTO credentials (id, name, balance_cents, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.querier.Exec(ctx, query,
		cred.ID,
		cred.Name,
		cred.Balance,
		cred.Archived,
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create credential", "error", err)
		return fmt.Errorf("failed to create credential: %w", err)
	}

	return nil
}

// GetByID retrieves a credential by its ID
func (r *CredentialRepository) GetByID(ctx context.Context, id uuid.UUID) (*credential.Credential, error) {
	query := `
		SELECT id, name, balance_cents, archived, created_at, updated_at
		FROM credentials
		WHERE id = $1
	`

	var cred credential.Credential
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&cred.ID,
		&cred.Name,
		&cred.Balance,
		&cred.Archived,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credential.ErrCredentialNotFound{CredentialID: id}
		}
		r.logger.Error("Failed to get credential", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	return &cred, nil
}

// SetBalance persists the ledger's authoritative balance
func (r *CredentialRepository) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	query := `
		UPDATE credentials
		SET balance_cents = $1, updated_at = NOW()
		WHERE id = $2
	`

	result, err := r.querier.Exec(ctx, query, balance, id)
	if err != nil {
		r.logger.Error("Failed to persist credential balance", "id", id.String(), "error", err)
		return fmt.Errorf("failed to persist credential balance: %w", err)
	}

	if result.RowsAffected() == 0 {
		return credential.ErrCredentialNotFound{CredentialID: id}
	}

	return nil
}

// Archive marks a credential as archived; the row and its history remain
func (r *CredentialRepository) Archive(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE credentials
		SET archived = TRUE, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query, id)
	if err != nil {
		r.logger.Error("Failed to archive credential", "id", id.String(), "error", err)
		return fmt.Errorf("failed to archive credential: %w", err)
	}

	if result.RowsAffected() == 0 {
		return credential.ErrCredentialNotFound{CredentialID: id}
	}

	return nil
}
