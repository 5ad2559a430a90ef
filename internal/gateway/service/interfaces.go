package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/billing"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
)

// BillingService executes billed calls against registered providers.
// Implemented by billing.Biller
type BillingService interface {
	Invoke(ctx context.Context, req billing.InvokeRequest) (*billing.Outcome, error)
}

// CredentialService defines the interface for credential operations
type CredentialService interface {
	// CreateCredential creates a new credential with an opening balance
	CreateCredential(ctx context.Context, name string, initialBalanceCents int64) (*credential.Credential, error)

	// GetCredential retrieves a credential by its ID with the live balance
	// Returns ErrCredentialNotFound if the credential doesn't exist
	GetCredential(ctx context.Context, id uuid.UUID) (*credential.Credential, error)

	// Credit adds funds to a credential and returns the new balance
	Credit(ctx context.Context, id uuid.UUID, amountCents int64) (int64, error)

	// Archive marks a credential as archived, rejecting further billed calls
	Archive(ctx context.Context, id uuid.UUID) error
}

// TransactionService defines the interface for transaction record reads
type TransactionService interface {
	// GetTransactionByID retrieves a transaction record by its ID
	// Returns ErrRecordNotFound if no record exists
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Record, error)

	// GetTransactionsByCredentialID retrieves a paginated transaction history,
	// newest first. Returns records, total count and any error
	GetTransactionsByCredentialID(ctx context.Context, credentialID uuid.UUID, page, perPage int) ([]*transaction.Record, int64, error)
}
