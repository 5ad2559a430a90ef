package transaction

import (
	"context"

	"github.com/google/uuid"
)

// Finalization carries the terminal state of a pending record.
type Finalization struct {
	Status        Status
	AmountCents   int64
	BalanceAfter  int64
	ExternalRef   string
	FailureReason string
}

// Repository manages transaction record persistence with pagination support
type Repository interface {
	Create(ctx context.Context, rec *Record) error

	// Finalize moves a pending record to a terminal status. Finalized
	// records are never updated again.
	Finalize(ctx context.Context, id uuid.UUID, fin Finalization) error

	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByCredentialID(ctx context.Context, credentialID uuid.UUID, limit, offset int) ([]*Record, error)
	CountByCredentialID(ctx context.Context, credentialID uuid.UUID) (int64, error)
}

// ErrRecordNotFound indicates a missing transaction record
type ErrRecordNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "transaction record not found: " + e.TransactionID.String()
}

// Is matches any ErrRecordNotFound when the target carries a nil ID
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
