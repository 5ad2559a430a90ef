package credential

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines credential persistence operations. Balance writes go
// through SetBalance; the ledger owns the arithmetic and serialization.
type Repository interface {
	Create(ctx context.Context, cred *Credential) error
	GetByID(ctx context.Context, id uuid.UUID) (*Credential, error)

	// SetBalance persists the authoritative balance computed by the ledger.
	SetBalance(ctx context.Context, id uuid.UUID, balance int64) error

	// Archive marks the credential as archived; it keeps its history.
	Archive(ctx context.Context, id uuid.UUID) error
}

// ErrCredentialNotFound indicates a missing credential
type ErrCredentialNotFound struct {
	CredentialID uuid.UUID
}

func (e ErrCredentialNotFound) Error() string {
	return "credential not found: " + e.CredentialID.String()
}

// Is matches any ErrCredentialNotFound when the target carries a nil ID
func (e ErrCredentialNotFound) Is(target error) bool {
	t, ok := target.(ErrCredentialNotFound)
	if !ok {
		return false
	}
	if t.CredentialID == uuid.Nil {
		return true
	}
	return e.CredentialID == t.CredentialID
}

// ErrCredentialArchived indicates the credential can no longer be billed
type ErrCredentialArchived struct {
	CredentialID uuid.UUID
}

func (e ErrCredentialArchived) Error() string {
	return "credential is archived: " + e.CredentialID.String()
}

// Is matches any ErrCredentialArchived when the target carries a nil ID
func (e ErrCredentialArchived) Is(target error) bool {
	t, ok := target.(ErrCredentialArchived)
	if !ok {
		return false
	}
	if t.CredentialID == uuid.Nil {
		return true
	}
	return e.CredentialID == t.CredentialID
}
