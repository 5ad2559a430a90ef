package credential

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrEmptyName     = errors.New("credential name cannot be empty")
)

// Credential is a billing identity. Its balance is stored in cents
// (smallest currency unit) and is mutated only through ledger operations.
// Credentials are never deleted, only archived.
type Credential struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Balance   int64     `json:"balance_cents"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a credential with an optional starting balance.
func New(name string, initialBalance int64) (*Credential, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Credential{
		ID:        uuid.New(),
		Name:      name,
		Balance:   initialBalance,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
