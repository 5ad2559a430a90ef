package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/billing"
	"github.com/upstream-billing-gateway/internal/domain/credential"
)

// CredentialServiceImpl implements the CredentialService interface
type CredentialServiceImpl struct {
	credentialRepo credential.Repository
	ledger         *billing.Ledger
}

// NewCredentialService creates a new credential service
func NewCredentialService(credentialRepo credential.Repository, ledger *billing.Ledger) CredentialService {
	return &CredentialServiceImpl{
		credentialRepo: credentialRepo,
		ledger:         ledger,
	}
}

// CreateCredential creates a new credential with an opening balance
func (s *CredentialServiceImpl) CreateCredential(ctx context.Context, name string, initialBalanceCents int64) (*credential.Credential, error) {
	cred, err := credential.New(name, initialBalanceCents)
	if err != nil {
		return nil, err
	}

	if err := s.credentialRepo.Create(ctx, cred); err != nil {
		return nil, err
	}

	return cred, nil
}

// GetCredential retrieves a credential by its ID. The ledger holds the
// authoritative balance, so the stored one is overlaid before returning.
func (s *CredentialServiceImpl) GetCredential(ctx context.Context, id uuid.UUID) (*credential.Credential, error) {
	cred, err := s.credentialRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, id)
	if err != nil {
		return nil, err
	}
	cred.Balance = balance

	return cred, nil
}

// Credit adds funds to a credential and returns the new balance
func (s *CredentialServiceImpl) Credit(ctx context.Context, id uuid.UUID, amountCents int64) (int64, error) {
	return s.ledger.Credit(ctx, id, amountCents)
}

// Archive marks a credential as archived
func (s *CredentialServiceImpl) Archive(ctx context.Context, id uuid.UUID) error {
	return s.ledger.Archive(ctx, id)
}
