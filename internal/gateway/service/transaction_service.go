package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	transactionRepo transaction.Repository
	logger          *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, transactionRepo transaction.Repository) TransactionService {
	return &TransactionServiceImpl{
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// GetTransactionByID retrieves a transaction record by its ID
func (s *TransactionServiceImpl) GetTransactionByID(ctx context.Context, id uuid.UUID) (*transaction.Record, error) {
	return s.transactionRepo.GetByID(ctx, id)
}

// GetTransactionsByCredentialID retrieves a paginated transaction history, newest first
func (s *TransactionServiceImpl) GetTransactionsByCredentialID(ctx context.Context, credentialID uuid.UUID, page, perPage int) ([]*transaction.Record, int64, error) {
	offset := (page - 1) * perPage

	records, err := s.transactionRepo.GetByCredentialID(ctx, credentialID, perPage, offset)
	if err != nil {
		s.logger.Error("Failed to list transactions",
			"credential_id", credentialID.String(),
			"error", err,
		)
		return nil, 0, err
	}

	total, err := s.transactionRepo.CountByCredentialID(ctx, credentialID)
	if err != nil {
		s.logger.Error("Failed to count transactions",
			"credential_id", credentialID.String(),
			"error", err,
		)
		return nil, 0, err
	}

	return records, total, nil
}
