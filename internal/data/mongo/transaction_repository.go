// Package mongo provides the MongoDB implementation of the transaction
// record repository. Records are append-only: a pending record is
// finalized exactly once and never touched again.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/upstream-billing-gateway/internal/domain/transaction"
)

const (
	// TransactionCollectionName is the name of the transaction collection in MongoDB
	TransactionCollectionName = "transactions"
)

// TransactionRepository implements transaction.Repository for MongoDB
type TransactionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewTransactionRepository creates a new MongoDB transaction repository
func NewTransactionRepository(logger *slog.Logger, db *mongo.Database) transaction.Repository {
	return &TransactionRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores a new transaction record
func (r *TransactionRepository) Create(ctx context.Context, rec *transaction.Record) error {
	collection := r.db.Collection(TransactionCollectionName)

	_, err := collection.InsertOne(ctx, rec)
	if err != nil {
		r.logger.Error("Failed to create transaction record",
			"transaction_id", rec.ID.String(),
			"error", err)
		return fmt.Errorf("failed to create transaction record: %w", err)
	}

	return nil
}

// Finalize moves a pending record to its terminal status. Records that
// already reached a terminal status are not matched and the call
// returns ErrRecordNotFound, which keeps finalized records immutable.
func (r *TransactionRepository) Finalize(ctx context.Context, id uuid.UUID, fin transaction.Finalization) error {
	collection := r.db.Collection(TransactionCollectionName)

	now := time.Now()
	update := bson.M{
		"status":        fin.Status,
		"amount_cents":  fin.AmountCents,
		"balance_after": fin.BalanceAfter,
		"processed_at":  now,
	}
	if fin.ExternalRef != "" {
		update["external_ref"] = fin.ExternalRef
	}
	if fin.FailureReason != "" {
		update["failure_reason"] = fin.FailureReason
	}

	filter := bson.M{"transaction_id": id, "status": transaction.StatusPending}
	result, err := collection.UpdateOne(ctx, filter, bson.M{"$set": update})
	if err != nil {
		r.logger.Error("Failed to finalize transaction record",
			"transaction_id", id.String(),
			"error", err)
		return fmt.Errorf("failed to finalize transaction record: %w", err)
	}

	if result.MatchedCount == 0 {
		return transaction.ErrRecordNotFound{TransactionID: id}
	}

	return nil
}

// GetByID retrieves a transaction record by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Record, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"transaction_id": id}
	var rec transaction.Record
	err := collection.FindOne(ctx, filter).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, transaction.ErrRecordNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction record",
			"transaction_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction record: %w", err)
	}

	return &rec, nil
}

// GetByCredentialID retrieves paginated transaction records for a
// credential, newest first.
func (r *TransactionRepository) GetByCredentialID(ctx context.Context, credentialID uuid.UUID, limit, offset int) ([]*transaction.Record, error) {
	collection := r.db.Collection(TransactionCollectionName)

	filter := bson.M{"credential_id": credentialID}
	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get transaction records",
			"credential_id", credentialID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*transaction.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode transaction records",
			"credential_id", credentialID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode transaction records: %w", err)
	}

	return records, nil
}

// CountByCredentialID counts all transaction records for a credential
func (r *TransactionRepository) CountByCredentialID(ctx context.Context, credentialID uuid.UUID) (int64, error) {
	collection := r.db.Collection(TransactionCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"credential_id": credentialID})
	if err != nil {
		r.logger.Error("Failed to count transaction records",
			"credential_id", credentialID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count transaction records: %w", err)
	}

	return count, nil
}
