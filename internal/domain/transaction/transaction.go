package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Type identifies the direction and origin of a transaction.
type Type string

const (
	TypeCredit   Type = "CREDIT"   // top-up, increases balance
	TypeUsage    Type = "USAGE"    // fixed fee for a metered call
	TypePurchase Type = "PURCHASE" // precheck/commit purchase charge
	TypeRollback Type = "ROLLBACK" // compensating refund of a reservation
)

// Status tracks the lifecycle of a transaction. A record is created
// PENDING at reservation time and is immutable once finalized.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusCommitted  Status = "COMMITTED"
	StatusRolledBack Status = "ROLLED_BACK"
)

// Record is one immutable ledger transaction. AmountCents is always
// positive; for debit types (USAGE, PURCHASE) BalanceAfter equals the
// pre-state balance minus AmountCents, for credit types (CREDIT,
// ROLLBACK) it equals the pre-state balance plus AmountCents.
type Record struct {
	ID             uuid.UUID  `json:"id" bson:"transaction_id"`
	CredentialID   uuid.UUID  `json:"credential_id" bson:"credential_id"`
	Type           Type       `json:"type" bson:"type"`
	AmountCents    int64      `json:"amount_cents" bson:"amount_cents"`
	BalanceAfter   int64      `json:"balance_after" bson:"balance_after"`
	ProviderID     string     `json:"provider_id,omitempty" bson:"provider_id,omitempty"`
	OperationID    string     `json:"operation_id,omitempty" bson:"operation_id,omitempty"`
	ExternalRef    string     `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	CorrelationID  string     `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Status         Status     `json:"status" bson:"status"`
	FailureReason  string     `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}
