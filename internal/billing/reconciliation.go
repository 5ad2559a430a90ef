package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReconciliationReason classifies why a charge state became ambiguous.
type ReconciliationReason string

const (
	// ReasonOverCharge: the purchase operation reported an amount above
	// what the precheck approved; the commit was rejected.
	ReasonOverCharge ReconciliationReason = "purchase_exceeded_reservation"

	// ReasonResolutionTimeout: the upstream purchase call did not
	// resolve within the watchdog window; the upstream side effect may
	// still have happened.
	ReasonResolutionTimeout ReconciliationReason = "upstream_resolution_timeout"
)

// ReconciliationEvent flags a transaction whose true relationship
// between charged funds and executed upstream effect cannot be proven
// automatically. Events are routed to an operational channel, never to
// the caller.
type ReconciliationEvent struct {
	EventID       uuid.UUID            `json:"event_id"`
	CredentialID  uuid.UUID            `json:"credential_id"`
	TransactionID uuid.UUID            `json:"transaction_id"`
	ProviderID    string               `json:"provider_id"`
	OperationID   string               `json:"operation_id"`
	ReservedCents int64                `json:"reserved_cents"`
	ActualCents   int64                `json:"actual_cents,omitempty"`
	Reason        ReconciliationReason `json:"reason"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

// ReconciliationReporter publishes reconciliation-required events.
// Reporting is fire-and-forget; implementations log their own failures.
type ReconciliationReporter interface {
	Report(ctx context.Context, event ReconciliationEvent)
}
