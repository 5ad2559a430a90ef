package billing

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/domain/provider"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
	"github.com/upstream-billing-gateway/internal/upstream"
)

// Biller routes an inbound call by its descriptor kind: free and
// precheck operations pass through, usage-fee operations debit a fixed
// fee around the call, purchases run the full precheck/commit protocol.
type Biller struct {
	logger      *slog.Logger
	registry    *provider.Registry
	ledger      *Ledger
	limiter     *RateLimiter
	idempotency *IdempotencyCache
	coordinator *PurchaseCoordinator
	invoker     Invoker
	window      time.Duration
}

// NewBiller wires the billing components together.
func NewBiller(
	logger *slog.Logger,
	registry *provider.Registry,
	ledger *Ledger,
	limiter *RateLimiter,
	idempotency *IdempotencyCache,
	coordinator *PurchaseCoordinator,
	invoker Invoker,
	window time.Duration,
) *Biller {
	return &Biller{
		logger:      logger,
		registry:    registry,
		ledger:      ledger,
		limiter:     limiter,
		idempotency: idempotency,
		coordinator: coordinator,
		invoker:     invoker,
		window:      window,
	}
}

// InvokeRequest is one inbound call to a provider operation.
type InvokeRequest struct {
	CredentialID   uuid.UUID
	ProviderID     string
	OperationID    string
	Params         upstream.Params
	IdempotencyKey string
	CorrelationID  string
}

// Invoke executes the call under the billing rules of its descriptor.
func (b *Biller) Invoke(ctx context.Context, req InvokeRequest) (*Outcome, error) {
	prov, op, err := b.registry.Resolve(req.ProviderID, req.OperationID)
	if err != nil {
		return nil, err
	}

	// Only billed calls consume rate limit tokens; free reads and
	// quotes pass.
	if op.Kind == provider.KindUsageFee || op.Kind == provider.KindPurchase {
		decision := b.limiter.Allow(req.CredentialID, req.ProviderID)
		if !decision.Allowed {
			return nil, &RateLimitError{RetryAfter: decision.RetryAfter}
		}
	}

	switch op.Kind {
	case provider.KindPurchase:
		return b.executePurchase(ctx, prov, op, req)
	case provider.KindUsageFee:
		return b.executeUsageFee(ctx, prov, op, req)
	default:
		// none and precheck: free passthrough, upstream status included.
		status, body, err := b.invoker.Invoke(ctx, prov, op, req.Params)
		if err != nil {
			return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Err: err}
		}
		return &Outcome{Status: status, Body: body}, nil
	}
}

func (b *Biller) executePurchase(ctx context.Context, prov *provider.Provider, op *provider.OperationDescriptor, req InvokeRequest) (*Outcome, error) {
	purchase := PurchaseRequest{
		CredentialID:   req.CredentialID,
		Provider:       prov,
		Operation:      op,
		Params:         req.Params,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  req.CorrelationID,
	}

	if req.IdempotencyKey == "" {
		return b.coordinator.Execute(ctx, purchase)
	}

	stored, lease, err := b.idempotency.CheckOrRegister(req.CredentialID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		b.logger.Info("Idempotent replay",
			"credential_id", req.CredentialID.String(),
			"idempotency_key", req.IdempotencyKey,
			"transaction_id", stored.TransactionID,
		)
		txnID, _ := uuid.Parse(stored.TransactionID)
		return &Outcome{
			Status:        stored.Status,
			Body:          stored.Body,
			TransactionID: txnID,
			Replayed:      true,
		}, nil
	}

	outcome, err := b.coordinator.Execute(ctx, purchase)
	if err != nil {
		// Failed attempts release the key: no charge stands, so a
		// retry with the same key is safe and should execute.
		lease.Fail()
		return nil, err
	}

	lease.Complete(&StoredResult{
		Status:        outcome.Status,
		Body:          outcome.Body,
		TransactionID: outcome.TransactionID.String(),
	})
	return outcome, nil
}

// executeUsageFee wraps the call in reserve/commit so the fee can never
// push the balance negative: insufficient funds fail before the
// upstream is ever invoked.
func (b *Biller) executeUsageFee(ctx context.Context, prov *provider.Provider, op *provider.OperationDescriptor, req InvokeRequest) (*Outcome, error) {
	reservationID, err := b.ledger.Reserve(ctx, ReserveRequest{
		CredentialID:  req.CredentialID,
		AmountCents:   op.FeeCents,
		Type:          transaction.TypeUsage,
		ProviderID:    prov.ID,
		OperationID:   op.OperationID,
		CorrelationID: req.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	// Detached so a client disconnect cannot leave the fee pending.
	execCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.window)
	defer cancel()

	status, body, err := b.invoker.Invoke(execCtx, prov, op, req.Params)
	if err != nil {
		b.rollbackFee(execCtx, reservationID, "upstream unreachable")
		return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Err: err}
	}
	if !is2xx(status) {
		b.rollbackFee(execCtx, reservationID, "upstream call failed")
		return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Status: status, Body: body}
	}

	if err := b.ledger.Commit(execCtx, reservationID, op.FeeCents, ""); err != nil {
		b.logger.Error("Failed to commit usage fee", "reservation_id", reservationID.String(), "error", err)
		return nil, err
	}

	return &Outcome{
		Status:        status,
		Body:          body,
		TransactionID: reservationID,
		AmountCents:   op.FeeCents,
	}, nil
}

func (b *Biller) rollbackFee(ctx context.Context, reservationID uuid.UUID, reason string) {
	if err := b.ledger.Rollback(ctx, reservationID, reason); err != nil {
		b.logger.Error("Failed to roll back usage fee", "reservation_id", reservationID.String(), "error", err)
	}
}
