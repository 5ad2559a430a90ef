package billing

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/upstream-billing-gateway/internal/domain/provider"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
	"github.com/upstream-billing-gateway/internal/upstream"
)

// Invoker reaches a provider operation. The billing core only sees the
// status code and body.
type Invoker interface {
	Invoke(ctx context.Context, prov *provider.Provider, op *provider.OperationDescriptor, params upstream.Params) (int, []byte, error)
}

// Outcome is the final result of an invocation, committed or replayed.
type Outcome struct {
	Status        int
	Body          []byte
	TransactionID uuid.UUID
	ExternalRef   string
	AmountCents   int64
	Currency      string
	Replayed      bool
}

// watchdogGrace pads the watchdog past the upstream deadline so the
// executor normally resolves the reservation itself.
const watchdogGrace = 5 * time.Second

// PurchaseCoordinator drives a purchase attempt through its states:
// precheck the price, reserve the funds, invoke the real purchase on a
// worker detached from the caller's context, then commit or roll back.
// A client disconnect after reservation never aborts resolution.
type PurchaseCoordinator struct {
	logger  *slog.Logger
	ledger  *Ledger
	invoker Invoker
	pool    *ants.Pool
	window  time.Duration // bound on upstream purchase resolution
}

// NewPurchaseCoordinator creates a coordinator with a worker pool of
// the given size.
func NewPurchaseCoordinator(logger *slog.Logger, ledger *Ledger, invoker Invoker, poolSize int, window time.Duration) (*PurchaseCoordinator, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}
	return &PurchaseCoordinator{
		logger:  logger,
		ledger:  ledger,
		invoker: invoker,
		pool:    pool,
		window:  window,
	}, nil
}

// Shutdown releases the worker pool.
func (c *PurchaseCoordinator) Shutdown() {
	c.logger.Info("Shutting down purchase workers", "running_workers", c.pool.Running())
	c.pool.Release()
}

// PurchaseRequest identifies one purchase attempt.
type PurchaseRequest struct {
	CredentialID   uuid.UUID
	Provider       *provider.Provider
	Operation      *provider.OperationDescriptor
	Params         upstream.Params
	IdempotencyKey string
	CorrelationID  string
}

// Execute runs the full purchase protocol. On insufficient funds the
// purchase operation is never invoked; this is the point of quoting
// before committing.
func (c *PurchaseCoordinator) Execute(ctx context.Context, req PurchaseRequest) (*Outcome, error) {
	logger := c.logger
	if req.CorrelationID != "" {
		logger = c.logger.With("correlation_id", req.CorrelationID)
	}

	// The registry guarantees the linkage at registration time.
	precheckOp := req.Provider.Operation(req.Operation.PrecheckRef)

	status, body, err := c.invoker.Invoke(ctx, req.Provider, precheckOp, req.Params)
	if err != nil {
		return nil, &UpstreamError{ProviderID: req.Provider.ID, OperationID: precheckOp.OperationID, Err: err}
	}
	if !is2xx(status) {
		return nil, &UpstreamError{ProviderID: req.Provider.ID, OperationID: precheckOp.OperationID, Status: status, Body: body}
	}

	quote, err := upstream.ExtractAmount(body, precheckOp.AmountPath)
	if err != nil {
		logger.Error("Precheck quote rejected",
			"provider_id", req.Provider.ID,
			"operation_id", precheckOp.OperationID,
			"error", err,
		)
		return nil, &UpstreamError{ProviderID: req.Provider.ID, OperationID: precheckOp.OperationID, Reason: "invalid precheck quote", Err: err}
	}

	reservationID, err := c.ledger.Reserve(ctx, ReserveRequest{
		CredentialID:   req.CredentialID,
		AmountCents:    quote,
		Type:           transaction.TypePurchase,
		ProviderID:     req.Provider.ID,
		OperationID:    req.Operation.OperationID,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  req.CorrelationID,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Purchase reserved",
		"reservation_id", reservationID.String(),
		"credential_id", req.CredentialID.String(),
		"quote_cents", quote,
	)

	// The watchdog guarantees the reservation reaches a terminal state
	// even if the worker never resolves it. Resolving twice is safe:
	// the second resolution sees ErrReservationNotFound.
	watchdog := time.AfterFunc(c.window+watchdogGrace, func() {
		if err := c.ledger.ForceRollback(context.Background(), reservationID, ReasonResolutionTimeout); err == nil {
			logger.Warn("Watchdog rolled back stuck reservation", "reservation_id", reservationID.String())
		}
	})

	type purchaseResult struct {
		outcome *Outcome
		err     error
	}
	resultChan := make(chan purchaseResult, 1)

	submitErr := c.pool.Submit(func() {
		defer watchdog.Stop()

		// Detached from the request context: the caller disconnecting
		// must not leave the reservation unresolved.
		execCtx, cancel := context.WithTimeout(context.Background(), c.window)
		defer cancel()

		outcome, err := c.resolve(execCtx, logger, reservationID, quote, req)
		resultChan <- purchaseResult{outcome: outcome, err: err}
	})
	if submitErr != nil {
		watchdog.Stop()
		if rbErr := c.ledger.Rollback(ctx, reservationID, "worker pool submission failed"); rbErr != nil {
			logger.Error("Failed to roll back after pool submission failure", "reservation_id", reservationID.String(), "error", rbErr)
		}
		return nil, submitErr
	}

	res := <-resultChan
	return res.outcome, res.err
}

// resolve invokes the real purchase operation and finalizes the ledger
// outcome. Every path out of here leaves the reservation terminal.
func (c *PurchaseCoordinator) resolve(ctx context.Context, logger *slog.Logger, reservationID uuid.UUID, reserved int64, req PurchaseRequest) (*Outcome, error) {
	prov, op := req.Provider, req.Operation

	status, body, err := c.invoker.Invoke(ctx, prov, op, req.Params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			// The upstream may have charged; refund and flag.
			if rbErr := c.ledger.ForceRollback(ctx, reservationID, ReasonResolutionTimeout); rbErr != nil {
				logger.Warn("Timed-out reservation already resolved", "reservation_id", reservationID.String())
			}
			return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Timeout: true, Reason: "purchase did not resolve in time", Err: err}
		}
		c.rollback(ctx, logger, reservationID, "upstream unreachable")
		return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Err: err}
	}

	if !is2xx(status) {
		c.rollback(ctx, logger, reservationID, "upstream purchase failed")
		return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Status: status, Body: body}
	}

	actual, err := upstream.ExtractAmount(body, op.AmountPath)
	if err != nil {
		c.rollback(ctx, logger, reservationID, "purchase amount not extractable")
		return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Reason: "invalid purchase amount", Err: err}
	}

	externalRef := upstream.ExtractString(body, op.TransactionIDPath)
	currency := upstream.ExtractString(body, op.CurrencyPath)
	if currency == "" {
		currency = provider.DefaultCurrency
	}

	if err := c.ledger.Commit(ctx, reservationID, actual, externalRef); err != nil {
		var exceeds ErrCommitExceedsReservation
		if errors.As(err, &exceeds) {
			// The ledger already refunded and reported the event.
			return nil, &UpstreamError{ProviderID: prov.ID, OperationID: op.OperationID, Reason: "provider charged beyond the approved amount", Err: err}
		}
		logger.Error("Failed to commit reservation", "reservation_id", reservationID.String(), "error", err)
		return nil, err
	}

	return &Outcome{
		Status:        status,
		Body:          body,
		TransactionID: reservationID,
		ExternalRef:   externalRef,
		AmountCents:   actual,
		Currency:      currency,
	}, nil
}

func (c *PurchaseCoordinator) rollback(ctx context.Context, logger *slog.Logger, reservationID uuid.UUID, reason string) {
	if err := c.ledger.Rollback(ctx, reservationID, reason); err != nil {
		logger.Warn("Reservation already resolved", "reservation_id", reservationID.String(), "reason", reason)
	}
}

func is2xx(status int) bool {
	return status >= 200 && status < 300
}
