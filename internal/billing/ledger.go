// Package billing implements the purchase precheck/commit protocol and
// the per-credential balance ledger behind it: reserve/commit/rollback
// accounting, idempotent replay, rate limiting and the purchase state
// machine.
package billing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
)

// Ledger serializes all balance mutations per credential. Balances are
// authoritative in memory, hydrated from the credential repository on
// first touch and persisted write-behind, so no network I/O ever runs
// while a credential lock is held. Mutations on different credentials
// do not contend.
type Ledger struct {
	logger   *slog.Logger
	creds    credential.Repository
	txns     transaction.Repository
	reporter ReconciliationReporter

	mu           sync.Mutex
	accounts     map[uuid.UUID]*accountState
	reservations map[uuid.UUID]*reservation
}

// accountState is the single-writer section for one credential.
type accountState struct {
	mu       sync.Mutex
	balance  int64
	archived bool
}

// reservation is a tentative debit held against a credential. The id
// doubles as the pending transaction record id; once resolved the
// reservation is gone and the record is immutable.
type reservation struct {
	id             uuid.UUID
	credentialID   uuid.UUID
	amountCents    int64
	typ            transaction.Type
	providerID     string
	operationID    string
	idempotencyKey string
	correlationID  string
	createdAt      time.Time
}

// NewLedger creates a ledger over the given repositories.
func NewLedger(logger *slog.Logger, creds credential.Repository, txns transaction.Repository, reporter ReconciliationReporter) *Ledger {
	return &Ledger{
		logger:       logger,
		creds:        creds,
		txns:         txns,
		reporter:     reporter,
		accounts:     make(map[uuid.UUID]*accountState),
		reservations: make(map[uuid.UUID]*reservation),
	}
}

// ReserveRequest describes a tentative debit.
type ReserveRequest struct {
	CredentialID   uuid.UUID
	AmountCents    int64
	Type           transaction.Type
	ProviderID     string
	OperationID    string
	IdempotencyKey string
	CorrelationID  string
}

// Reserve atomically checks balance >= amount and debits immediately,
// recording a pending transaction. The returned reservation id must
// later resolve through Commit or Rollback. A zero amount is a valid
// reservation.
func (l *Ledger) Reserve(ctx context.Context, req ReserveRequest) (uuid.UUID, error) {
	if req.AmountCents < 0 {
		return uuid.Nil, ErrInvalidAmount
	}

	st, err := l.state(ctx, req.CredentialID)
	if err != nil {
		return uuid.Nil, err
	}

	st.mu.Lock()
	if st.archived {
		st.mu.Unlock()
		return uuid.Nil, credential.ErrCredentialArchived{CredentialID: req.CredentialID}
	}
	if st.balance < req.AmountCents {
		st.mu.Unlock()
		return uuid.Nil, ErrInsufficientFunds
	}
	st.balance -= req.AmountCents
	balanceAfter := st.balance
	st.mu.Unlock()

	res := &reservation{
		id:             uuid.New(),
		credentialID:   req.CredentialID,
		amountCents:    req.AmountCents,
		typ:            req.Type,
		providerID:     req.ProviderID,
		operationID:    req.OperationID,
		idempotencyKey: req.IdempotencyKey,
		correlationID:  req.CorrelationID,
		createdAt:      time.Now(),
	}

	l.mu.Lock()
	l.reservations[res.id] = res
	l.mu.Unlock()

	l.record(ctx, &transaction.Record{
		ID:             res.id,
		CredentialID:   req.CredentialID,
		Type:           req.Type,
		AmountCents:    req.AmountCents,
		BalanceAfter:   balanceAfter,
		ProviderID:     req.ProviderID,
		OperationID:    req.OperationID,
		IdempotencyKey: req.IdempotencyKey,
		CorrelationID:  req.CorrelationID,
		Status:         transaction.StatusPending,
		CreatedAt:      res.createdAt,
	})
	l.persistBalance(ctx, req.CredentialID, balanceAfter)

	l.logger.Debug("Reservation created",
		"reservation_id", res.id.String(),
		"credential_id", req.CredentialID.String(),
		"amount_cents", req.AmountCents,
	)

	return res.id, nil
}

// Commit finalizes a reservation as committed. When the actual amount
// is below the reserved amount the difference is refunded. An actual
// amount above the reservation is rejected: the reservation is
// force-rolled-back, the event is reported as reconciliation-required
// and ErrCommitExceedsReservation is returned.
func (l *Ledger) Commit(ctx context.Context, reservationID uuid.UUID, actualCents int64, externalRef string) error {
	if actualCents < 0 {
		return ErrInvalidAmount
	}

	res, ok := l.takeReservation(reservationID)
	if !ok {
		return ErrReservationNotFound
	}

	if actualCents > res.amountCents {
		l.refund(ctx, res, "purchase amount exceeded reservation")
		l.report(ctx, res, actualCents, ReasonOverCharge)
		return ErrCommitExceedsReservation{ReservedCents: res.amountCents, ActualCents: actualCents}
	}

	st, err := l.state(ctx, res.credentialID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.balance += res.amountCents - actualCents
	balanceAfter := st.balance
	st.mu.Unlock()

	l.finalize(ctx, res.id, transaction.Finalization{
		Status:       transaction.StatusCommitted,
		AmountCents:  actualCents,
		BalanceAfter: balanceAfter,
		ExternalRef:  externalRef,
	})
	l.persistBalance(ctx, res.credentialID, balanceAfter)

	l.logger.Info("Reservation committed",
		"reservation_id", res.id.String(),
		"credential_id", res.credentialID.String(),
		"reserved_cents", res.amountCents,
		"actual_cents", actualCents,
	)

	return nil
}

// Rollback refunds the full reserved amount and marks the transaction
// rolled back.
func (l *Ledger) Rollback(ctx context.Context, reservationID uuid.UUID, reason string) error {
	res, ok := l.takeReservation(reservationID)
	if !ok {
		return ErrReservationNotFound
	}

	l.refund(ctx, res, reason)

	l.logger.Info("Reservation rolled back",
		"reservation_id", res.id.String(),
		"credential_id", res.credentialID.String(),
		"amount_cents", res.amountCents,
		"reason", reason,
	)

	return nil
}

// ForceRollback is the watchdog path: the reservation did not resolve
// within its window, the upstream side effect may have happened anyway,
// so the refund is flagged as reconciliation-required.
func (l *Ledger) ForceRollback(ctx context.Context, reservationID uuid.UUID, reason ReconciliationReason) error {
	res, ok := l.takeReservation(reservationID)
	if !ok {
		return ErrReservationNotFound
	}

	l.refund(ctx, res, string(reason))
	l.report(ctx, res, 0, reason)

	l.logger.Warn("Reservation force-rolled-back",
		"reservation_id", res.id.String(),
		"credential_id", res.credentialID.String(),
		"amount_cents", res.amountCents,
		"reason", string(reason),
	)

	return nil
}

// Credit unconditionally increases a credential's balance (top-up) and
// returns the new balance. No reservation is involved.
func (l *Ledger) Credit(ctx context.Context, credentialID uuid.UUID, amountCents int64) (int64, error) {
	if amountCents <= 0 {
		return 0, ErrInvalidAmount
	}

	st, err := l.state(ctx, credentialID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	st.balance += amountCents
	balanceAfter := st.balance
	st.mu.Unlock()

	now := time.Now()
	l.record(ctx, &transaction.Record{
		ID:           uuid.New(),
		CredentialID: credentialID,
		Type:         transaction.TypeCredit,
		AmountCents:  amountCents,
		BalanceAfter: balanceAfter,
		Status:       transaction.StatusCommitted,
		CreatedAt:    now,
		ProcessedAt:  &now,
	})
	l.persistBalance(ctx, credentialID, balanceAfter)

	return balanceAfter, nil
}

// Balance returns the authoritative balance for a credential.
func (l *Ledger) Balance(ctx context.Context, credentialID uuid.UUID) (int64, error) {
	st, err := l.state(ctx, credentialID)
	if err != nil {
		return 0, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.balance, nil
}

// Archive blocks further billed calls against the credential. The
// credential and its history are kept.
func (l *Ledger) Archive(ctx context.Context, credentialID uuid.UUID) error {
	st, err := l.state(ctx, credentialID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.archived = true
	st.mu.Unlock()

	if err := l.creds.Archive(context.WithoutCancel(ctx), credentialID); err != nil {
		l.logger.Error("Failed to persist credential archive", "credential_id", credentialID.String(), "error", err)
		return err
	}
	return nil
}

// state returns the in-memory account for a credential, hydrating it
// from the repository on first touch. The repository read happens
// before any lock is taken; a concurrent first touch keeps whichever
// state landed first.
func (l *Ledger) state(ctx context.Context, credentialID uuid.UUID) (*accountState, error) {
	l.mu.Lock()
	st, ok := l.accounts[credentialID]
	l.mu.Unlock()
	if ok {
		return st, nil
	}

	cred, err := l.creds.GetByID(ctx, credentialID)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if st, ok := l.accounts[credentialID]; ok {
		return st, nil
	}
	st = &accountState{balance: cred.Balance, archived: cred.Archived}
	l.accounts[credentialID] = st
	return st, nil
}

// takeReservation removes and returns a reservation; a reservation can
// resolve exactly once.
func (l *Ledger) takeReservation(id uuid.UUID) (*reservation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	res, ok := l.reservations[id]
	if ok {
		delete(l.reservations, id)
	}
	return res, ok
}

// refund restores the reserved amount, finalizes the pending record as
// rolled back and writes the compensating ROLLBACK record.
func (l *Ledger) refund(ctx context.Context, res *reservation, reason string) {
	st, err := l.state(ctx, res.credentialID)
	if err != nil {
		// The state must exist: the reservation debited it.
		l.logger.Error("Failed to load account state for refund", "credential_id", res.credentialID.String(), "error", err)
		return
	}

	st.mu.Lock()
	st.balance += res.amountCents
	balanceAfter := st.balance
	st.mu.Unlock()

	l.finalize(ctx, res.id, transaction.Finalization{
		Status:        transaction.StatusRolledBack,
		AmountCents:   res.amountCents,
		BalanceAfter:  balanceAfter,
		FailureReason: reason,
	})

	now := time.Now()
	l.record(ctx, &transaction.Record{
		ID:            uuid.New(),
		CredentialID:  res.credentialID,
		Type:          transaction.TypeRollback,
		AmountCents:   res.amountCents,
		BalanceAfter:  balanceAfter,
		ProviderID:    res.providerID,
		OperationID:   res.operationID,
		ExternalRef:   res.id.String(),
		CorrelationID: res.correlationID,
		Status:        transaction.StatusCommitted,
		FailureReason: reason,
		CreatedAt:     now,
		ProcessedAt:   &now,
	})
	l.persistBalance(ctx, res.credentialID, balanceAfter)
}

func (l *Ledger) report(ctx context.Context, res *reservation, actualCents int64, reason ReconciliationReason) {
	if l.reporter == nil {
		return
	}
	l.reporter.Report(context.WithoutCancel(ctx), ReconciliationEvent{
		EventID:       uuid.New(),
		CredentialID:  res.credentialID,
		TransactionID: res.id,
		ProviderID:    res.providerID,
		OperationID:   res.operationID,
		ReservedCents: res.amountCents,
		ActualCents:   actualCents,
		Reason:        reason,
		OccurredAt:    time.Now(),
	})
}

// record and persistBalance are write-behind: the in-memory state is
// authoritative and repository failures are logged, not propagated.
func (l *Ledger) record(ctx context.Context, rec *transaction.Record) {
	if err := l.txns.Create(context.WithoutCancel(ctx), rec); err != nil {
		l.logger.Error("Failed to persist transaction record", "transaction_id", rec.ID.String(), "error", err)
	}
}

func (l *Ledger) finalize(ctx context.Context, id uuid.UUID, fin transaction.Finalization) {
	if err := l.txns.Finalize(context.WithoutCancel(ctx), id, fin); err != nil {
		l.logger.Error("Failed to finalize transaction record", "transaction_id", id.String(), "error", err)
	}
}

func (l *Ledger) persistBalance(ctx context.Context, credentialID uuid.UUID, balance int64) {
	if err := l.creds.SetBalance(context.WithoutCancel(ctx), credentialID, balance); err != nil {
		l.logger.Error("Failed to persist balance", "credential_id", credentialID.String(), "error", err)
	}
}
