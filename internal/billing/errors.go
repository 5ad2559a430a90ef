package billing

import (
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrInvalidAmount       = errors.New("amount must not be negative")
	ErrReservationNotFound = errors.New("reservation not found or already resolved")

	// ErrIdempotencyConflict is returned while another request holding
	// the same idempotency key is still executing.
	ErrIdempotencyConflict = errors.New("request with this idempotency key is already in flight")
)

// ErrCommitExceedsReservation rejects a commit whose actual charge is
// above the reserved amount. The reservation is force-rolled-back and
// the event is reported for reconciliation before this is returned.
type ErrCommitExceedsReservation struct {
	ReservedCents int64
	ActualCents   int64
}

func (e ErrCommitExceedsReservation) Error() string {
	return fmt.Sprintf("commit of %d cents exceeds reservation of %d cents", e.ActualCents, e.ReservedCents)
}

// UpstreamError carries an upstream failure back to the caller. It is
// request-scoped and never fatal to the gateway.
type UpstreamError struct {
	ProviderID  string
	OperationID string
	Status      int    // upstream status code, 0 when unreachable
	Body        []byte // upstream body, passed through when present
	Timeout     bool   // resolution window expired
	Reason      string
	Err         error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("upstream error from %s/%s", e.ProviderID, e.OperationID)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Reason != "" {
		msg = msg + ": " + e.Reason
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// RateLimitError rejects a billed call before any ledger or upstream
// work happens.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %s", e.RetryAfter)
}
