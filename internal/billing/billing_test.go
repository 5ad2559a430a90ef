package billing

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/domain/transaction"
)

// Shared in-memory fakes for the billing tests.

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type memCredentialRepo struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*credential.Credential
}

func newMemCredentialRepo() *memCredentialRepo {
	return &memCredentialRepo{creds: make(map[uuid.UUID]*credential.Credential)}
}

func (r *memCredentialRepo) Create(ctx context.Context, cred *credential.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *cred
	r.creds[cred.ID] = &copied
	return nil
}

func (r *memCredentialRepo) GetByID(ctx context.Context, id uuid.UUID) (*credential.Credential, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[id]
	if !ok {
		return nil, credential.ErrCredentialNotFound{CredentialID: id}
	}
	copied := *cred
	return &copied, nil
}

func (r *memCredentialRepo) SetBalance(ctx context.Context, id uuid.UUID, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[id]
	if !ok {
		return credential.ErrCredentialNotFound{CredentialID: id}
	}
	cred.Balance = balance
	return nil
}

func (r *memCredentialRepo) Archive(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cred, ok := r.creds[id]
	if !ok {
		return credential.ErrCredentialNotFound{CredentialID: id}
	}
	cred.Archived = true
	return nil
}

func (r *memCredentialRepo) storedBalance(id uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.creds[id].Balance
}

type memTransactionRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*transaction.Record
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{records: make(map[uuid.UUID]*transaction.Record)}
}

func (r *memTransactionRepo) Create(ctx context.Context, rec *transaction.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *rec
	r.records[rec.ID] = &copied
	return nil
}

func (r *memTransactionRepo) Finalize(ctx context.Context, id uuid.UUID, fin transaction.Finalization) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != transaction.StatusPending {
		return transaction.ErrRecordNotFound{TransactionID: id}
	}
	rec.Status = fin.Status
	rec.AmountCents = fin.AmountCents
	rec.BalanceAfter = fin.BalanceAfter
	rec.ExternalRef = fin.ExternalRef
	rec.FailureReason = fin.FailureReason
	return nil
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, transaction.ErrRecordNotFound{TransactionID: id}
	}
	copied := *rec
	return &copied, nil
}

func (r *memTransactionRepo) GetByCredentialID(ctx context.Context, credentialID uuid.UUID, limit, offset int) ([]*transaction.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Record
	for _, rec := range r.records {
		if rec.CredentialID == credentialID {
			copied := *rec
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *memTransactionRepo) CountByCredentialID(ctx context.Context, credentialID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if rec.CredentialID == credentialID {
			n++
		}
	}
	return n, nil
}

// byStatus returns the records for a credential with the given type and
// status, for asserting on ledger accounting.
func (r *memTransactionRepo) byTypeAndStatus(credentialID uuid.UUID, typ transaction.Type, status transaction.Status) []*transaction.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Record
	for _, rec := range r.records {
		if rec.CredentialID == credentialID && rec.Type == typ && rec.Status == status {
			copied := *rec
			out = append(out, &copied)
		}
	}
	return out
}

type captureReporter struct {
	mu     sync.Mutex
	events []ReconciliationEvent
}

func (r *captureReporter) Report(ctx context.Context, event ReconciliationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *captureReporter) Events() []ReconciliationEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReconciliationEvent(nil), r.events...)
}

type ledgerFixture struct {
	ledger       *Ledger
	credentialID uuid.UUID
	creds        *memCredentialRepo
	txns         *memTransactionRepo
	reporter     *captureReporter
}

func newLedgerFixture(balanceCents int64) *ledgerFixture {
	creds := newMemCredentialRepo()
	txns := newMemTransactionRepo()
	reporter := &captureReporter{}

	cred, _ := credential.New("test-credential", balanceCents)
	_ = creds.Create(context.Background(), cred)

	return &ledgerFixture{
		ledger:       NewLedger(testLogger(), creds, txns, reporter),
		credentialID: cred.ID,
		creds:        creds,
		txns:         txns,
		reporter:     reporter,
	}
}
