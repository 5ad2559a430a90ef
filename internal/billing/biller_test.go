package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upstream-billing-gateway/internal/domain/credential"
	"github.com/upstream-billing-gateway/internal/domain/provider"
)

func billedProvider() *provider.Provider {
	p := purchaseProvider()
	p.Operations = append(p.Operations,
		&provider.OperationDescriptor{
			OperationID: "search",
			Method:      "GET",
			Path:        "/products/search",
			Kind:        provider.KindUsageFee,
			FeeCents:    25,
		},
		&provider.OperationDescriptor{
			OperationID: "categories",
			Method:      "GET",
			Path:        "/products/categories",
			Kind:        provider.KindNone,
		},
	)
	return p
}

type billerFixture struct {
	*ledgerFixture
	biller   *Biller
	invoker  *scriptedInvoker
	registry *provider.Registry
}

func newBillerFixture(t *testing.T, balanceCents int64, perMinute, burst int) *billerFixture {
	t.Helper()
	lf := newLedgerFixture(balanceCents)
	invoker := newScriptedInvoker()

	registry := provider.NewRegistry(testLogger())
	require.NoError(t, registry.Register(billedProvider()))

	coordinator, err := NewPurchaseCoordinator(testLogger(), lf.ledger, invoker, 4, time.Second)
	require.NoError(t, err)
	t.Cleanup(coordinator.Shutdown)

	biller := NewBiller(
		testLogger(),
		registry,
		lf.ledger,
		NewRateLimiter(perMinute, burst),
		NewIdempotencyCache(time.Hour),
		coordinator,
		invoker,
		time.Second,
	)

	return &billerFixture{
		ledgerFixture: lf,
		biller:        biller,
		invoker:       invoker,
		registry:      registry,
	}
}

func TestBiller_UsageFee(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessDebitsFee", func(t *testing.T) {
		f := newBillerFixture(t, 1000, 600, 10)
		f.invoker.respond("search", 200, `{"results":[]}`)

		outcome, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID: f.credentialID,
			ProviderID:   "sephora",
			OperationID:  "search",
		})
		require.NoError(t, err)
		assert.Equal(t, 200, outcome.Status)
		assert.Equal(t, int64(25), outcome.AmountCents)

		balance, err := f.ledger.Balance(ctx, f.credentialID)
		require.NoError(t, err)
		assert.Equal(t, int64(975), balance)
	})

	t.Run("UpstreamFailureRefundsFee", func(t *testing.T) {
		f := newBillerFixture(t, 1000, 600, 10)
		f.invoker.respond("search", 502, `{"error":"bad gateway"}`)

		_, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID: f.credentialID,
			ProviderID:   "sephora",
			OperationID:  "search",
		})
		var upErr *UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, 502, upErr.Status)

		balance, err := f.ledger.Balance(ctx, f.credentialID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("InsufficientFundsSkipsUpstream", func(t *testing.T) {
		f := newBillerFixture(t, 10, 600, 10)
		f.invoker.respond("search", 200, `{"results":[]}`)

		_, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID: f.credentialID,
			ProviderID:   "sephora",
			OperationID:  "search",
		})
		require.ErrorIs(t, err, ErrInsufficientFunds)
		assert.Zero(t, f.invoker.callCount("search"))
	})
}

func TestBiller_FreeOperations(t *testing.T) {
	ctx := context.Background()

	t.Run("NoLedgerEffect", func(t *testing.T) {
		f := newBillerFixture(t, 1000, 600, 10)
		f.invoker.respond("categories", 200, `{"categories":["skincare"]}`)

		outcome, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID: f.credentialID,
			ProviderID:   "sephora",
			OperationID:  "categories",
		})
		require.NoError(t, err)
		assert.Equal(t, 200, outcome.Status)
		assert.Zero(t, outcome.AmountCents)

		balance, err := f.ledger.Balance(ctx, f.credentialID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("DirectPrecheckIsFree", func(t *testing.T) {
		f := newBillerFixture(t, 1000, 600, 10)
		f.invoker.respond("quote", 200, `{"quote":{"total_cents":1200}}`)

		outcome, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID: f.credentialID,
			ProviderID:   "sephora",
			OperationID:  "quote",
		})
		require.NoError(t, err)
		assert.Equal(t, 200, outcome.Status)

		balance, err := f.ledger.Balance(ctx, f.credentialID)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("FreeOperationsBypassRateLimit", func(t *testing.T) {
		f := newBillerFixture(t, 1000, 60, 1)
		f.invoker.respond("categories", 200, `{}`)

		for i := 0; i < 5; i++ {
			_, err := f.biller.Invoke(ctx, InvokeRequest{
				CredentialID: f.credentialID,
				ProviderID:   "sephora",
				OperationID:  "categories",
			})
			require.NoError(t, err)
		}
	})
}

func TestBiller_RateLimiting(t *testing.T) {
	ctx := context.Background()
	f := newBillerFixture(t, 100000, 60, 2)
	f.invoker.respond("search", 200, `{}`)

	for i := 0; i < 2; i++ {
		_, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID: f.credentialID,
			ProviderID:   "sephora",
			OperationID:  "search",
		})
		require.NoError(t, err)
	}

	_, err := f.biller.Invoke(ctx, InvokeRequest{
		CredentialID: f.credentialID,
		ProviderID:   "sephora",
		OperationID:  "search",
	})
	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Greater(t, rateErr.RetryAfter, time.Duration(0))

	// Denied before any ledger or upstream work
	assert.Equal(t, 2, f.invoker.callCount("search"))
	balance, err := f.ledger.Balance(ctx, f.credentialID)
	require.NoError(t, err)
	assert.Equal(t, int64(100000-50), balance)
}

func TestBiller_PurchaseIdempotency(t *testing.T) {
	ctx := context.Background()

	request := func(f *billerFixture, key string) InvokeRequest {
		return InvokeRequest{
			CredentialID:   f.credentialID,
			ProviderID:     "sephora",
			OperationID:    "checkout",
			IdempotencyKey: key,
		}
	}

	t.Run("ReplayReturnsStoredOutcomeWithoutProviderCalls", func(t *testing.T) {
		f := newBillerFixture(t, 5000, 600, 10)
		f.invoker.respond("quote", 200, `{"quote":{"total_cents":1200}}`)
		f.invoker.respond("checkout", 200, `{"order":{"id":"ord-1","total_cents":1200}}`)

		first, err := f.biller.Invoke(ctx, request(f, "retry-1"))
		require.NoError(t, err)
		require.False(t, first.Replayed)

		second, err := f.biller.Invoke(ctx, request(f, "retry-1"))
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.Status, second.Status)
		assert.Equal(t, first.Body, second.Body)
		assert.Equal(t, first.TransactionID, second.TransactionID)

		// No extra provider calls, no double charge
		assert.Equal(t, 1, f.invoker.callCount("quote"))
		assert.Equal(t, 1, f.invoker.callCount("checkout"))

		balance, err := f.ledger.Balance(ctx, f.credentialID)
		require.NoError(t, err)
		assert.Equal(t, int64(3800), balance)
	})

	t.Run("FailedAttemptAllowsRetry", func(t *testing.T) {
		f := newBillerFixture(t, 5000, 600, 10)
		f.invoker.respond("quote", 200, `{"quote":{"total_cents":1200}}`)
		f.invoker.fail("checkout", errors.New("connection refused"))

		_, err := f.biller.Invoke(ctx, request(f, "retry-2"))
		var upErr *UpstreamError
		require.ErrorAs(t, err, &upErr)

		f.invoker.respond("checkout", 200, `{"order":{"id":"ord-2","total_cents":1200}}`)

		outcome, err := f.biller.Invoke(ctx, request(f, "retry-2"))
		require.NoError(t, err)
		assert.False(t, outcome.Replayed)
		assert.Equal(t, int64(1200), outcome.AmountCents)
	})

	t.Run("KeysAreScopedPerCredential", func(t *testing.T) {
		f := newBillerFixture(t, 5000, 600, 10)
		f.invoker.respond("quote", 200, `{"quote":{"total_cents":100}}`)
		f.invoker.respond("checkout", 200, `{"order":{"id":"ord-3","total_cents":100}}`)

		_, err := f.biller.Invoke(ctx, request(f, "shared-key"))
		require.NoError(t, err)

		other := seedCredential(t, f.creds, 5000)
		outcome, err := f.biller.Invoke(ctx, InvokeRequest{
			CredentialID:   other,
			ProviderID:     "sephora",
			OperationID:    "checkout",
			IdempotencyKey: "shared-key",
		})
		require.NoError(t, err)
		assert.False(t, outcome.Replayed)
		assert.Equal(t, 2, f.invoker.callCount("checkout"))
	})
}

func TestBiller_UnknownRoutes(t *testing.T) {
	ctx := context.Background()
	f := newBillerFixture(t, 1000, 600, 10)

	_, err := f.biller.Invoke(ctx, InvokeRequest{
		CredentialID: f.credentialID,
		ProviderID:   "nope",
		OperationID:  "search",
	})
	var provErr provider.ErrProviderNotFound
	require.ErrorAs(t, err, &provErr)

	_, err = f.biller.Invoke(ctx, InvokeRequest{
		CredentialID: f.credentialID,
		ProviderID:   "sephora",
		OperationID:  "nope",
	})
	var opErr provider.ErrOperationNotFound
	require.ErrorAs(t, err, &opErr)
}

// seedCredential adds another funded credential to the repository.
func seedCredential(t *testing.T, repo *memCredentialRepo, balanceCents int64) uuid.UUID {
	t.Helper()
	cred, err := credential.New("another-credential", balanceCents)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), cred))
	return cred.ID
}
