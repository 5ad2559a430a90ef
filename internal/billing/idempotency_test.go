package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache(t *testing.T) {
	credentialID := uuid.New()

	t.Run("MissGrantsLeaseThenReplays", func(t *testing.T) {
		cache := NewIdempotencyCache(time.Hour)

		stored, lease, err := cache.CheckOrRegister(credentialID, "key-1")
		require.NoError(t, err)
		assert.Nil(t, stored)
		require.NotNil(t, lease)

		lease.Complete(&StoredResult{Status: 200, Body: []byte(`{"ok":true}`), TransactionID: "txn-1"})

		stored, lease, err = cache.CheckOrRegister(credentialID, "key-1")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Nil(t, lease)
		assert.Equal(t, 200, stored.Status)
		assert.Equal(t, []byte(`{"ok":true}`), stored.Body)
		assert.Equal(t, "txn-1", stored.TransactionID)
	})

	t.Run("ConcurrentDuplicateConflicts", func(t *testing.T) {
		cache := NewIdempotencyCache(time.Hour)

		_, lease, err := cache.CheckOrRegister(credentialID, "key-2")
		require.NoError(t, err)
		require.NotNil(t, lease)

		_, _, err = cache.CheckOrRegister(credentialID, "key-2")
		require.ErrorIs(t, err, ErrIdempotencyConflict)
	})

	t.Run("FailReleasesKeyForRetry", func(t *testing.T) {
		cache := NewIdempotencyCache(time.Hour)

		_, lease, err := cache.CheckOrRegister(credentialID, "key-3")
		require.NoError(t, err)
		lease.Fail()

		stored, lease, err := cache.CheckOrRegister(credentialID, "key-3")
		require.NoError(t, err)
		assert.Nil(t, stored)
		require.NotNil(t, lease)
	})

	t.Run("SameKeyDifferentCredentialsIndependent", func(t *testing.T) {
		cache := NewIdempotencyCache(time.Hour)

		_, lease1, err := cache.CheckOrRegister(credentialID, "shared")
		require.NoError(t, err)
		require.NotNil(t, lease1)

		_, lease2, err := cache.CheckOrRegister(uuid.New(), "shared")
		require.NoError(t, err)
		require.NotNil(t, lease2)
	})

	t.Run("StoredResultExpires", func(t *testing.T) {
		cache := NewIdempotencyCache(time.Hour)
		current := time.Now()
		cache.now = func() time.Time { return current }

		_, lease, err := cache.CheckOrRegister(credentialID, "key-4")
		require.NoError(t, err)
		lease.Complete(&StoredResult{Status: 200})

		// Still within the window
		current = current.Add(59 * time.Minute)
		stored, _, err := cache.CheckOrRegister(credentialID, "key-4")
		require.NoError(t, err)
		require.NotNil(t, stored)

		// Past the window the key is fresh again, so a lease is granted
		current = current.Add(2 * time.Minute)
		stored, lease, err = cache.CheckOrRegister(credentialID, "key-4")
		require.NoError(t, err)
		assert.Nil(t, stored)
		require.NotNil(t, lease)
		lease.Fail()
	})
}
