package provider

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRegistry_Register(t *testing.T) {
	t.Run("RegisterAndResolve", func(t *testing.T) {
		r := NewRegistry(testLogger())
		require.NoError(t, r.Register(validProvider()))

		p, op, err := r.Resolve("sephora", "checkout")
		require.NoError(t, err)
		assert.Equal(t, "sephora", p.ID)
		assert.Equal(t, KindPurchase, op.Kind)
	})

	t.Run("InvalidProviderNeverStored", func(t *testing.T) {
		r := NewRegistry(testLogger())

		p := validProvider()
		p.Operations[3].PrecheckRef = "missing"
		require.Error(t, r.Register(p))

		_, err := r.Get("sephora")
		var notFound ErrProviderNotFound
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		r := NewRegistry(testLogger())
		require.NoError(t, r.Register(validProvider()))

		err := r.Register(validProvider())
		var dup ErrDuplicateProvider
		require.ErrorAs(t, err, &dup)
	})

	t.Run("UnknownOperation", func(t *testing.T) {
		r := NewRegistry(testLogger())
		require.NoError(t, r.Register(validProvider()))

		_, _, err := r.Resolve("sephora", "refund")
		var notFound ErrOperationNotFound
		require.ErrorAs(t, err, &notFound)
	})
}

func TestRegistry_LoadFile(t *testing.T) {
	t.Run("LoadsDeclarations", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "providers.json")
		declarations := `[
			{
				"id": "espn",
				"name": "ESPN",
				"base_url": "https://api.espn.example",
				"operations": [
					{"operation_id": "scores", "method": "GET", "path": "/scores", "kind": "usage_fee", "fee_cents": 10},
					{"operation_id": "quote", "method": "POST", "path": "/subscribe/quote", "kind": "precheck", "amount_path": "price_cents"},
					{"operation_id": "subscribe", "method": "POST", "path": "/subscribe", "kind": "purchase", "precheck_ref": "quote", "amount_path": "charged_cents"}
				]
			}
		]`
		require.NoError(t, os.WriteFile(path, []byte(declarations), 0o600))

		r := NewRegistry(testLogger())
		require.NoError(t, r.LoadFile(path))

		_, op, err := r.Resolve("espn", "subscribe")
		require.NoError(t, err)
		assert.Equal(t, "quote", op.PrecheckRef)
	})

	t.Run("InvalidDeclarationAbortsLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "providers.json")
		declarations := `[
			{
				"id": "espn",
				"base_url": "https://api.espn.example",
				"operations": [
					{"operation_id": "subscribe", "method": "POST", "path": "/subscribe", "kind": "purchase", "amount_path": "charged_cents"}
				]
			}
		]`
		require.NoError(t, os.WriteFile(path, []byte(declarations), 0o600))

		r := NewRegistry(testLogger())
		require.Error(t, r.LoadFile(path))
	})

	t.Run("MissingFile", func(t *testing.T) {
		r := NewRegistry(testLogger())
		require.Error(t, r.LoadFile(filepath.Join(t.TempDir(), "absent.json")))
	})
}
