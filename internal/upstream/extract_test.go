package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAmount(t *testing.T) {
	t.Run("NestedInteger", func(t *testing.T) {
		amount, err := ExtractAmount([]byte(`{"order":{"total_cents":1200}}`), "order.total_cents")
		require.NoError(t, err)
		assert.Equal(t, int64(1200), amount)
	})

	t.Run("ZeroIsValid", func(t *testing.T) {
		amount, err := ExtractAmount([]byte(`{"total_cents":0}`), "total_cents")
		require.NoError(t, err)
		assert.Zero(t, amount)
	})

	t.Run("MissingPath", func(t *testing.T) {
		_, err := ExtractAmount([]byte(`{"order":{}}`), "order.total_cents")
		require.ErrorIs(t, err, ErrAmountNotFound)
	})

	t.Run("FractionalRejected", func(t *testing.T) {
		_, err := ExtractAmount([]byte(`{"total_cents":12.5}`), "total_cents")
		require.ErrorIs(t, err, ErrAmountNotInteger)
	})

	t.Run("StringRejected", func(t *testing.T) {
		_, err := ExtractAmount([]byte(`{"total_cents":"1200"}`), "total_cents")
		require.ErrorIs(t, err, ErrAmountNotInteger)
	})

	t.Run("NegativeRejected", func(t *testing.T) {
		_, err := ExtractAmount([]byte(`{"total_cents":-5}`), "total_cents")
		require.ErrorIs(t, err, ErrAmountNegative)
	})
}

func TestExtractString(t *testing.T) {
	body := []byte(`{"order":{"id":"ord-778","currency":"USD"}}`)

	assert.Equal(t, "ord-778", ExtractString(body, "order.id"))
	assert.Equal(t, "USD", ExtractString(body, "order.currency"))
	assert.Empty(t, ExtractString(body, "order.missing"))
	assert.Empty(t, ExtractString(body, ""))
}
