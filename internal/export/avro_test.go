package export

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/linkedin/goavro/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgHariom/orderly/internal/orders"
)

func TestWriteOrders_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	list := []orders.Order{
		{
			ID: "o1", BatchID: "b1", GroupKey: "Alice", OccurredAt: at,
			Items: []orders.LineItem{
				{ProductID: "p1", ProductName: "Tea", Quantity: 2, UnitPrice: decimal.RequireFromString("1.25")},
			},
			Total: decimal.RequireFromString("2.5"),
		},
		{ID: "o2", GroupKey: "Bob", OccurredAt: at.Add(time.Hour), Total: decimal.Zero},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, list))

	r, err := goavro.NewOCFReader(&buf)
	require.NoError(t, err)

	var got []map[string]any
	for r.Scan() {
		v, err := r.Read()
		require.NoError(t, err)
		got = append(got, v.(map[string]any))
	}
	require.NoError(t, r.Err())
	require.Len(t, got, 2)

	assert.Equal(t, "o1", got[0]["id"])
	assert.Equal(t, "b1", got[0]["batch_id"])
	assert.Equal(t, "2.5", got[0]["total"])
	assert.Equal(t, at.UnixMilli(), got[0]["occurred_at_ms"])
	items := got[0]["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, int32(2), items[0].(map[string]any)["quantity"])
	assert.Equal(t, "1.25", items[0].(map[string]any)["unit_price"])

	assert.Equal(t, "o2", got[1]["id"])
	assert.Equal(t, "0", got[1]["total"])
	assert.Empty(t, got[1]["items"])
}

func TestWriteOrders_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, nil))

	r, err := goavro.NewOCFReader(&buf)
	require.NoError(t, err)
	assert.False(t, r.Scan())
}

func TestWriteOrders_QuantityOutOfRange(t *testing.T) {
	list := []orders.Order{{
		ID: "o1", GroupKey: "Alice",
		Items: []orders.LineItem{{ProductID: "p1", Quantity: math.MaxInt32 + 1, UnitPrice: decimal.NewFromInt(1)}},
	}}

	var buf bytes.Buffer
	err := WriteOrders(&buf, list)
	assert.ErrorContains(t, err, "does not fit")
}
