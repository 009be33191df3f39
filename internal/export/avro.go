// Package export writes order history as Avro object container files.
package export

import (
	"fmt"
	"io"
	"math"

	"github.com/linkedin/goavro/v2"

	"github.com/mgHariom/orderly/internal/orders"
)

const ContentType = "application/avro"

// OrderSchema is the record layout of one history entry. Money is carried as
// a decimal string to avoid float rounding.
const OrderSchema = `{
  "type": "record",
  "name": "Order",
  "namespace": "orderly.history",
  "fields": [
    {"name": "id", "type": "string"},
    {"name": "batch_id", "type": "string", "default": ""},
    {"name": "group_key", "type": "string"},
    {"name": "occurred_at_ms", "type": "long"},
    {"name": "total", "type": "string"},
    {"name": "items", "type": {"type": "array", "items": {
      "type": "record",
      "name": "LineItem",
      "fields": [
        {"name": "product_id", "type": "string"},
        {"name": "product_name", "type": "string"},
        {"name": "quantity", "type": "int"},
        {"name": "unit_price", "type": "string"}
      ]
    }}}
  ]
}`

var codec *goavro.Codec

func init() {
	var err error
	codec, err = goavro.NewCodec(OrderSchema)
	if err != nil {
		panic(fmt.Sprintf("export: bad order schema: %v", err))
	}
}

// WriteOrders writes a deflate-compressed container holding orders in the
// given order.
func WriteOrders(w io.Writer, list []orders.Order) error {
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return fmt.Errorf("open avro writer: %w", err)
	}
	if len(list) == 0 {
		return nil
	}
	records := make([]any, 0, len(list))
	for _, o := range list {
		rec, err := toNative(o)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	if err := ocf.Append(records); err != nil {
		return fmt.Errorf("append orders: %w", err)
	}
	return nil
}

func toNative(o orders.Order) (map[string]any, error) {
	items := make([]any, 0, len(o.Items))
	for _, it := range o.Items {
		if it.Quantity < math.MinInt32 || it.Quantity > math.MaxInt32 {
			return nil, fmt.Errorf("order %s item %s: quantity %d does not fit the schema", o.ID, it.ProductID, it.Quantity)
		}
		items = append(items, map[string]any{
			"product_id":   it.ProductID,
			"product_name": it.ProductName,
			"quantity":     int32(it.Quantity),
			"unit_price":   it.UnitPrice.String(),
		})
	}
	return map[string]any{
		"id":             o.ID,
		"batch_id":       o.BatchID,
		"group_key":      o.GroupKey,
		"occurred_at_ms": o.OccurredAt.UnixMilli(),
		"total":          o.Total.String(),
		"items":          items,
	}, nil
}
