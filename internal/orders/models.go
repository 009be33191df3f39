package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is owned by the catalog. Line items snapshot its name and price.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type LineItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// PendingBatch is one group's in-flight order. OriginalItems/OriginalTotal are
// captured at creation and never change; CurrentItems only shrink.
type PendingBatch struct {
	ID            string          `json:"id"`
	GroupKey      string          `json:"group_key"`
	CurrentItems  []LineItem      `json:"current_items"`
	CurrentTotal  decimal.Decimal `json:"current_total"`
	OriginalItems []LineItem      `json:"original_items"`
	OriginalTotal decimal.Decimal `json:"original_total"`
	CreatedAt     time.Time       `json:"created_at"`
	Version       int64           `json:"version"`
	Seq           int64           `json:"seq"`
}

// Order is a finalized historical record. BatchID is empty for direct saves.
type Order struct {
	ID         string          `json:"id"`
	BatchID    string          `json:"batch_id,omitempty"`
	GroupKey   string          `json:"group_key"`
	Items      []LineItem      `json:"items"`
	Total      decimal.Decimal `json:"total"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func Total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

// CloneItems returns a copy that shares nothing mutable with items.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return nil
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

func (b PendingBatch) clone() PendingBatch {
	b.CurrentItems = CloneItems(b.CurrentItems)
	b.OriginalItems = CloneItems(b.OriginalItems)
	return b
}
