package orders

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// MaxQuantity bounds a line item's quantity. It matches the export schema's
// 32-bit quantity field.
const MaxQuantity = math.MaxInt32

// AddOrIncrement bumps the quantity of productID or appends a new line item.
// The input slice is not modified.
func AddOrIncrement(list []LineItem, productID, productName string, unitPrice decimal.Decimal, quantity int) ([]LineItem, error) {
	if quantity <= 0 || quantity > MaxQuantity {
		return nil, fmt.Errorf("add %s: %w", productID, ErrInvalidQuantity)
	}
	if unitPrice.IsNegative() {
		return nil, fmt.Errorf("add %s: %w", productID, ErrInvalidPrice)
	}
	out := CloneItems(list)
	for i := range out {
		if out[i].ProductID == productID {
			if out[i].Quantity > MaxQuantity-quantity {
				return nil, fmt.Errorf("add %s: %d + %d exceeds %d: %w",
					productID, out[i].Quantity, quantity, MaxQuantity, ErrInvalidQuantity)
			}
			out[i].Quantity += quantity
			return out, nil
		}
	}
	return append(out, LineItem{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
	}), nil
}

// RemoveItem drops productID if present.
func RemoveItem(list []LineItem, productID string) []LineItem {
	out := make([]LineItem, 0, len(list))
	for _, it := range list {
		if it.ProductID != productID {
			out = append(out, it)
		}
	}
	return out
}

// SetQuantity replaces the quantity of productID; a non-positive quantity
// removes the item. Unknown products are left alone.
func SetQuantity(list []LineItem, productID string, quantity int) []LineItem {
	if quantity <= 0 {
		return RemoveItem(list, productID)
	}
	out := CloneItems(list)
	for i := range out {
		if out[i].ProductID == productID {
			out[i].Quantity = quantity
		}
	}
	return out
}

// DropNonPositive keeps only items with a positive quantity.
func DropNonPositive(list []LineItem) []LineItem {
	out := make([]LineItem, 0, len(list))
	for _, it := range list {
		if it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}

func validateItems(items []LineItem) error {
	if len(items) == 0 {
		return ErrNoItems
	}
	for _, it := range items {
		if it.Quantity <= 0 || it.Quantity > MaxQuantity {
			return fmt.Errorf("item %s: %w", it.ProductID, ErrInvalidQuantity)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("item %s: %w", it.ProductID, ErrInvalidPrice)
		}
	}
	return nil
}
